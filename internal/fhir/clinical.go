package fhir

import (
	"context"
	"encoding/json"
	"net/url"
)

// ClinicalKind is a patient-scoped clinical resource list
type ClinicalKind struct {
	Name         string
	ResourceType string
}

var (
	Allergies     = ClinicalKind{Name: "allergies", ResourceType: ResourceAllergyIntolerance}
	Conditions    = ClinicalKind{Name: "conditions", ResourceType: ResourceCondition}
	Medications   = ClinicalKind{Name: "medications", ResourceType: ResourceMedication}
	Immunizations = ClinicalKind{Name: "immunizations", ResourceType: ResourceImmunization}
)

var clinicalKinds = map[string]ClinicalKind{
	Allergies.Name:     Allergies,
	Conditions.Name:    Conditions,
	Medications.Name:   Medications,
	Immunizations.Name: Immunizations,
}

// LookupClinicalKind resolves a list name such as "allergies"
func LookupClinicalKind(name string) (ClinicalKind, bool) {
	kind, ok := clinicalKinds[name]
	return kind, ok
}

// ListClinical returns the kind's resources recorded for a patient
func (c *Client) ListClinical(ctx context.Context, kind ClinicalKind, patientID string) (json.RawMessage, error) {
	if err := requireID(patientID); err != nil {
		return nil, err
	}
	query := url.Values{"patient": {patientID}}
	return c.search(ctx, kind.ResourceType, query, label(kind.ResourceType)+" fetch")
}

func (c *Client) CreateClinical(ctx context.Context, kind ClinicalKind, resource json.RawMessage) (json.RawMessage, error) {
	return c.Create(ctx, kind.ResourceType, resource)
}

func (c *Client) UpdateClinical(ctx context.Context, kind ClinicalKind, id string, resource json.RawMessage) (json.RawMessage, error) {
	return c.Update(ctx, kind.ResourceType, id, resource)
}
