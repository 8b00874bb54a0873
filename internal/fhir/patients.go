package fhir

import (
	"context"
	"encoding/json"
)

// ListPatients returns the default patient search bundle
func (c *Client) ListPatients(ctx context.Context) (json.RawMessage, error) {
	return c.List(ctx, ResourcePatient)
}

// GetPatient fetches one patient
func (c *Client) GetPatient(ctx context.Context, id string) (json.RawMessage, error) {
	return c.read(ctx, ResourcePatient, id, "Patient fetch")
}

// SearchPatients searches patients by FHIR search parameters such as family, given,
// birthdate, identifier or _count
func (c *Client) SearchPatients(ctx context.Context, params map[string]string) (json.RawMessage, error) {
	return c.Search(ctx, ResourcePatient, params)
}

func (c *Client) CreatePatient(ctx context.Context, patient json.RawMessage) (json.RawMessage, error) {
	return c.Create(ctx, ResourcePatient, patient)
}

func (c *Client) UpdatePatient(ctx context.Context, id string, patient json.RawMessage) (json.RawMessage, error) {
	return c.Update(ctx, ResourcePatient, id, patient)
}
