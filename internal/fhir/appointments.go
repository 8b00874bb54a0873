package fhir

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ErrConflictCheck is returned when either side of a conflict check could not be queried
var ErrConflictCheck = errors.New("conflict check failed")

// Conflict participants
const (
	ConflictProvider = "provider"
	ConflictPatient  = "patient"
)

// ConflictQuery describes a proposed appointment slot
type ConflictQuery struct {
	ProviderID string
	PatientID  string
	Start      time.Time
	End        time.Time
	// ExcludeID skips the appointment being rescheduled
	ExcludeID string
}

// Conflict is an existing appointment that overlaps the proposed slot
type Conflict struct {
	Type        string          `json:"type"`
	Appointment json.RawMessage `json:"appointment"`
	Message     string          `json:"message"`
}

// ConflictReport is the result of a conflict check
type ConflictReport struct {
	Conflicts    []Conflict `json:"conflicts"`
	HasConflicts bool       `json:"hasConflicts"`
}

type appointmentTimes struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Start       string `json:"start"`
	End         string `json:"end"`
}

func (c *Client) ListAppointments(ctx context.Context) (json.RawMessage, error) {
	return c.List(ctx, ResourceAppointment)
}

// SearchAppointments searches by parameters such as patient, practitioner, date or status
func (c *Client) SearchAppointments(ctx context.Context, params map[string]string) (json.RawMessage, error) {
	return c.Search(ctx, ResourceAppointment, params)
}

func (c *Client) CreateAppointment(ctx context.Context, appointment json.RawMessage) (json.RawMessage, error) {
	return c.Create(ctx, ResourceAppointment, appointment)
}

func (c *Client) UpdateAppointment(ctx context.Context, id string, appointment json.RawMessage) (json.RawMessage, error) {
	return c.Update(ctx, ResourceAppointment, id, appointment)
}

// CancelAppointment replaces the appointment with a cancelled stub
func (c *Client) CancelAppointment(ctx context.Context, id string) (json.RawMessage, error) {
	body, err := json.Marshal(map[string]string{
		"resourceType": ResourceAppointment,
		"id":           id,
		"status":       "cancelled",
	})
	if err != nil {
		return nil, err
	}
	return c.update(ctx, ResourceAppointment, id, body, "Appointment cancellation")
}

// CheckConflicts looks for appointments of the provider or the patient on the
// start date that overlap [Start, End)
func (c *Client) CheckConflicts(ctx context.Context, q ConflictQuery) (*ConflictReport, error) {
	if q.ProviderID == "" || q.PatientID == "" {
		return nil, fmt.Errorf("%w: provider and patient are required", ErrInvalidArgument)
	}
	if q.Start.IsZero() || q.End.IsZero() {
		return nil, fmt.Errorf("%w: start and end are required", ErrInvalidArgument)
	}

	date := q.Start.Format("2006-01-02")
	var providerData, patientData json.RawMessage

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		providerData, err = c.search(gctx, ResourceAppointment,
			url.Values{"practitioner": {q.ProviderID}, "date": {date}}, "Appointment search")
		return err
	})
	g.Go(func() error {
		var err error
		patientData, err = c.search(gctx, ResourceAppointment,
			url.Values{"patient": {q.PatientID}, "date": {date}}, "Appointment search")
		return err
	})
	if err := g.Wait(); err != nil {
		if recoverable(err) {
			c.logger.Warn("Appointment conflict query failed", zap.Error(err))
			return nil, fmt.Errorf("%w: %w", ErrConflictCheck, err)
		}
		return nil, err
	}

	report := &ConflictReport{Conflicts: []Conflict{}}
	for _, side := range []struct {
		kind string
		who  string
		data json.RawMessage
	}{
		{ConflictProvider, "Provider", providerData},
		{ConflictPatient, "Patient", patientData},
	} {
		conflicts, err := findConflicts(side.data, q, side.kind, side.who)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrConflictCheck, err)
		}
		report.Conflicts = append(report.Conflicts, conflicts...)
	}
	report.HasConflicts = len(report.Conflicts) > 0
	return report, nil
}

func findConflicts(data json.RawMessage, q ConflictQuery, kind, who string) ([]Conflict, error) {
	bundle, err := ParseBundle(data)
	if err != nil {
		return nil, err
	}

	var conflicts []Conflict
	for _, entry := range bundle.Entry {
		var appt appointmentTimes
		if err := json.Unmarshal(entry.Resource, &appt); err != nil {
			continue
		}
		if q.ExcludeID != "" && appt.ID == q.ExcludeID {
			continue
		}
		if !overlaps(q.Start, q.End, appt.Start, appt.End) {
			continue
		}

		description := appt.Description
		if description == "" {
			description = "Appointment"
		}
		conflicts = append(conflicts, Conflict{
			Type:        kind,
			Appointment: entry.Resource,
			Message:     fmt.Sprintf("%s has conflicting appointment: %s", who, description),
		})
	}
	return conflicts, nil
}

// overlaps reports whether [start, end) intersects the existing appointment.
// An appointment without a parseable start and end never overlaps.
func overlaps(start, end time.Time, otherStart, otherEnd string) bool {
	if otherStart == "" || otherEnd == "" {
		return false
	}
	s2, err := time.Parse(time.RFC3339, otherStart)
	if err != nil {
		return false
	}
	e2, err := time.Parse(time.RFC3339, otherEnd)
	if err != nil {
		return false
	}
	return start.Before(e2) && end.After(s2)
}
