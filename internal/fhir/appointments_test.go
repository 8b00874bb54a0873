package fhir

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fhir-gateway/internal/apierror"
	"fhir-gateway/internal/models"
)

func appointmentBundle(appointments ...string) string {
	body := `{"resourceType":"Bundle","entry":[`
	for i, a := range appointments {
		if i > 0 {
			body += ","
		}
		body += `{"resource":` + a + `}`
	}
	return body + `]}`
}

func appointment(id, start, end, description string) string {
	return fmt.Sprintf(`{"resourceType":"Appointment","id":%q,"start":%q,"end":%q,"description":%q}`, id, start, end, description)
}

func mustTime(t *testing.T, value string) time.Time {
	t.Helper()
	parsed, err := time.Parse(time.RFC3339, value)
	require.NoError(t, err)
	return parsed
}

func TestOverlaps(t *testing.T) {
	start := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)

	tests := []struct {
		name       string
		otherStart string
		otherEnd   string
		expected   bool
	}{
		{"contained", "2024-03-01T10:15:00Z", "2024-03-01T10:45:00Z", true},
		{"overlaps start", "2024-03-01T09:30:00Z", "2024-03-01T10:30:00Z", true},
		{"overlaps end", "2024-03-01T10:30:00Z", "2024-03-01T11:30:00Z", true},
		{"ends at start", "2024-03-01T09:00:00Z", "2024-03-01T10:00:00Z", false},
		{"starts at end", "2024-03-01T11:00:00Z", "2024-03-01T12:00:00Z", false},
		{"other timezone", "2024-03-01T05:30:00-05:00", "2024-03-01T06:30:00-05:00", true},
		{"missing start", "", "2024-03-01T10:30:00Z", false},
		{"missing end", "2024-03-01T10:30:00Z", "", false},
		{"unparseable", "tomorrow", "2024-03-01T10:30:00Z", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, overlaps(start, end, tt.otherStart, tt.otherEnd))
		})
	}
}

func TestCheckConflicts(t *testing.T) {
	fetcher := &fakeFetcher{handler: func(u *url.URL, _ *models.FetchOptions) (*models.Response, error) {
		assert.Equal(t, "2024-03-01", u.Query().Get("date"))
		if u.Query().Get("practitioner") == "dr1" {
			return ok(appointmentBundle(
				appointment("a1", "2024-03-01T10:30:00Z", "2024-03-01T11:30:00Z", "Follow-up"),
				appointment("a2", "2024-03-01T14:00:00Z", "2024-03-01T15:00:00Z", "Later"),
				appointment("self", "2024-03-01T10:00:00Z", "2024-03-01T11:00:00Z", "Being moved"),
			))
		}
		if u.Query().Get("patient") == "pt1" {
			return ok(appointmentBundle(
				appointment("a3", "2024-03-01T09:45:00Z", "2024-03-01T10:15:00Z", ""),
				`{"resourceType":"Appointment","id":"a4"}`,
			))
		}
		return nil, fmt.Errorf("unexpected query %s", u.RawQuery)
	}}
	c := newTestClient(t, fetcher, nil)

	report, err := c.CheckConflicts(context.Background(), ConflictQuery{
		ProviderID: "dr1",
		PatientID:  "pt1",
		Start:      mustTime(t, "2024-03-01T10:00:00Z"),
		End:        mustTime(t, "2024-03-01T11:00:00Z"),
		ExcludeID:  "self",
	})
	require.NoError(t, err)

	assert.True(t, report.HasConflicts)
	require.Len(t, report.Conflicts, 2)

	assert.Equal(t, ConflictProvider, report.Conflicts[0].Type)
	assert.Equal(t, "Provider has conflicting appointment: Follow-up", report.Conflicts[0].Message)
	assert.JSONEq(t, appointment("a1", "2024-03-01T10:30:00Z", "2024-03-01T11:30:00Z", "Follow-up"),
		string(report.Conflicts[0].Appointment))

	assert.Equal(t, ConflictPatient, report.Conflicts[1].Type)
	assert.Equal(t, "Patient has conflicting appointment: Appointment", report.Conflicts[1].Message)

	assert.Len(t, fetcher.Calls(), 2)
}

func TestCheckConflicts_None(t *testing.T) {
	fetcher := &fakeFetcher{handler: func(*url.URL, *models.FetchOptions) (*models.Response, error) {
		return ok(`{"resourceType":"Bundle"}`)
	}}
	c := newTestClient(t, fetcher, nil)

	report, err := c.CheckConflicts(context.Background(), ConflictQuery{
		ProviderID: "dr1",
		PatientID:  "pt1",
		Start:      mustTime(t, "2024-03-01T10:00:00Z"),
		End:        mustTime(t, "2024-03-01T11:00:00Z"),
	})
	require.NoError(t, err)
	assert.False(t, report.HasConflicts)
	assert.NotNil(t, report.Conflicts)
	assert.Empty(t, report.Conflicts)
}

func TestCheckConflicts_QueryFailure(t *testing.T) {
	fetcher := &fakeFetcher{handler: func(u *url.URL, _ *models.FetchOptions) (*models.Response, error) {
		if u.Query().Has("patient") {
			return nil, statusErr(http.StatusBadGateway)
		}
		return ok(`{"resourceType":"Bundle"}`)
	}}
	c := newTestClient(t, fetcher, nil)

	_, err := c.CheckConflicts(context.Background(), ConflictQuery{
		ProviderID: "dr1",
		PatientID:  "pt1",
		Start:      mustTime(t, "2024-03-01T10:00:00Z"),
		End:        mustTime(t, "2024-03-01T11:00:00Z"),
	})
	require.ErrorIs(t, err, ErrConflictCheck)
	assert.Equal(t, apierror.KindUpstreamStatus, apierror.KindOf(err))
}

func TestCheckConflicts_RequiresSlot(t *testing.T) {
	c := newTestClient(t, &fakeFetcher{}, nil)

	_, err := c.CheckConflicts(context.Background(), ConflictQuery{ProviderID: "dr1", PatientID: "pt1"})
	assert.ErrorIs(t, err, ErrInvalidArgument)
	_, err = c.CheckConflicts(context.Background(), ConflictQuery{Start: time.Now(), End: time.Now()})
	assert.ErrorIs(t, err, ErrInvalidArgument)
}
