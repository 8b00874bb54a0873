package httpserver

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"fhir-gateway/internal/fhir"
)

// queryParams flattens the query string, keeping the first value of each key
func queryParams(r *http.Request) map[string]string {
	query := r.URL.Query()
	params := make(map[string]string, len(query))
	for key, values := range query {
		if len(values) > 0 {
			params[key] = values[0]
		}
	}
	return params
}

func (s *Server) writeResult(w http.ResponseWriter, r *http.Request, data json.RawMessage, err error) {
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeResponse(w, data)
}

// resourceType returns the {resource} route variable, writing a 404 when it is unknown
func (s *Server) resourceType(w http.ResponseWriter, r *http.Request) (string, bool) {
	resource := mux.Vars(r)["resource"]
	if !fhir.IsKnownResource(resource) {
		s.writeErrorResponse(w, fmt.Sprintf("unknown resource type %q", resource), http.StatusNotFound)
		return "", false
	}
	return resource, true
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	resource, ok := s.resourceType(w, r)
	if !ok {
		return
	}
	if len(r.URL.Query()) == 0 {
		data, err := s.services.FHIR.List(r.Context(), resource)
		s.writeResult(w, r, data, err)
		return
	}
	data, err := s.services.FHIR.Search(r.Context(), resource, queryParams(r))
	s.writeResult(w, r, data, err)
}

func (s *Server) handleRead(w http.ResponseWriter, r *http.Request) {
	resource, ok := s.resourceType(w, r)
	if !ok {
		return
	}
	data, err := s.services.FHIR.Read(r.Context(), resource, mux.Vars(r)["id"])
	s.writeResult(w, r, data, err)
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	resource, ok := s.resourceType(w, r)
	if !ok {
		return
	}
	body, err := s.readResource(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	data, err := s.services.FHIR.Create(r.Context(), resource, body)
	s.writeResult(w, r, data, err)
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	resource, ok := s.resourceType(w, r)
	if !ok {
		return
	}
	body, err := s.readResource(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	data, err := s.services.FHIR.Update(r.Context(), resource, mux.Vars(r)["id"], body)
	s.writeResult(w, r, data, err)
}

func (s *Server) handleCancelAppointment(w http.ResponseWriter, r *http.Request) {
	data, err := s.services.FHIR.CancelAppointment(r.Context(), mux.Vars(r)["id"])
	s.writeResult(w, r, data, err)
}

func parseTimeParam(r *http.Request, name string) (time.Time, error) {
	value := r.URL.Query().Get(name)
	if value == "" {
		return time.Time{}, fmt.Errorf("%w: %s is required", fhir.ErrInvalidArgument, name)
	}
	parsed, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s must be an RFC 3339 timestamp", fhir.ErrInvalidArgument, name)
	}
	return parsed, nil
}

func (s *Server) handleConflicts(w http.ResponseWriter, r *http.Request) {
	start, err := parseTimeParam(r, "start")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	end, err := parseTimeParam(r, "end")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	query := r.URL.Query()
	report, err := s.services.FHIR.CheckConflicts(r.Context(), fhir.ConflictQuery{
		ProviderID: query.Get("providerId"),
		PatientID:  query.Get("patientId"),
		Start:      start,
		End:        end,
		ExcludeID:  query.Get("excludeId"),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeResponse(w, report)
}

func (s *Server) handleEligibility(w http.ResponseWriter, r *http.Request) {
	data, err := s.services.FHIR.Eligibility(r.Context(), mux.Vars(r)["id"])
	s.writeResult(w, r, data, err)
}

func (s *Server) handlePaymentHistory(w http.ResponseWriter, r *http.Request) {
	data, err := s.services.FHIR.PaymentHistory(r.Context(), mux.Vars(r)["id"])
	s.writeResult(w, r, data, err)
}

func (s *Server) handleClinicalList(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	kind, ok := fhir.LookupClinicalKind(vars["kind"])
	if !ok {
		s.writeErrorResponse(w, fmt.Sprintf("unknown clinical list %q", vars["kind"]), http.StatusNotFound)
		return
	}
	data, err := s.services.FHIR.ListClinical(r.Context(), kind, vars["id"])
	s.writeResult(w, r, data, err)
}

func (s *Server) handleCoverage(w http.ResponseWriter, r *http.Request) {
	data, err := s.services.FHIR.Coverage(r.Context())
	s.writeResult(w, r, data, err)
}

func (s *Server) handleBalances(w http.ResponseWriter, r *http.Request) {
	data, err := s.services.FHIR.Balances(r.Context())
	s.writeResult(w, r, data, err)
}

func (s *Server) handleBillingSearch(w http.ResponseWriter, r *http.Request) {
	data, err := s.services.FHIR.SearchBilling(r.Context(), queryParams(r))
	s.writeResult(w, r, data, err)
}

func (s *Server) handleBillingCodes(w http.ResponseWriter, r *http.Request) {
	data, err := s.services.FHIR.BillingCodes(r.Context())
	s.writeResult(w, r, data, err)
}

func (s *Server) handleBillingReport(w http.ResponseWriter, r *http.Request) {
	report, err := s.services.FHIR.Report(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeResponse(w, report)
}
