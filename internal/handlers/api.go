package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/suseoaa/oaacore/internal/app"
	"github.com/suseoaa/oaacore/internal/gpa"
	"github.com/suseoaa/oaacore/internal/metrics"
	"github.com/suseoaa/oaacore/internal/portal"
)

// APIHandler serves the read side over the local store. Nothing here
// talks to the portal except the explicit sync trigger.
type APIHandler struct {
	service *app.Service
}

func NewAPIHandler(service *app.Service) *APIHandler {
	return &APIHandler{
		service: service,
	}
}

func observeRequest(r *http.Request, status int, start time.Time) {
	metrics.APIRequestDuration.WithLabelValues(
		r.URL.Path,
		r.Method,
		fmt.Sprintf("%d", status),
	).Observe(time.Since(start).Seconds())
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Debug.Printf("Error encoding response: %v", err)
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

func (h *APIHandler) HandleListAccounts(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := http.StatusOK
	defer func() { observeRequest(r, status, start) }()

	accounts, err := h.service.Store.ListAccounts()
	if err != nil {
		logger.Error.Printf("Failed to list accounts: %v", err)
		status = http.StatusInternalServerError
		http.Error(w, "Failed to list accounts", status)
		return
	}

	writeJSON(w, map[string]interface{}{
		"accounts": accounts,
	})
}

// HandleCourses returns the cached schedule for one term. year and term
// default to the current term.
func (h *APIHandler) HandleCourses(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := http.StatusOK
	defer func() { observeRequest(r, status, start) }()

	student := r.PathValue("student")
	year := r.URL.Query().Get("year")
	term := r.URL.Query().Get("term")
	if year == "" || term == "" {
		year, term = portal.CurrentTerm(time.Now())
	}

	courses, err := h.service.Store.ListTermCourses(student, year, term)
	if err != nil {
		logger.Error.Printf("Failed to list courses for %s: %v", student, err)
		status = http.StatusInternalServerError
		http.Error(w, "Failed to list courses", status)
		return
	}

	writeJSON(w, map[string]interface{}{
		"year":    year,
		"term":    term,
		"courses": courses,
	})
}

func (h *APIHandler) HandleGrades(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := http.StatusOK
	defer func() { observeRequest(r, status, start) }()

	student := r.PathValue("student")
	grades, err := h.service.Store.ListGrades(student)
	if err != nil {
		logger.Error.Printf("Failed to list grades for %s: %v", student, err)
		status = http.StatusInternalServerError
		http.Error(w, "Failed to list grades", status)
		return
	}

	writeJSON(w, map[string]interface{}{
		"grades": grades,
	})
}

// HandleGPA computes the credit-weighted GPA from cached grades. With
// degree_only=true only teaching-plan degree courses count.
func (h *APIHandler) HandleGPA(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := http.StatusOK
	defer func() { observeRequest(r, status, start) }()

	student := r.PathValue("student")
	grades, err := h.service.Store.ListGrades(student)
	if err != nil {
		logger.Error.Printf("Failed to list grades for %s: %v", student, err)
		status = http.StatusInternalServerError
		http.Error(w, "Failed to list grades", status)
		return
	}

	var degreeKeys map[string]bool
	if r.URL.Query().Get("degree_only") == "true" {
		plan, err := h.service.Store.ListPlanCourses(student)
		if err != nil {
			logger.Error.Printf("Failed to list plan courses for %s: %v", student, err)
			status = http.StatusInternalServerError
		http.Error(w, "Failed to list plan courses", status)
			return
		}
		degreeKeys = gpa.DegreeKeys(plan)
	}

	writeJSON(w, gpa.Calculate(grades, degreeKeys))
}

func (h *APIHandler) HandleExams(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := http.StatusOK
	defer func() { observeRequest(r, status, start) }()

	student := r.PathValue("student")
	exams, err := h.service.Store.ListExams(student)
	if err != nil {
		logger.Error.Printf("Failed to list exams for %s: %v", student, err)
		status = http.StatusInternalServerError
		http.Error(w, "Failed to list exams", status)
		return
	}

	writeJSON(w, map[string]interface{}{
		"exams": exams,
	})
}

func (h *APIHandler) HandleMessages(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := http.StatusOK
	defer func() { observeRequest(r, status, start) }()

	student := r.PathValue("student")
	kind := r.URL.Query().Get("kind")
	if kind == "" {
		kind = "course"
	}

	messages, err := h.service.Store.ListMessages(student, kind)
	if err != nil {
		logger.Error.Printf("Failed to list messages for %s: %v", student, err)
		status = http.StatusInternalServerError
		http.Error(w, "Failed to list messages", status)
		return
	}

	writeJSON(w, map[string]interface{}{
		"kind":     kind,
		"messages": messages,
	})
}

// HandleSync refreshes one account from the portal right now, outside
// the daemon's regular interval.
func (h *APIHandler) HandleSync(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := http.StatusOK
	defer func() { observeRequest(r, status, start) }()

	student := r.PathValue("student")
	account, err := h.service.Store.GetAccount(student)
	if err != nil {
		logger.Error.Printf("Failed to get account %s: %v", student, err)
		status = http.StatusInternalServerError
		http.Error(w, "Failed to get account", status)
		return
	}
	if account == nil {
		status = http.StatusNotFound
		http.Error(w, "Unknown account", status)
		return
	}

	if err := h.service.SyncAccount(r.Context(), account); err != nil {
		logger.Error.Printf("Sync failed for %s: %v", student, err)
		status = http.StatusBadGateway
		http.Error(w, "Sync failed", status)
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}
