/*
handlers.go - HTTP API handlers for the assessment engine

PURPOSE:
  Exposes the assessment lifecycle and grading engine via REST API.
  Handles HTTP request/response, JSON serialization, and delegates to
  domain logic.

ENDPOINTS:
  Assessments:
    POST   /api/projects/{projectID}/assessments            Create cycle
    GET    /api/projects/{projectID}/assessments            List w/ summaries
    GET    /api/projects/{projectID}/assessments/{id}       Details w/ summaries
    PUT    /api/projects/{projectID}/assessments/{id}/status    Transition
    PUT    /api/projects/{projectID}/assessments/{id}/responses Batch edits
    GET    /api/projects/{projectID}/assessments/{id}/results   Graded tree
    PUT    /api/projects/{projectID}/assessments/{id}/items/{itemID}/grade
                                                            Manual override
  Tasks:
    GET    /api/tasks/{id}                                  Task status
    POST   /api/internal/grade-calculations                 Manual replay

REQUEST FLOW:
  1. Parse HTTP request
  2. Validate input (go-playground/validator)
  3. Call domain logic (lifecycle, response service, grading engine)
  4. Serialize response
  5. Map domain errors to HTTP status

ERROR HANDLING:
  Errors are returned as JSON with status derived from the domain
  error kind:
  - 400: InvalidInput
  - 404: NotFound
  - 409: Conflict
  - 422: InvalidState (guard/transition violations)
  - 503: Transient (queue full)
  - 500: everything else
  A responses batch with mixed outcomes returns 207. 5xx bodies never
  carry the underlying cause; it goes to the server log instead.

SECURITY NOTE:
  Currently NO authentication or authorization. The platform gateway
  in front of this service owns both.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/tenet/assessment-engine/assessment"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store     assessment.TxStore
	Lifecycle *assessment.Lifecycle
	Responses *assessment.ResponseService
	Engine    *assessment.GradingEngine
	Worker    *assessment.Worker

	// Optional demo seeder; nil disables the demo-data endpoint.
	Seeder ReferenceWriter

	validate *validator.Validate
}

// NewHandler creates a new handler with the given services.
func NewHandler(store assessment.TxStore, lifecycle *assessment.Lifecycle, responses *assessment.ResponseService, engine *assessment.GradingEngine) *Handler {
	return &Handler{
		Store:     store,
		Lifecycle: lifecycle,
		Responses: responses,
		Engine:    engine,
		Worker:    assessment.NewWorker(engine),
		validate:  validator.New(),
	}
}

// =============================================================================
// ASSESSMENTS
// =============================================================================

// CreateAssessment starts a new audit cycle for a project.
func (h *Handler) CreateAssessment(w http.ResponseWriter, r *http.Request) {
	projectID := assessment.ProjectID(chi.URLParam(r, "projectID"))

	var req CreateAssessmentRequest
	if !h.decode(w, r, &req) {
		return
	}
	start, ok := parseDate(w, "start_date", req.StartDate)
	if !ok {
		return
	}
	end, ok := parseDate(w, "end_date", req.EndDate)
	if !ok {
		return
	}

	a, err := h.Lifecycle.Create(r.Context(), projectID, start, end, assessment.UserID(req.CreatedBy))
	if err != nil {
		writeDomainError(w, "failed to create assessment", err)
		return
	}
	writeJSON(w, http.StatusCreated, toAssessmentDTO(a))
}

// ListAssessments returns a project's assessments with answer and
// delta summaries. An optional ?status= filters by lifecycle state.
func (h *Handler) ListAssessments(w http.ResponseWriter, r *http.Request) {
	projectID := assessment.ProjectID(chi.URLParam(r, "projectID"))

	var status assessment.AssessmentStatus
	if s := r.URL.Query().Get("status"); s != "" {
		parsed, err := assessment.ParseAssessmentStatus(s)
		if err != nil {
			writeDomainError(w, "invalid status filter", err)
			return
		}
		status = parsed
	}

	list, err := h.Store.ListAssessments(r.Context(), projectID, status)
	if err != nil {
		writeDomainError(w, "failed to list assessments", err)
		return
	}

	out := make([]AssessmentSummaryDTO, 0, len(list))
	for i := range list {
		dto, err := h.summarize(r, &list[i])
		if err != nil {
			writeDomainError(w, "failed to summarize assessment", err)
			return
		}
		out = append(out, dto)
	}
	writeJSON(w, http.StatusOK, out)
}

// GetAssessment returns one assessment with summaries.
func (h *Handler) GetAssessment(w http.ResponseWriter, r *http.Request) {
	a, ok := h.loadProjectAssessment(w, r)
	if !ok {
		return
	}
	dto, err := h.summarize(r, a)
	if err != nil {
		writeDomainError(w, "failed to summarize assessment", err)
		return
	}
	writeJSON(w, http.StatusOK, dto)
}

func (h *Handler) summarize(r *http.Request, a *assessment.Assessment) (AssessmentSummaryDTO, error) {
	ctx := r.Context()
	dto := AssessmentSummaryDTO{AssessmentDTO: toAssessmentDTO(a)}

	var err error
	if dto.ManagerSummary, err = h.trackSummary(r, a.ID, assessment.ManagerResponse); err != nil {
		return dto, err
	}
	if dto.ReviewerSummary, err = h.trackSummary(r, a.ID, assessment.ReviewerResponse); err != nil {
		return dto, err
	}

	if dto.ManagerDeltas, err = h.Store.CountDeltas(ctx, a.ID, assessment.ManagerDelta); err != nil {
		return dto, err
	}
	if dto.ReviewerDeltas, err = h.Store.CountDeltas(ctx, a.ID, assessment.ReviewerDelta); err != nil {
		return dto, err
	}

	task, err := h.Store.ActiveTask(ctx, a.ID)
	switch {
	case err == nil:
		t := toTaskDTO(task)
		dto.ActiveTask = &t
	case assessment.IsNotFound(err):
		// No grading in flight.
	default:
		return dto, err
	}
	return dto, nil
}

func (h *Handler) trackSummary(r *http.Request, id assessment.AssessmentID, typ assessment.ResponseType) (TrackSummaryDTO, error) {
	counts, err := h.Store.ResponseSummary(r.Context(), id, typ)
	if err != nil {
		return TrackSummaryDTO{}, err
	}
	rows, err := h.Store.ResponsesByAssessment(r.Context(), id, typ)
	if err != nil {
		return TrackSummaryDTO{}, err
	}
	return toTrackSummaryDTO(counts, len(rows)), nil
}

// UpdateStatus transitions an assessment's lifecycle state.
func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	projectID := assessment.ProjectID(chi.URLParam(r, "projectID"))
	assessmentID := assessment.AssessmentID(chi.URLParam(r, "id"))

	var req UpdateStatusRequest
	if !h.decode(w, r, &req) {
		return
	}
	status, err := assessment.ParseAssessmentStatus(req.Status)
	if err != nil {
		writeDomainError(w, "invalid status", err)
		return
	}

	a, err := h.Lifecycle.UpdateStatus(r.Context(), projectID, assessmentID, status, assessment.UserID(req.UpdatedBy))
	if err != nil {
		writeDomainError(w, "failed to update status", err)
		return
	}
	writeJSON(w, http.StatusOK, toAssessmentDTO(a))
}

// =============================================================================
// RESPONSES
// =============================================================================

// UpdateResponses applies a batch of answer edits. Mixed outcomes
// return 207 so clients can surface per-row failures.
func (h *Handler) UpdateResponses(w http.ResponseWriter, r *http.Request) {
	projectID := assessment.ProjectID(chi.URLParam(r, "projectID"))
	assessmentID := assessment.AssessmentID(chi.URLParam(r, "id"))

	var req UpdateResponsesRequest
	if !h.decode(w, r, &req) {
		return
	}
	role, err := assessment.ParseRole(req.Role)
	if err != nil {
		writeDomainError(w, "invalid role", err)
		return
	}

	edits := make([]assessment.ResponseEdit, 0, len(req.Responses))
	for _, e := range req.Responses {
		edits = append(edits, assessment.ResponseEdit{
			ResponseID: assessment.ResponseID(e.ResponseID),
			Value:      assessment.ResponseValue(e.Value),
			Comments:   e.Comments,
		})
	}

	results, err := h.Responses.UpdateResponses(r.Context(), assessment.UpdateRequest{
		ProjectID:    projectID,
		AssessmentID: assessmentID,
		Actor:        assessment.UserID(req.UpdatedBy),
		Role:         role,
		Edits:        edits,
	})
	if err != nil {
		writeDomainError(w, "failed to update responses", err)
		return
	}

	resp := UpdateResponsesResponse{Results: make([]EditResultDTO, 0, len(results))}
	for _, res := range results {
		resp.Results = append(resp.Results, EditResultDTO{
			ResponseID: string(res.ResponseID),
			Applied:    res.Applied,
			Failure:    string(res.Failure),
			Message:    res.Message,
		})
		if res.Applied {
			resp.Applied++
		} else {
			resp.Failed++
		}
	}

	status := http.StatusOK
	if resp.Failed > 0 {
		status = http.StatusMultiStatus
	}
	writeJSON(w, status, resp)
}

// =============================================================================
// RESULTS
// =============================================================================

// GetResults returns the graded checklist tree for one assessment.
// Results exist only once the review signed off.
func (h *Handler) GetResults(w http.ResponseWriter, r *http.Request) {
	a, ok := h.loadProjectAssessment(w, r)
	if !ok {
		return
	}
	if a.Status != assessment.StatusReviewed {
		writeDomainError(w, "results not available",
			assessment.InvalidStatef("assessment %s is %s, results require Reviewed", a.ID, a.Status))
		return
	}
	ctx := r.Context()

	tree, err := assessment.LoadTree(ctx, h.Store, a.ChecklistID)
	if err != nil {
		writeDomainError(w, "failed to load checklist", err)
		return
	}
	itemScores, err := h.Store.ItemScoresByAssessment(ctx, a.ID)
	if err != nil {
		writeDomainError(w, "failed to load item scores", err)
		return
	}
	subareaScores, err := h.Store.SubareaScoresByAssessment(ctx, a.ID)
	if err != nil {
		writeDomainError(w, "failed to load subarea scores", err)
		return
	}

	byItem := make(map[assessment.ItemID]assessment.ItemScore, len(itemScores))
	for _, s := range itemScores {
		byItem[s.ItemID] = s
	}
	bySubarea := make(map[assessment.SubareaID]assessment.SubareaScore, len(subareaScores))
	for _, s := range subareaScores {
		bySubarea[s.SubareaID] = s
	}

	out := ResultsDTO{Assessment: toAssessmentDTO(a)}
	for _, area := range tree.Areas {
		areaDTO := AreaResultDTO{ID: string(area.ID), Name: area.Name}
		for _, sub := range tree.Subareas[area.ID] {
			subDTO := SubareaResultDTO{ID: string(sub.ID), Name: sub.Name}
			if ss, ok := bySubarea[sub.ID]; ok {
				subDTO.TechDebtCount = ss.TechDebtCount
				if ss.Score != nil {
					s := ss.Score.String()
					subDTO.Score = &s
				}
			}
			for _, item := range tree.Items[sub.ID] {
				itemDTO := ItemResultDTO{
					ID:                 string(item.ID),
					Name:               item.Name,
					EffectiveWeightage: item.EffectiveWeightage.String(),
				}
				if is, ok := byItem[item.ID]; ok {
					itemDTO.Grade = string(is.Grade)
					if is.Score != nil {
						s := is.Score.String()
						itemDTO.Score = &s
					}
				}
				subDTO.Items = append(subDTO.Items, itemDTO)
			}
			areaDTO.Subareas = append(areaDTO.Subareas, subDTO)
		}
		out.Areas = append(out.Areas, areaDTO)
	}
	writeJSON(w, http.StatusOK, out)
}

// OverrideGrade manually replaces one item's grade on a reviewed
// assessment and re-rolls the affected scores.
func (h *Handler) OverrideGrade(w http.ResponseWriter, r *http.Request) {
	a, ok := h.loadProjectAssessment(w, r)
	if !ok {
		return
	}
	itemID := assessment.ItemID(chi.URLParam(r, "itemID"))

	var req OverrideGradeRequest
	if !h.decode(w, r, &req) {
		return
	}
	grade, err := assessment.ParseItemGrade(req.Grade)
	if err != nil {
		writeDomainError(w, "invalid grade", err)
		return
	}

	if err := h.Engine.OverrideItemGrade(r.Context(), a.ID, itemID, grade, assessment.UserID(req.UpdatedBy)); err != nil {
		writeDomainError(w, "failed to override grade", err)
		return
	}
	updated, err := h.Store.GetItemScore(r.Context(), a.ID, itemID)
	if err != nil {
		writeDomainError(w, "failed to load item score", err)
		return
	}
	s := ""
	if updated.Score != nil {
		s = updated.Score.String()
	}
	writeJSON(w, http.StatusOK, ItemResultDTO{
		ID:    string(itemID),
		Grade: string(updated.Grade),
		Score: &s,
	})
}

// =============================================================================
// TASKS
// =============================================================================

// GetTask reports a grade-calculation task's progress.
func (h *Handler) GetTask(w http.ResponseWriter, r *http.Request) {
	id := assessment.TaskID(chi.URLParam(r, "id"))
	task, err := h.Store.GetTask(r.Context(), id)
	if err != nil {
		writeDomainError(w, "failed to load task", err)
		return
	}
	writeJSON(w, http.StatusOK, toTaskDTO(task))
}

// ReplayGradeCalculation re-runs grading for one task, for operators
// recovering a committed task whose job never published. A
// deactivated task is a no-op.
func (h *Handler) ReplayGradeCalculation(w http.ResponseWriter, r *http.Request) {
	var req ReplayGradeCalculationRequest
	if !h.decode(w, r, &req) {
		return
	}
	job := assessment.GradeCalculationJob{
		AssessmentID: assessment.AssessmentID(req.AssessmentID),
		TaskID:       assessment.TaskID(req.TaskID),
		Trigger:      assessment.AssessmentStatus(req.Status),
	}
	if err := h.Worker.Handle(r.Context(), job); err != nil {
		writeDomainError(w, "grade calculation failed", err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{
		"assessment_id": req.AssessmentID,
		"status":        "processed",
	})
}

// =============================================================================
// HELPERS
// =============================================================================

// loadProjectAssessment fetches the assessment from the URL and checks
// it belongs to the URL's project.
func (h *Handler) loadProjectAssessment(w http.ResponseWriter, r *http.Request) (*assessment.Assessment, bool) {
	projectID := assessment.ProjectID(chi.URLParam(r, "projectID"))
	id := assessment.AssessmentID(chi.URLParam(r, "id"))

	a, err := h.Store.GetAssessment(r.Context(), id)
	if err != nil {
		writeDomainError(w, "failed to load assessment", err)
		return nil, false
	}
	if a.ProjectID != projectID {
		writeError(w, http.StatusBadRequest, "assessment does not belong to project", nil)
		return nil, false
	}
	return a, true
}

// parseDate parses an optional RFC3339 field, writing a 400 when it
// is present but malformed.
func parseDate(w http.ResponseWriter, field, value string) (time.Time, bool) {
	if value == "" {
		return time.Time{}, true
	}
	ts, err := time.Parse(time.RFC3339, value)
	if err != nil {
		writeDomainError(w, "invalid "+field,
			assessment.InvalidInputf("%s must be RFC3339, got %q", field, value))
		return time.Time{}, false
	}
	return ts, true
}

// decode parses and validates a JSON request body, writing a 400 on
// failure.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, "validation failed", err)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps a domain error kind to an HTTP status. On
// 5xx the cause stays in the server log; clients only see the
// message, so driver and storage detail never reaches the wire.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	status := http.StatusInternalServerError
	switch {
	case assessment.IsNotFound(err):
		status = http.StatusNotFound
	case assessment.IsInvalidInput(err):
		status = http.StatusBadRequest
	case assessment.IsInvalidState(err):
		status = http.StatusUnprocessableEntity
	case assessment.IsConflict(err):
		status = http.StatusConflict
	case assessment.IsRetryable(err):
		status = http.StatusServiceUnavailable
	}
	if status >= http.StatusInternalServerError {
		log.Printf("[API] %s: %v", message, err)
		writeError(w, status, message, nil)
		return
	}
	writeError(w, status, message, err)
}
