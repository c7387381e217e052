/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types
  decouple the internal domain model from the external API contract,
  allowing field renaming and version evolution without breaking
  clients.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

VALIDATION:
  Request bodies carry go-playground/validator struct tags; handlers
  run the validator before touching the engine so malformed input
  never produces a half-applied operation.

SEE ALSO:
  - handlers.go: Uses these types
  - assessment/types.go: Domain model
*/
package api

import (
	"time"

	"github.com/tenet/assessment-engine/assessment"
)

// =============================================================================
// REQUEST TYPES
// =============================================================================

// CreateAssessmentRequest starts a new audit cycle. Dates are
// RFC3339; omitting both pins the cycle to the period containing now,
// per the project's audit frequency.
type CreateAssessmentRequest struct {
	StartDate string `json:"start_date" validate:"omitempty"`
	EndDate   string `json:"end_date" validate:"omitempty"`
	CreatedBy string `json:"created_by" validate:"required"`
}

// UpdateStatusRequest transitions an assessment's lifecycle state.
type UpdateStatusRequest struct {
	Status    string `json:"status" validate:"required"`
	UpdatedBy string `json:"updated_by" validate:"required"`
}

// ResponseEditRequest is one answer change inside a batch.
type ResponseEditRequest struct {
	ResponseID string `json:"response_id" validate:"required"`
	Value      string `json:"value" validate:"required,oneof=Yes No NA"`
	Comments   string `json:"comments"`
}

// UpdateResponsesRequest carries a batch of answer edits.
type UpdateResponsesRequest struct {
	Role      string                `json:"role" validate:"required,oneof=Manager Reviewer"`
	UpdatedBy string                `json:"updated_by" validate:"required"`
	Responses []ResponseEditRequest `json:"responses" validate:"required,min=1,dive"`
}

// OverrideGradeRequest manually replaces one item's grade.
type OverrideGradeRequest struct {
	Grade     string `json:"grade" validate:"required,oneof=A B C D NA"`
	UpdatedBy string `json:"updated_by" validate:"required"`
}

// ReplayGradeCalculationRequest re-runs grading for one task.
type ReplayGradeCalculationRequest struct {
	AssessmentID string `json:"assessment_id" validate:"required"`
	TaskID       string `json:"grade_calculation_task_id" validate:"required"`
	Status       string `json:"status" validate:"required,oneof=Submitted Reviewed"`
}

// =============================================================================
// RESPONSE TYPES
// =============================================================================

// AssessmentDTO is the core assessment representation.
type AssessmentDTO struct {
	ID           string  `json:"id"`
	ProjectID    string  `json:"project_id"`
	ChecklistID  string  `json:"checklist_id"`
	Name         string  `json:"name"`
	StartDate    string  `json:"start_date"`
	EndDate      string  `json:"end_date"`
	Status       string  `json:"status"`
	OverallScore *string `json:"overall_score"`
	TechDebt     *int    `json:"tech_debt"`
	CreatedBy    string  `json:"created_by"`
	CreatedOn    string  `json:"created_on"`
	ModifiedBy   string  `json:"modified_by"`
	ModifiedOn   string  `json:"modified_on"`
}

// TrackSummaryDTO counts one track's answers per value. Total covers
// every row on the track, answered or not.
type TrackSummaryDTO struct {
	Yes   int `json:"yes"`
	No    int `json:"no"`
	NA    int `json:"na"`
	Total int `json:"total"`
}

// AssessmentSummaryDTO enriches an assessment with answer counts,
// delta counts and the active grade task for list and detail views.
type AssessmentSummaryDTO struct {
	AssessmentDTO
	ManagerSummary  TrackSummaryDTO `json:"manager_summary"`
	ReviewerSummary TrackSummaryDTO `json:"reviewer_summary"`
	ManagerDeltas   int             `json:"manager_deltas"`
	ReviewerDeltas  int             `json:"reviewer_deltas"`
	ActiveTask      *TaskDTO        `json:"active_task"`
}

// EditResultDTO is the per-edit outcome of a responses update.
type EditResultDTO struct {
	ResponseID string `json:"response_id"`
	Applied    bool   `json:"applied"`
	Failure    string `json:"failure,omitempty"`
	Message    string `json:"message,omitempty"`
}

// UpdateResponsesResponse wraps a batch's outcomes.
type UpdateResponsesResponse struct {
	Results []EditResultDTO `json:"results"`
	Applied int             `json:"applied"`
	Failed  int             `json:"failed"`
}

// TaskDTO reports a grade-calculation task's progress.
type TaskDTO struct {
	ID           string `json:"id"`
	AssessmentID string `json:"assessment_id"`
	Completed    bool   `json:"completed"`
	Active       bool   `json:"active"`
	CreatedOn    string `json:"created_on"`
	ModifiedOn   string `json:"modified_on"`
}

// ResultsDTO is the graded checklist tree for one assessment.
type ResultsDTO struct {
	Assessment AssessmentDTO   `json:"assessment"`
	Areas      []AreaResultDTO `json:"areas"`
}

type AreaResultDTO struct {
	ID       string             `json:"id"`
	Name     string             `json:"name"`
	Subareas []SubareaResultDTO `json:"subareas"`
}

type SubareaResultDTO struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	Score         *string         `json:"score"`
	TechDebtCount int             `json:"tech_debt_count"`
	Items         []ItemResultDTO `json:"items"`
}

type ItemResultDTO struct {
	ID                 string  `json:"id"`
	Name               string  `json:"name"`
	EffectiveWeightage string  `json:"effective_weightage"`
	Grade              string  `json:"grade"`
	Score              *string `json:"score"`
}

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toAssessmentDTO(a *assessment.Assessment) AssessmentDTO {
	dto := AssessmentDTO{
		ID:          string(a.ID),
		ProjectID:   string(a.ProjectID),
		ChecklistID: string(a.ChecklistID),
		Name:        a.Name,
		StartDate:   a.StartDate.Format(time.RFC3339),
		EndDate:     a.EndDate.Format(time.RFC3339),
		Status:      string(a.Status),
		TechDebt:    a.TechDebt,
		CreatedBy:   string(a.CreatedBy),
		CreatedOn:   a.CreatedOn.Format(time.RFC3339),
		ModifiedBy:  string(a.ModifiedBy),
		ModifiedOn:  a.ModifiedOn.Format(time.RFC3339),
	}
	if a.OverallScore != nil {
		s := a.OverallScore.String()
		dto.OverallScore = &s
	}
	return dto
}

func toTrackSummaryDTO(counts map[assessment.ResponseValue]int, total int) TrackSummaryDTO {
	return TrackSummaryDTO{
		Yes:   counts[assessment.AnswerYes],
		No:    counts[assessment.AnswerNo],
		NA:    counts[assessment.AnswerNA],
		Total: total,
	}
}

func toTaskDTO(t *assessment.GradeCalculationTask) TaskDTO {
	return TaskDTO{
		ID:           string(t.ID),
		AssessmentID: string(t.AssessmentID),
		Completed:    t.Completed,
		Active:       t.Active,
		CreatedOn:    t.CreatedOn.Format(time.RFC3339),
		ModifiedOn:   t.ModifiedOn.Format(time.RFC3339),
	}
}
