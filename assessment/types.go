/*
Package assessment provides the core audit-assessment engine.

PURPOSE:
  This package contains the domain types and algorithms for managing
  periodic compliance assessments: a read-only checklist hierarchy,
  dual-track (manager/reviewer) answers per checklist activity, a
  lifecycle state machine over assessment status, delta tracking
  between audit cycles, and a grading engine that rolls per-activity
  answers up into item grades, subarea scores, and one overall score.

KEY CONCEPTS IN THIS FILE (types.go):
  - Checklist tree: Checklist → Area → Subarea → Item → Activity
  - Assessment: one audit cycle of a project against a checklist snapshot
  - Response: a Yes/No/NA answer on one activity, on one of two tracks
  - ResponseDelta: an audit-trail row recording a prior cycle's answer
  - GradeCalculationTask: single-writer token for asynchronous grading
  - ItemScore / SubareaScore: grading output, upserted per assessment

DESIGN PRINCIPLES:
  1. Closed enums: statuses, grades, and answer values are typed strings
     validated at the boundary; unknown values never enter the engine.
  2. Precision: weightages and scores use decimal.Decimal, never float64.
  3. Explicit unit of work: every mutating operation receives a Store
     handle scoped to one transaction; there is no process-wide session.

SEE ALSO:
  - lifecycle.go: status state machine and assessment creation
  - grading.go: grade derivation and score roll-up
  - delta.go: manager/reviewer delta capture
  - store.go: persistence interfaces
*/
package assessment

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type (
	ChecklistID  string
	AreaID       string
	SubareaID    string
	ItemID       string
	ActivityID   string
	AssessmentID string
	ResponseID   string
	DeltaID      string
	TaskID       string
	ProjectID    string
	UserID       string
)

// NewID returns a fresh UUID string for any entity identifier.
func NewID() string {
	return uuid.NewString()
}

// =============================================================================
// ENUMS - Closed sets, validated at the boundary
// =============================================================================

// AssessmentStatus is the lifecycle state of one audit cycle.
type AssessmentStatus string

const (
	StatusToDo        AssessmentStatus = "ToDo"
	StatusInProgress  AssessmentStatus = "InProgress"
	StatusSubmitted   AssessmentStatus = "Submitted"
	StatusExpired     AssessmentStatus = "Expired"
	StatusUnderReview AssessmentStatus = "UnderReview"
	StatusDeclined    AssessmentStatus = "Declined"
	StatusReviewed    AssessmentStatus = "Reviewed"
)

func (s AssessmentStatus) Valid() bool {
	switch s {
	case StatusToDo, StatusInProgress, StatusSubmitted, StatusExpired,
		StatusUnderReview, StatusDeclined, StatusReviewed:
		return true
	}
	return false
}

// ParseAssessmentStatus rejects unknown status strings with InvalidInput.
func ParseAssessmentStatus(s string) (AssessmentStatus, error) {
	status := AssessmentStatus(s)
	if !status.Valid() {
		return "", InvalidInputf("unrecognized assessment status %q", s)
	}
	return status, nil
}

// ResponseValue is a single activity answer. The zero value means the
// activity has not been answered yet (persisted as NULL).
type ResponseValue string

const (
	AnswerYes ResponseValue = "Yes"
	AnswerNo  ResponseValue = "No"
	AnswerNA  ResponseValue = "NA"
)

func (v ResponseValue) Valid() bool {
	return v == AnswerYes || v == AnswerNo || v == AnswerNA
}

// Answered reports whether the value has been filled at all.
func (v ResponseValue) Answered() bool { return v != "" }

func ParseResponseValue(s string) (ResponseValue, error) {
	v := ResponseValue(s)
	if !v.Valid() {
		return "", InvalidInputf("incorrect response value %q", s)
	}
	return v, nil
}

// ResponseType distinguishes the two parallel answer tracks.
type ResponseType string

const (
	ManagerResponse  ResponseType = "ManagerResponse"
	ReviewerResponse ResponseType = "ReviewerResponse"
)

// Role is the caller-side counterpart of ResponseType.
type Role string

const (
	RoleManager  Role = "Manager"
	RoleReviewer Role = "Reviewer"
)

func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleManager, RoleReviewer:
		return Role(s), nil
	}
	return "", InvalidInputf("unrecognized role %q", s)
}

// ResponseType returns the track a role is allowed to write.
// Managers write ManagerResponse rows only; reviewers write
// ReviewerResponse rows only.
func (r Role) ResponseType() ResponseType {
	if r == RoleReviewer {
		return ReviewerResponse
	}
	return ManagerResponse
}

// DeltaType tags which comparison produced a delta row.
type DeltaType string

const (
	// ManagerDelta: the manager's answer changed since the last
	// submitted-or-later cycle. Captured when an assessment is submitted.
	ManagerDelta DeltaType = "ManagerDelta"

	// ReviewerDelta: the reviewer's final answer in the last reviewed
	// cycle differed from the manager's. Captured at assessment creation.
	ReviewerDelta DeltaType = "ReviewerDelta"
)

// ItemGrade is the derived letter grade of one checklist item.
// The zero value means the item has not been graded yet.
type ItemGrade string

const (
	GradeA  ItemGrade = "A"
	GradeB  ItemGrade = "B"
	GradeC  ItemGrade = "C"
	GradeD  ItemGrade = "D"
	GradeNA ItemGrade = "NA"
)

func (g ItemGrade) Valid() bool {
	switch g {
	case GradeA, GradeB, GradeC, GradeD, GradeNA:
		return true
	}
	return false
}

func ParseItemGrade(s string) (ItemGrade, error) {
	g := ItemGrade(s)
	if !g.Valid() {
		return "", InvalidInputf("unrecognized item grade %q", s)
	}
	return g, nil
}

// ActivityImportance tiers an activity's weight inside its item.
type ActivityImportance string

const (
	MostImportantMustHave ActivityImportance = "MIMH"
	MustHave              ActivityImportance = "MH"
	GoodToHave            ActivityImportance = "GH"
)

// ChecklistStatus is the publication state of a checklist version.
type ChecklistStatus string

const (
	ChecklistUnPublished ChecklistStatus = "UnPublished"
	ChecklistPublished   ChecklistStatus = "Published"
	ChecklistUnderReview ChecklistStatus = "UnderReview"
	ChecklistDeclined    ChecklistStatus = "Declined"
)

// AuditFrequency is how often a project runs an assessment cycle.
type AuditFrequency string

const (
	Monthly    AuditFrequency = "Monthly"
	Quarterly  AuditFrequency = "Quarterly"
	HalfYearly AuditFrequency = "HalfYearly"
	Yearly     AuditFrequency = "Yearly"
)

func (f AuditFrequency) Valid() bool {
	switch f {
	case Monthly, Quarterly, HalfYearly, Yearly:
		return true
	}
	return false
}

// UserStatus gates who may mutate assessment state.
type UserStatus string

const (
	UserVerified   UserStatus = "Verified"
	UserUnverified UserStatus = "Unverified"
	UserInactive   UserStatus = "Inactive"
)

// =============================================================================
// CHECKLIST TREE - Immutable per checklist version
// =============================================================================

type Checklist struct {
	ID       ChecklistID
	Name     string
	Status   ChecklistStatus
	IsActive bool
}

type Area struct {
	ID          AreaID
	ChecklistID ChecklistID
	Name        string
	Weightage   decimal.Decimal
}

type Subarea struct {
	ID        SubareaID
	AreaID    AreaID
	Name      string
	Weightage decimal.Decimal
}

type Item struct {
	ID        ItemID
	SubareaID SubareaID
	Name      string
	Weightage decimal.Decimal

	// EffectiveWeightage is the weight used by grading; it already
	// folds in the ancestors' weightages.
	EffectiveWeightage decimal.Decimal
}

type Activity struct {
	ID         ActivityID
	ItemID     ItemID
	Name       string
	Importance ActivityImportance
}

// =============================================================================
// ASSESSMENT - One audit cycle
// =============================================================================

type Assessment struct {
	ID          AssessmentID
	ProjectID   ProjectID
	ChecklistID ChecklistID
	Name        string
	StartDate   time.Time // date precision
	EndDate     time.Time // date precision
	Status      AssessmentStatus

	// Populated only by the grading engine on the Reviewed run.
	OverallScore *decimal.Decimal
	TechDebt     *int

	CreatedBy  UserID
	CreatedOn  time.Time
	ModifiedBy UserID
	ModifiedOn time.Time
}

// Response is one answer on one activity, on one track. Two rows exist
// per (assessment, activity) pair for the assessment's whole lifetime.
type Response struct {
	ID           ResponseID
	AssessmentID AssessmentID
	ActivityID   ActivityID
	Type         ResponseType
	Value        ResponseValue // zero value = unanswered
	Comments     string
	CreatedBy    UserID
	ModifiedBy   UserID
	ModifiedOn   time.Time
}

// ResponseDelta is an append-only audit row recording a prior cycle's
// answer that differs from the current cycle's. Never updated, never
// deleted.
type ResponseDelta struct {
	ID                   DeltaID
	ActivityID           ActivityID
	AssessmentID         AssessmentID
	PreviousAssessmentID AssessmentID
	Type                 DeltaType
	PreviousValue        ResponseValue
	PreviousComments     string
	CreatedBy            UserID
	CreatedOn            time.Time
}

// GradeCalculationTask is the single-writer token for one grading run.
// At most one task is active per assessment; enqueueing a new run
// deactivates the previous task, and a worker finishing a deactivated
// task discards its result.
type GradeCalculationTask struct {
	ID           TaskID
	AssessmentID AssessmentID
	Completed    bool // status column: true once grading committed
	Active       bool
	CreatedOn    time.Time
	ModifiedOn   time.Time
}

// =============================================================================
// GRADING OUTPUT - Upserted, keyed per assessment
// =============================================================================

// ItemScore is unique per (item, assessment). A nil Score means NA.
type ItemScore struct {
	ItemID       ItemID
	AssessmentID AssessmentID
	Grade        ItemGrade // zero value = placeholder, not graded yet
	Score        *decimal.Decimal
	CreatedBy    UserID
	ModifiedOn   time.Time
}

// SubareaScore is unique per (subarea, assessment). Computed only,
// never written manually.
type SubareaScore struct {
	SubareaID     SubareaID
	AssessmentID  AssessmentID
	Score         *decimal.Decimal
	TechDebtCount int
	ModifiedOn    time.Time
}
