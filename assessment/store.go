/*
store.go - Persistence interfaces for the assessment engine

PURPOSE:
  Defines the interface between the engine and the database. Different
  implementations can use SQLite or in-memory storage; the engine never
  touches database/sql directly.

KEY INTERFACES:
  ChecklistStore  Read-only checklist tree lookups
  AssessmentStore Assessment rows and prior-cycle queries
  ResponseStore   Dual-track answer rows
  DeltaStore      Append-only delta rows
  TaskStore       Grade-calculation task token
  ScoreStore      Item/subarea score upserts
  Store           All of the above, scoped to one connection or tx
  TxStore         Store plus WithTx for atomic multi-row writes

UNIT OF WORK:
  Mutating engine operations run inside TxStore.WithTx: the closure
  receives a Store handle bound to the transaction, and every read and
  write inside the closure sees the transaction's state. There is no
  process-wide session. If the closure errors, everything rolls back.

LOOKUP CONTRACT:
  Single-entity lookups return (*T, error) and NEVER (nil, nil): a
  missing row is a KindNotFound error, so callers cannot accidentally
  dereference a missing entity.

IMPLEMENTATIONS:
  - store/sqlite: production SQLite
  - assessment/store: in-memory for tests
*/
package assessment

import "context"

// =============================================================================
// CHECKLIST TREE (read-only)
// =============================================================================

// ChecklistStore provides read-only lookups over the checklist
// hierarchy. Creation and upload of checklists is an external batch
// process; the engine never mutates the tree.
type ChecklistStore interface {
	GetChecklist(ctx context.Context, id ChecklistID) (*Checklist, error)

	// ActiveChecklist returns the single is_active checklist.
	ActiveChecklist(ctx context.Context) (*Checklist, error)

	AreasByChecklist(ctx context.Context, id ChecklistID) ([]Area, error)
	SubareasByArea(ctx context.Context, id AreaID) ([]Subarea, error)
	ItemsBySubarea(ctx context.Context, id SubareaID) ([]Item, error)
	ActivitiesByItem(ctx context.Context, id ItemID) ([]Activity, error)

	GetArea(ctx context.Context, id AreaID) (*Area, error)
	GetSubarea(ctx context.Context, id SubareaID) (*Subarea, error)
	GetItem(ctx context.Context, id ItemID) (*Item, error)
}

// =============================================================================
// ASSESSMENTS
// =============================================================================

type AssessmentStore interface {
	CreateAssessment(ctx context.Context, a *Assessment) error
	UpdateAssessment(ctx context.Context, a *Assessment) error
	GetAssessment(ctx context.Context, id AssessmentID) (*Assessment, error)
	ListAssessments(ctx context.Context, projectID ProjectID, status AssessmentStatus) ([]Assessment, error)

	// AssessmentNameExists checks name uniqueness within a project.
	AssessmentNameExists(ctx context.Context, projectID ProjectID, name string) (bool, error)

	// LatestAssessment returns the project's most recent assessment by
	// start date, optionally filtered to the given statuses and
	// excluding one id. A project with no matching assessment is
	// KindNotFound (callers treat that as "no prior cycle").
	LatestAssessment(ctx context.Context, projectID ProjectID, statuses []AssessmentStatus, exclude AssessmentID) (*Assessment, error)
}

// =============================================================================
// RESPONSES
// =============================================================================

type ResponseStore interface {
	// CreateResponses persists a batch of answer rows atomically.
	CreateResponses(ctx context.Context, responses []Response) error

	GetResponse(ctx context.Context, id ResponseID) (*Response, error)
	UpdateResponse(ctx context.Context, r *Response) error

	// ResponsesByAssessment returns one track's rows for an assessment.
	ResponsesByAssessment(ctx context.Context, id AssessmentID, typ ResponseType) ([]Response, error)

	// ResponseSummary counts answers per value for one track, for the
	// assessment list/detail views.
	ResponseSummary(ctx context.Context, id AssessmentID, typ ResponseType) (map[ResponseValue]int, error)
}

// =============================================================================
// DELTAS (append-only)
// =============================================================================

type DeltaStore interface {
	// CreateDeltas appends delta rows atomically. There is no update
	// and no delete; deltas are an audit trail.
	CreateDeltas(ctx context.Context, deltas []ResponseDelta) error

	DeltasByAssessment(ctx context.Context, id AssessmentID, typ DeltaType) ([]ResponseDelta, error)
	CountDeltas(ctx context.Context, id AssessmentID, typ DeltaType) (int, error)
}

// =============================================================================
// GRADE CALCULATION TASKS
// =============================================================================

type TaskStore interface {
	CreateTask(ctx context.Context, t *GradeCalculationTask) error
	UpdateTask(ctx context.Context, t *GradeCalculationTask) error
	GetTask(ctx context.Context, id TaskID) (*GradeCalculationTask, error)

	// ActiveTask returns the assessment's single active task, or
	// KindNotFound when no task is active.
	ActiveTask(ctx context.Context, id AssessmentID) (*GradeCalculationTask, error)
}

// =============================================================================
// SCORES
// =============================================================================

type ScoreStore interface {
	// UpsertItemScore creates or updates the row keyed on
	// (item_id, assessment_id). Grading must be idempotent, so this is
	// never an insert-only operation.
	UpsertItemScore(ctx context.Context, s *ItemScore) error
	GetItemScore(ctx context.Context, assessmentID AssessmentID, itemID ItemID) (*ItemScore, error)
	ItemScoresByAssessment(ctx context.Context, id AssessmentID) ([]ItemScore, error)

	// UpsertSubareaScore creates or updates the row keyed on
	// (subarea_id, assessment_id).
	UpsertSubareaScore(ctx context.Context, s *SubareaScore) error
	SubareaScoresByAssessment(ctx context.Context, id AssessmentID) ([]SubareaScore, error)
}

// =============================================================================
// AGGREGATE STORE
// =============================================================================

// Store is the full persistence surface, bound either to the root
// connection or to one transaction inside WithTx.
type Store interface {
	ChecklistStore
	AssessmentStore
	ResponseStore
	DeltaStore
	TaskStore
	ScoreStore
}

// TxStore adds transaction support. Engine operations that touch more
// than one row run their writes inside WithTx; partial application on
// crash is not acceptable anywhere except the per-edit response update.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction. If fn returns an error
	// the transaction is rolled back, otherwise it is committed.
	WithTx(ctx context.Context, fn func(Store) error) error
}
