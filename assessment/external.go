/*
external.go - Boundaries to the surrounding platform

PURPOSE:
  The engine lives inside a larger multi-tenant audit platform. This
  file defines the narrow views of that platform the engine consumes:
  project and user directories, the domain event publisher, and the
  grade-calculation task queue.

KEY CONCEPTS:
  - ProjectDirectory/UserDirectory: read-only lookups the lifecycle
    guards against (active project, verified actor).
  - EventPublisher: fire-and-forget notifications. Publish failures are
    logged by callers, never propagated; a lost notification must not
    roll back a committed transition.
  - TaskQueue: hands GradeCalculationJob payloads to the background
    worker. Enqueue happens after the triggering transaction commits,
    so a delivered job always has a readable task row behind it.
*/
package assessment

import "context"

// =============================================================================
// PROJECTS
// =============================================================================

// Project is the engine's view of a platform project. Fields the
// engine does not read (owners, account metadata) are omitted.
type Project struct {
	ID             ProjectID
	AccountID      string
	Name           string
	IsActive       bool
	AuditFrequency AuditFrequency
}

type ProjectDirectory interface {
	// GetProject returns KindNotFound for unknown ids.
	GetProject(ctx context.Context, id ProjectID) (*Project, error)
}

// =============================================================================
// USERS
// =============================================================================

type User struct {
	ID     UserID
	Email  string
	Status UserStatus
}

type UserDirectory interface {
	// GetUser returns KindNotFound for unknown ids.
	GetUser(ctx context.Context, id UserID) (*User, error)
}

// =============================================================================
// DOMAIN EVENTS
// =============================================================================

// Event names published by the lifecycle.
const (
	EventAssessmentCreated = "assessment.created"
	EventAssessmentUpdated = "assessment.updated"
)

// EventPublisher receives lifecycle notifications. Implementations
// must not block for long; the lifecycle calls Publish after commit
// and only logs errors.
type EventPublisher interface {
	Publish(ctx context.Context, event string, assessmentID AssessmentID) error
}

// NopPublisher discards all events.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, AssessmentID) error { return nil }

// =============================================================================
// GRADE CALCULATION QUEUE
// =============================================================================

// GradeCalculationJob is the payload handed to the background worker
// when an assessment reaches Submitted or Reviewed.
type GradeCalculationJob struct {
	AssessmentID AssessmentID     `json:"assessment_id"`
	TaskID       TaskID           `json:"grade_calculation_task_id"`
	Trigger      AssessmentStatus `json:"status"`
}

// TaskQueue accepts jobs for asynchronous grading. Delivery is
// at-least-once: the worker tolerates duplicates by checking the task
// token before writing scores.
type TaskQueue interface {
	Enqueue(ctx context.Context, job GradeCalculationJob) error
}
