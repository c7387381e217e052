/*
lifecycle.go - Assessment creation and status state machine

PURPOSE:
  Owns the two entry points that move an audit cycle through its life:
  creating a new assessment for a project, and transitioning its
  status. Every guard (active project, verified actor, published
  checklist, legal transition) lives here so storage and grading can
  assume well-formed state.

STATE MACHINE:
  ToDo -> InProgress -> Submitted -> UnderReview -> Reviewed (terminal)
                ^            |            |
                |            v            v
                +------- InProgress    Declined -> ToDo | InProgress

  Expired and ToDo are never valid transition targets from the API;
  Expired is applied by an external sweep, ToDo only at creation.

SIDE EFFECTS:
  - Creation captures reviewer deltas, seeds placeholder item scores,
    and pre-fills both response tracks with carry-forward answers.
  - Submitted captures manager deltas and enqueues a grading run.
  - Reviewed enqueues the final grading run.
  All writes happen in one transaction. The grading job enqueues only
  after commit so the consumer can never receive a job whose task row
  is still uncommitted; the created and updated events likewise
  publish after commit and are best-effort.
*/
package assessment

import (
	"context"
	"fmt"
	"log"
	"time"
)

// transitions lists the allowed next statuses per current status.
var transitions = map[AssessmentStatus][]AssessmentStatus{
	StatusToDo:        {StatusInProgress},
	StatusInProgress:  {StatusInProgress, StatusSubmitted},
	StatusSubmitted:   {StatusUnderReview, StatusInProgress},
	StatusUnderReview: {StatusReviewed, StatusDeclined},
	StatusDeclined:    {StatusToDo, StatusInProgress},
	StatusReviewed:    nil,
	StatusExpired:     nil,
}

func transitionAllowed(from, to AssessmentStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Lifecycle is the assessment lifecycle service.
type Lifecycle struct {
	Store    TxStore
	Projects ProjectDirectory
	Users    UserDirectory
	Events   EventPublisher
	Queue    TaskQueue
	Now      func() time.Time
}

func NewLifecycle(st TxStore, projects ProjectDirectory, users UserDirectory, events EventPublisher, queue TaskQueue) *Lifecycle {
	return &Lifecycle{
		Store:    st,
		Projects: projects,
		Users:    users,
		Events:   events,
		Queue:    queue,
		Now:      time.Now,
	}
}

// =============================================================================
// CREATION
// =============================================================================

// Create starts a new audit cycle for a project against the active
// checklist. Callers may pin the cycle to an explicit start and end
// date; when both are zero the period derives from the project's
// audit frequency and the current time. The cycle's name comes from
// the frequency and the period start; name collisions within the
// project get a numeric suffix.
func (l *Lifecycle) Create(ctx context.Context, projectID ProjectID, start, end time.Time, actor UserID) (*Assessment, error) {
	project, err := l.Projects.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if !project.IsActive {
		return nil, InvalidStatef("project %s is not active", projectID)
	}
	if err := l.requireVerified(ctx, actor); err != nil {
		return nil, err
	}

	checklist, err := l.Store.ActiveChecklist(ctx)
	if err != nil {
		return nil, err
	}
	if checklist.Status != ChecklistPublished {
		return nil, InvalidStatef("active checklist %s is %s, not Published", checklist.ID, checklist.Status)
	}

	now := l.Now().UTC()
	period, err := assessmentPeriod(project.AuditFrequency, start, end, now)
	if err != nil {
		return nil, err
	}
	name, err := l.uniqueName(ctx, projectID, AssessmentName(project.AuditFrequency, period.Start))
	if err != nil {
		return nil, err
	}

	a := &Assessment{
		ID:          AssessmentID(NewID()),
		ProjectID:   projectID,
		ChecklistID: checklist.ID,
		Name:        name,
		StartDate:   period.Start,
		EndDate:     period.End,
		Status:      StatusToDo,
		CreatedBy:   actor,
		CreatedOn:   now,
		ModifiedBy:  actor,
		ModifiedOn:  now,
	}

	err = l.Store.WithTx(ctx, func(tx Store) error {
		tree, err := LoadTree(ctx, tx, checklist.ID)
		if err != nil {
			return err
		}
		if err := tx.CreateAssessment(ctx, a); err != nil {
			return err
		}
		if err := CaptureReviewerDelta(ctx, tx, a, actor, now); err != nil {
			return err
		}
		// Placeholder score rows so results render before grading runs.
		for _, item := range tree.AllItems() {
			if err := tx.UpsertItemScore(ctx, &ItemScore{
				ItemID:       item.ID,
				AssessmentID: a.ID,
				CreatedBy:    actor,
				ModifiedOn:   now,
			}); err != nil {
				return err
			}
		}
		return initializeResponses(ctx, tx, tree, a, actor, now)
	})
	if err != nil {
		return nil, err
	}

	l.publish(ctx, EventAssessmentCreated, a.ID)
	return a, nil
}

// assessmentPeriod resolves the cycle's date range. Both dates zero
// means the period containing now; a supplied range must be complete
// and ordered.
func assessmentPeriod(freq AuditFrequency, start, end, now time.Time) (Period, error) {
	switch {
	case start.IsZero() && end.IsZero():
		return CurrentPeriod(freq, now), nil
	case start.IsZero() || end.IsZero():
		return Period{}, InvalidInputf("start and end dates must be supplied together")
	case !end.After(start):
		return Period{}, InvalidInputf("assessment end date must fall after its start date")
	}
	return Period{Start: start.UTC(), End: end.UTC()}, nil
}

// uniqueName appends _1, _2, ... until the name is free in the project.
func (l *Lifecycle) uniqueName(ctx context.Context, projectID ProjectID, base string) (string, error) {
	name := base
	for suffix := 1; ; suffix++ {
		exists, err := l.Store.AssessmentNameExists(ctx, projectID, name)
		if err != nil {
			return "", err
		}
		if !exists {
			return name, nil
		}
		name = fmt.Sprintf("%s_%d", base, suffix)
	}
}

// =============================================================================
// TRANSITIONS
// =============================================================================

// UpdateStatus moves an assessment to a new status, enforcing the
// transition table and all actor/project guards. Submitted and
// Reviewed additionally rotate the grade-calculation task and enqueue
// a grading run in the same transaction.
func (l *Lifecycle) UpdateStatus(ctx context.Context, projectID ProjectID, assessmentID AssessmentID, target AssessmentStatus, actor UserID) (*Assessment, error) {
	if !target.Valid() {
		return nil, InvalidInputf("unrecognized assessment status %q", target)
	}
	if target == StatusExpired || target == StatusToDo {
		return nil, InvalidInputf("status %s cannot be set through a transition", target)
	}

	project, err := l.Projects.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if !project.IsActive {
		return nil, InvalidStatef("project %s is not active", projectID)
	}
	if err := l.requireVerified(ctx, actor); err != nil {
		return nil, err
	}

	a, err := l.Store.GetAssessment(ctx, assessmentID)
	if err != nil {
		return nil, err
	}
	if a.ProjectID != projectID {
		return nil, InvalidInputf("assessment %s does not belong to project %s", assessmentID, projectID)
	}
	if !transitionAllowed(a.Status, target) {
		return nil, InvalidStatef("assessment cannot move from %s to %s", a.Status, target)
	}

	now := l.Now().UTC()
	if target == StatusInProgress && now.Before(a.StartDate) {
		return nil, InvalidStatef("assessment period has not started yet")
	}

	var job GradeCalculationJob
	err = l.Store.WithTx(ctx, func(tx Store) error {
		a.Status = target
		a.ModifiedBy = actor
		a.ModifiedOn = now
		if err := tx.UpdateAssessment(ctx, a); err != nil {
			return err
		}

		if target == StatusSubmitted {
			if err := CaptureManagerDelta(ctx, tx, a, actor, now); err != nil {
				return err
			}
		}
		if target == StatusSubmitted || target == StatusReviewed {
			rotated, err := l.rotateTask(ctx, tx, a, target, now)
			if err != nil {
				return err
			}
			job = rotated
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if target == StatusSubmitted || target == StatusReviewed {
		// Enqueue only after commit: the consumer must never receive a
		// job whose task row could still roll back. If the publish
		// fails the transition stands and the committed active task is
		// recoverable through the grade-calculation replay endpoint.
		if err := l.Queue.Enqueue(ctx, job); err != nil {
			return nil, err
		}
		l.publish(ctx, EventAssessmentUpdated, a.ID)
	}
	return a, nil
}

// rotateTask deactivates any active grading task and mints a new one,
// returning the job to enqueue once the transaction commits.
func (l *Lifecycle) rotateTask(ctx context.Context, tx Store, a *Assessment, trigger AssessmentStatus, now time.Time) (GradeCalculationJob, error) {
	current, err := tx.ActiveTask(ctx, a.ID)
	switch {
	case err == nil:
		current.Active = false
		current.ModifiedOn = now
		if err := tx.UpdateTask(ctx, current); err != nil {
			return GradeCalculationJob{}, err
		}
	case IsNotFound(err):
	default:
		return GradeCalculationJob{}, err
	}

	task := &GradeCalculationTask{
		ID:           TaskID(NewID()),
		AssessmentID: a.ID,
		Active:       true,
		CreatedOn:    now,
		ModifiedOn:   now,
	}
	if err := tx.CreateTask(ctx, task); err != nil {
		return GradeCalculationJob{}, err
	}
	return GradeCalculationJob{
		AssessmentID: a.ID,
		TaskID:       task.ID,
		Trigger:      trigger,
	}, nil
}

func (l *Lifecycle) requireVerified(ctx context.Context, actor UserID) error {
	user, err := l.Users.GetUser(ctx, actor)
	if err != nil {
		return err
	}
	if user.Status != UserVerified {
		return InvalidStatef("user %s is not verified", actor)
	}
	return nil
}

func (l *Lifecycle) publish(ctx context.Context, event string, id AssessmentID) {
	if l.Events == nil {
		return
	}
	if err := l.Events.Publish(ctx, event, id); err != nil {
		log.Printf("[Lifecycle] publish %s for assessment %s failed: %v", event, id, err)
	}
}
