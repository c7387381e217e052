package assessment_test

import (
	"context"
	"testing"
	"time"

	"github.com/tenet/assessment-engine/assessment"
)

// =============================================================================
// CREATION
// =============================================================================

func TestCreateAssessment(t *testing.T) {
	m := newSeededStore()
	l, _, p := newTestLifecycle(m)

	a := createAssessment(t, l)

	if a.Status != assessment.StatusToDo {
		t.Errorf("status: got %s, want ToDo", a.Status)
	}
	if a.Name != "Quarterly-Q1-2026" {
		t.Errorf("name: got %q, want Quarterly-Q1-2026", a.Name)
	}
	if !a.StartDate.Equal(time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("start date: got %s", a.StartDate)
	}
	if a.ChecklistID != checklistID {
		t.Errorf("checklist: got %s", a.ChecklistID)
	}

	ctx := context.Background()

	// Both tracks exist for all five activities.
	manager, _ := m.ResponsesByAssessment(ctx, a.ID, assessment.ManagerResponse)
	reviewer, _ := m.ResponsesByAssessment(ctx, a.ID, assessment.ReviewerResponse)
	if len(manager) != 5 || len(reviewer) != 5 {
		t.Errorf("responses: got %d manager / %d reviewer, want 5/5", len(manager), len(reviewer))
	}
	for _, r := range manager {
		if r.Value.Answered() {
			t.Errorf("first cycle response %s should start unanswered", r.ID)
		}
	}

	// Placeholder score rows exist before grading ever runs.
	scores, _ := m.ItemScoresByAssessment(ctx, a.ID)
	if len(scores) != 3 {
		t.Errorf("placeholder scores: got %d, want 3", len(scores))
	}
	for _, s := range scores {
		if s.Grade != "" || s.Score != nil {
			t.Errorf("item %s: placeholder should be ungraded", s.ItemID)
		}
	}

	if len(p.events) != 1 || p.events[0] != assessment.EventAssessmentCreated {
		t.Errorf("events: got %v", p.events)
	}
}

func TestCreateAssessmentExplicitPeriod(t *testing.T) {
	// GIVEN: caller-supplied dates for next quarter's cycle
	m := newSeededStore()
	l, _, _ := newTestLifecycle(m)
	start := time.Date(2026, time.April, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, time.June, 30, 23, 59, 59, 0, time.UTC)

	// WHEN
	a, err := l.Create(context.Background(), projectID, start, end, managerID)
	if err != nil {
		t.Fatalf("creating assessment: %v", err)
	}

	// THEN: the supplied period sticks and names the cycle
	if a.Name != "Quarterly-Q2-2026" {
		t.Errorf("name: got %q, want Quarterly-Q2-2026", a.Name)
	}
	if !a.StartDate.Equal(start) || !a.EndDate.Equal(end) {
		t.Errorf("period: got %s .. %s", a.StartDate, a.EndDate)
	}
}

func TestCreateAssessmentRejectsBadPeriod(t *testing.T) {
	m := newSeededStore()
	l, _, _ := newTestLifecycle(m)
	ctx := context.Background()
	start := time.Date(2026, time.April, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, time.June, 30, 23, 59, 59, 0, time.UTC)

	t.Run("start without end", func(t *testing.T) {
		_, err := l.Create(ctx, projectID, start, time.Time{}, managerID)
		if !assessment.IsInvalidInput(err) {
			t.Errorf("got %v, want InvalidInput", err)
		}
	})

	t.Run("end without start", func(t *testing.T) {
		_, err := l.Create(ctx, projectID, time.Time{}, end, managerID)
		if !assessment.IsInvalidInput(err) {
			t.Errorf("got %v, want InvalidInput", err)
		}
	})

	t.Run("inverted range", func(t *testing.T) {
		_, err := l.Create(ctx, projectID, end, start, managerID)
		if !assessment.IsInvalidInput(err) {
			t.Errorf("got %v, want InvalidInput", err)
		}
	})
}

func TestCreateAssessmentNameCollision(t *testing.T) {
	m := newSeededStore()
	l, _, _ := newTestLifecycle(m)

	first := createAssessment(t, l)
	second := createAssessment(t, l)
	third := createAssessment(t, l)

	if first.Name != "Quarterly-Q1-2026" {
		t.Errorf("first: got %q", first.Name)
	}
	if second.Name != "Quarterly-Q1-2026_1" {
		t.Errorf("second: got %q, want Quarterly-Q1-2026_1", second.Name)
	}
	if third.Name != "Quarterly-Q1-2026_2" {
		t.Errorf("third: got %q, want Quarterly-Q1-2026_2", third.Name)
	}
}

func TestCreateAssessmentCarryForward(t *testing.T) {
	// GIVEN: a prior cycle with answers on both tracks
	m := newSeededStore()
	l, _, _ := newTestLifecycle(m)
	prior := createAssessment(t, l)
	answer(t, m, prior.ID, assessment.ManagerResponse, "act-1", assessment.AnswerYes, "stable since q3")
	answer(t, m, prior.ID, assessment.ReviewerResponse, "act-1", assessment.AnswerNo, "disagree")

	// WHEN: the next cycle is created
	next := createAssessment(t, l)

	// THEN: answers and comments carry forward per track
	manager, _ := m.ResponsesByAssessment(context.Background(), next.ID, assessment.ManagerResponse)
	for _, r := range manager {
		if r.ActivityID == "act-1" {
			if r.Value != assessment.AnswerYes || r.Comments != "stable since q3" {
				t.Errorf("manager carry-forward: got %s/%q", r.Value, r.Comments)
			}
		}
	}
	reviewer, _ := m.ResponsesByAssessment(context.Background(), next.ID, assessment.ReviewerResponse)
	for _, r := range reviewer {
		if r.ActivityID == "act-1" && r.Value != assessment.AnswerNo {
			t.Errorf("reviewer carry-forward: got %s", r.Value)
		}
	}
}

func TestCreateAssessmentGuards(t *testing.T) {
	ctx := context.Background()

	t.Run("inactive project", func(t *testing.T) {
		m := newSeededStore()
		m.SeedProject(assessment.Project{ID: "proj-frozen", IsActive: false, AuditFrequency: assessment.Monthly})
		l, _, _ := newTestLifecycle(m)
		_, err := l.Create(ctx, "proj-frozen", time.Time{}, time.Time{}, managerID)
		if !assessment.IsInvalidState(err) {
			t.Errorf("got %v, want InvalidState", err)
		}
	})

	t.Run("unknown project", func(t *testing.T) {
		m := newSeededStore()
		l, _, _ := newTestLifecycle(m)
		_, err := l.Create(ctx, "proj-nope", time.Time{}, time.Time{}, managerID)
		if !assessment.IsNotFound(err) {
			t.Errorf("got %v, want NotFound", err)
		}
	})

	t.Run("unverified actor", func(t *testing.T) {
		m := newSeededStore()
		m.SeedUser(assessment.User{ID: "user-new", Status: assessment.UserUnverified})
		l, _, _ := newTestLifecycle(m)
		_, err := l.Create(ctx, projectID, time.Time{}, time.Time{}, "user-new")
		if !assessment.IsInvalidState(err) {
			t.Errorf("got %v, want InvalidState", err)
		}
	})

	t.Run("unpublished checklist", func(t *testing.T) {
		m := newSeededStore()
		m.SeedChecklist(assessment.Checklist{
			ID: checklistID, Name: "draft",
			Status: assessment.ChecklistUnderReview, IsActive: true,
		})
		l, _, _ := newTestLifecycle(m)
		_, err := l.Create(ctx, projectID, time.Time{}, time.Time{}, managerID)
		if !assessment.IsInvalidState(err) {
			t.Errorf("got %v, want InvalidState", err)
		}
	})
}

// =============================================================================
// TRANSITIONS
// =============================================================================

func TestUpdateStatusHappyPath(t *testing.T) {
	m := newSeededStore()
	l, q, p := newTestLifecycle(m)
	a := createAssessment(t, l)

	got := advance(t, l, a.ID,
		assessment.StatusInProgress,
		assessment.StatusSubmitted,
		assessment.StatusUnderReview,
		assessment.StatusReviewed,
	)
	if got.Status != assessment.StatusReviewed {
		t.Errorf("status: got %s", got.Status)
	}

	// Submitted and Reviewed each enqueue one grading job.
	if len(q.jobs) != 2 {
		t.Fatalf("jobs: got %d, want 2", len(q.jobs))
	}
	if q.jobs[0].Trigger != assessment.StatusSubmitted || q.jobs[1].Trigger != assessment.StatusReviewed {
		t.Errorf("job triggers: got %s, %s", q.jobs[0].Trigger, q.jobs[1].Trigger)
	}

	// created + two updated events
	if len(p.events) != 3 {
		t.Errorf("events: got %v", p.events)
	}
}

func TestUpdateStatusRejectsIllegalTransitions(t *testing.T) {
	cases := []struct {
		name    string
		prepare []assessment.AssessmentStatus
		target  assessment.AssessmentStatus
	}{
		{"todo to submitted", nil, assessment.StatusSubmitted},
		{"todo to reviewed", nil, assessment.StatusReviewed},
		{"in-progress to under-review", []assessment.AssessmentStatus{assessment.StatusInProgress}, assessment.StatusUnderReview},
		{"reviewed is terminal", []assessment.AssessmentStatus{
			assessment.StatusInProgress, assessment.StatusSubmitted,
			assessment.StatusUnderReview, assessment.StatusReviewed,
		}, assessment.StatusInProgress},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m := newSeededStore()
			l, _, _ := newTestLifecycle(m)
			a := createAssessment(t, l)
			if len(tc.prepare) > 0 {
				advance(t, l, a.ID, tc.prepare...)
			}
			_, err := l.UpdateStatus(context.Background(), projectID, a.ID, tc.target, managerID)
			if !assessment.IsInvalidState(err) {
				t.Errorf("got %v, want InvalidState", err)
			}
		})
	}
}

func TestUpdateStatusRejectsForbiddenTargets(t *testing.T) {
	m := newSeededStore()
	l, _, _ := newTestLifecycle(m)
	a := createAssessment(t, l)

	for _, target := range []assessment.AssessmentStatus{assessment.StatusExpired, assessment.StatusToDo} {
		_, err := l.UpdateStatus(context.Background(), projectID, a.ID, target, managerID)
		if !assessment.IsInvalidInput(err) {
			t.Errorf("target %s: got %v, want InvalidInput", target, err)
		}
	}
}

func TestUpdateStatusBeforePeriodStart(t *testing.T) {
	m := newSeededStore()
	l, _, _ := newTestLifecycle(m)
	a := createAssessment(t, l)

	// Clock rewinds behind the period start.
	l.Now = func() time.Time {
		return time.Date(2025, time.December, 20, 0, 0, 0, 0, time.UTC)
	}
	_, err := l.UpdateStatus(context.Background(), projectID, a.ID, assessment.StatusInProgress, managerID)
	if !assessment.IsInvalidState(err) {
		t.Errorf("got %v, want InvalidState", err)
	}
}

func TestUpdateStatusWrongProject(t *testing.T) {
	m := newSeededStore()
	m.SeedProject(assessment.Project{ID: "proj-2", IsActive: true, AuditFrequency: assessment.Monthly})
	l, _, _ := newTestLifecycle(m)
	a := createAssessment(t, l)

	_, err := l.UpdateStatus(context.Background(), "proj-2", a.ID, assessment.StatusInProgress, managerID)
	if !assessment.IsInvalidInput(err) {
		t.Errorf("got %v, want InvalidInput", err)
	}
}

func TestResubmissionRotatesTask(t *testing.T) {
	// GIVEN: a submitted assessment with an active grading task
	m := newSeededStore()
	l, q, _ := newTestLifecycle(m)
	a := createAssessment(t, l)
	advance(t, l, a.ID, assessment.StatusInProgress, assessment.StatusSubmitted)
	firstTask := q.jobs[0].TaskID

	// WHEN: the manager pulls it back and resubmits
	advance(t, l, a.ID, assessment.StatusInProgress, assessment.StatusSubmitted)

	// THEN: the first task is deactivated and a fresh one is active
	ctx := context.Background()
	old, err := m.GetTask(ctx, firstTask)
	if err != nil {
		t.Fatalf("first task: %v", err)
	}
	if old.Active {
		t.Error("superseded task still active")
	}
	active, err := m.ActiveTask(ctx, a.ID)
	if err != nil {
		t.Fatalf("active task: %v", err)
	}
	if active.ID == firstTask {
		t.Error("active task was not rotated")
	}
	if q.jobs[1].TaskID != active.ID {
		t.Error("second job does not carry the fresh task")
	}
}

func TestSubmitSurvivesQueueRejection(t *testing.T) {
	m := newSeededStore()
	l, q, _ := newTestLifecycle(m)
	a := createAssessment(t, l)
	advance(t, l, a.ID, assessment.StatusInProgress)

	q.fail = true
	_, err := l.UpdateStatus(context.Background(), projectID, a.ID, assessment.StatusSubmitted, managerID)
	if !assessment.IsRetryable(err) {
		t.Errorf("got %v, want retryable", err)
	}

	// The transition committed before the publish failed, so the
	// active task stays behind for a replay to pick up.
	ctx := context.Background()
	got, _ := m.GetAssessment(ctx, a.ID)
	if got.Status != assessment.StatusSubmitted {
		t.Errorf("status: got %s, want Submitted despite the rejected publish", got.Status)
	}
	task, err := m.ActiveTask(ctx, a.ID)
	if err != nil {
		t.Fatalf("active task: %v", err)
	}
	if task.Completed {
		t.Error("task should await a replayed grading run")
	}
}

func TestDeclinedPathReopens(t *testing.T) {
	m := newSeededStore()
	l, _, _ := newTestLifecycle(m)
	a := createAssessment(t, l)

	got := advance(t, l, a.ID,
		assessment.StatusInProgress,
		assessment.StatusSubmitted,
		assessment.StatusUnderReview,
		assessment.StatusDeclined,
		assessment.StatusInProgress,
	)
	if got.Status != assessment.StatusInProgress {
		t.Errorf("status: got %s, want InProgress after decline", got.Status)
	}
}
