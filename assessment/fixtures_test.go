package assessment_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tenet/assessment-engine/assessment"
	"github.com/tenet/assessment-engine/assessment/store"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

const (
	checklistID = assessment.ChecklistID("cl-1")
	projectID   = assessment.ProjectID("proj-1")
	managerID   = assessment.UserID("user-manager")
	reviewerID  = assessment.UserID("user-reviewer")
)

// fixedNow keeps every test inside Q1 2026.
func fixedNow() time.Time {
	return time.Date(2026, time.February, 10, 12, 0, 0, 0, time.UTC)
}

func dec(s string) decimal.Decimal {
	d, _ := decimal.NewFromString(s)
	return d
}

// newSeededStore builds a memory store with a small published tree:
//
//	area-1
//	  sub-1
//	    item-1 (ew 10): act-1 MIMH, act-2 MH, act-3 GH
//	    item-2 (ew 5):  act-4 MH
//	  sub-2
//	    item-3 (ew 8):  act-5 GH
//
// plus an active project and two verified users.
func newSeededStore() *store.Memory {
	m := store.NewMemory()
	m.SeedChecklist(assessment.Checklist{
		ID: checklistID, Name: "Engineering Excellence v3",
		Status: assessment.ChecklistPublished, IsActive: true,
	})
	m.SeedArea(assessment.Area{ID: "area-1", ChecklistID: checklistID, Name: "Delivery", Weightage: dec("100")})
	m.SeedSubarea(assessment.Subarea{ID: "sub-1", AreaID: "area-1", Name: "Code Quality", Weightage: dec("60")})
	m.SeedSubarea(assessment.Subarea{ID: "sub-2", AreaID: "area-1", Name: "Operations", Weightage: dec("40")})

	m.SeedItem(assessment.Item{ID: "item-1", SubareaID: "sub-1", Name: "Reviews", Weightage: dec("10"), EffectiveWeightage: dec("10")})
	m.SeedItem(assessment.Item{ID: "item-2", SubareaID: "sub-1", Name: "Static Analysis", Weightage: dec("5"), EffectiveWeightage: dec("5")})
	m.SeedItem(assessment.Item{ID: "item-3", SubareaID: "sub-2", Name: "Alerting", Weightage: dec("8"), EffectiveWeightage: dec("8")})

	m.SeedActivity(assessment.Activity{ID: "act-1", ItemID: "item-1", Name: "All merges reviewed", Importance: assessment.MostImportantMustHave})
	m.SeedActivity(assessment.Activity{ID: "act-2", ItemID: "item-1", Name: "Review SLA met", Importance: assessment.MustHave})
	m.SeedActivity(assessment.Activity{ID: "act-3", ItemID: "item-1", Name: "Review checklist used", Importance: assessment.GoodToHave})
	m.SeedActivity(assessment.Activity{ID: "act-4", ItemID: "item-2", Name: "Linters in CI", Importance: assessment.MustHave})
	m.SeedActivity(assessment.Activity{ID: "act-5", ItemID: "item-3", Name: "Runbooks linked", Importance: assessment.GoodToHave})

	m.SeedProject(assessment.Project{
		ID: projectID, AccountID: "acct-1", Name: "Payments",
		IsActive: true, AuditFrequency: assessment.Quarterly,
	})
	m.SeedUser(assessment.User{ID: managerID, Email: "manager@example.com", Status: assessment.UserVerified})
	m.SeedUser(assessment.User{ID: reviewerID, Email: "reviewer@example.com", Status: assessment.UserVerified})
	return m
}

// recordingQueue captures enqueued jobs for assertions.
type recordingQueue struct {
	jobs []assessment.GradeCalculationJob
	fail bool
}

func (q *recordingQueue) Enqueue(_ context.Context, job assessment.GradeCalculationJob) error {
	if q.fail {
		return assessment.Transientf(nil, "queue full")
	}
	q.jobs = append(q.jobs, job)
	return nil
}

// recordingPublisher captures published events.
type recordingPublisher struct {
	events []string
}

func (p *recordingPublisher) Publish(_ context.Context, event string, _ assessment.AssessmentID) error {
	p.events = append(p.events, event)
	return nil
}

// newTestLifecycle wires a lifecycle over the seeded store with a
// deterministic clock.
func newTestLifecycle(m *store.Memory) (*assessment.Lifecycle, *recordingQueue, *recordingPublisher) {
	q := &recordingQueue{}
	p := &recordingPublisher{}
	l := assessment.NewLifecycle(m, m, m, p, q)
	l.Now = fixedNow
	return l, q, p
}

// answerAll sets every response on one track to the given value,
// bypassing the edit-state guards.
func answerAll(t *testing.T, m *store.Memory, id assessment.AssessmentID, typ assessment.ResponseType, value assessment.ResponseValue) {
	t.Helper()
	ctx := context.Background()
	rows, err := m.ResponsesByAssessment(ctx, id, typ)
	if err != nil {
		t.Fatalf("loading responses: %v", err)
	}
	for i := range rows {
		rows[i].Value = value
		if err := m.UpdateResponse(ctx, &rows[i]); err != nil {
			t.Fatalf("updating response: %v", err)
		}
	}
}

// answer sets the response for one activity on one track.
func answer(t *testing.T, m *store.Memory, id assessment.AssessmentID, typ assessment.ResponseType, activity assessment.ActivityID, value assessment.ResponseValue, comments string) {
	t.Helper()
	ctx := context.Background()
	rows, err := m.ResponsesByAssessment(ctx, id, typ)
	if err != nil {
		t.Fatalf("loading responses: %v", err)
	}
	for i := range rows {
		if rows[i].ActivityID == activity {
			rows[i].Value = value
			rows[i].Comments = comments
			if err := m.UpdateResponse(ctx, &rows[i]); err != nil {
				t.Fatalf("updating response: %v", err)
			}
			return
		}
	}
	t.Fatalf("no %s response for activity %s", typ, activity)
}

// createAssessment runs Lifecycle.Create and fails the test on error.
func createAssessment(t *testing.T, l *assessment.Lifecycle) *assessment.Assessment {
	t.Helper()
	a, err := l.Create(context.Background(), projectID, time.Time{}, time.Time{}, managerID)
	if err != nil {
		t.Fatalf("creating assessment: %v", err)
	}
	return a
}

// advance walks an assessment through the given statuses in order.
func advance(t *testing.T, l *assessment.Lifecycle, id assessment.AssessmentID, statuses ...assessment.AssessmentStatus) *assessment.Assessment {
	t.Helper()
	var a *assessment.Assessment
	var err error
	for _, s := range statuses {
		a, err = l.UpdateStatus(context.Background(), projectID, id, s, managerID)
		if err != nil {
			t.Fatalf("transition to %s: %v", s, err)
		}
	}
	return a
}
