package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tenet/assessment-engine/assessment"
	"github.com/tenet/assessment-engine/store/sqlite"
)

func newStore(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func dec(s string) decimal.Decimal {
	d, _ := decimal.NewFromString(s)
	return d
}

var testTime = time.Date(2026, time.February, 10, 12, 0, 0, 0, time.UTC)

func seedAssessment(t *testing.T, s *sqlite.Store, id assessment.AssessmentID, name string, start time.Time, status assessment.AssessmentStatus) *assessment.Assessment {
	t.Helper()
	a := &assessment.Assessment{
		ID: id, ProjectID: "proj-1", ChecklistID: "cl-1", Name: name,
		StartDate: start, EndDate: start.AddDate(0, 3, 0).Add(-time.Second),
		Status:    status,
		CreatedBy: "user-1", CreatedOn: testTime,
		ModifiedBy: "user-1", ModifiedOn: testTime,
	}
	if err := s.CreateAssessment(context.Background(), a); err != nil {
		t.Fatalf("create assessment %s: %v", id, err)
	}
	return a
}

// =============================================================================
// REFERENCE DATA
// =============================================================================

func TestChecklistTreeRoundTrip(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	if err := s.SaveChecklist(ctx, assessment.Checklist{
		ID: "cl-1", Name: "Engineering Excellence", Status: assessment.ChecklistPublished, IsActive: true,
	}); err != nil {
		t.Fatalf("save checklist: %v", err)
	}
	if err := s.SaveArea(ctx, assessment.Area{ID: "area-1", ChecklistID: "cl-1", Name: "Delivery", Weightage: dec("100")}, 1); err != nil {
		t.Fatalf("save area: %v", err)
	}
	if err := s.SaveSubarea(ctx, assessment.Subarea{ID: "sub-1", AreaID: "area-1", Name: "Code Quality", Weightage: dec("60")}, 1); err != nil {
		t.Fatalf("save subarea: %v", err)
	}
	if err := s.SaveItem(ctx, assessment.Item{
		ID: "item-1", SubareaID: "sub-1", Name: "Reviews",
		Weightage: dec("10"), EffectiveWeightage: dec("6"),
	}, 1); err != nil {
		t.Fatalf("save item: %v", err)
	}
	if err := s.SaveActivity(ctx, assessment.Activity{
		ID: "act-1", ItemID: "item-1", Name: "Two approvals", Importance: assessment.MostImportantMustHave,
	}, 1); err != nil {
		t.Fatalf("save activity: %v", err)
	}

	cl, err := s.GetChecklist(ctx, "cl-1")
	if err != nil {
		t.Fatalf("get checklist: %v", err)
	}
	if cl.Name != "Engineering Excellence" || !cl.IsActive {
		t.Errorf("checklist round trip: %+v", cl)
	}

	active, err := s.ActiveChecklist(ctx)
	if err != nil {
		t.Fatalf("active checklist: %v", err)
	}
	if active.ID != "cl-1" {
		t.Errorf("active checklist: got %s", active.ID)
	}

	items, err := s.ItemsBySubarea(ctx, "sub-1")
	if err != nil {
		t.Fatalf("items: %v", err)
	}
	if len(items) != 1 || !items[0].EffectiveWeightage.Equal(dec("6")) {
		t.Errorf("item round trip: %+v", items)
	}

	acts, err := s.ActivitiesByItem(ctx, "item-1")
	if err != nil {
		t.Fatalf("activities: %v", err)
	}
	if len(acts) != 1 || acts[0].Importance != assessment.MostImportantMustHave {
		t.Errorf("activity round trip: %+v", acts)
	}
}

func TestSaveChecklistUpserts(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	cl := assessment.Checklist{ID: "cl-1", Name: "v1", Status: assessment.ChecklistPublished, IsActive: true}
	if err := s.SaveChecklist(ctx, cl); err != nil {
		t.Fatalf("first save: %v", err)
	}
	cl.Name = "v2"
	cl.IsActive = false
	if err := s.SaveChecklist(ctx, cl); err != nil {
		t.Fatalf("second save: %v", err)
	}

	got, err := s.GetChecklist(ctx, "cl-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Name != "v2" || got.IsActive {
		t.Errorf("upsert did not overwrite: %+v", got)
	}
	if _, err := s.ActiveChecklist(ctx); !assessment.IsNotFound(err) {
		t.Errorf("active checklist after deactivation: got %v, want not found", err)
	}
}

func TestAreaOrderingBySequence(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	s.SaveArea(ctx, assessment.Area{ID: "area-b", ChecklistID: "cl-1", Name: "Operations", Weightage: dec("40")}, 2)
	s.SaveArea(ctx, assessment.Area{ID: "area-a", ChecklistID: "cl-1", Name: "Delivery", Weightage: dec("60")}, 1)

	areas, err := s.AreasByChecklist(ctx, "cl-1")
	if err != nil {
		t.Fatalf("areas: %v", err)
	}
	if len(areas) != 2 || areas[0].ID != "area-a" || areas[1].ID != "area-b" {
		t.Errorf("ordering: %+v", areas)
	}
}

func TestProjectAndUserDirectory(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	if err := s.SaveProject(ctx, assessment.Project{
		ID: "proj-1", AccountID: "acct-1", Name: "Payments",
		IsActive: true, AuditFrequency: assessment.Quarterly,
	}); err != nil {
		t.Fatalf("save project: %v", err)
	}
	p, err := s.GetProject(ctx, "proj-1")
	if err != nil {
		t.Fatalf("get project: %v", err)
	}
	if p.AuditFrequency != assessment.Quarterly || !p.IsActive {
		t.Errorf("project round trip: %+v", p)
	}
	if _, err := s.GetProject(ctx, "proj-missing"); !assessment.IsNotFound(err) {
		t.Errorf("missing project: got %v", err)
	}

	if err := s.SaveUser(ctx, assessment.User{ID: "user-1", Email: "m@tenet.io", Status: assessment.UserVerified}); err != nil {
		t.Fatalf("save user: %v", err)
	}
	u, err := s.GetUser(ctx, "user-1")
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if u.Status != assessment.UserVerified {
		t.Errorf("user round trip: %+v", u)
	}
}

// =============================================================================
// ASSESSMENTS
// =============================================================================

func TestAssessmentRoundTrip(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	start := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	seedAssessment(t, s, "assess-1", "Quarterly-Q1-2026", start, assessment.StatusToDo)

	got, err := s.GetAssessment(ctx, "assess-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Name != "Quarterly-Q1-2026" || !got.StartDate.Equal(start) {
		t.Errorf("round trip: %+v", got)
	}
	if got.OverallScore != nil || got.TechDebt != nil {
		t.Errorf("fresh assessment carries scores: %+v", got)
	}

	// Grading output persists through an update.
	score := dec("87.5")
	debt := 3
	got.Status = assessment.StatusReviewed
	got.OverallScore = &score
	got.TechDebt = &debt
	got.ModifiedOn = testTime
	if err := s.UpdateAssessment(ctx, got); err != nil {
		t.Fatalf("update: %v", err)
	}

	again, _ := s.GetAssessment(ctx, "assess-1")
	if again.Status != assessment.StatusReviewed {
		t.Errorf("status: got %s", again.Status)
	}
	if again.OverallScore == nil || !again.OverallScore.Equal(score) {
		t.Errorf("overall score: %+v", again.OverallScore)
	}
	if again.TechDebt == nil || *again.TechDebt != 3 {
		t.Errorf("tech debt: %+v", again.TechDebt)
	}

	if _, err := s.GetAssessment(ctx, "assess-missing"); !assessment.IsNotFound(err) {
		t.Errorf("missing assessment: got %v", err)
	}
	if err := s.UpdateAssessment(ctx, &assessment.Assessment{ID: "assess-missing", ModifiedOn: testTime}); !assessment.IsNotFound(err) {
		t.Errorf("update missing: got %v", err)
	}
}

func TestListAssessmentsStatusFilter(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	q1 := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	q2 := time.Date(2026, time.April, 1, 0, 0, 0, 0, time.UTC)
	seedAssessment(t, s, "assess-1", "Quarterly-Q1-2026", q1, assessment.StatusReviewed)
	seedAssessment(t, s, "assess-2", "Quarterly-Q2-2026", q2, assessment.StatusInProgress)

	all, err := s.ListAssessments(ctx, "proj-1", "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 2 || all[0].ID != "assess-2" {
		t.Errorf("newest first: %+v", all)
	}

	reviewed, err := s.ListAssessments(ctx, "proj-1", assessment.StatusReviewed)
	if err != nil {
		t.Fatalf("list filtered: %v", err)
	}
	if len(reviewed) != 1 || reviewed[0].ID != "assess-1" {
		t.Errorf("filter: %+v", reviewed)
	}

	exists, err := s.AssessmentNameExists(ctx, "proj-1", "Quarterly-Q1-2026")
	if err != nil || !exists {
		t.Errorf("name exists: %v %v", exists, err)
	}
	exists, _ = s.AssessmentNameExists(ctx, "proj-1", "Quarterly-Q3-2026")
	if exists {
		t.Errorf("phantom name reported as existing")
	}
}

func TestLatestAssessment(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	q1 := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	q2 := time.Date(2026, time.April, 1, 0, 0, 0, 0, time.UTC)
	q3 := time.Date(2026, time.July, 1, 0, 0, 0, 0, time.UTC)
	seedAssessment(t, s, "assess-1", "Quarterly-Q1-2026", q1, assessment.StatusReviewed)
	seedAssessment(t, s, "assess-2", "Quarterly-Q2-2026", q2, assessment.StatusSubmitted)
	seedAssessment(t, s, "assess-3", "Quarterly-Q3-2026", q3, assessment.StatusInProgress)

	// No status filter: newest by start date, minus the excluded row.
	latest, err := s.LatestAssessment(ctx, "proj-1", nil, "assess-3")
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if latest.ID != "assess-2" {
		t.Errorf("latest: got %s, want assess-2", latest.ID)
	}

	// Status filter narrows to the reviewed history.
	latest, err = s.LatestAssessment(ctx, "proj-1",
		[]assessment.AssessmentStatus{assessment.StatusReviewed}, "assess-3")
	if err != nil {
		t.Fatalf("latest reviewed: %v", err)
	}
	if latest.ID != "assess-1" {
		t.Errorf("latest reviewed: got %s, want assess-1", latest.ID)
	}

	// Multi-status filter.
	latest, err = s.LatestAssessment(ctx, "proj-1",
		[]assessment.AssessmentStatus{assessment.StatusSubmitted, assessment.StatusReviewed}, "assess-2")
	if err != nil {
		t.Fatalf("latest submitted/reviewed: %v", err)
	}
	if latest.ID != "assess-1" {
		t.Errorf("exclusion ignored: got %s", latest.ID)
	}

	_, err = s.LatestAssessment(ctx, "proj-1",
		[]assessment.AssessmentStatus{assessment.StatusDeclined}, "")
	if !assessment.IsNotFound(err) {
		t.Errorf("no match: got %v, want not found", err)
	}
}

func TestExpireOverdue(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	q1 := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	q2 := time.Date(2026, time.April, 1, 0, 0, 0, 0, time.UTC)
	seedAssessment(t, s, "assess-stale", "Quarterly-Q1-2026", q1, assessment.StatusInProgress)
	seedAssessment(t, s, "assess-submitted", "Quarterly-Q1-2026-sub", q1, assessment.StatusSubmitted)
	seedAssessment(t, s, "assess-open", "Quarterly-Q2-2026", q2, assessment.StatusToDo)

	// Mid Q2: the Q1 draft expires, the submitted Q1 and the open Q2 stay.
	n, err := s.ExpireOverdue(ctx, time.Date(2026, time.May, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("expire: %v", err)
	}
	if n != 1 {
		t.Errorf("expired %d rows, want 1", n)
	}

	stale, _ := s.GetAssessment(ctx, "assess-stale")
	if stale.Status != assessment.StatusExpired {
		t.Errorf("stale status: %s", stale.Status)
	}
	submitted, _ := s.GetAssessment(ctx, "assess-submitted")
	if submitted.Status != assessment.StatusSubmitted {
		t.Errorf("submitted cycle expired: %s", submitted.Status)
	}
	open, _ := s.GetAssessment(ctx, "assess-open")
	if open.Status != assessment.StatusToDo {
		t.Errorf("open cycle expired: %s", open.Status)
	}
}

// =============================================================================
// RESPONSES
// =============================================================================

func TestResponsesRoundTrip(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	seedAssessment(t, s, "assess-1", "Quarterly-Q1-2026",
		time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC), assessment.StatusInProgress)

	responses := []assessment.Response{
		{ID: "resp-1", AssessmentID: "assess-1", ActivityID: "act-1",
			Type: assessment.ManagerResponse, Value: assessment.AnswerYes,
			CreatedBy: "user-1", ModifiedBy: "user-1", ModifiedOn: testTime},
		{ID: "resp-2", AssessmentID: "assess-1", ActivityID: "act-2",
			Type:      assessment.ManagerResponse,
			CreatedBy: "user-1", ModifiedBy: "user-1", ModifiedOn: testTime},
		{ID: "resp-3", AssessmentID: "assess-1", ActivityID: "act-1",
			Type: assessment.ReviewerResponse, Value: assessment.AnswerNo, Comments: "gaps found",
			CreatedBy: "user-1", ModifiedBy: "user-1", ModifiedOn: testTime},
	}
	if err := s.CreateResponses(ctx, responses); err != nil {
		t.Fatalf("create responses: %v", err)
	}

	// Unanswered rows come back with the zero value.
	r, err := s.GetResponse(ctx, "resp-2")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if r.Value != "" {
		t.Errorf("unanswered value: got %q", r.Value)
	}

	r.Value = assessment.AnswerNA
	r.Comments = "not applicable this cycle"
	r.ModifiedOn = testTime
	if err := s.UpdateResponse(ctx, r); err != nil {
		t.Fatalf("update: %v", err)
	}
	again, _ := s.GetResponse(ctx, "resp-2")
	if again.Value != assessment.AnswerNA || again.Comments != "not applicable this cycle" {
		t.Errorf("update round trip: %+v", again)
	}

	managers, err := s.ResponsesByAssessment(ctx, "assess-1", assessment.ManagerResponse)
	if err != nil {
		t.Fatalf("by assessment: %v", err)
	}
	if len(managers) != 2 {
		t.Errorf("manager rows: got %d, want 2", len(managers))
	}

	if _, err := s.GetResponse(ctx, "resp-missing"); !assessment.IsNotFound(err) {
		t.Errorf("missing response: got %v", err)
	}
}

func TestResponseSummarySkipsUnanswered(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	responses := []assessment.Response{
		{ID: "resp-1", AssessmentID: "assess-1", ActivityID: "act-1",
			Type: assessment.ManagerResponse, Value: assessment.AnswerYes,
			CreatedBy: "u", ModifiedBy: "u", ModifiedOn: testTime},
		{ID: "resp-2", AssessmentID: "assess-1", ActivityID: "act-2",
			Type: assessment.ManagerResponse, Value: assessment.AnswerYes,
			CreatedBy: "u", ModifiedBy: "u", ModifiedOn: testTime},
		{ID: "resp-3", AssessmentID: "assess-1", ActivityID: "act-3",
			Type: assessment.ManagerResponse, Value: assessment.AnswerNo,
			CreatedBy: "u", ModifiedBy: "u", ModifiedOn: testTime},
		{ID: "resp-4", AssessmentID: "assess-1", ActivityID: "act-4",
			Type:      assessment.ManagerResponse,
			CreatedBy: "u", ModifiedBy: "u", ModifiedOn: testTime},
	}
	if err := s.CreateResponses(ctx, responses); err != nil {
		t.Fatalf("create: %v", err)
	}

	summary, err := s.ResponseSummary(ctx, "assess-1", assessment.ManagerResponse)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if summary[assessment.AnswerYes] != 2 || summary[assessment.AnswerNo] != 1 {
		t.Errorf("summary: %+v", summary)
	}
	if len(summary) != 2 {
		t.Errorf("unanswered rows counted: %+v", summary)
	}
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

func TestWithTxCommit(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	start := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)

	err := s.WithTx(ctx, func(tx assessment.Store) error {
		a := &assessment.Assessment{
			ID: "assess-1", ProjectID: "proj-1", ChecklistID: "cl-1",
			Name: "Quarterly-Q1-2026", StartDate: start, EndDate: start.AddDate(0, 3, 0),
			Status:    assessment.StatusToDo,
			CreatedBy: "u", CreatedOn: testTime, ModifiedBy: "u", ModifiedOn: testTime,
		}
		if err := tx.CreateAssessment(ctx, a); err != nil {
			return err
		}
		// Reads inside the transaction see its own writes.
		got, err := tx.GetAssessment(ctx, "assess-1")
		if err != nil {
			return err
		}
		got.Status = assessment.StatusInProgress
		got.ModifiedOn = testTime
		return tx.UpdateAssessment(ctx, got)
	})
	if err != nil {
		t.Fatalf("with tx: %v", err)
	}

	got, err := s.GetAssessment(ctx, "assess-1")
	if err != nil {
		t.Fatalf("get after commit: %v", err)
	}
	if got.Status != assessment.StatusInProgress {
		t.Errorf("status after commit: %s", got.Status)
	}
}

func TestWithTxRollback(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	start := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)

	err := s.WithTx(ctx, func(tx assessment.Store) error {
		a := &assessment.Assessment{
			ID: "assess-1", ProjectID: "proj-1", ChecklistID: "cl-1",
			Name: "Quarterly-Q1-2026", StartDate: start, EndDate: start.AddDate(0, 3, 0),
			Status:    assessment.StatusToDo,
			CreatedBy: "u", CreatedOn: testTime, ModifiedBy: "u", ModifiedOn: testTime,
		}
		if err := tx.CreateAssessment(ctx, a); err != nil {
			return err
		}
		return assessment.Transientf(nil, "queue full")
	})
	if !assessment.IsRetryable(err) {
		t.Fatalf("got %v, want the fn error back", err)
	}

	if _, err := s.GetAssessment(ctx, "assess-1"); !assessment.IsNotFound(err) {
		t.Errorf("rolled-back write is visible: %v", err)
	}
}

// =============================================================================
// TASKS AND SCORES
// =============================================================================

// taskCheckingQueue records, at publish time, whether an independent
// connection can already read the job's task row.
type taskCheckingQueue struct {
	store   *sqlite.Store
	jobs    []assessment.GradeCalculationJob
	taskErr error
}

func (q *taskCheckingQueue) Enqueue(ctx context.Context, job assessment.GradeCalculationJob) error {
	_, q.taskErr = q.store.GetTask(ctx, job.TaskID)
	q.jobs = append(q.jobs, job)
	return nil
}

func TestGradingJobEnqueuedAfterCommit(t *testing.T) {
	// GIVEN: an in-progress assessment ready to submit
	s := newStore(t)
	ctx := context.Background()

	if err := s.SaveChecklist(ctx, assessment.Checklist{
		ID: "cl-1", Name: "v1", Status: assessment.ChecklistPublished, IsActive: true,
	}); err != nil {
		t.Fatalf("save checklist: %v", err)
	}
	if err := s.SaveProject(ctx, assessment.Project{
		ID: "proj-1", Name: "Payments", AccountID: "acct-1",
		AuditFrequency: assessment.Quarterly, IsActive: true,
	}); err != nil {
		t.Fatalf("save project: %v", err)
	}
	if err := s.SaveUser(ctx, assessment.User{ID: "user-1", Status: assessment.UserVerified}); err != nil {
		t.Fatalf("save user: %v", err)
	}
	a := seedAssessment(t, s, "assess-1", "Quarterly-Q1-2026", testTime.AddDate(0, -1, 0), assessment.StatusInProgress)

	q := &taskCheckingQueue{store: s}
	l := assessment.NewLifecycle(s, s, s, nil, q)
	l.Now = func() time.Time { return testTime }

	// WHEN
	if _, err := l.UpdateStatus(ctx, "proj-1", a.ID, assessment.StatusSubmitted, "user-1"); err != nil {
		t.Fatalf("submit: %v", err)
	}

	// THEN: the job published only once its task row was committed,
	// so a racing consumer can never observe a task-less job
	if len(q.jobs) != 1 {
		t.Fatalf("got %d jobs, want 1", len(q.jobs))
	}
	if q.taskErr != nil {
		t.Errorf("task %s not readable at publish time: %v", q.jobs[0].TaskID, q.taskErr)
	}
	active, err := s.ActiveTask(ctx, a.ID)
	if err != nil {
		t.Fatalf("active task: %v", err)
	}
	if active.ID != q.jobs[0].TaskID {
		t.Errorf("active task %s does not match published job %s", active.ID, q.jobs[0].TaskID)
	}
}

func TestTaskRotation(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	first := &assessment.GradeCalculationTask{
		ID: "task-1", AssessmentID: "assess-1", Active: true,
		CreatedOn: testTime, ModifiedOn: testTime,
	}
	if err := s.CreateTask(ctx, first); err != nil {
		t.Fatalf("create task: %v", err)
	}

	active, err := s.ActiveTask(ctx, "assess-1")
	if err != nil {
		t.Fatalf("active task: %v", err)
	}
	if active.ID != "task-1" {
		t.Errorf("active: got %s", active.ID)
	}

	first.Active = false
	first.ModifiedOn = testTime
	if err := s.UpdateTask(ctx, first); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	second := &assessment.GradeCalculationTask{
		ID: "task-2", AssessmentID: "assess-1", Active: true,
		CreatedOn: testTime, ModifiedOn: testTime,
	}
	if err := s.CreateTask(ctx, second); err != nil {
		t.Fatalf("create second: %v", err)
	}

	active, err = s.ActiveTask(ctx, "assess-1")
	if err != nil {
		t.Fatalf("active after rotation: %v", err)
	}
	if active.ID != "task-2" {
		t.Errorf("active after rotation: got %s", active.ID)
	}

	stale, err := s.GetTask(ctx, "task-1")
	if err != nil {
		t.Fatalf("get stale: %v", err)
	}
	if stale.Active || stale.Completed {
		t.Errorf("stale task state: %+v", stale)
	}

	if _, err := s.ActiveTask(ctx, "assess-other"); !assessment.IsNotFound(err) {
		t.Errorf("no active task: got %v", err)
	}
}

func TestItemScoreUpsert(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	placeholder := &assessment.ItemScore{
		ItemID: "item-1", AssessmentID: "assess-1",
		CreatedBy: "u", ModifiedOn: testTime,
	}
	if err := s.UpsertItemScore(ctx, placeholder); err != nil {
		t.Fatalf("insert placeholder: %v", err)
	}

	got, err := s.GetItemScore(ctx, "assess-1", "item-1")
	if err != nil {
		t.Fatalf("get placeholder: %v", err)
	}
	if got.Grade != "" || got.Score != nil {
		t.Errorf("placeholder should be ungraded: %+v", got)
	}

	score := dec("7.5")
	graded := &assessment.ItemScore{
		ItemID: "item-1", AssessmentID: "assess-1",
		Grade: assessment.GradeB, Score: &score,
		CreatedBy: "u", ModifiedOn: testTime,
	}
	if err := s.UpsertItemScore(ctx, graded); err != nil {
		t.Fatalf("upsert grade: %v", err)
	}

	scores, err := s.ItemScoresByAssessment(ctx, "assess-1")
	if err != nil {
		t.Fatalf("scores: %v", err)
	}
	if len(scores) != 1 {
		t.Fatalf("upsert duplicated the row: %d rows", len(scores))
	}
	if scores[0].Grade != assessment.GradeB || scores[0].Score == nil || !scores[0].Score.Equal(score) {
		t.Errorf("graded row: %+v", scores[0])
	}
}

func TestSubareaScoreUpsert(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	pct := dec("50")
	if err := s.UpsertSubareaScore(ctx, &assessment.SubareaScore{
		SubareaID: "sub-1", AssessmentID: "assess-1",
		Score: &pct, TechDebtCount: 1, ModifiedOn: testTime,
	}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	better := dec("100")
	if err := s.UpsertSubareaScore(ctx, &assessment.SubareaScore{
		SubareaID: "sub-1", AssessmentID: "assess-1",
		Score: &better, TechDebtCount: 0, ModifiedOn: testTime,
	}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	scores, err := s.SubareaScoresByAssessment(ctx, "assess-1")
	if err != nil {
		t.Fatalf("scores: %v", err)
	}
	if len(scores) != 1 {
		t.Fatalf("upsert duplicated the row: %d rows", len(scores))
	}
	if scores[0].Score == nil || !scores[0].Score.Equal(better) || scores[0].TechDebtCount != 0 {
		t.Errorf("upserted row: %+v", scores[0])
	}
}

// =============================================================================
// DELTAS
// =============================================================================

func TestDeltasAppendOnly(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	deltas := []assessment.ResponseDelta{
		{ID: "delta-1", ActivityID: "act-1", AssessmentID: "assess-2",
			PreviousAssessmentID: "assess-1", Type: assessment.ManagerDelta,
			PreviousValue: assessment.AnswerYes, PreviousComments: "was fine",
			CreatedBy: "u", CreatedOn: testTime},
		{ID: "delta-2", ActivityID: "act-2", AssessmentID: "assess-2",
			PreviousAssessmentID: "assess-1", Type: assessment.ReviewerDelta,
			PreviousValue: assessment.AnswerNo,
			CreatedBy:     "u", CreatedOn: testTime},
	}
	if err := s.CreateDeltas(ctx, deltas); err != nil {
		t.Fatalf("create deltas: %v", err)
	}

	managers, err := s.DeltasByAssessment(ctx, "assess-2", assessment.ManagerDelta)
	if err != nil {
		t.Fatalf("manager deltas: %v", err)
	}
	if len(managers) != 1 || managers[0].PreviousValue != assessment.AnswerYes {
		t.Errorf("manager deltas: %+v", managers)
	}

	n, err := s.CountDeltas(ctx, "assess-2", assessment.ReviewerDelta)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Errorf("reviewer delta count: got %d", n)
	}
}
