// Package store provides in-memory Store implementations for tests
// and local development.
package store

import (
	"context"
	"sync"

	"github.com/tenet/assessment-engine/assessment"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory implements assessment.TxStore plus the project and user
// directories, mirroring the production layout where everything lives
// in one database. Seed* methods populate the read-only reference
// data tests need.
type Memory struct {
	mu sync.RWMutex

	checklists map[assessment.ChecklistID]assessment.Checklist
	areas      []assessment.Area
	subareas   []assessment.Subarea
	items      []assessment.Item
	activities []assessment.Activity

	projects map[assessment.ProjectID]assessment.Project
	users    map[assessment.UserID]assessment.User

	assessments map[assessment.AssessmentID]assessment.Assessment
	// insertion order, for LatestAssessment tie-breaks
	assessmentOrder []assessment.AssessmentID

	responses     map[assessment.ResponseID]assessment.Response
	responseOrder []assessment.ResponseID

	deltas []assessment.ResponseDelta
	tasks  map[assessment.TaskID]assessment.GradeCalculationTask

	itemScores    map[itemScoreKey]assessment.ItemScore
	subareaScores map[subareaScoreKey]assessment.SubareaScore
}

type itemScoreKey struct {
	Item       assessment.ItemID
	Assessment assessment.AssessmentID
}

type subareaScoreKey struct {
	Subarea    assessment.SubareaID
	Assessment assessment.AssessmentID
}

func NewMemory() *Memory {
	return &Memory{
		checklists:    make(map[assessment.ChecklistID]assessment.Checklist),
		projects:      make(map[assessment.ProjectID]assessment.Project),
		users:         make(map[assessment.UserID]assessment.User),
		assessments:   make(map[assessment.AssessmentID]assessment.Assessment),
		responses:     make(map[assessment.ResponseID]assessment.Response),
		tasks:         make(map[assessment.TaskID]assessment.GradeCalculationTask),
		itemScores:    make(map[itemScoreKey]assessment.ItemScore),
		subareaScores: make(map[subareaScoreKey]assessment.SubareaScore),
	}
}

// WithTx runs fn against the store directly. The memory store has no
// real transactions; tests that need rollback behavior use SQLite.
func (m *Memory) WithTx(_ context.Context, fn func(assessment.Store) error) error {
	return fn(m)
}

// =============================================================================
// SEEDING
// =============================================================================

func (m *Memory) SeedChecklist(c assessment.Checklist) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checklists[c.ID] = c
}

func (m *Memory) SeedArea(a assessment.Area) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.areas = append(m.areas, a)
}

func (m *Memory) SeedSubarea(s assessment.Subarea) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subareas = append(m.subareas, s)
}

func (m *Memory) SeedItem(i assessment.Item) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = append(m.items, i)
}

func (m *Memory) SeedActivity(a assessment.Activity) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.activities = append(m.activities, a)
}

func (m *Memory) SeedProject(p assessment.Project) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.projects[p.ID] = p
}

func (m *Memory) SeedUser(u assessment.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID] = u
}

// =============================================================================
// DIRECTORIES
// =============================================================================

func (m *Memory) GetProject(_ context.Context, id assessment.ProjectID) (*assessment.Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.projects[id]
	if !ok {
		return nil, assessment.NotFoundf("project %s not found", id)
	}
	return &p, nil
}

func (m *Memory) GetUser(_ context.Context, id assessment.UserID) (*assessment.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return nil, assessment.NotFoundf("user %s not found", id)
	}
	return &u, nil
}

// =============================================================================
// CHECKLIST TREE
// =============================================================================

func (m *Memory) GetChecklist(_ context.Context, id assessment.ChecklistID) (*assessment.Checklist, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.checklists[id]
	if !ok {
		return nil, assessment.NotFoundf("checklist %s not found", id)
	}
	return &c, nil
}

func (m *Memory) ActiveChecklist(_ context.Context) (*assessment.Checklist, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, c := range m.checklists {
		if c.IsActive {
			out := c
			return &out, nil
		}
	}
	return nil, assessment.NotFoundf("no active checklist")
}

func (m *Memory) AreasByChecklist(_ context.Context, id assessment.ChecklistID) ([]assessment.Area, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []assessment.Area
	for _, a := range m.areas {
		if a.ChecklistID == id {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *Memory) SubareasByArea(_ context.Context, id assessment.AreaID) ([]assessment.Subarea, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []assessment.Subarea
	for _, s := range m.subareas {
		if s.AreaID == id {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *Memory) ItemsBySubarea(_ context.Context, id assessment.SubareaID) ([]assessment.Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []assessment.Item
	for _, i := range m.items {
		if i.SubareaID == id {
			out = append(out, i)
		}
	}
	return out, nil
}

func (m *Memory) ActivitiesByItem(_ context.Context, id assessment.ItemID) ([]assessment.Activity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []assessment.Activity
	for _, a := range m.activities {
		if a.ItemID == id {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *Memory) GetArea(_ context.Context, id assessment.AreaID) (*assessment.Area, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, a := range m.areas {
		if a.ID == id {
			out := a
			return &out, nil
		}
	}
	return nil, assessment.NotFoundf("area %s not found", id)
}

func (m *Memory) GetSubarea(_ context.Context, id assessment.SubareaID) (*assessment.Subarea, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.subareas {
		if s.ID == id {
			out := s
			return &out, nil
		}
	}
	return nil, assessment.NotFoundf("subarea %s not found", id)
}

func (m *Memory) GetItem(_ context.Context, id assessment.ItemID) (*assessment.Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, i := range m.items {
		if i.ID == id {
			out := i
			return &out, nil
		}
	}
	return nil, assessment.NotFoundf("item %s not found", id)
}

// =============================================================================
// ASSESSMENTS
// =============================================================================

func (m *Memory) CreateAssessment(_ context.Context, a *assessment.Assessment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.assessments[a.ID]; exists {
		return assessment.Conflictf("assessment %s already exists", a.ID)
	}
	m.assessments[a.ID] = *a
	m.assessmentOrder = append(m.assessmentOrder, a.ID)
	return nil
}

func (m *Memory) UpdateAssessment(_ context.Context, a *assessment.Assessment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.assessments[a.ID]; !exists {
		return assessment.NotFoundf("assessment %s not found", a.ID)
	}
	m.assessments[a.ID] = *a
	return nil
}

func (m *Memory) GetAssessment(_ context.Context, id assessment.AssessmentID) (*assessment.Assessment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.assessments[id]
	if !ok {
		return nil, assessment.NotFoundf("assessment %s not found", id)
	}
	return &a, nil
}

func (m *Memory) ListAssessments(_ context.Context, projectID assessment.ProjectID, status assessment.AssessmentStatus) ([]assessment.Assessment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []assessment.Assessment
	for _, id := range m.assessmentOrder {
		a := m.assessments[id]
		if a.ProjectID != projectID {
			continue
		}
		if status != "" && a.Status != status {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func (m *Memory) AssessmentNameExists(_ context.Context, projectID assessment.ProjectID, name string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, a := range m.assessments {
		if a.ProjectID == projectID && a.Name == name {
			return true, nil
		}
	}
	return false, nil
}

func (m *Memory) LatestAssessment(_ context.Context, projectID assessment.ProjectID, statuses []assessment.AssessmentStatus, exclude assessment.AssessmentID) (*assessment.Assessment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	allowed := func(s assessment.AssessmentStatus) bool {
		if len(statuses) == 0 {
			return true
		}
		for _, want := range statuses {
			if s == want {
				return true
			}
		}
		return false
	}

	var best *assessment.Assessment
	// Walk in insertion order so equal start dates resolve to the most
	// recently created row, matching the SQLite ORDER BY.
	for _, id := range m.assessmentOrder {
		a := m.assessments[id]
		if a.ProjectID != projectID || a.ID == exclude || !allowed(a.Status) {
			continue
		}
		if best == nil || !a.StartDate.Before(best.StartDate) {
			c := a
			best = &c
		}
	}
	if best == nil {
		return nil, assessment.NotFoundf("project %s has no matching assessment", projectID)
	}
	return best, nil
}

// =============================================================================
// RESPONSES
// =============================================================================

func (m *Memory) CreateResponses(_ context.Context, responses []assessment.Response) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range responses {
		if _, exists := m.responses[r.ID]; exists {
			return assessment.Conflictf("response %s already exists", r.ID)
		}
	}
	for _, r := range responses {
		m.responses[r.ID] = r
		m.responseOrder = append(m.responseOrder, r.ID)
	}
	return nil
}

func (m *Memory) GetResponse(_ context.Context, id assessment.ResponseID) (*assessment.Response, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.responses[id]
	if !ok {
		return nil, assessment.NotFoundf("response %s not found", id)
	}
	return &r, nil
}

func (m *Memory) UpdateResponse(_ context.Context, r *assessment.Response) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.responses[r.ID]; !exists {
		return assessment.NotFoundf("response %s not found", r.ID)
	}
	m.responses[r.ID] = *r
	return nil
}

func (m *Memory) ResponsesByAssessment(_ context.Context, id assessment.AssessmentID, typ assessment.ResponseType) ([]assessment.Response, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []assessment.Response
	for _, rid := range m.responseOrder {
		r := m.responses[rid]
		if r.AssessmentID == id && r.Type == typ {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *Memory) ResponseSummary(_ context.Context, id assessment.AssessmentID, typ assessment.ResponseType) (map[assessment.ResponseValue]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[assessment.ResponseValue]int)
	for _, r := range m.responses {
		if r.AssessmentID == id && r.Type == typ && r.Value.Answered() {
			out[r.Value]++
		}
	}
	return out, nil
}

// =============================================================================
// DELTAS
// =============================================================================

func (m *Memory) CreateDeltas(_ context.Context, deltas []assessment.ResponseDelta) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deltas = append(m.deltas, deltas...)
	return nil
}

func (m *Memory) DeltasByAssessment(_ context.Context, id assessment.AssessmentID, typ assessment.DeltaType) ([]assessment.ResponseDelta, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []assessment.ResponseDelta
	for _, d := range m.deltas {
		if d.AssessmentID == id && d.Type == typ {
			out = append(out, d)
		}
	}
	return out, nil
}

func (m *Memory) CountDeltas(_ context.Context, id assessment.AssessmentID, typ assessment.DeltaType) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, d := range m.deltas {
		if d.AssessmentID == id && d.Type == typ {
			n++
		}
	}
	return n, nil
}

// =============================================================================
// TASKS
// =============================================================================

func (m *Memory) CreateTask(_ context.Context, t *assessment.GradeCalculationTask) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.tasks[t.ID]; exists {
		return assessment.Conflictf("task %s already exists", t.ID)
	}
	m.tasks[t.ID] = *t
	return nil
}

func (m *Memory) UpdateTask(_ context.Context, t *assessment.GradeCalculationTask) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.tasks[t.ID]; !exists {
		return assessment.NotFoundf("task %s not found", t.ID)
	}
	m.tasks[t.ID] = *t
	return nil
}

func (m *Memory) GetTask(_ context.Context, id assessment.TaskID) (*assessment.GradeCalculationTask, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tasks[id]
	if !ok {
		return nil, assessment.NotFoundf("task %s not found", id)
	}
	return &t, nil
}

func (m *Memory) ActiveTask(_ context.Context, id assessment.AssessmentID) (*assessment.GradeCalculationTask, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, t := range m.tasks {
		if t.AssessmentID == id && t.Active {
			out := t
			return &out, nil
		}
	}
	return nil, assessment.NotFoundf("assessment %s has no active task", id)
}

// =============================================================================
// SCORES
// =============================================================================

func (m *Memory) UpsertItemScore(_ context.Context, s *assessment.ItemScore) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.itemScores[itemScoreKey{Item: s.ItemID, Assessment: s.AssessmentID}] = *s
	return nil
}

func (m *Memory) GetItemScore(_ context.Context, assessmentID assessment.AssessmentID, itemID assessment.ItemID) (*assessment.ItemScore, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.itemScores[itemScoreKey{Item: itemID, Assessment: assessmentID}]
	if !ok {
		return nil, assessment.NotFoundf("no score for item %s in assessment %s", itemID, assessmentID)
	}
	return &s, nil
}

func (m *Memory) ItemScoresByAssessment(_ context.Context, id assessment.AssessmentID) ([]assessment.ItemScore, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []assessment.ItemScore
	for k, s := range m.itemScores {
		if k.Assessment == id {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *Memory) UpsertSubareaScore(_ context.Context, s *assessment.SubareaScore) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subareaScores[subareaScoreKey{Subarea: s.SubareaID, Assessment: s.AssessmentID}] = *s
	return nil
}

func (m *Memory) SubareaScoresByAssessment(_ context.Context, id assessment.AssessmentID) ([]assessment.SubareaScore, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []assessment.SubareaScore
	for k, s := range m.subareaScores {
		if k.Assessment == id {
			out = append(out, s)
		}
	}
	return out, nil
}
