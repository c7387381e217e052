/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements the full assessment persistence surface (assessment.Store,
  assessment.TxStore) plus the project and user directories using
  SQLite. In production, the same patterns apply to PostgreSQL - only
  minor SQL dialect differences.

KEY TABLES:
  checklists, areas, subareas, items, activities:
      The read-only checklist tree, one row per node. Items carry both
      raw and effective weightage as decimal strings.
  projects, users:
      Platform reference data the lifecycle guards against.
  assessments:
      One row per audit cycle; overall_score and tech_debt stay NULL
      until the reviewed grading run.
  responses:
      Two rows per (assessment, activity): one per track. value is
      NULL until answered.
  response_deltas:
      Append-only; no UPDATE or DELETE statements exist for it.
  grade_calculation_tasks:
      Single-writer tokens; at most one active row per assessment.
  assessment_item_scores, assessment_subarea_scores:
      Grading output, upserted on UNIQUE(item/subarea, assessment).

TRANSACTIONS:
  WithTx wraps fn in a database transaction and hands it a Store bound
  to that transaction, so every read inside the closure observes the
  closure's own writes. The grading pipeline depends on this.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better
  concurrency: readers don't block, single writer at a time.

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - assessment/store.go: Interface definitions
  - assessment/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/tenet/assessment-engine/assessment"
)

// dbtx is satisfied by both *sql.DB and *sql.Tx, letting every query
// run either on the root connection or inside WithTx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// conn implements assessment.Store over one dbtx handle.
type conn struct {
	db dbtx
}

// Store is the root SQLite store.
type Store struct {
	conn
	db *sql.DB
}

// New opens (or creates) the database at dbPath and migrates the
// schema. Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{conn: conn{db: db}, db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// WithTx executes fn within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(assessment.Store) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&conn{db: tx}); err != nil {
		return err
	}
	return tx.Commit()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Checklist tree (read-only reference data)
	CREATE TABLE IF NOT EXISTS checklists (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		status TEXT NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT FALSE
	);

	CREATE TABLE IF NOT EXISTS areas (
		id TEXT PRIMARY KEY,
		checklist_id TEXT NOT NULL,
		name TEXT NOT NULL,
		weightage TEXT NOT NULL,
		seq INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_areas_checklist ON areas(checklist_id);

	CREATE TABLE IF NOT EXISTS subareas (
		id TEXT PRIMARY KEY,
		area_id TEXT NOT NULL,
		name TEXT NOT NULL,
		weightage TEXT NOT NULL,
		seq INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_subareas_area ON subareas(area_id);

	CREATE TABLE IF NOT EXISTS items (
		id TEXT PRIMARY KEY,
		subarea_id TEXT NOT NULL,
		name TEXT NOT NULL,
		weightage TEXT NOT NULL,
		effective_weightage TEXT NOT NULL,
		seq INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_items_subarea ON items(subarea_id);

	CREATE TABLE IF NOT EXISTS activities (
		id TEXT PRIMARY KEY,
		item_id TEXT NOT NULL,
		name TEXT NOT NULL,
		importance TEXT NOT NULL,
		seq INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_activities_item ON activities(item_id);

	-- Platform reference data
	CREATE TABLE IF NOT EXISTS projects (
		id TEXT PRIMARY KEY,
		account_id TEXT NOT NULL DEFAULT '',
		name TEXT NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		audit_frequency TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL
	);

	-- Assessments (one audit cycle)
	CREATE TABLE IF NOT EXISTS assessments (
		id TEXT PRIMARY KEY,
		project_id TEXT NOT NULL,
		checklist_id TEXT NOT NULL,
		name TEXT NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		status TEXT NOT NULL,
		overall_score TEXT,
		tech_debt INTEGER,
		created_by TEXT NOT NULL,
		created_on TEXT NOT NULL,
		modified_by TEXT NOT NULL,
		modified_on TEXT NOT NULL,
		UNIQUE(project_id, name)
	);
	CREATE INDEX IF NOT EXISTS idx_assessments_project
		ON assessments(project_id, start_date DESC);
	CREATE INDEX IF NOT EXISTS idx_assessments_status
		ON assessments(status);

	-- Responses (two per assessment-activity pair)
	CREATE TABLE IF NOT EXISTS responses (
		id TEXT PRIMARY KEY,
		assessment_id TEXT NOT NULL,
		activity_id TEXT NOT NULL,
		response_type TEXT NOT NULL,
		value TEXT,
		comments TEXT NOT NULL DEFAULT '',
		created_by TEXT NOT NULL,
		modified_by TEXT NOT NULL,
		modified_on TEXT NOT NULL,
		UNIQUE(assessment_id, activity_id, response_type)
	);
	CREATE INDEX IF NOT EXISTS idx_responses_assessment
		ON responses(assessment_id, response_type);

	-- Deltas (append-only audit trail)
	CREATE TABLE IF NOT EXISTS response_deltas (
		id TEXT PRIMARY KEY,
		activity_id TEXT NOT NULL,
		assessment_id TEXT NOT NULL,
		previous_assessment_id TEXT NOT NULL,
		delta_type TEXT NOT NULL,
		previous_value TEXT,
		previous_comments TEXT NOT NULL DEFAULT '',
		created_by TEXT NOT NULL,
		created_on TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_deltas_assessment
		ON response_deltas(assessment_id, delta_type);

	-- Grade calculation tasks (single-writer tokens)
	CREATE TABLE IF NOT EXISTS grade_calculation_tasks (
		id TEXT PRIMARY KEY,
		assessment_id TEXT NOT NULL,
		completed BOOLEAN NOT NULL DEFAULT FALSE,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		created_on TEXT NOT NULL,
		modified_on TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_tasks_assessment_active
		ON grade_calculation_tasks(assessment_id, active);

	-- Grading output
	CREATE TABLE IF NOT EXISTS assessment_item_scores (
		item_id TEXT NOT NULL,
		assessment_id TEXT NOT NULL,
		grade TEXT,
		score TEXT,
		created_by TEXT NOT NULL DEFAULT '',
		modified_on TEXT NOT NULL,
		UNIQUE(item_id, assessment_id)
	);
	CREATE INDEX IF NOT EXISTS idx_item_scores_assessment
		ON assessment_item_scores(assessment_id);

	CREATE TABLE IF NOT EXISTS assessment_subarea_scores (
		subarea_id TEXT NOT NULL,
		assessment_id TEXT NOT NULL,
		score TEXT,
		tech_debt_count INTEGER NOT NULL DEFAULT 0,
		modified_on TEXT NOT NULL,
		UNIQUE(subarea_id, assessment_id)
	);
	CREATE INDEX IF NOT EXISTS idx_subarea_scores_assessment
		ON assessment_subarea_scores(assessment_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// REFERENCE DATA (seeding / sync from the platform)
// =============================================================================

func (s *Store) SaveChecklist(ctx context.Context, c assessment.Checklist) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO checklists (id, name, status, is_active)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			status = excluded.status,
			is_active = excluded.is_active`,
		c.ID, c.Name, c.Status, c.IsActive)
	return err
}

func (s *Store) SaveArea(ctx context.Context, a assessment.Area, seq int) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO areas (id, checklist_id, name, weightage, seq)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			weightage = excluded.weightage,
			seq = excluded.seq`,
		a.ID, a.ChecklistID, a.Name, a.Weightage.String(), seq)
	return err
}

func (s *Store) SaveSubarea(ctx context.Context, sub assessment.Subarea, seq int) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO subareas (id, area_id, name, weightage, seq)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			weightage = excluded.weightage,
			seq = excluded.seq`,
		sub.ID, sub.AreaID, sub.Name, sub.Weightage.String(), seq)
	return err
}

func (s *Store) SaveItem(ctx context.Context, i assessment.Item, seq int) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO items (id, subarea_id, name, weightage, effective_weightage, seq)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			weightage = excluded.weightage,
			effective_weightage = excluded.effective_weightage,
			seq = excluded.seq`,
		i.ID, i.SubareaID, i.Name, i.Weightage.String(), i.EffectiveWeightage.String(), seq)
	return err
}

func (s *Store) SaveActivity(ctx context.Context, a assessment.Activity, seq int) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO activities (id, item_id, name, importance, seq)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			importance = excluded.importance,
			seq = excluded.seq`,
		a.ID, a.ItemID, a.Name, a.Importance, seq)
	return err
}

func (s *Store) SaveProject(ctx context.Context, p assessment.Project) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO projects (id, account_id, name, is_active, audit_frequency)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			account_id = excluded.account_id,
			name = excluded.name,
			is_active = excluded.is_active,
			audit_frequency = excluded.audit_frequency`,
		p.ID, p.AccountID, p.Name, p.IsActive, p.AuditFrequency)
	return err
}

func (s *Store) SaveUser(ctx context.Context, u assessment.User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, email, status)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			email = excluded.email,
			status = excluded.status`,
		u.ID, u.Email, u.Status)
	return err
}

// =============================================================================
// DIRECTORIES
// =============================================================================

func (s *Store) GetProject(ctx context.Context, id assessment.ProjectID) (*assessment.Project, error) {
	var p assessment.Project
	err := s.db.QueryRowContext(ctx, `
		SELECT id, account_id, name, is_active, audit_frequency
		FROM projects WHERE id = ?`, id).
		Scan(&p.ID, &p.AccountID, &p.Name, &p.IsActive, &p.AuditFrequency)
	if err == sql.ErrNoRows {
		return nil, assessment.NotFoundf("project %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query project: %w", err)
	}
	return &p, nil
}

func (s *Store) GetUser(ctx context.Context, id assessment.UserID) (*assessment.User, error) {
	var u assessment.User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, email, status FROM users WHERE id = ?`, id).
		Scan(&u.ID, &u.Email, &u.Status)
	if err == sql.ErrNoRows {
		return nil, assessment.NotFoundf("user %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	return &u, nil
}

// =============================================================================
// CHECKLIST TREE
// =============================================================================

func (c *conn) GetChecklist(ctx context.Context, id assessment.ChecklistID) (*assessment.Checklist, error) {
	var cl assessment.Checklist
	err := c.db.QueryRowContext(ctx, `
		SELECT id, name, status, is_active FROM checklists WHERE id = ?`, id).
		Scan(&cl.ID, &cl.Name, &cl.Status, &cl.IsActive)
	if err == sql.ErrNoRows {
		return nil, assessment.NotFoundf("checklist %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query checklist: %w", err)
	}
	return &cl, nil
}

func (c *conn) ActiveChecklist(ctx context.Context) (*assessment.Checklist, error) {
	var cl assessment.Checklist
	err := c.db.QueryRowContext(ctx, `
		SELECT id, name, status, is_active FROM checklists WHERE is_active = TRUE LIMIT 1`).
		Scan(&cl.ID, &cl.Name, &cl.Status, &cl.IsActive)
	if err == sql.ErrNoRows {
		return nil, assessment.NotFoundf("no active checklist")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query active checklist: %w", err)
	}
	return &cl, nil
}

func (c *conn) AreasByChecklist(ctx context.Context, id assessment.ChecklistID) ([]assessment.Area, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT id, checklist_id, name, weightage
		FROM areas WHERE checklist_id = ? ORDER BY seq, id`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query areas: %w", err)
	}
	defer rows.Close()

	var out []assessment.Area
	for rows.Next() {
		var a assessment.Area
		var weightage string
		if err := rows.Scan(&a.ID, &a.ChecklistID, &a.Name, &weightage); err != nil {
			return nil, err
		}
		a.Weightage, _ = decimal.NewFromString(weightage)
		out = append(out, a)
	}
	return out, rows.Err()
}

func (c *conn) SubareasByArea(ctx context.Context, id assessment.AreaID) ([]assessment.Subarea, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT id, area_id, name, weightage
		FROM subareas WHERE area_id = ? ORDER BY seq, id`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query subareas: %w", err)
	}
	defer rows.Close()

	var out []assessment.Subarea
	for rows.Next() {
		var sub assessment.Subarea
		var weightage string
		if err := rows.Scan(&sub.ID, &sub.AreaID, &sub.Name, &weightage); err != nil {
			return nil, err
		}
		sub.Weightage, _ = decimal.NewFromString(weightage)
		out = append(out, sub)
	}
	return out, rows.Err()
}

func (c *conn) ItemsBySubarea(ctx context.Context, id assessment.SubareaID) ([]assessment.Item, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT id, subarea_id, name, weightage, effective_weightage
		FROM items WHERE subarea_id = ? ORDER BY seq, id`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query items: %w", err)
	}
	defer rows.Close()

	var out []assessment.Item
	for rows.Next() {
		i, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, i)
	}
	return out, rows.Err()
}

func scanItem(rows *sql.Rows) (assessment.Item, error) {
	var i assessment.Item
	var weightage, effective string
	if err := rows.Scan(&i.ID, &i.SubareaID, &i.Name, &weightage, &effective); err != nil {
		return i, err
	}
	i.Weightage, _ = decimal.NewFromString(weightage)
	i.EffectiveWeightage, _ = decimal.NewFromString(effective)
	return i, nil
}

func (c *conn) ActivitiesByItem(ctx context.Context, id assessment.ItemID) ([]assessment.Activity, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT id, item_id, name, importance
		FROM activities WHERE item_id = ? ORDER BY seq, id`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query activities: %w", err)
	}
	defer rows.Close()

	var out []assessment.Activity
	for rows.Next() {
		var a assessment.Activity
		if err := rows.Scan(&a.ID, &a.ItemID, &a.Name, &a.Importance); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (c *conn) GetArea(ctx context.Context, id assessment.AreaID) (*assessment.Area, error) {
	var a assessment.Area
	var weightage string
	err := c.db.QueryRowContext(ctx, `
		SELECT id, checklist_id, name, weightage FROM areas WHERE id = ?`, id).
		Scan(&a.ID, &a.ChecklistID, &a.Name, &weightage)
	if err == sql.ErrNoRows {
		return nil, assessment.NotFoundf("area %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query area: %w", err)
	}
	a.Weightage, _ = decimal.NewFromString(weightage)
	return &a, nil
}

func (c *conn) GetSubarea(ctx context.Context, id assessment.SubareaID) (*assessment.Subarea, error) {
	var sub assessment.Subarea
	var weightage string
	err := c.db.QueryRowContext(ctx, `
		SELECT id, area_id, name, weightage FROM subareas WHERE id = ?`, id).
		Scan(&sub.ID, &sub.AreaID, &sub.Name, &weightage)
	if err == sql.ErrNoRows {
		return nil, assessment.NotFoundf("subarea %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query subarea: %w", err)
	}
	sub.Weightage, _ = decimal.NewFromString(weightage)
	return &sub, nil
}

func (c *conn) GetItem(ctx context.Context, id assessment.ItemID) (*assessment.Item, error) {
	var i assessment.Item
	var weightage, effective string
	err := c.db.QueryRowContext(ctx, `
		SELECT id, subarea_id, name, weightage, effective_weightage
		FROM items WHERE id = ?`, id).
		Scan(&i.ID, &i.SubareaID, &i.Name, &weightage, &effective)
	if err == sql.ErrNoRows {
		return nil, assessment.NotFoundf("item %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query item: %w", err)
	}
	i.Weightage, _ = decimal.NewFromString(weightage)
	i.EffectiveWeightage, _ = decimal.NewFromString(effective)
	return &i, nil
}

// =============================================================================
// ASSESSMENTS
// =============================================================================

func (c *conn) CreateAssessment(ctx context.Context, a *assessment.Assessment) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO assessments
		(id, project_id, checklist_id, name, start_date, end_date, status,
		 overall_score, tech_debt, created_by, created_on, modified_by, modified_on)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.ProjectID, a.ChecklistID, a.Name,
		a.StartDate.Format(time.RFC3339), a.EndDate.Format(time.RFC3339),
		a.Status, nullDecimal(a.OverallScore), a.TechDebt,
		a.CreatedBy, a.CreatedOn.Format(time.RFC3339),
		a.ModifiedBy, a.ModifiedOn.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to create assessment: %w", err)
	}
	return nil
}

func (c *conn) UpdateAssessment(ctx context.Context, a *assessment.Assessment) error {
	res, err := c.db.ExecContext(ctx, `
		UPDATE assessments SET
			name = ?, status = ?, overall_score = ?, tech_debt = ?,
			modified_by = ?, modified_on = ?
		WHERE id = ?`,
		a.Name, a.Status, nullDecimal(a.OverallScore), a.TechDebt,
		a.ModifiedBy, a.ModifiedOn.Format(time.RFC3339), a.ID)
	if err != nil {
		return fmt.Errorf("failed to update assessment: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return assessment.NotFoundf("assessment %s not found", a.ID)
	}
	return nil
}

const assessmentColumns = `
	id, project_id, checklist_id, name, start_date, end_date, status,
	overall_score, tech_debt, created_by, created_on, modified_by, modified_on`

func (c *conn) GetAssessment(ctx context.Context, id assessment.AssessmentID) (*assessment.Assessment, error) {
	row := c.db.QueryRowContext(ctx,
		`SELECT `+assessmentColumns+` FROM assessments WHERE id = ?`, id)
	a, err := scanAssessment(row)
	if err == sql.ErrNoRows {
		return nil, assessment.NotFoundf("assessment %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query assessment: %w", err)
	}
	return a, nil
}

func (c *conn) ListAssessments(ctx context.Context, projectID assessment.ProjectID, status assessment.AssessmentStatus) ([]assessment.Assessment, error) {
	query := `SELECT ` + assessmentColumns + ` FROM assessments WHERE project_id = ?`
	args := []any{projectID}
	if status != "" {
		query += ` AND status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY start_date DESC, created_on DESC`

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query assessments: %w", err)
	}
	defer rows.Close()

	var out []assessment.Assessment
	for rows.Next() {
		a, err := scanAssessment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

func (c *conn) AssessmentNameExists(ctx context.Context, projectID assessment.ProjectID, name string) (bool, error) {
	var count int
	err := c.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM assessments WHERE project_id = ? AND name = ?`,
		projectID, name).Scan(&count)
	return count > 0, err
}

func (c *conn) LatestAssessment(ctx context.Context, projectID assessment.ProjectID, statuses []assessment.AssessmentStatus, exclude assessment.AssessmentID) (*assessment.Assessment, error) {
	query := `SELECT ` + assessmentColumns + ` FROM assessments WHERE project_id = ? AND id != ?`
	args := []any{projectID, exclude}
	if len(statuses) > 0 {
		query += ` AND status IN (?` + strings.Repeat(",?", len(statuses)-1) + `)`
		for _, s := range statuses {
			args = append(args, s)
		}
	}
	query += ` ORDER BY start_date DESC, created_on DESC LIMIT 1`

	row := c.db.QueryRowContext(ctx, query, args...)
	a, err := scanAssessment(row)
	if err == sql.ErrNoRows {
		return nil, assessment.NotFoundf("project %s has no matching assessment", projectID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query latest assessment: %w", err)
	}
	return a, nil
}

// ExpireOverdue marks open cycles whose period ended as Expired.
// Submitted and in-review cycles are left alone.
func (s *Store) ExpireOverdue(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE assessments
		SET status = ?, modified_on = ?
		WHERE status IN (?, ?, ?) AND end_date < ?`,
		assessment.StatusExpired, now.Format(time.RFC3339),
		assessment.StatusToDo, assessment.StatusInProgress, assessment.StatusDeclined,
		now.Format(time.RFC3339))
	if err != nil {
		return 0, fmt.Errorf("failed to expire assessments: %w", err)
	}
	return res.RowsAffected()
}

type scannable interface {
	Scan(dest ...any) error
}

func scanAssessment(row scannable) (*assessment.Assessment, error) {
	var a assessment.Assessment
	var startDate, endDate, createdOn, modifiedOn string
	var overall sql.NullString
	var techDebt sql.NullInt64

	err := row.Scan(&a.ID, &a.ProjectID, &a.ChecklistID, &a.Name,
		&startDate, &endDate, &a.Status, &overall, &techDebt,
		&a.CreatedBy, &createdOn, &a.ModifiedBy, &modifiedOn)
	if err != nil {
		return nil, err
	}
	a.StartDate, _ = time.Parse(time.RFC3339, startDate)
	a.EndDate, _ = time.Parse(time.RFC3339, endDate)
	a.CreatedOn, _ = time.Parse(time.RFC3339, createdOn)
	a.ModifiedOn, _ = time.Parse(time.RFC3339, modifiedOn)
	if overall.Valid {
		d, err := decimal.NewFromString(overall.String)
		if err == nil {
			a.OverallScore = &d
		}
	}
	if techDebt.Valid {
		n := int(techDebt.Int64)
		a.TechDebt = &n
	}
	return &a, nil
}

// =============================================================================
// RESPONSES
// =============================================================================

func (c *conn) CreateResponses(ctx context.Context, responses []assessment.Response) error {
	for _, r := range responses {
		_, err := c.db.ExecContext(ctx, `
			INSERT INTO responses
			(id, assessment_id, activity_id, response_type, value, comments,
			 created_by, modified_by, modified_on)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			r.ID, r.AssessmentID, r.ActivityID, r.Type,
			nullValue(r.Value), r.Comments,
			r.CreatedBy, r.ModifiedBy, r.ModifiedOn.Format(time.RFC3339))
		if err != nil {
			return fmt.Errorf("failed to create response: %w", err)
		}
	}
	return nil
}

func (c *conn) GetResponse(ctx context.Context, id assessment.ResponseID) (*assessment.Response, error) {
	var r assessment.Response
	var value sql.NullString
	var modifiedOn string
	err := c.db.QueryRowContext(ctx, `
		SELECT id, assessment_id, activity_id, response_type, value, comments,
		       created_by, modified_by, modified_on
		FROM responses WHERE id = ?`, id).
		Scan(&r.ID, &r.AssessmentID, &r.ActivityID, &r.Type, &value, &r.Comments,
			&r.CreatedBy, &r.ModifiedBy, &modifiedOn)
	if err == sql.ErrNoRows {
		return nil, assessment.NotFoundf("response %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query response: %w", err)
	}
	r.Value = assessment.ResponseValue(value.String)
	r.ModifiedOn, _ = time.Parse(time.RFC3339, modifiedOn)
	return &r, nil
}

func (c *conn) UpdateResponse(ctx context.Context, r *assessment.Response) error {
	res, err := c.db.ExecContext(ctx, `
		UPDATE responses SET value = ?, comments = ?, modified_by = ?, modified_on = ?
		WHERE id = ?`,
		nullValue(r.Value), r.Comments, r.ModifiedBy,
		r.ModifiedOn.Format(time.RFC3339), r.ID)
	if err != nil {
		return fmt.Errorf("failed to update response: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return assessment.NotFoundf("response %s not found", r.ID)
	}
	return nil
}

func (c *conn) ResponsesByAssessment(ctx context.Context, id assessment.AssessmentID, typ assessment.ResponseType) ([]assessment.Response, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT id, assessment_id, activity_id, response_type, value, comments,
		       created_by, modified_by, modified_on
		FROM responses
		WHERE assessment_id = ? AND response_type = ?
		ORDER BY activity_id`, id, typ)
	if err != nil {
		return nil, fmt.Errorf("failed to query responses: %w", err)
	}
	defer rows.Close()

	var out []assessment.Response
	for rows.Next() {
		var r assessment.Response
		var value sql.NullString
		var modifiedOn string
		if err := rows.Scan(&r.ID, &r.AssessmentID, &r.ActivityID, &r.Type,
			&value, &r.Comments, &r.CreatedBy, &r.ModifiedBy, &modifiedOn); err != nil {
			return nil, err
		}
		r.Value = assessment.ResponseValue(value.String)
		r.ModifiedOn, _ = time.Parse(time.RFC3339, modifiedOn)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (c *conn) ResponseSummary(ctx context.Context, id assessment.AssessmentID, typ assessment.ResponseType) (map[assessment.ResponseValue]int, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT value, COUNT(*)
		FROM responses
		WHERE assessment_id = ? AND response_type = ? AND value IS NOT NULL
		GROUP BY value`, id, typ)
	if err != nil {
		return nil, fmt.Errorf("failed to query response summary: %w", err)
	}
	defer rows.Close()

	out := make(map[assessment.ResponseValue]int)
	for rows.Next() {
		var value string
		var count int
		if err := rows.Scan(&value, &count); err != nil {
			return nil, err
		}
		out[assessment.ResponseValue(value)] = count
	}
	return out, rows.Err()
}

// =============================================================================
// DELTAS
// =============================================================================

func (c *conn) CreateDeltas(ctx context.Context, deltas []assessment.ResponseDelta) error {
	for _, d := range deltas {
		_, err := c.db.ExecContext(ctx, `
			INSERT INTO response_deltas
			(id, activity_id, assessment_id, previous_assessment_id, delta_type,
			 previous_value, previous_comments, created_by, created_on)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			d.ID, d.ActivityID, d.AssessmentID, d.PreviousAssessmentID, d.Type,
			nullValue(d.PreviousValue), d.PreviousComments,
			d.CreatedBy, d.CreatedOn.Format(time.RFC3339))
		if err != nil {
			return fmt.Errorf("failed to create delta: %w", err)
		}
	}
	return nil
}

func (c *conn) DeltasByAssessment(ctx context.Context, id assessment.AssessmentID, typ assessment.DeltaType) ([]assessment.ResponseDelta, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT id, activity_id, assessment_id, previous_assessment_id, delta_type,
		       previous_value, previous_comments, created_by, created_on
		FROM response_deltas
		WHERE assessment_id = ? AND delta_type = ?
		ORDER BY created_on, id`, id, typ)
	if err != nil {
		return nil, fmt.Errorf("failed to query deltas: %w", err)
	}
	defer rows.Close()

	var out []assessment.ResponseDelta
	for rows.Next() {
		var d assessment.ResponseDelta
		var value sql.NullString
		var createdOn string
		if err := rows.Scan(&d.ID, &d.ActivityID, &d.AssessmentID,
			&d.PreviousAssessmentID, &d.Type, &value, &d.PreviousComments,
			&d.CreatedBy, &createdOn); err != nil {
			return nil, err
		}
		d.PreviousValue = assessment.ResponseValue(value.String)
		d.CreatedOn, _ = time.Parse(time.RFC3339, createdOn)
		out = append(out, d)
	}
	return out, rows.Err()
}

func (c *conn) CountDeltas(ctx context.Context, id assessment.AssessmentID, typ assessment.DeltaType) (int, error) {
	var n int
	err := c.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM response_deltas
		WHERE assessment_id = ? AND delta_type = ?`, id, typ).Scan(&n)
	return n, err
}

// =============================================================================
// TASKS
// =============================================================================

func (c *conn) CreateTask(ctx context.Context, t *assessment.GradeCalculationTask) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO grade_calculation_tasks
		(id, assessment_id, completed, active, created_on, modified_on)
		VALUES (?, ?, ?, ?, ?, ?)`,
		t.ID, t.AssessmentID, t.Completed, t.Active,
		t.CreatedOn.Format(time.RFC3339), t.ModifiedOn.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}
	return nil
}

func (c *conn) UpdateTask(ctx context.Context, t *assessment.GradeCalculationTask) error {
	res, err := c.db.ExecContext(ctx, `
		UPDATE grade_calculation_tasks SET completed = ?, active = ?, modified_on = ?
		WHERE id = ?`,
		t.Completed, t.Active, t.ModifiedOn.Format(time.RFC3339), t.ID)
	if err != nil {
		return fmt.Errorf("failed to update task: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return assessment.NotFoundf("task %s not found", t.ID)
	}
	return nil
}

func (c *conn) GetTask(ctx context.Context, id assessment.TaskID) (*assessment.GradeCalculationTask, error) {
	row := c.db.QueryRowContext(ctx, `
		SELECT id, assessment_id, completed, active, created_on, modified_on
		FROM grade_calculation_tasks WHERE id = ?`, id)
	t, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, assessment.NotFoundf("task %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query task: %w", err)
	}
	return t, nil
}

func (c *conn) ActiveTask(ctx context.Context, id assessment.AssessmentID) (*assessment.GradeCalculationTask, error) {
	row := c.db.QueryRowContext(ctx, `
		SELECT id, assessment_id, completed, active, created_on, modified_on
		FROM grade_calculation_tasks
		WHERE assessment_id = ? AND active = TRUE
		ORDER BY created_on DESC LIMIT 1`, id)
	t, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, assessment.NotFoundf("assessment %s has no active task", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query active task: %w", err)
	}
	return t, nil
}

func scanTask(row scannable) (*assessment.GradeCalculationTask, error) {
	var t assessment.GradeCalculationTask
	var createdOn, modifiedOn string
	if err := row.Scan(&t.ID, &t.AssessmentID, &t.Completed, &t.Active,
		&createdOn, &modifiedOn); err != nil {
		return nil, err
	}
	t.CreatedOn, _ = time.Parse(time.RFC3339, createdOn)
	t.ModifiedOn, _ = time.Parse(time.RFC3339, modifiedOn)
	return &t, nil
}

// =============================================================================
// SCORES
// =============================================================================

func (c *conn) UpsertItemScore(ctx context.Context, s *assessment.ItemScore) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO assessment_item_scores
		(item_id, assessment_id, grade, score, created_by, modified_on)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(item_id, assessment_id) DO UPDATE SET
			grade = excluded.grade,
			score = excluded.score,
			modified_on = excluded.modified_on`,
		s.ItemID, s.AssessmentID, nullGrade(s.Grade), nullDecimal(s.Score),
		s.CreatedBy, s.ModifiedOn.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to upsert item score: %w", err)
	}
	return nil
}

func (c *conn) GetItemScore(ctx context.Context, assessmentID assessment.AssessmentID, itemID assessment.ItemID) (*assessment.ItemScore, error) {
	row := c.db.QueryRowContext(ctx, `
		SELECT item_id, assessment_id, grade, score, created_by, modified_on
		FROM assessment_item_scores
		WHERE assessment_id = ? AND item_id = ?`, assessmentID, itemID)
	s, err := scanItemScore(row)
	if err == sql.ErrNoRows {
		return nil, assessment.NotFoundf("no score for item %s in assessment %s", itemID, assessmentID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query item score: %w", err)
	}
	return s, nil
}

func (c *conn) ItemScoresByAssessment(ctx context.Context, id assessment.AssessmentID) ([]assessment.ItemScore, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT item_id, assessment_id, grade, score, created_by, modified_on
		FROM assessment_item_scores WHERE assessment_id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query item scores: %w", err)
	}
	defer rows.Close()

	var out []assessment.ItemScore
	for rows.Next() {
		s, err := scanItemScore(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

func scanItemScore(row scannable) (*assessment.ItemScore, error) {
	var s assessment.ItemScore
	var grade, score sql.NullString
	var modifiedOn string
	if err := row.Scan(&s.ItemID, &s.AssessmentID, &grade, &score,
		&s.CreatedBy, &modifiedOn); err != nil {
		return nil, err
	}
	s.Grade = assessment.ItemGrade(grade.String)
	if score.Valid {
		d, err := decimal.NewFromString(score.String)
		if err == nil {
			s.Score = &d
		}
	}
	s.ModifiedOn, _ = time.Parse(time.RFC3339, modifiedOn)
	return &s, nil
}

func (c *conn) UpsertSubareaScore(ctx context.Context, s *assessment.SubareaScore) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO assessment_subarea_scores
		(subarea_id, assessment_id, score, tech_debt_count, modified_on)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(subarea_id, assessment_id) DO UPDATE SET
			score = excluded.score,
			tech_debt_count = excluded.tech_debt_count,
			modified_on = excluded.modified_on`,
		s.SubareaID, s.AssessmentID, nullDecimal(s.Score),
		s.TechDebtCount, s.ModifiedOn.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to upsert subarea score: %w", err)
	}
	return nil
}

func (c *conn) SubareaScoresByAssessment(ctx context.Context, id assessment.AssessmentID) ([]assessment.SubareaScore, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT subarea_id, assessment_id, score, tech_debt_count, modified_on
		FROM assessment_subarea_scores WHERE assessment_id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query subarea scores: %w", err)
	}
	defer rows.Close()

	var out []assessment.SubareaScore
	for rows.Next() {
		var s assessment.SubareaScore
		var score sql.NullString
		var modifiedOn string
		if err := rows.Scan(&s.SubareaID, &s.AssessmentID, &score,
			&s.TechDebtCount, &modifiedOn); err != nil {
			return nil, err
		}
		if score.Valid {
			d, err := decimal.NewFromString(score.String)
			if err == nil {
				s.Score = &d
			}
		}
		s.ModifiedOn, _ = time.Parse(time.RFC3339, modifiedOn)
		out = append(out, s)
	}
	return out, rows.Err()
}

// =============================================================================
// HELPERS
// =============================================================================

func nullValue(v assessment.ResponseValue) any {
	if !v.Answered() {
		return nil
	}
	return string(v)
}

func nullGrade(g assessment.ItemGrade) any {
	if g == "" {
		return nil
	}
	return string(g)
}

func nullDecimal(d *decimal.Decimal) any {
	if d == nil {
		return nil
	}
	return d.String()
}
