/*
seed.go - Demo data loader for local development and demos

PURPOSE:
  Populates the reference tables with a realistic checklist tree, a
  demo project and verified users so the assessment flow can be
  exercised end to end without the platform's sync pipeline.

WHAT GETS SEEDED:
  - One published, active checklist with two areas
  - Subareas, items and activities across all three importance tiers
  - One active quarterly project with a manager and a reviewer

USAGE VIA API:

	POST /api/internal/demo-data

  The endpoint is enabled only when the server is started with a
  seeder (see cmd/server). Seeding upserts, so reloading is safe.

NOTE:

	Only use in development/demo environments. Production reference
	data arrives through the platform sync.

SEE ALSO:
  - store/sqlite: Save* upserts
  - server.go: route registration
*/
package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/tenet/assessment-engine/assessment"
)

// ReferenceWriter persists platform reference data.
type ReferenceWriter interface {
	SaveChecklist(ctx context.Context, c assessment.Checklist) error
	SaveArea(ctx context.Context, a assessment.Area, seq int) error
	SaveSubarea(ctx context.Context, s assessment.Subarea, seq int) error
	SaveItem(ctx context.Context, i assessment.Item, seq int) error
	SaveActivity(ctx context.Context, a assessment.Activity, seq int) error
	SaveProject(ctx context.Context, p assessment.Project) error
	SaveUser(ctx context.Context, u assessment.User) error
}

// SeedDemo loads the demo dataset. Disabled unless a seeder was wired.
func (h *Handler) SeedDemo(w http.ResponseWriter, r *http.Request) {
	if h.Seeder == nil {
		writeError(w, http.StatusNotFound, "demo data seeding is not enabled", nil)
		return
	}
	if err := LoadDemoData(r.Context(), h.Seeder); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to seed demo data", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "seeded"})
}

// LoadDemoData upserts the demo checklist, project and users.
func LoadDemoData(ctx context.Context, w ReferenceWriter) error {
	dec := decimal.NewFromInt

	if err := w.SaveChecklist(ctx, assessment.Checklist{
		ID:       "cl-demo",
		Name:     "Engineering Excellence",
		Status:   assessment.ChecklistPublished,
		IsActive: true,
	}); err != nil {
		return fmt.Errorf("checklist: %w", err)
	}

	areas := []assessment.Area{
		{ID: "area-delivery", ChecklistID: "cl-demo", Name: "Delivery", Weightage: dec(60)},
		{ID: "area-operations", ChecklistID: "cl-demo", Name: "Operations", Weightage: dec(40)},
	}
	for i, a := range areas {
		if err := w.SaveArea(ctx, a, i+1); err != nil {
			return fmt.Errorf("area %s: %w", a.ID, err)
		}
	}

	subareas := []assessment.Subarea{
		{ID: "sub-code-quality", AreaID: "area-delivery", Name: "Code Quality", Weightage: dec(70)},
		{ID: "sub-release", AreaID: "area-delivery", Name: "Release Process", Weightage: dec(30)},
		{ID: "sub-observability", AreaID: "area-operations", Name: "Observability", Weightage: dec(100)},
	}
	for i, s := range subareas {
		if err := w.SaveSubarea(ctx, s, i+1); err != nil {
			return fmt.Errorf("subarea %s: %w", s.ID, err)
		}
	}

	items := []assessment.Item{
		{ID: "item-reviews", SubareaID: "sub-code-quality", Name: "Code Reviews",
			Weightage: dec(10), EffectiveWeightage: dec(10)},
		{ID: "item-static-analysis", SubareaID: "sub-code-quality", Name: "Static Analysis",
			Weightage: dec(5), EffectiveWeightage: dec(5)},
		{ID: "item-ci", SubareaID: "sub-release", Name: "Continuous Integration",
			Weightage: dec(8), EffectiveWeightage: dec(8)},
		{ID: "item-alerting", SubareaID: "sub-observability", Name: "Alerting",
			Weightage: dec(6), EffectiveWeightage: dec(6)},
	}
	for i, it := range items {
		if err := w.SaveItem(ctx, it, i+1); err != nil {
			return fmt.Errorf("item %s: %w", it.ID, err)
		}
	}

	activities := []assessment.Activity{
		{ID: "act-two-approvals", ItemID: "item-reviews", Name: "Every change has two approvals",
			Importance: assessment.MostImportantMustHave},
		{ID: "act-review-sla", ItemID: "item-reviews", Name: "Reviews answered within one day",
			Importance: assessment.MustHave},
		{ID: "act-review-checklist", ItemID: "item-reviews", Name: "Review checklist in the PR template",
			Importance: assessment.GoodToHave},
		{ID: "act-linter-gates", ItemID: "item-static-analysis", Name: "Linter gates the merge",
			Importance: assessment.MustHave},
		{ID: "act-green-main", ItemID: "item-ci", Name: "Main branch stays green",
			Importance: assessment.MostImportantMustHave},
		{ID: "act-pipeline-under-15", ItemID: "item-ci", Name: "Pipeline completes in under 15 minutes",
			Importance: assessment.GoodToHave},
		{ID: "act-paging-alerts", ItemID: "item-alerting", Name: "Paging alerts have runbooks",
			Importance: assessment.MustHave},
		{ID: "act-alert-review", ItemID: "item-alerting", Name: "Alert noise reviewed monthly",
			Importance: assessment.GoodToHave},
	}
	for i, a := range activities {
		if err := w.SaveActivity(ctx, a, i+1); err != nil {
			return fmt.Errorf("activity %s: %w", a.ID, err)
		}
	}

	if err := w.SaveProject(ctx, assessment.Project{
		ID:             "proj-demo",
		AccountID:      "acct-demo",
		Name:           "Payments Platform",
		IsActive:       true,
		AuditFrequency: assessment.Quarterly,
	}); err != nil {
		return fmt.Errorf("project: %w", err)
	}

	users := []assessment.User{
		{ID: "user-demo-manager", Email: "manager@demo.tenet.io", Status: assessment.UserVerified},
		{ID: "user-demo-reviewer", Email: "reviewer@demo.tenet.io", Status: assessment.UserVerified},
	}
	for _, u := range users {
		if err := w.SaveUser(ctx, u); err != nil {
			return fmt.Errorf("user %s: %w", u.ID, err)
		}
	}
	return nil
}
