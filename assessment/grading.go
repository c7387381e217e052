/*
grading.go - Grade derivation and score roll-up

PURPOSE:
  Turns one assessment's answers into item grades, subarea scores and
  (on the final run) an overall score plus a tech-debt count. Runs
  asynchronously off the grade-calculation queue, once when the
  assessment is Submitted (manager track) and once when it is Reviewed
  (reviewer track).

PIPELINE (one transaction per run):
  1. Normalize: fill unanswered rows on the triggering track with
     defaults so every activity has an answer.
  2. Item grades: derive a letter grade per item from its activities'
     answers, weighted by activity importance.
  3. Item scores: map each grade to a fraction of the item's effective
     weightage.
  4. Roll-up (Reviewed run only): subarea scores as percentage of
     achieved weightage over available weightage, excluding NA items,
     each with a tech-debt count of reviewer "No" answers; then the
     overall mean and total tech debt, written onto the assessment
     row. The Submitted run stops at item scores.

IDEMPOTENCE:
  Every write is an upsert keyed per assessment, so re-running a task
  yields identical rows. A run whose task token has been deactivated
  (a newer run superseded it) exits without writing anything.
*/
package assessment

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

var (
	two     = decimal.NewFromInt(2)
	four    = decimal.NewFromInt(4)
	hundred = decimal.NewFromInt(100)
)

// GradingEngine computes scores for one assessment at a time.
type GradingEngine struct {
	Store TxStore
	Now   func() time.Time
}

func NewGradingEngine(st TxStore) *GradingEngine {
	return &GradingEngine{Store: st, Now: time.Now}
}

// Calculate runs the full grading pipeline for one task. The trigger
// status selects the track: Submitted grades manager answers per
// item, Reviewed grades reviewer answers and additionally rolls up
// subarea and overall scores.
func (e *GradingEngine) Calculate(ctx context.Context, assessmentID AssessmentID, taskID TaskID, trigger AssessmentStatus) error {
	if trigger != StatusSubmitted && trigger != StatusReviewed {
		return InvalidInputf("grading cannot be triggered by status %s", trigger)
	}
	now := e.Now().UTC()

	return e.Store.WithTx(ctx, func(tx Store) error {
		task, err := tx.GetTask(ctx, taskID)
		if err != nil {
			return err
		}
		if !task.Active {
			// Superseded by a newer run; drop the result.
			return nil
		}
		if task.AssessmentID != assessmentID {
			return InvalidInputf("task %s does not belong to assessment %s", taskID, assessmentID)
		}

		a, err := tx.GetAssessment(ctx, assessmentID)
		if err != nil {
			return err
		}
		tree, err := LoadTree(ctx, tx, a.ChecklistID)
		if err != nil {
			return err
		}

		answers, err := e.normalize(ctx, tx, a, trigger, now)
		if err != nil {
			return err
		}

		// Reviewer "No" answers are the tech-debt signal; only the
		// Reviewed run persists them.
		var reviewerNo map[ActivityID]bool
		if trigger == StatusReviewed {
			if reviewerNo, err = reviewerNoSet(ctx, tx, a.ID); err != nil {
				return err
			}
		}

		var subareaScores []decimal.Decimal
		for _, sub := range tree.AllSubareas() {
			score, debt, err := e.gradeSubarea(ctx, tx, tree, sub, a, answers, reviewerNo, now)
			if err != nil {
				return err
			}
			if trigger != StatusReviewed {
				continue
			}
			if err := tx.UpsertSubareaScore(ctx, &SubareaScore{
				SubareaID:     sub.ID,
				AssessmentID:  a.ID,
				Score:         score,
				TechDebtCount: debt,
				ModifiedOn:    now,
			}); err != nil {
				return err
			}
			if score != nil {
				subareaScores = append(subareaScores, *score)
			}
		}

		if trigger == StatusReviewed {
			overall := overallScore(subareaScores)
			debt := len(reviewerNo)
			a.OverallScore = &overall
			a.TechDebt = &debt
			a.ModifiedOn = now
			if err := tx.UpdateAssessment(ctx, a); err != nil {
				return err
			}
		}

		task.Completed = true
		task.ModifiedOn = now
		return tx.UpdateTask(ctx, task)
	})
}

// normalize fills unanswered rows on the grading track. On submission
// an unanswered manager row defaults to No; on review an unanswered
// reviewer row inherits the manager's answer. Returns the normalized
// track keyed by activity.
func (e *GradingEngine) normalize(ctx context.Context, st Store, a *Assessment, trigger AssessmentStatus, now time.Time) (map[ActivityID]Response, error) {
	track := ManagerResponse
	if trigger == StatusReviewed {
		track = ReviewerResponse
	}
	rows, err := st.ResponsesByAssessment(ctx, a.ID, track)
	if err != nil {
		return nil, err
	}

	var managerValues map[ActivityID]ResponseValue
	if track == ReviewerResponse {
		manager, err := responsesByActivity(ctx, st, a.ID, ManagerResponse)
		if err != nil {
			return nil, err
		}
		managerValues = make(map[ActivityID]ResponseValue, len(manager))
		for id, r := range manager {
			managerValues[id] = r.Value
		}
	}

	out := make(map[ActivityID]Response, len(rows))
	for i := range rows {
		r := rows[i]
		if !r.Value.Answered() {
			switch track {
			case ManagerResponse:
				r.Value = AnswerNo
			case ReviewerResponse:
				if v := managerValues[r.ActivityID]; v.Answered() {
					r.Value = v
				} else {
					r.Value = AnswerNo
				}
			}
			r.ModifiedOn = now
			if err := st.UpdateResponse(ctx, &r); err != nil {
				return nil, err
			}
		}
		out[r.ActivityID] = r
	}
	return out, nil
}

func (e *GradingEngine) gradeSubarea(ctx context.Context, st Store, tree *TreeView, sub Subarea, a *Assessment, answers map[ActivityID]Response, reviewerNo map[ActivityID]bool, now time.Time) (*decimal.Decimal, int, error) {
	achieved := decimal.Zero
	available := decimal.Zero
	graded := false
	debt := 0

	for _, item := range tree.Items[sub.ID] {
		activities := tree.Activities[item.ID]
		grade := DeriveItemGrade(activities, answers)
		score := GradeScore(grade, item.EffectiveWeightage)

		if err := st.UpsertItemScore(ctx, &ItemScore{
			ItemID:       item.ID,
			AssessmentID: a.ID,
			Grade:        grade,
			Score:        score,
			ModifiedOn:   now,
		}); err != nil {
			return nil, 0, err
		}

		if score != nil {
			achieved = achieved.Add(*score)
			available = available.Add(item.EffectiveWeightage)
			graded = true
		}
		for _, act := range activities {
			if reviewerNo[act.ID] {
				debt++
			}
		}
	}

	if !graded || available.IsZero() {
		return nil, debt, nil
	}
	pct := achieved.Div(available).Mul(hundred).Round(2)
	return &pct, debt, nil
}

// OverrideItemGrade replaces one item's computed grade with a manual
// one and re-rolls the affected subarea and, when already graded, the
// overall score. Only terminal assessments accept overrides; earlier
// states would just be overwritten by the next grading run.
func (e *GradingEngine) OverrideItemGrade(ctx context.Context, assessmentID AssessmentID, itemID ItemID, grade ItemGrade, actor UserID) error {
	if !grade.Valid() {
		return InvalidInputf("unrecognized item grade %q", grade)
	}
	now := e.Now().UTC()

	return e.Store.WithTx(ctx, func(tx Store) error {
		a, err := tx.GetAssessment(ctx, assessmentID)
		if err != nil {
			return err
		}
		if a.Status != StatusReviewed {
			return InvalidStatef("grades can only be overridden once the assessment is Reviewed")
		}
		item, err := tx.GetItem(ctx, itemID)
		if err != nil {
			return err
		}

		if err := tx.UpsertItemScore(ctx, &ItemScore{
			ItemID:       itemID,
			AssessmentID: assessmentID,
			Grade:        grade,
			Score:        GradeScore(grade, item.EffectiveWeightage),
			CreatedBy:    actor,
			ModifiedOn:   now,
		}); err != nil {
			return err
		}
		if err := e.rollupSubarea(ctx, tx, a, item.SubareaID, now); err != nil {
			return err
		}
		return e.rollupOverall(ctx, tx, a, actor, now)
	})
}

// rollupSubarea recomputes one subarea's score from the stored item
// scores, preserving the stored tech-debt count.
func (e *GradingEngine) rollupSubarea(ctx context.Context, st Store, a *Assessment, subareaID SubareaID, now time.Time) error {
	items, err := st.ItemsBySubarea(ctx, subareaID)
	if err != nil {
		return err
	}

	achieved := decimal.Zero
	available := decimal.Zero
	graded := false
	for _, item := range items {
		is, err := st.GetItemScore(ctx, a.ID, item.ID)
		if err != nil {
			if IsNotFound(err) {
				continue
			}
			return err
		}
		if is.Score == nil {
			continue
		}
		achieved = achieved.Add(*is.Score)
		available = available.Add(item.EffectiveWeightage)
		graded = true
	}

	var score *decimal.Decimal
	if graded && !available.IsZero() {
		pct := achieved.Div(available).Mul(hundred).Round(2)
		score = &pct
	}

	debt := 0
	existing, err := st.SubareaScoresByAssessment(ctx, a.ID)
	if err != nil {
		return err
	}
	for _, s := range existing {
		if s.SubareaID == subareaID {
			debt = s.TechDebtCount
			break
		}
	}
	return st.UpsertSubareaScore(ctx, &SubareaScore{
		SubareaID:     subareaID,
		AssessmentID:  a.ID,
		Score:         score,
		TechDebtCount: debt,
		ModifiedOn:    now,
	})
}

func (e *GradingEngine) rollupOverall(ctx context.Context, st Store, a *Assessment, actor UserID, now time.Time) error {
	subareas, err := st.SubareaScoresByAssessment(ctx, a.ID)
	if err != nil {
		return err
	}
	var scores []decimal.Decimal
	for _, s := range subareas {
		if s.Score != nil {
			scores = append(scores, *s.Score)
		}
	}
	overall := overallScore(scores)
	a.OverallScore = &overall
	a.ModifiedBy = actor
	a.ModifiedOn = now
	return st.UpdateAssessment(ctx, a)
}

// =============================================================================
// GRADE DERIVATION
// =============================================================================

// DeriveItemGrade computes one item's letter grade from its
// activities' answers on the grading track.
//
//	all NA                        NA
//	all No, or no Yes at all      D
//	any No on a MIMH activity     D
//	any No on a MH activity       C
//	any No on a GH activity       B
//	otherwise                     A
//
// Unanswered activities count as No; normalization runs first so this
// only matters for malformed data.
func DeriveItemGrade(activities []Activity, answers map[ActivityID]Response) ItemGrade {
	if len(activities) == 0 {
		return GradeNA
	}

	total := len(activities)
	naCount, noCount := 0, 0
	noMIMH, noMH, noGH := false, false, false

	for _, act := range activities {
		v := answers[act.ID].Value
		switch v {
		case AnswerNA:
			naCount++
		case AnswerYes:
		default: // No or unanswered
			noCount++
			switch act.Importance {
			case MostImportantMustHave:
				noMIMH = true
			case MustHave:
				noMH = true
			case GoodToHave:
				noGH = true
			}
		}
	}

	switch {
	case naCount == total:
		return GradeNA
	case noCount == total, noCount+naCount == total:
		return GradeD
	case noMIMH:
		return GradeD
	case noMH:
		return GradeC
	case noGH:
		return GradeB
	default:
		return GradeA
	}
}

// GradeScore maps a grade to its share of the item's effective
// weightage. NA yields nil: the item is excluded from the subarea
// roll-up entirely.
func GradeScore(grade ItemGrade, effectiveWeightage decimal.Decimal) *decimal.Decimal {
	var score decimal.Decimal
	switch grade {
	case GradeA:
		score = effectiveWeightage
	case GradeB:
		score = effectiveWeightage.Div(two)
	case GradeC:
		score = effectiveWeightage.Div(four)
	case GradeD:
		score = decimal.Zero
	default:
		return nil
	}
	return &score
}

// overallScore averages the non-nil subarea scores, rounded to two
// places. An assessment where every subarea is NA scores 100.
func overallScore(scores []decimal.Decimal) decimal.Decimal {
	if len(scores) == 0 {
		return hundred
	}
	sum := decimal.Zero
	for _, s := range scores {
		sum = sum.Add(s)
	}
	return sum.Div(decimal.NewFromInt(int64(len(scores)))).Round(2)
}

func reviewerNoSet(ctx context.Context, st Store, id AssessmentID) (map[ActivityID]bool, error) {
	rows, err := st.ResponsesByAssessment(ctx, id, ReviewerResponse)
	if err != nil {
		return nil, err
	}
	out := make(map[ActivityID]bool)
	for _, r := range rows {
		if r.Value == AnswerNo {
			out[r.ActivityID] = true
		}
	}
	return out, nil
}
