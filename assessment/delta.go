/*
delta.go - Cross-cycle answer change tracking

PURPOSE:
  Captures append-only delta rows that record how answers moved between
  audit cycles. Two kinds exist, captured at different moments:

  - ReviewerDelta, at assessment creation: for each activity where the
    project's last Reviewed cycle ended with the reviewer overriding
    the manager, record the reviewer's final answer. The new cycle's
    manager sees exactly what was corrected last time.

  - ManagerDelta, at submission: for each activity where the manager's
    answer or comment differs from the last submitted-or-later cycle,
    record the previous answer. The reviewer sees what changed since
    the cycle they last looked at.

  Delta rows are never updated or deleted. Both captures run inside
  the transaction of the operation that triggers them, so a failed
  capture fails the whole operation.
*/
package assessment

import (
	"context"
	"time"
)

// CaptureReviewerDelta records reviewer-override deltas for a freshly
// created assessment. Looks up the project's latest Reviewed
// assessment; if none exists, or it was run against a different
// checklist version, nothing is captured.
func CaptureReviewerDelta(ctx context.Context, st Store, a *Assessment, actor UserID, now time.Time) error {
	prev, err := st.LatestAssessment(ctx, a.ProjectID, []AssessmentStatus{StatusReviewed}, a.ID)
	if err != nil {
		if IsNotFound(err) {
			return nil
		}
		return err
	}
	if prev.ChecklistID != a.ChecklistID {
		return nil
	}

	manager, err := responsesByActivity(ctx, st, prev.ID, ManagerResponse)
	if err != nil {
		return err
	}
	reviewer, err := responsesByActivity(ctx, st, prev.ID, ReviewerResponse)
	if err != nil {
		return err
	}

	var deltas []ResponseDelta
	for activityID, rev := range reviewer {
		man, ok := manager[activityID]
		if !ok {
			continue
		}
		if rev.Value == man.Value {
			continue
		}
		deltas = append(deltas, ResponseDelta{
			ID:                   DeltaID(NewID()),
			ActivityID:           activityID,
			AssessmentID:         a.ID,
			PreviousAssessmentID: prev.ID,
			Type:                 ReviewerDelta,
			PreviousValue:        rev.Value,
			PreviousComments:     rev.Comments,
			CreatedBy:            actor,
			CreatedOn:            now,
		})
	}
	if len(deltas) == 0 {
		return nil
	}
	return st.CreateDeltas(ctx, deltas)
}

// CaptureManagerDelta records manager-change deltas when an assessment
// is submitted. The baseline is the project's latest assessment that
// reached Submitted, UnderReview or Reviewed, excluding the current
// one; a value OR comment difference produces a delta carrying the
// previous answer.
func CaptureManagerDelta(ctx context.Context, st Store, a *Assessment, actor UserID, now time.Time) error {
	prev, err := st.LatestAssessment(ctx, a.ProjectID,
		[]AssessmentStatus{StatusSubmitted, StatusUnderReview, StatusReviewed}, a.ID)
	if err != nil {
		if IsNotFound(err) {
			return nil
		}
		return err
	}
	if prev.ChecklistID != a.ChecklistID {
		return nil
	}

	previous, err := responsesByActivity(ctx, st, prev.ID, ManagerResponse)
	if err != nil {
		return err
	}
	current, err := responsesByActivity(ctx, st, a.ID, ManagerResponse)
	if err != nil {
		return err
	}

	var deltas []ResponseDelta
	for activityID, cur := range current {
		old, ok := previous[activityID]
		if !ok {
			continue
		}
		if old.Value == cur.Value && old.Comments == cur.Comments {
			continue
		}
		deltas = append(deltas, ResponseDelta{
			ID:                   DeltaID(NewID()),
			ActivityID:           activityID,
			AssessmentID:         a.ID,
			PreviousAssessmentID: prev.ID,
			Type:                 ManagerDelta,
			PreviousValue:        old.Value,
			PreviousComments:     old.Comments,
			CreatedBy:            actor,
			CreatedOn:            now,
		})
	}
	if len(deltas) == 0 {
		return nil
	}
	return st.CreateDeltas(ctx, deltas)
}

func responsesByActivity(ctx context.Context, st Store, id AssessmentID, typ ResponseType) (map[ActivityID]Response, error) {
	rows, err := st.ResponsesByAssessment(ctx, id, typ)
	if err != nil {
		return nil, err
	}
	out := make(map[ActivityID]Response, len(rows))
	for _, r := range rows {
		out[r.ActivityID] = r
	}
	return out, nil
}
