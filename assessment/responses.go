/*
responses.go - Dual-track answer management

PURPOSE:
  Creates the full response sheet when an assessment is created (two
  rows per activity, one per track, with carry-forward from the prior
  cycle) and applies answer edits with per-edit outcomes.

KEY CONCEPTS:
  - Carry-forward: a new cycle starts pre-filled with the project's
    latest prior answers so managers only touch what changed.
  - Partial success: a batch of edits never fails wholesale on one bad
    row. Each edit reports its own outcome; valid edits in the same
    batch still apply.
*/
package assessment

import (
	"context"
	"time"
)

// =============================================================================
// INITIALIZATION
// =============================================================================

// initializeResponses builds the 2N response rows for a new
// assessment: one ManagerResponse and one ReviewerResponse per
// activity in the tree. When the project has a prior assessment on
// the same checklist, its answers and comments carry forward;
// otherwise rows start unanswered.
func initializeResponses(ctx context.Context, st Store, tree *TreeView, a *Assessment, actor UserID, now time.Time) error {
	// Latest prior cycle regardless of status; a brand-new project has
	// none and that is fine.
	var previous map[ActivityID]map[ResponseType]Response
	prior, err := st.LatestAssessment(ctx, a.ProjectID, nil, a.ID)
	switch {
	case err == nil:
		if prior.ChecklistID == a.ChecklistID {
			previous = make(map[ActivityID]map[ResponseType]Response)
			for _, typ := range []ResponseType{ManagerResponse, ReviewerResponse} {
				rows, err := st.ResponsesByAssessment(ctx, prior.ID, typ)
				if err != nil {
					return err
				}
				for _, r := range rows {
					if previous[r.ActivityID] == nil {
						previous[r.ActivityID] = make(map[ResponseType]Response)
					}
					previous[r.ActivityID][typ] = r
				}
			}
		}
	case IsNotFound(err):
		// first cycle for this project
	default:
		return err
	}

	var responses []Response
	for _, item := range tree.AllItems() {
		for _, activity := range tree.Activities[item.ID] {
			for _, typ := range []ResponseType{ManagerResponse, ReviewerResponse} {
				r := Response{
					ID:           ResponseID(NewID()),
					AssessmentID: a.ID,
					ActivityID:   activity.ID,
					Type:         typ,
					CreatedBy:    actor,
					ModifiedBy:   actor,
					ModifiedOn:   now,
				}
				if prev, ok := previous[activity.ID][typ]; ok {
					r.Value = prev.Value
					r.Comments = prev.Comments
				}
				responses = append(responses, r)
			}
		}
	}
	return st.CreateResponses(ctx, responses)
}

// =============================================================================
// EDITS
// =============================================================================

// ResponseEdit is one requested answer change.
type ResponseEdit struct {
	ResponseID ResponseID
	Value      ResponseValue
	Comments   string
}

// EditFailure classifies why a single edit was rejected.
type EditFailure string

const (
	EditFailureNone            EditFailure = ""
	EditFailureNotFound        EditFailure = "NotFound"
	EditFailureWrongAssessment EditFailure = "WrongAssessment"
	EditFailureRoleMismatch    EditFailure = "RoleMismatch"
	EditFailureInvalidValue    EditFailure = "InvalidValue"
)

// EditResult is the per-edit outcome of an UpdateResponses call.
type EditResult struct {
	ResponseID ResponseID
	Applied    bool
	Failure    EditFailure
	Message    string
}

// UpdateRequest carries one batch of edits against one assessment.
type UpdateRequest struct {
	ProjectID    ProjectID
	AssessmentID AssessmentID
	Actor        UserID
	Role         Role
	Edits        []ResponseEdit
}

// ResponseService applies answer edits.
type ResponseService struct {
	Store    TxStore
	Projects ProjectDirectory
	Now      func() time.Time
}

func NewResponseService(st TxStore, projects ProjectDirectory) *ResponseService {
	return &ResponseService{Store: st, Projects: projects, Now: time.Now}
}

// UpdateResponses validates the request as a whole, then applies each
// edit independently. Request-level failures (unknown project,
// inactive project, assessment not in the project, empty batch, wrong
// lifecycle state for the role) reject everything; edit-level failures
// reject only that edit.
func (s *ResponseService) UpdateResponses(ctx context.Context, req UpdateRequest) ([]EditResult, error) {
	if len(req.Edits) == 0 {
		return nil, InvalidInputf("no response updates supplied")
	}
	project, err := s.Projects.GetProject(ctx, req.ProjectID)
	if err != nil {
		return nil, err
	}
	if !project.IsActive {
		return nil, InvalidStatef("project %s is not active", req.ProjectID)
	}

	a, err := s.Store.GetAssessment(ctx, req.AssessmentID)
	if err != nil {
		return nil, err
	}
	if a.ProjectID != req.ProjectID {
		return nil, InvalidInputf("assessment %s does not belong to project %s", req.AssessmentID, req.ProjectID)
	}
	if err := editableBy(a.Status, req.Role); err != nil {
		return nil, err
	}

	now := s.Now().UTC()
	track := req.Role.ResponseType()
	results := make([]EditResult, 0, len(req.Edits))

	err = s.Store.WithTx(ctx, func(tx Store) error {
		for _, edit := range req.Edits {
			results = append(results, applyEdit(ctx, tx, a, track, req.Actor, edit, now))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// editableBy gates which lifecycle states accept edits on each track.
// Managers answer while the cycle is open to them; reviewers answer
// only during review.
func editableBy(status AssessmentStatus, role Role) error {
	switch role {
	case RoleManager:
		if status == StatusInProgress {
			return nil
		}
	case RoleReviewer:
		if status == StatusUnderReview {
			return nil
		}
	}
	return InvalidStatef("%s responses cannot be edited while assessment is %s", role, status)
}

func applyEdit(ctx context.Context, st Store, a *Assessment, track ResponseType, actor UserID, edit ResponseEdit, now time.Time) EditResult {
	res := EditResult{ResponseID: edit.ResponseID}

	if !edit.Value.Valid() {
		res.Failure = EditFailureInvalidValue
		res.Message = "response value must be Yes, No or NA"
		return res
	}
	r, err := st.GetResponse(ctx, edit.ResponseID)
	if err != nil {
		res.Failure = EditFailureNotFound
		res.Message = "response not found"
		return res
	}
	if r.AssessmentID != a.ID {
		res.Failure = EditFailureWrongAssessment
		res.Message = "response belongs to a different assessment"
		return res
	}
	if r.Type != track {
		res.Failure = EditFailureRoleMismatch
		res.Message = "response is on the other track"
		return res
	}

	r.Value = edit.Value
	r.Comments = edit.Comments
	r.ModifiedBy = actor
	r.ModifiedOn = now
	if err := st.UpdateResponse(ctx, r); err != nil {
		res.Failure = EditFailureNotFound
		res.Message = err.Error()
		return res
	}
	res.Applied = true
	return res
}
