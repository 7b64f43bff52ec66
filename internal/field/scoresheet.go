// Package field owns the robot-game side of a tournament day: the match
// registry and the scoresheet approval workflow. Both are explicit state
// machines — every legal edge is listed in a transition table and anything
// else is an invalid-transition error, so the set of illegal moves is checked
// in one place instead of being scattered across handlers.
package field

import (
	"github.com/robogatedev/tournament-server/internal/apperr"
	"github.com/robogatedev/tournament-server/internal/models"
	"github.com/robogatedev/tournament-server/internal/roles"
)

// Action is an operation attempted against a scoresheet.
type Action string

const (
	// ActionSave writes scoring data without advancing the approval flow.
	// From empty it moves the sheet to in-progress; from in-progress it
	// stays put. The head referee may also save while the sheet waits for
	// them.
	ActionSave Action = "save"
	// ActionSubmit hands the completed sheet to the head referee.
	ActionSubmit Action = "submit"
	// ActionApprove accepts the sheet; ready is terminal.
	ActionApprove Action = "approve"
	// ActionReopen is the head referee's correction edge: it pulls a ready
	// sheet back to waiting-for-head-ref so it can be edited again. There is
	// no single-step edit of a ready sheet — correction is always
	// reopen-then-save, two ordered operations.
	ActionReopen Action = "reopen"
)

// scoresheetEdges is the full transition table. A (status, action) pair not
// present here is illegal.
var scoresheetEdges = map[models.ScoresheetStatus]map[Action]models.ScoresheetStatus{
	models.ScoresheetStatusEmpty: {
		ActionSave:   models.ScoresheetStatusInProgress,
		ActionSubmit: models.ScoresheetStatusWaitingForHeadRef,
	},
	models.ScoresheetStatusInProgress: {
		ActionSave:   models.ScoresheetStatusInProgress,
		ActionSubmit: models.ScoresheetStatusWaitingForHeadRef,
	},
	models.ScoresheetStatusWaitingForHeadRef: {
		ActionSave:    models.ScoresheetStatusWaitingForHeadRef,
		ActionApprove: models.ScoresheetStatusReady,
	},
	models.ScoresheetStatusReady: {
		ActionReopen: models.ScoresheetStatusWaitingForHeadRef,
	},
}

// TransitionScoresheet returns the status a scoresheet moves to when action
// is applied in the current status, or apperr.ErrInvalidTransition when the
// edge does not exist. It knows nothing about roles; RolesFor covers that.
func TransitionScoresheet(current models.ScoresheetStatus, action Action) (models.ScoresheetStatus, error) {
	if next, ok := scoresheetEdges[current][action]; ok {
		return next, nil
	}
	return current, apperr.Transitionf("scoresheet %s does not allow %s", current, action)
}

// scoresheetActionRoles gates each action. Submit belongs to the table's
// referee; approval and reopening are head-referee only. The head referee may
// also save — being unscoped-privileged they pass the table scope, so their
// saves reach any sheet that is not yet ready, which is what lets them edit
// during review and after a reopen.
var scoresheetActionRoles = map[Action][]roles.Role{
	ActionSave:    {roles.RoleReferee, roles.RoleHeadReferee},
	ActionSubmit:  {roles.RoleReferee},
	ActionApprove: {roles.RoleHeadReferee},
	ActionReopen:  {roles.RoleHeadReferee},
}

// RolesFor returns the roles allowed to perform a scoresheet action.
func RolesFor(action Action) []roles.Role {
	return scoresheetActionRoles[action]
}

// matchEdges: a match only ever moves forward.
var matchEdges = map[models.MatchStatus]models.MatchStatus{
	models.MatchStatusNotStarted: models.MatchStatusInProgress,
	models.MatchStatusInProgress: models.MatchStatusCompleted,
}

// advanceMatch returns the next status in the forward-only match lifecycle.
func advanceMatch(current models.MatchStatus, want models.MatchStatus) (models.MatchStatus, error) {
	next, ok := matchEdges[current]
	if !ok || next != want {
		return current, apperr.Transitionf("match %s cannot move to %s", current, want)
	}
	return next, nil
}
