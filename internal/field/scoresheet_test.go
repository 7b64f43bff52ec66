package field

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robogatedev/tournament-server/internal/apperr"
	"github.com/robogatedev/tournament-server/internal/models"
	"github.com/robogatedev/tournament-server/internal/roles"
)

func TestTransitionScoresheet(t *testing.T) {
	tests := []struct {
		current models.ScoresheetStatus
		action  Action
		want    models.ScoresheetStatus
		wantErr bool
	}{
		{models.ScoresheetStatusEmpty, ActionSave, models.ScoresheetStatusInProgress, false},
		{models.ScoresheetStatusEmpty, ActionSubmit, models.ScoresheetStatusWaitingForHeadRef, false},
		{models.ScoresheetStatusEmpty, ActionApprove, "", true},
		{models.ScoresheetStatusEmpty, ActionReopen, "", true},

		{models.ScoresheetStatusInProgress, ActionSave, models.ScoresheetStatusInProgress, false},
		{models.ScoresheetStatusInProgress, ActionSubmit, models.ScoresheetStatusWaitingForHeadRef, false},
		{models.ScoresheetStatusInProgress, ActionApprove, "", true},
		{models.ScoresheetStatusInProgress, ActionReopen, "", true},

		{models.ScoresheetStatusWaitingForHeadRef, ActionSave, models.ScoresheetStatusWaitingForHeadRef, false},
		{models.ScoresheetStatusWaitingForHeadRef, ActionSubmit, "", true},
		{models.ScoresheetStatusWaitingForHeadRef, ActionApprove, models.ScoresheetStatusReady, false},
		{models.ScoresheetStatusWaitingForHeadRef, ActionReopen, "", true},

		// Ready is terminal for everything except the head referee's reopen.
		{models.ScoresheetStatusReady, ActionSave, "", true},
		{models.ScoresheetStatusReady, ActionSubmit, "", true},
		{models.ScoresheetStatusReady, ActionApprove, "", true},
		{models.ScoresheetStatusReady, ActionReopen, models.ScoresheetStatusWaitingForHeadRef, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.current)+"/"+string(tt.action), func(t *testing.T) {
			next, err := TransitionScoresheet(tt.current, tt.action)
			if tt.wantErr {
				require.ErrorIs(t, err, apperr.ErrInvalidTransition)
				assert.Equal(t, tt.current, next, "a rejected edge must not move the status")
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.want, next)
			}
		})
	}
}

func TestReopenThenSave(t *testing.T) {
	// Correcting a ready sheet takes two ordered operations.
	next, err := TransitionScoresheet(models.ScoresheetStatusReady, ActionReopen)
	require.NoError(t, err)
	require.Equal(t, models.ScoresheetStatusWaitingForHeadRef, next)

	next, err = TransitionScoresheet(next, ActionSave)
	require.NoError(t, err)
	assert.Equal(t, models.ScoresheetStatusWaitingForHeadRef, next)

	next, err = TransitionScoresheet(next, ActionApprove)
	require.NoError(t, err)
	assert.Equal(t, models.ScoresheetStatusReady, next)
}

func TestRolesFor(t *testing.T) {
	assert.ElementsMatch(t, []roles.Role{roles.RoleReferee, roles.RoleHeadReferee}, RolesFor(ActionSave))
	assert.ElementsMatch(t, []roles.Role{roles.RoleReferee}, RolesFor(ActionSubmit))
	assert.ElementsMatch(t, []roles.Role{roles.RoleHeadReferee}, RolesFor(ActionApprove))
	assert.ElementsMatch(t, []roles.Role{roles.RoleHeadReferee}, RolesFor(ActionReopen))
}

func TestAdvanceMatch(t *testing.T) {
	tests := []struct {
		current models.MatchStatus
		want    models.MatchStatus
		wantErr bool
	}{
		{models.MatchStatusNotStarted, models.MatchStatusInProgress, false},
		{models.MatchStatusInProgress, models.MatchStatusCompleted, false},
		// No skipping and no going back.
		{models.MatchStatusNotStarted, models.MatchStatusCompleted, true},
		{models.MatchStatusInProgress, models.MatchStatusInProgress, true},
		{models.MatchStatusCompleted, models.MatchStatusInProgress, true},
		{models.MatchStatusCompleted, models.MatchStatusCompleted, true},
	}

	for _, tt := range tests {
		next, err := advanceMatch(tt.current, tt.want)
		if tt.wantErr {
			require.ErrorIs(t, err, apperr.ErrInvalidTransition, "%s -> %s", tt.current, tt.want)
		} else {
			require.NoError(t, err)
			assert.Equal(t, tt.want, next)
		}
	}
}
