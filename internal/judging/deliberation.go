// Package judging owns the deliberation workflow and award finalization.
//
// A division has one deliberation per judging category plus one final
// cross-category deliberation. The lock state is monotonic — not-started →
// in-progress → completed — and completed never reverts. Locking requires
// the in-progress state: a not-started deliberation cannot jump straight to
// completed, it must be begun first.
//
// Disqualification is global per division: a team disqualified in any
// deliberation is excluded from all award computation, no matter which
// category recorded it.
package judging

import (
	"github.com/robogatedev/tournament-server/internal/apperr"
	"github.com/robogatedev/tournament-server/internal/models"
)

// deliberationEdges lists the legal forward edges. There is deliberately no
// edge out of completed and no not-started → completed shortcut.
var deliberationEdges = map[models.DeliberationStatus]models.DeliberationStatus{
	models.DeliberationStatusNotStarted: models.DeliberationStatusInProgress,
	models.DeliberationStatusInProgress: models.DeliberationStatusCompleted,
}

// TransitionDeliberation validates a move to want from current, returning
// apperr.ErrInvalidTransition for any edge outside the monotonic chain.
func TransitionDeliberation(current, want models.DeliberationStatus) (models.DeliberationStatus, error) {
	if next, ok := deliberationEdges[current]; ok && next == want {
		return next, nil
	}
	return current, apperr.Transitionf("deliberation %s cannot move to %s", current, want)
}

// CanDisqualify reports whether the deliberation still accepts
// disqualifications. Only the completed (locked) state refuses them.
func CanDisqualify(status models.DeliberationStatus) error {
	if status == models.DeliberationStatusCompleted {
		return apperr.Transitionf("deliberation is completed, disqualifications are frozen")
	}
	return nil
}
