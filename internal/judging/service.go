package judging

import (
	"context"

	"github.com/google/uuid"

	"github.com/robogatedev/tournament-server/internal/apperr"
	"github.com/robogatedev/tournament-server/internal/models"
	"github.com/robogatedev/tournament-server/internal/roles"
)

// Notification names this service broadcasts.
const (
	NotifyDeliberationStarted = "deliberationStarted"
	NotifyDeliberationLocked  = "deliberationLocked"
	NotifyTeamDisqualified    = "teamDisqualified"
	NotifyAwardFinalized      = "awardFinalized"
)

// deliberationRoles may lock or disqualify. Lead judges are additionally
// scoped to their own category by the association check.
var deliberationRoles = []roles.Role{roles.RoleLeadJudge, roles.RoleJudgeAdvisor, roles.RoleTournamentManager}

// finalDeliberationRoles may act on the final cross-category deliberation,
// which no single lead judge owns.
var finalDeliberationRoles = []roles.Role{roles.RoleJudgeAdvisor, roles.RoleTournamentManager}

// Notifier is the broadcast seam; the websocket hub satisfies it.
type Notifier interface {
	Notify(eventID uuid.UUID, name string, params map[string]string)
}

// Service is the deliberation engine and award finalizer. It is the sole
// writer of disqualifications and of award winners; it reads deliberation
// state but the finalizer never mutates it.
type Service struct {
	store    Store
	notifier Notifier
}

// NewService builds a judging service.
func NewService(store Store, notifier Notifier) *Service {
	return &Service{store: store, notifier: notifier}
}

// authorizeDeliberation applies the role and category-scope rules for a
// specific deliberation.
func authorizeDeliberation(actor roles.Identity, d models.JudgingDeliberation) error {
	if d.IsFinal {
		return roles.Authorize(actor, finalDeliberationRoles, nil)
	}
	var scope *roles.Association
	if d.Category != nil {
		scope = &roles.Association{Type: roles.AssociationCategory, Value: string(*d.Category)}
	}
	return roles.Authorize(actor, deliberationRoles, scope)
}

// BeginDeliberation moves a deliberation from not-started to in-progress.
// This is the required entry edge: locking is only reachable through it.
func (s *Service) BeginDeliberation(ctx context.Context, actor roles.Identity, deliberationID uuid.UUID) (models.JudgingDeliberation, error) {
	return s.transition(ctx, actor, deliberationID, models.DeliberationStatusInProgress, NotifyDeliberationStarted)
}

// LockDeliberation irreversibly completes a deliberation. Only an
// in-progress deliberation can be locked; completed is the last reachable
// state. Locking the final deliberation freezes the division's
// disqualification set for award finalization.
func (s *Service) LockDeliberation(ctx context.Context, actor roles.Identity, deliberationID uuid.UUID) (models.JudgingDeliberation, error) {
	return s.transition(ctx, actor, deliberationID, models.DeliberationStatusCompleted, NotifyDeliberationLocked)
}

func (s *Service) transition(ctx context.Context, actor roles.Identity, deliberationID uuid.UUID, want models.DeliberationStatus, notify string) (models.JudgingDeliberation, error) {
	d, err := s.store.Deliberation(ctx, deliberationID)
	if err != nil {
		return models.JudgingDeliberation{}, err
	}
	if err := authorizeDeliberation(actor, d); err != nil {
		return models.JudgingDeliberation{}, err
	}

	next, err := TransitionDeliberation(d.Status, want)
	if err != nil {
		return models.JudgingDeliberation{}, err
	}

	d.Status = next
	if err := s.store.SaveDeliberation(ctx, &d); err != nil {
		return models.JudgingDeliberation{}, err
	}

	s.notify(ctx, d.DivisionID, notify, map[string]string{
		"deliberationId": d.ID.String(),
	})
	return d, nil
}

// DisqualifyTeam appends a team to the current non-completed deliberation's
// disqualification set. "Current" is the first deliberation, in category
// order then final, that is not yet locked. The operation is idempotent:
// re-disqualifying a team leaves the set unchanged and still succeeds. Once
// every deliberation is locked the division's set is frozen and the call
// fails with invalid-transition.
func (s *Service) DisqualifyTeam(ctx context.Context, actor roles.Identity, divisionID, teamID uuid.UUID) error {
	ds, err := s.store.DeliberationsByDivision(ctx, divisionID)
	if err != nil {
		return err
	}
	if len(ds) == 0 {
		return apperr.ErrNotFound
	}

	var current *models.JudgingDeliberation
	for i := range ds {
		if err := CanDisqualify(ds[i].Status); err == nil {
			current = &ds[i]
			break
		}
	}
	if current == nil {
		return apperr.Transitionf("all deliberations in division %s are completed", divisionID)
	}

	if err := authorizeDeliberation(actor, *current); err != nil {
		return err
	}

	// The team must exist in this division before it can be disqualified.
	team, err := s.store.Team(ctx, teamID)
	if err != nil {
		return err
	}
	if team.DivisionID != divisionID {
		return apperr.Validationf("team %s is not in division %s", teamID, divisionID)
	}

	added, err := s.store.AddDisqualification(ctx, current.ID, teamID)
	if err != nil {
		return err
	}
	if added {
		s.notify(ctx, divisionID, NotifyTeamDisqualified, map[string]string{
			"deliberationId": current.ID.String(),
			"teamId":         teamID.String(),
		})
	}
	return nil
}

// AwardSelection is the externally-supplied winner choice for one award.
// Exactly one of TeamID / Text must be set: team awards reference a team,
// non-team awards carry free text.
type AwardSelection struct {
	AwardID uuid.UUID
	TeamID  *uuid.UUID
	Text    *string
}

// FinalizeAward validates and records an award winner. The award's backing
// deliberation (its category's, or the final one for cross-category awards)
// must be completed; a team winner must not appear anywhere in the
// division's disqualification set; and an award finalizes exactly once —
// concurrent finalizations of the same (name, place) resolve to one winner
// and one duplicate-award error.
func (s *Service) FinalizeAward(ctx context.Context, actor roles.Identity, sel AwardSelection) (models.Award, error) {
	if err := roles.Authorize(actor, []roles.Role{roles.RoleJudgeAdvisor, roles.RoleTournamentManager}, nil); err != nil {
		return models.Award{}, err
	}
	if (sel.TeamID == nil) == (sel.Text == nil || *sel.Text == "") {
		return models.Award{}, apperr.Validationf("exactly one of team winner or text winner must be set")
	}

	award, err := s.store.Award(ctx, sel.AwardID)
	if err != nil {
		return models.Award{}, err
	}
	if award.Finalized() {
		return models.Award{}, apperr.ErrDuplicateAward
	}

	backing, err := s.backingDeliberation(ctx, award)
	if err != nil {
		return models.Award{}, err
	}
	if backing.Status != models.DeliberationStatusCompleted {
		return models.Award{}, apperr.Transitionf("deliberation backing award %q is %s, not completed", award.Name, backing.Status)
	}

	if sel.TeamID != nil {
		team, err := s.store.Team(ctx, *sel.TeamID)
		if err != nil {
			return models.Award{}, err
		}
		if team.DivisionID != award.DivisionID {
			return models.Award{}, apperr.Validationf("team %s is not in division %s", team.ID, award.DivisionID)
		}

		disqualified, err := s.store.DivisionDisqualifications(ctx, award.DivisionID)
		if err != nil {
			return models.Award{}, err
		}
		for _, id := range disqualified {
			if id == *sel.TeamID {
				return models.Award{}, apperr.ErrDisqualifiedWinner
			}
		}
	}

	claimed, err := s.store.ClaimAwardWinner(ctx, award.ID, sel.TeamID, sel.Text)
	if err != nil {
		return models.Award{}, err
	}
	if !claimed {
		// Another finalizer committed between our read and the claim.
		return models.Award{}, apperr.ErrDuplicateAward
	}

	award.WinnerTeamID = sel.TeamID
	award.WinnerText = sel.Text
	s.notify(ctx, award.DivisionID, NotifyAwardFinalized, map[string]string{
		"awardId": award.ID.String(),
	})
	return award, nil
}

// backingDeliberation resolves which deliberation gates an award: the
// category deliberation whose name matches the award, or the final
// cross-category deliberation for everything else (champions and other
// whole-division awards).
func (s *Service) backingDeliberation(ctx context.Context, award models.Award) (models.JudgingDeliberation, error) {
	ds, err := s.store.DeliberationsByDivision(ctx, award.DivisionID)
	if err != nil {
		return models.JudgingDeliberation{}, err
	}

	var final *models.JudgingDeliberation
	for i := range ds {
		if ds[i].IsFinal {
			final = &ds[i]
			continue
		}
		if ds[i].Category != nil && string(*ds[i].Category) == award.Name {
			return ds[i], nil
		}
	}
	if final == nil {
		return models.JudgingDeliberation{}, apperr.ErrNotFound
	}
	return *final, nil
}

// CreateAward registers an award slot. Duplicate (name, place) pairs in a
// division are rejected with duplicate-award.
func (s *Service) CreateAward(ctx context.Context, actor roles.Identity, award models.Award) (models.Award, error) {
	if err := roles.Authorize(actor, []roles.Role{roles.RoleJudgeAdvisor}, nil); err != nil {
		return models.Award{}, err
	}
	if award.Name == "" {
		return models.Award{}, apperr.Validationf("award name is required")
	}
	if award.Place < 1 {
		return models.Award{}, apperr.Validationf("award place must be positive, got %d", award.Place)
	}
	if err := s.store.CreateAward(ctx, &award); err != nil {
		return models.Award{}, err
	}
	return award, nil
}

// EnsureDeliberations creates the division's deliberation set if missing —
// one per category plus the final one. Idempotent.
func (s *Service) EnsureDeliberations(ctx context.Context, divisionID uuid.UUID) error {
	return s.store.EnsureDeliberations(ctx, divisionID)
}

// GetDeliberation returns one deliberation with its disqualification set.
func (s *Service) GetDeliberation(ctx context.Context, id uuid.UUID) (models.JudgingDeliberation, []uuid.UUID, error) {
	d, err := s.store.Deliberation(ctx, id)
	if err != nil {
		return models.JudgingDeliberation{}, nil, err
	}
	dsq, err := s.store.Disqualifications(ctx, id)
	if err != nil {
		return models.JudgingDeliberation{}, nil, err
	}
	return d, dsq, nil
}

// ListDeliberations returns a division's deliberations, categories first.
func (s *Service) ListDeliberations(ctx context.Context, divisionID uuid.UUID) ([]models.JudgingDeliberation, error) {
	return s.store.DeliberationsByDivision(ctx, divisionID)
}

// ListAwards returns a division's awards in presentation order.
func (s *Service) ListAwards(ctx context.Context, divisionID uuid.UUID) ([]models.Award, error) {
	return s.store.AwardsByDivision(ctx, divisionID)
}

func (s *Service) notify(ctx context.Context, divisionID uuid.UUID, name string, params map[string]string) {
	division, err := s.store.Division(ctx, divisionID)
	if err != nil {
		return // broadcast is best-effort past the store write
	}
	s.notifier.Notify(division.EventID, name, params)
}
