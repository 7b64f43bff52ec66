package field

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/robogatedev/tournament-server/internal/apperr"
	"github.com/robogatedev/tournament-server/internal/models"
	"github.com/robogatedev/tournament-server/internal/roles"
)

// Notification names this service broadcasts. Params carry identifiers only;
// consumers re-fetch authoritative state through the read API.
const (
	NotifyScoresheetUpdated    = "scoresheetUpdated"
	NotifyMatchLoaded          = "matchLoaded"
	NotifyMatchStarted         = "matchStarted"
	NotifyMatchCompleted       = "matchCompleted"
	NotifyDivisionStateChanged = "divisionStateChanged"
)

// Notifier is the broadcast seam. The websocket hub satisfies it; tests plug
// in a recorder. Notify is called only after the corresponding store write
// has been acknowledged — the store is authoritative, the broadcast is
// best-effort.
type Notifier interface {
	Notify(eventID uuid.UUID, name string, params map[string]string)
}

// Service coordinates the match registry, the scoresheet workflow, and the
// division phase state. Every mutation runs the same sequence: authorize,
// validate the transition against current stored state, write, broadcast.
type Service struct {
	store    Store
	notifier Notifier
	now      func() time.Time
}

// NewService builds a field service.
func NewService(store Store, notifier Notifier) *Service {
	return &Service{store: store, notifier: notifier, now: time.Now}
}

// ScoresheetWrite is a full-document scoresheet write, keyed by
// (MatchID, TeamID). Submit selects between a plain save and handing the
// sheet to the head referee.
type ScoresheetWrite struct {
	MatchID   uuid.UUID
	TeamID    uuid.UUID
	Score     int
	Missions  models.MissionList
	Escalated bool
	Submit    bool
}

// UpdateScoresheet performs a referee data write or submission. The caller
// must be the referee associated with the match's table, or the head referee,
// who may save to any sheet that is not yet ready. A write against a ready
// sheet fails with invalid-transition for everyone — correction goes through
// ReopenScoresheet first.
func (s *Service) UpdateScoresheet(ctx context.Context, actor roles.Identity, w ScoresheetWrite) (models.Scoresheet, error) {
	action := ActionSave
	if w.Submit {
		action = ActionSubmit
	}

	match, err := s.store.Match(ctx, w.MatchID)
	if err != nil {
		return models.Scoresheet{}, err
	}

	// Table association is the resource scope: only the table's referee
	// writes this sheet. Head referee passes as unscoped-privileged and may
	// save across tables; the FSM still blocks everyone at ready.
	scope := &roles.Association{Type: roles.AssociationTable, Value: match.TableID.String()}
	if err := roles.Authorize(actor, RolesFor(action), scope); err != nil {
		return models.Scoresheet{}, err
	}

	// A sheet is only scorable once its match has been played.
	if match.Status != models.MatchStatusCompleted {
		return models.Scoresheet{}, apperr.Transitionf("match %s is %s, scoresheet not yet writable", match.ID, match.Status)
	}

	sheet, err := s.store.ScoresheetByMatchTeam(ctx, w.MatchID, w.TeamID)
	if err != nil {
		return models.Scoresheet{}, err
	}

	next, err := TransitionScoresheet(sheet.Status, action)
	if err != nil {
		return models.Scoresheet{}, err
	}

	// Last-write-wins within in-progress is acceptable: association scoping
	// makes the writer for a table-scoped sheet a singleton.
	sheet.Status = next
	sheet.Score = w.Score
	sheet.Missions = w.Missions
	sheet.Escalated = w.Escalated
	if err := s.store.UpsertScoresheet(ctx, &sheet); err != nil {
		return models.Scoresheet{}, err
	}

	s.notifyScoresheet(ctx, sheet)
	return sheet, nil
}

// ApproveScoresheet moves a sheet from waiting-for-head-ref to ready. Head
// referee only; ready is terminal.
func (s *Service) ApproveScoresheet(ctx context.Context, actor roles.Identity, scoresheetID uuid.UUID) (models.Scoresheet, error) {
	return s.headRefTransition(ctx, actor, scoresheetID, ActionApprove)
}

// ReopenScoresheet is the head referee's correction edge: ready back to
// waiting-for-head-ref. Editing a ready sheet is always reopen-then-save,
// two ordered operations.
func (s *Service) ReopenScoresheet(ctx context.Context, actor roles.Identity, scoresheetID uuid.UUID) (models.Scoresheet, error) {
	return s.headRefTransition(ctx, actor, scoresheetID, ActionReopen)
}

func (s *Service) headRefTransition(ctx context.Context, actor roles.Identity, scoresheetID uuid.UUID, action Action) (models.Scoresheet, error) {
	if err := roles.Authorize(actor, RolesFor(action), nil); err != nil {
		return models.Scoresheet{}, err
	}

	sheet, err := s.store.Scoresheet(ctx, scoresheetID)
	if err != nil {
		return models.Scoresheet{}, err
	}

	next, err := TransitionScoresheet(sheet.Status, action)
	if err != nil {
		return models.Scoresheet{}, err
	}

	sheet.Status = next
	if err := s.store.UpsertScoresheet(ctx, &sheet); err != nil {
		return models.Scoresheet{}, err
	}

	s.notifyScoresheet(ctx, sheet)
	return sheet, nil
}

func (s *Service) notifyScoresheet(ctx context.Context, sheet models.Scoresheet) {
	division, err := s.store.Division(ctx, sheet.DivisionID)
	if err != nil {
		return // broadcast is best-effort past the store write
	}
	s.notifier.Notify(division.EventID, NotifyScoresheetUpdated, map[string]string{
		"teamId":       sheet.TeamID.String(),
		"scoresheetId": sheet.ID.String(),
		"status":       string(sheet.Status),
	})
}

// MatchSchedule describes one match slot to create.
type MatchSchedule struct {
	DivisionID    uuid.UUID
	Stage         models.MatchStage
	Round         int
	TableID       uuid.UUID
	TeamID        uuid.UUID
	ScheduledTime time.Time
}

// ScheduleMatch creates a match slot and its scoresheet. Scoresheets exist
// from the moment their match is scheduled, in the empty state.
func (s *Service) ScheduleMatch(ctx context.Context, actor roles.Identity, in MatchSchedule) (models.RobotGameMatch, error) {
	if err := roles.Authorize(actor, []roles.Role{roles.RoleTournamentManager, roles.RoleScorekeeper}, nil); err != nil {
		return models.RobotGameMatch{}, err
	}
	if in.Stage != models.MatchStagePractice && in.Stage != models.MatchStageRanking {
		return models.RobotGameMatch{}, apperr.Validationf("unknown stage %q", in.Stage)
	}
	if in.Round < 1 {
		return models.RobotGameMatch{}, apperr.Validationf("round must be positive, got %d", in.Round)
	}

	match := models.RobotGameMatch{
		DivisionID:    in.DivisionID,
		Stage:         in.Stage,
		Round:         in.Round,
		TableID:       in.TableID,
		TeamID:        in.TeamID,
		ScheduledTime: in.ScheduledTime,
		Status:        models.MatchStatusNotStarted,
	}
	if err := s.store.CreateMatch(ctx, &match); err != nil {
		return models.RobotGameMatch{}, err
	}

	sheet := models.Scoresheet{
		DivisionID: in.DivisionID,
		TeamID:     in.TeamID,
		MatchID:    match.ID,
		Stage:      in.Stage,
		Round:      in.Round,
		Status:     models.ScoresheetStatusEmpty,
		Missions:   models.MissionList{},
	}
	if err := s.store.UpsertScoresheet(ctx, &sheet); err != nil {
		return models.RobotGameMatch{}, err
	}

	return match, nil
}

// LoadMatch stages a match on the field: the division state's loaded match
// points at it until it starts. Only a not-yet-started match can be loaded.
func (s *Service) LoadMatch(ctx context.Context, actor roles.Identity, matchID uuid.UUID) (models.DivisionState, error) {
	if err := roles.Authorize(actor, []roles.Role{roles.RoleScorekeeper, roles.RoleTournamentManager, roles.RoleHeadReferee}, nil); err != nil {
		return models.DivisionState{}, err
	}

	match, err := s.store.Match(ctx, matchID)
	if err != nil {
		return models.DivisionState{}, err
	}
	if match.Status != models.MatchStatusNotStarted {
		return models.DivisionState{}, apperr.Transitionf("match %s is %s, only a not-started match can be loaded", match.ID, match.Status)
	}

	state, err := s.store.DivisionState(ctx, match.DivisionID)
	if err != nil {
		return models.DivisionState{}, err
	}
	state.LoadedMatchID = &match.ID
	if err := s.store.SaveDivisionState(ctx, &state); err != nil {
		return models.DivisionState{}, err
	}

	if division, derr := s.store.Division(ctx, match.DivisionID); derr == nil {
		s.notifier.Notify(division.EventID, NotifyMatchLoaded, map[string]string{
			"matchId": match.ID.String(),
		})
	}
	return state, nil
}

// StartMatch moves a match to in-progress, stamps its start time, and points
// the division state's active match at it.
func (s *Service) StartMatch(ctx context.Context, actor roles.Identity, matchID uuid.UUID) (models.RobotGameMatch, error) {
	return s.advance(ctx, actor, matchID, models.MatchStatusInProgress)
}

// CompleteMatch moves a match to completed and clears the division's active
// match. Completion is what makes the match's scoresheets writable.
func (s *Service) CompleteMatch(ctx context.Context, actor roles.Identity, matchID uuid.UUID) (models.RobotGameMatch, error) {
	return s.advance(ctx, actor, matchID, models.MatchStatusCompleted)
}

func (s *Service) advance(ctx context.Context, actor roles.Identity, matchID uuid.UUID, want models.MatchStatus) (models.RobotGameMatch, error) {
	if err := roles.Authorize(actor, []roles.Role{roles.RoleScorekeeper, roles.RoleTournamentManager, roles.RoleHeadReferee}, nil); err != nil {
		return models.RobotGameMatch{}, err
	}

	match, err := s.store.Match(ctx, matchID)
	if err != nil {
		return models.RobotGameMatch{}, err
	}

	next, err := advanceMatch(match.Status, want)
	if err != nil {
		return models.RobotGameMatch{}, err
	}

	match.Status = next
	name := NotifyMatchCompleted
	if next == models.MatchStatusInProgress {
		name = NotifyMatchStarted
		started := s.now()
		match.StartTime = &started
	}
	if err := s.store.SaveMatch(ctx, &match); err != nil {
		return models.RobotGameMatch{}, err
	}

	// Keep the division phase state pointing at the live match. A failure
	// here is a store failure the caller should see; the match write above
	// already stands (mutations are not transactional across documents). A
	// division that never had a state row is the one skippable case.
	state, err := s.store.DivisionState(ctx, match.DivisionID)
	switch {
	case errors.Is(err, apperr.ErrNotFound):
	case err != nil:
		return models.RobotGameMatch{}, err
	default:
		if next == models.MatchStatusInProgress {
			state.ActiveMatchID = &match.ID
			state.CurrentStage = match.Stage
			state.CurrentRound = match.Round
			if state.LoadedMatchID != nil && *state.LoadedMatchID == match.ID {
				state.LoadedMatchID = nil
			}
		} else if state.ActiveMatchID != nil && *state.ActiveMatchID == match.ID {
			state.ActiveMatchID = nil
		}
		if err := s.store.SaveDivisionState(ctx, &state); err != nil {
			return models.RobotGameMatch{}, err
		}
	}

	if division, derr := s.store.Division(ctx, match.DivisionID); derr == nil {
		s.notifier.Notify(division.EventID, name, map[string]string{
			"matchId": match.ID.String(),
		})
	}
	return match, nil
}

// DivisionStatePatch carries the client-supplied fields of a division state
// update. Nil fields are left unchanged.
type DivisionStatePatch struct {
	LoadedMatchID         *uuid.UUID
	CurrentStage          *models.MatchStage
	CurrentRound          *int
	AudienceDisplayScreen *models.AudienceScreen
	AllowTeamExports      *bool
	Completed             *bool
}

// GetDivisionState returns the division's phase state.
func (s *Service) GetDivisionState(ctx context.Context, divisionID uuid.UUID) (models.DivisionState, error) {
	return s.store.DivisionState(ctx, divisionID)
}

// UpdateDivisionState applies a patch to the division phase state and
// broadcasts divisionStateChanged. Completed is monotonic: once a division
// is marked completed it cannot reopen.
func (s *Service) UpdateDivisionState(ctx context.Context, actor roles.Identity, divisionID uuid.UUID, patch DivisionStatePatch) (models.DivisionState, error) {
	allowed := []roles.Role{roles.RoleScorekeeper, roles.RoleTournamentManager, roles.RoleAudienceDisplay, roles.RoleHeadReferee}
	if err := roles.Authorize(actor, allowed, nil); err != nil {
		return models.DivisionState{}, err
	}

	state, err := s.store.DivisionState(ctx, divisionID)
	if err != nil {
		return models.DivisionState{}, err
	}

	if patch.LoadedMatchID != nil {
		state.LoadedMatchID = patch.LoadedMatchID
	}
	if patch.CurrentStage != nil {
		state.CurrentStage = *patch.CurrentStage
	}
	if patch.CurrentRound != nil {
		state.CurrentRound = *patch.CurrentRound
	}
	if patch.AudienceDisplayScreen != nil {
		state.AudienceDisplayScreen = *patch.AudienceDisplayScreen
	}
	if patch.AllowTeamExports != nil {
		state.AllowTeamExports = *patch.AllowTeamExports
	}
	if patch.Completed != nil {
		if state.Completed && !*patch.Completed {
			return models.DivisionState{}, apperr.Transitionf("division %s is already completed", divisionID)
		}
		state.Completed = *patch.Completed
	}

	if err := s.store.SaveDivisionState(ctx, &state); err != nil {
		return models.DivisionState{}, err
	}

	if division, derr := s.store.Division(ctx, divisionID); derr == nil {
		s.notifier.Notify(division.EventID, NotifyDivisionStateChanged, map[string]string{
			"divisionId": divisionID.String(),
		})
	}
	return state, nil
}

// GetScoresheet returns one scoresheet by id.
func (s *Service) GetScoresheet(ctx context.Context, id uuid.UUID) (models.Scoresheet, error) {
	return s.store.Scoresheet(ctx, id)
}

// ListTeamScoresheets returns a team's scoresheets ordered by stage and round.
func (s *Service) ListTeamScoresheets(ctx context.Context, divisionID, teamID uuid.UUID) ([]models.Scoresheet, error) {
	return s.store.ScoresheetsByTeam(ctx, divisionID, teamID)
}

// ListDivisionMatches returns a division's schedule in play order.
func (s *Service) ListDivisionMatches(ctx context.Context, divisionID uuid.UUID) ([]models.RobotGameMatch, error) {
	return s.store.MatchesByDivision(ctx, divisionID)
}

// GetMatch returns one match by id.
func (s *Service) GetMatch(ctx context.Context, id uuid.UUID) (models.RobotGameMatch, error) {
	return s.store.Match(ctx, id)
}
