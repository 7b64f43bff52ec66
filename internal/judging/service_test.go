package judging

import (
	"context"
	"sort"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robogatedev/tournament-server/internal/apperr"
	"github.com/robogatedev/tournament-server/internal/models"
	"github.com/robogatedev/tournament-server/internal/roles"
)

// fakeStore is an in-memory judging Store. AddDisqualification and
// ClaimAwardWinner reproduce the conflict semantics of the real store so the
// idempotence and finalize-once tests exercise the same contract.
type fakeStore struct {
	divisions     map[uuid.UUID]models.Division
	teams         map[uuid.UUID]models.Team
	deliberations map[uuid.UUID]models.JudgingDeliberation
	dsq           map[uuid.UUID]map[uuid.UUID]bool // deliberationID -> team set
	awards        map[uuid.UUID]models.Award

	// claimHook runs just before ClaimAwardWinner applies, for simulating a
	// concurrent finalizer landing between the service's read and its claim.
	claimHook func()
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		divisions:     make(map[uuid.UUID]models.Division),
		teams:         make(map[uuid.UUID]models.Team),
		deliberations: make(map[uuid.UUID]models.JudgingDeliberation),
		dsq:           make(map[uuid.UUID]map[uuid.UUID]bool),
		awards:        make(map[uuid.UUID]models.Award),
	}
}

func (s *fakeStore) Division(_ context.Context, id uuid.UUID) (models.Division, error) {
	d, ok := s.divisions[id]
	if !ok {
		return models.Division{}, apperr.ErrNotFound
	}
	return d, nil
}

func (s *fakeStore) Team(_ context.Context, id uuid.UUID) (models.Team, error) {
	team, ok := s.teams[id]
	if !ok {
		return models.Team{}, apperr.ErrNotFound
	}
	return team, nil
}

func (s *fakeStore) Deliberation(_ context.Context, id uuid.UUID) (models.JudgingDeliberation, error) {
	d, ok := s.deliberations[id]
	if !ok {
		return models.JudgingDeliberation{}, apperr.ErrNotFound
	}
	return d, nil
}

func (s *fakeStore) DeliberationsByDivision(_ context.Context, divisionID uuid.UUID) ([]models.JudgingDeliberation, error) {
	var ds []models.JudgingDeliberation
	for _, d := range s.deliberations {
		if d.DivisionID == divisionID {
			ds = append(ds, d)
		}
	}
	// Same order as the real store: categories first, final last.
	sort.Slice(ds, func(i, j int) bool {
		if ds[i].IsFinal != ds[j].IsFinal {
			return !ds[i].IsFinal
		}
		var ci, cj string
		if ds[i].Category != nil {
			ci = string(*ds[i].Category)
		}
		if ds[j].Category != nil {
			cj = string(*ds[j].Category)
		}
		return ci < cj
	})
	return ds, nil
}

func (s *fakeStore) SaveDeliberation(_ context.Context, d *models.JudgingDeliberation) error {
	s.deliberations[d.ID] = *d
	return nil
}

func (s *fakeStore) EnsureDeliberations(_ context.Context, divisionID uuid.UUID) error {
	have := make(map[string]bool)
	for _, d := range s.deliberations {
		if d.DivisionID != divisionID {
			continue
		}
		if d.IsFinal {
			have["final"] = true
		} else if d.Category != nil {
			have[string(*d.Category)] = true
		}
	}
	for _, category := range roles.JudgingCategories {
		if have[string(category)] {
			continue
		}
		c := category
		id := uuid.New()
		s.deliberations[id] = models.JudgingDeliberation{
			ID: id, DivisionID: divisionID, Category: &c,
			Status: models.DeliberationStatusNotStarted,
		}
	}
	if !have["final"] {
		id := uuid.New()
		s.deliberations[id] = models.JudgingDeliberation{
			ID: id, DivisionID: divisionID, IsFinal: true,
			Status: models.DeliberationStatusNotStarted,
		}
	}
	return nil
}

func (s *fakeStore) AddDisqualification(_ context.Context, deliberationID, teamID uuid.UUID) (bool, error) {
	if s.dsq[deliberationID] == nil {
		s.dsq[deliberationID] = make(map[uuid.UUID]bool)
	}
	if s.dsq[deliberationID][teamID] {
		return false, nil
	}
	s.dsq[deliberationID][teamID] = true
	return true, nil
}

func (s *fakeStore) Disqualifications(_ context.Context, deliberationID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	for id := range s.dsq[deliberationID] {
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *fakeStore) DivisionDisqualifications(_ context.Context, divisionID uuid.UUID) ([]uuid.UUID, error) {
	seen := make(map[uuid.UUID]bool)
	var ids []uuid.UUID
	for deliberationID, teams := range s.dsq {
		d, ok := s.deliberations[deliberationID]
		if !ok || d.DivisionID != divisionID {
			continue
		}
		for teamID := range teams {
			if !seen[teamID] {
				seen[teamID] = true
				ids = append(ids, teamID)
			}
		}
	}
	return ids, nil
}

func (s *fakeStore) Award(_ context.Context, id uuid.UUID) (models.Award, error) {
	a, ok := s.awards[id]
	if !ok {
		return models.Award{}, apperr.ErrNotFound
	}
	return a, nil
}

func (s *fakeStore) AwardsByDivision(_ context.Context, divisionID uuid.UUID) ([]models.Award, error) {
	var as []models.Award
	for _, a := range s.awards {
		if a.DivisionID == divisionID {
			as = append(as, a)
		}
	}
	sort.Slice(as, func(i, j int) bool {
		if as[i].Index != as[j].Index {
			return as[i].Index < as[j].Index
		}
		return as[i].Place < as[j].Place
	})
	return as, nil
}

func (s *fakeStore) CreateAward(_ context.Context, a *models.Award) error {
	for _, existing := range s.awards {
		if existing.DivisionID == a.DivisionID && existing.Name == a.Name && existing.Place == a.Place {
			return apperr.ErrDuplicateAward
		}
	}
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	s.awards[a.ID] = *a
	return nil
}

func (s *fakeStore) ClaimAwardWinner(_ context.Context, awardID uuid.UUID, teamID *uuid.UUID, text *string) (bool, error) {
	if s.claimHook != nil {
		s.claimHook()
	}
	a, ok := s.awards[awardID]
	if !ok || a.Finalized() {
		return false, nil
	}
	a.WinnerTeamID = teamID
	a.WinnerText = text
	s.awards[awardID] = a
	return true, nil
}

type recorder struct {
	events []recorded
}

type recorded struct {
	EventID uuid.UUID
	Name    string
	Params  map[string]string
}

func (r *recorder) Notify(eventID uuid.UUID, name string, params map[string]string) {
	r.events = append(r.events, recorded{EventID: eventID, Name: name, Params: params})
}

type fixture struct {
	store    *fakeStore
	notifier *recorder
	svc      *Service

	eventID    uuid.UUID
	divisionID uuid.UUID
	teamID     uuid.UUID

	byCategory map[roles.JudgingCategory]uuid.UUID
	finalID    uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		store:      newFakeStore(),
		notifier:   &recorder{},
		eventID:    uuid.New(),
		divisionID: uuid.New(),
		teamID:     uuid.New(),
		byCategory: make(map[roles.JudgingCategory]uuid.UUID),
	}
	f.svc = NewService(f.store, f.notifier)

	f.store.divisions[f.divisionID] = models.Division{ID: f.divisionID, EventID: f.eventID}
	f.store.teams[f.teamID] = models.Team{ID: f.teamID, DivisionID: f.divisionID, Number: 42}

	require.NoError(t, f.store.EnsureDeliberations(context.Background(), f.divisionID))
	for id, d := range f.store.deliberations {
		if d.IsFinal {
			f.finalID = id
		} else {
			f.byCategory[*d.Category] = id
		}
	}
	return f
}

func (f *fixture) leadJudge(category roles.JudgingCategory) roles.Identity {
	return roles.Identity{
		Role:        roles.RoleLeadJudge,
		Association: &roles.Association{Type: roles.AssociationCategory, Value: string(category)},
	}
}

func (f *fixture) setStatus(t *testing.T, id uuid.UUID, status models.DeliberationStatus) {
	t.Helper()
	d := f.store.deliberations[id]
	d.Status = status
	f.store.deliberations[id] = d
}

func advisor() roles.Identity { return roles.Identity{Role: roles.RoleJudgeAdvisor} }

func TestBeginAndLockDeliberation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	lead := f.leadJudge(roles.CategoryRobotDesign)
	id := f.byCategory[roles.CategoryRobotDesign]

	d, err := f.svc.BeginDeliberation(ctx, lead, id)
	require.NoError(t, err)
	assert.Equal(t, models.DeliberationStatusInProgress, d.Status)

	d, err = f.svc.LockDeliberation(ctx, lead, id)
	require.NoError(t, err)
	assert.Equal(t, models.DeliberationStatusCompleted, d.Status)

	require.Len(t, f.notifier.events, 2)
	assert.Equal(t, NotifyDeliberationStarted, f.notifier.events[0].Name)
	assert.Equal(t, NotifyDeliberationLocked, f.notifier.events[1].Name)
	assert.Equal(t, f.eventID, f.notifier.events[1].EventID)
}

func TestLockRequiresInProgress(t *testing.T) {
	f := newFixture(t)
	id := f.byCategory[roles.CategoryCoreValues]

	_, err := f.svc.LockDeliberation(context.Background(), f.leadJudge(roles.CategoryCoreValues), id)
	require.ErrorIs(t, err, apperr.ErrInvalidTransition)
	assert.Equal(t, models.DeliberationStatusNotStarted, f.store.deliberations[id].Status)
}

func TestLockTwiceFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	lead := f.leadJudge(roles.CategoryCoreValues)
	id := f.byCategory[roles.CategoryCoreValues]

	_, err := f.svc.BeginDeliberation(ctx, lead, id)
	require.NoError(t, err)
	require.NoError(t, f.svc.DisqualifyTeam(ctx, lead, f.divisionID, f.teamID))
	_, err = f.svc.LockDeliberation(ctx, lead, id)
	require.NoError(t, err)

	_, err = f.svc.LockDeliberation(ctx, lead, id)
	require.ErrorIs(t, err, apperr.ErrInvalidTransition)

	// The failed second lock left the disqualification set alone.
	dsq, err := f.store.Disqualifications(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{f.teamID}, dsq)
}

func TestDeliberationScope(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// A lead judge cannot act outside their own category.
	wrongLead := f.leadJudge(roles.CategoryCoreValues)
	_, err := f.svc.BeginDeliberation(ctx, wrongLead, f.byCategory[roles.CategoryRobotDesign])
	require.ErrorIs(t, err, apperr.ErrUnauthorized)

	// The final deliberation belongs to no lead judge.
	_, err = f.svc.BeginDeliberation(ctx, f.leadJudge(roles.CategoryRobotDesign), f.finalID)
	require.ErrorIs(t, err, apperr.ErrUnauthorized)

	// The judge advisor may run it.
	d, err := f.svc.BeginDeliberation(ctx, advisor(), f.finalID)
	require.NoError(t, err)
	assert.Equal(t, models.DeliberationStatusInProgress, d.Status)
}

func TestDisqualifyTeamIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// The current deliberation is the first non-completed one in order:
	// core-values alphabetically before the others.
	lead := f.leadJudge(roles.CategoryCoreValues)
	require.NoError(t, f.svc.DisqualifyTeam(ctx, lead, f.divisionID, f.teamID))
	require.NoError(t, f.svc.DisqualifyTeam(ctx, lead, f.divisionID, f.teamID))

	dsq, err := f.store.DivisionDisqualifications(ctx, f.divisionID)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{f.teamID}, dsq)

	// Only the first add broadcasts.
	require.Len(t, f.notifier.events, 1)
	assert.Equal(t, NotifyTeamDisqualified, f.notifier.events[0].Name)
	assert.Equal(t, f.teamID.String(), f.notifier.events[0].Params["teamId"])
}

func TestDisqualifyTeamAfterAllLocked(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for id := range f.store.deliberations {
		f.setStatus(t, id, models.DeliberationStatusCompleted)
	}

	err := f.svc.DisqualifyTeam(ctx, advisor(), f.divisionID, f.teamID)
	require.ErrorIs(t, err, apperr.ErrInvalidTransition)
}

func TestDisqualifyTeamWrongDivision(t *testing.T) {
	f := newFixture(t)
	stranger := uuid.New()
	f.store.teams[stranger] = models.Team{ID: stranger, DivisionID: uuid.New(), Number: 7}

	err := f.svc.DisqualifyTeam(context.Background(), advisor(), f.divisionID, stranger)
	require.ErrorIs(t, err, apperr.ErrValidation)
}

// seedAward registers an award backed by the final deliberation and returns
// its id.
func (f *fixture) seedAward(t *testing.T, name string, place int) uuid.UUID {
	t.Helper()
	a := models.Award{DivisionID: f.divisionID, Name: name, Index: 1, Place: place}
	require.NoError(t, f.store.CreateAward(context.Background(), &a))
	return a.ID
}

func TestFinalizeAward(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	awardID := f.seedAward(t, "champions", 1)
	f.setStatus(t, f.finalID, models.DeliberationStatusCompleted)

	a, err := f.svc.FinalizeAward(ctx, advisor(), AwardSelection{AwardID: awardID, TeamID: &f.teamID})
	require.NoError(t, err)
	require.NotNil(t, a.WinnerTeamID)
	assert.Equal(t, f.teamID, *a.WinnerTeamID)

	require.Len(t, f.notifier.events, 1)
	assert.Equal(t, NotifyAwardFinalized, f.notifier.events[0].Name)

	// Finalizing again is a duplicate, not an overwrite.
	other := uuid.New()
	f.store.teams[other] = models.Team{ID: other, DivisionID: f.divisionID, Number: 8}
	_, err = f.svc.FinalizeAward(ctx, advisor(), AwardSelection{AwardID: awardID, TeamID: &other})
	require.ErrorIs(t, err, apperr.ErrDuplicateAward)
	assert.Equal(t, f.teamID, *f.store.awards[awardID].WinnerTeamID)
}

func TestFinalizeAwardRequiresLockedDeliberation(t *testing.T) {
	f := newFixture(t)
	awardID := f.seedAward(t, "champions", 1)

	_, err := f.svc.FinalizeAward(context.Background(), advisor(), AwardSelection{AwardID: awardID, TeamID: &f.teamID})
	require.ErrorIs(t, err, apperr.ErrInvalidTransition)
}

func TestFinalizeAwardBackedByCategoryDeliberation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	// An award named after a category is gated by that category's
	// deliberation, not the final one.
	awardID := f.seedAward(t, string(roles.CategoryRobotDesign), 1)
	f.setStatus(t, f.byCategory[roles.CategoryRobotDesign], models.DeliberationStatusCompleted)

	a, err := f.svc.FinalizeAward(ctx, advisor(), AwardSelection{AwardID: awardID, TeamID: &f.teamID})
	require.NoError(t, err)
	assert.Equal(t, f.teamID, *a.WinnerTeamID)
}

func TestFinalizeAwardDisqualifiedWinner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	awardID := f.seedAward(t, "champions", 1)

	// Disqualify in one category, lock everything, then try to finalize.
	require.NoError(t, f.svc.DisqualifyTeam(ctx, f.leadJudge(roles.CategoryCoreValues), f.divisionID, f.teamID))
	for id := range f.store.deliberations {
		f.setStatus(t, id, models.DeliberationStatusCompleted)
	}

	_, err := f.svc.FinalizeAward(ctx, advisor(), AwardSelection{AwardID: awardID, TeamID: &f.teamID})
	require.ErrorIs(t, err, apperr.ErrDisqualifiedWinner)
	assert.False(t, f.store.awards[awardID].Finalized())
}

func TestFinalizeAwardTextWinner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	awardID := f.seedAward(t, "volunteer of the year", 1)
	f.setStatus(t, f.finalID, models.DeliberationStatusCompleted)

	text := "Sam the scorekeeper"
	a, err := f.svc.FinalizeAward(ctx, advisor(), AwardSelection{AwardID: awardID, Text: &text})
	require.NoError(t, err)
	require.NotNil(t, a.WinnerText)
	assert.Equal(t, text, *a.WinnerText)
	assert.Nil(t, a.WinnerTeamID)
}

func TestFinalizeAwardExactlyOneWinner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	awardID := f.seedAward(t, "champions", 1)
	f.setStatus(t, f.finalID, models.DeliberationStatusCompleted)

	// Neither winner set.
	_, err := f.svc.FinalizeAward(ctx, advisor(), AwardSelection{AwardID: awardID})
	require.ErrorIs(t, err, apperr.ErrValidation)

	// Both set.
	text := "somebody"
	_, err = f.svc.FinalizeAward(ctx, advisor(), AwardSelection{AwardID: awardID, TeamID: &f.teamID, Text: &text})
	require.ErrorIs(t, err, apperr.ErrValidation)

	// Empty text counts as unset.
	empty := ""
	_, err = f.svc.FinalizeAward(ctx, advisor(), AwardSelection{AwardID: awardID, Text: &empty})
	require.ErrorIs(t, err, apperr.ErrValidation)
}

func TestFinalizeAwardClaimRace(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	awardID := f.seedAward(t, "champions", 1)
	f.setStatus(t, f.finalID, models.DeliberationStatusCompleted)

	// A concurrent finalizer lands between our read and our claim.
	rival := uuid.New()
	f.store.teams[rival] = models.Team{ID: rival, DivisionID: f.divisionID, Number: 9}
	f.store.claimHook = func() {
		f.store.claimHook = nil
		a := f.store.awards[awardID]
		a.WinnerTeamID = &rival
		f.store.awards[awardID] = a
	}

	_, err := f.svc.FinalizeAward(ctx, advisor(), AwardSelection{AwardID: awardID, TeamID: &f.teamID})
	require.ErrorIs(t, err, apperr.ErrDuplicateAward)
	// The rival's win stands.
	assert.Equal(t, rival, *f.store.awards[awardID].WinnerTeamID)
	assert.Empty(t, f.notifier.events)
}

func TestFinalizeAwardDeniedForLeadJudge(t *testing.T) {
	f := newFixture(t)
	awardID := f.seedAward(t, "champions", 1)
	f.setStatus(t, f.finalID, models.DeliberationStatusCompleted)

	_, err := f.svc.FinalizeAward(context.Background(), f.leadJudge(roles.CategoryRobotDesign), AwardSelection{AwardID: awardID, TeamID: &f.teamID})
	require.ErrorIs(t, err, apperr.ErrUnauthorized)
}

func TestCreateAward(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a, err := f.svc.CreateAward(ctx, advisor(), models.Award{DivisionID: f.divisionID, Name: "champions", Index: 1, Place: 1})
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, a.ID)

	// Same (name, place) in the division is a duplicate; another place is not.
	_, err = f.svc.CreateAward(ctx, advisor(), models.Award{DivisionID: f.divisionID, Name: "champions", Index: 1, Place: 1})
	require.ErrorIs(t, err, apperr.ErrDuplicateAward)
	_, err = f.svc.CreateAward(ctx, advisor(), models.Award{DivisionID: f.divisionID, Name: "champions", Index: 1, Place: 2})
	require.NoError(t, err)

	_, err = f.svc.CreateAward(ctx, advisor(), models.Award{DivisionID: f.divisionID, Name: "", Index: 1, Place: 1})
	require.ErrorIs(t, err, apperr.ErrValidation)
	_, err = f.svc.CreateAward(ctx, advisor(), models.Award{DivisionID: f.divisionID, Name: "x", Index: 1, Place: 0})
	require.ErrorIs(t, err, apperr.ErrValidation)

	_, err = f.svc.CreateAward(ctx, roles.Identity{Role: roles.RoleTournamentManager}, models.Award{DivisionID: f.divisionID, Name: "y", Index: 2, Place: 1})
	require.ErrorIs(t, err, apperr.ErrUnauthorized)
}
