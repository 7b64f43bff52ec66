package judging

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/robogatedev/tournament-server/internal/apperr"
	"github.com/robogatedev/tournament-server/internal/database"
	"github.com/robogatedev/tournament-server/internal/models"
	"github.com/robogatedev/tournament-server/internal/roles"
)

// Store is the read/write contract the judging engines need. The two writes
// with invariant weight are AddDisqualification (idempotent by composite key)
// and ClaimAwardWinner (a conditional update that succeeds for exactly one
// concurrent finalizer).
type Store interface {
	Division(ctx context.Context, id uuid.UUID) (models.Division, error)
	Team(ctx context.Context, id uuid.UUID) (models.Team, error)

	Deliberation(ctx context.Context, id uuid.UUID) (models.JudgingDeliberation, error)
	DeliberationsByDivision(ctx context.Context, divisionID uuid.UUID) ([]models.JudgingDeliberation, error)
	SaveDeliberation(ctx context.Context, d *models.JudgingDeliberation) error
	EnsureDeliberations(ctx context.Context, divisionID uuid.UUID) error

	// AddDisqualification records teamID in the deliberation's set. It
	// reports whether a new row was written; re-adding an existing team is
	// a no-op returning false.
	AddDisqualification(ctx context.Context, deliberationID, teamID uuid.UUID) (bool, error)
	Disqualifications(ctx context.Context, deliberationID uuid.UUID) ([]uuid.UUID, error)
	// DivisionDisqualifications returns the union of every deliberation's
	// set in the division.
	DivisionDisqualifications(ctx context.Context, divisionID uuid.UUID) ([]uuid.UUID, error)

	Award(ctx context.Context, id uuid.UUID) (models.Award, error)
	AwardsByDivision(ctx context.Context, divisionID uuid.UUID) ([]models.Award, error)
	CreateAward(ctx context.Context, a *models.Award) error
	// ClaimAwardWinner assigns the winner only if the award has none yet.
	// It reports false when another finalizer won the race.
	ClaimAwardWinner(ctx context.Context, awardID uuid.UUID, teamID *uuid.UUID, text *string) (bool, error)
}

type gormStore struct {
	db *gorm.DB
}

// NewStore wraps a GORM handle in the judging Store contract.
func NewStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) Division(ctx context.Context, id uuid.UUID) (models.Division, error) {
	var division models.Division
	err := s.db.WithContext(ctx).First(&division, "id = ?", id).Error
	return division, database.Classify(err)
}

func (s *gormStore) Team(ctx context.Context, id uuid.UUID) (models.Team, error) {
	var team models.Team
	err := s.db.WithContext(ctx).First(&team, "id = ?", id).Error
	return team, database.Classify(err)
}

func (s *gormStore) Deliberation(ctx context.Context, id uuid.UUID) (models.JudgingDeliberation, error) {
	var d models.JudgingDeliberation
	err := s.db.WithContext(ctx).First(&d, "id = ?", id).Error
	return d, database.Classify(err)
}

func (s *gormStore) DeliberationsByDivision(ctx context.Context, divisionID uuid.UUID) ([]models.JudgingDeliberation, error) {
	var ds []models.JudgingDeliberation
	// Category deliberations first, the final one last.
	err := s.db.WithContext(ctx).
		Where("division_id = ?", divisionID).
		Order("is_final, category").
		Find(&ds).Error
	return ds, database.Classify(err)
}

func (s *gormStore) SaveDeliberation(ctx context.Context, d *models.JudgingDeliberation) error {
	return database.Classify(s.db.WithContext(ctx).Save(d).Error)
}

// EnsureDeliberations creates the division's full deliberation set — one per
// judging category plus the final one — if any are missing. Conflicts on the
// (division, category) natural key are ignored, so the call is idempotent.
func (s *gormStore) EnsureDeliberations(ctx context.Context, divisionID uuid.UUID) error {
	rows := make([]models.JudgingDeliberation, 0, len(roles.JudgingCategories)+1)
	for i := range roles.JudgingCategories {
		category := roles.JudgingCategories[i]
		rows = append(rows, models.JudgingDeliberation{
			DivisionID: divisionID,
			Category:   &category,
			Status:     models.DeliberationStatusNotStarted,
		})
	}
	rows = append(rows, models.JudgingDeliberation{
		DivisionID: divisionID,
		IsFinal:    true,
		Status:     models.DeliberationStatusNotStarted,
	})

	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&rows).Error
	return database.Classify(err)
}

func (s *gormStore) AddDisqualification(ctx context.Context, deliberationID, teamID uuid.UUID) (bool, error) {
	row := models.DeliberationDisqualification{DeliberationID: deliberationID, TeamID: teamID}
	res := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&row)
	if res.Error != nil {
		return false, database.Classify(res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (s *gormStore) Disqualifications(ctx context.Context, deliberationID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := s.db.WithContext(ctx).
		Model(&models.DeliberationDisqualification{}).
		Where("deliberation_id = ?", deliberationID).
		Pluck("team_id", &ids).Error
	return ids, database.Classify(err)
}

func (s *gormStore) DivisionDisqualifications(ctx context.Context, divisionID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := s.db.WithContext(ctx).
		Model(&models.DeliberationDisqualification{}).
		Distinct("deliberation_disqualifications.team_id").
		Joins("JOIN judging_deliberations ON judging_deliberations.id = deliberation_disqualifications.deliberation_id").
		Where("judging_deliberations.division_id = ?", divisionID).
		Pluck("deliberation_disqualifications.team_id", &ids).Error
	return ids, database.Classify(err)
}

func (s *gormStore) Award(ctx context.Context, id uuid.UUID) (models.Award, error) {
	var a models.Award
	err := s.db.WithContext(ctx).First(&a, "id = ?", id).Error
	return a, database.Classify(err)
}

func (s *gormStore) AwardsByDivision(ctx context.Context, divisionID uuid.UUID) ([]models.Award, error) {
	var as []models.Award
	err := s.db.WithContext(ctx).
		Where("division_id = ?", divisionID).
		Order("award_index, place").
		Find(&as).Error
	return as, database.Classify(err)
}

func (s *gormStore) CreateAward(ctx context.Context, a *models.Award) error {
	err := s.db.WithContext(ctx).Create(a).Error
	if database.IsDuplicateKey(err) {
		return apperr.ErrDuplicateAward
	}
	return database.Classify(err)
}

func (s *gormStore) ClaimAwardWinner(ctx context.Context, awardID uuid.UUID, teamID *uuid.UUID, text *string) (bool, error) {
	// The WHERE clause is the concurrency guard: of two finalizers racing on
	// the same award, exactly one update matches the unfinalized row.
	res := s.db.WithContext(ctx).
		Model(&models.Award{}).
		Where("id = ? AND winner_team_id IS NULL AND (winner_text IS NULL OR winner_text = '')", awardID).
		Updates(map[string]any{"winner_team_id": teamID, "winner_text": text})
	if res.Error != nil {
		return false, database.Classify(res.Error)
	}
	return res.RowsAffected > 0, nil
}
