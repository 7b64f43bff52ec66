package field

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/robogatedev/tournament-server/internal/database"
	"github.com/robogatedev/tournament-server/internal/models"
)

// Store is the read/write contract the field engines need from the document
// store. Scoresheet writes are full-document upserts keyed by the natural
// key (matchID, teamID); everything else is plain read / save.
type Store interface {
	Division(ctx context.Context, id uuid.UUID) (models.Division, error)
	DivisionState(ctx context.Context, divisionID uuid.UUID) (models.DivisionState, error)
	SaveDivisionState(ctx context.Context, state *models.DivisionState) error

	Match(ctx context.Context, id uuid.UUID) (models.RobotGameMatch, error)
	MatchesByDivision(ctx context.Context, divisionID uuid.UUID) ([]models.RobotGameMatch, error)
	CreateMatch(ctx context.Context, match *models.RobotGameMatch) error
	SaveMatch(ctx context.Context, match *models.RobotGameMatch) error

	Scoresheet(ctx context.Context, id uuid.UUID) (models.Scoresheet, error)
	ScoresheetByMatchTeam(ctx context.Context, matchID, teamID uuid.UUID) (models.Scoresheet, error)
	ScoresheetsByTeam(ctx context.Context, divisionID, teamID uuid.UUID) ([]models.Scoresheet, error)
	UpsertScoresheet(ctx context.Context, sheet *models.Scoresheet) error
}

// gormStore implements Store on a GORM handle. All errors pass through
// database.Classify so callers see apperr kinds, not driver errors.
type gormStore struct {
	db *gorm.DB
}

// NewStore wraps a GORM handle in the field Store contract.
func NewStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) Division(ctx context.Context, id uuid.UUID) (models.Division, error) {
	var division models.Division
	err := s.db.WithContext(ctx).First(&division, "id = ?", id).Error
	return division, database.Classify(err)
}

func (s *gormStore) DivisionState(ctx context.Context, divisionID uuid.UUID) (models.DivisionState, error) {
	var state models.DivisionState
	err := s.db.WithContext(ctx).First(&state, "division_id = ?", divisionID).Error
	return state, database.Classify(err)
}

func (s *gormStore) SaveDivisionState(ctx context.Context, state *models.DivisionState) error {
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "division_id"}},
			UpdateAll: true,
		}).
		Create(state).Error
	return database.Classify(err)
}

func (s *gormStore) Match(ctx context.Context, id uuid.UUID) (models.RobotGameMatch, error) {
	var match models.RobotGameMatch
	err := s.db.WithContext(ctx).First(&match, "id = ?", id).Error
	return match, database.Classify(err)
}

func (s *gormStore) MatchesByDivision(ctx context.Context, divisionID uuid.UUID) ([]models.RobotGameMatch, error) {
	var matches []models.RobotGameMatch
	err := s.db.WithContext(ctx).
		Where("division_id = ?", divisionID).
		Order("scheduled_time").
		Find(&matches).Error
	return matches, database.Classify(err)
}

func (s *gormStore) CreateMatch(ctx context.Context, match *models.RobotGameMatch) error {
	return database.Classify(s.db.WithContext(ctx).Create(match).Error)
}

func (s *gormStore) SaveMatch(ctx context.Context, match *models.RobotGameMatch) error {
	return database.Classify(s.db.WithContext(ctx).Save(match).Error)
}

func (s *gormStore) Scoresheet(ctx context.Context, id uuid.UUID) (models.Scoresheet, error) {
	var sheet models.Scoresheet
	err := s.db.WithContext(ctx).First(&sheet, "id = ?", id).Error
	return sheet, database.Classify(err)
}

func (s *gormStore) ScoresheetByMatchTeam(ctx context.Context, matchID, teamID uuid.UUID) (models.Scoresheet, error) {
	var sheet models.Scoresheet
	err := s.db.WithContext(ctx).
		First(&sheet, "match_id = ? AND team_id = ?", matchID, teamID).Error
	return sheet, database.Classify(err)
}

func (s *gormStore) ScoresheetsByTeam(ctx context.Context, divisionID, teamID uuid.UUID) ([]models.Scoresheet, error) {
	var sheets []models.Scoresheet
	err := s.db.WithContext(ctx).
		Where("division_id = ? AND team_id = ?", divisionID, teamID).
		Order("stage, round").
		Find(&sheets).Error
	return sheets, database.Classify(err)
}

func (s *gormStore) UpsertScoresheet(ctx context.Context, sheet *models.Scoresheet) error {
	// Insert-or-replace by natural key: one scoresheet per (match, team).
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "match_id"}, {Name: "team_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"status", "score", "missions", "escalated", "updated_at"}),
		}).
		Create(sheet).Error
	return database.Classify(err)
}
