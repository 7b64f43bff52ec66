// Package models defines the data structures (models) that map to database tables.
// GORM uses these structs to generate SQL queries and map database rows back to Go
// values. The struct field tags tell GORM how to handle each field: its column
// type, constraints, default values, and relationships.
//
// The data model represents a robotics tournament day:
//   - An Event contains Divisions, each with its own schedule and state
//   - Divisions contain Teams, RobotGameTables (the competition fields), and
//     JudgingRooms
//   - RobotGameMatches schedule a team on a table for a stage/round
//   - Scoresheets record a team's score for one match and carry an approval
//     workflow between referees and the head referee
//   - JudgingDeliberations track the judging panel's decisions per category,
//     plus one final cross-category deliberation per division
//   - Awards are the finalized outcome of the deliberations
//
// Referential integrity between these records (e.g. a scoresheet's MatchID) is
// an application-level invariant maintained by the owning service, not a
// store-level foreign key — the state machines always validate against the
// current stored status at write time.
package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/robogatedev/tournament-server/internal/roles"
)

// --- Enums ---
// Go doesn't have a built-in enum keyword, so we use named string types plus
// constants. This keeps the values human-readable in the database while the
// compiler stops a MatchStatus from being used where a ScoresheetStatus is
// expected.

// EventStatus tracks the lifecycle of a tournament event.
type EventStatus string

const (
	EventStatusUpcoming  EventStatus = "upcoming"
	EventStatusActive    EventStatus = "active"
	EventStatusCompleted EventStatus = "completed"
)

// MatchStage distinguishes practice rounds from ranking rounds.
type MatchStage string

const (
	MatchStagePractice MatchStage = "practice"
	MatchStageRanking  MatchStage = "ranking"
)

// MatchStatus tracks a robot-game match's lifecycle. A match only ever moves
// forward: not-started → in-progress → completed.
type MatchStatus string

const (
	MatchStatusNotStarted MatchStatus = "not-started"
	MatchStatusInProgress MatchStatus = "in-progress"
	MatchStatusCompleted  MatchStatus = "completed"
)

// ScoresheetStatus is the approval workflow state of a scoresheet.
// See internal/field for the transition rules between these states.
type ScoresheetStatus string

const (
	ScoresheetStatusEmpty             ScoresheetStatus = "empty"
	ScoresheetStatusInProgress        ScoresheetStatus = "in-progress"
	ScoresheetStatusWaitingForHeadRef ScoresheetStatus = "waiting-for-head-ref"
	ScoresheetStatusReady             ScoresheetStatus = "ready"
)

// DeliberationStatus is the lock state of a judging deliberation.
// The transition is monotonic: not-started → in-progress → completed.
// "completed" is the locked, terminal state and never reverts.
type DeliberationStatus string

const (
	DeliberationStatusNotStarted DeliberationStatus = "not-started"
	DeliberationStatusInProgress DeliberationStatus = "in-progress"
	DeliberationStatusCompleted  DeliberationStatus = "completed"
)

// AudienceScreen selects what the audience display is currently showing.
type AudienceScreen string

const (
	AudienceScreenBlank    AudienceScreen = "blank"
	AudienceScreenScores   AudienceScreen = "scores"
	AudienceScreenMatch    AudienceScreen = "match-preview"
	AudienceScreenAwards   AudienceScreen = "awards"
	AudienceScreenSponsors AudienceScreen = "sponsors"
)

// --- Models ---

// Event is the top-level container for a tournament day. Divisions carry the
// actual schedule and state; multi-division events share one Event record.
type Event struct {
	ID        uuid.UUID   `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Name      string      `gorm:"not null"`
	StartDate time.Time   `gorm:"not null"`
	EndDate   time.Time   `gorm:"not null"`
	Status    EventStatus `gorm:"type:event_status;not null;default:'upcoming'"`
	CreatedAt time.Time
	UpdatedAt time.Time
	Divisions []Division `gorm:"foreignKey:EventID"`
}

// Division is a named sub-bracket of an event with its own schedule, teams,
// tables, rooms, and state.
type Division struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	EventID   uuid.UUID `gorm:"type:uuid;not null"`
	Event     Event     `gorm:"foreignKey:EventID"`
	Name      string    `gorm:"not null"`
	Color     string    `gorm:"not null;default:''"` // Display accent color (hex) used by the frontend
	CreatedAt time.Time
	UpdatedAt time.Time
}

// DivisionState is the division-wide phase state shown to every connected
// client: which match is active, which is loaded on the field, and what the
// audience display shows. One row per division, upserted by the division
// state handler and mutated by the match registry as matches start and end.
type DivisionState struct {
	ID                    uuid.UUID      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	DivisionID            uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex"`
	ActiveMatchID         *uuid.UUID     `gorm:"type:uuid"` // Match currently being played; nil between matches
	LoadedMatchID         *uuid.UUID     `gorm:"type:uuid"` // Match staged on the field, about to start
	CurrentStage          MatchStage     `gorm:"type:match_stage;not null;default:'practice'"`
	CurrentRound          int            `gorm:"not null;default:1"`
	AudienceDisplayScreen AudienceScreen `gorm:"type:audience_screen;not null;default:'blank'"`
	AllowTeamExports      bool           `gorm:"not null;default:false"`
	Completed             bool           `gorm:"not null;default:false"`
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// Team is a competing team within a division.
type Team struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	DivisionID  uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_division_team_number"`
	Number      int       `gorm:"not null;uniqueIndex:idx_division_team_number"` // The team's public competition number
	Name        string    `gorm:"not null"`
	Affiliation string    `gorm:"not null;default:''"`
	City        string    `gorm:"not null;default:''"`
	Registered  bool      `gorm:"not null;default:false"` // Set when the team checks in at the pit on event morning
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// RobotGameTable is one competition field. Referees are associated to a
// table; only the associated referee may write scoresheets for matches
// played on it.
type RobotGameTable struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	DivisionID uuid.UUID `gorm:"type:uuid;not null"`
	Name       string    `gorm:"not null"`
	CreatedAt  time.Time
}

// JudgingRoom is one judging room. Judges are associated to a room.
type JudgingRoom struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	DivisionID uuid.UUID `gorm:"type:uuid;not null"`
	Name       string    `gorm:"not null"`
	CreatedAt  time.Time
}

// User is a seeded event credential: one row per (event, role, association)
// tuple, generated when the event schedule is built. There are no personal
// accounts — volunteers log in as their role with a short password handed
// out on event morning.
//
// AssociationType and AssociationValue form a tagged value scoping the
// role's authority (the table a referee works, the room a judge sits in, or
// the judging category a lead judge owns). Both are nil for unscoped roles
// such as judge-advisor. The association kind must match the role's declared
// kind in the roles package — Validate enforces it at the store boundary.
type User struct {
	ID                  uuid.UUID              `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	EventID             uuid.UUID              `gorm:"type:uuid;not null;uniqueIndex:idx_event_role_assoc"`
	Role                roles.Role             `gorm:"type:user_role;not null;uniqueIndex:idx_event_role_assoc"`
	AssociationType     *roles.AssociationType `gorm:"type:association_type;uniqueIndex:idx_event_role_assoc"`
	AssociationValue    *string                `gorm:"uniqueIndex:idx_event_role_assoc"` // Table/room UUID or category name, per AssociationType
	IsAdmin             bool                   `gorm:"not null;default:false"`
	PasswordHash        string                 `gorm:"not null"` // bcrypt hash of the seeded login password
	LastPasswordSetDate time.Time              `gorm:"not null"`
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// Identity converts the stored user into the value the role validator
// consumes.
func (u *User) Identity() roles.Identity {
	id := roles.Identity{Role: u.Role, IsAdmin: u.IsAdmin}
	if u.AssociationType != nil && u.AssociationValue != nil {
		id.Association = &roles.Association{Type: *u.AssociationType, Value: *u.AssociationValue}
	}
	return id
}

// Validate checks the association invariant: the association kind carried by
// the row must be exactly the kind the role declares, and unscoped roles
// must carry none.
func (u *User) Validate() error {
	want := roles.AssociationTypeOf(u.Role)
	if want == "" {
		if u.AssociationType != nil || u.AssociationValue != nil {
			return fmt.Errorf("role %s takes no association", u.Role)
		}
		return nil
	}
	if u.AssociationType == nil || u.AssociationValue == nil {
		return fmt.Errorf("role %s requires a %s association", u.Role, want)
	}
	if *u.AssociationType != want {
		return fmt.Errorf("role %s requires a %s association, got %s", u.Role, want, *u.AssociationType)
	}
	return nil
}

// RobotGameMatch schedules one team on one table for a stage/round slot.
// A slot is unique per (division, stage, round, table). Once scheduled, the
// record is immutable except for Status and StartTime, and Status only ever
// moves forward.
type RobotGameMatch struct {
	ID            uuid.UUID      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	DivisionID    uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:idx_match_slot"`
	Stage         MatchStage     `gorm:"type:match_stage;not null;uniqueIndex:idx_match_slot"`
	Round         int            `gorm:"not null;uniqueIndex:idx_match_slot"`
	TableID       uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:idx_match_slot"`
	Table         RobotGameTable `gorm:"foreignKey:TableID"`
	TeamID        uuid.UUID      `gorm:"type:uuid;not null"`
	Team          Team           `gorm:"foreignKey:TeamID"`
	ScheduledTime time.Time      `gorm:"not null"`
	StartTime     *time.Time     // Set when the match actually starts; nil until then
	Status        MatchStatus    `gorm:"type:match_status;not null;default:'not-started'"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Mission is one scored mission on a scoresheet: the mission's rubric id and
// the clauses the referee marked.
type Mission struct {
	ID      string `json:"id"`      // Mission identifier from the season rubric (e.g. "m04")
	Clauses []any  `json:"clauses"` // Clause values: booleans, enums, or counts per the rubric
}

// MissionList stores the mission array as a JSONB column. Implementing
// driver.Valuer and sql.Scanner keeps the record typed in Go while the store
// keeps the original document shape.
type MissionList []Mission

// Value implements driver.Valuer.
func (m MissionList) Value() (driver.Value, error) {
	if m == nil {
		return "[]", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (m *MissionList) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*m = nil
		return nil
	case []byte:
		return json.Unmarshal(v, m)
	case string:
		return json.Unmarshal([]byte(v), m)
	default:
		return fmt.Errorf("cannot scan %T into MissionList", src)
	}
}

// Scoresheet is the per-team, per-match scoring record and its approval
// workflow. One scoresheet exists per (team, stage, round); it is created
// when its match is scheduled and written by the table's referee while the
// status is not yet ready. Ready is terminal and immutable except through a
// head-referee reopen. Full-document writes are upserts keyed by
// (MatchID, TeamID).
type Scoresheet struct {
	ID         uuid.UUID        `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	DivisionID uuid.UUID        `gorm:"type:uuid;not null"`
	TeamID     uuid.UUID        `gorm:"type:uuid;not null;uniqueIndex:idx_team_stage_round;uniqueIndex:idx_match_team"`
	MatchID    uuid.UUID        `gorm:"type:uuid;not null;uniqueIndex:idx_match_team"`
	Stage      MatchStage       `gorm:"type:match_stage;not null;uniqueIndex:idx_team_stage_round"`
	Round      int              `gorm:"not null;uniqueIndex:idx_team_stage_round"`
	Status     ScoresheetStatus `gorm:"type:scoresheet_status;not null;default:'empty'"`
	Score      int              `gorm:"not null;default:0"`
	Missions   MissionList      `gorm:"type:jsonb;not null;default:'[]'"`
	Escalated  bool             `gorm:"not null;default:false"` // Referee flagged the sheet for head-referee attention
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// JudgingDeliberation tracks the judging panel's decision process for one
// category, or the final cross-category ranking when IsFinal is set (in
// which case Category is nil). Exactly one deliberation exists per category
// plus exactly one final deliberation per division.
//
// Disqualifications live in DeliberationDisqualification join rows; the
// deliberation engine is their sole writer.
type JudgingDeliberation struct {
	ID         uuid.UUID              `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	DivisionID uuid.UUID              `gorm:"type:uuid;not null;uniqueIndex:idx_division_category"`
	Category   *roles.JudgingCategory `gorm:"type:judging_category;uniqueIndex:idx_division_category"` // nil = final deliberation
	IsFinal    bool                   `gorm:"not null;default:false"`
	Status     DeliberationStatus     `gorm:"type:deliberation_status;not null;default:'not-started'"`
	CreatedAt  time.Time
	UpdatedAt  time.Time

	Disqualifications []DeliberationDisqualification `gorm:"foreignKey:DeliberationID"`
}

// DeliberationDisqualification records one disqualified team in one
// deliberation. The composite primary key makes re-disqualifying the same
// team a no-op at the store level, which is what gives disqualifyTeam its
// idempotence.
type DeliberationDisqualification struct {
	DeliberationID uuid.UUID `gorm:"type:uuid;primaryKey"`
	TeamID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	CreatedAt      time.Time
}

// Award is one presentable award slot. Index encodes presentation order;
// Place disambiguates multi-place awards (1st, 2nd, 3rd of the same name).
// Exactly one of WinnerTeamID / WinnerText is set once finalized: team
// awards reference a Team, non-team awards (e.g. a volunteer recognition)
// carry free text.
type Award struct {
	ID           uuid.UUID  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	DivisionID   uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_division_award_place"`
	Name         string     `gorm:"not null;uniqueIndex:idx_division_award_place"`
	Index        int        `gorm:"column:award_index;not null"` // Presentation order; column renamed because "index" collides with SQL tooling
	Place        int        `gorm:"not null;default:1;uniqueIndex:idx_division_award_place"`
	WinnerTeamID *uuid.UUID `gorm:"type:uuid"`
	Winner       *Team      `gorm:"foreignKey:WinnerTeamID"`
	WinnerText   *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Finalized reports whether the award already has a winner assigned. The
// value receiver keeps it callable on non-addressable values such as map
// elements.
func (a Award) Finalized() bool {
	return a.WinnerTeamID != nil || (a.WinnerText != nil && *a.WinnerText != "")
}
