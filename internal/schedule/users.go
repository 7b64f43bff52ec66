// Package schedule seeds the per-event user credentials. When an event's
// schedule is built, one user is created for every role — and for scoped
// roles, one per association: a referee per table, a judge per room, a lead
// judge per judging category. Each user gets a short random password handed
// out on event morning; only the bcrypt hash is stored.
package schedule

import (
	"context"
	"crypto/rand"
	"math/big"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/robogatedev/tournament-server/internal/database"
	"github.com/robogatedev/tournament-server/internal/models"
	"github.com/robogatedev/tournament-server/internal/roles"
)

// passwordLength matches the handed-out slips: short enough to type on a
// tablet between matches.
const passwordLength = 4

const passwordAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

func randomPassword() (string, error) {
	buf := make([]byte, passwordLength)
	for i := range buf {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(passwordAlphabet))))
		if err != nil {
			return "", err
		}
		buf[i] = passwordAlphabet[n.Int64()]
	}
	return string(buf), nil
}

// Credential is one seeded login, returned exactly once with its plaintext
// password so it can be printed; only the hash persists.
type Credential struct {
	Role             roles.Role             `json:"role"`
	AssociationType  *roles.AssociationType `json:"associationType,omitempty"`
	AssociationValue *string                `json:"associationValue,omitempty"`
	Password         string                 `json:"password"`
}

// buildUsers enumerates every (role × association) tuple for the event and
// produces the user rows plus their plaintext credentials. Pure of the store
// so the enumeration rules can be checked directly.
func buildUsers(eventID uuid.UUID, tables []models.RobotGameTable, rooms []models.JudgingRoom, now time.Time) ([]models.User, []Credential, error) {
	var credentials []Credential
	var users []models.User

	appendUser := func(role roles.Role, assocType roles.AssociationType, assocValue string) error {
		password, err := randomPassword()
		if err != nil {
			return err
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return err
		}

		user := models.User{
			EventID:             eventID,
			Role:                role,
			PasswordHash:        string(hash),
			LastPasswordSetDate: now,
		}
		cred := Credential{Role: role, Password: password}
		if assocType != "" {
			at, av := assocType, assocValue
			user.AssociationType = &at
			user.AssociationValue = &av
			cred.AssociationType = &at
			cred.AssociationValue = &av
		}
		if err := user.Validate(); err != nil {
			return err
		}
		users = append(users, user)
		credentials = append(credentials, cred)
		return nil
	}

	for _, role := range roles.All {
		switch roles.AssociationTypeOf(role) {
		case roles.AssociationTable:
			for _, table := range tables {
				if err := appendUser(role, roles.AssociationTable, table.ID.String()); err != nil {
					return nil, nil, err
				}
			}
		case roles.AssociationRoom:
			for _, room := range rooms {
				if err := appendUser(role, roles.AssociationRoom, room.ID.String()); err != nil {
					return nil, nil, err
				}
			}
		case roles.AssociationCategory:
			for _, category := range roles.JudgingCategories {
				if err := appendUser(role, roles.AssociationCategory, string(category)); err != nil {
					return nil, nil, err
				}
			}
		default:
			if err := appendUser(role, "", ""); err != nil {
				return nil, nil, err
			}
		}
	}

	return users, credentials, nil
}

// SeedEventUsers enumerates every (role × association) tuple for the event
// and upserts a user per tuple. Re-seeding replaces passwords and stamps a
// new LastPasswordSetDate. Tables and rooms are gathered across all of the
// event's divisions.
func SeedEventUsers(ctx context.Context, db *gorm.DB, eventID uuid.UUID) ([]Credential, error) {
	var tables []models.RobotGameTable
	err := db.WithContext(ctx).
		Joins("JOIN divisions ON divisions.id = robot_game_tables.division_id").
		Where("divisions.event_id = ?", eventID).
		Find(&tables).Error
	if err != nil {
		return nil, database.Classify(err)
	}

	var rooms []models.JudgingRoom
	err = db.WithContext(ctx).
		Joins("JOIN divisions ON divisions.id = judging_rooms.division_id").
		Where("divisions.event_id = ?", eventID).
		Find(&rooms).Error
	if err != nil {
		return nil, database.Classify(err)
	}

	users, credentials, err := buildUsers(eventID, tables, rooms, time.Now())
	if err != nil {
		return nil, err
	}

	// Insert-or-replace on the (event, role, association) natural key so
	// re-seeding rotates passwords instead of failing.
	err = db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "event_id"}, {Name: "role"},
				{Name: "association_type"}, {Name: "association_value"},
			},
			DoUpdates: clause.AssignmentColumns([]string{"password_hash", "last_password_set_date", "updated_at"}),
		}).
		Create(&users).Error
	if err != nil {
		return nil, database.Classify(err)
	}

	return credentials, nil
}
