// Package roles defines the tournament role model and the authorization
// predicate used by both the HTTP middleware and the realtime channel.
//
// A role may be scoped by an association — the table a referee works, the
// room a judge sits in, or the judging category a lead judge owns. The
// association limits which resources the role may mutate: a referee on
// table A cannot touch table B's scoresheets. A few roles are
// unscoped-privileged and may act across the whole division (judge advisor,
// tournament manager, and the head referee for cross-table matters).
package roles

import "github.com/robogatedev/tournament-server/internal/apperr"

// Role is a tournament-day job. Each connected client authenticates as
// exactly one role within one event.
type Role string

const (
	RoleReferee           Role = "referee"
	RoleHeadReferee       Role = "head-referee"
	RoleScorekeeper       Role = "scorekeeper"
	RoleJudge             Role = "judge"
	RoleLeadJudge         Role = "lead-judge"
	RoleJudgeAdvisor      Role = "judge-advisor"
	RoleTournamentManager Role = "tournament-manager"
	RolePitAdmin          Role = "pit-admin"
	RoleAudienceDisplay   Role = "audience-display"
	RoleReports           Role = "reports"
)

// All lists every role, in the order users are seeded for an event.
var All = []Role{
	RoleReferee,
	RoleHeadReferee,
	RoleScorekeeper,
	RoleJudge,
	RoleLeadJudge,
	RoleJudgeAdvisor,
	RoleTournamentManager,
	RolePitAdmin,
	RoleAudienceDisplay,
	RoleReports,
}

// IsValid reports whether r is a known role.
func (r Role) IsValid() bool {
	for _, known := range All {
		if r == known {
			return true
		}
	}
	return false
}

// AssociationType names the kind of resource an association scopes a role to.
type AssociationType string

const (
	AssociationTable    AssociationType = "table"
	AssociationRoom     AssociationType = "room"
	AssociationCategory AssociationType = "category"
)

// Association is a tagged value scoping a role's authority: which table,
// which room, or which judging category. Value holds a table/room UUID or a
// JudgingCategory string depending on Type.
type Association struct {
	Type  AssociationType
	Value string
}

// JudgingCategory is one of the fixed judging rubric categories.
type JudgingCategory string

const (
	CategoryInnovationProject JudgingCategory = "innovation-project"
	CategoryRobotDesign       JudgingCategory = "robot-design"
	CategoryCoreValues        JudgingCategory = "core-values"
)

// JudgingCategories lists the fixed categories, in deliberation order.
var JudgingCategories = []JudgingCategory{
	CategoryInnovationProject,
	CategoryRobotDesign,
	CategoryCoreValues,
}

// AssociationTypeOf returns the association kind a role carries, or "" for
// unscoped roles. A user document whose association kind disagrees with this
// table is invalid.
func AssociationTypeOf(r Role) AssociationType {
	switch r {
	case RoleReferee:
		return AssociationTable
	case RoleJudge:
		return AssociationRoom
	case RoleLeadJudge:
		return AssociationCategory
	default:
		return ""
	}
}

// unscopedPrivileged roles may mutate association-scoped resources without
// holding a matching association themselves.
var unscopedPrivileged = map[Role]bool{
	RoleJudgeAdvisor:      true,
	RoleTournamentManager: true,
	RoleHeadReferee:       true,
}

// Identity is the authenticated caller as seen by Authorize: its role plus
// its optional association. IsAdmin bypasses every check.
type Identity struct {
	Role        Role
	Association *Association
	IsAdmin     bool
}

// Authorize is the single gate for every mutation. required is the set of
// roles allowed on the target operation; an empty set admits any
// authenticated role. When scope is non-nil the target resource belongs to a
// specific table, room, or category, and the caller must either hold a
// matching association or be unscoped-privileged.
//
// Failure is always apperr.ErrUnauthorized; Authorize never reports which
// half of the check failed.
func Authorize(id Identity, required []Role, scope *Association) error {
	if id.IsAdmin {
		return nil
	}
	if !id.Role.IsValid() {
		return apperr.ErrUnauthorized
	}

	if len(required) > 0 {
		allowed := false
		for _, r := range required {
			if id.Role == r {
				allowed = true
				break
			}
		}
		if !allowed {
			return apperr.ErrUnauthorized
		}
	}

	if scope != nil && !unscopedPrivileged[id.Role] {
		if id.Association == nil ||
			id.Association.Type != scope.Type ||
			id.Association.Value != scope.Value {
			return apperr.ErrUnauthorized
		}
	}

	return nil
}
