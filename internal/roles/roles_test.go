package roles

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robogatedev/tournament-server/internal/apperr"
)

func TestAuthorize(t *testing.T) {
	tableA := &Association{Type: AssociationTable, Value: "table-a"}
	tableB := &Association{Type: AssociationTable, Value: "table-b"}
	roomA := &Association{Type: AssociationRoom, Value: "room-a"}

	tests := []struct {
		name     string
		identity Identity
		required []Role
		scope    *Association
		wantErr  bool
	}{
		{
			name:     "role in required set",
			identity: Identity{Role: RoleReferee},
			required: []Role{RoleReferee, RoleHeadReferee},
		},
		{
			name:     "role not in required set",
			identity: Identity{Role: RoleJudge},
			required: []Role{RoleReferee, RoleHeadReferee},
			wantErr:  true,
		},
		{
			name:     "empty required set admits any valid role",
			identity: Identity{Role: RoleAudienceDisplay},
		},
		{
			name:     "unknown role rejected even with empty required set",
			identity: Identity{Role: Role("janitor")},
			wantErr:  true,
		},
		{
			name:     "matching association passes scope check",
			identity: Identity{Role: RoleReferee, Association: tableA},
			required: []Role{RoleReferee},
			scope:    tableA,
		},
		{
			name:     "wrong association value fails scope check",
			identity: Identity{Role: RoleReferee, Association: tableB},
			required: []Role{RoleReferee},
			scope:    tableA,
			wantErr:  true,
		},
		{
			name:     "wrong association kind fails scope check",
			identity: Identity{Role: RoleReferee, Association: roomA},
			required: []Role{RoleReferee},
			scope:    tableA,
			wantErr:  true,
		},
		{
			name:     "no association fails scope check",
			identity: Identity{Role: RoleReferee},
			required: []Role{RoleReferee},
			scope:    tableA,
			wantErr:  true,
		},
		{
			name:     "head referee crosses table scopes",
			identity: Identity{Role: RoleHeadReferee},
			required: []Role{RoleReferee, RoleHeadReferee},
			scope:    tableA,
		},
		{
			name:     "judge advisor crosses category scopes",
			identity: Identity{Role: RoleJudgeAdvisor},
			required: []Role{RoleLeadJudge, RoleJudgeAdvisor},
			scope:    &Association{Type: AssociationCategory, Value: string(CategoryRobotDesign)},
		},
		{
			name:     "tournament manager crosses scopes",
			identity: Identity{Role: RoleTournamentManager},
			required: []Role{RoleLeadJudge, RoleJudgeAdvisor, RoleTournamentManager},
			scope:    &Association{Type: AssociationCategory, Value: string(CategoryCoreValues)},
		},
		{
			name:     "unscoped privilege does not bypass the role set",
			identity: Identity{Role: RoleHeadReferee},
			required: []Role{RoleJudgeAdvisor},
			scope:    tableA,
			wantErr:  true,
		},
		{
			name:     "admin bypasses everything",
			identity: Identity{Role: Role("ops"), IsAdmin: true},
			required: []Role{RoleJudgeAdvisor},
			scope:    tableA,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Authorize(tt.identity, tt.required, tt.scope)
			if tt.wantErr {
				// Always the uniform sentinel, regardless of which half failed.
				require.ErrorIs(t, err, apperr.ErrUnauthorized)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestAssociationTypeOf(t *testing.T) {
	assert.Equal(t, AssociationTable, AssociationTypeOf(RoleReferee))
	assert.Equal(t, AssociationRoom, AssociationTypeOf(RoleJudge))
	assert.Equal(t, AssociationCategory, AssociationTypeOf(RoleLeadJudge))

	for _, r := range []Role{
		RoleHeadReferee, RoleScorekeeper, RoleJudgeAdvisor,
		RoleTournamentManager, RolePitAdmin, RoleAudienceDisplay, RoleReports,
	} {
		assert.Empty(t, AssociationTypeOf(r), "role %s should be unscoped", r)
	}
}

func TestRoleIsValid(t *testing.T) {
	for _, r := range All {
		assert.True(t, r.IsValid(), "role %s", r)
	}
	assert.False(t, Role("").IsValid())
	assert.False(t, Role("Referee").IsValid()) // values are case-sensitive
}
