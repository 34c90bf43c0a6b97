package service

import (
	"testing"

	"github.com/medscan/scangate/internal/model"
	"github.com/stretchr/testify/assert"
)

func TestBuildScopePlainUserPinnedToSelf(t *testing.T) {
	caller := &model.User{ID: 7, Role: model.RoleUser}
	s := BuildScope(caller, nil, false)
	if assert.NotNil(t, s.UserID) {
		assert.Equal(t, int64(7), *s.UserID)
	}
	assert.False(t, s.IncludeDeleted)
}

func TestBuildScopeAdminSeesAll(t *testing.T) {
	for _, role := range []string{model.RoleDeviceAdmin, model.RoleSysAdmin} {
		caller := &model.User{ID: 1, Role: role}
		s := BuildScope(caller, nil, false)
		assert.Nil(t, s.UserID, "role %s should not be pinned", role)
	}
}

func TestBuildScopeExplicitUserIDHonored(t *testing.T) {
	caller := &model.User{ID: 1, Role: model.RoleSysAdmin}
	target := int64(42)
	s := BuildScope(caller, &target, false)
	if assert.NotNil(t, s.UserID) {
		assert.Equal(t, int64(42), *s.UserID)
	}
}

func TestBuildScopeIncludeDeletedOnlySelfScope(t *testing.T) {
	caller := &model.User{ID: 7, Role: model.RoleUser}

	// Self scope: flag honored.
	s := BuildScope(caller, nil, true)
	assert.True(t, s.IncludeDeleted)

	// Explicit user_id: flag dropped, even for admins.
	admin := &model.User{ID: 1, Role: model.RoleSysAdmin}
	target := int64(7)
	s = BuildScope(admin, &target, true)
	assert.False(t, s.IncludeDeleted)
}

func TestScopeApplyOverridesFilter(t *testing.T) {
	caller := &model.User{ID: 7, Role: model.RoleUser}
	sneaky := int64(99)
	f := model.UsageFilter{UserID: &sneaky, IncludeDeleted: true, DeviceCode: "MRI-01"}

	scoped := BuildScope(caller, nil, false).Apply(f)

	if assert.NotNil(t, scoped.UserID) {
		assert.Equal(t, int64(7), *scoped.UserID)
	}
	assert.False(t, scoped.IncludeDeleted)
	assert.Equal(t, "MRI-01", scoped.DeviceCode, "unrelated filter fields pass through")
}
