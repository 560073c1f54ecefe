package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoleClearanceIsOrdered(t *testing.T) {
	tests := []struct {
		name     string
		role     Role
		required Role
		want     bool
	}{
		{"regular cannot act as cashier", RoleRegular, RoleCashier, false},
		{"cashier has cashier clearance", RoleCashier, RoleCashier, true},
		{"cashier cannot act as manager", RoleCashier, RoleManager, false},
		{"manager has cashier clearance", RoleManager, RoleCashier, true},
		{"superuser has manager clearance", RoleSuperuser, RoleManager, true},
		{"superuser has regular clearance", RoleSuperuser, RoleRegular, true},
		{"unknown role has no clearance", Role("admin"), RoleRegular, false},
		{"unknown requirement grants nothing", RoleSuperuser, Role("root"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.role.HasClearance(tt.required))
		})
	}
}

func TestRoleValid(t *testing.T) {
	assert.True(t, RoleRegular.Valid())
	assert.True(t, RoleSuperuser.Valid())
	assert.False(t, Role("").Valid())
	assert.False(t, Role("admin").Valid())
}
