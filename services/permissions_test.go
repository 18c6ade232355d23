package services

import (
	"errors"
	"testing"
)

func TestAuthorize(t *testing.T) {
	grants := RoleGrants{CapManageXP: {"R-xp"}, CapDebug: {"R-dev"}}
	tests := []struct {
		name   string
		caller Caller
		cap    Capability
		ok     bool
	}{
		{"administrator", Caller{PlatformID: "1", Administrator: true}, CapManageLinks, true},
		{"granted role", Caller{PlatformID: "2", RoleIDs: []string{"x", "R-xp"}}, CapManageXP, true},
		{"role for another capability", Caller{PlatformID: "3", RoleIDs: []string{"R-xp"}}, CapDebug, false},
		{"no roles", Caller{PlatformID: "4"}, CapManageXP, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Authorize(tt.caller, tt.cap, grants)
			if tt.ok && err != nil {
				t.Fatalf("err=%v, want nil", err)
			}
			if !tt.ok && !errors.Is(err, ErrPermission) {
				t.Fatalf("err=%v, want ErrPermission", err)
			}
		})
	}
}
