package services

import (
	"fmt"
	"slices"
)

// Capability is a guarded command family.
type Capability string

const (
	CapManageXP      Capability = "manage_xp"
	CapManageRewards Capability = "manage_rewards"
	CapManageLinks   Capability = "manage_links"
	CapDebug         Capability = "debug"
)

// Caller is the Discord member invoking an interaction.
type Caller struct {
	PlatformID    string
	Tag           string
	Administrator bool
	RoleIDs       []string
}

// RoleGrants maps each capability to the role ids allowed to use it.
type RoleGrants map[Capability][]string

// Authorize passes administrators and members holding any role granted the capability.
func Authorize(c Caller, capability Capability, grants RoleGrants) error {
	if c.Administrator {
		return nil
	}
	for _, role := range grants[capability] {
		if slices.Contains(c.RoleIDs, role) {
			return nil
		}
	}
	return fmt.Errorf("%s lacks %s: %w", c.PlatformID, capability, ErrPermission)
}
