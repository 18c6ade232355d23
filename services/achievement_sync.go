package services

import (
	"context"
	"log"
	"slices"

	"github.com/fanzyb/roblox-mooncrest/models"
)

// AchievementCatalog is the static set of achievements, keyed by id.
type AchievementCatalog struct {
	defs []models.AchievementDef
	byID map[int]models.AchievementDef
}

func NewAchievementCatalog(defs []models.AchievementDef) *AchievementCatalog {
	c := &AchievementCatalog{
		defs: slices.Clone(defs),
		byID: make(map[int]models.AchievementDef, len(defs)),
	}
	for _, d := range defs {
		c.byID[d.ID] = d
	}
	return c
}

func (c *AchievementCatalog) Lookup(id int) (models.AchievementDef, bool) {
	if c == nil {
		return models.AchievementDef{}, false
	}
	d, ok := c.byID[id]
	return d, ok
}

// All returns the definitions in configured order.
func (c *AchievementCatalog) All() []models.AchievementDef {
	if c == nil {
		return nil
	}
	return slices.Clone(c.defs)
}

// Resolve maps held ids to their definitions, skipping ids no longer configured.
func (c *AchievementCatalog) Resolve(ids []int) []models.AchievementDef {
	out := make([]models.AchievementDef, 0, len(ids))
	for _, id := range ids {
		if d, ok := c.Lookup(id); ok {
			out = append(out, d)
		}
	}
	return out
}

type SyncAction string

const (
	SyncGrant  SyncAction = "grant"
	SyncRevoke SyncAction = "revoke"
)

// RoleSynchronizer keeps achievement roles in line with the ledger's achievement set.
type RoleSynchronizer struct {
	Roles   RoleManager
	Catalog *AchievementCatalog
}

func NewRoleSynchronizer(roles RoleManager, catalog *AchievementCatalog) *RoleSynchronizer {
	return &RoleSynchronizer{Roles: roles, Catalog: catalog}
}

// Sync grants or revokes the achievement's role on the linked Discord user and reports
// whether the role state changed. Unlinked accounts, unknown achievements and Discord
// failures all yield false; failures are logged only.
func (s *RoleSynchronizer) Sync(ctx context.Context, acc *models.LinkedAccount, achievementID int, action SyncAction) bool {
	if s == nil || s.Roles == nil || acc == nil || !acc.IsLinked() {
		return false
	}
	def, ok := s.Catalog.Lookup(achievementID)
	if !ok || def.RoleID == "" {
		return false
	}
	userID := acc.LinkedTo()

	held, err := s.Roles.HasRole(ctx, userID, def.RoleID)
	if err != nil {
		log.Printf("[SYNC] ⚠️ role lookup for %s (%s) failed: %v", userID, def.Name, err)
		return false
	}

	switch action {
	case SyncGrant:
		if held {
			return false
		}
		if res := runEffect("grant role "+def.RoleID, func() error { return s.Roles.AddRole(ctx, userID, def.RoleID) }); !res.OK() {
			return false
		}
	case SyncRevoke:
		if !held {
			return false
		}
		if res := runEffect("revoke role "+def.RoleID, func() error { return s.Roles.RemoveRole(ctx, userID, def.RoleID) }); !res.OK() {
			return false
		}
	default:
		log.Printf("[SYNC] ⚠️ unknown sync action %q", action)
		return false
	}
	log.Printf("[SYNC] 🎖️ %s %s → %s", action, def.Name, userID)
	return true
}
