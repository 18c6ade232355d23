package handlers

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fanzyb/roblox-mooncrest/models"
	"github.com/fanzyb/roblox-mooncrest/repository"
	"github.com/fanzyb/roblox-mooncrest/services"
	"github.com/fanzyb/roblox-mooncrest/testutil"
)

type stubIdentity struct {
	users map[string]services.RobloxUser
}

func (s *stubIdentity) ResolveUsername(_ context.Context, username string) (*services.RobloxUser, error) {
	u, ok := s.users[strings.ToLower(username)]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (s *stubIdentity) AvatarURL(context.Context, int64) (string, error) {
	return "https://cdn.example/a.png", nil
}

func (s *stubIdentity) IsInGroup(context.Context, int64, int64) (bool, error) { return true, nil }

func (s *stubIdentity) GroupInfo(context.Context, int64) (*services.GroupInfo, error) {
	return &services.GroupInfo{ID: 1, Name: "Mooncrest", MemberCount: 1500}, nil
}

type stubRoles struct {
	mu   sync.Mutex
	held map[string]bool
}

func (s *stubRoles) HasRole(_ context.Context, userID, roleID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.held[userID+"/"+roleID], nil
}

func (s *stubRoles) AddRole(_ context.Context, userID, roleID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.held[userID+"/"+roleID] = true
	return nil
}

func (s *stubRoles) RemoveRole(_ context.Context, userID, roleID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.held, userID+"/"+roleID)
	return nil
}

var (
	admin  = services.Caller{PlatformID: "A1", Tag: "admin", Administrator: true}
	member = services.Caller{PlatformID: "M1", Tag: "member"}
)

type botFixture struct {
	bot   *Bot
	repo  repository.AccountRepository
	roles *stubRoles
	now   time.Time
}

func newBot(t *testing.T) *botFixture {
	t.Helper()
	repo := repository.NewAccountRepository(testutil.OpenTestDB(t))
	identity := &stubIdentity{users: map[string]services.RobloxUser{
		"alice": {ID: 100, Name: "Alice"},
		"bob":   {ID: 200, Name: "Bob"},
	}}
	roles := &stubRoles{held: map[string]bool{}}
	catalog := services.NewAchievementCatalog([]models.AchievementDef{
		{ID: 1, Name: "Summit", Description: "Reached the top", RoleID: "R-summit"},
		{ID: 2, Name: "Night Climb", Description: "Climbed at night"},
	})
	levels := services.MustLevelTable(models.DefaultLevels)
	resolver := &services.TargetResolver{Accounts: repo, Identity: identity}

	f := &botFixture{repo: repo, roles: roles, now: time.Unix(1_700_000_000, 0)}
	f.bot = &Bot{
		Links: &services.LinkService{
			Accounts: repo, Identity: identity, Roles: roles,
			Notifier: services.NopNotifier{}, Spawn: services.InlineSpawner,
			GroupID: 1, LinkedRoleID: "R-linked",
		},
		Ledger: &services.LedgerService{
			Accounts: repo, Resolver: resolver, Levels: levels, Catalog: catalog,
			Sync:     services.NewRoleSynchronizer(roles, catalog),
			Notifier: services.NopNotifier{}, Spawn: services.InlineSpawner,
			GroupID: 1, RequireGroupMembership: true,
		},
		Board: &services.LeaderboardService{
			Accounts: repo, Resolver: resolver, Levels: levels, Catalog: catalog, PageSize: 10,
		},
		Stats: &services.StatsService{
			Accounts: repo, Identity: identity, GroupID: 1, Levels: levels, Catalog: catalog, StartedAt: time.Now(),
		},
		Resolver:  resolver,
		Catalog:   catalog,
		Grants:    services.RoleGrants{services.CapManageXP: {"R-xp"}},
		PageSize:  10,
		ButtonTTL: time.Minute,
		Now:       func() time.Time { return f.now },
	}
	return f
}

func base(c services.Caller) Base {
	return Base{Caller: c, TraceID: "0123456789abcdef", ReceivedAt: time.Now()}
}
