package services

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/fanzyb/roblox-mooncrest/models"
	"github.com/fanzyb/roblox-mooncrest/repository"
	"github.com/fanzyb/roblox-mooncrest/testutil"
)

const testGroupID = 777

var testLevels = MustLevelTable([]models.LevelTier{
	{Name: "Climber", XP: 0},
	{Name: "Beginner", XP: 10},
	{Name: "Amateur", XP: 30},
	{Name: "Intermediate", XP: 60},
})

var testAchievements = []models.AchievementDef{
	{ID: 1, Name: "Summit", Description: "Reached the top", RoleID: "R-summit"},
	{ID: 2, Name: "Night Climb", Description: "Climbed at night", RoleID: "R-night"},
	{ID: 3, Name: "Roleless", Description: "No role attached"},
}

type fakeIdentity struct {
	mu       sync.Mutex
	users    map[string]RobloxUser // lower-case username
	members  map[int64]bool
	group    *GroupInfo
	err      error
	resolves int
}

func newFakeIdentity(users ...RobloxUser) *fakeIdentity {
	f := &fakeIdentity{users: map[string]RobloxUser{}, members: map[int64]bool{}}
	for _, u := range users {
		f.users[strings.ToLower(u.Name)] = u
		f.members[u.ID] = true
	}
	return f
}

func (f *fakeIdentity) ResolveUsername(_ context.Context, username string) (*RobloxUser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resolves++
	if f.err != nil {
		return nil, f.err
	}
	u, ok := f.users[strings.ToLower(username)]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (f *fakeIdentity) AvatarURL(_ context.Context, userID int64) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "https://cdn.example/avatar/" + strconv.FormatInt(userID, 10) + ".png", nil
}

func (f *fakeIdentity) IsInGroup(_ context.Context, userID, _ int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	return f.members[userID], nil
}

func (f *fakeIdentity) GroupInfo(_ context.Context, _ int64) (*GroupInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.group, nil
}

type fakeRoles struct {
	mu    sync.Mutex
	held  map[string]map[string]bool
	calls []string
	fail  error
}

func newFakeRoles() *fakeRoles { return &fakeRoles{held: map[string]map[string]bool{}} }

func (f *fakeRoles) HasRole(_ context.Context, userID, roleID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return false, f.fail
	}
	return f.held[userID][roleID], nil
}

func (f *fakeRoles) AddRole(_ context.Context, userID, roleID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "add "+userID+" "+roleID)
	if f.fail != nil {
		return f.fail
	}
	if f.held[userID] == nil {
		f.held[userID] = map[string]bool{}
	}
	f.held[userID][roleID] = true
	return nil
}

func (f *fakeRoles) RemoveRole(_ context.Context, userID, roleID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "remove "+userID+" "+roleID)
	if f.fail != nil {
		return f.fail
	}
	delete(f.held[userID], roleID)
	return nil
}

func (f *fakeRoles) has(userID, roleID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.held[userID][roleID]
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []Event
	fail   error
}

func (n *recordingNotifier) Notify(_ context.Context, ev Event) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
	return n.fail
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.events)
}

var errDiscordDown = errors.New("discord unavailable")

type fixture struct {
	repo     repository.AccountRepository
	identity *fakeIdentity
	roles    *fakeRoles
	notifier *recordingNotifier
	catalog  *AchievementCatalog
	links    *LinkService
	ledger   *LedgerService
	board    *LeaderboardService
}

func newFixture(t *testing.T, users ...RobloxUser) *fixture {
	t.Helper()
	f := &fixture{
		repo:     repository.NewAccountRepository(testutil.OpenTestDB(t)),
		identity: newFakeIdentity(users...),
		roles:    newFakeRoles(),
		notifier: &recordingNotifier{},
		catalog:  NewAchievementCatalog(testAchievements),
	}
	resolver := &TargetResolver{Accounts: f.repo, Identity: f.identity}
	f.links = &LinkService{
		Accounts:     f.repo,
		Identity:     f.identity,
		Roles:        f.roles,
		Notifier:     f.notifier,
		Spawn:        InlineSpawner,
		GroupID:      testGroupID,
		LinkedRoleID: "R-linked",
	}
	f.ledger = &LedgerService{
		Accounts:               f.repo,
		Resolver:               resolver,
		Levels:                 testLevels,
		Catalog:                f.catalog,
		Sync:                   NewRoleSynchronizer(f.roles, f.catalog),
		Notifier:               f.notifier,
		Spawn:                  InlineSpawner,
		GroupID:                testGroupID,
		RequireGroupMembership: true,
	}
	f.board = &LeaderboardService{
		Accounts: f.repo,
		Resolver: resolver,
		Levels:   testLevels,
		Catalog:  f.catalog,
		PageSize: 10,
	}
	return f
}
