package services

import (
	"context"
	"errors"
	"testing"

	"github.com/fanzyb/roblox-mooncrest/models"
)

func TestApplyDelta(t *testing.T) {
	base := models.LinkedAccount{ExternalID: "100", XP: 20, ActivityCount: 3}
	tests := []struct {
		name     string
		field    Field
		op       Op
		amount   int64
		xp       int64
		activity int64
	}{
		{"add xp counts an activity", FieldXP, OpAdd, 5, 25, 4},
		{"remove xp drops an activity", FieldXP, OpRemove, 5, 15, 2},
		{"remove xp floors at zero", FieldXP, OpRemove, 500, 0, 2},
		{"set xp leaves activity", FieldXP, OpSet, 7, 7, 3},
		{"set xp to zero", FieldXP, OpSet, 0, 0, 3},
		{"add activity", FieldActivity, OpAdd, 2, 20, 5},
		{"remove activity floors", FieldActivity, OpRemove, 9, 20, 0},
		{"set activity", FieldActivity, OpSet, 11, 20, 11},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ApplyDelta(base, tt.field, tt.op, tt.amount)
			if err != nil {
				t.Fatalf("ApplyDelta error: %v", err)
			}
			if got.XP != tt.xp || got.ActivityCount != tt.activity {
				t.Fatalf("got xp=%d activity=%d, want xp=%d activity=%d", got.XP, got.ActivityCount, tt.xp, tt.activity)
			}
		})
	}
	if base.XP != 20 || base.ActivityCount != 3 {
		t.Fatalf("input mutated: %+v", base)
	}
}

func TestApplyDeltaRejectsNegativeAmount(t *testing.T) {
	if _, err := ApplyDelta(models.LinkedAccount{}, FieldXP, OpAdd, -1); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("err=%v, want ErrInvalidAmount", err)
	}
}

func TestRepeatedRemovesNeverGoNegative(t *testing.T) {
	acc := models.LinkedAccount{XP: 3, ActivityCount: 1}
	for _, amount := range []int64{1, 5, 0, 100, 2} {
		var err error
		if acc, err = ApplyDelta(acc, FieldXP, OpRemove, amount); err != nil {
			t.Fatal(err)
		}
		if acc, err = ApplyDelta(acc, FieldActivity, OpRemove, amount); err != nil {
			t.Fatal(err)
		}
		if acc.XP < 0 || acc.ActivityCount < 0 {
			t.Fatalf("went negative: %+v", acc)
		}
	}
}

func TestAdjustSignalsLevelUp(t *testing.T) {
	f := newFixture(t, RobloxUser{ID: 100, Name: "Alice"})
	ctx := context.Background()

	if _, err := f.ledger.Adjust(ctx, AdjustRequest{Target: Target{Username: "Alice"}, Field: FieldXP, Op: OpSet, Amount: 59}); err != nil {
		t.Fatalf("set error: %v", err)
	}
	res, err := f.ledger.Adjust(ctx, AdjustRequest{Target: Target{Username: "alice"}, Field: FieldXP, Op: OpAdd, Amount: 1, Actor: "mod"})
	if err != nil {
		t.Fatalf("add error: %v", err)
	}
	if !res.LevelChanged || !res.LeveledUp || res.FromTier != "Amateur" || res.ToTier != "Intermediate" {
		t.Fatalf("got=%+v, want level up Amateur → Intermediate", res)
	}
	if res.Before != 59 || res.After != 60 || res.Account.ActivityCount != 1 {
		t.Fatalf("got before=%d after=%d activity=%d", res.Before, res.After, res.Account.ActivityCount)
	}
	if f.notifier.count() != 2 {
		t.Fatalf("notifications=%d, want 2", f.notifier.count())
	}
}

func TestAdjustLevelDownIsNotLevelUp(t *testing.T) {
	f := newFixture(t, RobloxUser{ID: 100, Name: "Alice"})
	ctx := context.Background()
	_, _ = f.ledger.Adjust(ctx, AdjustRequest{Target: Target{Username: "Alice"}, Field: FieldXP, Op: OpSet, Amount: 30})

	res, err := f.ledger.Adjust(ctx, AdjustRequest{Target: Target{Username: "Alice"}, Field: FieldXP, Op: OpRemove, Amount: 1})
	if err != nil {
		t.Fatal(err)
	}
	if !res.LevelChanged || res.LeveledUp {
		t.Fatalf("got changed=%v up=%v, want a level down", res.LevelChanged, res.LeveledUp)
	}
}

func TestAdjustRequiresGroupMembership(t *testing.T) {
	f := newFixture(t, RobloxUser{ID: 100, Name: "Alice"})
	f.identity.members[100] = false

	_, err := f.ledger.Adjust(context.Background(), AdjustRequest{Target: Target{Username: "Alice"}, Field: FieldXP, Op: OpAdd, Amount: 5})
	if !errors.Is(err, ErrNotEligible) {
		t.Fatalf("err=%v, want ErrNotEligible", err)
	}
	if _, found, _ := f.repo.FindByExternalID(context.Background(), "100"); found {
		t.Fatal("ineligible adjust registered the account")
	}
	if n, _ := f.repo.Count(context.Background()); n != 0 {
		t.Fatalf("records=%d, want 0", n)
	}

	f.ledger.RequireGroupMembership = false
	if _, err := f.ledger.Adjust(context.Background(), AdjustRequest{Target: Target{Username: "Alice"}, Field: FieldXP, Op: OpAdd, Amount: 5}); err != nil {
		t.Fatalf("ungated adjust: %v", err)
	}
}

func TestAdjustGateAppliesToRegisteredAccounts(t *testing.T) {
	f := newFixture(t, RobloxUser{ID: 100, Name: "Alice"}, RobloxUser{ID: 200, Name: "Outsider"})
	ctx := context.Background()
	if _, _, err := f.repo.Ensure(ctx, "200", "Outsider"); err != nil {
		t.Fatal(err)
	}
	f.identity.members[200] = false

	_, err := f.ledger.Adjust(ctx, AdjustRequest{Target: Target{ExternalID: "200"}, Field: FieldActivity, Op: OpAdd, Amount: 3})
	if !errors.Is(err, ErrNotEligible) {
		t.Fatalf("err=%v, want ErrNotEligible", err)
	}
	acc, _, _ := f.repo.FindByExternalID(ctx, "200")
	if acc.ActivityCount != 0 {
		t.Fatalf("activity=%d, want untouched ledger", acc.ActivityCount)
	}
	if n, _ := f.repo.Count(ctx); n != 1 {
		t.Fatalf("records=%d, want only the pre-registered one", n)
	}
}

func TestAdjustTargets(t *testing.T) {
	f := newFixture(t, RobloxUser{ID: 100, Name: "Alice"})
	ctx := context.Background()

	if _, err := f.ledger.Adjust(ctx, AdjustRequest{Target: Target{Username: "Nobody"}, Field: FieldXP, Op: OpAdd, Amount: 1}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown username err=%v, want ErrNotFound", err)
	}
	if _, err := f.ledger.Adjust(ctx, AdjustRequest{Target: Target{PlatformID: "D1"}, Field: FieldXP, Op: OpAdd, Amount: 1}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unlinked member err=%v, want ErrNotFound", err)
	}
	if _, err := f.links.SelfVerify(ctx, "Alice", "D1"); err != nil {
		t.Fatal(err)
	}
	res, err := f.ledger.Adjust(ctx, AdjustRequest{Target: Target{PlatformID: "D1"}, Field: FieldActivity, Op: OpAdd, Amount: 2})
	if err != nil {
		t.Fatalf("member adjust: %v", err)
	}
	if res.Account.ExternalID != "100" || res.Account.ActivityCount != 2 || res.Account.XP != 0 {
		t.Fatalf("got=%+v", res.Account)
	}
}

func TestAdjustUpstreamFailure(t *testing.T) {
	f := newFixture(t, RobloxUser{ID: 100, Name: "Alice"})
	f.identity.err = ErrUpstreamUnavailable
	_, err := f.ledger.Adjust(context.Background(), AdjustRequest{Target: Target{Username: "Alice"}, Field: FieldXP, Op: OpAdd, Amount: 1})
	if !errors.Is(err, ErrUpstreamUnavailable) {
		t.Fatalf("err=%v, want ErrUpstreamUnavailable", err)
	}
}

func TestGrantAchievementIsIdempotent(t *testing.T) {
	f := newFixture(t, RobloxUser{ID: 100, Name: "Alice"})
	ctx := context.Background()
	if _, err := f.links.SelfVerify(ctx, "Alice", "D1"); err != nil {
		t.Fatal(err)
	}

	first, err := f.ledger.GrantAchievement(ctx, Target{ExternalID: "100"}, 1, "mod")
	if err != nil {
		t.Fatalf("grant: %v", err)
	}
	if !first.Changed || !first.RoleChanged {
		t.Fatalf("first grant=%+v, want changed", first)
	}
	second, err := f.ledger.GrantAchievement(ctx, Target{ExternalID: "100"}, 1, "mod")
	if err != nil {
		t.Fatalf("grant again: %v", err)
	}
	if second.Changed || second.RoleChanged {
		t.Fatalf("second grant=%+v, want no-op", second)
	}
	if len(second.Account.Achievements) != 1 || !f.roles.has("D1", "R-summit") {
		t.Fatalf("achievements=%v role=%v", second.Account.Achievements, f.roles.has("D1", "R-summit"))
	}

	rev, err := f.ledger.RevokeAchievement(ctx, Target{ExternalID: "100"}, 1, "mod")
	if err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if !rev.Changed || !rev.RoleChanged || len(rev.Account.Achievements) != 0 || f.roles.has("D1", "R-summit") {
		t.Fatalf("revoke=%+v", rev)
	}
	again, _ := f.ledger.RevokeAchievement(ctx, Target{ExternalID: "100"}, 1, "mod")
	if again.Changed || again.RoleChanged {
		t.Fatalf("second revoke=%+v, want no-op", again)
	}
}

func TestGrantAchievementSurvivesRoleFailure(t *testing.T) {
	f := newFixture(t, RobloxUser{ID: 100, Name: "Alice"})
	ctx := context.Background()
	if _, err := f.links.SelfVerify(ctx, "Alice", "D1"); err != nil {
		t.Fatal(err)
	}
	f.roles.fail = errDiscordDown

	res, err := f.ledger.GrantAchievement(ctx, Target{Username: "Alice"}, 2, "mod")
	if err != nil {
		t.Fatalf("grant: %v", err)
	}
	if !res.Changed || res.RoleChanged {
		t.Fatalf("got=%+v, want ledger changed without role", res)
	}
	acc, _, _ := f.repo.FindByExternalID(ctx, "100")
	if !acc.HasAchievement(2) {
		t.Fatalf("achievements=%v, want 2 kept", acc.Achievements)
	}
}

func TestGrantUnknownAchievement(t *testing.T) {
	f := newFixture(t, RobloxUser{ID: 100, Name: "Alice"})
	if _, err := f.ledger.GrantAchievement(context.Background(), Target{Username: "Alice"}, 99, "mod"); !errors.Is(err, ErrUnknownAchievement) {
		t.Fatalf("err=%v, want ErrUnknownAchievement", err)
	}
}
