package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/fanzyb/roblox-mooncrest/models"
	"github.com/fanzyb/roblox-mooncrest/testutil"
)

func strPtr(s string) *string { return &s }

func TestEnsureCreatesOnceAndRefreshesUsername(t *testing.T) {
	repo := NewAccountRepository(testutil.OpenTestDB(t))
	ctx := context.Background()

	acc, created, err := repo.Ensure(ctx, "100", "Alice")
	if err != nil {
		t.Fatalf("Ensure error: %v", err)
	}
	if !created || acc.ExternalUsername != "Alice" || acc.XP != 0 || acc.IsLinked() {
		t.Fatalf("got=%+v created=%v, want fresh Alice record", acc, created)
	}

	acc, created, err = repo.Ensure(ctx, "100", "AliceRenamed")
	if err != nil {
		t.Fatalf("Ensure error: %v", err)
	}
	if created {
		t.Fatal("second Ensure should not create")
	}
	if acc.ExternalUsername != "AliceRenamed" {
		t.Fatalf("username=%q, want AliceRenamed", acc.ExternalUsername)
	}

	n, _ := repo.Count(ctx)
	if n != 1 {
		t.Fatalf("count=%d, want 1", n)
	}
}

func TestFindAbsentIsNotAnError(t *testing.T) {
	repo := NewAccountRepository(testutil.OpenTestDB(t))
	ctx := context.Background()

	if _, found, err := repo.FindByExternalID(ctx, "404"); err != nil || found {
		t.Fatalf("found=%v err=%v, want not found without error", found, err)
	}
	if _, found, err := repo.FindByPlatformID(ctx, "D404"); err != nil || found {
		t.Fatalf("found=%v err=%v, want not found without error", found, err)
	}
}

func TestUpsertRejectsDuplicatePlatformID(t *testing.T) {
	repo := NewAccountRepository(testutil.OpenTestDB(t))
	ctx := context.Background()

	if err := repo.Upsert(ctx, &models.LinkedAccount{ExternalID: "100", ExternalUsername: "Alice", PlatformID: strPtr("D1")}); err != nil {
		t.Fatalf("Upsert error: %v", err)
	}
	err := repo.Upsert(ctx, &models.LinkedAccount{ExternalID: "200", ExternalUsername: "Bob", PlatformID: strPtr("D1")})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("err=%v, want ErrConflict", err)
	}

	// merging into the existing owner is fine
	if err := repo.Upsert(ctx, &models.LinkedAccount{ExternalID: "100", ExternalUsername: "Alice", PlatformID: strPtr("D1"), XP: 5}); err != nil {
		t.Fatalf("Upsert merge error: %v", err)
	}
	got, _, _ := repo.FindByPlatformID(ctx, "D1")
	if got.ExternalID != "100" || got.XP != 5 {
		t.Fatalf("got=%+v, want 100 with xp 5", got)
	}
}

func TestLinkPlatformIsConditional(t *testing.T) {
	repo := NewAccountRepository(testutil.OpenTestDB(t))
	ctx := context.Background()
	_, _, _ = repo.Ensure(ctx, "100", "Alice")
	_, _, _ = repo.Ensure(ctx, "200", "Bob")

	if err := repo.LinkPlatform(ctx, "100", "D1"); err != nil {
		t.Fatalf("LinkPlatform error: %v", err)
	}
	if err := repo.LinkPlatform(ctx, "100", "D1"); err != nil {
		t.Fatalf("relinking same pair should succeed, got %v", err)
	}
	if err := repo.LinkPlatform(ctx, "100", "D2"); !errors.Is(err, ErrConflict) {
		t.Fatalf("err=%v, want ErrConflict for account owned by D1", err)
	}
	if err := repo.LinkPlatform(ctx, "200", "D1"); !errors.Is(err, ErrConflict) {
		t.Fatalf("err=%v, want ErrConflict for D1 owned by 100", err)
	}
}

func TestReassignPlatformMovesOwnership(t *testing.T) {
	repo := NewAccountRepository(testutil.OpenTestDB(t))
	ctx := context.Background()
	_, _, _ = repo.Ensure(ctx, "100", "Alice")
	_, _, _ = repo.Ensure(ctx, "200", "Bob")
	_ = repo.LinkPlatform(ctx, "100", "D1")

	prev, err := repo.ReassignPlatform(ctx, "200", "D1")
	if err != nil {
		t.Fatalf("ReassignPlatform error: %v", err)
	}
	if prev == nil || prev.ExternalID != "100" {
		t.Fatalf("previous=%+v, want 100", prev)
	}
	old, _, _ := repo.FindByExternalID(ctx, "100")
	if old.IsLinked() {
		t.Fatalf("100 still linked to %q", old.LinkedTo())
	}
	owner, _, _ := repo.FindByPlatformID(ctx, "D1")
	if owner.ExternalID != "200" {
		t.Fatalf("owner=%s, want 200", owner.ExternalID)
	}
}

func TestUnlinkKeepsLedger(t *testing.T) {
	repo := NewAccountRepository(testutil.OpenTestDB(t))
	ctx := context.Background()
	_ = repo.Upsert(ctx, &models.LinkedAccount{ExternalID: "100", ExternalUsername: "Alice", PlatformID: strPtr("D1"), XP: 42, Achievements: []int{1, 1, 2}})

	changed, err := repo.UnlinkPlatform(ctx, "100")
	if err != nil || !changed {
		t.Fatalf("changed=%v err=%v", changed, err)
	}
	changed, _ = repo.UnlinkPlatform(ctx, "100")
	if changed {
		t.Fatal("second unlink should be a no-op")
	}
	got, _, _ := repo.FindByExternalID(ctx, "100")
	if got.XP != 42 || len(got.Achievements) != 2 {
		t.Fatalf("got=%+v, want xp 42 and deduplicated achievements", got)
	}
}

func TestPageOrdersByMetricThenExternalID(t *testing.T) {
	repo := NewAccountRepository(testutil.OpenTestDB(t))
	ctx := context.Background()
	for _, a := range []models.LinkedAccount{
		{ExternalID: "3", ExternalUsername: "c", XP: 10, ActivityCount: 1},
		{ExternalID: "1", ExternalUsername: "a", XP: 10, ActivityCount: 5},
		{ExternalID: "2", ExternalUsername: "b", XP: 20, ActivityCount: 0},
	} {
		a := a
		if err := repo.Upsert(ctx, &a); err != nil {
			t.Fatalf("Upsert: %v", err)
		}
	}

	rows, err := repo.Page(ctx, SortByXP, 0, 10)
	if err != nil {
		t.Fatalf("Page error: %v", err)
	}
	want := []string{"2", "1", "3"}
	for i, id := range want {
		if rows[i].ExternalID != id {
			t.Fatalf("row %d = %s, want %s", i, rows[i].ExternalID, id)
		}
	}

	pos, _ := repo.Position(ctx, SortByXP, &rows[2])
	if pos != 3 {
		t.Fatalf("position=%d, want 3", pos)
	}

	rows, _ = repo.Page(ctx, SortByActivity, 0, 1)
	if len(rows) != 1 || rows[0].ExternalID != "1" {
		t.Fatalf("rows=%+v, want only 1", rows)
	}

	if _, err := repo.Page(ctx, SortColumn("drop table"), 0, 1); err == nil {
		t.Fatal("unknown sort column should fail")
	}
}

func TestTotals(t *testing.T) {
	repo := NewAccountRepository(testutil.OpenTestDB(t))
	ctx := context.Background()
	_ = repo.Upsert(ctx, &models.LinkedAccount{ExternalID: "1", ExternalUsername: "a", XP: 10, ActivityCount: 2, PlatformID: strPtr("D1")})
	_ = repo.Upsert(ctx, &models.LinkedAccount{ExternalID: "2", ExternalUsername: "b", XP: 5, ActivityCount: 1})

	tot, err := repo.Totals(ctx)
	if err != nil {
		t.Fatalf("Totals error: %v", err)
	}
	if tot.Accounts != 2 || tot.Linked != 1 || tot.XP != 15 || tot.ActivityCount != 3 {
		t.Fatalf("totals=%+v", tot)
	}
}
