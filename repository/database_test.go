package repository

import (
	"context"
	"testing"
)

func TestOpenSQLite(t *testing.T) {
	db, err := Open("sqlite", "file:open_sqlite?mode=memory&cache=shared")
	if err != nil {
		t.Fatal(err)
	}
	if err := Migrate(db); err != nil {
		t.Fatal(err)
	}
	repo := NewAccountRepository(db)
	if err := repo.Ping(context.Background()); err != nil {
		t.Fatal(err)
	}
	if _, created, err := repo.Ensure(context.Background(), "100", "Alice"); err != nil || !created {
		t.Fatalf("ensure created=%v err=%v", created, err)
	}
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	if _, err := Open("oracle", "x"); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}
