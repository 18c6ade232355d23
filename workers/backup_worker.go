// workers/backup_worker.go
package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/fanzyb/roblox-mooncrest/models"
	"github.com/fanzyb/roblox-mooncrest/utils"
	"github.com/go-co-op/gocron/v2"
)

// AccountSource lists every ledger record.
type AccountSource interface {
	All(ctx context.Context) ([]models.LinkedAccount, error)
}

// BackupStore persists an object and returns where it went.
type BackupStore interface {
	Put(ctx context.Context, key string, body []byte, contentType string) (string, error)
}

// LedgerBackup snapshots all accounts to object storage as JSON.
type LedgerBackup struct {
	accounts AccountSource
	store    BackupStore
	appName  string
	interval time.Duration
	now      func() time.Time
}

type ledgerSnapshot struct {
	App         string                 `json:"app"`
	GeneratedAt time.Time              `json:"generated_at"`
	Count       int                    `json:"count"`
	Accounts    []models.LinkedAccount `json:"accounts"`
}

func NewLedgerBackup(accounts AccountSource, store BackupStore, appName string, interval time.Duration) *LedgerBackup {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	return &LedgerBackup{accounts: accounts, store: store, appName: appName, interval: interval, now: time.Now}
}

func (w *LedgerBackup) Name() string { return "ledger backup" }

// RunOnce uploads one snapshot and returns its URL.
func (w *LedgerBackup) RunOnce(ctx context.Context) (string, error) {
	rows, err := w.accounts.All(ctx)
	if err != nil {
		return "", fmt.Errorf("load accounts: %w", err)
	}
	now := w.now().UTC()
	body, err := json.Marshal(ledgerSnapshot{App: w.appName, GeneratedAt: now, Count: len(rows), Accounts: rows})
	if err != nil {
		return "", fmt.Errorf("encode snapshot: %w", err)
	}
	url, err := w.store.Put(ctx, utils.BackupKey(w.appName, now), body, "application/json")
	if err != nil {
		return "", err
	}
	log.Printf("[BACKUP] 💾 %d accounts → %s", len(rows), url)
	return url, nil
}

func (w *LedgerBackup) Register(ctx context.Context, s gocron.Scheduler) error {
	_, err := s.NewJob(
		gocron.DurationJob(w.interval),
		gocron.NewTask(func() {
			if ctx.Err() != nil {
				return
			}
			if _, err := w.RunOnce(ctx); err != nil {
				log.Printf("[BACKUP] ❌ backup failed: %v", err)
			}
		}),
		gocron.WithName(w.Name()),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	return err
}
