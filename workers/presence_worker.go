// workers/presence_worker.go
package workers

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/fanzyb/roblox-mooncrest/services"
	"github.com/go-co-op/gocron/v2"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// GroupSource reads the gating group's metadata.
type GroupSource interface {
	GroupInfo(ctx context.Context, groupID int64) (*services.GroupInfo, error)
}

// PresenceSink shows a status line on the bot.
type PresenceSink interface {
	SetPresence(ctx context.Context, text string) error
}

// PresenceRefresher periodically shows the group's member count as the bot's status.
type PresenceRefresher struct {
	groups   GroupSource
	sink     PresenceSink
	groupID  int64
	interval time.Duration
	printer  *message.Printer
}

func NewPresenceRefresher(groups GroupSource, sink PresenceSink, groupID int64, interval time.Duration) *PresenceRefresher {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &PresenceRefresher{
		groups:   groups,
		sink:     sink,
		groupID:  groupID,
		interval: interval,
		printer:  message.NewPrinter(language.English),
	}
}

func (w *PresenceRefresher) Name() string { return "presence refresh" }

// PresenceText renders "Counting 1,234 Members".
func (w *PresenceRefresher) PresenceText(members int64) string {
	return w.printer.Sprintf("Counting %d Members", members)
}

// RefreshOnce pushes the current member count. A missing group leaves the status unchanged.
func (w *PresenceRefresher) RefreshOnce(ctx context.Context) error {
	info, err := w.groups.GroupInfo(ctx, w.groupID)
	if err != nil {
		return fmt.Errorf("group %d info: %w", w.groupID, err)
	}
	if info == nil {
		return fmt.Errorf("group %d: %w", w.groupID, services.ErrNotFound)
	}
	text := w.PresenceText(info.MemberCount)
	if err := w.sink.SetPresence(ctx, text); err != nil {
		return fmt.Errorf("set presence: %w", err)
	}
	log.Printf("[PRESENCE] 👥 %s", text)
	return nil
}

func (w *PresenceRefresher) Register(ctx context.Context, s gocron.Scheduler) error {
	_, err := s.NewJob(
		gocron.DurationJob(w.interval),
		gocron.NewTask(func() {
			if ctx.Err() != nil {
				return
			}
			if err := w.RefreshOnce(ctx); err != nil {
				log.Printf("[PRESENCE] ⚠️ refresh failed: %v", err)
			}
		}),
		gocron.WithName(w.Name()),
		gocron.WithStartAt(gocron.WithStartImmediately()),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	return err
}
