package services

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"
)

// EffectResult is the outcome of a best-effort side effect (role sync, notification).
// Callers log it and move on; it never changes the primary operation's result.
type EffectResult struct {
	Name string
	Err  error
}

func (r EffectResult) OK() bool { return r.Err == nil }

// Log writes the result and returns it so call sites can chain `_ = runEffect(...).Log()`.
func (r EffectResult) Log() EffectResult {
	if r.Err != nil {
		log.Printf("[EFFECT] ⚠️ %s failed: %v", r.Name, r.Err)
	}
	return r
}

func runEffect(name string, fn func() error) EffectResult {
	return EffectResult{Name: name, Err: fn()}.Log()
}

// Spawner runs fire-and-forget work. Production uses GoSpawner; tests run inline.
type Spawner func(func())

func GoSpawner(fn func()) { go fn() }

func InlineSpawner(fn func()) { fn() }

const notifyTimeout = 10 * time.Second

// notify sends ev on a detached context so the notification outlives the interaction.
func notify(spawn Spawner, n Notifier, ev Event) {
	if n == nil {
		return
	}
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}
	spawn(func() {
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()
		_ = runEffect("notify "+string(ev.Kind), func() error { return n.Notify(ctx, ev) })
	})
}
