// workers/scheduler.go
package workers

import (
	"context"
	"fmt"
	"log"

	"github.com/go-co-op/gocron/v2"
)

// Job is a recurring task owned by the process lifecycle.
type Job interface {
	Name() string
	Register(ctx context.Context, s gocron.Scheduler) error
}

// StartScheduler registers every job and starts the scheduler.
// Callers stop it with Shutdown when the process exits.
func StartScheduler(ctx context.Context, jobs ...Job) (gocron.Scheduler, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}
	for _, j := range jobs {
		if err := j.Register(ctx, sched); err != nil {
			_ = sched.Shutdown()
			return nil, fmt.Errorf("register %s: %w", j.Name(), err)
		}
		log.Printf("[Scheduler] 🔁 %s registered", j.Name())
	}
	sched.Start()
	return sched, nil
}
