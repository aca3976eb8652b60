package digest

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// StartScheduler runs r on the configured 5-field cron schedule, e.g.
// "0 8 * * 1" for Mondays at 08:00. It returns false when the digest is
// disabled or the schedule is invalid.
func StartScheduler(ctx context.Context, r *Runner) bool {
	schedule := strings.TrimSpace(r.Config.DigestSchedule)
	if schedule == "" {
		log.Println("Digest disabled (digest_schedule not set)")
		return false
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	sched, err := parser.Parse(schedule)
	if err != nil {
		log.Printf("Invalid digest_schedule '%s': %v, digest disabled", schedule, err)
		return false
	}
	log.Printf("Digest scheduled (cron: %s) use_cases=%v unit=%s", schedule, r.Config.DigestUseCaseIDs, r.Config.DigestUnit)

	go func() {
		for {
			now := time.Now().In(location(r))
			next := sched.Next(now)
			wait := next.Sub(now)
			log.Printf("Next digest at %s (in %s)", next.Format("Mon Jan 2 15:04"), wait.Round(time.Minute))

			select {
			case <-ctx.Done():
				log.Println("Digest scheduler stopped")
				return
			case <-time.After(wait):
			}

			if _, err := r.Run(ctx, next); err != nil {
				log.Printf("Digest error: %v", err)
			}
		}
	}()
	return true
}

func location(r *Runner) *time.Location {
	if r.Config.Location != nil {
		return r.Config.Location
	}
	return time.Local
}
