package checkpoint

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/singleflight"

	"github.com/transtools/doctrans/pkg/log"
)

// Retention periodically deletes checkpoint data of terminal jobs older
// than the TTL. Sweeps are singleflighted, so an overlapping cron tick or
// a manual sweep never runs twice concurrently.
type Retention struct {
	store *Store
	ttl   time.Duration
	cron  *cron.Cron
	group singleflight.Group
}

func NewRetention(store *Store, ttl time.Duration) *Retention {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &Retention{
		store: store,
		ttl:   ttl,
	}
}

// Start schedules the sweep with a cron expression ("0 3 * * *" for daily
// at 03:00).
func (r *Retention) Start(spec string) error {
	if r.cron != nil {
		return fmt.Errorf("retention already started")
	}
	c := cron.New()
	if _, err := c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if _, err := r.Sweep(ctx); err != nil {
			log.Error("Checkpoint retention sweep failed: %v", err)
		}
	}); err != nil {
		return fmt.Errorf("invalid retention schedule %q: %w", spec, err)
	}
	c.Start()
	r.cron = c
	return nil
}

func (r *Retention) Stop() {
	if r.cron != nil {
		r.cron.Stop()
	}
}

// Sweep deletes expired job data now, returning how many jobs were removed.
func (r *Retention) Sweep(ctx context.Context) (int64, error) {
	removed, err, _ := r.group.Do("sweep", func() (interface{}, error) {
		cutoff := time.Now().Add(-r.ttl)
		n, err := r.store.DeleteExpiredJobData(ctx, cutoff)
		if err != nil {
			return int64(0), err
		}
		if n > 0 {
			log.Info("Checkpoint retention removed %d archived jobs", n)
		}
		return n, nil
	})
	if err != nil {
		return 0, err
	}
	return removed.(int64), nil
}
