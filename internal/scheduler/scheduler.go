package scheduler

import (
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// PurgeFunc removes stale data and reports how many rows went away.
type PurgeFunc func(olderThan time.Duration) (int64, error)

// Scheduler runs the retention purge on a cron spec.
type Scheduler struct {
	cron      *cron.Cron
	spec      string
	retention time.Duration
	purge     PurgeFunc
}

func New(spec string, retention time.Duration, purge PurgeFunc) *Scheduler {
	return &Scheduler{
		cron:      cron.New(cron.WithLocation(time.UTC)),
		spec:      spec,
		retention: retention,
		purge:     purge,
	}
}

func (s *Scheduler) Start() error {
	if s.purge == nil {
		log.Println("no purge function set, retention scheduler disabled")
		return nil
	}
	_, err := s.cron.AddFunc(s.spec, func() {
		removed, err := s.purge(s.retention)
		if err != nil {
			log.Printf("retention purge failed: %v", err)
			return
		}
		if removed > 0 {
			log.Printf("retention purge removed %d stale sessions", removed)
		}
	})
	if err != nil {
		return err
	}
	s.cron.Start()
	log.Printf("retention scheduler started (%s, keep %s)", s.spec, s.retention)
	return nil
}

func (s *Scheduler) Stop() {
	if s.cron != nil {
		ctx := s.cron.Stop()
		<-ctx.Done()
	}
	log.Println("retention scheduler stopped")
}

func (s *Scheduler) IsRunning() bool {
	return s.cron != nil && len(s.cron.Entries()) > 0
}
