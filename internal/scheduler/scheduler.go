package scheduler

import (
	"context"
	"log"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/turfcast/track-conditions/internal/collector"
	"github.com/turfcast/track-conditions/internal/schedule"
)

// Scheduler periodically runs a collection pass over the upcoming races in
// the schedule file. It owns only the in-process trigger; cadence policy and
// schedule content come from outside.
type Scheduler struct {
	scheduler    *gocron.Scheduler
	collector    *collector.Collector
	loader       *schedule.Loader
	schedulePath string
	interval     time.Duration
	lookAhead    time.Duration
}

// New creates a new Scheduler.
func New(loader *schedule.Loader, schedulePath string, interval, lookAhead time.Duration, col *collector.Collector) *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	return &Scheduler{
		scheduler:    s,
		collector:    col,
		loader:       loader,
		schedulePath: schedulePath,
		interval:     interval,
		lookAhead:    lookAhead,
	}
}

// Start schedules the periodic collection job and starts the underlying
// scheduler. The first pass runs immediately.
func (s *Scheduler) Start() error {
	minutes := int(s.interval.Minutes())
	if minutes <= 0 {
		minutes = 120
	}

	_, err := s.scheduler.Every(minutes).Minutes().StartImmediately().Do(s.runPass)
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	return nil
}

func (s *Scheduler) runPass() {
	log.Println("scheduler: running collection pass")

	races, err := s.loader.Load(s.schedulePath)
	if err != nil {
		log.Printf("scheduler: cannot load schedule: %v", err)
		return
	}

	now := time.Now().UTC()
	upcoming := schedule.Upcoming(races, now, s.lookAhead)
	if len(upcoming) == 0 {
		log.Println("scheduler: no upcoming races to collect")
		return
	}

	summary := s.collector.RunPass(context.Background(), upcoming, now)
	if len(summary.Failures) > 0 {
		log.Printf("scheduler: pass %s had failures: %v", summary.RunID, summary.FailedIDs())
	}
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
