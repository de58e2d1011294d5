package service

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// SchedulerService owns the cron runner behind the daily agenda digest.
// Task recurrence is never scheduled; successors are computed at
// resolve time, so this is the only clock-driven piece of the system.
type SchedulerService struct {
	cron *cron.Cron
}

func NewSchedulerService(loc *time.Location) *SchedulerService {
	return &SchedulerService{cron: cron.New(cron.WithLocation(loc))}
}

// ScheduleDaily runs job once a day at the wall-clock time given as
// "HH:MM" in the scheduler's location.
func (s *SchedulerService) ScheduleDaily(at string, job func()) (cron.EntryID, error) {
	spec, err := dailyCronSpec(at)
	if err != nil {
		return 0, err
	}
	return s.cron.AddFunc(spec, job)
}

func (s *SchedulerService) Start() {
	s.cron.Start()
}

// Stop halts scheduling and waits for a running job to finish.
func (s *SchedulerService) Stop() {
	<-s.cron.Stop().Done()
}

func dailyCronSpec(at string) (string, error) {
	parsed, err := time.Parse("15:04", at)
	if err != nil {
		return "", fmt.Errorf("digest time %q is not HH:MM: %w", at, err)
	}
	return fmt.Sprintf("%d %d * * *", parsed.Minute(), parsed.Hour()), nil
}
