package schedule

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Spec describes a recurring wall-clock instant in a given time zone.
// DaysOfWeek uses 0 (Sunday) through 6 (Saturday); an unset or invalid
// list means every day.
type Spec struct {
	TimeZone   string `yaml:"time_zone"`
	DaysOfWeek []int  `yaml:"days_of_week"`
	Hour       int    `yaml:"hour"`
	Minute     int    `yaml:"minute"`
	Second     int    `yaml:"second"`
}

// Validate checks the time zone and field ranges. Day-of-week entries
// are not validated here: out-of-range lists fall back to all days.
func (s Spec) Validate() error {
	if _, err := time.LoadLocation(s.TimeZone); err != nil {
		return fmt.Errorf("time zone %q: %w", s.TimeZone, err)
	}
	if s.Hour < 0 || s.Hour > 23 {
		return fmt.Errorf("hour %d out of range", s.Hour)
	}
	if s.Minute < 0 || s.Minute > 59 {
		return fmt.Errorf("minute %d out of range", s.Minute)
	}
	if s.Second < 0 || s.Second > 59 {
		return fmt.Errorf("second %d out of range", s.Second)
	}
	return nil
}

func (s Spec) days() map[time.Weekday]struct{} {
	days := make(map[time.Weekday]struct{}, len(s.DaysOfWeek))
	for _, day := range s.DaysOfWeek {
		if day < 0 || day > 6 {
			return allDays()
		}
		days[time.Weekday(day)] = struct{}{}
	}
	if len(days) == 0 {
		return allDays()
	}
	return days
}

func allDays() map[time.Weekday]struct{} {
	days := make(map[time.Weekday]struct{}, 7)
	for d := time.Sunday; d <= time.Saturday; d++ {
		days[d] = struct{}{}
	}
	return days
}

// Next returns the first instant strictly after the given time that
// matches the spec in its time zone.
func (s Spec) Next(after time.Time) time.Time {
	loc, err := time.LoadLocation(s.TimeZone)
	if err != nil {
		loc = time.UTC
	}
	days := s.days()

	local := after.In(loc)
	candidate := time.Date(local.Year(), local.Month(), local.Day(), s.Hour, s.Minute, s.Second, 0, loc)
	for i := 0; i < 8; i++ {
		if candidate.After(after) {
			if _, ok := days[candidate.Weekday()]; ok {
				return candidate
			}
		}
		candidate = candidate.AddDate(0, 0, 1)
	}
	return candidate
}

// Scheduler fires callbacks at each matching wall-clock instant of
// their specs. Callbacks receive no arguments and own their own
// failure handling.
type Scheduler struct {
	logger *zap.Logger
	stop   chan struct{}
	once   sync.Once
	wg     sync.WaitGroup
}

func New(logger *zap.Logger) *Scheduler {
	return &Scheduler{logger: logger, stop: make(chan struct{})}
}

// Schedule registers callback to run at every instant matching spec.
// It rejects invalid specs instead of silently never firing.
func (s *Scheduler) Schedule(name string, spec Spec, callback func()) error {
	if err := spec.Validate(); err != nil {
		return fmt.Errorf("schedule %s: %w", name, err)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			next := spec.Next(time.Now())
			timer := time.NewTimer(time.Until(next))
			select {
			case <-s.stop:
				timer.Stop()
				return
			case <-timer.C:
				s.logger.Debug("schedule fired", zap.String("name", name), zap.Time("at", next))
				callback()
			}
		}
	}()
	return nil
}

// Stop halts all scheduled loops and waits for them to exit. A
// callback already running is not interrupted.
func (s *Scheduler) Stop() {
	s.once.Do(func() { close(s.stop) })
	s.wg.Wait()
}
