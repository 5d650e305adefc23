/*
scheduler.go - Periodic public holiday leave generation

PURPOSE:
  Re-runs CreateForAbsenceType for the flagged absence type on an interval,
  so contracts and holidays added by other means still get their leave.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Runs once immediately on start
  - A pass with no flagged absence type or no future holidays is a no-op
  - Reruns are safe: existing requests are skipped and reconciled days
    are left alone

CONFIGURATION:
  - Interval: How often to run (SCHEDULER_INTERVAL, default 24h)
  - Enabled:  Whether the scheduler starts at all (SCHEDULER_ENABLED, default false)

USAGE:
  scheduler := NewScheduler(service, store, logger)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - service.go: CreateForAbsenceType
  - api/handlers.go: POST /api/admin/public-holiday-leave (manual run)
*/
package publicholiday

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/warp/leave-engine/leave"
)

// Scheduler runs public holiday leave generation periodically.
type Scheduler struct {
	Service  *Service
	Store    leave.AbsenceTypeStore
	Interval time.Duration
	Enabled  bool

	logger logrus.FieldLogger
	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewScheduler creates a scheduler, enabled, with a 24h interval.
func NewScheduler(service *Service, store leave.AbsenceTypeStore, logger logrus.FieldLogger) *Scheduler {
	if logger == nil {
		logger = discardLogger()
	}
	return &Scheduler{
		Service:  service,
		Store:    store,
		Interval: 24 * time.Hour,
		Enabled:  true,
		logger:   logger.WithField("component", "scheduler"),
	}
}

// Start begins the scheduler.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.Enabled {
		s.logger.Info("disabled, not starting")
		return
	}
	if s.ticker != nil {
		return
	}

	s.ticker = time.NewTicker(s.Interval)
	s.stop = make(chan struct{})
	s.wg.Add(1)

	go s.run(s.ticker, s.stop)

	s.logger.WithField("interval", s.Interval.String()).Info("started")
}

// Stop stops the scheduler and waits for a running pass to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ticker == nil {
		return
	}
	s.ticker.Stop()
	close(s.stop)
	s.wg.Wait()
	s.ticker = nil
	s.logger.Info("stopped")
}

func (s *Scheduler) run(ticker *time.Ticker, stop <-chan struct{}) {
	defer s.wg.Done()

	s.RunNow(context.Background())

	for {
		select {
		case <-ticker.C:
			s.RunNow(context.Background())
		case <-stop:
			return
		}
	}
}

// RunNow runs one pass synchronously.
func (s *Scheduler) RunNow(ctx context.Context) (Result, error) {
	absenceType, err := s.Store.GetPublicHolidayAbsenceType(ctx)
	if errors.Is(err, leave.ErrNoPublicHolidayAbsenceType) {
		s.logger.Debug("no absence type takes public holidays as leave")
		return Result{NothingToDo: true}, nil
	}
	if err != nil {
		s.logger.WithError(err).Error("load public holiday absence type")
		return Result{}, err
	}

	res, err := s.Service.CreateForAbsenceType(ctx, absenceType)
	if err != nil {
		s.logger.WithError(err).WithField("absence_type_id", absenceType.ID).Error("public holiday leave pass failed")
		return res, err
	}
	if len(res.Created) > 0 || res.Skipped > 0 {
		s.logger.WithFields(logrus.Fields{
			"created": len(res.Created),
			"skipped": res.Skipped,
		}).Info("completed")
	}
	return res, nil
}
