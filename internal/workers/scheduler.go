package workers

import (
	"context"
	"time"

	"modmail-relay/internal/repository"
	"modmail-relay/internal/services"
	"modmail-relay/pkg/logger"
)

// Scheduler polls the thread table for due deferred transitions and executes
// them through the thread service. Cancellation semantics live in the
// service; this loop only fires what is already due.
type Scheduler struct {
	threads   repository.ThreadRepository
	service   *services.ThreadService
	log       *logger.Logger
	clock     func() time.Time
	batchSize int
	interval  time.Duration
}

func NewScheduler(threads repository.ThreadRepository, service *services.ThreadService, log *logger.Logger, batchSize int, interval time.Duration) *Scheduler {
	if log == nil {
		log = logger.NewNop()
	}
	return &Scheduler{
		threads:   threads,
		service:   service,
		log:       log,
		clock:     time.Now,
		batchSize: batchSize,
		interval:  interval,
	}
}

func DefaultScheduler(threads repository.ThreadRepository, service *services.ThreadService, log *logger.Logger, interval time.Duration) *Scheduler {
	return NewScheduler(threads, service, log, 25, interval)
}

func (s *Scheduler) Start(ctx context.Context) {
	go s.Run(ctx)
}

func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.processDue(ctx)
		}
	}
}

func (s *Scheduler) processDue(ctx context.Context) {
	now := s.clock()

	dueCloses, err := s.threads.GetDueScheduledCloses(ctx, now, s.batchSize)
	if err != nil {
		s.log.Errorf("Failed to fetch due scheduled closes: %v", err)
	}
	for i := range dueCloses {
		t := dueCloses[i]
		silent := t.ScheduledCloseSilent.Valid && t.ScheduledCloseSilent.Bool

		if err := s.service.Close(ctx, &t, false, silent); err != nil {
			s.log.Errorf("Scheduled close of thread %s failed: %v", t.ID, err)
			continue
		}
		// Close leaves scheduling fields alone; clear our own intent so
		// the row never comes up as due again.
		if err := s.service.CancelScheduledClose(ctx, &t); err != nil {
			s.log.Errorf("Failed to clear executed scheduled close on thread %s: %v", t.ID, err)
		}
	}

	dueSuspends, err := s.threads.GetDueScheduledSuspends(ctx, now, s.batchSize)
	if err != nil {
		s.log.Errorf("Failed to fetch due scheduled suspends: %v", err)
	}
	for i := range dueSuspends {
		t := dueSuspends[i]
		if err := s.service.Suspend(ctx, &t); err != nil {
			s.log.Errorf("Scheduled suspend of thread %s failed: %v", t.ID, err)
		}
	}
}
