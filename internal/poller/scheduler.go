// Package poller крутит циклы опроса провайдера: по одному независимому циклу на класс.
package poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/Spok95/cowin-alert-bot/internal/alerts"
	"github.com/Spok95/cowin-alert-bot/internal/cadence"
	"github.com/Spok95/cowin-alert-bot/internal/clock"
	"github.com/Spok95/cowin-alert-bot/internal/cowin"
	"github.com/Spok95/cowin-alert-bot/internal/domain/availability"
	"github.com/Spok95/cowin-alert-bot/internal/domain/subscribers"
	"github.com/Spok95/cowin-alert-bot/internal/infra/metrics"
)

type Provider interface {
	Fetch(ctx context.Context, pincode string) cowin.Result
}

type Store interface {
	DistinctPincodes(ctx context.Context, bands []availability.AgeBand) ([]string, error)
	ListEligible(ctx context.Context, pincode string, bands []availability.AgeBand) ([]subscribers.Subscriber, error)
}

type Dispatcher interface {
	Dispatch(ctx context.Context, s *subscribers.Subscriber, snap availability.Snapshot) (alerts.Outcome, error)
}

type Config struct {
	Classes []cadence.Class
	Pacing  time.Duration // пауза между запросами к провайдеру внутри цикла
}

type Scheduler struct {
	provider   Provider
	store      Store
	dispatcher Dispatcher
	policy     *alerts.Policy
	classes    []cadence.Class
	pacing     time.Duration
	clock      clock.Clock
	metrics    *metrics.Poller
	log        *slog.Logger

	sleep func(ctx context.Context, d time.Duration) bool
}

func New(p Provider, st Store, d Dispatcher, policy *alerts.Policy, cfg Config,
	clk clock.Clock, m *metrics.Poller, log *slog.Logger) (*Scheduler, error) {
	if err := cadence.ValidateSet(cfg.Classes); err != nil {
		return nil, err
	}
	if p == nil || st == nil || d == nil || policy == nil {
		return nil, errors.New("poller: provider, store, dispatcher and policy are required")
	}
	if clk == nil {
		clk = clock.SystemClock{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Scheduler{
		provider:   p,
		store:      st,
		dispatcher: d,
		policy:     policy,
		classes:    cfg.Classes,
		pacing:     cfg.Pacing,
		clock:      clk,
		metrics:    m,
		log:        log.With("component", "poller"),
		sleep:      sleep,
	}, nil
}

// Run запускает по циклу на класс и ждёт их завершения (до отмены ctx).
func (s *Scheduler) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, c := range s.classes {
		g.Go(func() error {
			s.loop(ctx, c)
			return nil
		})
	}
	return g.Wait()
}

// loop Idle -> Running -> Sleeping -> Running ... пока не отменят ctx.
func (s *Scheduler) loop(ctx context.Context, c cadence.Class) {
	log := s.log.With("cadence", c.Name)
	log.Info("cadence loop started", "bands", c.Bands, "poll_interval", c.PollInterval, "min_gap", c.MinGap)
	limiter := newPacer(s.pacing)

	for {
		if ctx.Err() != nil {
			break
		}
		rep := s.runCycle(ctx, c, limiter)
		if ctx.Err() != nil {
			break
		}
		wait := rep.Backoff(c)
		log.Debug("cadence sleeping", "result", rep.Result, "for", wait)
		if !s.sleep(ctx, wait) {
			break
		}
	}
	log.Info("cadence loop stopped")
}

// RunCycle один проход класса c. Удобен для разовых прогонов и тестов.
func (s *Scheduler) RunCycle(ctx context.Context, c cadence.Class) CycleReport {
	return s.runCycle(ctx, c, newPacer(s.pacing))
}

func (s *Scheduler) runCycle(ctx context.Context, c cadence.Class, limiter *rate.Limiter) (rep CycleReport) {
	log := s.log.With("cadence", c.Name)
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			rep.Result = ResultFailed
			rep.Err = fmt.Errorf("panic: %v", r)
		}
		s.metrics.ObserveCycle(c.Name, rep.Result.String(), time.Since(start))

		switch rep.Result {
		case ResultFailed:
			log.Error("poll cycle failed", "err", rep.Err, "requests", rep.Requests)
		case ResultRateLimited:
			log.Warn("poll cycle aborted: rate limited", "pincode", rep.RateLimitedAt, "requests", rep.Requests)
		case ResultCompleted:
			lvl := slog.LevelDebug
			if rep.Dispatched > 0 {
				lvl = slog.LevelInfo
			}
			log.Log(ctx, lvl, "poll cycle completed",
				"pincodes", rep.Pincodes, "requests", rep.Requests, "skipped", rep.Skipped,
				"dispatched", rep.Dispatched, "took", time.Since(start))
		}
	}()

	pincodes, err := s.store.DistinctPincodes(ctx, c.Bands)
	if err != nil {
		return rep.fail(ctx, fmt.Errorf("distinct pincodes: %w", err))
	}
	rep.Pincodes = len(pincodes)

	for _, pin := range pincodes {
		if err := limiter.Wait(ctx); err != nil {
			return rep.fail(ctx, fmt.Errorf("pacing: %w", err))
		}

		res := s.provider.Fetch(ctx, pin)
		rep.Requests++
		s.metrics.ObserveRequest(c.Name, res.Status.String())

		switch res.Status {
		case cowin.StatusRateLimited:
			rep.Result = ResultRateLimited
			rep.RateLimitedAt = pin
			rep.Err = res.Err
			return rep
		case cowin.StatusInvalidInput, cowin.StatusUnavailable:
			log.Warn("pincode skipped", "pincode", pin, "status", res.Status, "err", res.Err)
			rep.Skipped++
			continue
		}

		available := res.Snapshot.Available()
		if available.Empty() {
			continue
		}
		if err := s.notify(ctx, c, available, &rep); err != nil {
			return rep.fail(ctx, err)
		}
	}

	rep.Result = ResultCompleted
	return rep
}

func (s *Scheduler) notify(ctx context.Context, c cadence.Class, snap availability.Snapshot, rep *CycleReport) error {
	subs, err := s.store.ListEligible(ctx, snap.Pincode, c.Bands)
	if err != nil {
		return fmt.Errorf("list subscribers for %s: %w", snap.Pincode, err)
	}

	now := s.clock.Now()
	for i := range subs {
		sub := &subs[i]
		allowed, band := s.policy.ShouldNotify(*sub, c, now)
		if !allowed {
			continue
		}
		reduced := availability.Filter(snap, band)
		if reduced.Empty() {
			continue
		}

		outcome, err := s.dispatcher.Dispatch(ctx, sub, reduced)
		if err != nil {
			s.log.Error("dispatch failed", "cadence", c.Name, "subscriber_id", sub.ID, "err", err)
			continue
		}
		s.metrics.ObserveAlert(c.Name, outcome.String())
		if outcome == alerts.OutcomeSent {
			rep.Dispatched++
		}
	}
	return nil
}

func newPacer(pacing time.Duration) *rate.Limiter {
	if pacing <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(pacing), 1)
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
