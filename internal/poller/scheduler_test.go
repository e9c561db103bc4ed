package poller

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Spok95/cowin-alert-bot/internal/alerts"
	"github.com/Spok95/cowin-alert-bot/internal/cadence"
	"github.com/Spok95/cowin-alert-bot/internal/cowin"
	"github.com/Spok95/cowin-alert-bot/internal/domain/availability"
	"github.com/Spok95/cowin-alert-bot/internal/domain/subscribers"
	"github.com/Spok95/cowin-alert-bot/internal/infra/metrics"
)

var (
	start      = time.Date(2021, 5, 10, 9, 0, 0, 0, time.UTC)
	fast, slow = cadence.Defaults()[0], cadence.Defaults()[1]
)

type testEnv struct {
	sched    *Scheduler
	provider *fakeProvider
	store    *memStore
	channel  *fakeChannel
	clock    *testClock
	metrics  *metrics.Poller
}

func newTestEnv(t *testing.T, subs ...subscribers.Subscriber) *testEnv {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	e := &testEnv{
		provider: &fakeProvider{results: map[string]cowin.Result{}},
		store:    newMemStore(subs...),
		channel:  &fakeChannel{outcome: alerts.OutcomeSent},
		clock:    &testClock{now: start},
		metrics:  metrics.NewPoller(prometheus.NewRegistry()),
	}
	classes := cadence.Defaults()
	d := alerts.NewDispatcher(e.channel, e.store, e.clock, 0, log)
	sched, err := New(e.provider, e.store, d, alerts.NewPolicy(classes, true),
		Config{Classes: classes}, e.clock, e.metrics, log)
	require.NoError(t, err)
	e.sched = sched
	return e
}

func sub(id int64, pincode string, band availability.AgeBand, lastAgo time.Duration) subscribers.Subscriber {
	s := subscribers.Subscriber{ID: id, ChatID: 1000 + id, Pincode: pincode, AgeBand: band, AlertsEnabled: true}
	if lastAgo > 0 {
		s.LastAlertSentAt = start.Add(-lastAgo)
	}
	return s
}

func snapshot(pincode string, sessions ...availability.Session) cowin.Result {
	return cowin.Result{Status: cowin.StatusOK, Snapshot: availability.Snapshot{
		Pincode: pincode,
		Centers: []availability.Center{{ID: 1, Name: "PHC", Pincode: pincode, Sessions: sessions}},
	}}
}

func session(date string, minAge, capacity int) availability.Session {
	return availability.Session{Date: date, Capacity: capacity, MinAgeLimit: minAge, Vaccine: "COVISHIELD"}
}

func TestCycleDispatchesMatchingSubscriber(t *testing.T) {
	e := newTestEnv(t, sub(1, "560001", availability.Band18Plus, 40*time.Minute))
	e.provider.results["560001"] = snapshot("560001", session("10-05-2021", 18, 5))

	rep := e.sched.RunCycle(context.Background(), fast)

	assert.Equal(t, ResultCompleted, rep.Result)
	assert.Equal(t, 1, rep.Dispatched)
	require.Len(t, e.channel.Sent(), 1)
	assert.Equal(t, int64(1001), e.channel.Sent()[0].chatID)

	got := e.store.Get(1)
	assert.Equal(t, 1, got.TotalAlertsSent)
	assert.Equal(t, start, got.LastAlertSentAt)
	assert.Equal(t, 1.0, testutil.ToFloat64(e.metrics.Alerts.WithLabelValues("fast", "sent")))
}

func TestCycleFilteredToEmptySkipsDispatch(t *testing.T) {
	s := sub(1, "560001", availability.Band18Plus, 40*time.Minute)
	e := newTestEnv(t, s)
	e.provider.results["560001"] = snapshot("560001", session("10-05-2021", 45, 5))

	rep := e.sched.RunCycle(context.Background(), fast)

	assert.Equal(t, ResultCompleted, rep.Result)
	assert.Empty(t, e.channel.Sent())
	assert.Equal(t, s, e.store.Get(1))
}

func TestCycleNoCapacitySkipsDispatch(t *testing.T) {
	e := newTestEnv(t, sub(1, "560001", availability.Band18Plus, 0))
	e.provider.results["560001"] = snapshot("560001", session("10-05-2021", 18, 0))

	e.sched.RunCycle(context.Background(), fast)
	assert.Empty(t, e.channel.Sent())
}

func TestRateLimitAbortsCycle(t *testing.T) {
	e := newTestEnv(t,
		sub(1, "560001", availability.Band18Plus, 0),
		sub(2, "560002", availability.Band18Plus, 0),
		sub(3, "560003", availability.Band18Plus, 0),
	)
	e.provider.results["560001"] = snapshot("560001", session("10-05-2021", 18, 5))
	e.provider.results["560002"] = cowin.Result{Status: cowin.StatusRateLimited, Err: cowin.ErrRateLimited}
	e.provider.results["560003"] = snapshot("560003", session("10-05-2021", 18, 5))

	rep := e.sched.RunCycle(context.Background(), fast)

	assert.Equal(t, ResultRateLimited, rep.Result)
	assert.Equal(t, "560002", rep.RateLimitedAt)
	assert.Equal(t, []string{"560001", "560002"}, e.provider.Calls())
	assert.Equal(t, 0, e.store.Get(3).TotalAlertsSent)
	assert.Equal(t, fast.BackoffOnRateLimit, rep.Backoff(fast))
	assert.Equal(t, 1.0, testutil.ToFloat64(e.metrics.Requests.WithLabelValues("fast", "rate_limited")))
}

func TestLoopSleepsRateLimitBackoff(t *testing.T) {
	s := sub(1, "560001", availability.Band18Plus, 40*time.Minute)
	e := newTestEnv(t, s)
	e.provider.results["560001"] = cowin.Result{Status: cowin.StatusRateLimited, Err: cowin.ErrRateLimited}

	var slept []time.Duration
	e.sched.sleep = func(_ context.Context, d time.Duration) bool {
		slept = append(slept, d)
		return len(slept) < 2
	}
	e.sched.loop(context.Background(), fast)

	assert.Equal(t, []time.Duration{fast.BackoffOnRateLimit, fast.BackoffOnRateLimit}, slept)
	assert.Len(t, e.provider.Calls(), 2)
	assert.Equal(t, s, e.store.Get(1))
	assert.Empty(t, e.channel.Sent())
}

func TestBadPincodeDoesNotStallCycle(t *testing.T) {
	e := newTestEnv(t,
		sub(1, "000000", availability.Band18Plus, 0),
		sub(2, "560001", availability.Band18Plus, 0),
		sub(3, "560002", availability.Band18Plus, 0),
	)
	e.provider.results["000000"] = cowin.Result{Status: cowin.StatusInvalidInput, Err: cowin.ErrInvalidInput}
	e.provider.results["560001"] = cowin.Result{Status: cowin.StatusUnavailable, Err: cowin.ErrUnavailable}
	e.provider.results["560002"] = snapshot("560002", session("10-05-2021", 18, 5))

	rep := e.sched.RunCycle(context.Background(), fast)

	assert.Equal(t, ResultCompleted, rep.Result)
	assert.Equal(t, 2, rep.Skipped)
	assert.Equal(t, 3, rep.Requests)
	assert.Equal(t, 1, e.store.Get(3).TotalAlertsSent)
	assert.Equal(t, fast.PollInterval, rep.Backoff(fast))
}

func TestStoreErrorBacksOff(t *testing.T) {
	e := newTestEnv(t)
	e.store.err = errors.New("connection refused")

	var slept []time.Duration
	e.sched.sleep = func(_ context.Context, d time.Duration) bool {
		slept = append(slept, d)
		return false
	}
	e.sched.loop(context.Background(), fast)

	assert.Equal(t, []time.Duration{fast.BackoffOnError}, slept)
	assert.Equal(t, 1.0, testutil.ToFloat64(e.metrics.Cycles.WithLabelValues("fast", "failed")))
}

func TestPanicIsRecovered(t *testing.T) {
	e := newTestEnv(t, sub(1, "560001", availability.Band18Plus, 0))
	e.provider.onFetch = func(string) { panic("boom") }

	rep := e.sched.RunCycle(context.Background(), fast)
	assert.Equal(t, ResultFailed, rep.Result)
	assert.ErrorContains(t, rep.Err, "boom")
	assert.Equal(t, fast.BackoffOnError, rep.Backoff(fast))
}

func TestRecipientGoneStopsFurtherAlerts(t *testing.T) {
	e := newTestEnv(t, sub(1, "560001", availability.Band18Plus, 0))
	e.provider.results["560001"] = snapshot("560001", session("10-05-2021", 18, 5))
	e.channel.outcome = alerts.OutcomeRecipientGone

	e.sched.RunCycle(context.Background(), fast)
	got := e.store.Get(1)
	assert.False(t, got.AlertsEnabled)
	assert.True(t, got.LastAlertSentAt.IsZero())
	require.Len(t, e.channel.Sent(), 1)

	e.clock.Advance(time.Hour)
	rep := e.sched.RunCycle(context.Background(), fast)
	assert.Len(t, e.channel.Sent(), 1)
	assert.Equal(t, 0, rep.Pincodes)
}

func TestDisabledSubscriberNeverDispatched(t *testing.T) {
	s := sub(1, "560001", availability.BandAny, 0)
	s.AlertsEnabled = false
	e := newTestEnv(t, s)
	e.provider.results["560001"] = snapshot("560001", session("10-05-2021", 18, 5))

	e.sched.RunCycle(context.Background(), fast)
	e.sched.RunCycle(context.Background(), slow)
	assert.Empty(t, e.provider.Calls())
	assert.Empty(t, e.channel.Sent())
}

func TestSingleBandRespectsMinGap(t *testing.T) {
	e := newTestEnv(t, sub(1, "560001", availability.Band18Plus, 0))
	e.provider.results["560001"] = snapshot("560001", session("10-05-2021", 18, 5))

	e.sched.RunCycle(context.Background(), fast)
	e.clock.Advance(10 * time.Minute)
	e.sched.RunCycle(context.Background(), fast)
	assert.Len(t, e.channel.Sent(), 1)

	e.clock.Advance(fast.MinGap)
	e.sched.RunCycle(context.Background(), fast)
	assert.Len(t, e.channel.Sent(), 2)
}

func TestAnyBandGetsFastBandUntilSlowGapElapses(t *testing.T) {
	e := newTestEnv(t, sub(1, "560001", availability.BandAny, 45*time.Minute))
	e.provider.results["560001"] = snapshot("560001",
		session("10-05-2021", 18, 5),
		session("11-05-2021", 45, 7),
	)

	e.sched.RunCycle(context.Background(), fast)
	sent := e.channel.Sent()
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0].text, "10-05-2021")
	assert.NotContains(t, sent[0].text, "11-05-2021")

	e.clock.Advance(10 * time.Minute)
	e.sched.RunCycle(context.Background(), slow)
	assert.Len(t, e.channel.Sent(), 1)

	e.clock.Advance(slow.MinGap)
	e.sched.RunCycle(context.Background(), slow)
	sent = e.channel.Sent()
	require.Len(t, sent, 2)
	assert.Contains(t, sent[1].text, "10-05-2021")
	assert.Contains(t, sent[1].text, "11-05-2021")
}

func TestPacingBetweenProviderCalls(t *testing.T) {
	e := newTestEnv(t,
		sub(1, "560001", availability.Band18Plus, 0),
		sub(2, "560002", availability.Band18Plus, 0),
		sub(3, "560003", availability.Band18Plus, 0),
	)
	e.sched.pacing = 50 * time.Millisecond

	began := time.Now()
	e.sched.RunCycle(context.Background(), fast)
	assert.GreaterOrEqual(t, time.Since(began), 90*time.Millisecond)
	assert.Len(t, e.provider.Calls(), 3)
}

func TestRunStopsOnCancel(t *testing.T) {
	e := newTestEnv(t, sub(1, "560001", availability.BandAny, 0))

	ctx, cancel := context.WithCancel(context.Background())
	var once sync.Once
	fetched := make(chan struct{})
	e.provider.onFetch = func(string) { once.Do(func() { close(fetched) }) }

	done := make(chan error, 1)
	go func() { done <- e.sched.Run(ctx) }()

	select {
	case <-fetched:
	case <-time.After(2 * time.Second):
		t.Fatal("no provider call")
	}
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	e := newTestEnv(t)
	_, err := New(e.provider, e.store, e.sched.dispatcher, e.sched.policy, Config{}, nil, nil, nil)
	assert.Error(t, err)
}
