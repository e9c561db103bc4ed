package poller

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/Spok95/cowin-alert-bot/internal/alerts"
	"github.com/Spok95/cowin-alert-bot/internal/cowin"
	"github.com/Spok95/cowin-alert-bot/internal/domain/availability"
	"github.com/Spok95/cowin-alert-bot/internal/domain/subscribers"
)

type fakeProvider struct {
	mu      sync.Mutex
	results map[string]cowin.Result
	calls   []string
	onFetch func(pincode string)
}

func (f *fakeProvider) Fetch(_ context.Context, pincode string) cowin.Result {
	f.mu.Lock()
	f.calls = append(f.calls, pincode)
	hook := f.onFetch
	res, ok := f.results[pincode]
	f.mu.Unlock()
	if hook != nil {
		hook(pincode)
	}
	if !ok {
		return cowin.Result{Status: cowin.StatusOK, Snapshot: availability.Snapshot{Pincode: pincode}}
	}
	return res
}

func (f *fakeProvider) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.calls)
}

// memStore реализует и poller.Store, и alerts.Store.
type memStore struct {
	mu   sync.Mutex
	subs map[int64]*subscribers.Subscriber
	err  error
}

func newMemStore(subs ...subscribers.Subscriber) *memStore {
	m := &memStore{subs: map[int64]*subscribers.Subscriber{}}
	for i := range subs {
		s := subs[i]
		m.subs[s.ID] = &s
	}
	return m
}

func (m *memStore) Get(id int64) subscribers.Subscriber {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.subs[id]
}

func (m *memStore) DistinctPincodes(_ context.Context, bands []availability.AgeBand) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	var out []string
	for _, s := range m.subs {
		if s.Eligible() && slices.Contains(bands, s.AgeBand) && !slices.Contains(out, s.Pincode) {
			out = append(out, s.Pincode)
		}
	}
	slices.Sort(out)
	return out, nil
}

func (m *memStore) ListEligible(_ context.Context, pincode string, bands []availability.AgeBand) ([]subscribers.Subscriber, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []subscribers.Subscriber
	for _, s := range m.subs {
		if s.Eligible() && s.Pincode == pincode && slices.Contains(bands, s.AgeBand) {
			out = append(out, *s)
		}
	}
	slices.SortFunc(out, func(a, b subscribers.Subscriber) int { return int(a.ID - b.ID) })
	return out, nil
}

func (m *memStore) MarkAlertSent(_ context.Context, id int64, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.subs[id]
	if at.After(s.LastAlertSentAt) {
		s.LastAlertSentAt = at
	}
	s.TotalAlertsSent++
	return nil
}

func (m *memStore) DisableAlerts(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs[id].AlertsEnabled = false
	return nil
}

type sentMessage struct {
	chatID int64
	text   string
}

type fakeChannel struct {
	mu      sync.Mutex
	outcome alerts.Outcome
	sent    []sentMessage
}

func (f *fakeChannel) Send(_ context.Context, chatID int64, text string) (alerts.Outcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMessage{chatID: chatID, text: text})
	return f.outcome, nil
}

func (f *fakeChannel) Sent() []sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.sent)
}

// testClock ручные часы.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}
