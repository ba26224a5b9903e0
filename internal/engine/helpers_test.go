package engine

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"testing"
	"time"

	"tracking-server/internal/domain"
	"tracking-server/pkg/api"
)

// --- Фейковые часы ---

type fakeTimer struct {
	clock    *fakeClock
	deadline time.Time
	f        func()
	stopped  bool
	fired    bool
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

// fakeClock - время двигается только через Advance. Таймеры срабатывают синхронно.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, deadline: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due []*fakeTimer
	rest := c.timers[:0]
	for _, t := range c.timers {
		switch {
		case t.stopped:
		case !t.deadline.After(c.now):
			t.fired = true
			due = append(due, t)
		default:
			rest = append(rest, t)
		}
	}
	c.timers = rest
	c.mu.Unlock()

	sort.SliceStable(due, func(i, j int) bool { return due[i].deadline.Before(due[j].deadline) })
	for _, t := range due {
		t.f()
	}
}

// --- Фейковый хаб ---

type sent struct {
	to      domain.ConnectionID // пусто - рассылка
	except  domain.ConnectionID
	message api.ServerMessage
}

type recorder struct {
	mu   sync.Mutex
	msgs []sent
}

func (r *recorder) SendTo(id domain.ConnectionID, msg api.ServerMessage) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, sent{to: id, message: msg})
	return true
}

func (r *recorder) BroadcastExcept(except domain.ConnectionID, msg api.ServerMessage) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, sent{except: except, message: msg})
	return 1
}

// take забирает накопленные сообщения.
func (r *recorder) take() []sent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.msgs
	r.msgs = nil
	return out
}

func events(msgs []sent) []string {
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.message.Event)
	}
	return out
}

func find(msgs []sent, event string) (sent, bool) {
	for _, m := range msgs {
		if m.message.Event == event {
			return m, true
		}
	}
	return sent{}, false
}

// --- Запуск сервиса ---

func testConfig() Config {
	cfg := NewConfig()
	cfg.GracePeriod = 30 * time.Second
	cfg.HardTimeout = 5 * time.Minute
	cfg.SweepInterval = time.Minute
	cfg.Seed = 1
	return cfg
}

type harness struct {
	svc   *Service
	clock *fakeClock
	hub   *recorder
}

func startService(t *testing.T, cfg Config) *harness {
	t.Helper()
	clock := newFakeClock()
	hub := &recorder{}
	svc := newService(cfg, hub, clock)

	ctx, cancel := context.WithCancel(context.Background())
	go svc.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-svc.Done()
	})
	return &harness{svc: svc, clock: clock, hub: hub}
}

// sync дожидается обработки всех ранее поставленных событий.
func (h *harness) sync(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := h.svc.Snapshot(ctx); err != nil {
		t.Fatalf("sync: %v", err)
	}
}

func (h *harness) connect(t *testing.T, id domain.ConnectionID, token string) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := h.svc.Connect(ctx, id, ConnectInfo{UserAgent: "Mozilla/5.0 (iPhone)", SessionToken: token}); err != nil {
		t.Fatalf("connect %s: %v", id, err)
	}
}

func (h *harness) send(t *testing.T, id domain.ConnectionID, event string, data interface{}) {
	t.Helper()
	var raw json.RawMessage
	if data != nil {
		b, err := json.Marshal(data)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		raw = b
	}
	h.svc.Dispatch(id, api.ClientCommand{Event: event, Data: raw})
	h.sync(t)
}

func (h *harness) snapshot(t *testing.T) []domain.Participant {
	t.Helper()
	ps, err := h.svc.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	return ps
}

func (h *harness) get(t *testing.T, id domain.ConnectionID) (domain.Participant, bool) {
	t.Helper()
	for _, p := range h.snapshot(t) {
		if p.ConnectionID == id {
			return p, true
		}
	}
	return domain.Participant{}, false
}

func loc(lat, lon float64) map[string]interface{} {
	return map[string]interface{}{"latitude": lat, "longitude": lon}
}
