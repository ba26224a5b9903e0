package engine

import (
	"time"

	"tracking-server/internal/domain"
)

// LivenessState - состояние соединения в автомате живости.
type LivenessState uint8

const (
	StateActive LivenessState = iota
	StateGracePeriod
	StateExpired // соединение больше не отслеживается
)

func (s LivenessState) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateGracePeriod:
		return "grace"
	default:
		return "expired"
	}
}

// expiryFired - сообщение таймера в очередь сервиса.
type expiryFired struct {
	id  domain.ConnectionID
	gen uint64
}

type pendingExpiry struct {
	timer       Timer
	gen         uint64
	scheduledAt time.Time
}

// Liveness ведет таймеры истечения grace-периода.
// Таймер сам ничего не меняет: он только кладет expiryFired в очередь сервиса,
// решение принимается там же, где и все остальные изменения.
type Liveness struct {
	clock Clock
	grace time.Duration
	hard  time.Duration
	post  func(expiryFired)

	gen     uint64
	pending map[domain.ConnectionID]*pendingExpiry
	states  map[domain.ConnectionID]LivenessState
}

func NewLiveness(clock Clock, grace, hard time.Duration, post func(expiryFired)) *Liveness {
	return &Liveness{
		clock:   clock,
		grace:   grace,
		hard:    hard,
		post:    post,
		pending: make(map[domain.ConnectionID]*pendingExpiry),
		states:  make(map[domain.ConnectionID]LivenessState),
	}
}

// Track начинает отслеживать новое соединение.
func (l *Liveness) Track(id domain.ConnectionID) {
	l.states[id] = StateActive
}

// Schedule переводит соединение в GracePeriod и заводит таймер.
// Предыдущий таймер этого соединения отменяется.
func (l *Liveness) Schedule(id domain.ConnectionID) uint64 {
	l.cancel(id)

	l.gen++
	gen := l.gen
	timer := l.clock.AfterFunc(l.grace, func() {
		l.post(expiryFired{id: id, gen: gen})
	})
	l.pending[id] = &pendingExpiry{timer: timer, gen: gen, scheduledAt: l.clock.Now()}
	l.states[id] = StateGracePeriod
	return gen
}

// Reactivate возвращает соединение в Active и отменяет таймер.
// true, если соединение было в grace-периоде.
func (l *Liveness) Reactivate(id domain.ConnectionID) bool {
	wasGrace := l.states[id] == StateGracePeriod
	l.cancel(id)
	if _, tracked := l.states[id]; tracked {
		l.states[id] = StateActive
	}
	return wasGrace
}

// ShouldExpire решает судьбу сработавшего таймера.
// Отмененный или перезаведенный таймер (другое поколение) - no-op.
// Поверх этого повторно проверяем неактивность: если активность была
// позже постановки таймера, удалять нельзя.
func (l *Liveness) ShouldExpire(fired expiryFired, p domain.Participant, now time.Time) bool {
	pe, ok := l.pending[fired.id]
	if !ok || pe.gen != fired.gen {
		return false
	}
	delete(l.pending, fired.id)

	return p.InactiveFor(now) >= l.grace
}

// SweepCandidates - кто просрочил HardTimeout: оффлайн-участники и
// соединения, застрявшие в grace-периоде (политика hard, где оффлайн не ставится).
func (l *Liveness) SweepCandidates(participants []domain.Participant, now time.Time) []domain.ConnectionID {
	var out []domain.ConnectionID
	for _, p := range participants {
		dormant := p.State == domain.Offline || l.states[p.ConnectionID] == StateGracePeriod
		if dormant && p.InactiveFor(now) > l.hard {
			out = append(out, p.ConnectionID)
		}
	}
	return out
}

// Forget снимает соединение с учета (после окончательного удаления).
func (l *Liveness) Forget(id domain.ConnectionID) {
	l.cancel(id)
	delete(l.states, id)
}

// State - текущее состояние. Неотслеживаемое соединение считается Expired.
func (l *Liveness) State(id domain.ConnectionID) LivenessState {
	s, ok := l.states[id]
	if !ok {
		return StateExpired
	}
	return s
}

// Pending - число активных таймеров.
func (l *Liveness) Pending() int {
	return len(l.pending)
}

// StopAll отменяет все таймеры (остановка сервиса).
func (l *Liveness) StopAll() {
	for id := range l.pending {
		l.cancel(id)
	}
}

func (l *Liveness) cancel(id domain.ConnectionID) {
	if pe, ok := l.pending[id]; ok {
		pe.timer.Stop()
		delete(l.pending, id)
	}
}
