package engine

import (
	"context"
	"errors"
	"fmt"
	"math/rand"

	"tracking-server/internal/domain"
	"tracking-server/internal/engine/handlers"
	"tracking-server/internal/presence"
	"tracking-server/pkg/api"
	"tracking-server/pkg/identity"
	"tracking-server/pkg/logger"
	"tracking-server/pkg/utils"

	"github.com/sirupsen/logrus"
)

// ErrServiceStopped - сервис остановлен, событие не принято.
var ErrServiceStopped = errors.New("presence service stopped")

// Publisher - куда сервис отдает исходящие сообщения. network.Hub подходит как есть.
type Publisher interface {
	SendTo(id domain.ConnectionID, msg api.ServerMessage) bool
	BroadcastExcept(except domain.ConnectionID, msg api.ServerMessage) int
}

// ConnectInfo - то, что транспорт знает о новом соединении.
type ConnectInfo struct {
	UserAgent    string
	SessionToken string // из ?session=, может быть пустым
}

// Service - единственный владелец состояния присутствия.
// Реестр, сессии, кеш идентичностей и таймеры живут внутри горутины Run,
// снаружи доступны только через очередь событий.
type Service struct {
	cfg   Config
	clock Clock
	hub   Publisher
	log   *logrus.Entry

	registry   *presence.Registry
	sessions   *presence.Sessions
	identities *presence.IdentityCache
	liveness   *Liveness
	coord      Coordinator

	handlers map[domain.EventType]handlers.HandlerFunc
	rng      *rand.Rand

	inbox      chan event
	done       chan struct{}
	sweepTimer Timer
}

// NewService создает сервис. Работать он начинает после Run.
func NewService(cfg Config, hub Publisher) *Service {
	return newService(cfg, hub, realClock{})
}

func newService(cfg Config, hub Publisher, clock Clock) *Service {
	s := &Service{
		cfg:        cfg,
		clock:      clock,
		hub:        hub,
		log:        logger.For("presence"),
		registry:   presence.NewRegistry(),
		sessions:   presence.NewSessions(),
		identities: presence.NewIdentityCache(cfg.IdentityCacheSize),
		coord: Coordinator{
			EchoToSender:   cfg.EchoToSender,
			UpdateInterval: cfg.UpdateInterval,
		},
		handlers: make(map[domain.EventType]handlers.HandlerFunc),
		rng:      rand.New(rand.NewSource(cfg.Seed)),
		inbox:    make(chan event, cfg.InboxSize),
		done:     make(chan struct{}),
	}
	s.liveness = NewLiveness(clock, cfg.GracePeriod, cfg.HardTimeout, func(f expiryFired) {
		_ = s.enqueue(f)
	})

	s.registerHandlers()
	return s
}

func (s *Service) registerHandlers() {
	s.handlers[domain.EventRegisterSession] = handlers.WithPayload(handlers.HandleRegisterSession)
	s.handlers[domain.EventLocationUpdate] = handlers.WithPayload(handlers.HandleLocation)
	s.handlers[domain.EventHeartbeat] = handlers.WithEmptyPayload(handlers.HandleHeartbeat)
	s.handlers[domain.EventUserLeaving] = handlers.WithEmptyPayload(handlers.HandleLeaving)
}

// Run обрабатывает события до отмены ctx. Вызывается один раз.
func (s *Service) Run(ctx context.Context) {
	s.log.WithFields(logrus.Fields{
		"grace":  s.cfg.GracePeriod,
		"hard":   s.cfg.HardTimeout,
		"sweep":  s.cfg.SweepInterval,
		"policy": s.cfg.OfflinePolicy,
	}).Info("Presence loop started")

	s.scheduleSweep()

	for {
		select {
		case <-ctx.Done():
			s.shutdown()
			return
		case ev := <-s.inbox:
			s.handle(ev)
		}
	}
}

func (s *Service) shutdown() {
	if s.sweepTimer != nil {
		s.sweepTimer.Stop()
	}
	s.liveness.StopAll()
	close(s.done)
	online, offline := s.registry.Counts()
	s.log.WithFields(logrus.Fields{
		"online":  online,
		"offline": offline,
	}).Info("Presence loop stopped")
}

// Done закрывается после остановки Run.
func (s *Service) Done() <-chan struct{} {
	return s.done
}

// --- Публичный API (вызывается из горутин транспорта) ---

// Connect регистрирует новое соединение и ждет, пока сервис его примет.
// Ошибка означает, что соединение надо закрыть. Если ошибка пришла от ctx,
// событие могло уже стоять в очереди: вызывающий обязан сообщить Disconnect,
// иначе запись останется Online без таймера.
func (s *Service) Connect(ctx context.Context, id domain.ConnectionID, info ConnectInfo) error {
	reply := make(chan error, 1)
	if err := s.enqueueCtx(ctx, connectEvent{id: id, info: info, reply: reply}); err != nil {
		return err
	}
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-s.done:
		return ErrServiceStopped
	}
}

// Dispatch ставит входящее сообщение клиента в очередь.
func (s *Service) Dispatch(id domain.ConnectionID, cmd api.ClientCommand) {
	err := s.enqueue(commandEvent{
		name: cmd.Event,
		cmd: domain.InternalCommand{
			Event:        domain.ParseEvent(cmd.Event),
			ConnectionID: id,
			Payload:      cmd.Data,
		},
	})
	if err != nil {
		s.log.WithField("connection_id", id.Short()).Debug("Command dropped: service stopped")
	}
}

// Disconnect сообщает об обрыве транспорта.
func (s *Service) Disconnect(id domain.ConnectionID, reason string) {
	if err := s.enqueue(disconnectEvent{id: id, reason: reason}); err != nil {
		s.log.WithField("connection_id", id.Short()).Debug("Disconnect dropped: service stopped")
	}
}

// Roster - ростер для /api/users.
func (s *Service) Roster(ctx context.Context) (api.RosterView, error) {
	return ask(ctx, s, func() api.RosterView {
		return toRosterView(s.registry.Snapshot())
	})
}

// Snapshot - копии всех записей в порядке подключения.
func (s *Service) Snapshot(ctx context.Context) ([]domain.Participant, error) {
	return ask(ctx, s, s.registry.Snapshot)
}

// DebugParticipants - записи вместе с состоянием живости.
func (s *Service) DebugParticipants(ctx context.Context) ([]api.DebugParticipantView, error) {
	return ask(ctx, s, func() []api.DebugParticipantView {
		now := s.clock.Now()
		all := s.registry.Snapshot()
		out := make([]api.DebugParticipantView, 0, len(all))
		for _, p := range all {
			out = append(out, api.DebugParticipantView{
				ParticipantView: toParticipantView(p),
				SessionToken:    p.SessionToken,
				Liveness:        s.liveness.State(p.ConnectionID).String(),
				InactiveMs:      p.InactiveFor(now).Milliseconds(),
				ConnectedAt:     p.ConnectedAt.UnixMilli(),
			})
		}
		return out
	})
}

// DebugSessions - сессии, размер кеша идентичностей и число таймеров.
func (s *Service) DebugSessions(ctx context.Context) (api.DebugSessionsView, error) {
	return ask(ctx, s, func() api.DebugSessionsView {
		return api.DebugSessionsView{
			Sessions:        s.sessions.Dump(),
			RememberedTotal: s.identities.Len(),
			PendingTimers:   s.liveness.Pending(),
		}
	})
}

// --- Цикл событий ---

func (s *Service) handle(ev event) {
	switch e := ev.(type) {
	case connectEvent:
		s.handleConnect(e)
	case commandEvent:
		s.handleCommand(e)
	case disconnectEvent:
		s.handleDisconnect(e)
	case expiryFired:
		s.handleExpiry(e)
	case sweepEvent:
		s.sweep()
		s.scheduleSweep()
	case queryEvent:
		e.run()
	}
}

func (s *Service) handleConnect(e connectEvent) {
	now := s.clock.Now()
	attrs := s.resolveIdentity(e.info.SessionToken)
	attrs.DeviceClass = identity.DeviceClass(e.info.UserAgent)

	p, err := s.registry.OnConnect(e.id, attrs, now)
	if err != nil {
		s.log.WithError(err).WithField("connection_id", e.id.Short()).Error("Connect refused")
		e.reply <- err
		return
	}
	s.liveness.Track(e.id)

	outs := s.coord.Connected(p, s.registry.Snapshot())
	if attrs.SessionToken != "" {
		token := s.sessions.Register(e.id, attrs.SessionToken)
		s.identities.Forget(token)
		outs = append(outs, s.supersede(token, e.id)...)
	}

	s.log.WithFields(logrus.Fields{
		"connection_id": e.id.Short(),
		"user":          p.DisplayName,
		"device":        p.DeviceClass,
		"session":       shortToken(p.SessionToken),
	}).Info("Participant connected")

	s.deliver(outs)
	e.reply <- nil
}

// resolveIdentity: живая вкладка той же сессии, затем кеш, затем новая идентичность.
func (s *Service) resolveIdentity(token string) domain.Attributes {
	if token != "" {
		for _, peer := range s.sessions.Peers(token) {
			if p, ok := s.registry.Get(peer); ok {
				return domain.Attributes{
					StableUserID: p.StableUserID,
					DisplayName:  p.DisplayName,
					Color:        p.Color,
					SessionToken: token,
				}
			}
		}
		if id, ok := s.identities.Recall(token); ok {
			return domain.Attributes{
				StableUserID: id.StableUserID,
				DisplayName:  id.DisplayName,
				Color:        id.Color,
				SessionToken: token,
			}
		}
	}

	stable := utils.GenerateID()
	return domain.Attributes{
		StableUserID: stable,
		DisplayName:  identity.NewDisplayName(s.rng),
		Color:        identity.ColorFor(stable),
		SessionToken: token,
	}
}

func (s *Service) handleCommand(e commandEvent) {
	id := e.cmd.ConnectionID
	entry := s.log.WithFields(logrus.Fields{
		"connection_id": id.Short(),
		"event":         e.cmd.Event.String(),
	})

	handler, ok := s.handlers[e.cmd.Event]
	if !ok {
		entry.WithField("raw_event", e.name).Warn("Unknown event")
		if s.registry.Has(id) {
			s.deliver(s.coord.Rejected(id, api.ErrCodeUnknownEvent, fmt.Errorf("unknown event %q", e.name)))
		}
		return
	}

	ctx := handlers.Context{
		Registry:     s.registry,
		Sessions:     s.sessions,
		ConnectionID: id,
		Now:          s.clock.Now(),
	}
	res, err := handler(ctx, e.cmd.Payload)
	switch {
	case errors.Is(err, domain.ErrStaleReference):
		entry.Debug("Late message for removed connection ignored")
		return
	case errors.Is(err, domain.ErrMalformedUpdate):
		entry.WithError(err).Warn("Malformed payload rejected")
		s.deliver(s.coord.Rejected(id, api.ErrCodeMalformed, err))
		return
	case err != nil:
		entry.WithError(err).Error("Handler failed")
		return
	}

	var outs []Outbound
	switch res.Effect {
	case handlers.EffectLocationUpdated:
		s.liveness.Reactivate(id)
		if res.SessionToken != "" {
			outs = append(outs, s.attachSession(id, res.SessionToken)...)
		}
		outs = append(s.coord.LocationUpdated(res.Participant), outs...)

	case handlers.EffectHeartbeat:
		s.liveness.Reactivate(id)
		outs = s.coord.Heartbeat(res.Participant, res.Reactivated)

	case handlers.EffectSessionRegistered:
		outs = s.coord.SessionRegistered(res.Participant, res.SessionToken, s.sessions.Peers(res.SessionToken))
		outs = append(outs, s.supersede(res.SessionToken, id)...)
		entry.WithField("session", shortToken(res.SessionToken)).Debug("Session registered")

	case handlers.EffectLeaving:
		outs = s.remove(id, "user-leaving")
	}

	if res.Reactivated {
		entry.Info("Participant back online")
	}
	s.deliver(outs)
}

// attachSession - токен пришел вместе с позицией от соединения без сессии.
func (s *Service) attachSession(id domain.ConnectionID, token string) []Outbound {
	if _, ok := s.sessions.TokenOf(id); ok {
		return nil
	}
	token = s.sessions.Register(id, token)
	if _, err := s.registry.AttachSession(id, token); err != nil {
		return nil
	}
	return s.supersede(token, id)
}

// supersede удаляет оффлайн-вкладки той же сессии: их заменило соединение keep.
// Только при SupersedeOffline, иначе они доживают grace-период по своему таймеру.
func (s *Service) supersede(token string, keep domain.ConnectionID) []Outbound {
	if !s.cfg.SupersedeOffline {
		return nil
	}
	var outs []Outbound
	for _, peer := range s.sessions.Peers(token) {
		if peer == keep {
			continue
		}
		p, ok := s.registry.Get(peer)
		if !ok {
			continue
		}
		if p.State == domain.Offline || s.liveness.State(peer) == StateGracePeriod {
			outs = append(outs, s.remove(peer, "superseded")...)
		}
	}
	return outs
}

func (s *Service) handleDisconnect(e disconnectEvent) {
	entry := s.log.WithFields(logrus.Fields{
		"connection_id": e.id.Short(),
		"reason":        e.reason,
	})

	if !s.registry.Has(e.id) {
		entry.Debug("Disconnect for removed connection ignored")
		return
	}

	switch s.cfg.OfflinePolicy {
	case PolicyHardTimeout:
		s.liveness.Schedule(e.id)
		entry.Info("Participant disconnected, awaiting grace period")
	default:
		p, err := s.registry.MarkOffline(e.id, s.clock.Now())
		if err != nil {
			entry.WithError(err).Debug("Mark offline failed")
			return
		}
		s.liveness.Schedule(e.id)
		entry.Info("Participant offline")
		s.deliver(s.coord.WentOffline(p))
	}
}

func (s *Service) handleExpiry(f expiryFired) {
	entry := s.log.WithFields(logrus.Fields{
		"connection_id": f.id.Short(),
		"gen":           f.gen,
	})

	p, ok := s.registry.Get(f.id)
	if !ok {
		entry.Debug("Expiry for removed connection ignored")
		return
	}
	if !s.liveness.ShouldExpire(f, p, s.clock.Now()) {
		entry.Debug("Stale expiry timer ignored")
		return
	}
	s.deliver(s.remove(f.id, "grace-expired"))
}

// sweep - страховка от потерянных таймеров.
func (s *Service) sweep() {
	ids := s.liveness.SweepCandidates(s.registry.Snapshot(), s.clock.Now())
	if len(ids) == 0 {
		return
	}

	var outs []Outbound
	for _, id := range ids {
		outs = append(outs, s.remove(id, "sweep")...)
	}
	s.log.WithField("removed", len(ids)).Info("Sweep removed stale participants")
	s.deliver(outs)
}

func (s *Service) scheduleSweep() {
	s.sweepTimer = s.clock.AfterFunc(s.cfg.SweepInterval, func() {
		_ = s.enqueue(sweepEvent{})
	})
}

// remove - окончательное удаление по любой причине. Повторный вызов ничего не шлет.
func (s *Service) remove(id domain.ConnectionID, cause string) []Outbound {
	p, ok := s.registry.Get(id)
	if !ok {
		return nil
	}
	s.registry.Remove(id)
	s.liveness.Forget(id)

	if token, ok := s.sessions.TokenOf(id); ok {
		s.sessions.Unregister(id)
		if len(s.sessions.Peers(token)) == 0 {
			s.identities.Remember(token, presence.Identity{
				StableUserID: p.StableUserID,
				DisplayName:  p.DisplayName,
				Color:        p.Color,
			})
		}
	}

	s.log.WithFields(logrus.Fields{
		"connection_id": id.Short(),
		"user":          p.DisplayName,
		"cause":         cause,
	}).Info("Participant removed")

	return s.coord.Removed(id, s.registry.Snapshot())
}

func (s *Service) deliver(outs []Outbound) {
	for _, o := range outs {
		if o.IsBroadcast() {
			s.hub.BroadcastExcept(o.Except, o.Message)
			continue
		}
		s.hub.SendTo(o.To, o.Message)
	}
}

func shortToken(token string) string {
	if len(token) > 8 {
		return token[:8]
	}
	return token
}
