// Package presence хранит состояние присутствия: реестр участников,
// сессии (вкладки одного браузера) и память об ушедших идентичностях.
//
// Типы пакета не потокобезопасны. Ими владеет ровно одна горутина
// (engine.Service), все изменения приходят через её очередь событий.
package presence

import (
	"fmt"
	"time"

	"tracking-server/internal/domain"
)

// Registry - отображение connectionId -> Participant. Единственный владелец
// жизненного цикла участника.
type Registry struct {
	participants map[domain.ConnectionID]*domain.Participant
	order        []domain.ConnectionID // порядок вставки, нужен для детерминированных снимков
}

func NewRegistry() *Registry {
	return &Registry{
		participants: make(map[domain.ConnectionID]*domain.Participant),
	}
}

// OnConnect создает запись: Online, без позиции, LastActivityAt = now.
func (r *Registry) OnConnect(id domain.ConnectionID, attrs domain.Attributes, now time.Time) (domain.Participant, error) {
	if _, ok := r.participants[id]; ok {
		return domain.Participant{}, fmt.Errorf("connection %s: %w", id, domain.ErrDuplicateConnect)
	}

	p := &domain.Participant{
		ConnectionID:   id,
		StableUserID:   attrs.StableUserID,
		DisplayName:    attrs.DisplayName,
		Color:          attrs.Color,
		DeviceClass:    attrs.DeviceClass,
		SessionToken:   attrs.SessionToken,
		LastActivityAt: now,
		ConnectedAt:    now,
		State:          domain.Online,
	}
	r.participants[id] = p
	r.order = append(r.order, id)
	return p.Clone(), nil
}

// OnLocationUpdate записывает позицию. Побеждает последнее пришедшее,
// а не самое свежее по FixTimestamp.
func (r *Registry) OnLocationUpdate(id domain.ConnectionID, loc domain.Location, now time.Time) (domain.Participant, error) {
	p, ok := r.participants[id]
	if !ok {
		return domain.Participant{}, fmt.Errorf("location update for %s: %w", id, domain.ErrStaleReference)
	}

	fix := loc
	if loc.Accuracy != nil {
		acc := *loc.Accuracy
		fix.Accuracy = &acc
	}
	p.Location = &fix
	p.Touch(now)
	p.State = domain.Online
	return p.Clone(), nil
}

// OnHeartbeat обновляет активность и переводит в Online, позицию не трогает.
func (r *Registry) OnHeartbeat(id domain.ConnectionID, now time.Time) (domain.Participant, error) {
	p, ok := r.participants[id]
	if !ok {
		return domain.Participant{}, fmt.Errorf("heartbeat for %s: %w", id, domain.ErrStaleReference)
	}
	p.Touch(now)
	p.State = domain.Online
	return p.Clone(), nil
}

// MarkOffline помечает участника оффлайн. Запись остается.
func (r *Registry) MarkOffline(id domain.ConnectionID, now time.Time) (domain.Participant, error) {
	p, ok := r.participants[id]
	if !ok {
		return domain.Participant{}, fmt.Errorf("mark offline %s: %w", id, domain.ErrStaleReference)
	}
	p.Touch(now)
	p.State = domain.Offline
	return p.Clone(), nil
}

// AttachSession закрепляет токен сессии, если его еще нет. Идентичность не меняется.
func (r *Registry) AttachSession(id domain.ConnectionID, token string) (domain.Participant, error) {
	p, ok := r.participants[id]
	if !ok {
		return domain.Participant{}, fmt.Errorf("attach session to %s: %w", id, domain.ErrStaleReference)
	}
	if p.SessionToken == "" {
		p.SessionToken = token
	}
	return p.Clone(), nil
}

// Remove удаляет запись безусловно. Повторный вызов возвращает false.
func (r *Registry) Remove(id domain.ConnectionID) bool {
	if _, ok := r.participants[id]; !ok {
		return false
	}
	delete(r.participants, id)

	// Сохраняем порядок вставки, поэтому без swap-with-last
	for idx, cur := range r.order {
		if cur == id {
			r.order = append(r.order[:idx], r.order[idx+1:]...)
			break
		}
	}
	return true
}

// Get возвращает копию записи.
func (r *Registry) Get(id domain.ConnectionID) (domain.Participant, bool) {
	p, ok := r.participants[id]
	if !ok {
		return domain.Participant{}, false
	}
	return p.Clone(), true
}

// Has проверяет наличие записи без копирования.
func (r *Registry) Has(id domain.ConnectionID) bool {
	_, ok := r.participants[id]
	return ok
}

// Snapshot - копии всех записей в порядке вставки.
func (r *Registry) Snapshot() []domain.Participant {
	out := make([]domain.Participant, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.participants[id].Clone())
	}
	return out
}

// Len - число записей.
func (r *Registry) Len() int {
	return len(r.participants)
}

// Counts - сколько участников онлайн и оффлайн.
func (r *Registry) Counts() (online, offline int) {
	for _, p := range r.participants {
		if p.State == domain.Offline {
			offline++
		} else {
			online++
		}
	}
	return online, offline
}
