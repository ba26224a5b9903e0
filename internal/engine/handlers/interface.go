package handlers

import (
	"encoding/json"
	"time"

	"tracking-server/internal/domain"
	"tracking-server/internal/presence"
)

// Context передает хендлеру состояние присутствия.
// Ссылки, а не копии: хендлер мутирует реестр.
type Context struct {
	Registry     *presence.Registry
	Sessions     *presence.Sessions
	ConnectionID domain.ConnectionID // Источник события
	Now          time.Time
}

// Effect - что произошло, чтобы движок выбрал рассылку и таймеры.
type Effect uint8

const (
	EffectNone Effect = iota
	EffectLocationUpdated
	EffectHeartbeat
	EffectSessionRegistered
	EffectLeaving
)

// Result - результат выполнения события.
// Хендлер ничего не рассылает сам, он возвращает данные.
type Result struct {
	Effect      Effect
	Participant domain.Participant
	// Reactivated - участник был оффлайн и вернулся.
	Reactivated bool
	// SessionToken - токен, который надо закрепить за соединением (если пришел).
	SessionToken string
}

// HandlerFunc - контракт для любого входящего события.
type HandlerFunc func(ctx Context, payload json.RawMessage) (Result, error)
