package api

import (
	"encoding/json"
)

// --- ИМЕНА СОБЫТИЙ ---

// Входящие события (клиент -> сервер).
const (
	EventRegisterSession = "register-session"
	EventSendLocation    = "send-location"
	EventLocationUpdate  = "location-update" // синоним send-location из поздних клиентов
	EventHeartbeat       = "heartbeat"
	EventUserLeaving     = "user-leaving"
)

// Исходящие события (сервер -> клиент).
const (
	EventUserRegistered      = "user-registered"
	EventAllUsersLocations   = "all-users-locations"
	EventSessionRegistered   = "session-registered"
	EventUserLocationUpdated = "user-location-updated"
	EventUserStatusChanged   = "user-status-changed"
	EventUsersListUpdated    = "users-list-updated"
	EventUserDisconnected    = "user-disconnected"
	EventHeartbeatAck        = "heartbeat-ack"
	EventError               = "error"
)

// Коды ошибок в кадре "error".
const (
	ErrCodeMalformed    = "malformed-update"
	ErrCodeUnknownEvent = "unknown-event"
)

// Состояния участника на проводе.
const (
	StateOnline  = "online"
	StateOffline = "offline"
)

// --- КЛИЕНТ -> СЕРВЕР ---

// ClientCommand это корневой объект для всех сообщений от клиента к серверу.
type ClientCommand struct {
	// Event имя события (send-location, heartbeat, ...).
	Event string `json:"event"`

	// Data JSON-объект с данными события. Структура зависит от Event.
	Data json.RawMessage `json:"data,omitempty"`
}

// LocationPayload данные события send-location.
// Широта и долгота - указатели, чтобы отличить "не прислали" от нуля.
type LocationPayload struct {
	Latitude     *float64 `json:"latitude"`
	Longitude    *float64 `json:"longitude"`
	Accuracy     *float64 `json:"accuracy,omitempty"`
	Timestamp    *int64   `json:"timestamp,omitempty"` // Unix milliseconds, время фикса на устройстве
	SessionToken string   `json:"sessionToken,omitempty"`
}

// SessionPayload данные события register-session.
type SessionPayload struct {
	SessionToken string `json:"sessionToken,omitempty"`
}

// --- СЕРВЕР -> КЛИЕНТ ---

// ServerMessage корневой объект всех сообщений сервера.
type ServerMessage struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// LocationView координаты участника.
type LocationView struct {
	Latitude     float64  `json:"latitude"`
	Longitude    float64  `json:"longitude"`
	Accuracy     *float64 `json:"accuracy,omitempty"`
	FixTimestamp int64    `json:"timestamp"` // Unix milliseconds
}

// ParticipantView полная запись участника (user-location-updated, all-users-locations).
type ParticipantView struct {
	ConnectionID   string        `json:"connectionId"`
	StableUserID   string        `json:"userId"`
	DisplayName    string        `json:"name"`
	Color          string        `json:"color"`
	DeviceClass    string        `json:"deviceType"`
	Location       *LocationView `json:"location,omitempty"`
	OnlineState    string        `json:"onlineState"`
	LastActivityAt int64         `json:"lastActivityAt"` // Unix milliseconds
}

// RosterEntry косметические поля и статус, без координат.
type RosterEntry struct {
	ConnectionID   string `json:"connectionId"`
	StableUserID   string `json:"userId"`
	DisplayName    string `json:"name"`
	Color          string `json:"color"`
	DeviceClass    string `json:"deviceType"`
	OnlineState    string `json:"onlineState"`
	LastActivityAt int64  `json:"lastActivityAt"`
}

// RosterView список участников (users-list-updated и GET /api/users).
type RosterView struct {
	Total   int           `json:"total"`
	Online  int           `json:"online"`
	Offline int           `json:"offline"`
	Users   []RosterEntry `json:"users"`
}

// SnapshotView ответ all-users-locations: только участники с известной позицией.
type SnapshotView struct {
	Users []ParticipantView `json:"users"`
}

// IdentityView ответ user-registered: кто я.
type IdentityView struct {
	ConnectionID   string `json:"connectionId"`
	StableUserID   string `json:"userId"`
	DisplayName    string `json:"name"`
	Color          string `json:"color"`
	DeviceClass    string `json:"deviceType"`
	SessionToken   string `json:"sessionToken,omitempty"`
	UpdateInterval int64  `json:"updateIntervalMs"` // ожидаемая частота обновлений от клиента
}

// SessionView ответ session-registered.
type SessionView struct {
	SessionToken string   `json:"sessionToken"`
	StableUserID string   `json:"userId"`
	Peers        []string `json:"peers"` // другие соединения (вкладки) той же сессии
}

// StatusView минимальная дельта статуса (user-status-changed).
type StatusView struct {
	ConnectionID   string `json:"connectionId"`
	OnlineState    string `json:"onlineState"`
	LastActivityAt int64  `json:"lastActivityAt"`
}

// RemovalView уведомление об окончательном удалении участника.
type RemovalView struct {
	ConnectionID string `json:"connectionId"`
}

// HeartbeatAck пустой ответ на heartbeat.
type HeartbeatAck struct{}

// ErrorView кадр ошибки для клиента.
type ErrorView struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// --- Debug ---

// DebugParticipantView - запись участника вместе с внутренним состоянием живости.
type DebugParticipantView struct {
	ParticipantView
	SessionToken string `json:"sessionToken,omitempty"`
	Liveness     string `json:"liveness"`
	InactiveMs   int64  `json:"inactiveMs"`
	ConnectedAt  int64  `json:"connectedAt"`
}

// DebugSessionsView - сессии и соединения в них.
type DebugSessionsView struct {
	Sessions        map[string][]string `json:"sessions"`
	RememberedTotal int                 `json:"remembered"`
	PendingTimers   int                 `json:"pendingTimers"`
}
