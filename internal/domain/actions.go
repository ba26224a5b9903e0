package domain

import "strings"

// EventType - внутренний числовой идентификатор входящего события
type EventType uint8

const (
	EventUnknown EventType = iota
	EventRegisterSession
	EventLocationUpdate
	EventHeartbeat
	EventUserLeaving
)

// Маппинг для конвертации JSON -> Domain.
// send-location и location-update - два имени одного события (разные поколения клиента).
var eventStringToType = map[string]EventType{
	"register-session": EventRegisterSession,
	"send-location":    EventLocationUpdate,
	"location-update":  EventLocationUpdate,
	"heartbeat":        EventHeartbeat,
	"user-leaving":     EventUserLeaving,
}

// Маппинг для логов Domain -> String
var eventTypeToString = map[EventType]string{
	EventRegisterSession: "register-session",
	EventLocationUpdate:  "location-update",
	EventHeartbeat:       "heartbeat",
	EventUserLeaving:     "user-leaving",
}

// ParseEvent конвертирует имя события из JSON в EventType
func ParseEvent(s string) EventType {
	lower := strings.ToLower(strings.TrimSpace(s))
	if val, ok := eventStringToType[lower]; ok {
		return val
	}
	return EventUnknown
}

// String реализует интерфейс Stringer (для логов)
func (e EventType) String() string {
	if val, ok := eventTypeToString[e]; ok {
		return val
	}
	return "unknown"
}
