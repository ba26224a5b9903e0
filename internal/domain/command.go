package domain

import "encoding/json"

// InternalCommand - разобранное входящее событие для движка.
// Использует EventType вместо строки.
type InternalCommand struct {
	Event        EventType       // Число вместо строки
	ConnectionID ConnectionID    // Соединение-источник (проставляет транспорт, не клиент)
	Payload      json.RawMessage // Сырые данные (парсятся хендлером)
}
