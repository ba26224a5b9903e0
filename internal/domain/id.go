package domain

// ConnectionID - непрозрачный идентификатор одного транспортного соединения.
// Живет ровно столько, сколько живет websocket.
type ConnectionID string

func (id ConnectionID) String() string {
	return string(id)
}

// Short - первые символы ID для логов и подписей маркеров.
func (id ConnectionID) Short() string {
	if len(id) <= 8 {
		return string(id)
	}
	return string(id[:8])
}
