package network

import (
	"sync"
	"sync/atomic"

	"tracking-server/internal/domain"
	"tracking-server/pkg/api"
)

// sendBuffer - размер личного канала соединения.
const sendBuffer = 256

// Hub занимается только рассылкой сообщений подписчикам.
// Состояние присутствия он не знает: кому слать, решает engine.Coordinator.
type Hub struct {
	mu sync.RWMutex
	// Мапа: ConnectionID -> личный канал
	subscribers map[domain.ConnectionID]chan api.ServerMessage

	dropped atomic.Uint64
}

func NewHub() *Hub {
	return &Hub{
		subscribers: make(map[domain.ConnectionID]chan api.ServerMessage),
	}
}

// Register создает личный канал для соединения
func (h *Hub) Register(id domain.ConnectionID) chan api.ServerMessage {
	h.mu.Lock()
	defer h.mu.Unlock()

	// Если канал был, закрываем
	if old, ok := h.subscribers[id]; ok {
		close(old)
	}

	ch := make(chan api.ServerMessage, sendBuffer)
	h.subscribers[id] = ch
	return ch
}

// Unregister удаляет подписчика и закрывает его канал (writePump увидит закрытие)
func (h *Hub) Unregister(id domain.ConnectionID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if ch, ok := h.subscribers[id]; ok {
		close(ch)
		delete(h.subscribers, id)
	}
}

// SendTo отправляет сообщение конкретному соединению (Unicast).
// Никогда не блокирует: медленный клиент теряет сообщение.
func (h *Hub) SendTo(id domain.ConnectionID, msg api.ServerMessage) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	ch, ok := h.subscribers[id]
	if !ok {
		return false
	}
	return h.offer(ch, msg)
}

// Broadcast отправляет всем
func (h *Hub) Broadcast(msg api.ServerMessage) int {
	return h.BroadcastExcept("", msg)
}

// BroadcastExcept отправляет всем, кроме except (пустой ID - никого не исключать)
func (h *Hub) BroadcastExcept(except domain.ConnectionID, msg api.ServerMessage) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for id, ch := range h.subscribers {
		if except != "" && id == except {
			continue
		}
		if h.offer(ch, msg) {
			delivered++
		}
	}
	return delivered
}

func (h *Hub) offer(ch chan api.ServerMessage, msg api.ServerMessage) bool {
	select {
	case ch <- msg:
		return true
	default:
		h.dropped.Add(1)
		return false
	}
}

// HasSubscriber проверяет, есть ли живое соединение с таким ID
func (h *Hub) HasSubscriber(id domain.ConnectionID) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.subscribers[id]
	return ok
}

// SubscriberCount возвращает количество активных подписчиков.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// Dropped - сколько сообщений выброшено из-за переполненных буферов.
func (h *Hub) Dropped() uint64 {
	return h.dropped.Load()
}

// Close закрывает все каналы (остановка сервера).
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, ch := range h.subscribers {
		close(ch)
		delete(h.subscribers, id)
	}
}
