package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"tracking-server/internal/domain"
	"tracking-server/internal/engine"
	"tracking-server/internal/network"
	"tracking-server/pkg/api"
	"tracking-server/pkg/logger"
	"tracking-server/pkg/utils"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// Настройки WebSocket
const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1024
	connectTimeout = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Client - посредник между Websocket и сервисом присутствия
type Client struct {
	service *engine.Service
	hub     *network.Hub
	conn    *websocket.Conn
	id      domain.ConnectionID
	send    <-chan api.ServerMessage
	log     *logrus.Entry
}

// handleWS обрабатывает подключение по WebSocket.
// Токен сессии (если клиент его помнит) приходит в ?session=.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.WithError(err).Warn("Upgrade error")
		return
	}

	id := domain.ConnectionID(utils.GenerateID())
	c := &Client{
		service: s.service,
		hub:     s.hub,
		conn:    conn,
		id:      id,
		log:     logger.For("ws").WithField("connection_id", id.Short()),
	}

	token, err := sessionToken(r)
	if err != nil {
		c.log.WithError(err).Warn("Session token dropped")
	}

	// Подписываемся ДО регистрации: первые сообщения (идентичность, снимок) идут сразу
	c.send = s.hub.Register(id)

	if err := s.connect(id, engine.ConnectInfo{UserAgent: r.UserAgent(), SessionToken: token}); err != nil {
		c.log.WithError(err).Error("Connect refused")
		s.hub.Unregister(id)
		msg := websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "presence unavailable")
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
		_ = conn.Close()
		return
	}

	go c.writePump()
	go c.readPump()
}

// connect ждет, пока сервис примет соединение, не дольше connectTimeout.
// Если ждать перестали, а событие уже в очереди, запись все равно появится:
// Disconnect отправляет её в обычный grace-путь.
func (s *Server) connect(id domain.ConnectionID, info engine.ConnectInfo) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.connectTimeout)
	defer cancel()

	err := s.service.Connect(ctx, id, info)
	if err != nil && !errors.Is(err, domain.ErrDuplicateConnect) {
		s.service.Disconnect(id, "connect-abandoned")
	}
	return err
}

// sessionToken - токен из ?session=. Слишком длинный отбрасывается,
// соединение тогда подключается без сессии.
func sessionToken(r *http.Request) (string, error) {
	token := r.URL.Query().Get("session")
	if err := (api.SessionPayload{SessionToken: token}).Validate(); err != nil {
		return "", err
	}
	return token, nil
}

// readPump читает события клиента. Порядок событий одного соединения сохраняется.
func (c *Client) readPump() {
	reason := "transport-error"
	defer func() {
		c.service.Disconnect(c.id, reason)
		c.hub.Unregister(c.id) // writePump увидит закрытый канал
		if err := c.conn.Close(); err != nil {
			c.log.WithError(err).Debug("failed to close websocket connection")
		}
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.log.WithError(err).Warn("failed to set read deadline")
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var cmd api.ClientCommand
		if err := c.conn.ReadJSON(&cmd); err != nil {
			reason = closeReason(err)
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				c.log.WithError(err).WithField("reason", reason).Warn("WS read error")
			}
			return
		}
		c.service.Dispatch(c.id, cmd)
	}
}

// writePump отправляет данные клиенту + Ping
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		if err := c.conn.Close(); err != nil {
			c.log.WithError(err).Debug("failed to close websocket connection in writePump")
		}
	}()

	for {
		select {
		case message, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.log.WithError(err).Warn("failed to set write deadline")
			}
			if !ok {
				if err := c.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil {
					c.log.WithError(err).Debug("write close message failed")
				}
				return
			}
			if err := c.conn.WriteJSON(message); err != nil {
				c.log.WithError(err).Debug("write json message failed")
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.log.WithError(err).Warn("failed to set ping write deadline")
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.log.WithError(err).Debug("ping failed")
				return
			}
		}
	}
}

// closeReason переводит ошибку чтения в причину отключения для логов и движка.
func closeReason(err error) string {
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		switch ce.Code {
		case websocket.CloseNormalClosure, websocket.CloseNoStatusReceived:
			return "client-close"
		case websocket.CloseGoingAway:
			return "going-away"
		case websocket.CloseAbnormalClosure:
			return "transport-error"
		default:
			return fmt.Sprintf("close-%d", ce.Code)
		}
	}

	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return "ping-timeout"
	}
	if errors.Is(err, websocket.ErrReadLimit) {
		return "message-too-large"
	}
	return "transport-error"
}
