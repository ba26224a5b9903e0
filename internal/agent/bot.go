// Package agent - синтетический участник (headless-клиент).
//
// Бот подключается к серверу по WebSocket так же, как браузер: получает свою
// идентичность, шлет позицию с заданным интервалом, heartbeat и user-leaving
// при остановке. Нужен для демо карты без телефонов и для нагрузочных прогонов.
//
// Жизненный цикл:
//  1. NewBot -> конфиг и собственный генератор случайных шагов.
//  2. Run -> подключение, цикл отправки и чтения до отмены контекста.
//  3. Отмена контекста -> user-leaving и штатное закрытие соединения.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"net/http"
	"net/url"
	"sync"
	"time"

	"tracking-server/pkg/api"
	"tracking-server/pkg/logger"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const writeWait = 5 * time.Second

// Config - параметры одного бота.
type Config struct {
	URL          string // ws://host:port/ws
	SessionToken string // пусто - сервер выдаст новую идентичность
	UserAgent    string

	Latitude  float64 // стартовая точка
	Longitude float64
	// MaxStep - максимальный шаг за одно обновление, в градусах.
	MaxStep float64

	Interval  time.Duration // частота отправки позиции
	Heartbeat time.Duration // 0 - без heartbeat
}

// Bot представляет собой синтетического участника.
type Bot struct {
	cfg Config
	rng *rand.Rand
	log *logrus.Entry

	lat, lon float64
	mu       sync.Mutex // lat/lon, identity, received
	identity api.IdentityView
	received map[string]int
}

func NewBot(cfg Config, seed int64) *Bot {
	if cfg.MaxStep <= 0 {
		cfg.MaxStep = 0.0005
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "tracking-agent/1.0"
	}
	return &Bot{
		cfg:      cfg,
		rng:      rand.New(rand.NewSource(seed)),
		log:      logger.For("agent"),
		lat:      cfg.Latitude,
		lon:      cfg.Longitude,
		received: make(map[string]int),
	}
}

// Run подключается и ходит до отмены ctx. Ошибка - только при сбое соединения.
func (b *Bot) Run(ctx context.Context) error {
	target, err := url.Parse(b.cfg.URL)
	if err != nil {
		return fmt.Errorf("agent url: %w", err)
	}
	if b.cfg.SessionToken != "" {
		q := target.Query()
		q.Set("session", b.cfg.SessionToken)
		target.RawQuery = q.Encode()
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, target.String(), http.Header{"User-Agent": {b.cfg.UserAgent}})
	if err != nil {
		return fmt.Errorf("agent dial: %w", err)
	}
	defer conn.Close()

	readErr := make(chan error, 1)
	go func() { readErr <- b.readLoop(conn) }()

	send := time.NewTicker(b.cfg.Interval)
	defer send.Stop()

	var heartbeat <-chan time.Time
	if b.cfg.Heartbeat > 0 {
		t := time.NewTicker(b.cfg.Heartbeat)
		defer t.Stop()
		heartbeat = t.C
	}

	// Первая позиция сразу, чтобы маркер появился без ожидания интервала
	if err := b.sendLocation(conn); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			b.leave(conn)
			return nil

		case err := <-readErr:
			return fmt.Errorf("agent read: %w", err)

		case <-send.C:
			b.step()
			if err := b.sendLocation(conn); err != nil {
				return err
			}

		case <-heartbeat:
			if err := b.write(conn, api.EventHeartbeat, struct{}{}); err != nil {
				return err
			}
		}
	}
}

// step - случайный шаг в пределах MaxStep.
func (b *Bot) step() {
	angle := b.rng.Float64() * 2 * math.Pi
	magnitude := b.rng.Float64() * b.cfg.MaxStep

	b.mu.Lock()
	defer b.mu.Unlock()
	b.lat = clamp(b.lat+magnitude*math.Sin(angle), -90, 90)
	b.lon = clamp(b.lon+magnitude*math.Cos(angle), -180, 180)
}

func (b *Bot) sendLocation(conn *websocket.Conn) error {
	lat, lon := b.Position()
	accuracy := 5 + b.rng.Float64()*20
	ts := time.Now().UnixMilli()
	return b.write(conn, api.EventSendLocation, api.LocationPayload{
		Latitude:     &lat,
		Longitude:    &lon,
		Accuracy:     &accuracy,
		Timestamp:    &ts,
		SessionToken: b.cfg.SessionToken,
	})
}

func (b *Bot) write(conn *websocket.Conn, event string, data interface{}) error {
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return conn.WriteJSON(map[string]interface{}{"event": event, "data": data})
}

// leave - штатный уход: сервер удаляет участника сразу, без grace-периода.
func (b *Bot) leave(conn *websocket.Conn) {
	if err := b.write(conn, api.EventUserLeaving, struct{}{}); err != nil {
		b.log.WithError(err).Debug("user-leaving not sent")
	}
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
}

func (b *Bot) readLoop(conn *websocket.Conn) error {
	for {
		var frame struct {
			Event string          `json:"event"`
			Data  json.RawMessage `json:"data"`
		}
		if err := conn.ReadJSON(&frame); err != nil {
			return err
		}

		b.mu.Lock()
		b.received[frame.Event]++
		if frame.Event == api.EventUserRegistered {
			if err := json.Unmarshal(frame.Data, &b.identity); err != nil {
				b.log.WithError(err).Warn("bad identity frame")
			}
		}
		b.mu.Unlock()

		if frame.Event == api.EventUserRegistered {
			b.log.WithFields(logrus.Fields{
				"connection_id": b.Identity().ConnectionID,
				"user":          b.Identity().DisplayName,
			}).Info("Agent registered")
		}
		if frame.Event == api.EventError {
			b.log.WithField("data", string(frame.Data)).Warn("Server rejected agent message")
		}
	}
}

// Identity - идентичность, выданная сервером (пустая до user-registered).
func (b *Bot) Identity() api.IdentityView {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.identity
}

// Received - сколько сообщений каждого типа пришло.
func (b *Bot) Received(event string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.received[event]
}

// Position - текущая позиция бота.
func (b *Bot) Position() (lat, lon float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lat, b.lon
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
