package engine

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// OfflinePolicy - что делать с участником при обрыве соединения.
type OfflinePolicy string

const (
	// PolicySoftOffline - сразу помечаем оффлайн (маркер остается), удаляем по таймеру.
	PolicySoftOffline OfflinePolicy = "soft"
	// PolicyHardTimeout - запись не трогаем до срабатывания таймера, затем удаляем.
	PolicyHardTimeout OfflinePolicy = "hard"
)

// ParseOfflinePolicy разбирает значение из env/флага.
func ParseOfflinePolicy(s string) (OfflinePolicy, error) {
	switch OfflinePolicy(strings.ToLower(strings.TrimSpace(s))) {
	case PolicySoftOffline, "soft-offline":
		return PolicySoftOffline, nil
	case PolicyHardTimeout, "hard-timeout", "hard-timeout-only":
		return PolicyHardTimeout, nil
	default:
		return "", fmt.Errorf("unknown offline policy %q", s)
	}
}

// Config хранит параметры сервиса присутствия
type Config struct {
	// GracePeriod (T_grace) - сколько ждем переподключения после обрыва до удаления.
	GracePeriod time.Duration
	// HardTimeout (T_hard) - граница неактивности для периодической чистки. Должна быть >= GracePeriod.
	HardTimeout time.Duration
	// SweepInterval (T_sweep) - период чистки.
	SweepInterval time.Duration
	// UpdateInterval - как часто клиентам советуют слать позицию. Сервер это не проверяет.
	UpdateInterval time.Duration

	OfflinePolicy OfflinePolicy

	// EchoToSender - отправлять ли обновление позиции обратно автору.
	// Клиент сверяет свой маркер с серверной копией, поэтому по умолчанию true.
	EchoToSender bool

	// SupersedeOffline - снимать оффлайн-вкладки сессии сразу, как только
	// к ней подключилось новое соединение, не дожидаясь GracePeriod.
	SupersedeOffline bool

	// IdentityCacheSize - сколько ушедших сессий помнить (0 - не помнить).
	IdentityCacheSize int

	// InboxSize - емкость очереди событий сервиса.
	InboxSize int

	// Seed - зерно генератора имен.
	Seed int64
}

// NewConfig создает конфиг по умолчанию
func NewConfig() Config {
	return Config{
		GracePeriod:       30 * time.Second,
		HardTimeout:       5 * time.Minute,
		SweepInterval:     time.Minute,
		UpdateInterval:    5 * time.Second,
		OfflinePolicy:     PolicySoftOffline,
		EchoToSender:      true,
		IdentityCacheSize: 1024,
		InboxSize:         1024,
		Seed:              time.Now().UnixNano(),
	}
}

// Переменные окружения
const (
	EnvGracePeriod    = "TRACKER_GRACE_PERIOD"
	EnvHardTimeout    = "TRACKER_HARD_TIMEOUT"
	EnvSweepInterval  = "TRACKER_SWEEP_INTERVAL"
	EnvUpdateInterval = "TRACKER_UPDATE_INTERVAL"
	EnvOfflinePolicy  = "TRACKER_OFFLINE_POLICY"
	EnvEchoSelf       = "TRACKER_ECHO_SELF"
	EnvIdentityCache  = "TRACKER_IDENTITY_CACHE"
	EnvSupersede      = "TRACKER_SUPERSEDE_OFFLINE"
)

// LoadFromEnv перекрывает значения из окружения. Пустые переменные игнорируются.
func (c *Config) LoadFromEnv() error {
	durations := []struct {
		key string
		dst *time.Duration
	}{
		{EnvGracePeriod, &c.GracePeriod},
		{EnvHardTimeout, &c.HardTimeout},
		{EnvSweepInterval, &c.SweepInterval},
		{EnvUpdateInterval, &c.UpdateInterval},
	}
	for _, d := range durations {
		v := strings.TrimSpace(os.Getenv(d.key))
		if v == "" {
			continue
		}
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", d.key, err)
		}
		*d.dst = parsed
	}

	if v := strings.TrimSpace(os.Getenv(EnvOfflinePolicy)); v != "" {
		p, err := ParseOfflinePolicy(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvOfflinePolicy, err)
		}
		c.OfflinePolicy = p
	}

	flags := []struct {
		key string
		dst *bool
	}{
		{EnvEchoSelf, &c.EchoToSender},
		{EnvSupersede, &c.SupersedeOffline},
	}
	for _, f := range flags {
		v := strings.TrimSpace(os.Getenv(f.key))
		if v == "" {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", f.key, err)
		}
		*f.dst = b
	}

	if v := strings.TrimSpace(os.Getenv(EnvIdentityCache)); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvIdentityCache, err)
		}
		c.IdentityCacheSize = n
	}
	return nil
}

// Validate проверяет согласованность таймингов.
func (c Config) Validate() error {
	if c.GracePeriod <= 0 {
		return errors.New("grace period must be positive")
	}
	if c.SweepInterval <= 0 {
		return errors.New("sweep interval must be positive")
	}
	if c.HardTimeout < c.GracePeriod {
		return fmt.Errorf("hard timeout %s is shorter than grace period %s", c.HardTimeout, c.GracePeriod)
	}
	if c.OfflinePolicy != PolicySoftOffline && c.OfflinePolicy != PolicyHardTimeout {
		return fmt.Errorf("unknown offline policy %q", c.OfflinePolicy)
	}
	if c.InboxSize <= 0 {
		return errors.New("inbox size must be positive")
	}
	return nil
}
