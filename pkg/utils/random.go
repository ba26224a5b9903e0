package utils

import (
	"hash/fnv"

	"github.com/google/uuid"
)

// GenerateID создает уникальный ID (UUID v4) для соединений, сессий и пользователей.
func GenerateID() string {
	return uuid.NewString()
}

// StringToSeed превращает строку в детерминированное зерно.
// Один и тот же ID всегда дает одно и то же зерно (цвет, имя).
func StringToSeed(s string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return int64(h.Sum64() & 0x7fffffffffffffff)
}
