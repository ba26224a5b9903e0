package presence

import "github.com/golang/groupcache/lru"

// Identity - то, что переживает переподключение в рамках сессии.
type Identity struct {
	StableUserID string
	DisplayName  string
	Color        string
}

// IdentityCache помнит идентичности сессий, у которых не осталось ни одной записи.
// Вкладка, вернувшаяся после сна ноутбука позже T_grace, получит то же имя и цвет.
// Ограничен по размеру (LRU), размер <= 0 отключает кеш.
type IdentityCache struct {
	cache *lru.Cache
}

func NewIdentityCache(size int) *IdentityCache {
	if size <= 0 {
		return &IdentityCache{}
	}
	return &IdentityCache{cache: lru.New(size)}
}

// Remember сохраняет идентичность сессии.
func (c *IdentityCache) Remember(token string, id Identity) {
	if c.cache == nil || token == "" {
		return
	}
	c.cache.Add(token, id)
}

// Recall достает идентичность, не удаляя её.
// Запись снимает Forget, когда соединение сессии действительно принято.
func (c *IdentityCache) Recall(token string) (Identity, bool) {
	if c.cache == nil || token == "" {
		return Identity{}, false
	}
	v, ok := c.cache.Get(token)
	if !ok {
		return Identity{}, false
	}
	return v.(Identity), true
}

// Forget забывает сессию: она снова живая.
func (c *IdentityCache) Forget(token string) {
	if c.cache == nil || token == "" {
		return
	}
	c.cache.Remove(token)
}

// Len - число запомненных сессий.
func (c *IdentityCache) Len() int {
	if c.cache == nil {
		return 0
	}
	return c.cache.Len()
}
