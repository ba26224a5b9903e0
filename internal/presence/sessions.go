package presence

import (
	"tracking-server/internal/domain"
	"tracking-server/pkg/utils"
)

// Sessions связывает клиентский токен сессии с набором соединений (вкладок).
// Инвариант: пустых наборов не бывает, соединение состоит максимум в одной сессии.
type Sessions struct {
	byToken map[string][]domain.ConnectionID
	byConn  map[domain.ConnectionID]string
	mint    func() string
}

func NewSessions() *Sessions {
	return &Sessions{
		byToken: make(map[string][]domain.ConnectionID),
		byConn:  make(map[domain.ConnectionID]string),
		mint:    utils.GenerateID,
	}
}

// Register добавляет соединение в сессию и возвращает токен.
// Пустой токен - выпускаем новый. Сессия соединения назначается один раз:
// повторная регистрация возвращает уже закрепленный токен.
func (s *Sessions) Register(id domain.ConnectionID, token string) string {
	if current, ok := s.byConn[id]; ok {
		return current
	}
	if token == "" {
		token = s.mint()
	}
	s.byToken[token] = append(s.byToken[token], id)
	s.byConn[id] = token
	return token
}

// Unregister убирает соединение из его сессии. Пустая сессия удаляется.
func (s *Sessions) Unregister(id domain.ConnectionID) bool {
	token, ok := s.byConn[id]
	if !ok {
		return false
	}
	delete(s.byConn, id)

	conns := s.byToken[token]
	for idx, cur := range conns {
		if cur == id {
			conns = append(conns[:idx], conns[idx+1:]...)
			break
		}
	}
	if len(conns) == 0 {
		delete(s.byToken, token)
	} else {
		s.byToken[token] = conns
	}
	return true
}

// Peers - соединения сессии в порядке регистрации (копия).
func (s *Sessions) Peers(token string) []domain.ConnectionID {
	conns := s.byToken[token]
	out := make([]domain.ConnectionID, len(conns))
	copy(out, conns)
	return out
}

// TokenOf - токен сессии соединения.
func (s *Sessions) TokenOf(id domain.ConnectionID) (string, bool) {
	token, ok := s.byConn[id]
	return token, ok
}

// Len - число живых сессий.
func (s *Sessions) Len() int {
	return len(s.byToken)
}

// Dump - копия всех сессий для debug-эндпоинта.
func (s *Sessions) Dump() map[string][]string {
	out := make(map[string][]string, len(s.byToken))
	for token, conns := range s.byToken {
		ids := make([]string, 0, len(conns))
		for _, c := range conns {
			ids = append(ids, c.String())
		}
		out[token] = ids
	}
	return out
}
