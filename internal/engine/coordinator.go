package engine

import (
	"time"

	"tracking-server/internal/domain"
	"tracking-server/pkg/api"
)

// Outbound - одно исходящее сообщение и его адресаты.
// To != "" - unicast. Иначе рассылка всем, кроме Except (если задан).
type Outbound struct {
	To      domain.ConnectionID
	Except  domain.ConnectionID
	Message api.ServerMessage
}

// IsBroadcast - сообщение для всех.
func (o Outbound) IsBroadcast() bool {
	return o.To == ""
}

// Coordinator решает, что и кому отправить по итогам события.
// Чистый слой: состояние не хранит и ничего не отправляет сам.
type Coordinator struct {
	EchoToSender   bool
	UpdateInterval time.Duration
}

func unicast(to domain.ConnectionID, event string, data interface{}) Outbound {
	return Outbound{To: to, Message: api.ServerMessage{Event: event, Data: data}}
}

func broadcast(event string, data interface{}) Outbound {
	return Outbound{Message: api.ServerMessage{Event: event, Data: data}}
}

// Connected: новичку - его идентичность и позиции всех, всем (и новичку) - ростер.
func (c Coordinator) Connected(p domain.Participant, all []domain.Participant) []Outbound {
	identity := api.IdentityView{
		ConnectionID:   p.ConnectionID.String(),
		StableUserID:   p.StableUserID,
		DisplayName:    p.DisplayName,
		Color:          p.Color,
		DeviceClass:    p.DeviceClass,
		SessionToken:   p.SessionToken,
		UpdateInterval: c.UpdateInterval.Milliseconds(),
	}
	return []Outbound{
		unicast(p.ConnectionID, api.EventUserRegistered, identity),
		unicast(p.ConnectionID, api.EventAllUsersLocations, toSnapshotView(all)),
		broadcast(api.EventUsersListUpdated, toRosterView(all)),
	}
}

// LocationUpdated: полная запись всем. Автору - только если включено эхо.
func (c Coordinator) LocationUpdated(p domain.Participant) []Outbound {
	out := broadcast(api.EventUserLocationUpdated, toParticipantView(p))
	if !c.EchoToSender {
		out.Except = p.ConnectionID
	}
	return []Outbound{out}
}

// Heartbeat: ack автору. Запись рассылаем, только если участник вернулся из оффлайна.
func (c Coordinator) Heartbeat(p domain.Participant, reactivated bool) []Outbound {
	out := []Outbound{unicast(p.ConnectionID, api.EventHeartbeatAck, api.HeartbeatAck{})}
	if reactivated {
		out = append(out, broadcast(api.EventUserLocationUpdated, toParticipantView(p)))
	}
	return out
}

// WentOffline: минимальная дельта статуса.
func (c Coordinator) WentOffline(p domain.Participant) []Outbound {
	return []Outbound{broadcast(api.EventUserStatusChanged, toStatusView(p))}
}

// Removed: уведомление об удалении, затем свежий ростер.
func (c Coordinator) Removed(id domain.ConnectionID, remaining []domain.Participant) []Outbound {
	return []Outbound{
		broadcast(api.EventUserDisconnected, api.RemovalView{ConnectionID: id.String()}),
		broadcast(api.EventUsersListUpdated, toRosterView(remaining)),
	}
}

// SessionRegistered: токен и соседние вкладки - только автору.
func (c Coordinator) SessionRegistered(p domain.Participant, token string, peers []domain.ConnectionID) []Outbound {
	ids := make([]string, 0, len(peers))
	for _, peer := range peers {
		if peer != p.ConnectionID {
			ids = append(ids, peer.String())
		}
	}
	return []Outbound{unicast(p.ConnectionID, api.EventSessionRegistered, api.SessionView{
		SessionToken: token,
		StableUserID: p.StableUserID,
		Peers:        ids,
	})}
}

// Rejected: кадр ошибки автору некорректного сообщения.
func (c Coordinator) Rejected(id domain.ConnectionID, code string, err error) []Outbound {
	return []Outbound{unicast(id, api.EventError, api.ErrorView{Code: code, Message: err.Error()})}
}
