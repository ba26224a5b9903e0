package engine

import (
	"tracking-server/internal/domain"
	"tracking-server/pkg/api"
)

// toParticipantView конвертирует доменную запись в DTO с координатами
func toParticipantView(p domain.Participant) api.ParticipantView {
	view := api.ParticipantView{
		ConnectionID:   p.ConnectionID.String(),
		StableUserID:   p.StableUserID,
		DisplayName:    p.DisplayName,
		Color:          p.Color,
		DeviceClass:    p.DeviceClass,
		OnlineState:    stateString(p.State),
		LastActivityAt: p.LastActivityAt.UnixMilli(),
	}
	if p.Location != nil {
		view.Location = &api.LocationView{
			Latitude:     p.Location.Latitude,
			Longitude:    p.Location.Longitude,
			Accuracy:     p.Location.Accuracy,
			FixTimestamp: p.Location.FixTimestamp.UnixMilli(),
		}
	}
	return view
}

// toRosterEntry - только косметика и статус
func toRosterEntry(p domain.Participant) api.RosterEntry {
	return api.RosterEntry{
		ConnectionID:   p.ConnectionID.String(),
		StableUserID:   p.StableUserID,
		DisplayName:    p.DisplayName,
		Color:          p.Color,
		DeviceClass:    p.DeviceClass,
		OnlineState:    stateString(p.State),
		LastActivityAt: p.LastActivityAt.UnixMilli(),
	}
}

func toRosterView(participants []domain.Participant) api.RosterView {
	roster := api.RosterView{
		Total: len(participants),
		Users: make([]api.RosterEntry, 0, len(participants)),
	}
	for _, p := range participants {
		if p.State == domain.Offline {
			roster.Offline++
		} else {
			roster.Online++
		}
		roster.Users = append(roster.Users, toRosterEntry(p))
	}
	return roster
}

// toSnapshotView - только те, у кого уже есть позиция
func toSnapshotView(participants []domain.Participant) api.SnapshotView {
	snap := api.SnapshotView{Users: make([]api.ParticipantView, 0, len(participants))}
	for _, p := range participants {
		if p.HasLocation() {
			snap.Users = append(snap.Users, toParticipantView(p))
		}
	}
	return snap
}

func toStatusView(p domain.Participant) api.StatusView {
	return api.StatusView{
		ConnectionID:   p.ConnectionID.String(),
		OnlineState:    stateString(p.State),
		LastActivityAt: p.LastActivityAt.UnixMilli(),
	}
}

func stateString(s domain.OnlineState) string {
	if s == domain.Offline {
		return api.StateOffline
	}
	return api.StateOnline
}
