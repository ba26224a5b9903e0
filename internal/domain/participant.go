package domain

import "time"

// OnlineState - статус участника.
type OnlineState uint8

const (
	Online OnlineState = iota
	Offline
)

func (s OnlineState) String() string {
	if s == Offline {
		return "offline"
	}
	return "online"
}

// Location - последний геофикс участника.
type Location struct {
	Latitude     float64
	Longitude    float64
	Accuracy     *float64 // nil, если клиент не прислал точность
	FixTimestamp time.Time
}

// Attributes - косметика, назначаемая при подключении и не меняющаяся потом.
type Attributes struct {
	StableUserID string
	DisplayName  string
	Color        string
	DeviceClass  string
	SessionToken string
}

// Participant - серверная запись одного живого соединения.
type Participant struct {
	ConnectionID ConnectionID
	StableUserID string
	DisplayName  string
	Color        string
	DeviceClass  string
	SessionToken string

	// Location == nil до первого обновления. После - никогда не сбрасывается.
	Location *Location

	// LastActivityAt только растет.
	LastActivityAt time.Time
	ConnectedAt    time.Time
	State          OnlineState
}

// HasLocation сообщает, присылал ли участник хотя бы одну позицию.
func (p *Participant) HasLocation() bool {
	return p.Location != nil
}

// InactiveFor - сколько прошло с последней активности.
func (p *Participant) InactiveFor(now time.Time) time.Duration {
	return now.Sub(p.LastActivityAt)
}

// Touch сдвигает LastActivityAt вперед. Время назад не двигается.
func (p *Participant) Touch(now time.Time) {
	if now.After(p.LastActivityAt) {
		p.LastActivityAt = now
	}
}

// Clone возвращает копию, которую можно отдавать за пределы владельца реестра.
func (p *Participant) Clone() Participant {
	c := *p
	if p.Location != nil {
		loc := *p.Location
		if p.Location.Accuracy != nil {
			acc := *p.Location.Accuracy
			loc.Accuracy = &acc
		}
		c.Location = &loc
	}
	return c
}
