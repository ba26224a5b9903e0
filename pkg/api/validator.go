package api

import (
	"errors"
	"math"
)

// MaxSessionTokenLen ограничивает длину клиентского токена сессии.
const MaxSessionTokenLen = 128

// Validator - интерфейс, который могут реализовать DTO
type Validator interface {
	Validate() error
}

func (p LocationPayload) Validate() error {
	if p.Latitude == nil || p.Longitude == nil {
		return errors.New("latitude and longitude are required")
	}
	lat, lon := *p.Latitude, *p.Longitude
	if math.IsNaN(lat) || math.IsNaN(lon) || math.IsInf(lat, 0) || math.IsInf(lon, 0) {
		return errors.New("coordinates must be finite numbers")
	}
	if lat < -90 || lat > 90 {
		return errors.New("latitude out of range")
	}
	if lon < -180 || lon > 180 {
		return errors.New("longitude out of range")
	}
	if p.Accuracy != nil && (math.IsNaN(*p.Accuracy) || *p.Accuracy < 0) {
		return errors.New("accuracy must be non-negative")
	}
	if len(p.SessionToken) > MaxSessionTokenLen {
		return errors.New("sessionToken too long")
	}
	return nil
}

func (p SessionPayload) Validate() error {
	if len(p.SessionToken) > MaxSessionTokenLen {
		return errors.New("sessionToken too long")
	}
	return nil
}
