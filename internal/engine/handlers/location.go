package handlers

import (
	"time"

	"tracking-server/internal/domain"
	"tracking-server/pkg/api"
)

// HandleLocation записывает новую позицию участника.
func HandleLocation(ctx Context, p api.LocationPayload) (Result, error) {
	before, ok := ctx.Registry.Get(ctx.ConnectionID)
	if !ok {
		return Result{}, domain.ErrStaleReference
	}

	fixAt := ctx.Now
	if p.Timestamp != nil && *p.Timestamp > 0 {
		fixAt = time.UnixMilli(*p.Timestamp)
	}

	updated, err := ctx.Registry.OnLocationUpdate(ctx.ConnectionID, domain.Location{
		Latitude:     *p.Latitude,
		Longitude:    *p.Longitude,
		Accuracy:     p.Accuracy,
		FixTimestamp: fixAt,
	}, ctx.Now)
	if err != nil {
		return Result{}, err
	}

	return Result{
		Effect:       EffectLocationUpdated,
		Participant:  updated,
		Reactivated:  before.State == domain.Offline,
		SessionToken: p.SessionToken,
	}, nil
}
