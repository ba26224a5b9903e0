package handlers

import "tracking-server/internal/domain"

// HandleHeartbeat обновляет активность без смены позиции.
func HandleHeartbeat(ctx Context) (Result, error) {
	before, ok := ctx.Registry.Get(ctx.ConnectionID)
	if !ok {
		return Result{}, domain.ErrStaleReference
	}

	updated, err := ctx.Registry.OnHeartbeat(ctx.ConnectionID, ctx.Now)
	if err != nil {
		return Result{}, err
	}

	return Result{
		Effect:      EffectHeartbeat,
		Participant: updated,
		Reactivated: before.State == domain.Offline,
	}, nil
}
