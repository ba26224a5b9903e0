package handlers

import "tracking-server/internal/domain"

// HandleLeaving - вкладка закрывается штатно. Удаляет движок, минуя grace-период.
func HandleLeaving(ctx Context) (Result, error) {
	p, ok := ctx.Registry.Get(ctx.ConnectionID)
	if !ok {
		return Result{}, domain.ErrStaleReference
	}
	return Result{Effect: EffectLeaving, Participant: p}, nil
}
