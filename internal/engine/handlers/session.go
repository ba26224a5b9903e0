package handlers

import (
	"tracking-server/internal/domain"
	"tracking-server/pkg/api"
)

// HandleRegisterSession закрепляет за соединением токен сессии.
// Без токена выпускается новый. Поиск вкладок-призраков делает движок.
func HandleRegisterSession(ctx Context, p api.SessionPayload) (Result, error) {
	if !ctx.Registry.Has(ctx.ConnectionID) {
		return Result{}, domain.ErrStaleReference
	}

	token := ctx.Sessions.Register(ctx.ConnectionID, p.SessionToken)
	participant, err := ctx.Registry.AttachSession(ctx.ConnectionID, token)
	if err != nil {
		return Result{}, err
	}

	return Result{
		Effect:       EffectSessionRegistered,
		Participant:  participant,
		SessionToken: token,
	}, nil
}
