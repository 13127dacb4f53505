package auth

import (
	"context"

	"github.com/google/uuid"

	"github.com/ignatzorin/marketplace-backend/internal/domain/entity"
	"github.com/ignatzorin/marketplace-backend/internal/domain/repository"
)

type claimsKey struct{}

// WithClaims кладёт проверенные данные токена в контекст запроса.
func WithClaims(ctx context.Context, c Claims) context.Context {
	return context.WithValue(ctx, claimsKey{}, c)
}

func ClaimsFrom(ctx context.Context) (Claims, bool) {
	c, ok := ctx.Value(claimsKey{}).(Claims)
	return c, ok
}

// TokenIdentity дополняет хранилище флагом медиатора из токена текущего запроса.
// Для остальных пользователей (например, кандидата в медиаторы) решает хранилище.
type TokenIdentity struct {
	base repository.IdentityProvider
}

func NewTokenIdentity(base repository.IdentityProvider) *TokenIdentity {
	return &TokenIdentity{base: base}
}

func (p *TokenIdentity) Actor(ctx context.Context, id uuid.UUID) (entity.Actor, error) {
	if c, ok := ClaimsFrom(ctx); ok && c.UserID == id && c.IsMediator {
		return entity.Actor{ID: id, IsMediator: true}, nil
	}
	return p.base.Actor(ctx, id)
}
