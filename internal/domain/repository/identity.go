package repository

import (
	"context"
	"io"

	"github.com/google/uuid"
	"github.com/ignatzorin/marketplace-backend/internal/domain/entity"
)

// IdentityProvider возвращает участника с глобальным флагом медиатора.
// Неизвестный пользователь считается обычным участником без флага.
type IdentityProvider interface {
	Actor(ctx context.Context, id uuid.UUID) (entity.Actor, error)
}

// BlobStore сохраняет файлы доказательств и возвращает ссылки на них.
type BlobStore interface {
	Save(ctx context.Context, disputeID uuid.UUID, name string, r io.Reader) (entity.FileRef, error)
	Delete(ctx context.Context, key string) error
}
