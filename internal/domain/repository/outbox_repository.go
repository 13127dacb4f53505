package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/ignatzorin/marketplace-backend/internal/domain/event"
)

// OutboxRepository хранит события, записанные в одной транзакции с изменением.
type OutboxRepository interface {
	Add(ctx context.Context, e *event.Event) error
	FetchPending(ctx context.Context, limit int) ([]*event.Event, error)
	MarkPublished(ctx context.Context, ids []uuid.UUID) error
}
