// Package eventlog записывает доменные события в outbox в рамках текущей транзакции хранилища.
package eventlog

import (
	"context"

	"github.com/google/uuid"
	"github.com/ignatzorin/marketplace-backend/internal/domain/event"
	"github.com/ignatzorin/marketplace-backend/internal/domain/repository"
	"github.com/ignatzorin/marketplace-backend/internal/pkg/apperror"
)

type Recorder struct {
	outbox repository.OutboxRepository
}

func NewRecorder(outbox repository.OutboxRepository) *Recorder {
	return &Recorder{outbox: outbox}
}

// Record должен вызываться внутри TxManager.WithinTransaction того же изменения.
func (r *Recorder) Record(ctx context.Context, name event.Name, aggregateType string, aggregateID uuid.UUID, recipients []uuid.UUID, payload any) error {
	evt, err := event.New(name, aggregateType, aggregateID, recipients, payload)
	if err != nil {
		return apperror.Internal(err, "не удалось сформировать событие")
	}
	return r.outbox.Add(ctx, evt)
}
