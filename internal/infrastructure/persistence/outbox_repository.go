package persistence

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/ignatzorin/marketplace-backend/internal/domain/event"
	"github.com/ignatzorin/marketplace-backend/internal/domain/repository"
	"github.com/ignatzorin/marketplace-backend/internal/pkg/apperror"
)

type outboxRow struct {
	ID            uuid.UUID      `db:"id"`
	Name          string         `db:"name"`
	AggregateType string         `db:"aggregate_type"`
	AggregateID   uuid.UUID      `db:"aggregate_id"`
	Recipients    pq.StringArray `db:"recipients"`
	Payload       []byte         `db:"payload"`
	CreatedAt     time.Time      `db:"created_at"`
	PublishedAt   *time.Time     `db:"published_at"`
}

func (r outboxRow) toEvent() (*event.Event, error) {
	recipients := make([]uuid.UUID, 0, len(r.Recipients))
	for _, s := range r.Recipients {
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, err
		}
		recipients = append(recipients, id)
	}
	return &event.Event{
		ID:            r.ID,
		Name:          event.Name(r.Name),
		AggregateType: r.AggregateType,
		AggregateID:   r.AggregateID,
		Recipients:    recipients,
		Payload:       r.Payload,
		CreatedAt:     r.CreatedAt,
		PublishedAt:   r.PublishedAt,
	}, nil
}

type OutboxRepository struct {
	db *sqlx.DB
}

func NewOutboxRepository(db *sqlx.DB) *OutboxRepository {
	return &OutboxRepository{db: db}
}

func (r *OutboxRepository) Add(ctx context.Context, e *event.Event) error {
	query := `
		INSERT INTO outbox_events (id, name, aggregate_type, aggregate_id, recipients, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := conn(ctx, r.db).ExecContext(ctx, query,
		e.ID,
		string(e.Name),
		e.AggregateType,
		e.AggregateID,
		pq.Array(uuidStrings(e.Recipients)),
		[]byte(e.Payload),
		e.CreatedAt,
	)
	if err != nil {
		return apperror.Internal(err, "не удалось записать событие")
	}
	return nil
}

// FetchPending блокирует выбранные строки (SKIP LOCKED), чтобы несколько
// экземпляров сервиса не публиковали одно событие одновременно.
func (r *OutboxRepository) FetchPending(ctx context.Context, limit int) ([]*event.Event, error) {
	query := `
		SELECT id, name, aggregate_type, aggregate_id, recipients, payload, created_at, published_at
		FROM outbox_events
		WHERE published_at IS NULL
		ORDER BY created_at, id
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`
	var rows []outboxRow
	if err := conn(ctx, r.db).SelectContext(ctx, &rows, query, limit); err != nil {
		return nil, apperror.Internal(err, "не удалось прочитать outbox")
	}

	out := make([]*event.Event, 0, len(rows))
	for _, row := range rows {
		evt, err := row.toEvent()
		if err != nil {
			return nil, apperror.Internal(err, "повреждена запись outbox")
		}
		out = append(out, evt)
	}
	return out, nil
}

func (r *OutboxRepository) MarkPublished(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := conn(ctx, r.db).ExecContext(ctx,
		`UPDATE outbox_events SET published_at = $2 WHERE id = ANY($1)`,
		pq.Array(uuidStrings(ids)), time.Now().UTC())
	if err != nil {
		return apperror.Internal(err, "не удалось отметить события опубликованными")
	}
	return nil
}

var _ repository.OutboxRepository = (*OutboxRepository)(nil)
