package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/marketplace-backend/internal/domain/entity"
	"github.com/ignatzorin/marketplace-backend/internal/domain/repository"
	"github.com/ignatzorin/marketplace-backend/internal/domain/valueobject"
	"github.com/ignatzorin/marketplace-backend/internal/pkg/apperror"
)

const (
	disputeColumns = `d.id, d.transaction_id, d.initiator_id, d.reason, d.description, d.status, d.mediator_id,
	d.resolution, d.version, d.created_at, d.updated_at, d.resolved_at, d.closed_at`

	// Частичный уникальный индекс: не больше одного незакрытого спора на сделку.
	openDisputeIndex = "disputes_one_open_per_transaction"
)

type disputeRow struct {
	ID            uuid.UUID      `db:"id"`
	TransactionID uuid.UUID      `db:"transaction_id"`
	InitiatorID   uuid.UUID      `db:"initiator_id"`
	Reason        string         `db:"reason"`
	Description   string         `db:"description"`
	Status        string         `db:"status"`
	MediatorID    *uuid.UUID     `db:"mediator_id"`
	Resolution    sql.NullString `db:"resolution"`
	Version       int64          `db:"version"`
	CreatedAt     time.Time      `db:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at"`
	ResolvedAt    *time.Time     `db:"resolved_at"`
	ClosedAt      *time.Time     `db:"closed_at"`
}

func (r disputeRow) toEntity() *entity.Dispute {
	d := &entity.Dispute{
		ID:            r.ID,
		TransactionID: r.TransactionID,
		InitiatorID:   r.InitiatorID,
		Reason:        r.Reason,
		Description:   r.Description,
		Status:        valueobject.DisputeStatus(r.Status),
		MediatorID:    r.MediatorID,
		Version:       r.Version,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
		ResolvedAt:    r.ResolvedAt,
		ClosedAt:      r.ClosedAt,
	}
	if r.Resolution.Valid {
		res := r.Resolution.String
		d.Resolution = &res
	}
	return d
}

func resolutionArg(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

type DisputeRepository struct {
	db *sqlx.DB
}

func NewDisputeRepository(db *sqlx.DB) *DisputeRepository {
	return &DisputeRepository{db: db}
}

func (r *DisputeRepository) Create(ctx context.Context, d *entity.Dispute) error {
	query := `
		INSERT INTO disputes (id, transaction_id, initiator_id, reason, description, status, mediator_id,
			resolution, version, created_at, updated_at, resolved_at, closed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err := conn(ctx, r.db).ExecContext(ctx, query,
		d.ID,
		d.TransactionID,
		d.InitiatorID,
		d.Reason,
		d.Description,
		string(d.Status),
		d.MediatorID,
		resolutionArg(d.Resolution),
		d.Version,
		d.CreatedAt,
		d.UpdatedAt,
		d.ResolvedAt,
		d.ClosedAt,
	)
	if err != nil {
		if isUniqueViolation(err, openDisputeIndex) {
			return apperror.ErrAlreadyDisputed.WithDetail("transaction_id", d.TransactionID.String())
		}
		return apperror.Internal(err, "не удалось создать спор")
	}
	return nil
}

func (r *DisputeRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Dispute, error) {
	return r.findOne(ctx, `SELECT `+disputeColumns+` FROM disputes d WHERE d.id = $1`, id)
}

func (r *DisputeRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*entity.Dispute, error) {
	return r.findOne(ctx, `SELECT `+disputeColumns+` FROM disputes d WHERE d.id = $1 FOR UPDATE`, id)
}

func (r *DisputeRepository) findOne(ctx context.Context, query string, args ...interface{}) (*entity.Dispute, error) {
	var row disputeRow
	if err := conn(ctx, r.db).GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.ErrDisputeNotFound
		}
		return nil, apperror.Internal(err, "не удалось загрузить спор")
	}
	return row.toEntity(), nil
}

func (r *DisputeRepository) FindOpenByTransaction(ctx context.Context, transactionID uuid.UUID) (*entity.Dispute, error) {
	d, err := r.findOne(ctx,
		`SELECT `+disputeColumns+` FROM disputes d WHERE d.transaction_id = $1 AND d.status <> $2`,
		transactionID, string(valueobject.DisputeStatusClosed))
	if apperror.IsNotFound(err) {
		return nil, nil
	}
	return d, err
}

func (r *DisputeRepository) Update(ctx context.Context, d *entity.Dispute) error {
	query := `
		UPDATE disputes
		SET status = $3, mediator_id = $4, resolution = $5, updated_at = $6,
		    resolved_at = $7, closed_at = $8, version = version + 1
		WHERE id = $1 AND version = $2
	`
	q := conn(ctx, r.db)
	result, err := q.ExecContext(ctx, query,
		d.ID,
		d.Version,
		string(d.Status),
		d.MediatorID,
		resolutionArg(d.Resolution),
		d.UpdatedAt,
		d.ResolvedAt,
		d.ClosedAt,
	)
	if err != nil {
		return apperror.Internal(err, "не удалось обновить спор")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return apperror.Internal(err, "не удалось проверить результат обновления")
	}
	if rows == 0 {
		var exists bool
		if err := q.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM disputes WHERE id = $1)`, d.ID); err != nil {
			return apperror.Internal(err, "не удалось проверить спор")
		}
		if !exists {
			return apperror.ErrDisputeNotFound
		}
		return apperror.ErrConflictRace.WithDetail("dispute_id", d.ID.String())
	}

	d.Version++
	return nil
}

func (r *DisputeRepository) ListForActor(ctx context.Context, actorID uuid.UUID, f repository.DisputeFilter) ([]*entity.Dispute, error) {
	var w filter
	switch f.Role {
	case valueobject.RoleClientOrBuyer:
		w.add("t.client_id = ?", actorID)
	case valueobject.RoleFreelancerOrSeller:
		w.add("t.counterparty_id = ?", actorID)
	case valueobject.RoleMediator:
		w.add("d.mediator_id = ?", actorID)
	default:
		w.add("(t.client_id = ? OR t.counterparty_id = ? OR d.mediator_id = ?)", actorID)
	}
	if f.Status != "" {
		w.add("d.status = ?", string(f.Status))
	}

	query := `SELECT ` + disputeColumns + ` FROM disputes d JOIN transactions t ON t.id = d.transaction_id` +
		w.where() + ` ORDER BY d.created_at DESC` + w.page(f.Limit, f.Offset)
	return r.list(ctx, query, w.args...)
}

func (r *DisputeRepository) ListUnassigned(ctx context.Context, limit, offset int) ([]*entity.Dispute, error) {
	var w filter
	w.add("d.status <> ?", string(valueobject.DisputeStatusClosed))
	query := `SELECT ` + disputeColumns + ` FROM disputes d` + w.where() +
		` AND d.mediator_id IS NULL ORDER BY d.created_at DESC` + w.page(limit, offset)
	return r.list(ctx, query, w.args...)
}

func (r *DisputeRepository) list(ctx context.Context, query string, args ...interface{}) ([]*entity.Dispute, error) {
	var rows []disputeRow
	if err := conn(ctx, r.db).SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, apperror.Internal(err, "не удалось получить список споров")
	}
	out := make([]*entity.Dispute, len(rows))
	for i, row := range rows {
		out[i] = row.toEntity()
	}
	return out, nil
}

type evidenceRow struct {
	ID         uuid.UUID `db:"id"`
	DisputeID  uuid.UUID `db:"dispute_id"`
	UploaderID uuid.UUID `db:"uploader_id"`
	Files      []byte    `db:"files"`
	CreatedAt  time.Time `db:"created_at"`
}

type EvidenceRepository struct {
	db *sqlx.DB
}

func NewEvidenceRepository(db *sqlx.DB) *EvidenceRepository {
	return &EvidenceRepository{db: db}
}

func (r *EvidenceRepository) Append(ctx context.Context, e *entity.Evidence) error {
	files, err := json.Marshal(e.Files)
	if err != nil {
		return apperror.Internal(err, "не удалось сериализовать файлы")
	}
	_, err = conn(ctx, r.db).ExecContext(ctx,
		`INSERT INTO evidence (id, dispute_id, uploader_id, files, created_at) VALUES ($1, $2, $3, $4, $5)`,
		e.ID, e.DisputeID, e.UploaderID, files, e.CreatedAt)
	if err != nil {
		return apperror.Internal(err, "не удалось сохранить доказательства")
	}
	return nil
}

func (r *EvidenceRepository) ListByDispute(ctx context.Context, disputeID uuid.UUID) ([]entity.Evidence, error) {
	var rows []evidenceRow
	err := conn(ctx, r.db).SelectContext(ctx, &rows,
		`SELECT id, dispute_id, uploader_id, files, created_at FROM evidence WHERE dispute_id = $1 ORDER BY created_at, id`,
		disputeID)
	if err != nil {
		return nil, apperror.Internal(err, "не удалось загрузить доказательства")
	}

	out := make([]entity.Evidence, len(rows))
	for i, row := range rows {
		var files []entity.FileRef
		if err := json.Unmarshal(row.Files, &files); err != nil {
			return nil, apperror.Internal(err, "повреждён список файлов")
		}
		out[i] = entity.Evidence{
			ID:         row.ID,
			DisputeID:  row.DisputeID,
			UploaderID: row.UploaderID,
			Files:      files,
			CreatedAt:  row.CreatedAt,
		}
	}
	return out, nil
}

type messageRow struct {
	ID        uuid.UUID `db:"id"`
	DisputeID uuid.UUID `db:"dispute_id"`
	SenderID  uuid.UUID `db:"sender_id"`
	Text      string    `db:"text"`
	Seq       int64     `db:"seq"`
	CreatedAt time.Time `db:"created_at"`
}

type MessageRepository struct {
	db *sqlx.DB
}

func NewMessageRepository(db *sqlx.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

// Append вычисляет Seq как MAX+1. Вызывающий держит блокировку строки спора,
// а уникальный ключ (dispute_id, seq) страхует от гонки вне транзакции.
func (r *MessageRepository) Append(ctx context.Context, m *entity.MediationMessage) error {
	query := `
		INSERT INTO mediation_messages (id, dispute_id, sender_id, text, seq, created_at)
		SELECT $1::uuid, $2::uuid, $3::uuid, $4::text, COALESCE(MAX(seq), 0) + 1, $5::timestamptz
		FROM mediation_messages WHERE dispute_id = $2::uuid
		RETURNING seq
	`
	var seq int64
	err := conn(ctx, r.db).GetContext(ctx, &seq, query, m.ID, m.DisputeID, m.SenderID, m.Text, m.CreatedAt)
	if err != nil {
		if isUniqueViolation(err, "") {
			return apperror.ErrConflictRace.WithDetail("dispute_id", m.DisputeID.String())
		}
		return apperror.Internal(err, "не удалось сохранить сообщение")
	}
	m.Seq = seq
	return nil
}

func (r *MessageRepository) ListByDispute(ctx context.Context, disputeID uuid.UUID) ([]entity.MediationMessage, error) {
	var rows []messageRow
	err := conn(ctx, r.db).SelectContext(ctx, &rows,
		`SELECT id, dispute_id, sender_id, text, seq, created_at FROM mediation_messages WHERE dispute_id = $1 ORDER BY seq`,
		disputeID)
	if err != nil {
		return nil, apperror.Internal(err, "не удалось загрузить сообщения")
	}

	out := make([]entity.MediationMessage, len(rows))
	for i, row := range rows {
		out[i] = entity.MediationMessage(row)
	}
	return out, nil
}

var (
	_ repository.DisputeRepository  = (*DisputeRepository)(nil)
	_ repository.EvidenceRepository = (*EvidenceRepository)(nil)
	_ repository.MessageRepository  = (*MessageRepository)(nil)
)
