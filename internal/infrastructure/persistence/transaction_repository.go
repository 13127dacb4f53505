package persistence

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/ignatzorin/marketplace-backend/internal/domain/entity"
	"github.com/ignatzorin/marketplace-backend/internal/domain/repository"
	"github.com/ignatzorin/marketplace-backend/internal/domain/valueobject"
	"github.com/ignatzorin/marketplace-backend/internal/pkg/apperror"
)

const transactionColumns = `id, kind, title, client_id, counterparty_id, gig_id, status, progress,
	price_amount, price_currency, version, created_at, status_changed_at, updated_at`

type transactionRow struct {
	ID              uuid.UUID     `db:"id"`
	Kind            string        `db:"kind"`
	Title           string        `db:"title"`
	ClientID        uuid.UUID     `db:"client_id"`
	CounterpartyID  *uuid.UUID    `db:"counterparty_id"`
	GigID           *uuid.UUID    `db:"gig_id"`
	Status          string        `db:"status"`
	Progress        sql.NullInt64 `db:"progress"`
	PriceAmount     float64       `db:"price_amount"`
	PriceCurrency   string        `db:"price_currency"`
	Version         int64         `db:"version"`
	CreatedAt       time.Time     `db:"created_at"`
	StatusChangedAt time.Time     `db:"status_changed_at"`
	UpdatedAt       time.Time     `db:"updated_at"`
}

func (r transactionRow) toEntity() *entity.Transaction {
	t := &entity.Transaction{
		ID:              r.ID,
		Kind:            valueobject.TransactionKind(r.Kind),
		Title:           r.Title,
		ClientID:        r.ClientID,
		CounterpartyID:  r.CounterpartyID,
		GigID:           r.GigID,
		Status:          valueobject.TransactionStatus(r.Status),
		Price:           valueobject.Money{Amount: r.PriceAmount, Currency: r.PriceCurrency},
		Version:         r.Version,
		CreatedAt:       r.CreatedAt,
		StatusChangedAt: r.StatusChangedAt,
		UpdatedAt:       r.UpdatedAt,
	}
	if r.Progress.Valid {
		p := valueobject.Percent(r.Progress.Int64)
		t.Progress = &p
	}
	return t
}

func progressArg(p *valueobject.Percent) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}

type TransactionRepository struct {
	db *sqlx.DB
}

func NewTransactionRepository(db *sqlx.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

func (r *TransactionRepository) Create(ctx context.Context, t *entity.Transaction) error {
	query := `
		INSERT INTO transactions (` + transactionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	_, err := conn(ctx, r.db).ExecContext(ctx, query,
		t.ID,
		string(t.Kind),
		t.Title,
		t.ClientID,
		t.CounterpartyID,
		t.GigID,
		string(t.Status),
		progressArg(t.Progress),
		t.Price.Amount,
		t.Price.Currency,
		t.Version,
		t.CreatedAt,
		t.StatusChangedAt,
		t.UpdatedAt,
	)
	if err != nil {
		return apperror.Internal(err, "не удалось создать сделку")
	}
	return nil
}

func (r *TransactionRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Transaction, error) {
	return r.find(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = $1`, id)
}

func (r *TransactionRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*entity.Transaction, error) {
	return r.find(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = $1 FOR UPDATE`, id)
}

func (r *TransactionRepository) find(ctx context.Context, query string, id uuid.UUID) (*entity.Transaction, error) {
	q := conn(ctx, r.db)

	var row transactionRow
	if err := q.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.ErrTransactionNotFound
		}
		return nil, apperror.Internal(err, "не удалось загрузить сделку")
	}

	t := row.toEntity()
	milestones, err := selectMilestones(ctx, q, `WHERE transaction_id = $1`, id)
	if err != nil {
		return nil, err
	}
	t.Milestones = milestones
	return t, nil
}

// Update выполняет compare-and-set по версии.
func (r *TransactionRepository) Update(ctx context.Context, t *entity.Transaction) error {
	query := `
		UPDATE transactions
		SET counterparty_id = $3, status = $4, progress = $5, title = $6,
		    status_changed_at = $7, updated_at = $8, version = version + 1
		WHERE id = $1 AND version = $2
	`
	q := conn(ctx, r.db)
	result, err := q.ExecContext(ctx, query,
		t.ID,
		t.Version,
		t.CounterpartyID,
		string(t.Status),
		progressArg(t.Progress),
		t.Title,
		t.StatusChangedAt,
		t.UpdatedAt,
	)
	if err != nil {
		return apperror.Internal(err, "не удалось обновить сделку")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return apperror.Internal(err, "не удалось проверить результат обновления")
	}
	if rows == 0 {
		var exists bool
		if err := q.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM transactions WHERE id = $1)`, t.ID); err != nil {
			return apperror.Internal(err, "не удалось проверить сделку")
		}
		if !exists {
			return apperror.ErrTransactionNotFound
		}
		return apperror.ErrConflictRace.WithDetail("transaction_id", t.ID.String())
	}

	t.Version++
	return nil
}

func (r *TransactionRepository) ListForActor(ctx context.Context, actorID uuid.UUID, f repository.TransactionFilter) ([]*entity.Transaction, error) {
	var w filter
	switch f.Role {
	case valueobject.RoleClientOrBuyer:
		w.add("client_id = ?", actorID)
	case valueobject.RoleFreelancerOrSeller:
		w.add("counterparty_id = ?", actorID)
	default:
		w.add("(client_id = ? OR counterparty_id = ?)", actorID)
	}
	if f.Kind != "" {
		w.add("kind = ?", string(f.Kind))
	}
	if f.Status != "" {
		w.add("status = ?", string(f.Status))
	}

	query := `SELECT ` + transactionColumns + ` FROM transactions` + w.where() +
		` ORDER BY created_at DESC` + w.page(f.Limit, f.Offset)

	q := conn(ctx, r.db)
	var rows []transactionRow
	if err := q.SelectContext(ctx, &rows, query, w.args...); err != nil {
		return nil, apperror.Internal(err, "не удалось получить список сделок")
	}
	if len(rows) == 0 {
		return []*entity.Transaction{}, nil
	}

	ids := make([]uuid.UUID, len(rows))
	for i, row := range rows {
		ids[i] = row.ID
	}
	milestones, err := selectMilestones(ctx, q, `WHERE transaction_id = ANY($1)`, pq.Array(uuidStrings(ids)))
	if err != nil {
		return nil, err
	}
	byTx := make(map[uuid.UUID][]entity.Milestone, len(rows))
	for _, m := range milestones {
		byTx[m.TransactionID] = append(byTx[m.TransactionID], m)
	}

	out := make([]*entity.Transaction, len(rows))
	for i, row := range rows {
		t := row.toEntity()
		t.Milestones = byTx[t.ID]
		out[i] = t
	}
	return out, nil
}

const milestoneColumns = `id, transaction_id, title, description, status, progress, created_at, updated_at`

type milestoneRow struct {
	ID            uuid.UUID `db:"id"`
	TransactionID uuid.UUID `db:"transaction_id"`
	Title         string    `db:"title"`
	Description   string    `db:"description"`
	Status        string    `db:"status"`
	Progress      int       `db:"progress"`
	CreatedAt     time.Time `db:"created_at"`
	UpdatedAt     time.Time `db:"updated_at"`
}

func (r milestoneRow) toEntity() entity.Milestone {
	return entity.Milestone{
		ID:            r.ID,
		TransactionID: r.TransactionID,
		Title:         r.Title,
		Description:   r.Description,
		Status:        valueobject.MilestoneStatus(r.Status),
		Progress:      valueobject.Percent(r.Progress),
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}

func selectMilestones(ctx context.Context, q querier, where string, args ...interface{}) ([]entity.Milestone, error) {
	var rows []milestoneRow
	query := `SELECT ` + milestoneColumns + ` FROM milestones ` + where + ` ORDER BY created_at, id`
	if err := q.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, apperror.Internal(err, "не удалось загрузить этапы")
	}
	out := make([]entity.Milestone, len(rows))
	for i, row := range rows {
		out[i] = row.toEntity()
	}
	return out, nil
}

type MilestoneRepository struct {
	db *sqlx.DB
}

func NewMilestoneRepository(db *sqlx.DB) *MilestoneRepository {
	return &MilestoneRepository{db: db}
}

func (r *MilestoneRepository) Create(ctx context.Context, m *entity.Milestone) error {
	query := `
		INSERT INTO milestones (` + milestoneColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := conn(ctx, r.db).ExecContext(ctx, query,
		m.ID, m.TransactionID, m.Title, m.Description, string(m.Status), int(m.Progress), m.CreatedAt, m.UpdatedAt)
	if err != nil {
		return apperror.Internal(err, "не удалось создать этап")
	}
	return nil
}

func (r *MilestoneRepository) Update(ctx context.Context, m *entity.Milestone) error {
	query := `
		UPDATE milestones
		SET title = $2, description = $3, status = $4, progress = $5, updated_at = $6
		WHERE id = $1
	`
	result, err := conn(ctx, r.db).ExecContext(ctx, query,
		m.ID, m.Title, m.Description, string(m.Status), int(m.Progress), m.UpdatedAt)
	if err != nil {
		return apperror.Internal(err, "не удалось обновить этап")
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return apperror.Internal(err, "не удалось проверить результат обновления")
	}
	if rows == 0 {
		return apperror.ErrMilestoneNotFound
	}
	return nil
}

func (r *MilestoneRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Milestone, error) {
	milestones, err := selectMilestones(ctx, conn(ctx, r.db), `WHERE id = $1`, id)
	if err != nil {
		return nil, err
	}
	if len(milestones) == 0 {
		return nil, apperror.ErrMilestoneNotFound
	}
	return &milestones[0], nil
}

func (r *MilestoneRepository) ListByTransaction(ctx context.Context, transactionID uuid.UUID) ([]entity.Milestone, error) {
	return selectMilestones(ctx, conn(ctx, r.db), `WHERE transaction_id = $1`, transactionID)
}

const applicationColumns = `id, job_id, freelancer_id, proposal, bid_amount, bid_currency, timeline, status, created_at, updated_at`

type applicationRow struct {
	ID           uuid.UUID `db:"id"`
	JobID        uuid.UUID `db:"job_id"`
	FreelancerID uuid.UUID `db:"freelancer_id"`
	Proposal     string    `db:"proposal"`
	BidAmount    float64   `db:"bid_amount"`
	BidCurrency  string    `db:"bid_currency"`
	Timeline     string    `db:"timeline"`
	Status       string    `db:"status"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

func (r applicationRow) toEntity() *entity.Application {
	return &entity.Application{
		ID:           r.ID,
		JobID:        r.JobID,
		FreelancerID: r.FreelancerID,
		Proposal:     r.Proposal,
		Bid:          valueobject.Money{Amount: r.BidAmount, Currency: r.BidCurrency},
		Timeline:     r.Timeline,
		Status:       valueobject.ApplicationStatus(r.Status),
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

type ApplicationRepository struct {
	db *sqlx.DB
}

func NewApplicationRepository(db *sqlx.DB) *ApplicationRepository {
	return &ApplicationRepository{db: db}
}

func (r *ApplicationRepository) Create(ctx context.Context, a *entity.Application) error {
	query := `
		INSERT INTO applications (` + applicationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := conn(ctx, r.db).ExecContext(ctx, query,
		a.ID, a.JobID, a.FreelancerID, a.Proposal, a.Bid.Amount, a.Bid.Currency,
		a.Timeline, string(a.Status), a.CreatedAt, a.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err, "applications_job_freelancer_key") {
			return apperror.Validation("вы уже откликнулись на эту вакансию")
		}
		return apperror.Internal(err, "не удалось создать заявку")
	}
	return nil
}

func (r *ApplicationRepository) Update(ctx context.Context, a *entity.Application) error {
	result, err := conn(ctx, r.db).ExecContext(ctx,
		`UPDATE applications SET status = $2, updated_at = $3 WHERE id = $1`,
		a.ID, string(a.Status), a.UpdatedAt)
	if err != nil {
		return apperror.Internal(err, "не удалось обновить заявку")
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return apperror.Internal(err, "не удалось проверить результат обновления")
	}
	if rows == 0 {
		return apperror.ErrApplicationNotFound
	}
	return nil
}

func (r *ApplicationRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Application, error) {
	var row applicationRow
	err := conn(ctx, r.db).GetContext(ctx, &row, `SELECT `+applicationColumns+` FROM applications WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.ErrApplicationNotFound
		}
		return nil, apperror.Internal(err, "не удалось загрузить заявку")
	}
	return row.toEntity(), nil
}

func (r *ApplicationRepository) ListByJob(ctx context.Context, jobID uuid.UUID) ([]*entity.Application, error) {
	var rows []applicationRow
	err := conn(ctx, r.db).SelectContext(ctx, &rows,
		`SELECT `+applicationColumns+` FROM applications WHERE job_id = $1 ORDER BY created_at, id`, jobID)
	if err != nil {
		return nil, apperror.Internal(err, "не удалось получить заявки")
	}
	out := make([]*entity.Application, len(rows))
	for i, row := range rows {
		out[i] = row.toEntity()
	}
	return out, nil
}

func (r *ApplicationRepository) ExistsForFreelancer(ctx context.Context, jobID, freelancerID uuid.UUID) (bool, error) {
	var exists bool
	err := conn(ctx, r.db).GetContext(ctx, &exists,
		`SELECT EXISTS(SELECT 1 FROM applications WHERE job_id = $1 AND freelancer_id = $2)`, jobID, freelancerID)
	if err != nil {
		return false, apperror.Internal(err, "не удалось проверить заявки")
	}
	return exists, nil
}

var (
	_ repository.TransactionRepository = (*TransactionRepository)(nil)
	_ repository.MilestoneRepository   = (*MilestoneRepository)(nil)
	_ repository.ApplicationRepository = (*ApplicationRepository)(nil)
)
