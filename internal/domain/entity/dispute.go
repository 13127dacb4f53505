package entity

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ignatzorin/marketplace-backend/internal/domain/valueobject"
	"github.com/ignatzorin/marketplace-backend/internal/pkg/apperror"
)

// Dispute: эскалация по одной сделке. Открытым считается любой спор не в статусе CLOSED.
type Dispute struct {
	ID            uuid.UUID
	TransactionID uuid.UUID
	InitiatorID   uuid.UUID
	Reason        string
	Description   string
	Status        valueobject.DisputeStatus
	MediatorID    *uuid.UUID
	Resolution    *string
	Version       int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
	ResolvedAt    *time.Time
	ClosedAt      *time.Time

	Evidence []Evidence
	Messages []MediationMessage
}

func NewDispute(transactionID, initiatorID uuid.UUID, reason, description string) (*Dispute, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, apperror.Validation("причина спора обязательна")
	}

	now := time.Now().UTC()
	return &Dispute{
		ID:            uuid.New(),
		TransactionID: transactionID,
		InitiatorID:   initiatorID,
		Reason:        reason,
		Description:   strings.TrimSpace(description),
		Status:        valueobject.DisputeStatusOpened,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

func (d *Dispute) IsClosed() bool {
	return d.Status == valueobject.DisputeStatusClosed
}

func (d *Dispute) HasMediator() bool {
	return d.MediatorID != nil
}

func (d *Dispute) IsMediator(actorID uuid.UUID) bool {
	return d.MediatorID != nil && *d.MediatorID == actorID
}

// EnsureMutable запрещает любые изменения после закрытия спора.
func (d *Dispute) EnsureMutable() error {
	if d.IsClosed() {
		return apperror.ErrDisputeClosed.WithDetail("dispute_id", d.ID.String())
	}
	return nil
}

func (d *Dispute) AssignMediator(mediatorID uuid.UUID) error {
	if err := d.EnsureMutable(); err != nil {
		return err
	}
	d.MediatorID = &mediatorID
	d.UpdatedAt = time.Now().UTC()
	return nil
}

func (d *Dispute) SetStatus(status valueobject.DisputeStatus) error {
	if err := d.EnsureMutable(); err != nil {
		return err
	}
	if !status.IsValid() {
		return apperror.Validation("некорректный статус спора")
	}
	now := time.Now().UTC()
	d.Status = status
	d.UpdatedAt = now
	if status == valueobject.DisputeStatusClosed {
		d.ClosedAt = &now
	}
	return nil
}

// Resolve фиксирует решение и переводит спор в RESOLVED. Закрытие — отдельное действие.
func (d *Dispute) Resolve(resolution string) error {
	if err := d.EnsureMutable(); err != nil {
		return err
	}
	resolution = strings.TrimSpace(resolution)
	if resolution == "" {
		return apperror.Validation("текст решения обязателен")
	}
	now := time.Now().UTC()
	d.Resolution = &resolution
	d.Status = valueobject.DisputeStatusResolved
	d.ResolvedAt = &now
	d.UpdatedAt = now
	return nil
}

// FileRef: ссылка на файл в хранилище доказательств.
type FileRef struct {
	Key         string `json:"key"`
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
	Digest      string `json:"digest,omitempty"`
}

// Evidence: неизменяемая запись с файлами, загруженными стороной спора.
type Evidence struct {
	ID         uuid.UUID
	DisputeID  uuid.UUID
	UploaderID uuid.UUID
	Files      []FileRef
	CreatedAt  time.Time
}

func NewEvidence(disputeID, uploaderID uuid.UUID, files []FileRef) (*Evidence, error) {
	if len(files) == 0 {
		return nil, apperror.Validation("нужно приложить хотя бы один файл")
	}
	for _, f := range files {
		if strings.TrimSpace(f.Key) == "" {
			return nil, apperror.Validation("пустая ссылка на файл")
		}
	}
	return &Evidence{
		ID:         uuid.New(),
		DisputeID:  disputeID,
		UploaderID: uploaderID,
		Files:      append([]FileRef(nil), files...),
		CreatedAt:  time.Now().UTC(),
	}, nil
}

// MediationMessage: сообщение в переписке по спору. Seq назначает хранилище.
type MediationMessage struct {
	ID        uuid.UUID
	DisputeID uuid.UUID
	SenderID  uuid.UUID
	Text      string
	Seq       int64
	CreatedAt time.Time
}

func NewMediationMessage(disputeID, senderID uuid.UUID, text string) (*MediationMessage, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apperror.Validation("сообщение не может быть пустым")
	}
	return &MediationMessage{
		ID:        uuid.New(),
		DisputeID: disputeID,
		SenderID:  senderID,
		Text:      text,
		CreatedAt: time.Now().UTC(),
	}, nil
}
