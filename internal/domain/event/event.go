// Package event описывает доменные события, которые движки записывают в outbox
// вместе с изменением состояния.
package event

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type Name string

const (
	TransactionStatusChanged   Name = "transaction.status_changed"
	TransactionProgressUpdated Name = "transaction.progress_updated"
	ApplicationStatusChanged   Name = "application.status_changed"
	MilestoneUpdated           Name = "milestone.updated"
	DisputeOpened              Name = "dispute.opened"
	DisputeMediatorAssigned    Name = "dispute.mediator_assigned"
	DisputeStatusChanged       Name = "dispute.status_changed"
	DisputeResolved            Name = "dispute.resolved"
	DisputeEvidenceAdded       Name = "dispute.evidence_added"
	DisputeMessagePosted       Name = "dispute.message_posted"
)

const (
	AggregateTransaction = "transaction"
	AggregateDispute     = "dispute"
)

// Event: запись outbox. Recipients вычисляются в момент изменения:
// обе стороны сделки и назначенный медиатор.
type Event struct {
	ID            uuid.UUID       `json:"id"`
	Name          Name            `json:"type"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   uuid.UUID       `json:"aggregate_id"`
	Recipients    []uuid.UUID     `json:"recipients"`
	Payload       json.RawMessage `json:"data"`
	CreatedAt     time.Time       `json:"created_at"`
	PublishedAt   *time.Time      `json:"-"`
}

// New сериализует payload и дедуплицирует получателей.
func New(name Name, aggregateType string, aggregateID uuid.UUID, recipients []uuid.UUID, payload any) (*Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Event{
		ID:            uuid.New(),
		Name:          name,
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		Recipients:    uniqueRecipients(recipients),
		Payload:       raw,
		CreatedAt:     time.Now().UTC(),
	}, nil
}

func uniqueRecipients(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// TransactionStatusPayload: данные события смены статуса сделки.
type TransactionStatusPayload struct {
	TransactionID uuid.UUID `json:"transaction_id"`
	Kind          string    `json:"kind"`
	From          string    `json:"from"`
	To            string    `json:"to"`
	ActorID       uuid.UUID `json:"actor_id"`
	Progress      int       `json:"progress"`
}

type ProgressPayload struct {
	TransactionID uuid.UUID  `json:"transaction_id"`
	MilestoneID   *uuid.UUID `json:"milestone_id,omitempty"`
	Progress      int        `json:"progress"`
}

type ApplicationPayload struct {
	ApplicationID uuid.UUID `json:"application_id"`
	JobID         uuid.UUID `json:"job_id"`
	FreelancerID  uuid.UUID `json:"freelancer_id"`
	Status        string    `json:"status"`
}

type MilestonePayload struct {
	TransactionID uuid.UUID `json:"transaction_id"`
	MilestoneID   uuid.UUID `json:"milestone_id"`
	Status        string    `json:"status"`
	Progress      int       `json:"progress"`
	Overall       int       `json:"overall_progress"`
}

type DisputePayload struct {
	DisputeID     uuid.UUID  `json:"dispute_id"`
	TransactionID uuid.UUID  `json:"transaction_id"`
	Status        string     `json:"status"`
	MediatorID    *uuid.UUID `json:"mediator_id,omitempty"`
	Resolution    *string    `json:"resolution,omitempty"`
	ActorID       uuid.UUID  `json:"actor_id"`
}

type EvidencePayload struct {
	DisputeID  uuid.UUID `json:"dispute_id"`
	EvidenceID uuid.UUID `json:"evidence_id"`
	UploaderID uuid.UUID `json:"uploader_id"`
	Files      int       `json:"files"`
}

type MessagePayload struct {
	DisputeID uuid.UUID `json:"dispute_id"`
	MessageID uuid.UUID `json:"message_id"`
	SenderID  uuid.UUID `json:"sender_id"`
	Text      string    `json:"text"`
	Seq       int64     `json:"seq"`
	CreatedAt time.Time `json:"created_at"`
}
