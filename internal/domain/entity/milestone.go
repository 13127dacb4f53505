package entity

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ignatzorin/marketplace-backend/internal/domain/valueobject"
	"github.com/ignatzorin/marketplace-backend/internal/pkg/apperror"
)

// Milestone: этап работы внутри одной сделки.
type Milestone struct {
	ID            uuid.UUID
	TransactionID uuid.UUID
	Title         string
	Description   string
	Status        valueobject.MilestoneStatus
	Progress      valueobject.Percent
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func NewMilestone(transactionID uuid.UUID, title, description string) (*Milestone, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, apperror.Validation("название этапа обязательно")
	}
	now := time.Now().UTC()
	return &Milestone{
		ID:            uuid.New(),
		TransactionID: transactionID,
		Title:         title,
		Description:   strings.TrimSpace(description),
		Status:        valueobject.MilestoneStatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// CanMoveTo проверяет ребро подавтомата этапа без учёта ролей.
func (m *Milestone) CanMoveTo(next valueobject.MilestoneStatus) bool {
	edges := map[valueobject.MilestoneStatus][]valueobject.MilestoneStatus{
		valueobject.MilestoneStatusPending:           {valueobject.MilestoneStatusInProgress},
		valueobject.MilestoneStatusInProgress:        {valueobject.MilestoneStatusPendingCompletion, valueobject.MilestoneStatusCompleted},
		valueobject.MilestoneStatusPendingCompletion: {valueobject.MilestoneStatusCompleted, valueobject.MilestoneStatusInProgress},
	}
	for _, allowed := range edges[m.Status] {
		if allowed == next {
			return true
		}
	}
	return false
}

// MoveTo меняет статус этапа; завершённый этап получает 100%.
func (m *Milestone) MoveTo(next valueobject.MilestoneStatus) error {
	if !m.CanMoveTo(next) {
		return apperror.InvalidTransition(string(m.Status), string(next), "недопустимый переход статуса этапа")
	}
	m.Status = next
	if next == valueobject.MilestoneStatusCompleted {
		m.Progress = 100
	}
	m.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *Milestone) SetProgress(value int) error {
	if m.Status == valueobject.MilestoneStatusCompleted {
		return apperror.InvalidTransition(string(m.Status), string(m.Status), "этап уже завершён")
	}
	p, err := valueobject.NewPercent(value)
	if err != nil {
		return err
	}
	m.Progress = p
	m.UpdatedAt = time.Now().UTC()
	return nil
}
