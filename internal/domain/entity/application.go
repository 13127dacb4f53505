package entity

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ignatzorin/marketplace-backend/internal/domain/valueobject"
	"github.com/ignatzorin/marketplace-backend/internal/pkg/apperror"
)

// Application: отклик фрилансера на вакансию.
type Application struct {
	ID           uuid.UUID
	JobID        uuid.UUID
	FreelancerID uuid.UUID
	Proposal     string
	Bid          valueobject.Money
	Timeline     string
	Status       valueobject.ApplicationStatus
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func NewApplication(jobID, freelancerID uuid.UUID, proposal string, bid float64, timeline string) (*Application, error) {
	proposal = strings.TrimSpace(proposal)
	if proposal == "" {
		return nil, apperror.Validation("текст отклика обязателен")
	}
	money, err := valueobject.NewMoney(bid, "")
	if err != nil {
		return nil, apperror.Validation("ставка должна быть положительной")
	}

	now := time.Now().UTC()
	return &Application{
		ID:           uuid.New(),
		JobID:        jobID,
		FreelancerID: freelancerID,
		Proposal:     proposal,
		Bid:          money,
		Timeline:     strings.TrimSpace(timeline),
		Status:       valueobject.ApplicationStatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

func (a *Application) Accept() error {
	if a.Status != valueobject.ApplicationStatusPending {
		return apperror.InvalidTransition(string(a.Status), string(valueobject.ApplicationStatusAccepted),
			"можно принять только ожидающую заявку")
	}
	a.Status = valueobject.ApplicationStatusAccepted
	a.UpdatedAt = time.Now().UTC()
	return nil
}

func (a *Application) Reject() error {
	if a.Status != valueobject.ApplicationStatusPending {
		return apperror.InvalidTransition(string(a.Status), string(valueobject.ApplicationStatusRejected),
			"можно отклонить только ожидающую заявку")
	}
	a.Status = valueobject.ApplicationStatusRejected
	a.UpdatedAt = time.Now().UTC()
	return nil
}

func (a *Application) IsPending() bool {
	return a.Status == valueobject.ApplicationStatusPending
}
