package dto

import (
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/marketplace-backend/internal/domain/entity"
	"github.com/ignatzorin/marketplace-backend/internal/pkg/apperror"
	"github.com/ignatzorin/marketplace-backend/internal/usecase/transaction"
	"github.com/ignatzorin/marketplace-backend/internal/validation"
)

type CreateJobRequest struct {
	Title  string  `json:"title" binding:"required"`
	Budget float64 `json:"budget" binding:"required"`
}

func (r CreateJobRequest) Validate() error {
	return firstError(
		validation.ValidateTitle(r.Title),
		validation.ValidateAmount("бюджет", r.Budget),
	)
}

type PlaceGigOrderRequest struct {
	SellerID string  `json:"seller_id" binding:"required"`
	GigID    string  `json:"gig_id" binding:"required"`
	Title    string  `json:"title" binding:"required"`
	Price    float64 `json:"price" binding:"required"`
}

func (r PlaceGigOrderRequest) Validate() error {
	return firstError(
		validation.ValidateTitle(r.Title),
		validation.ValidateAmount("цена", r.Price),
	)
}

type ApplyRequest struct {
	Proposal string  `json:"proposal" binding:"required"`
	Bid      float64 `json:"bid" binding:"required"`
	Timeline string  `json:"timeline"`
}

func (r ApplyRequest) Validate() error {
	return firstError(
		validation.ValidateProposal(r.Proposal),
		validation.ValidateAmount("ставка", r.Bid),
		validation.ValidateTimeline(r.Timeline),
	)
}

// ProgressRequest: указатель отличает отсутствующее поле от нуля.
type ProgressRequest struct {
	Progress *int `json:"progress" binding:"required"`
}

func (r ProgressRequest) Validate() error {
	return validationError(validation.ValidateProgress(*r.Progress))
}

type AddMilestoneRequest struct {
	Title       string `json:"title" binding:"required"`
	Description string `json:"description"`
}

func (r AddMilestoneRequest) Validate() error {
	return firstError(
		validation.ValidateTitle(r.Title),
		validation.ValidateDescription(r.Description),
	)
}

type StatusRequest struct {
	Status string `json:"status" binding:"required"`
}

type MilestoneResponse struct {
	ID          uuid.UUID `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Status      string    `json:"status"`
	Progress    int       `json:"progress"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type TransactionResponse struct {
	ID               uuid.UUID           `json:"id"`
	Kind             string              `json:"kind"`
	Title            string              `json:"title"`
	ClientID         uuid.UUID           `json:"client_id"`
	CounterpartyID   *uuid.UUID          `json:"counterparty_id,omitempty"`
	GigID            *uuid.UUID          `json:"gig_id,omitempty"`
	Status           string              `json:"status"`
	Progress         int                 `json:"progress"`
	ExplicitProgress *int                `json:"explicit_progress,omitempty"`
	Price            float64             `json:"price"`
	Currency         string              `json:"currency"`
	Role             string              `json:"role,omitempty"`
	Milestones       []MilestoneResponse `json:"milestones"`
	Version          int64               `json:"version"`
	CreatedAt        time.Time           `json:"created_at"`
	StatusChangedAt  time.Time           `json:"status_changed_at"`
	UpdatedAt        time.Time           `json:"updated_at"`
}

// ToTransactionResponse строит ответ по сделке; progress — уже вычисленный итоговый процент.
func ToTransactionResponse(t *entity.Transaction, progress int, role string) TransactionResponse {
	resp := TransactionResponse{
		ID:              t.ID,
		Kind:            string(t.Kind),
		Title:           t.Title,
		ClientID:        t.ClientID,
		CounterpartyID:  t.CounterpartyID,
		GigID:           t.GigID,
		Status:          string(t.Status),
		Progress:        progress,
		Price:           t.Price.Amount,
		Currency:        t.Price.Currency,
		Role:            role,
		Milestones:      make([]MilestoneResponse, 0, len(t.Milestones)),
		Version:         t.Version,
		CreatedAt:       t.CreatedAt,
		StatusChangedAt: t.StatusChangedAt,
		UpdatedAt:       t.UpdatedAt,
	}
	if t.Progress != nil {
		p := int(*t.Progress)
		resp.ExplicitProgress = &p
	}
	for _, m := range t.Milestones {
		resp.Milestones = append(resp.Milestones, MilestoneResponse{
			ID:          m.ID,
			Title:       m.Title,
			Description: m.Description,
			Status:      string(m.Status),
			Progress:    int(m.Progress),
			CreatedAt:   m.CreatedAt,
			UpdatedAt:   m.UpdatedAt,
		})
	}
	return resp
}

func ToTransactionView(v *transaction.View) TransactionResponse {
	return ToTransactionResponse(v.Transaction, v.Progress, string(v.Role))
}

type ApplicationResponse struct {
	ID           uuid.UUID `json:"id"`
	JobID        uuid.UUID `json:"job_id"`
	FreelancerID uuid.UUID `json:"freelancer_id"`
	Proposal     string    `json:"proposal"`
	Bid          float64   `json:"bid"`
	Currency     string    `json:"currency"`
	Timeline     string    `json:"timeline,omitempty"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func ToApplicationResponse(a *entity.Application) ApplicationResponse {
	return ApplicationResponse{
		ID:           a.ID,
		JobID:        a.JobID,
		FreelancerID: a.FreelancerID,
		Proposal:     a.Proposal,
		Bid:          a.Bid.Amount,
		Currency:     a.Bid.Currency,
		Timeline:     a.Timeline,
		Status:       string(a.Status),
		CreatedAt:    a.CreatedAt,
		UpdatedAt:    a.UpdatedAt,
	}
}

func ToApplicationResponses(items []*entity.Application) []ApplicationResponse {
	out := make([]ApplicationResponse, 0, len(items))
	for _, a := range items {
		out = append(out, ToApplicationResponse(a))
	}
	return out
}

type AcceptApplicationResponse struct {
	Application ApplicationResponse   `json:"application"`
	Transaction TransactionResponse   `json:"transaction"`
	Rejected    []ApplicationResponse `json:"rejected"`
}

func firstError(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return validationError(err)
		}
	}
	return nil
}

func validationError(err error) error {
	if err == nil {
		return nil
	}
	return apperror.Validation(err.Error())
}
