package entity

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ignatzorin/marketplace-backend/internal/domain/valueobject"
	"github.com/ignatzorin/marketplace-backend/internal/pkg/apperror"
)

const (
	progressCompleted         = 100
	progressPendingCompletion = 95
)

// Transaction объединяет заказ по вакансии (JOB) и заказ услуги (GIG_ORDER).
type Transaction struct {
	ID              uuid.UUID
	Kind            valueobject.TransactionKind
	Title           string
	ClientID        uuid.UUID
	CounterpartyID  *uuid.UUID
	GigID           *uuid.UUID
	Status          valueobject.TransactionStatus
	Progress        *valueobject.Percent
	Price           valueobject.Money
	Version         int64
	CreatedAt       time.Time
	StatusChangedAt time.Time
	UpdatedAt       time.Time

	Milestones []Milestone
}

// NewJob создаёт вакансию в статусе OPEN без исполнителя.
func NewJob(clientID uuid.UUID, title string, budget float64) (*Transaction, error) {
	return newTransaction(valueobject.KindJob, clientID, nil, nil, title, budget)
}

// NewGigOrder создаёт заказ услуги: продавец известен сразу, работа начинается после оплаты.
func NewGigOrder(buyerID, sellerID, gigID uuid.UUID, title string, price float64) (*Transaction, error) {
	if buyerID == sellerID {
		return nil, apperror.Validation("нельзя заказать собственную услугу")
	}
	return newTransaction(valueobject.KindGigOrder, buyerID, &sellerID, &gigID, title, price)
}

func newTransaction(kind valueobject.TransactionKind, clientID uuid.UUID, counterpartyID, gigID *uuid.UUID, title string, amount float64) (*Transaction, error) {
	if clientID == uuid.Nil {
		return nil, apperror.Validation("не указан заказчик")
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, apperror.Validation("название сделки обязательно")
	}
	price, err := valueobject.NewMoney(amount, "")
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	return &Transaction{
		ID:              uuid.New(),
		Kind:            kind,
		Title:           title,
		ClientID:        clientID,
		CounterpartyID:  counterpartyID,
		GigID:           gigID,
		Status:          valueobject.TransactionStatusOpen,
		Price:           price,
		CreatedAt:       now,
		StatusChangedAt: now,
		UpdatedAt:       now,
	}, nil
}

func (t *Transaction) IsPayer(actorID uuid.UUID) bool {
	return t.ClientID == actorID
}

func (t *Transaction) IsPerformer(actorID uuid.UUID) bool {
	return t.CounterpartyID != nil && *t.CounterpartyID == actorID
}

func (t *Transaction) HasCounterparty() bool {
	return t.CounterpartyID != nil
}

// Parties возвращает идентификаторы обеих сторон сделки (исполнитель может отсутствовать).
func (t *Transaction) Parties() []uuid.UUID {
	parties := []uuid.UUID{t.ClientID}
	if t.CounterpartyID != nil {
		parties = append(parties, *t.CounterpartyID)
	}
	return parties
}

// BindCounterparty закрепляет исполнителя за открытой сделкой.
func (t *Transaction) BindCounterparty(counterpartyID uuid.UUID) error {
	if t.Status != valueobject.TransactionStatusOpen {
		return apperror.InvalidTransition(string(t.Status), string(t.Status), "исполнителя можно назначить только открытой сделке")
	}
	if t.CounterpartyID != nil {
		return apperror.InvalidTransition(string(t.Status), string(t.Status), "исполнитель уже назначен")
	}
	if counterpartyID == t.ClientID {
		return apperror.Validation("заказчик не может быть исполнителем")
	}
	t.CounterpartyID = &counterpartyID
	t.UpdatedAt = time.Now().UTC()
	return nil
}

func (t *Transaction) transition(next valueobject.TransactionStatus) error {
	if !t.Status.CanTransitionTo(next) {
		return apperror.InvalidTransition(string(t.Status), string(next),
			fmt.Sprintf("переход %s → %s недопустим", t.Status, next))
	}
	now := time.Now().UTC()
	t.Status = next
	t.StatusChangedAt = now
	t.UpdatedAt = now
	return nil
}

// Start переводит сделку в работу; без назначенного исполнителя переход запрещён.
func (t *Transaction) Start() error {
	if t.Status == valueobject.TransactionStatusOpen && t.CounterpartyID == nil {
		return apperror.InvalidTransition(string(t.Status), string(valueobject.TransactionStatusInProgress),
			"исполнитель ещё не назначен")
	}
	if t.Status != valueobject.TransactionStatusOpen {
		return apperror.InvalidTransition(string(t.Status), string(valueobject.TransactionStatusInProgress),
			"начать работу можно только по открытой сделке")
	}
	return t.transition(valueobject.TransactionStatusInProgress)
}

func (t *Transaction) RequestCompletion() error {
	if t.Status != valueobject.TransactionStatusInProgress {
		return apperror.InvalidTransition(string(t.Status), string(valueobject.TransactionStatusPendingCompletion),
			"запросить завершение можно только для сделки в работе")
	}
	return t.transition(valueobject.TransactionStatusPendingCompletion)
}

func (t *Transaction) ApproveCompletion() error {
	if t.Status != valueobject.TransactionStatusPendingCompletion {
		return apperror.InvalidTransition(string(t.Status), string(valueobject.TransactionStatusCompleted),
			"подтвердить можно только запрошенное завершение")
	}
	return t.transition(valueobject.TransactionStatusCompleted)
}

// RejectCompletion возвращает сделку в работу (запрос доработки).
func (t *Transaction) RejectCompletion() error {
	if t.Status != valueobject.TransactionStatusPendingCompletion {
		return apperror.InvalidTransition(string(t.Status), string(valueobject.TransactionStatusInProgress),
			"отклонить можно только запрошенное завершение")
	}
	return t.transition(valueobject.TransactionStatusInProgress)
}

func (t *Transaction) Cancel() error {
	if t.Status.IsTerminal() {
		return apperror.InvalidTransition(string(t.Status), string(valueobject.TransactionStatusCancelled),
			"сделка уже в конечном статусе")
	}
	return t.transition(valueobject.TransactionStatusCancelled)
}

// SetProgress задаёт явный прогресс, который используется при отсутствии этапов.
func (t *Transaction) SetProgress(value int) error {
	if t.Status != valueobject.TransactionStatusInProgress {
		return apperror.InvalidTransition(string(t.Status), string(t.Status),
			"прогресс можно менять только у сделки в работе")
	}
	p, err := valueobject.NewPercent(value)
	if err != nil {
		return err
	}
	t.Progress = &p
	t.UpdatedAt = time.Now().UTC()
	return nil
}

// OverallProgress вычисляет итоговый процент для отображения. Не меняет состояние.
func (t *Transaction) OverallProgress(baseline int) int {
	avg, hasMilestones := t.milestoneAverage()

	switch t.Status {
	case valueobject.TransactionStatusCompleted:
		return progressCompleted
	case valueobject.TransactionStatusPendingCompletion:
		if hasMilestones && avg > progressPendingCompletion {
			return avg
		}
		return progressPendingCompletion
	case valueobject.TransactionStatusInProgress:
		if hasMilestones {
			return avg
		}
		if t.Progress != nil {
			return int(*t.Progress)
		}
		return baseline
	case valueobject.TransactionStatusCancelled:
		if hasMilestones {
			return avg
		}
		if t.Progress != nil {
			return int(*t.Progress)
		}
		return 0
	default:
		return 0
	}
}

func (t *Transaction) milestoneAverage() (int, bool) {
	if len(t.Milestones) == 0 {
		return 0, false
	}
	sum := 0
	for _, m := range t.Milestones {
		sum += int(m.Progress)
	}
	// Округление к ближайшему целому.
	n := len(t.Milestones)
	return (sum*2 + n) / (2 * n), true
}
