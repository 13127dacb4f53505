package valueobject

import "github.com/ignatzorin/marketplace-backend/internal/pkg/apperror"

// TransactionKind различает заказ по вакансии и заказ услуги из каталога.
type TransactionKind string

const (
	KindJob      TransactionKind = "JOB"
	KindGigOrder TransactionKind = "GIG_ORDER"
)

func (k TransactionKind) IsValid() bool {
	return k == KindJob || k == KindGigOrder
}

func NewTransactionKind(kind string) (TransactionKind, error) {
	k := TransactionKind(kind)
	if !k.IsValid() {
		return "", apperror.Validation("некорректный тип сделки")
	}
	return k, nil
}

type TransactionStatus string

const (
	TransactionStatusOpen              TransactionStatus = "OPEN"
	TransactionStatusInProgress        TransactionStatus = "IN_PROGRESS"
	TransactionStatusPendingCompletion TransactionStatus = "PENDING_COMPLETION"
	TransactionStatusCompleted         TransactionStatus = "COMPLETED"
	TransactionStatusCancelled         TransactionStatus = "CANCELLED"
)

func (s TransactionStatus) IsValid() bool {
	switch s {
	case TransactionStatusOpen, TransactionStatusInProgress, TransactionStatusPendingCompletion,
		TransactionStatusCompleted, TransactionStatusCancelled:
		return true
	}
	return false
}

func (s TransactionStatus) IsTerminal() bool {
	return s == TransactionStatusCompleted || s == TransactionStatusCancelled
}

// CanTransitionTo проверяет только наличие ребра в графе; права участника проверяются отдельно.
func (s TransactionStatus) CanTransitionTo(next TransactionStatus) bool {
	transitions := map[TransactionStatus][]TransactionStatus{
		TransactionStatusOpen:              {TransactionStatusInProgress, TransactionStatusCancelled},
		TransactionStatusInProgress:        {TransactionStatusPendingCompletion, TransactionStatusCancelled},
		TransactionStatusPendingCompletion: {TransactionStatusCompleted, TransactionStatusInProgress, TransactionStatusCancelled},
		TransactionStatusCompleted:         {},
		TransactionStatusCancelled:         {},
	}

	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func NewTransactionStatus(status string) (TransactionStatus, error) {
	s := TransactionStatus(status)
	if !s.IsValid() {
		return "", apperror.Validation("некорректный статус сделки")
	}
	return s, nil
}

type MilestoneStatus string

const (
	MilestoneStatusPending           MilestoneStatus = "PENDING"
	MilestoneStatusInProgress        MilestoneStatus = "IN_PROGRESS"
	MilestoneStatusPendingCompletion MilestoneStatus = "PENDING_COMPLETION"
	MilestoneStatusCompleted         MilestoneStatus = "COMPLETED"
)

func (s MilestoneStatus) IsValid() bool {
	switch s {
	case MilestoneStatusPending, MilestoneStatusInProgress, MilestoneStatusPendingCompletion, MilestoneStatusCompleted:
		return true
	}
	return false
}

func NewMilestoneStatus(status string) (MilestoneStatus, error) {
	s := MilestoneStatus(status)
	if !s.IsValid() {
		return "", apperror.Validation("некорректный статус этапа")
	}
	return s, nil
}

type ApplicationStatus string

const (
	ApplicationStatusPending  ApplicationStatus = "PENDING"
	ApplicationStatusAccepted ApplicationStatus = "ACCEPTED"
	ApplicationStatusRejected ApplicationStatus = "REJECTED"
)

func (s ApplicationStatus) IsValid() bool {
	switch s {
	case ApplicationStatusPending, ApplicationStatusAccepted, ApplicationStatusRejected:
		return true
	}
	return false
}

func NewApplicationStatus(status string) (ApplicationStatus, error) {
	s := ApplicationStatus(status)
	if !s.IsValid() {
		return "", apperror.Validation("некорректный статус заявки")
	}
	return s, nil
}

// DisputeStatus: набор состояний спора. Порядок носит рекомендательный характер:
// допустимость определяется ролью, а не графом переходов.
type DisputeStatus string

const (
	DisputeStatusOpened      DisputeStatus = "OPENED"
	DisputeStatusUnderReview DisputeStatus = "UNDER_REVIEW"
	DisputeStatusMediation   DisputeStatus = "MEDIATION"
	DisputeStatusResolved    DisputeStatus = "RESOLVED"
	DisputeStatusClosed      DisputeStatus = "CLOSED"
)

// DisputeStatuses перечисляет состояния в рекомендуемом порядке.
var DisputeStatuses = []DisputeStatus{
	DisputeStatusOpened,
	DisputeStatusUnderReview,
	DisputeStatusMediation,
	DisputeStatusResolved,
	DisputeStatusClosed,
}

func (s DisputeStatus) IsValid() bool {
	return s.Rank() >= 0
}

// Rank возвращает позицию статуса в рекомендуемом порядке или -1.
func (s DisputeStatus) Rank() int {
	for i, st := range DisputeStatuses {
		if st == s {
			return i
		}
	}
	return -1
}

func (s DisputeStatus) IsOpen() bool {
	return s != DisputeStatusClosed
}

func NewDisputeStatus(status string) (DisputeStatus, error) {
	s := DisputeStatus(status)
	if !s.IsValid() {
		return "", apperror.Validation("некорректный статус спора")
	}
	return s, nil
}

// Role: роль участника относительно конкретной сделки или спора. Не хранится.
type Role string

const (
	RoleClientOrBuyer      Role = "CLIENT_OR_BUYER"
	RoleFreelancerOrSeller Role = "FREELANCER_OR_SELLER"
	RoleMediator           Role = "MEDIATOR"
	RoleUnrelated          Role = "UNRELATED"
)

func (r Role) IsParty() bool {
	return r == RoleClientOrBuyer || r == RoleFreelancerOrSeller
}

func NewRole(role string) (Role, error) {
	r := Role(role)
	switch r {
	case RoleClientOrBuyer, RoleFreelancerOrSeller, RoleMediator:
		return r, nil
	}
	return "", apperror.Validation("некорректная роль")
}
