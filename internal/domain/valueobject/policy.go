package valueobject

import "github.com/ignatzorin/marketplace-backend/internal/pkg/apperror"

// MilestoneApproval определяет, кто переводит этап в COMPLETED.
type MilestoneApproval string

const (
	// MilestoneApprovalSelf: исполнитель сам закрывает этап.
	MilestoneApprovalSelf MilestoneApproval = "self"
	// MilestoneApprovalPayer: исполнитель запрашивает, плательщик подтверждает.
	MilestoneApprovalPayer MilestoneApproval = "payer"
)

func NewMilestoneApproval(v string) (MilestoneApproval, error) {
	a := MilestoneApproval(v)
	if a != MilestoneApprovalSelf && a != MilestoneApprovalPayer {
		return "", apperror.Validation("некорректная политика подтверждения этапов")
	}
	return a, nil
}

// LifecyclePolicy: настраиваемые правила жизненного цикла для одного вида сделки.
type LifecyclePolicy struct {
	MilestoneApproval MilestoneApproval
}

// Policies хранит политику для каждого вида сделки.
type Policies map[TransactionKind]LifecyclePolicy

// DefaultPolicies: по вакансии исполнитель закрывает этапы сам, заказ услуги требует подтверждения покупателя.
func DefaultPolicies() Policies {
	return Policies{
		KindJob:      {MilestoneApproval: MilestoneApprovalSelf},
		KindGigOrder: {MilestoneApproval: MilestoneApprovalPayer},
	}
}

func (p Policies) For(kind TransactionKind) LifecyclePolicy {
	if policy, ok := p[kind]; ok {
		return policy
	}
	return LifecyclePolicy{MilestoneApproval: MilestoneApprovalPayer}
}
