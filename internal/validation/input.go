package validation

import (
	"fmt"
	"math"
	"strings"
	"unicode/utf8"
)

// Ограничения полей запросов.
const (
	MinTitleLength       = 3
	MaxTitleLength       = 200
	MaxDescriptionLength = 5000
	MinProposalLength    = 10
	MaxProposalLength    = 2000
	MaxTimelineLength    = 100
	MinReasonLength      = 3
	MaxReasonLength      = 300
	MaxResolutionLength  = 5000
	MaxMessageLength     = 5000
	MaxAmount            = 100000000.0 // 100 миллионов
)

// ValidateLength проверяет длину строки в символах.
func ValidateLength(fieldName, value string, min, max int) error {
	length := utf8.RuneCountInString(value)
	if min > 0 && length < min {
		return fmt.Errorf("%s должен быть не менее %d символов", fieldName, min)
	}
	if max > 0 && length > max {
		return fmt.Errorf("%s должен быть не более %d символов", fieldName, max)
	}
	return nil
}

// ValidateNonEmpty проверяет, что строка не пустая.
func ValidateNonEmpty(fieldName, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%s не может быть пустым", fieldName)
	}
	return nil
}

func required(fieldName, value string, min, max int) error {
	if err := ValidateNonEmpty(fieldName, value); err != nil {
		return err
	}
	return ValidateLength(fieldName, strings.TrimSpace(value), min, max)
}

func ValidateTitle(title string) error {
	return required("заголовок", title, MinTitleLength, MaxTitleLength)
}

func ValidateDescription(description string) error {
	return ValidateLength("описание", strings.TrimSpace(description), 0, MaxDescriptionLength)
}

// ValidateAmount проверяет бюджет, цену или ставку.
func ValidateAmount(fieldName string, amount float64) error {
	if math.IsNaN(amount) || math.IsInf(amount, 0) || amount <= 0 {
		return fmt.Errorf("%s должен быть положительным", fieldName)
	}
	if amount > MaxAmount {
		return fmt.Errorf("%s не может превышать %.0f", fieldName, MaxAmount)
	}
	return nil
}

func ValidateProposal(proposal string) error {
	return required("текст отклика", proposal, MinProposalLength, MaxProposalLength)
}

func ValidateTimeline(timeline string) error {
	return ValidateLength("срок", strings.TrimSpace(timeline), 0, MaxTimelineLength)
}

func ValidateReason(reason string) error {
	return required("причина спора", reason, MinReasonLength, MaxReasonLength)
}

func ValidateResolution(resolution string) error {
	return required("текст решения", resolution, 1, MaxResolutionLength)
}

func ValidateMessageContent(content string) error {
	return required("сообщение", content, 1, MaxMessageLength)
}

// ValidateProgress проверяет процент выполнения.
func ValidateProgress(progress int) error {
	if progress < 0 || progress > 100 {
		return fmt.Errorf("прогресс должен быть в диапазоне 0..100")
	}
	return nil
}
