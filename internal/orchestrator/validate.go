package orchestrator

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

const minQuestionLength = 3

var (
	ErrQuestionEmpty    = errors.New("question cannot be empty")
	ErrQuestionTooShort = errors.New("question is too short")
	ErrQuestionTooLong  = errors.New("question is too long")
	ErrQuestionUnsafe   = errors.New("question contains invalid content")
)

var forbiddenQuestionPatterns = []string{"<script", "javascript:", "data:", "vbscript:"}

// ValidateQuestion trims q and checks length bounds and markup injection patterns.
func ValidateQuestion(q string, maxLength int) (string, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return "", ErrQuestionEmpty
	}
	n := utf8.RuneCountInString(q)
	if n < minQuestionLength {
		return "", fmt.Errorf("%w (minimum %d characters)", ErrQuestionTooShort, minQuestionLength)
	}
	if maxLength > 0 && n > maxLength {
		return "", fmt.Errorf("%w (maximum %d characters)", ErrQuestionTooLong, maxLength)
	}
	lower := strings.ToLower(q)
	for _, pattern := range forbiddenQuestionPatterns {
		if strings.Contains(lower, pattern) {
			return "", ErrQuestionUnsafe
		}
	}
	return q, nil
}
