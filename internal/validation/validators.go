package validation

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
	"github.com/sproutlog/sproutlog/internal/models"
)

var (
	// Validate is a shared validator instance
	Validate *validator.Validate
)

func init() {
	Validate = validator.New()

	// Register custom validators for enums
	if err := Validate.RegisterValidation("interaction_type", validateInteractionType); err != nil {
		panic(fmt.Sprintf("failed to register interaction_type validator: %v", err))
	}
	if err := Validate.RegisterValidation("event_category", validateEventCategory); err != nil {
		panic(fmt.Sprintf("failed to register event_category validator: %v", err))
	}
}

func validateInteractionType(fl validator.FieldLevel) bool {
	return models.InteractionType(fl.Field().String()).Valid()
}

func validateEventCategory(fl validator.FieldLevel) bool {
	return models.EventCategory(fl.Field().String()).Valid()
}

// SanitizeText sanitizes text input by trimming whitespace and removing
// control characters (newline and tab survive).
func SanitizeText(text string) string {
	text = strings.TrimSpace(text)

	var sanitized strings.Builder
	for _, r := range text {
		if unicode.IsControl(r) && r != '\n' && r != '\t' {
			continue
		}
		sanitized.WriteRune(r)
	}

	return sanitized.String()
}

// ValidateConfidence checks that a confidence score is within [0, 1]
func ValidateConfidence(value float64) error {
	if value < 0 || value > 1 {
		return fmt.Errorf("invalid confidence: %f (must be in [0, 1])", value)
	}
	return nil
}
