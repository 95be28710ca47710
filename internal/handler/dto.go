package handler

import (
	"errors"
	"fmt"
	"strings"

	val "card-rewards/internal/validator"

	"github.com/go-playground/validator/v10"
)

// === DTO ===

type CredentialsRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,maxbytes=72"`
}

type AddCardsRequest struct {
	CardIDs []string `json:"card_ids" validate:"required,min=1,dive,notblank"`
}

type RemoveCardsRequest struct {
	IDs []string `json:"ids" validate:"required,min=1,dive,notblank"`
}

type RankRequest struct {
	Category string `form:"category" validate:"required,category"`
}

type CategoryResponse struct {
	Key   string `json:"key"`
	Label string `json:"label"`
}

func validateStruct(v any) error {
	if err := val.Validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return fmt.Errorf("invalid input: %w", err)
		}
		var errs []string
		for _, e := range verrs {
			errs = append(errs, fieldErrorToString(e))
		}
		return fmt.Errorf("invalid input: %s", strings.Join(errs, "; "))
	}
	return nil
}

func fieldErrorToString(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", e.Field())
	case "category":
		return fmt.Sprintf("%s must be one of the known categories", e.Field())
	case "notblank":
		return fmt.Sprintf("%s must not be blank", e.Field())
	case "email":
		return fmt.Sprintf("%s must be a valid email", e.Field())
	case "min":
		if e.Param() == "1" {
			return fmt.Sprintf("%s must not be empty", e.Field())
		}
		return fmt.Sprintf("%s must be at least %s characters", e.Field(), e.Param())
	case "maxbytes":
		return fmt.Sprintf("%s must be at most %s bytes", e.Field(), e.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", e.Field(), e.Param())
	default:
		return fmt.Sprintf("%s is invalid", e.Field())
	}
}
