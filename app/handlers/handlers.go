// Package handlers contains HTTP request handlers and presentation layer logic for the API endpoints
package handlers

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/kitkade/kitkade-backend/models"
	"github.com/kitkade/kitkade-backend/utils"
)

func getValidationErrorMessage(err validator.FieldError) string {
	switch err.Tag() {
	case "required":
		return err.Field() + " is required"
	case "min":
		return err.Field() + " must be at least " + err.Param() + " characters"
	case "max":
		return err.Field() + " must be at most " + err.Param() + " characters"
	case "len":
		return err.Field() + " must be exactly " + err.Param() + " characters"
	case "oneof":
		return err.Field() + " must be one of: " + err.Param()
	case "numeric":
		return err.Field() + " must contain only numbers"
	case "uuid4":
		return err.Field() + " must be a valid UUID"
	case "phone_lk":
		return "Phone must be a Sri Lankan mobile number (07XXXXXXXX or +947XXXXXXXX)"
	case "delivery_stage":
		return "Stage must be one of ORDER_CONFIRMED, SOURCING, ARRIVED, DISPATCHED, DELIVERED"
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", err.Field(), err.Param())
	case "lte":
		return fmt.Sprintf("%s must be less than or equal to %s", err.Field(), err.Param())
	default:
		return err.Field() + " is invalid"
	}
}

// registerCustomValidations wires the domain validation tags into a validator
// instance. Shared by every handler so the tags behave identically everywhere.
func registerCustomValidations(v *validator.Validate) {
	_ = v.RegisterValidation("phone_lk", func(fl validator.FieldLevel) bool {
		return utils.IsValidPhone(fl.Field().String())
	})

	_ = v.RegisterValidation("delivery_stage", func(fl validator.FieldLevel) bool {
		return models.IsValidDeliveryStage(fl.Field().String())
	})
}
