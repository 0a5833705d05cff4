package checkout

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	pkgerrors "github.com/manucarbs/ecommerce-monorepo/pkg/errors"
)

// ShippingInfo carries the delivery details collected on the shipping step.
// Note is optional; every other field must be non-empty after trimming.
type ShippingInfo struct {
	Address string `json:"address" validate:"required"`
	City    string `json:"city" validate:"required"`
	Phone   string `json:"phone" validate:"required"`
	Note    string `json:"note,omitempty"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		tag := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if tag == "" {
			return f.Name
		}
		return tag
	})
	return v
}

// Normalized returns a copy with surrounding whitespace stripped from every
// field.
func (s ShippingInfo) Normalized() ShippingInfo {
	return ShippingInfo{
		Address: strings.TrimSpace(s.Address),
		City:    strings.TrimSpace(s.City),
		Phone:   strings.TrimSpace(s.Phone),
		Note:    strings.TrimSpace(s.Note),
	}
}

// ValidateShipping trims the provided info and checks the required fields.
// The returned info is the normalized copy that should be sent to the
// backend.
func ValidateShipping(info ShippingInfo) (ShippingInfo, error) {
	normalized := info.Normalized()
	if err := validate.Struct(normalized); err != nil {
		return ShippingInfo{}, formatValidationErrors(err)
	}
	return normalized, nil
}

func formatValidationErrors(err error) *pkgerrors.Error {
	if errs, ok := err.(validator.ValidationErrors); ok {
		details := map[string]string{}
		for _, fieldErr := range errs {
			details[fieldErr.Field()] = validationMessage(fieldErr)
		}
		return pkgerrors.New(pkgerrors.KindValidation, "complete all required shipping fields").WithDetails(details)
	}
	return pkgerrors.Wrap(pkgerrors.KindValidation, err, "complete all required shipping fields")
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	default:
		return "is invalid"
	}
}
