package pricing

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	validator "github.com/go-playground/validator/v10"
)

// Settings are the caller-supplied knobs of a quote computation.
type Settings struct {
	MarginRate            float64 `json:"margin_rate" validate:"gte=0,lt=1"`
	VatRate               float64 `json:"vat_rate" validate:"gte=0,lte=1"`
	DeliveryFeeFlat       float64 `json:"delivery_fee_flat" validate:"gte=0"`
	DeliveryFreeThreshold float64 `json:"delivery_free_threshold" validate:"gte=0"`
}

// DefaultSettings returns 25% margin, 15% VAT, a flat delivery fee of 99 and free
// delivery from 1000 incl. VAT.
func DefaultSettings() Settings {
	return Settings{
		MarginRate:            0.25,
		VatRate:               0.15,
		DeliveryFeeFlat:       99,
		DeliveryFreeThreshold: 1000,
	}
}

// FieldError describes one invalid settings field.
type FieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
	Param string `json:"param,omitempty"`
}

// ValidationError is returned by Settings.Validate.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "invalid pricing settings"
	}
	f := e.Fields[0]
	return fmt.Sprintf("invalid pricing settings: %s failed %s %s", f.Field, f.Rule, f.Param)
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func settingsValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "" || name == "-" {
				return fld.Name
			}
			return name
		})
	})
	return validate
}

// Validate reports out-of-range settings. The pricing functions never call it:
// they degrade instead, so callers that persist or load settings validate first.
func (s Settings) Validate() error {
	err := settingsValidator().Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	out := &ValidationError{Fields: make([]FieldError, 0, len(verrs))}
	for _, fe := range verrs {
		out.Fields = append(out.Fields, FieldError{Field: fe.Field(), Rule: fe.Tag(), Param: fe.Param()})
	}
	return out
}
