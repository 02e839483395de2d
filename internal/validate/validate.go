// Package validate rejects malformed bars before they reach storage.
package validate

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/bobmcallan/simtrade/internal/common"
	"github.com/bobmcallan/simtrade/internal/models"
)

// Kind identifies which rule rejected a bar.
type Kind string

const (
	InvalidPrice         Kind = "invalid_price"
	InconsistentRange    Kind = "inconsistent_range"
	InvalidVolume        Kind = "invalid_volume"
	MissingRequiredField Kind = "missing_required_field"
)

// DataQualityError is a typed rejection naming the failing field.
type DataQualityError struct {
	Kind   Kind
	Symbol string
	Field  string
	Reason string
	Value  any
}

func (e *DataQualityError) Error() string {
	return fmt.Sprintf("%s: %s %s (value: %v)", e.Kind, e.Field, e.Reason, e.Value)
}

// Unwrap classifies every rejection as a validation error.
func (e *DataQualityError) Unwrap() error {
	return common.NewValidationError("validate", e.Symbol, errors.New(e.Reason))
}

// Validator checks bars. It holds no mutable state and is safe for
// concurrent use.
type Validator struct {
	structs *validator.Validate
}

// New creates a Validator.
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return &Validator{structs: v}
}

// Validate returns the bar unchanged when it passes every rule, otherwise a
// *DataQualityError for the first failing rule.
func (v *Validator) Validate(bar models.Bar) (models.Bar, error) {
	if err := v.structs.Struct(bar); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return models.Bar{}, &DataQualityError{
				Kind:   MissingRequiredField,
				Symbol: bar.Symbol,
				Field:  fe.Field(),
				Reason: "is required",
				Value:  fe.Value(),
			}
		}
		return models.Bar{}, err
	}

	if models.IsMissing(bar.Close) || bar.Close <= 0 {
		return models.Bar{}, reject(InvalidPrice, bar, "close", "must be positive", bar.Close)
	}
	for _, p := range []struct {
		field string
		value float64
	}{{"open", bar.Open}, {"high", bar.High}, {"low", bar.Low}} {
		if !models.IsMissing(p.value) && p.value <= 0 {
			return models.Bar{}, reject(InvalidPrice, bar, p.field, "must be positive", p.value)
		}
	}

	hasHigh, hasLow := !models.IsMissing(bar.High), !models.IsMissing(bar.Low)
	if hasHigh && hasLow && bar.High < bar.Low {
		return models.Bar{}, reject(InconsistentRange, bar, "high", "is below low", bar.High)
	}
	if hasLow && bar.Close < bar.Low {
		return models.Bar{}, reject(InconsistentRange, bar, "close", "is below low", bar.Close)
	}
	if hasHigh && bar.Close > bar.High {
		return models.Bar{}, reject(InconsistentRange, bar, "close", "is above high", bar.Close)
	}

	if !models.IsMissing(bar.Volume) && bar.Volume < 0 {
		return models.Bar{}, reject(InvalidVolume, bar, "volume", "must not be negative", bar.Volume)
	}

	return bar, nil
}

func reject(kind Kind, bar models.Bar, field, reason string, value any) *DataQualityError {
	return &DataQualityError{Kind: kind, Symbol: bar.Symbol, Field: field, Reason: reason, Value: value}
}
