// Package validator checks transition payload values with go-playground/validator.
package validator

import (
	"errors"
	"time"

	playground "github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/neomorfeo/statusgate/internal/domain"
)

// Compile-time check: Validator implements domain.PayloadValidator.
var _ domain.PayloadValidator = (*Validator)(nil)

// Validator wraps the go-playground validator with the custom tags used by
// the lifecycle definitions:
//
//	decimal_gt0  value parses as a decimal strictly greater than zero
//	future       value is an RFC 3339 timestamp after the current time
type Validator struct {
	validate *playground.Validate
	now      domain.Clock
}

// New creates a validator. now is used by the "future" tag.
func New(now domain.Clock) (*Validator, error) {
	if now == nil {
		now = time.Now
	}
	v := &Validator{validate: playground.New(), now: now}

	if err := v.validate.RegisterValidation("decimal_gt0", isPositiveDecimal); err != nil {
		return nil, err
	}
	if err := v.validate.RegisterValidation("future", v.isFuture); err != nil {
		return nil, err
	}
	return v, nil
}

// Check validates value against tag and returns the first failing rule.
func (v *Validator) Check(value, tag string) error {
	err := v.validate.Var(value, tag)
	if err == nil {
		return nil
	}

	var fieldErrs playground.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		rule := fieldErrs[0].Tag()
		if p := fieldErrs[0].Param(); p != "" {
			rule += "=" + p
		}
		return &ruleError{rule: rule}
	}
	return err
}

// ruleError names the validator tag that rejected a value.
type ruleError struct {
	rule string
}

func (e *ruleError) Error() string { return e.rule }

// Rule returns the failing rule of err, or its message if it is not a rule failure.
func Rule(err error) string {
	var re *ruleError
	if errors.As(err, &re) {
		return re.rule
	}
	return err.Error()
}

func isPositiveDecimal(fl playground.FieldLevel) bool {
	d, err := decimal.NewFromString(fl.Field().String())
	if err != nil {
		return false
	}
	return d.IsPositive()
}

func (v *Validator) isFuture(fl playground.FieldLevel) bool {
	at, err := time.Parse(time.RFC3339, fl.Field().String())
	if err != nil {
		return false
	}
	return at.After(v.now())
}
