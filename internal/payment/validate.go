package payment

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// MinAmount is the smallest amount accepted for any payment.
const MinAmount = 100

// Withdrawal methods accepted by cash-out.
const (
	MethodMobileMoney  = "mobile_money"
	MethodBankTransfer = "bank_transfer"
)

var rwandanPhone = regexp.MustCompile(`^(\+?250|0)?7[0-9]{8}$`)

// ValidationError is a user-input problem tied to a form field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

var (
	errAmount   = &ValidationError{Field: "amount", Message: "Amount must be at least 100 RWF"}
	errPhone    = &ValidationError{Field: "customer_phone", Message: "Please enter a valid Rwandan phone number (e.g., +250788123456 or 0788123456)"}
	errNoPhone  = &ValidationError{Field: "customer_phone", Message: "Phone number is required"}
	errEmail    = &ValidationError{Field: "customer_email", Message: "Please enter a valid email address"}
	errRequired = &ValidationError{Field: "", Message: "Please fill in all required fields"}
)

// ParseAmount parses a form amount and enforces the minimum.
func ParseAmount(raw string) (float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, errAmount
	}
	amount, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(amount) || math.IsInf(amount, 0) || amount < MinAmount {
		return 0, errAmount
	}
	return amount, nil
}

// NormalizePhone validates a Rwandan mobile number and rewrites it to +250XXXXXXXXX.
func NormalizePhone(raw string) (string, error) {
	phone := strings.Join(strings.Fields(raw), "")
	if phone == "" {
		return "", errNoPhone
	}
	if !rwandanPhone.MatchString(phone) {
		return "", errPhone
	}

	switch {
	case strings.HasPrefix(phone, "+"):
		return phone, nil
	case strings.HasPrefix(phone, "0"):
		return "+250" + phone[1:], nil
	case strings.HasPrefix(phone, "250") && len(phone) == 12:
		return "+" + phone, nil
	default:
		return "+250" + phone, nil
	}
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func formValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
		_ = validate.RegisterValidation("rwphone", func(fl validator.FieldLevel) bool {
			return rwandanPhone.MatchString(fl.Field().String())
		})
	})
	return validate
}

// checkForm runs struct tag validation and maps the first failure onto a
// field-specific ValidationError.
func checkForm(form any) error {
	err := formValidator().Struct(form)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return fmt.Errorf("validate form: %w", err)
	}

	fe := verrs[0]
	switch fe.Field() {
	case "Amount":
		return errAmount
	case "Phone":
		if fe.Tag() == "required" {
			return errNoPhone
		}
		return errPhone
	case "Email":
		if fe.Tag() == "required" {
			return errRequired
		}
		return errEmail
	case "Method":
		if fe.Tag() == "required" {
			return errRequired
		}
		return &ValidationError{Field: "withdrawal_method", Message: "Please choose mobile_money or bank_transfer"}
	default:
		return errRequired
	}
}
