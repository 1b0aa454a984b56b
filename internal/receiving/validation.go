package receiving

import (
	"errors"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// ReceiptInput is the payload for recording a receipt.
type ReceiptInput struct {
	QuantityReceived int     `json:"quantityReceived" validate:"gte=1"`
	RejectedQuantity int     `json:"rejectedQuantity" validate:"gte=0,ltfield=QuantityReceived"`
	InvoiceNumber    string  `json:"invoiceNumber" validate:"required,max=100"`
	LotNumber        string  `json:"lotNumber" validate:"max=100"`
	ReceiptCondition string  `json:"receiptCondition" validate:"omitempty,oneof=good damaged partial_damage"`
	SupplierID       *int64  `json:"supplierId" validate:"omitempty,gt=0"`
	InvoiceDate      *string `json:"invoiceDate"`
	ExpirationDate   *string `json:"expirationDate"`
	Notes            string  `json:"notes"`
	QualityChecked   bool    `json:"qualityChecked"`
	QualityNotes     string  `json:"qualityNotes"`
}

const dateOnly = "2006-01-02"

var fieldMessages = map[string]string{
	"gte":      "must be at least %s",
	"ltfield":  "must be less than quantityReceived",
	"required": "is required",
	"max":      "must be at most %s characters",
	"oneof":    "must be one of %s",
	"gt":       "must be greater than %s",
}

// Validator checks receipt payloads. Rules run in a fixed order and the first
// failure is reported.
type Validator struct {
	validate *validator.Validate
	now      func() time.Time
}

// NewValidator constructs a Validator using the wall clock.
func NewValidator() *Validator {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return &Validator{validate: v, now: time.Now}
}

// Validate normalises input and converts it into a receipt ready to append.
// Item, actor and timestamps are left for the caller.
func (v *Validator) Validate(input ReceiptInput) (Receipt, error) {
	input.InvoiceNumber = strings.TrimSpace(input.InvoiceNumber)
	input.LotNumber = strings.TrimSpace(input.LotNumber)
	input.ReceiptCondition = strings.TrimSpace(input.ReceiptCondition)

	if err := v.validate.Struct(input); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return Receipt{}, toValidationError(verrs[0])
		}
		return Receipt{}, err
	}

	now := v.now()
	invoiceDate, _, err := parseOptionalDate("invoiceDate", input.InvoiceDate)
	if err != nil {
		return Receipt{}, err
	}
	if invoiceDate != nil && invoiceDate.After(now) {
		return Receipt{}, &ValidationError{Field: "invoiceDate", Message: "must not be in the future"}
	}
	expiration, calendarDay, err := parseOptionalDate("expirationDate", input.ExpirationDate)
	if err != nil {
		return Receipt{}, err
	}
	if expiration != nil {
		earliest := now
		if calendarDay {
			earliest = startOfDay(now)
		}
		if expiration.Before(earliest) {
			return Receipt{}, &ValidationError{Field: "expirationDate", Message: "must not be in the past"}
		}
		if invoiceDate != nil && !expiration.After(*invoiceDate) {
			return Receipt{}, &ValidationError{Field: "expirationDate", Message: "must be after invoiceDate"}
		}
	}

	condition := Condition(input.ReceiptCondition)
	if condition == "" {
		condition = ConditionGood
	}
	return Receipt{
		QuantityReceived: input.QuantityReceived,
		RejectedQuantity: input.RejectedQuantity,
		InvoiceNumber:    input.InvoiceNumber,
		InvoiceDate:      invoiceDate,
		LotNumber:        input.LotNumber,
		ExpirationDate:   expiration,
		SupplierID:       input.SupplierID,
		Notes:            strings.TrimSpace(input.Notes),
		Condition:        condition,
		QualityChecked:   input.QualityChecked,
		QualityNotes:     strings.TrimSpace(input.QualityNotes),
	}, nil
}

func toValidationError(fe validator.FieldError) *ValidationError {
	msg, ok := fieldMessages[fe.Tag()]
	if !ok {
		return &ValidationError{Field: fe.Field(), Message: "is invalid"}
	}
	if strings.Contains(msg, "%s") {
		msg = strings.Replace(msg, "%s", fe.Param(), 1)
	}
	return &ValidationError{Field: fe.Field(), Message: msg}
}

// parseOptionalDate accepts RFC3339 or a bare calendar date. Nil and blank
// values are absent. calendarDay reports a bare date.
func parseOptionalDate(field string, raw *string) (t *time.Time, calendarDay bool, err error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil, false, nil
	}
	value := strings.TrimSpace(*raw)
	if parsed, err := time.Parse(time.RFC3339, value); err == nil {
		return &parsed, false, nil
	}
	if parsed, err := time.Parse(dateOnly, value); err == nil {
		return &parsed, true, nil
	}
	return nil, false, &ValidationError{Field: field, Message: "must be a valid date (RFC3339 or YYYY-MM-DD)"}
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
