package receiving

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sistemas-pedidos/pedidos-api/internal/platform/httpx"
)

func fixedValidator() *Validator {
	v := NewValidator()
	v.now = func() time.Time { return time.Date(2024, 6, 15, 14, 0, 0, 0, time.UTC) }
	return v
}

func strPtr(s string) *string { return &s }

func validInput() ReceiptInput {
	return ReceiptInput{QuantityReceived: 5, InvoiceNumber: "NF-100"}
}

func requireField(t *testing.T, err error, field string) {
	t.Helper()
	var ve *ValidationError
	require.True(t, errors.As(err, &ve), "expected ValidationError, got %v", err)
	require.Equal(t, field, ve.Field)
	require.ErrorIs(t, err, httpx.ErrValidation)
}

func TestValidateDefaults(t *testing.T) {
	r, err := fixedValidator().Validate(ReceiptInput{QuantityReceived: 2, InvoiceNumber: "  NF-1  ", LotNumber: " L1 "})
	require.NoError(t, err)
	require.Equal(t, "NF-1", r.InvoiceNumber)
	require.Equal(t, "L1", r.LotNumber)
	require.Equal(t, ConditionGood, r.Condition)
	require.Nil(t, r.InvoiceDate)
	require.Nil(t, r.ExpirationDate)
}

func TestValidateRules(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*ReceiptInput)
		field  string
	}{
		{"zero quantity", func(in *ReceiptInput) { in.QuantityReceived = 0 }, "quantityReceived"},
		{"negative rejected", func(in *ReceiptInput) { in.RejectedQuantity = -1 }, "rejectedQuantity"},
		{"rejected equals received", func(in *ReceiptInput) { in.RejectedQuantity = 5 }, "rejectedQuantity"},
		{"blank invoice", func(in *ReceiptInput) { in.InvoiceNumber = "   " }, "invoiceNumber"},
		{"long invoice", func(in *ReceiptInput) { in.InvoiceNumber = string(make([]byte, 101)) }, "invoiceNumber"},
		{"bad condition", func(in *ReceiptInput) { in.ReceiptCondition = "wet" }, "receiptCondition"},
		{"unparseable invoice date", func(in *ReceiptInput) { in.InvoiceDate = strPtr("15/06/2024") }, "invoiceDate"},
		{"future invoice date", func(in *ReceiptInput) { in.InvoiceDate = strPtr("2024-06-16") }, "invoiceDate"},
		{"past expiration", func(in *ReceiptInput) { in.ExpirationDate = strPtr("2024-06-14") }, "expirationDate"},
		{"expiration before invoice", func(in *ReceiptInput) {
			in.InvoiceDate = strPtr("2024-06-10")
			in.ExpirationDate = strPtr("2024-06-10")
		}, "expirationDate"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := validInput()
			tc.mutate(&in)
			_, err := fixedValidator().Validate(in)
			requireField(t, err, tc.field)
		})
	}
}

func TestValidateRejectedNeverReachesReceived(t *testing.T) {
	v := fixedValidator()
	for received := 1; received <= 20; received++ {
		for _, rejected := range []int{received, received + 1, received * 3} {
			_, err := v.Validate(ReceiptInput{QuantityReceived: received, RejectedQuantity: rejected, InvoiceNumber: "NF"})
			requireField(t, err, "rejectedQuantity")
		}
	}
}

func TestValidateReportsFirstFailure(t *testing.T) {
	_, err := fixedValidator().Validate(ReceiptInput{QuantityReceived: 0, InvoiceNumber: ""})
	requireField(t, err, "quantityReceived")
}

func TestValidateDates(t *testing.T) {
	in := validInput()
	in.InvoiceDate = strPtr("2024-06-15T08:00:00Z")
	in.ExpirationDate = strPtr("2024-06-15")
	_, err := fixedValidator().Validate(in)
	requireField(t, err, "expirationDate")

	in.ExpirationDate = strPtr("2025-01-31")
	r, err := fixedValidator().Validate(in)
	require.NoError(t, err)
	require.Equal(t, 2025, r.ExpirationDate.Year())

	in = validInput()
	in.ExpirationDate = strPtr("2024-06-15")
	_, err = fixedValidator().Validate(in)
	require.NoError(t, err, "expiring today is accepted")

	in = validInput()
	in.InvoiceDate = strPtr("")
	r, err = fixedValidator().Validate(in)
	require.NoError(t, err)
	require.Nil(t, r.InvoiceDate)
}

func TestValidateExpirationTimestampAgainstNow(t *testing.T) {
	in := validInput()
	in.ExpirationDate = strPtr("2024-06-15T09:00:00Z")
	_, err := fixedValidator().Validate(in)
	requireField(t, err, "expirationDate")

	in.ExpirationDate = strPtr("2024-06-15T18:00:00Z")
	r, err := fixedValidator().Validate(in)
	require.NoError(t, err)
	require.Equal(t, 18, r.ExpirationDate.Hour())

	in.ExpirationDate = strPtr("2024-06-14")
	_, err = fixedValidator().Validate(in)
	requireField(t, err, "expirationDate")
}

func TestValidateMissingInvoiceNumber(t *testing.T) {
	_, err := fixedValidator().Validate(ReceiptInput{QuantityReceived: 3, InvoiceNumber: ""})
	requireField(t, err, "invoiceNumber")
}
