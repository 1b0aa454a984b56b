package receiving

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const (
	csvFlushEvery = 200
	csvBufferSize = 32 * 1024
)

// ExportFilter narrows the receipt export. Dates are inclusive calendar days.
type ExportFilter struct {
	From       *time.Time
	To         *time.Time
	SupplierID *int64
	RequestID  *int64
}

// ExportRow is a receipt with display columns resolved.
type ExportRow struct {
	Receipt
	RequestID      int64
	ProductName    string
	SupplierName   string
	ReceivedByName string
}

var exportHeader = []string{
	"receipt_id", "request_id", "item_id", "product", "quantity_received", "rejected_quantity",
	"net_quantity", "invoice_number", "invoice_date", "lot_number", "expiration_date", "supplier",
	"condition", "quality_checked", "received_by", "received_at", "notes",
}

type csvStreamer struct {
	buf          *bufio.Writer
	csv          *csv.Writer
	flushEvery   int
	pendingLines int
}

func newCSVStreamer(w io.Writer) *csvStreamer {
	buf := bufio.NewWriterSize(w, csvBufferSize)
	writer := csv.NewWriter(buf)
	writer.UseCRLF = true
	return &csvStreamer{buf: buf, csv: writer, flushEvery: csvFlushEvery}
}

func (s *csvStreamer) writeRow(row []string) error {
	if err := s.csv.Write(row); err != nil {
		return err
	}
	s.pendingLines++
	if s.flushEvery > 0 && s.pendingLines >= s.flushEvery {
		return s.Flush()
	}
	return nil
}

func (s *csvStreamer) Flush() error {
	s.csv.Flush()
	if err := s.csv.Error(); err != nil {
		return err
	}
	if err := s.buf.Flush(); err != nil {
		return err
	}
	s.pendingLines = 0
	return nil
}

// WriteCSV streams rows followed by a totals block.
func WriteCSV(w io.Writer, rows []ExportRow) error {
	stream := newCSVStreamer(w)
	if err := stream.writeRow(exportHeader); err != nil {
		return err
	}
	receipts := make([]Receipt, 0, len(rows))
	for _, row := range rows {
		receipts = append(receipts, row.Receipt)
		if err := stream.writeRow(exportRecord(row)); err != nil {
			return err
		}
	}
	totals := Totals(0, receipts)
	printer := message.NewPrinter(language.English)
	rate := 0.0
	if totals.TotalQuantity > 0 {
		rate = float64(totals.TotalRejected) * 100 / float64(totals.TotalQuantity)
	}
	footer := [][]string{
		{},
		{"total_receipts", printer.Sprintf("%d", totals.TotalReceipts)},
		{"total_received", printer.Sprintf("%d", totals.TotalQuantity)},
		{"total_rejected", printer.Sprintf("%d", totals.TotalRejected)},
		{"rejection_rate", printer.Sprintf("%.2f%%", rate)},
		{"unique_suppliers", printer.Sprintf("%d", totals.UniqueSuppliers)},
	}
	for _, line := range footer {
		if err := stream.writeRow(line); err != nil {
			return err
		}
	}
	return stream.Flush()
}

func exportRecord(row ExportRow) []string {
	r := row.Receipt
	return []string{
		strconv.FormatInt(r.ID, 10),
		strconv.FormatInt(row.RequestID, 10),
		strconv.FormatInt(r.ItemID, 10),
		row.ProductName,
		strconv.Itoa(r.QuantityReceived),
		strconv.Itoa(r.RejectedQuantity),
		strconv.Itoa(r.NetQuantity()),
		r.InvoiceNumber,
		formatDate(r.InvoiceDate),
		r.LotNumber,
		formatDate(r.ExpirationDate),
		row.SupplierName,
		string(r.Condition),
		strconv.FormatBool(r.QualityChecked),
		row.ReceivedByName,
		r.CreatedAt.UTC().Format(time.RFC3339),
		strings.ReplaceAll(r.Notes, "\n", " "),
	}
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(dateOnly)
}

// ParseExportFilter reads filter values from query parameters.
func ParseExportFilter(get func(string) string) (ExportFilter, error) {
	var filter ExportFilter
	for _, p := range []struct {
		key  string
		dest **time.Time
	}{{"from", &filter.From}, {"to", &filter.To}} {
		raw := strings.TrimSpace(get(p.key))
		if raw == "" {
			continue
		}
		t, err := time.Parse(dateOnly, raw)
		if err != nil {
			return ExportFilter{}, &ValidationError{Field: p.key, Message: "must be YYYY-MM-DD"}
		}
		*p.dest = &t
	}
	for _, p := range []struct {
		key  string
		dest **int64
	}{{"supplierId", &filter.SupplierID}, {"requestId", &filter.RequestID}} {
		raw := strings.TrimSpace(get(p.key))
		if raw == "" {
			continue
		}
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			return ExportFilter{}, &ValidationError{Field: p.key, Message: fmt.Sprintf("must be a positive integer, got %q", raw)}
		}
		*p.dest = &id
	}
	if filter.From != nil && filter.To != nil && filter.To.Before(*filter.From) {
		return ExportFilter{}, &ValidationError{Field: "to", Message: "must not be before from"}
	}
	return filter, nil
}
