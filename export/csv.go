/*
Package export renders ledger data as CSV downloads.

PURPOSE:
  Deterministic CSV generation for the three export surfaces: expense
  lists, payment lists, and the per-user balance summary. Rows are
  written in the order the caller supplies them, so identical inputs
  produce byte-identical files.

COLUMN RULES:
  Staff exports carry a User Name column. Self exports (the user role
  downloading their own records) omit it - every row would repeat the
  requester's own name.

FORMATTING:
  Amounts are fixed to two decimal places. Dates use YYYY-MM-DD.
*/
package export

import (
	"encoding/csv"
	"io"

	"github.com/mealdesk/canteen-ledger/ledger"
)

const dayFormat = "2006-01-02"

// ExpenseCSV writes expense rows as CSV. When selfOnly is true the
// User Name column is omitted.
func ExpenseCSV(w io.Writer, rows []ledger.ExpenseRow, selfOnly bool) error {
	cw := csv.NewWriter(w)

	header := []string{"Date", "User Name", "Amount", "Note"}
	if selfOnly {
		header = []string{"Date", "Amount", "Note"}
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	for _, e := range rows {
		record := []string{
			e.ExpenseDate.Format(dayFormat),
			e.UserName,
			e.Amount.StringFixed(2),
			e.Note,
		}
		if selfOnly {
			record = []string{
				e.ExpenseDate.Format(dayFormat),
				e.Amount.StringFixed(2),
				e.Note,
			}
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// PaymentCSV writes payment rows as CSV. When selfOnly is true the
// User Name column is omitted.
func PaymentCSV(w io.Writer, rows []ledger.PaymentRow, selfOnly bool) error {
	cw := csv.NewWriter(w)

	header := []string{"Date", "User Name", "Amount"}
	if selfOnly {
		header = []string{"Date", "Amount"}
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	for _, p := range rows {
		record := []string{
			p.PaymentDate.Format(dayFormat),
			p.UserName,
			p.Amount.StringFixed(2),
		}
		if selfOnly {
			record = []string{
				p.PaymentDate.Format(dayFormat),
				p.Amount.StringFixed(2),
			}
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// SummaryCSV writes the per-user balance summary, one row per user in
// the order the engine produced them (unsettled first).
func SummaryCSV(w io.Writer, totals []ledger.UserTotal) error {
	cw := csv.NewWriter(w)

	header := []string{"User Name", "Total Expenses", "Total Payments", "Outstanding", "Status"}
	if err := cw.Write(header); err != nil {
		return err
	}

	for _, t := range totals {
		status := "Pending"
		if t.IsSettled {
			status = "Settled"
		}
		record := []string{
			t.UserName,
			t.TotalAmount.StringFixed(2),
			t.TotalPaid.StringFixed(2),
			t.RemainingBalance.StringFixed(2),
			status,
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}
