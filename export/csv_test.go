package export_test

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mealdesk/canteen-ledger/export"
	"github.com/mealdesk/canteen-ledger/ledger"
)

var jun3 = time.Date(2024, time.June, 3, 0, 0, 0, 0, time.UTC)

func lines(t *testing.T, buf *bytes.Buffer) []string {
	t.Helper()
	out := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	return out
}

func TestExpenseCSV_Staff(t *testing.T) {
	rows := []ledger.ExpenseRow{
		{UserName: "alice", Amount: decimal.RequireFromString("12.5"), ExpenseDate: jun3, Note: "lunch"},
	}

	var buf bytes.Buffer
	if err := export.ExpenseCSV(&buf, rows, false); err != nil {
		t.Fatal(err)
	}

	got := lines(t, &buf)
	if got[0] != "Date,User Name,Amount,Note" {
		t.Errorf("header = %q, want Date,User Name,Amount,Note", got[0])
	}
	if got[1] != "2024-06-03,alice,12.50,lunch" {
		t.Errorf("row = %q", got[1])
	}
}

func TestExpenseCSV_SelfOmitsUserName(t *testing.T) {
	rows := []ledger.ExpenseRow{
		{UserName: "alice", Amount: decimal.RequireFromString("8"), ExpenseDate: jun3, Note: "breakfast"},
	}

	var buf bytes.Buffer
	if err := export.ExpenseCSV(&buf, rows, true); err != nil {
		t.Fatal(err)
	}

	got := lines(t, &buf)
	if got[0] != "Date,Amount,Note" {
		t.Errorf("self header = %q, want Date,Amount,Note", got[0])
	}
	if strings.Contains(got[1], "alice") {
		t.Errorf("self export leaked user name: %q", got[1])
	}
	if got[1] != "2024-06-03,8.00,breakfast" {
		t.Errorf("row = %q", got[1])
	}
}

func TestPaymentCSV_Headers(t *testing.T) {
	rows := []ledger.PaymentRow{
		{UserName: "bob", Amount: decimal.RequireFromString("15"), PaymentDate: jun3},
	}

	var buf bytes.Buffer
	if err := export.PaymentCSV(&buf, rows, false); err != nil {
		t.Fatal(err)
	}
	got := lines(t, &buf)
	if got[0] != "Date,User Name,Amount" {
		t.Errorf("header = %q, want Date,User Name,Amount", got[0])
	}
	if got[1] != "2024-06-03,bob,15.00" {
		t.Errorf("row = %q", got[1])
	}

	buf.Reset()
	if err := export.PaymentCSV(&buf, rows, true); err != nil {
		t.Fatal(err)
	}
	got = lines(t, &buf)
	if got[0] != "Date,Amount" {
		t.Errorf("self header = %q, want Date,Amount", got[0])
	}
}

func TestSummaryCSV(t *testing.T) {
	totals := []ledger.UserTotal{
		{
			UserName:         "alice",
			TotalAmount:      decimal.RequireFromString("100"),
			TotalPaid:        decimal.RequireFromString("40"),
			RemainingBalance: decimal.RequireFromString("60"),
			IsSettled:        false,
		},
		{
			UserName:         "bob",
			TotalAmount:      decimal.RequireFromString("30"),
			TotalPaid:        decimal.RequireFromString("30"),
			RemainingBalance: decimal.Zero,
			IsSettled:        true,
		},
	}

	var buf bytes.Buffer
	if err := export.SummaryCSV(&buf, totals); err != nil {
		t.Fatal(err)
	}

	got := lines(t, &buf)
	if got[0] != "User Name,Total Expenses,Total Payments,Outstanding,Status" {
		t.Errorf("header = %q", got[0])
	}
	if got[1] != "alice,100.00,40.00,60.00,Pending" {
		t.Errorf("row 1 = %q", got[1])
	}
	if got[2] != "bob,30.00,30.00,0.00,Settled" {
		t.Errorf("row 2 = %q", got[2])
	}
}

func TestCSV_DeterministicBytes(t *testing.T) {
	// Identical inputs must produce byte-identical files.
	rows := []ledger.ExpenseRow{
		{UserName: "alice", Amount: decimal.RequireFromString("12.5"), ExpenseDate: jun3, Note: "lunch"},
		{UserName: "bob", Amount: decimal.RequireFromString("9"), ExpenseDate: jun3},
	}

	var a, b bytes.Buffer
	if err := export.ExpenseCSV(&a, rows, false); err != nil {
		t.Fatal(err)
	}
	if err := export.ExpenseCSV(&b, rows, false); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(a.Bytes(), b.Bytes()) {
		t.Error("repeated export produced different bytes")
	}
}
