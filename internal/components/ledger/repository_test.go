package ledger_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/workledger/workledger-go/internal/components/ledger"
)

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestMemoryTaskRepo_CreateAndGet(t *testing.T) {
	repo := ledger.NewMemoryTaskRepo()
	ctx := context.Background()

	task := &ledger.Task{
		ID:          "task-1",
		ClientID:    "client-1",
		Description: "backend work",
		Quantity:    decimal.NewFromInt(8),
		UnitPrice:   decimal.NewFromInt(100),
		Date:        day("2025-06-10"),
		Approved:    true,
	}
	if err := repo.Create(ctx, task); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	got, err := repo.Get(ctx, "task-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !got.Amount().Equal(decimal.NewFromInt(800)) {
		t.Errorf("expected amount 800, got %s", got.Amount())
	}

	if _, err := repo.Get(ctx, "missing"); !errors.Is(err, ledger.ErrTaskNotFound) {
		t.Errorf("expected ErrTaskNotFound, got %v", err)
	}
}

func TestMemoryTaskRepo_ListBillable(t *testing.T) {
	repo := ledger.NewMemoryTaskRepo()
	ctx := context.Background()

	tasks := []*ledger.Task{
		{ID: "t1", ClientID: "client-1", Date: day("2025-06-05"), Approved: true},
		{ID: "t2", ClientID: "client-1", Date: day("2025-06-20"), Approved: true},
		{ID: "t3", ClientID: "client-1", Date: day("2025-07-02"), Approved: true},   // outside period
		{ID: "t4", ClientID: "client-1", Date: day("2025-06-10"), Approved: false},  // not approved
		{ID: "t5", ClientID: "client-2", Date: day("2025-06-10"), Approved: true},   // other client
		{ID: "t6", ClientID: "client-1", Date: day("2025-06-12"), Approved: true, InvoicedBy: "inv-0"}, // already billed
	}
	for _, task := range tasks {
		if err := repo.Create(ctx, task); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}

	got, err := repo.ListBillable(ctx, "client-1", day("2025-06-01"), day("2025-06-30"))
	if err != nil {
		t.Fatalf("ListBillable failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 billable tasks, got %d", len(got))
	}
	if got[0].ID != "t1" || got[1].ID != "t2" {
		t.Errorf("expected date order t1, t2; got %s, %s", got[0].ID, got[1].ID)
	}
}

func TestMemoryTaskRepo_ListBillableInclusiveBounds(t *testing.T) {
	repo := ledger.NewMemoryTaskRepo()
	ctx := context.Background()

	for _, task := range []*ledger.Task{
		{ID: "first", ClientID: "c", Date: day("2025-06-01"), Approved: true},
		{ID: "last", ClientID: "c", Date: day("2025-06-30"), Approved: true},
	} {
		if err := repo.Create(ctx, task); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}

	got, err := repo.ListBillable(ctx, "c", day("2025-06-01"), day("2025-06-30"))
	if err != nil {
		t.Fatalf("ListBillable failed: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("period bounds are inclusive, expected 2 tasks, got %d", len(got))
	}
}

func TestMemoryTaskRepo_MarkInvoiced(t *testing.T) {
	repo := ledger.NewMemoryTaskRepo()
	ctx := context.Background()

	task := &ledger.Task{ID: "t1", ClientID: "c", Date: day("2025-06-10"), Approved: true}
	if err := repo.Create(ctx, task); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if err := repo.MarkInvoiced(ctx, []string{"t1"}, "inv-1"); err != nil {
		t.Fatalf("MarkInvoiced failed: %v", err)
	}

	got, _ := repo.Get(ctx, "t1")
	if got.InvoicedBy != "inv-1" {
		t.Errorf("expected invoiced_by inv-1, got %q", got.InvoicedBy)
	}

	// Marked tasks drop out of the billable set.
	billable, _ := repo.ListBillable(ctx, "c", day("2025-06-01"), day("2025-06-30"))
	if len(billable) != 0 {
		t.Errorf("expected no billable tasks after marking, got %d", len(billable))
	}

	if err := repo.MarkInvoiced(ctx, []string{"missing"}, "inv-1"); !errors.Is(err, ledger.ErrTaskNotFound) {
		t.Errorf("expected ErrTaskNotFound, got %v", err)
	}
}

func TestMemoryExpenseRepo_ListBillable(t *testing.T) {
	repo := ledger.NewMemoryExpenseRepo()
	ctx := context.Background()

	expenses := []*ledger.Expense{
		{ID: "e1", ClientID: "client-1", Amount: decimal.NewFromInt(120), Date: day("2025-06-15"), Approved: true},
		{ID: "e2", ClientID: "client-1", Amount: decimal.NewFromInt(45), Date: day("2025-05-15"), Approved: true},
	}
	for _, e := range expenses {
		if err := repo.Create(ctx, e); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}

	got, err := repo.ListBillable(ctx, "client-1", day("2025-06-01"), day("2025-06-30"))
	if err != nil {
		t.Fatalf("ListBillable failed: %v", err)
	}
	if len(got) != 1 || got[0].ID != "e1" {
		t.Errorf("expected only e1, got %d items", len(got))
	}
}
