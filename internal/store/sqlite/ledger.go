package sqlite

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/workledger/workledger-go/internal/components/ledger"
	"github.com/workledger/workledger-go/internal/store"
)

// taskStore implements ledger.TaskRepo over the task_records table.
type taskStore struct {
	db *gorm.DB
}

func taskToRecord(t *ledger.Task) *store.TaskRecord {
	return &store.TaskRecord{
		ID:          t.ID,
		ClientID:    t.ClientID,
		Description: t.Description,
		Quantity:    t.Quantity.String(),
		UnitPrice:   t.UnitPrice.String(),
		Date:        unixNano(t.Date),
		Approved:    t.Approved,
		InvoicedBy:  t.InvoicedBy,
		CreatedAt:   unixNano(t.CreatedAt),
	}
}

func taskFromRecord(rec *store.TaskRecord) (*ledger.Task, error) {
	quantity, err := parseDec(rec.Quantity)
	if err != nil {
		return nil, err
	}
	unitPrice, err := parseDec(rec.UnitPrice)
	if err != nil {
		return nil, err
	}

	return &ledger.Task{
		ID:          rec.ID,
		ClientID:    rec.ClientID,
		Description: rec.Description,
		Quantity:    quantity,
		UnitPrice:   unitPrice,
		Date:        fromUnixNano(rec.Date),
		Approved:    rec.Approved,
		InvoicedBy:  rec.InvoicedBy,
		CreatedAt:   fromUnixNano(rec.CreatedAt),
	}, nil
}

func (s *taskStore) Create(ctx context.Context, task *ledger.Task) error {
	if task.CreatedAt.IsZero() {
		task.CreatedAt = time.Now()
	}
	return s.db.WithContext(ctx).Create(taskToRecord(task)).Error
}

func (s *taskStore) Get(ctx context.Context, id string) (*ledger.Task, error) {
	var rec store.TaskRecord
	result := s.db.WithContext(ctx).First(&rec, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ledger.ErrTaskNotFound
		}
		return nil, result.Error
	}
	return taskFromRecord(&rec)
}

func (s *taskStore) ListBillable(ctx context.Context, clientID string, from, to time.Time) ([]*ledger.Task, error) {
	var recs []*store.TaskRecord
	err := s.db.WithContext(ctx).
		Where("client_id = ? AND approved = ? AND invoiced_by = '' AND date >= ? AND date <= ?",
			clientID, true, unixNano(from), unixNano(to)).
		Order("date, id").
		Find(&recs).Error
	if err != nil {
		return nil, err
	}

	tasks := make([]*ledger.Task, 0, len(recs))
	for _, rec := range recs {
		task, err := taskFromRecord(rec)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, nil
}

func (s *taskStore) MarkInvoiced(ctx context.Context, ids []string, invoiceID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, id := range ids {
			result := tx.Model(&store.TaskRecord{}).Where("id = ?", id).Update("invoiced_by", invoiceID)
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected == 0 {
				return ledger.ErrTaskNotFound
			}
		}
		return nil
	})
}

// expenseStore implements ledger.ExpenseRepo over the expense_records table.
type expenseStore struct {
	db *gorm.DB
}

func expenseToRecord(e *ledger.Expense) *store.ExpenseRecord {
	return &store.ExpenseRecord{
		ID:          e.ID,
		ClientID:    e.ClientID,
		Description: e.Description,
		Amount:      e.Amount.String(),
		Date:        unixNano(e.Date),
		Approved:    e.Approved,
		InvoicedBy:  e.InvoicedBy,
		CreatedAt:   unixNano(e.CreatedAt),
	}
}

func expenseFromRecord(rec *store.ExpenseRecord) (*ledger.Expense, error) {
	amount, err := parseDec(rec.Amount)
	if err != nil {
		return nil, err
	}

	return &ledger.Expense{
		ID:          rec.ID,
		ClientID:    rec.ClientID,
		Description: rec.Description,
		Amount:      amount,
		Date:        fromUnixNano(rec.Date),
		Approved:    rec.Approved,
		InvoicedBy:  rec.InvoicedBy,
		CreatedAt:   fromUnixNano(rec.CreatedAt),
	}, nil
}

func (s *expenseStore) Create(ctx context.Context, expense *ledger.Expense) error {
	if expense.CreatedAt.IsZero() {
		expense.CreatedAt = time.Now()
	}
	return s.db.WithContext(ctx).Create(expenseToRecord(expense)).Error
}

func (s *expenseStore) Get(ctx context.Context, id string) (*ledger.Expense, error) {
	var rec store.ExpenseRecord
	result := s.db.WithContext(ctx).First(&rec, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ledger.ErrExpenseNotFound
		}
		return nil, result.Error
	}
	return expenseFromRecord(&rec)
}

func (s *expenseStore) ListBillable(ctx context.Context, clientID string, from, to time.Time) ([]*ledger.Expense, error) {
	var recs []*store.ExpenseRecord
	err := s.db.WithContext(ctx).
		Where("client_id = ? AND approved = ? AND invoiced_by = '' AND date >= ? AND date <= ?",
			clientID, true, unixNano(from), unixNano(to)).
		Order("date, id").
		Find(&recs).Error
	if err != nil {
		return nil, err
	}

	expenses := make([]*ledger.Expense, 0, len(recs))
	for _, rec := range recs {
		expense, err := expenseFromRecord(rec)
		if err != nil {
			return nil, err
		}
		expenses = append(expenses, expense)
	}
	return expenses, nil
}

func (s *expenseStore) MarkInvoiced(ctx context.Context, ids []string, invoiceID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, id := range ids {
			result := tx.Model(&store.ExpenseRecord{}).Where("id = ?", id).Update("invoiced_by", invoiceID)
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected == 0 {
				return ledger.ErrExpenseNotFound
			}
		}
		return nil
	})
}
