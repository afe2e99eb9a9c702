package ledger

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

var (
	ErrTaskNotFound    = errors.New("task not found")
	ErrExpenseNotFound = errors.New("expense not found")
)

// TaskRepo provides task storage operations.
type TaskRepo interface {
	// Create stores a new task.
	Create(ctx context.Context, task *Task) error

	// Get retrieves a task by ID. Returns ErrTaskNotFound if not found.
	Get(ctx context.Context, id string) (*Task, error)

	// ListBillable returns approved, not-yet-invoiced tasks for a client
	// whose date falls within [from, to], ordered by date then ID.
	ListBillable(ctx context.Context, clientID string, from, to time.Time) ([]*Task, error)

	// MarkInvoiced stamps the given tasks with the consuming invoice ID.
	MarkInvoiced(ctx context.Context, ids []string, invoiceID string) error
}

// ExpenseRepo provides expense storage operations.
type ExpenseRepo interface {
	// Create stores a new expense.
	Create(ctx context.Context, expense *Expense) error

	// Get retrieves an expense by ID. Returns ErrExpenseNotFound if not found.
	Get(ctx context.Context, id string) (*Expense, error)

	// ListBillable returns approved, not-yet-invoiced expenses for a client
	// whose date falls within [from, to], ordered by date then ID.
	ListBillable(ctx context.Context, clientID string, from, to time.Time) ([]*Expense, error)

	// MarkInvoiced stamps the given expenses with the consuming invoice ID.
	MarkInvoiced(ctx context.Context, ids []string, invoiceID string) error
}

// MemoryTaskRepo is an in-memory implementation of TaskRepo.
type MemoryTaskRepo struct {
	mu    sync.RWMutex
	tasks map[string]*Task // by ID
}

func NewMemoryTaskRepo() *MemoryTaskRepo {
	return &MemoryTaskRepo{tasks: make(map[string]*Task)}
}

func (r *MemoryTaskRepo) Create(ctx context.Context, task *Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if task.CreatedAt.IsZero() {
		task.CreatedAt = time.Now()
	}

	t := *task
	r.tasks[task.ID] = &t
	return nil
}

func (r *MemoryTaskRepo) Get(ctx context.Context, id string) (*Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	task, ok := r.tasks[id]
	if !ok {
		return nil, ErrTaskNotFound
	}
	t := *task
	return &t, nil
}

func (r *MemoryTaskRepo) ListBillable(ctx context.Context, clientID string, from, to time.Time) ([]*Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*Task
	for _, task := range r.tasks {
		if billableWindow(task.ClientID, task.Approved, task.InvoicedBy, task.Date, clientID, from, to) {
			t := *task
			result = append(result, &t)
		}
	}
	sortTasks(result)
	return result, nil
}

func (r *MemoryTaskRepo) MarkInvoiced(ctx context.Context, ids []string, invoiceID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, id := range ids {
		task, ok := r.tasks[id]
		if !ok {
			return ErrTaskNotFound
		}
		task.InvoicedBy = invoiceID
	}
	return nil
}

// MemoryExpenseRepo is an in-memory implementation of ExpenseRepo.
type MemoryExpenseRepo struct {
	mu       sync.RWMutex
	expenses map[string]*Expense // by ID
}

func NewMemoryExpenseRepo() *MemoryExpenseRepo {
	return &MemoryExpenseRepo{expenses: make(map[string]*Expense)}
}

func (r *MemoryExpenseRepo) Create(ctx context.Context, expense *Expense) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if expense.CreatedAt.IsZero() {
		expense.CreatedAt = time.Now()
	}

	e := *expense
	r.expenses[expense.ID] = &e
	return nil
}

func (r *MemoryExpenseRepo) Get(ctx context.Context, id string) (*Expense, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	expense, ok := r.expenses[id]
	if !ok {
		return nil, ErrExpenseNotFound
	}
	e := *expense
	return &e, nil
}

func (r *MemoryExpenseRepo) ListBillable(ctx context.Context, clientID string, from, to time.Time) ([]*Expense, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*Expense
	for _, expense := range r.expenses {
		if billableWindow(expense.ClientID, expense.Approved, expense.InvoicedBy, expense.Date, clientID, from, to) {
			e := *expense
			result = append(result, &e)
		}
	}
	sortExpenses(result)
	return result, nil
}

func (r *MemoryExpenseRepo) MarkInvoiced(ctx context.Context, ids []string, invoiceID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, id := range ids {
		expense, ok := r.expenses[id]
		if !ok {
			return ErrExpenseNotFound
		}
		expense.InvoicedBy = invoiceID
	}
	return nil
}

// billableWindow reports whether an item belongs in a build for the given
// client and period. The period bounds are inclusive.
func billableWindow(itemClient string, approved bool, invoicedBy string, date time.Time, clientID string, from, to time.Time) bool {
	if itemClient != clientID {
		return false
	}
	if !approved || invoicedBy != "" {
		return false
	}
	if date.Before(from) || date.After(to) {
		return false
	}
	return true
}

// Deterministic ordering keeps invoice builds reproducible.
func sortTasks(tasks []*Task) {
	sort.Slice(tasks, func(i, j int) bool {
		if !tasks[i].Date.Equal(tasks[j].Date) {
			return tasks[i].Date.Before(tasks[j].Date)
		}
		return tasks[i].ID < tasks[j].ID
	})
}

func sortExpenses(expenses []*Expense) {
	sort.Slice(expenses, func(i, j int) bool {
		if !expenses[i].Date.Equal(expenses[j].Date) {
			return expenses[i].Date.Before(expenses[j].Date)
		}
		return expenses[i].ID < expenses[j].ID
	})
}
