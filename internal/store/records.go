package store

// Record types are the GORM-mapped rows for the sqlite driver. Decimal
// amounts are stored as strings to avoid float drift; timestamps are
// unix nanoseconds so ordering survives the round trip.

// UserRecord is a persisted user account.
type UserRecord struct {
	ID           string `gorm:"primaryKey"`
	Username     string `gorm:"uniqueIndex"`
	Email        string `gorm:"index"`
	DisplayName  string
	PasswordHash string
	Role         string
	CreatedAt    int64
}

// SessionRecord is a persisted login session.
type SessionRecord struct {
	Token     string `gorm:"primaryKey"`
	UserID    string `gorm:"index"`
	CreatedAt int64
	ExpiresAt int64
}

// TaskRecord is a persisted work task.
type TaskRecord struct {
	ID          string `gorm:"primaryKey"`
	ClientID    string `gorm:"index"`
	Description string
	Quantity    string
	UnitPrice   string
	Date        int64
	Approved    bool
	InvoicedBy  string `gorm:"index"`
	CreatedAt   int64
}

// ExpenseRecord is a persisted expense.
type ExpenseRecord struct {
	ID          string `gorm:"primaryKey"`
	ClientID    string `gorm:"index"`
	Description string
	Amount      string
	Date        int64
	Approved    bool
	InvoicedBy  string `gorm:"index"`
	CreatedAt   int64
}

// InvoiceRecord is the current state of an invoice. Line items are stored
// as a JSON document; they are always read and written as a whole.
type InvoiceRecord struct {
	ID          string `gorm:"primaryKey"`
	ClientID    string `gorm:"index"`
	DateFrom    int64
	DateTo      int64
	Currency    string
	Version     int
	Status      string
	Subtotal    string
	Tax         string
	TotalAmount string
	Items       string
	CreatedAt   int64
	UpdatedAt   int64
}

// InvoiceVersionRecord is an immutable snapshot of an invoice at a version.
type InvoiceVersionRecord struct {
	InvoiceID string `gorm:"primaryKey"`
	Version   int    `gorm:"primaryKey"`
	Snapshot  string
	CreatedAt int64
}

// SuggestionRecord is a persisted change suggestion.
type SuggestionRecord struct {
	ID               string `gorm:"primaryKey"`
	InvoiceID        string `gorm:"index"`
	Token            string
	Kind             string
	Payload          string
	Note             string
	Status           string `gorm:"index"`
	AppliedInVersion int
	CreatedAt        int64
	UpdatedAt        int64
}

// PreviewTokenRecord is a persisted preview token.
type PreviewTokenRecord struct {
	Value     string `gorm:"primaryKey"`
	InvoiceID string `gorm:"index"`
	CreatedAt int64
	ExpiresAt int64
}
