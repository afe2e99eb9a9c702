package sqlite

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/workledger/workledger-go/internal/components/invoice"
	"github.com/workledger/workledger-go/internal/components/invoice/preview"
	"github.com/workledger/workledger-go/internal/components/invoice/suggestions"
	"github.com/workledger/workledger-go/internal/store"
)

// invoiceStore implements invoice.Repository over the invoice_records and
// invoice_version_records tables. Version snapshots are whole-invoice JSON
// documents; they are immutable once written.
type invoiceStore struct {
	db *gorm.DB
}

func invoiceToRecord(inv *invoice.Invoice) (*store.InvoiceRecord, error) {
	items, err := json.Marshal(inv.Items)
	if err != nil {
		return nil, err
	}

	return &store.InvoiceRecord{
		ID:          inv.ID,
		ClientID:    inv.ClientID,
		DateFrom:    unixNano(inv.DateFrom),
		DateTo:      unixNano(inv.DateTo),
		Currency:    inv.Currency,
		Version:     inv.Version,
		Status:      inv.Status,
		Subtotal:    inv.Subtotal.String(),
		Tax:         inv.Tax.String(),
		TotalAmount: inv.TotalAmount.String(),
		Items:       string(items),
		CreatedAt:   unixNano(inv.CreatedAt),
		UpdatedAt:   unixNano(inv.UpdatedAt),
	}, nil
}

func invoiceFromRecord(rec *store.InvoiceRecord) (*invoice.Invoice, error) {
	subtotal, err := parseDec(rec.Subtotal)
	if err != nil {
		return nil, err
	}
	tax, err := parseDec(rec.Tax)
	if err != nil {
		return nil, err
	}
	total, err := parseDec(rec.TotalAmount)
	if err != nil {
		return nil, err
	}

	var items []invoice.LineItem
	if rec.Items != "" {
		if err := json.Unmarshal([]byte(rec.Items), &items); err != nil {
			return nil, err
		}
	}

	return &invoice.Invoice{
		ID:          rec.ID,
		ClientID:    rec.ClientID,
		DateFrom:    fromUnixNano(rec.DateFrom),
		DateTo:      fromUnixNano(rec.DateTo),
		Currency:    rec.Currency,
		Version:     rec.Version,
		Status:      rec.Status,
		Subtotal:    subtotal,
		Tax:         tax,
		TotalAmount: total,
		Items:       items,
		CreatedAt:   fromUnixNano(rec.CreatedAt),
		UpdatedAt:   fromUnixNano(rec.UpdatedAt),
	}, nil
}

func versionRecord(inv *invoice.Invoice) (*store.InvoiceVersionRecord, error) {
	snapshot, err := json.Marshal(inv)
	if err != nil {
		return nil, err
	}
	return &store.InvoiceVersionRecord{
		InvoiceID: inv.ID,
		Version:   inv.Version,
		Snapshot:  string(snapshot),
		CreatedAt: unixNano(inv.UpdatedAt),
	}, nil
}

func (s *invoiceStore) Create(ctx context.Context, inv *invoice.Invoice) error {
	now := time.Now()
	if inv.CreatedAt.IsZero() {
		inv.CreatedAt = now
	}
	inv.UpdatedAt = now

	rec, err := invoiceToRecord(inv)
	if err != nil {
		return err
	}
	snap, err := versionRecord(inv)
	if err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(rec).Error; err != nil {
			return err
		}
		return tx.Create(snap).Error
	})
}

func (s *invoiceStore) Get(ctx context.Context, id string) (*invoice.Invoice, error) {
	var rec store.InvoiceRecord
	result := s.db.WithContext(ctx).First(&rec, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, invoice.ErrNotFound
		}
		return nil, result.Error
	}
	return invoiceFromRecord(&rec)
}

// UpdateCAS replaces the invoice row iff its stored version still equals
// expectedVersion. The guarded UPDATE and the snapshot insert share one
// transaction so a lost race leaves no partial state.
func (s *invoiceStore) UpdateCAS(ctx context.Context, inv *invoice.Invoice, expectedVersion int) error {
	inv.UpdatedAt = time.Now()

	rec, err := invoiceToRecord(inv)
	if err != nil {
		return err
	}
	snap, err := versionRecord(inv)
	if err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&store.InvoiceRecord{}).
			Where("id = ? AND version = ?", inv.ID, expectedVersion).
			Updates(map[string]any{
				"client_id":    rec.ClientID,
				"date_from":    rec.DateFrom,
				"date_to":      rec.DateTo,
				"currency":     rec.Currency,
				"version":      rec.Version,
				"status":       rec.Status,
				"subtotal":     rec.Subtotal,
				"tax":          rec.Tax,
				"total_amount": rec.TotalAmount,
				"items":        rec.Items,
				"updated_at":   rec.UpdatedAt,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			var count int64
			if err := tx.Model(&store.InvoiceRecord{}).Where("id = ?", inv.ID).Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return invoice.ErrNotFound
			}
			return invoice.ErrVersionConflict
		}

		return tx.Create(snap).Error
	})
}

func (s *invoiceStore) GetVersion(ctx context.Context, id string, version int) (*invoice.Invoice, error) {
	var rec store.InvoiceVersionRecord
	result := s.db.WithContext(ctx).First(&rec, "invoice_id = ? AND version = ?", id, version)
	if result.Error != nil {
		if !errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, result.Error
		}

		var count int64
		if err := s.db.WithContext(ctx).Model(&store.InvoiceRecord{}).Where("id = ?", id).Count(&count).Error; err != nil {
			return nil, err
		}
		if count == 0 {
			return nil, invoice.ErrNotFound
		}
		return nil, invoice.ErrVersionNotFound
	}

	var inv invoice.Invoice
	if err := json.Unmarshal([]byte(rec.Snapshot), &inv); err != nil {
		return nil, err
	}
	return &inv, nil
}

// suggestionStore implements suggestions.Repository over the
// suggestion_records table.
type suggestionStore struct {
	db *gorm.DB
}

func suggestionToRecord(sg *suggestions.Suggestion) *store.SuggestionRecord {
	return &store.SuggestionRecord{
		ID:               sg.ID,
		InvoiceID:        sg.InvoiceID,
		Token:            sg.Token,
		Kind:             sg.Kind,
		Payload:          string(sg.Payload),
		Note:             sg.Note,
		Status:           sg.Status,
		AppliedInVersion: sg.AppliedInVersion,
		CreatedAt:        unixNano(sg.CreatedAt),
		UpdatedAt:        unixNano(sg.UpdatedAt),
	}
}

func suggestionFromRecord(rec *store.SuggestionRecord) *suggestions.Suggestion {
	return &suggestions.Suggestion{
		ID:               rec.ID,
		InvoiceID:        rec.InvoiceID,
		Token:            rec.Token,
		Kind:             rec.Kind,
		Payload:          json.RawMessage(rec.Payload),
		Note:             rec.Note,
		Status:           rec.Status,
		AppliedInVersion: rec.AppliedInVersion,
		CreatedAt:        fromUnixNano(rec.CreatedAt),
		UpdatedAt:        fromUnixNano(rec.UpdatedAt),
	}
}

func (s *suggestionStore) Create(ctx context.Context, sg *suggestions.Suggestion) error {
	now := time.Now()
	if sg.CreatedAt.IsZero() {
		sg.CreatedAt = now
	}
	sg.UpdatedAt = now

	return s.db.WithContext(ctx).Create(suggestionToRecord(sg)).Error
}

func (s *suggestionStore) Get(ctx context.Context, id string) (*suggestions.Suggestion, error) {
	var rec store.SuggestionRecord
	result := s.db.WithContext(ctx).First(&rec, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, suggestions.ErrNotFound
		}
		return nil, result.Error
	}
	return suggestionFromRecord(&rec), nil
}

func (s *suggestionStore) ListByInvoice(ctx context.Context, invoiceID, status string) ([]*suggestions.Suggestion, error) {
	query := s.db.WithContext(ctx).Where("invoice_id = ?", invoiceID)
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var recs []*store.SuggestionRecord
	if err := query.Order("created_at, id").Find(&recs).Error; err != nil {
		return nil, err
	}

	result := make([]*suggestions.Suggestion, 0, len(recs))
	for _, rec := range recs {
		result = append(result, suggestionFromRecord(rec))
	}
	return result, nil
}

func (s *suggestionStore) SetStatus(ctx context.Context, id, status string, appliedInVersion int) error {
	updates := map[string]any{
		"status":     status,
		"updated_at": time.Now().UnixNano(),
	}
	if status == suggestions.StatusApplied {
		updates["applied_in_version"] = appliedInVersion
	}

	result := s.db.WithContext(ctx).Model(&store.SuggestionRecord{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return suggestions.ErrNotFound
	}
	return nil
}

// previewStore implements preview.Store over the preview_token_records table.
type previewStore struct {
	db *gorm.DB
}

func (s *previewStore) Issue(ctx context.Context, invoiceID string, ttl time.Duration) (*preview.Token, error) {
	value, err := preview.GenerateValue()
	if err != nil {
		return nil, err
	}
	if ttl <= 0 {
		ttl = preview.DefaultTTL
	}

	now := time.Now()
	token := &preview.Token{
		Value:     value,
		InvoiceID: invoiceID,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}

	rec := &store.PreviewTokenRecord{
		Value:     token.Value,
		InvoiceID: token.InvoiceID,
		CreatedAt: unixNano(token.CreatedAt),
		ExpiresAt: unixNano(token.ExpiresAt),
	}
	if err := s.db.WithContext(ctx).Create(rec).Error; err != nil {
		return nil, err
	}
	return token, nil
}

func (s *previewStore) Validate(ctx context.Context, value, invoiceID string) (*preview.Token, error) {
	var rec store.PreviewTokenRecord
	result := s.db.WithContext(ctx).First(&rec, "value = ?", value)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, preview.ErrTokenNotFound
		}
		return nil, result.Error
	}

	token := &preview.Token{
		Value:     rec.Value,
		InvoiceID: rec.InvoiceID,
		CreatedAt: fromUnixNano(rec.CreatedAt),
		ExpiresAt: fromUnixNano(rec.ExpiresAt),
	}
	if token.IsExpired() {
		return nil, preview.ErrTokenExpired
	}
	if token.InvoiceID != invoiceID {
		return nil, preview.ErrWrongScope
	}
	return token, nil
}

func (s *previewStore) Revoke(ctx context.Context, value string) error {
	return s.db.WithContext(ctx).Delete(&store.PreviewTokenRecord{}, "value = ?", value).Error
}

func (s *previewStore) CleanExpired(ctx context.Context) error {
	return s.db.WithContext(ctx).Delete(&store.PreviewTokenRecord{}, "expires_at < ?", time.Now().UnixNano()).Error
}
