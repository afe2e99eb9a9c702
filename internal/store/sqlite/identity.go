package sqlite

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/workledger/workledger-go/internal/components/identity"
	"github.com/workledger/workledger-go/internal/store"
)

// userStore implements identity.PartyRepo over the users table.
type userStore struct {
	db *gorm.DB
}

func userToRecord(u *identity.User) *store.UserRecord {
	return &store.UserRecord{
		ID:           u.ID,
		Username:     u.Username,
		Email:        strings.ToLower(strings.TrimSpace(u.Email)),
		DisplayName:  u.DisplayName,
		PasswordHash: u.PasswordHash,
		Role:         u.Role,
		CreatedAt:    unixNano(u.CreatedAt),
	}
}

func userFromRecord(rec *store.UserRecord) *identity.User {
	return &identity.User{
		ID:           rec.ID,
		Username:     rec.Username,
		Email:        rec.Email,
		DisplayName:  rec.DisplayName,
		PasswordHash: rec.PasswordHash,
		Role:         rec.Role,
		CreatedAt:    fromUnixNano(rec.CreatedAt),
	}
}

func (s *userStore) Create(ctx context.Context, user *identity.User) error {
	if user.ID == "" {
		user.ID = identity.NewID()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&store.UserRecord{}).Where("username = ?", user.Username).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return identity.ErrUserExists
		}

		if norm := strings.ToLower(strings.TrimSpace(user.Email)); norm != "" {
			if err := tx.Model(&store.UserRecord{}).Where("email = ?", norm).Count(&count).Error; err != nil {
				return err
			}
			if count > 0 {
				return identity.ErrEmailExists
			}
		}

		return tx.Create(userToRecord(user)).Error
	})
}

func (s *userStore) Get(ctx context.Context, id string) (*identity.User, error) {
	var rec store.UserRecord
	result := s.db.WithContext(ctx).First(&rec, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, identity.ErrUserNotFound
		}
		return nil, result.Error
	}
	return userFromRecord(&rec), nil
}

func (s *userStore) GetByUsername(ctx context.Context, username string) (*identity.User, error) {
	var rec store.UserRecord
	result := s.db.WithContext(ctx).First(&rec, "username = ?", username)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, identity.ErrUserNotFound
		}
		return nil, result.Error
	}
	return userFromRecord(&rec), nil
}

func (s *userStore) GetByEmail(ctx context.Context, email string) (*identity.User, error) {
	norm := strings.ToLower(strings.TrimSpace(email))
	if norm == "" {
		return nil, identity.ErrUserNotFound
	}

	var rec store.UserRecord
	result := s.db.WithContext(ctx).First(&rec, "email = ?", norm)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, identity.ErrUserNotFound
		}
		return nil, result.Error
	}
	return userFromRecord(&rec), nil
}

func (s *userStore) Update(ctx context.Context, user *identity.User) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing store.UserRecord
		if err := tx.First(&existing, "id = ?", user.ID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return identity.ErrUserNotFound
			}
			return err
		}
		if existing.Role == identity.RoleSuperAdmin && user.Role != identity.RoleSuperAdmin {
			return identity.ErrSuperAdminRoleChange
		}

		if norm := strings.ToLower(strings.TrimSpace(user.Email)); norm != "" && norm != existing.Email {
			var count int64
			if err := tx.Model(&store.UserRecord{}).Where("email = ? AND id <> ?", norm, user.ID).Count(&count).Error; err != nil {
				return err
			}
			if count > 0 {
				return identity.ErrEmailExists
			}
		}

		return tx.Save(userToRecord(user)).Error
	})
}

func (s *userStore) Delete(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing store.UserRecord
		if err := tx.First(&existing, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return identity.ErrUserNotFound
			}
			return err
		}
		if existing.Role == identity.RoleSuperAdmin {
			return identity.ErrSuperAdminProtected
		}

		return tx.Delete(&store.UserRecord{}, "id = ?", id).Error
	})
}

func (s *userStore) List(ctx context.Context) ([]*identity.User, error) {
	var recs []*store.UserRecord
	if err := s.db.WithContext(ctx).Find(&recs).Error; err != nil {
		return nil, err
	}

	users := make([]*identity.User, 0, len(recs))
	for _, rec := range recs {
		users = append(users, userFromRecord(rec))
	}
	return users, nil
}

// sessionStore implements identity.SessionRepo over the sessions table.
type sessionStore struct {
	db *gorm.DB
}

func (s *sessionStore) Create(ctx context.Context, userID string, ttl time.Duration) (*identity.Session, error) {
	token, err := identity.GenerateToken()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	session := &identity.Session{
		Token:     token,
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}

	rec := &store.SessionRecord{
		Token:     session.Token,
		UserID:    session.UserID,
		CreatedAt: unixNano(session.CreatedAt),
		ExpiresAt: unixNano(session.ExpiresAt),
	}
	if err := s.db.WithContext(ctx).Create(rec).Error; err != nil {
		return nil, err
	}
	return session, nil
}

func (s *sessionStore) Get(ctx context.Context, token string) (*identity.Session, error) {
	var rec store.SessionRecord
	result := s.db.WithContext(ctx).First(&rec, "token = ?", token)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, identity.ErrSessionNotFound
		}
		return nil, result.Error
	}

	session := &identity.Session{
		Token:     rec.Token,
		UserID:    rec.UserID,
		CreatedAt: fromUnixNano(rec.CreatedAt),
		ExpiresAt: fromUnixNano(rec.ExpiresAt),
	}
	if session.IsExpired() {
		return nil, identity.ErrSessionExpired
	}
	return session, nil
}

func (s *sessionStore) Delete(ctx context.Context, token string) error {
	return s.db.WithContext(ctx).Delete(&store.SessionRecord{}, "token = ?", token).Error
}

func (s *sessionStore) DeleteByUser(ctx context.Context, userID string) error {
	return s.db.WithContext(ctx).Delete(&store.SessionRecord{}, "user_id = ?", userID).Error
}

func (s *sessionStore) DeleteExpired(ctx context.Context) (int, error) {
	result := s.db.WithContext(ctx).Delete(&store.SessionRecord{}, "expires_at < ?", time.Now().UnixNano())
	if result.Error != nil {
		return 0, result.Error
	}
	return int(result.RowsAffected), nil
}
