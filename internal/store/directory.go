package store

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"time"

	"github.com/THORISO2Nnoi/GBV-sub000/internal/models"
	"github.com/THORISO2Nnoi/GBV-sub000/pkg/cache"
	"github.com/THORISO2Nnoi/GBV-sub000/pkg/errors"
	"github.com/THORISO2Nnoi/GBV-sub000/pkg/logger"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Directory read-only lookups of users and their trusted contacts
type Directory interface {
	GetUser(ctx context.Context, id string) (*models.User, error)
	GetContact(ctx context.Context, id string) (*models.TrustedContact, error)
	ActiveContacts(ctx context.Context, userID string) ([]models.TrustedContact, error)
}

// DBDirectory reads profiles from the shared database
type DBDirectory struct {
	db *gorm.DB
}

func NewDBDirectory(db *gorm.DB) *DBDirectory {
	return &DBDirectory{db: db}
}

func (d *DBDirectory) GetUser(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	if err := d.db.WithContext(ctx).Where("id = ?", id).First(&u).Error; err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.NotFound("user %s not found", id)
		}
		return nil, errors.Wrap(err, "get user")
	}
	return &u, nil
}

func (d *DBDirectory) GetContact(ctx context.Context, id string) (*models.TrustedContact, error) {
	var c models.TrustedContact
	if err := d.db.WithContext(ctx).Where("id = ?", id).First(&c).Error; err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.NotFound("contact %s not found", id)
		}
		return nil, errors.Wrap(err, "get contact")
	}
	return &c, nil
}

// ActiveContacts returns the user's reachable contacts in creation order.
func (d *DBDirectory) ActiveContacts(ctx context.Context, userID string) ([]models.TrustedContact, error) {
	var contacts []models.TrustedContact
	err := d.db.WithContext(ctx).
		Where("user_id = ? AND active = ?", userID, true).
		Order("created_at, id").
		Find(&contacts).Error
	if err != nil {
		return nil, errors.Wrap(err, "list contacts")
	}
	return contacts, nil
}

// SaveUser upserts a profile. Used for seeding; the account service owns profiles.
func (d *DBDirectory) SaveUser(ctx context.Context, u *models.User) error {
	return d.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(u).Error
}

// SaveContact upserts a trusted contact.
func (d *DBDirectory) SaveContact(ctx context.Context, c *models.TrustedContact) error {
	return d.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(c).Error
}

// CachedDirectory read-through cache in front of another Directory
type CachedDirectory struct {
	next  Directory
	cache cache.Cache
	ttl   time.Duration
}

func NewCachedDirectory(next Directory, c cache.Cache, ttl time.Duration) *CachedDirectory {
	return &CachedDirectory{next: next, cache: c, ttl: ttl}
}

func (d *CachedDirectory) GetUser(ctx context.Context, id string) (*models.User, error) {
	return cached(ctx, d, "dir:user:"+id, func() (*models.User, error) {
		return d.next.GetUser(ctx, id)
	})
}

func (d *CachedDirectory) GetContact(ctx context.Context, id string) (*models.TrustedContact, error) {
	return cached(ctx, d, "dir:contact:"+id, func() (*models.TrustedContact, error) {
		return d.next.GetContact(ctx, id)
	})
}

func (d *CachedDirectory) ActiveContacts(ctx context.Context, userID string) ([]models.TrustedContact, error) {
	list, err := cached(ctx, d, "dir:contacts:"+userID, func() (*[]models.TrustedContact, error) {
		contacts, err := d.next.ActiveContacts(ctx, userID)
		return &contacts, err
	})
	if err != nil {
		return nil, err
	}
	return *list, nil
}

// Invalidate drops everything cached for a user and, optionally, one contact.
func (d *CachedDirectory) Invalidate(ctx context.Context, userID, contactID string) {
	_ = d.cache.Delete(ctx, "dir:user:"+userID)
	_ = d.cache.Delete(ctx, "dir:contacts:"+userID)
	if contactID != "" {
		_ = d.cache.Delete(ctx, "dir:contact:"+contactID)
	}
}

func cached[T any](ctx context.Context, d *CachedDirectory, key string, load func() (*T, error)) (*T, error) {
	if b, ok := d.cache.Get(ctx, key); ok {
		var v T
		if err := json.Unmarshal(b, &v); err == nil {
			return &v, nil
		}
	}
	v, err := load()
	if err != nil {
		return nil, err
	}
	if b, err := json.Marshal(v); err == nil {
		if err := d.cache.Set(ctx, key, b, d.ttl); err != nil {
			logger.Debug("directory cache set failed", zap.String("key", key), zap.Error(err))
		}
	}
	return v, nil
}
