package store

import (
	"context"
	stderrors "errors"

	"github.com/THORISO2Nnoi/GBV-sub000/internal/models"
	"github.com/THORISO2Nnoi/GBV-sub000/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Migrate creates or updates every table the service owns.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.TrustedContact{},
		&models.Alert{},
		&models.NotifiedContact{},
		&models.AlertResponse{},
	)
}

// Filter narrows Find. Zero values mean "any".
type Filter struct {
	ReporterID string
	ContactID  string
	Statuses   []models.AlertStatus
	Limit      int
	Offset     int
}

// AlertStore persists alerts with gorm. UpdateAtomic is linearizable per alert id
// within one process; on mysql/postgres the row is also locked FOR UPDATE.
type AlertStore struct {
	db    *gorm.DB
	locks *keyedMutex
}

func NewAlertStore(db *gorm.DB) *AlertStore {
	return &AlertStore{db: db, locks: newKeyedMutex()}
}

// Create inserts the alert together with its notified-contact snapshot.
func (s *AlertStore) Create(ctx context.Context, alert *models.Alert) error {
	if err := s.db.WithContext(ctx).Create(alert).Error; err != nil {
		return errors.Wrap(err, "create alert")
	}
	return nil
}

func (s *AlertStore) FindByID(ctx context.Context, id string) (*models.Alert, error) {
	return s.load(s.db.WithContext(ctx), id, false)
}

func (s *AlertStore) load(db *gorm.DB, id string, forUpdate bool) (*models.Alert, error) {
	var alert models.Alert
	q := withChildren(db)
	if forUpdate && db.Dialector.Name() != "sqlite" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	if err := q.Where("id = ?", id).First(&alert).Error; err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.NotFound("alert %s not found", id)
		}
		return nil, errors.Wrap(err, "load alert")
	}
	return &alert, nil
}

func withChildren(db *gorm.DB) *gorm.DB {
	return db.
		Preload("NotifiedContacts", func(db *gorm.DB) *gorm.DB { return db.Order("position") }).
		Preload("ResponseLog", func(db *gorm.DB) *gorm.DB { return db.Order("seq") })
}

// UpdateAtomic loads the alert, applies mutate and persists the result in one
// transaction. Response log entries appended by mutate are inserted; existing
// entries and the notified-contact snapshot are never rewritten. If mutate
// returns an error nothing is written and the error is returned as is.
func (s *AlertStore) UpdateAtomic(ctx context.Context, id string, mutate func(*models.Alert) error) (*models.Alert, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	var out *models.Alert
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		alert, err := s.load(tx, id, true)
		if err != nil {
			return err
		}
		logged := len(alert.ResponseLog)
		contacts := alert.NotifiedContacts

		if err := mutate(alert); err != nil {
			return err
		}
		if len(alert.ResponseLog) < logged {
			return errors.New("response log is append-only")
		}
		// membership is fixed at creation
		alert.NotifiedContacts = contacts

		if err := tx.Omit(clause.Associations).Save(alert).Error; err != nil {
			return errors.Wrap(err, "save alert")
		}
		if added := alert.ResponseLog[logged:]; len(added) > 0 {
			for i := range added {
				added[i].AlertID = alert.ID
			}
			if err := tx.Create(&added).Error; err != nil {
				return errors.Wrap(err, "append response log")
			}
		}
		out = alert
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateDelivery records per-contact delivery outcomes of the create fanout.
func (s *AlertStore) UpdateDelivery(ctx context.Context, alertID string, outcome map[string]models.DeliveryStatus) error {
	if len(outcome) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for contactID, status := range outcome {
			err := tx.Model(&models.NotifiedContact{}).
				Where("alert_id = ? AND contact_id = ?", alertID, contactID).
				Update("delivery_status", status).Error
			if err != nil {
				return errors.Wrap(err, "update delivery status")
			}
		}
		return nil
	})
}

// Find lists alerts newest first.
func (s *AlertStore) Find(ctx context.Context, f Filter) ([]models.Alert, error) {
	q := withChildren(s.db.WithContext(ctx).Model(&models.Alert{}))
	if f.ReporterID != "" {
		q = q.Where("reporter_id = ?", f.ReporterID)
	}
	if f.ContactID != "" {
		notified := s.db.Model(&models.NotifiedContact{}).Select("alert_id").Where("contact_id = ?", f.ContactID)
		q = q.Where("id IN (?)", notified)
	}
	if len(f.Statuses) > 0 {
		q = q.Where("status IN ?", f.Statuses)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}
	if f.Offset > 0 {
		q = q.Offset(f.Offset)
	}

	var alerts []models.Alert
	if err := q.Order("created_at DESC").Find(&alerts).Error; err != nil {
		return nil, errors.Wrap(err, "find alerts")
	}
	return alerts, nil
}

// CountOpen counts alerts that are not yet resolved or cancelled.
func (s *AlertStore) CountOpen(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.Alert{}).
		Where("status IN ?", models.OpenForContacts).
		Count(&n).Error
	return n, err
}
