package ledger

import (
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/DenialAppealPro/appealpro/app/models"
)

// forUpdate is SELECT ... FOR UPDATE. The SQLite dialect drops it; tests rely on
// a single-connection pool instead.
var forUpdate = clause.Locking{Strength: "UPDATE"}

// LockAccount loads an account and holds its row lock until tx ends.
func LockAccount(tx *gorm.DB, id uint) (*models.Account, error) {
	var acct models.Account
	err := tx.Clauses(forUpdate).Where("id = ?", id).First(&acct).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &acct, nil
}

// LockWorkUnit loads a work unit by uuid and holds its row lock until tx ends.
func LockWorkUnit(tx *gorm.DB, uuid string) (*models.WorkUnit, error) {
	var wu models.WorkUnit
	err := tx.Clauses(forUpdate).Where("uuid = ?", uuid).First(&wu).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &wu, nil
}

// RecordEvent inserts the event id into the processed log. It returns false
// when the id was already recorded; the unique index decides concurrent races.
func RecordEvent(tx *gorm.DB, eventID, kind string) (bool, error) {
	ev := models.ProcessedEvent{
		EventID:     eventID,
		EventKind:   kind,
		ProcessedAt: time.Now().UTC(),
	}
	res := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "event_id"}},
		DoNothing: true,
	}).Create(&ev)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// GetOrCreateAccount returns the locked account for email, creating it on first contact.
func GetOrCreateAccount(tx *gorm.DB, email string) (*models.Account, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return nil, errors.New("ledger: account email is required")
	}

	acct := models.Account{Email: email}
	if err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "email"}},
		DoNothing: true,
	}).Create(&acct).Error; err != nil {
		return nil, err
	}

	if err := tx.Clauses(forUpdate).Where("email = ?", email).First(&acct).Error; err != nil {
		return nil, notFound(err)
	}
	return &acct, nil
}

// FindAccountByEmail loads an account without locking it.
func FindAccountByEmail(tx *gorm.DB, email string) (*models.Account, error) {
	var acct models.Account
	if err := tx.Where("email = ?", NormalizeEmail(email)).First(&acct).Error; err != nil {
		return nil, notFound(err)
	}
	return &acct, nil
}

// FindAccountByCustomerID loads an account by its payment processor customer id.
func FindAccountByCustomerID(tx *gorm.DB, customerID string) (*models.Account, error) {
	customerID = strings.TrimSpace(customerID)
	if customerID == "" {
		return nil, ErrNotFound
	}
	var acct models.Account
	if err := tx.Where("processor_customer_id = ?", customerID).First(&acct).Error; err != nil {
		return nil, notFound(err)
	}
	return &acct, nil
}

// LinkCustomer stores the processor customer id on an account if it differs.
func LinkCustomer(tx *gorm.DB, acct *models.Account, customerID string) error {
	customerID = strings.TrimSpace(customerID)
	if customerID == "" || acct.ProcessorCustomerID == customerID {
		return nil
	}
	acct.ProcessorCustomerID = customerID
	return tx.Model(&models.Account{}).Where("id = ?", acct.ID).
		Update("processor_customer_id", customerID).Error
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
