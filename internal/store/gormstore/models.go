package gormstore

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Unit represents the units table, one balance record per owner.
type Unit struct {
	ID                   uint64    `gorm:"primaryKey;autoIncrement"`
	Address              string    `gorm:"not null;uniqueIndex:idx_units_address"`
	OwnerID              string    `gorm:"not null;uniqueIndex:idx_units_owner"`
	Code                 string    `gorm:"not null;uniqueIndex:idx_units_code"`
	HolderName           string    `gorm:"not null;default:''"`
	PhoneNumber          string    `gorm:"not null;default:'';index:idx_units_phone"`
	BalanceCents         int64     `gorm:"not null;default:0;check:chk_units_balance_non_negative,balance_cents >= 0"`
	PreviousBalanceCents int64     `gorm:"not null;default:0"`
	Status               string    `gorm:"not null"`
	CreatedAt            time.Time `gorm:"not null"`
	UpdatedAt            time.Time `gorm:"not null"`
}

func (Unit) TableName() string { return "units" }

func (unit *Unit) BeforeCreate(tx *gorm.DB) error {
	if unit.Address == "" {
		unit.Address = uuid.NewString()
	}
	return nil
}

// UnitLog mirrors the append-only unit_logs table.
type UnitLog struct {
	ID          uint64    `gorm:"primaryKey;autoIncrement"`
	EntryID     string    `gorm:"type:uuid;not null;uniqueIndex:idx_unit_logs_entry"`
	Address     string    `gorm:"not null;index:idx_unit_logs_address"`
	OwnerID     string    `gorm:"not null"`
	Activity    string    `gorm:"not null"`
	Status      string    `gorm:"not null"`
	Sender      string    `gorm:"not null;default:'';index:idx_unit_logs_sender"`
	Recipient   string    `gorm:"not null;default:'';index:idx_unit_logs_recipient"`
	AmountCents int64     `gorm:"not null"`
	Reference   string    `gorm:"not null;uniqueIndex:idx_unit_logs_reference"`
	Channel     string    `gorm:"not null"`
	Narration   string    `gorm:"not null;default:''"`
	CreatedAt   time.Time `gorm:"not null"`
}

func (UnitLog) TableName() string { return "unit_logs" }

func (entry *UnitLog) BeforeCreate(tx *gorm.DB) error {
	if entry.EntryID == "" {
		entry.EntryID = uuid.NewString()
	}
	return nil
}

// UnitWithdrawal mirrors the unit_withdrawals table. At most one PENDING row
// exists per address.
type UnitWithdrawal struct {
	ID            uint64    `gorm:"primaryKey;autoIncrement"`
	RequestID     string    `gorm:"not null;uniqueIndex:idx_unit_withdrawals_request"`
	OwnerID       string    `gorm:"not null"`
	Address       string    `gorm:"not null;index:idx_unit_withdrawals_address;uniqueIndex:idx_unit_withdrawals_pending,where:status = 'PENDING'"`
	AmountCents   int64     `gorm:"not null"`
	AccountNumber string    `gorm:"not null"`
	AccountName   string    `gorm:"not null"`
	AccountType   string    `gorm:"not null"`
	Status        string    `gorm:"not null"`
	StatusReason  string    `gorm:"not null;default:''"`
	CreatedAt     time.Time `gorm:"not null"`
	UpdatedAt     time.Time `gorm:"not null"`
}

func (UnitWithdrawal) TableName() string { return "unit_withdrawals" }

// Webhook mirrors the webhooks audit table.
type Webhook struct {
	ID                uint64         `gorm:"primaryKey;autoIncrement"`
	RequestID         string         `gorm:"not null;uniqueIndex:idx_webhooks_request"`
	Payload           datatypes.JSON `gorm:"type:jsonb;not null"`
	Status            string         `gorm:"not null"`
	ProviderReference *string        `gorm:"uniqueIndex:idx_webhooks_provider_reference"`
	CreatedAt         time.Time      `gorm:"not null"`
	UpdatedAt         time.Time      `gorm:"not null"`
}

func (Webhook) TableName() string { return "webhooks" }

// AutoMigrate creates or updates every ledger table. PostgreSQL deployments
// use the goose migrations instead.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&Unit{}, &UnitLog{}, &UnitWithdrawal{}, &Webhook{})
}
