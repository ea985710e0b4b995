// Package sqlstore persists ledger transactions through gorm on SQLite or
// PostgreSQL.
package sqlstore

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/dvloznov/expense-bot/internal/domain"
	"github.com/dvloznov/expense-bot/internal/ledger"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// TransactionRow maps the transactions table.
type TransactionRow struct {
	ID          string          `gorm:"type:varchar(36);primaryKey"`
	UserID      string          `gorm:"type:varchar(128);not null;index:idx_transactions_user_created,priority:1"`
	Kind        string          `gorm:"type:varchar(16);not null"`
	Amount      decimal.Decimal `gorm:"type:decimal(20,4);not null"`
	Currency    string          `gorm:"type:varchar(3);not null"`
	Category    *string         `gorm:"type:varchar(128)"`
	Description *string         `gorm:"type:text"`
	RawMessage  *string         `gorm:"type:text"`
	CreatedAt   time.Time       `gorm:"not null;index:idx_transactions_user_created,priority:2"`
}

func (TransactionRow) TableName() string {
	return "transactions"
}

func toRow(tx *domain.Transaction) TransactionRow {
	return TransactionRow{
		ID:          tx.ID,
		UserID:      tx.UserID,
		Kind:        string(tx.Kind),
		Amount:      tx.Amount,
		Currency:    tx.Currency,
		Category:    tx.Category,
		Description: tx.Description,
		RawMessage:  tx.RawMessage,
		CreatedAt:   tx.CreatedAt.UTC(),
	}
}

func (r TransactionRow) toDomain() domain.Transaction {
	return domain.Transaction{
		ID:          r.ID,
		UserID:      r.UserID,
		Kind:        domain.Kind(r.Kind),
		Amount:      r.Amount,
		Currency:    r.Currency,
		Category:    r.Category,
		Description: r.Description,
		RawMessage:  r.RawMessage,
		CreatedAt:   r.CreatedAt.UTC(),
	}
}

// Store implements ledger.Repository over a gorm connection.
type Store struct {
	db *gorm.DB
}

var _ ledger.Repository = (*Store)(nil)

// Open connects with the named driver and migrates the schema.
func Open(driver, dsn string, log zerolog.Logger) (*Store, error) {
	var dialector gorm.Dialector
	switch driver {
	case DriverSQLite:
		dialector = sqlite.Open(dsn)
	case DriverPostgres:
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("Open: unsupported driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("Open: connect %s: %w", driver, err)
	}

	if driver == DriverSQLite {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("Open: sql handle: %w", err)
		}
		// A single connection keeps :memory: databases shared and writes serialized.
		sqlDB.SetMaxOpenConns(1)
	}

	s := &Store{db: db}
	if err := s.Migrate(); err != nil {
		return nil, err
	}

	log.Info().Str("driver", driver).Msg("SQL ledger store ready")
	return s, nil
}

// Migrate creates or updates the transactions table.
func (s *Store) Migrate() error {
	if err := s.db.AutoMigrate(&TransactionRow{}); err != nil {
		return fmt.Errorf("Migrate: auto-migrate transactions: %w", err)
	}
	return nil
}

// Insert writes tx, assigning a UUID when it has no ID.
func (s *Store) Insert(ctx context.Context, tx *domain.Transaction) error {
	if tx.ID == "" {
		tx.ID = uuid.New().String()
	}
	row := toRow(tx)
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("Insert: create transaction: %w", err)
	}
	return nil
}

// List returns matching transactions newest first.
func (s *Store) List(ctx context.Context, q ledger.Query) ([]domain.Transaction, error) {
	db := s.db.WithContext(ctx).Where("user_id = ?", q.UserID)
	if !q.From.IsZero() {
		db = db.Where("created_at >= ?", q.From.UTC())
	}
	if !q.To.IsZero() {
		db = db.Where("created_at < ?", q.To.UTC())
	}
	if q.Kind != nil {
		db = db.Where("kind = ?", string(*q.Kind))
	}
	db = db.Order("created_at DESC")
	if q.Limit > 0 {
		db = db.Limit(q.Limit)
	}

	var rows []TransactionRow
	if err := db.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("List: query transactions: %w", err)
	}

	out := make([]domain.Transaction, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("Close: sql handle: %w", err)
	}
	return sqlDB.Close()
}
