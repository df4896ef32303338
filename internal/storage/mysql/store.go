// Package mysql is the MySQL expense store, built on gorm.
package mysql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"expenses/internal/core"
	"expenses/internal/log"
)

type expenseRow struct {
	ID     int64     `gorm:"primaryKey;autoIncrement"`
	Payee  string    `gorm:"type:varchar(255);not null"`
	Amount float64   `gorm:"not null"`
	Date   time.Time `gorm:"type:date;not null;index:idx_expenses_date"`
}

func (*expenseRow) TableName() string {
	return "expenses"
}

type syncRow struct {
	ExpenseID int64  `gorm:"primaryKey;autoIncrement:false"`
	Status    string `gorm:"type:varchar(16);not null"`
	Attempts  int    `gorm:"not null;default:0"`
	UpdatedAt time.Time
}

func (*syncRow) TableName() string {
	return "expense_sync"
}

type Store struct {
	db     *gorm.DB
	logger *log.Logger
}

// Open connects with retries, migrates the schema and returns a ready store.
func Open(ctx context.Context, cfg Config, logger *log.Logger) (*Store, error) {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	logger = logger.WithComponent(log.ComponentStorage)

	gormConfig := &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 newGormLogger(cfg.LogLevel),
	}

	attempts := max(cfg.ConnectAttempts, 1)
	var (
		db  *gorm.DB
		err error
	)
	for i := 1; i <= attempts; i++ {
		db, err = gorm.Open(mysql.Open(cfg.dsn()), gormConfig)
		if err == nil {
			err = pingGorm(ctx, db)
		}
		if err == nil {
			break
		}
		if i < attempts {
			logger.Warn("MySQL not reachable, retrying",
				"attempt", i,
				"max_attempts", attempts,
				log.FieldError, err.Error())
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(cfg.RetryInterval):
			}
		}
	}
	if err != nil {
		return nil, fmt.Errorf("connect to mysql after %d attempts: %w", attempts, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := db.WithContext(ctx).AutoMigrate(&expenseRow{}, &syncRow{}); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("migrate mysql schema: %w", err)
	}

	return &Store{db: db, logger: logger}, nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return pingGorm(ctx, s.db)
}

func pingGorm(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *Store) InsertExpense(ctx context.Context, e core.Expense) (int64, error) {
	row := expenseRow{Payee: e.Payee, Amount: e.Amount, Date: e.Date.Time}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return 0, fmt.Errorf("insert expense: %w", err)
	}
	s.logger.DebugContext(ctx, "Expense saved to MySQL",
		log.NewFields().WithExpense(row.ID, e.Payee, e.Amount, e.Date.String()).ToSlice()...)
	return row.ID, nil
}

func (s *Store) ExpensesByDate(ctx context.Context, d core.Date) ([]core.Expense, error) {
	var rows []expenseRow
	err := s.db.WithContext(ctx).
		Where("date = ?", d.String()).
		Order("id").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("query expenses by date: %w", err)
	}

	out := make([]core.Expense, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toCore())
	}
	return out, nil
}

func (s *Store) GetExpense(ctx context.Context, id int64) (core.Expense, error) {
	var row expenseRow
	err := s.db.WithContext(ctx).First(&row, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return core.Expense{}, core.ErrExpenseNotFound
	}
	if err != nil {
		return core.Expense{}, fmt.Errorf("get expense: %w", err)
	}
	return row.toCore(), nil
}

func (s *Store) PendingSync(ctx context.Context, maxAttempts, limit int) ([]int64, error) {
	ids := []int64{}
	err := s.db.WithContext(ctx).
		Table("expenses AS e").
		Joins("LEFT JOIN expense_sync s ON s.expense_id = e.id").
		Where("s.expense_id IS NULL OR (s.status = ? AND s.attempts < ?)", "error", maxAttempts).
		Order("e.id").
		Limit(limit).
		Pluck("e.id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("query pending sync: %w", err)
	}
	return ids, nil
}

func (s *Store) MarkSynced(ctx context.Context, id int64) error {
	if err := s.upsertSync(ctx, id, "synced"); err != nil {
		return fmt.Errorf("mark expense synced: %w", err)
	}
	return nil
}

func (s *Store) IsSynced(ctx context.Context, id int64) (bool, error) {
	var n int64
	err := s.db.WithContext(ctx).
		Model(&syncRow{}).
		Where("expense_id = ? AND status = ?", id, "synced").
		Count(&n).Error
	if err != nil {
		return false, fmt.Errorf("check expense sync: %w", err)
	}
	return n > 0, nil
}

func (s *Store) MarkSyncError(ctx context.Context, id int64) error {
	if err := s.upsertSync(ctx, id, "error"); err != nil {
		return fmt.Errorf("mark expense sync error: %w", err)
	}
	s.logger.WarnContext(ctx, "Expense marked with sync error", log.FieldExpenseID, id)
	return nil
}

func (s *Store) upsertSync(ctx context.Context, id int64, status string) error {
	now := time.Now().UTC()
	row := syncRow{ExpenseID: id, Status: status, Attempts: 1, UpdatedAt: now}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "expense_id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"status":     status,
			"attempts":   gorm.Expr("attempts + 1"),
			"updated_at": now,
		}),
	}).Create(&row).Error
}

func (r expenseRow) toCore() core.Expense {
	return core.Expense{
		ID:     r.ID,
		Payee:  r.Payee,
		Amount: r.Amount,
		Date:   core.NewDate(r.Date.Year(), int(r.Date.Month()), r.Date.Day()),
	}
}

func newGormLogger(level string) gormlogger.Interface {
	var lvl gormlogger.LogLevel
	switch level {
	case "info":
		lvl = gormlogger.Info
	case "warn":
		lvl = gormlogger.Warn
	case "silent":
		lvl = gormlogger.Silent
	default:
		lvl = gormlogger.Error
	}
	return gormlogger.Default.LogMode(lvl)
}
