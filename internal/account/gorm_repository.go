package account

import (
	"context"
	"errors"
	"time"

	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const mysqlDuplicateEntry = 1062

type sqlAccount struct {
	ID           string `gorm:"primaryKey;type:char(36)"`
	Name         string `gorm:"type:varchar(255);not null"`
	Email        string `gorm:"type:varchar(255);uniqueIndex;not null"`
	PasswordHash []byte `gorm:"type:varbinary(72);not null"`
	Balance      string `gorm:"type:varchar(255);not null"`
	Role         string `gorm:"type:varchar(16);not null;default:user"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (*sqlAccount) TableName() string {
	return "accounts"
}

func (s sqlAccount) toAccount() Account {
	return Account{
		ID:            s.ID,
		Name:          s.Name,
		Email:         s.Email,
		PasswordHash:  s.PasswordHash,
		SealedBalance: s.Balance,
		Role:          Role(s.Role),
		CreatedAt:     s.CreatedAt.UTC(),
		UpdatedAt:     s.UpdatedAt.UTC(),
	}
}

type sqlEntry struct {
	ID        string          `gorm:"primaryKey;type:char(36)"`
	Email     string          `gorm:"type:varchar(255);index:idx_entries_email_created;not null"`
	Kind      string          `gorm:"type:varchar(16);not null"`
	Amount    decimal.Decimal `gorm:"type:decimal(38,18);not null"`
	Balance   string          `gorm:"type:varchar(255);not null"`
	CreatedAt time.Time       `gorm:"index:idx_entries_email_created"`
}

func (*sqlEntry) TableName() string {
	return "entries"
}

// GormRepository implements Store on MySQL through gorm.
type GormRepository struct {
	db *gorm.DB
}

// NewGormRepository wraps an open gorm handle.
func NewGormRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

// Migrate creates or updates the accounts and entries tables.
func (r *GormRepository) Migrate(ctx context.Context) error {
	if err := r.db.WithContext(ctx).AutoMigrate(&sqlAccount{}, &sqlEntry{}); err != nil {
		return NewStorageError("migrate", err)
	}
	return nil
}

func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var myErr *mysqldriver.MySQLError
	return errors.As(err, &myErr) && myErr.Number == mysqlDuplicateEntry
}

func (r *GormRepository) Create(ctx context.Context, a Account) error {
	row := sqlAccount{
		ID:           a.ID,
		Name:         a.Name,
		Email:        a.Email,
		PasswordHash: a.PasswordHash,
		Balance:      a.SealedBalance,
		Role:         string(a.Role),
		CreatedAt:    a.CreatedAt.UTC(),
		UpdatedAt:    a.UpdatedAt.UTC(),
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isDuplicateKey(err) {
			return ErrDuplicateEmail
		}
		return NewStorageError("create", err)
	}
	return nil
}

func (r *GormRepository) FindByEmail(ctx context.Context, email string) (Account, error) {
	var row sqlAccount
	if err := r.db.WithContext(ctx).Where("email = ?", email).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Account{}, ErrAccountNotFound
		}
		return Account{}, NewStorageError("find", err)
	}
	return row.toAccount(), nil
}

func (r *GormRepository) List(ctx context.Context) ([]Account, error) {
	var rows []sqlAccount
	if err := r.db.WithContext(ctx).Order("created_at").Order("email").Find(&rows).Error; err != nil {
		return nil, NewStorageError("list", err)
	}
	accounts := make([]Account, 0, len(rows))
	for _, row := range rows {
		accounts = append(accounts, row.toAccount())
	}
	return accounts, nil
}

// Mutate takes a row lock with SELECT ... FOR UPDATE and writes the new
// balance and entry before the transaction commits.
func (r *GormRepository) Mutate(ctx context.Context, email string, fn MutateFunc) (Account, error) {
	var (
		updated Account
		fnErr   error
	)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row sqlAccount
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("email = ?", email).Take(&row).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrAccountNotFound
			}
			return NewStorageError("mutate", err)
		}

		current := row.toAccount()
		m, err := fn(current)
		if err != nil {
			fnErr = err
			return err
		}

		if err := tx.Model(&sqlAccount{}).Where("email = ?", email).Updates(map[string]any{
			"balance":    m.SealedBalance,
			"updated_at": m.UpdatedAt.UTC(),
		}).Error; err != nil {
			return NewStorageError("mutate", err)
		}
		if e := m.Entry; e != nil {
			entry := sqlEntry{
				ID:        e.ID,
				Email:     email,
				Kind:      string(e.Kind),
				Amount:    e.Amount,
				Balance:   e.SealedBalance,
				CreatedAt: e.CreatedAt.UTC(),
			}
			if err := tx.Create(&entry).Error; err != nil {
				return NewStorageError("mutate", err)
			}
		}

		current.SealedBalance = m.SealedBalance
		current.UpdatedAt = m.UpdatedAt.UTC()
		updated = current
		return nil
	})
	switch {
	case fnErr != nil:
		return Account{}, fnErr
	case err == nil:
		return updated, nil
	case errors.Is(err, ErrAccountNotFound), errors.Is(err, ErrStorage):
		return Account{}, err
	default:
		return Account{}, NewStorageError("mutate", err)
	}
}

func (r *GormRepository) SetPassword(ctx context.Context, email string, hash []byte) error {
	res := r.db.WithContext(ctx).Model(&sqlAccount{}).Where("email = ?", email).Updates(map[string]any{
		"password_hash": hash,
		"updated_at":    time.Now().UTC(),
	})
	if res.Error != nil {
		return NewStorageError("set password", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrAccountNotFound
	}
	return nil
}

func (r *GormRepository) Entries(ctx context.Context, email string, limit int) ([]Entry, error) {
	if _, err := r.FindByEmail(ctx, email); err != nil {
		return nil, err
	}
	q := r.db.WithContext(ctx).Where("email = ?", email).Order("created_at DESC").Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var rows []sqlEntry
	if err := q.Find(&rows).Error; err != nil {
		return nil, NewStorageError("entries", err)
	}
	entries := make([]Entry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, Entry{
			ID:            row.ID,
			Email:         row.Email,
			Kind:          EntryKind(row.Kind),
			Amount:        row.Amount,
			SealedBalance: row.Balance,
			CreatedAt:     row.CreatedAt.UTC(),
		})
	}
	return entries, nil
}

func (r *GormRepository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return NewStorageError("ping", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return NewStorageError("ping", err)
	}
	return nil
}

var _ Store = (*GormRepository)(nil)
