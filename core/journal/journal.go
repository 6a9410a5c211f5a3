package journal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"lendledger/core/events"
)

// ErrDSNRequired is returned when no database location is configured.
var ErrDSNRequired = errors.New("journal: dsn must be configured")

// MemoryDSN opens a private in-memory journal.
func MemoryDSN() string {
	return fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
}

// Entry is one event of a committed ledger transaction.
type Entry struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	Position   uint64    `gorm:"uniqueIndex;not null"`
	TxID       string    `gorm:"index;not null"`
	LedgerTime uint32    `gorm:"not null"`
	Type       string    `gorm:"index;not null"`
	LoanID     string    `gorm:"index"`
	BrokerID   string    `gorm:"index"`
	Attributes string    `gorm:"type:text"`
	CreatedAt  time.Time
}

// Attrs decodes the stored event attributes.
func (e Entry) Attrs() (map[string]string, error) {
	attrs := make(map[string]string)
	if strings.TrimSpace(e.Attributes) == "" {
		return attrs, nil
	}
	if err := json.Unmarshal([]byte(e.Attributes), &attrs); err != nil {
		return nil, fmt.Errorf("journal: decode attributes: %w", err)
	}
	return attrs, nil
}

// Journal persists the settlement history of the ledger.
type Journal struct {
	mu   sync.Mutex
	db   *gorm.DB
	next uint64
	now  func() time.Time
}

// Open connects to the SQLite database at dsn and migrates the schema.
func Open(dsn string) (*Journal, error) {
	trimmed := strings.TrimSpace(dsn)
	if trimmed == "" {
		return nil, ErrDSNRequired
	}
	db, err := gorm.Open(sqlite.Open(trimmed), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("journal: open database: %w", err)
	}
	return New(db)
}

// New wraps an existing gorm handle.
func New(db *gorm.DB) (*Journal, error) {
	if db == nil {
		return nil, fmt.Errorf("journal: database not configured")
	}
	if err := db.AutoMigrate(&Entry{}); err != nil {
		return nil, fmt.Errorf("journal: migrate: %w", err)
	}
	var last struct{ Max uint64 }
	if err := db.Model(&Entry{}).Select("COALESCE(MAX(position), 0) AS max").Scan(&last).Error; err != nil {
		return nil, fmt.Errorf("journal: load position: %w", err)
	}
	return &Journal{db: db, next: last.Max + 1, now: time.Now}, nil
}

// SetClock overrides the wall clock used for CreatedAt.
func (j *Journal) SetClock(now func() time.Time) {
	if j == nil || now == nil {
		return
	}
	j.mu.Lock()
	j.now = now
	j.mu.Unlock()
}

// Close releases the underlying connection.
func (j *Journal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	sqlDB, err := j.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Record appends the events of one committed transaction in emission order.
func (j *Journal) Record(ctx context.Context, txID string, ledgerTime uint32, evs []events.Event) error {
	if j == nil {
		return fmt.Errorf("journal: not configured")
	}
	if len(evs) == 0 {
		return nil
	}
	j.mu.Lock()
	defer j.mu.Unlock()

	created := j.now().UTC()
	entries := make([]Entry, 0, len(evs))
	for i, evt := range evs {
		entry := Entry{
			ID:         uuid.New(),
			Position:   j.next + uint64(i),
			TxID:       txID,
			LedgerTime: ledgerTime,
			Type:       evt.EventType(),
			CreatedAt:  created,
		}
		if rec, ok := evt.(*events.Record); ok && rec != nil {
			entry.LoanID = rec.Attributes["loanId"]
			entry.BrokerID = rec.Attributes["brokerId"]
			raw, err := json.Marshal(rec.Attributes)
			if err != nil {
				return fmt.Errorf("journal: encode attributes: %w", err)
			}
			entry.Attributes = string(raw)
		}
		entries = append(entries, entry)
	}
	if err := j.db.WithContext(ctx).Create(&entries).Error; err != nil {
		return fmt.Errorf("journal: append: %w", err)
	}
	j.next += uint64(len(entries))
	return nil
}

// ByLoan lists every entry recorded for a loan in commit order.
func (j *Journal) ByLoan(ctx context.Context, loanID string) ([]Entry, error) {
	return j.find(ctx, "loan_id = ?", loanID)
}

// ByTx lists the entries of a single transaction.
func (j *Journal) ByTx(ctx context.Context, txID string) ([]Entry, error) {
	return j.find(ctx, "tx_id = ?", txID)
}

func (j *Journal) find(ctx context.Context, query string, arg string) ([]Entry, error) {
	if j == nil {
		return nil, fmt.Errorf("journal: not configured")
	}
	var entries []Entry
	if err := j.db.WithContext(ctx).Where(query, strings.TrimSpace(arg)).Order("position asc").Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("journal: query: %w", err)
	}
	return entries, nil
}
