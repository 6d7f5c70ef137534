package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

// PostgresConfig selects the bun-backed store when DSN is set.
type PostgresConfig struct {
	DSN     string        `envconfig:"DSN" split_words:"true"`
	Timeout time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"10s"`
}

type sessionRow struct {
	bun.BaseModel `bun:"table:sessions,alias:s"`

	ID        string          `bun:"id,pk"`
	UserID    string          `bun:"user_id,notnull,unique"`
	Context   json.RawMessage `bun:"context,type:jsonb,notnull"`
	UpdatedAt time.Time       `bun:"updated_at,notnull"`
}

// PostgresStore keeps sessions in Postgres so conversation state survives
// process restarts. It implements the same Store contract as MemoryStore.
type PostgresStore struct {
	db    *bun.DB
	newID func() string
	now   func() time.Time
}

func NewPostgresStore(ctx context.Context, cfg PostgresConfig) (*PostgresStore, error) {
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, errors.New("postgres dsn is required")
	}

	sqldb := sql.OpenDB(pgdriver.NewConnector(
		pgdriver.WithDSN(dsn),
		pgdriver.WithTimeout(cfg.Timeout),
	))
	db := bun.NewDB(sqldb, pgdialect.New())

	store := &PostgresStore{
		db:    db,
		newID: uuid.NewString,
		now:   time.Now,
	}
	if err := store.migrate(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	if _, err := s.db.NewCreateTable().
		Model((*sessionRow)(nil)).
		IfNotExists().
		Exec(ctx); err != nil {
		return fmt.Errorf("create sessions table: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindOrCreate(ctx context.Context, userID string) (string, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", ErrInvalidUser
	}

	var row sessionRow
	err := s.db.NewSelect().
		Model(&row).
		Column("id").
		Where("user_id = ?", userID).
		Scan(ctx)
	if err == nil {
		return row.ID, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("find session by user: %w", err)
	}

	fresh := sessionRow{
		ID:        s.newID(),
		UserID:    userID,
		Context:   json.RawMessage(`{}`),
		UpdatedAt: s.now().UTC(),
	}
	if _, err := s.db.NewInsert().
		Model(&fresh).
		On("CONFLICT (user_id) DO NOTHING").
		Exec(ctx); err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}

	// A concurrent create may have won the conflict; re-read the winner.
	var winner sessionRow
	if err := s.db.NewSelect().
		Model(&winner).
		Column("id").
		Where("user_id = ?", userID).
		Scan(ctx); err != nil {
		return "", fmt.Errorf("reload session by user: %w", err)
	}
	return winner.ID, nil
}

func (s *PostgresStore) Get(ctx context.Context, sessionID string) (*Session, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, ErrInvalidSession
	}

	var row sessionRow
	err := s.db.NewSelect().
		Model(&row).
		Where("id = ?", sessionID).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}

	sc := NewContext()
	if len(row.Context) > 0 {
		if err := json.Unmarshal(row.Context, sc); err != nil {
			return nil, fmt.Errorf("decode stored context: %w", err)
		}
	}
	return &Session{ID: row.ID, UserID: row.UserID, Context: sc}, nil
}

func (s *PostgresStore) Put(ctx context.Context, sessionID string, sc *Context) error {
	if strings.TrimSpace(sessionID) == "" {
		return ErrInvalidSession
	}
	if sc == nil {
		return ErrNilContext
	}

	payload, err := json.Marshal(sc)
	if err != nil {
		return fmt.Errorf("context is not JSON-serializable: %w", err)
	}

	res, err := s.db.NewUpdate().
		Model((*sessionRow)(nil)).
		Set("context = ?", payload).
		Set("updated_at = ?", s.now().UTC()).
		Where("id = ?", sessionID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("save session context: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("save session context: %w", err)
	}
	if affected == 0 {
		return ErrSessionNotFound
	}
	return nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}
