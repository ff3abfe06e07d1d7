package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib" // postgres driver "pgx"
	_ "github.com/mattn/go-sqlite3"    // sqlite driver "sqlite3"

	"scooby-agent/internal/domain"
)

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "pgx"
)

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS conversation_messages (
		message_id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id TEXT,
		conversation_id TEXT NOT NULL,
		user_question TEXT NOT NULL,
		rewritten_question TEXT,
		intent TEXT,
		ai_answer TEXT,
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS identities (
		user_id TEXT PRIMARY KEY,
		wallet_address TEXT NOT NULL UNIQUE,
		created_at TIMESTAMP NOT NULL
	)`,
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS conversation_messages (
		message_id BIGSERIAL PRIMARY KEY,
		user_id TEXT,
		conversation_id TEXT NOT NULL,
		user_question TEXT NOT NULL,
		rewritten_question TEXT,
		intent TEXT,
		ai_answer TEXT,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS identities (
		user_id TEXT PRIMARY KEY,
		wallet_address TEXT NOT NULL UNIQUE,
		created_at TIMESTAMPTZ NOT NULL
	)`,
}

var sharedIndexes = []string{
	`CREATE INDEX IF NOT EXISTS idx_conversation_messages_conv ON conversation_messages (conversation_id, created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_conversation_messages_user ON conversation_messages (user_id)`,
}

// SQLStore keeps conversations and identities in SQLite or Postgres.
type SQLStore struct {
	db     *sql.DB
	driver string
	now    func() time.Time
	newID  func() string
}

// OpenSQL opens dsn with driver ("sqlite3" or "pgx") and applies the schema.
func OpenSQL(ctx context.Context, driver, dsn string) (*SQLStore, error) {
	if driver != DriverSQLite && driver != DriverPostgres {
		return nil, fmt.Errorf("repository: unsupported sql driver %q", driver)
	}
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("repository: dsn must not be empty")
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("repository: open %s: %w", driver, err)
	}
	if driver == DriverSQLite {
		// SQLite allows a single writer.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("repository: ping %s: %w", driver, err)
	}
	s := &SQLStore{db: db, driver: driver, now: time.Now, newID: uuid.NewString}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

func (s *SQLStore) migrate(ctx context.Context) error {
	stmts := sqliteSchema
	if s.driver == DriverPostgres {
		stmts = postgresSchema
	}
	stmts = append(append([]string{}, stmts...), sharedIndexes...)
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("repository: migrate: %w", err)
		}
	}
	return nil
}

// rebind rewrites ? placeholders to $n for Postgres.
func (s *SQLStore) rebind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func (s *SQLStore) AppendTurn(ctx context.Context, turn domain.ConversationTurn) (domain.ConversationTurn, error) {
	if strings.TrimSpace(turn.ConversationID) == "" {
		return domain.ConversationTurn{}, errors.New("repository: AppendTurn: conversation id is required")
	}
	if strings.TrimSpace(turn.UserQuestion) == "" {
		return domain.ConversationTurn{}, errors.New("repository: AppendTurn: user question is required")
	}
	turn.CreatedAt = s.now().UTC()

	q := s.rebind(`INSERT INTO conversation_messages
		(user_id, conversation_id, user_question, rewritten_question, intent, ai_answer, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		RETURNING message_id`)
	err := s.db.QueryRowContext(ctx, q,
		nullable(turn.UserID),
		turn.ConversationID,
		turn.UserQuestion,
		nullable(turn.RewrittenQuestion),
		nullable(string(turn.Intent)),
		nullable(turn.AIAnswer),
		turn.CreatedAt,
	).Scan(&turn.MessageID)
	if err != nil {
		return domain.ConversationTurn{}, fmt.Errorf("repository: AppendTurn: %w", err)
	}
	return turn, nil
}

func (s *SQLStore) GetHistory(ctx context.Context, conversationID, userID string, limit int) ([]domain.ConversationTurn, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	q := `SELECT message_id, COALESCE(user_id, ''), conversation_id, user_question,
		COALESCE(rewritten_question, ''), COALESCE(intent, ''), COALESCE(ai_answer, ''), created_at
		FROM conversation_messages WHERE conversation_id = ?`
	args := []any{conversationID}
	if userID != "" {
		q += ` AND user_id = ?`
		args = append(args, userID)
	}
	// message_id follows insertion order, which matches created_at.
	q += ` ORDER BY message_id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, s.rebind(q), args...)
	if err != nil {
		return nil, fmt.Errorf("repository: GetHistory query: %w", err)
	}
	defer rows.Close()

	var turns []domain.ConversationTurn
	for rows.Next() {
		var t domain.ConversationTurn
		var intent string
		if err := rows.Scan(&t.MessageID, &t.UserID, &t.ConversationID, &t.UserQuestion,
			&t.RewrittenQuestion, &intent, &t.AIAnswer, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("repository: GetHistory scan: %w", err)
		}
		t.Intent = domain.Intent(intent)
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: GetHistory rows: %w", err)
	}
	reverseTurns(turns)
	return turns, nil
}

func (s *SQLStore) ListConversations(ctx context.Context, userID string) ([]domain.ConversationSummary, error) {
	inner := `SELECT conversation_id, MAX(message_id) AS last_id FROM conversation_messages`
	var args []any
	if userID != "" {
		inner += ` WHERE user_id = ?`
		args = append(args, userID)
	}
	inner += ` GROUP BY conversation_id`
	q := `SELECT m.conversation_id, m.created_at, m.user_question
		FROM conversation_messages m
		JOIN (` + inner + `) l ON m.message_id = l.last_id
		ORDER BY m.message_id DESC`

	rows, err := s.db.QueryContext(ctx, s.rebind(q), args...)
	if err != nil {
		return nil, fmt.Errorf("repository: ListConversations query: %w", err)
	}
	defer rows.Close()

	out := []domain.ConversationSummary{}
	for rows.Next() {
		var sum domain.ConversationSummary
		var question string
		if err := rows.Scan(&sum.ConversationID, &sum.LastMessageAt, &question); err != nil {
			return nil, fmt.Errorf("repository: ListConversations scan: %w", err)
		}
		sum.Preview = domain.Preview(question)
		out = append(out, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: ListConversations rows: %w", err)
	}
	return out, nil
}

// ResolveWallet relies on the UNIQUE wallet_address constraint: concurrent
// first uses race on the insert and both read back the surviving row.
func (s *SQLStore) ResolveWallet(ctx context.Context, walletAddress string) (domain.Identity, error) {
	addr := domain.NormalizeWallet(walletAddress)
	if addr == "" {
		return domain.Identity{}, ErrInvalidWallet
	}

	_, err := s.db.ExecContext(ctx, s.rebind(`INSERT INTO identities (user_id, wallet_address, created_at)
		VALUES (?, ?, ?) ON CONFLICT (wallet_address) DO NOTHING`),
		s.newID(), addr, s.now().UTC())
	if err != nil {
		return domain.Identity{}, fmt.Errorf("repository: ResolveWallet insert: %w", err)
	}

	var id domain.Identity
	err = s.db.QueryRowContext(ctx, s.rebind(`SELECT user_id, wallet_address, created_at
		FROM identities WHERE wallet_address = ?`), addr).Scan(&id.UserID, &id.WalletAddress, &id.CreatedAt)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("repository: ResolveWallet select: %w", err)
	}
	return id, nil
}
