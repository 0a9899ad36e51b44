package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/meghshah/paisawatch/internal/account"
	"github.com/meghshah/paisawatch/internal/behavior"
)

// PostgresStore implements Store on PostgreSQL. Snapshots and baselines are
// stored as JSONB documents; the version column carries the CAS token so
// concurrent writers cannot silently overwrite each other.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a PostgreSQL-backed store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (p *PostgresStore) CreateAccount(ctx context.Context, snap *account.Snapshot) error {
	cp := snap.Clone()
	cp.Version = 1
	doc, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	_, err = p.db.ExecContext(ctx, `
		INSERT INTO accounts (id, owner_id, doc, version, created_at)
		VALUES ($1, $2, $3, 1, $4)
	`, snap.ID, snap.OwnerID, doc, snap.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create account: %w", err)
	}
	snap.Version = 1
	return nil
}

func (p *PostgresStore) LoadAccount(ctx context.Context, id string) (*account.Snapshot, error) {
	var doc []byte
	var version int64
	err := p.db.QueryRowContext(ctx, `
		SELECT doc, version FROM accounts WHERE id = $1
	`, id).Scan(&doc, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, account.ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load account: %w", err)
	}

	var snap account.Snapshot
	if err := json.Unmarshal(doc, &snap); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	snap.Version = version
	return &snap, nil
}

func (p *PostgresStore) SaveAccount(ctx context.Context, snap *account.Snapshot) error {
	next := snap.Clone()
	next.Version = snap.Version + 1
	doc, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	res, err := p.db.ExecContext(ctx, `
		UPDATE accounts SET doc = $1, version = version + 1, updated_at = NOW()
		WHERE id = $2 AND version = $3
	`, doc, snap.ID, snap.Version)
	if err != nil {
		return fmt.Errorf("failed to save account: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to save account: %w", err)
	}
	if n == 0 {
		// Either the row vanished or someone else bumped the version.
		var exists bool
		if err := p.db.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM accounts WHERE id = $1)`, snap.ID,
		).Scan(&exists); err != nil {
			return fmt.Errorf("failed to save account: %w", err)
		}
		if !exists {
			return account.ErrAccountNotFound
		}
		return ErrConflict
	}
	snap.Version = next.Version
	return nil
}

func (p *PostgresStore) ListAccounts(ctx context.Context) ([]string, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT id FROM accounts ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan account id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (p *PostgresStore) LoadBaseline(ctx context.Context, accountID string) (*behavior.Baseline, error) {
	var doc []byte
	err := p.db.QueryRowContext(ctx, `
		SELECT doc FROM baselines WHERE account_id = $1
	`, accountID).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load baseline: %w", err)
	}

	var b behavior.Baseline
	if err := json.Unmarshal(doc, &b); err != nil {
		return nil, fmt.Errorf("failed to decode baseline: %w", err)
	}
	return &b, nil
}

func (p *PostgresStore) SaveBaseline(ctx context.Context, b *behavior.Baseline) error {
	doc, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("failed to encode baseline: %w", err)
	}
	_, err = p.db.ExecContext(ctx, `
		INSERT INTO baselines (account_id, doc, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (account_id) DO UPDATE SET doc = $2, updated_at = $3
	`, b.AccountID, doc, b.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save baseline: %w", err)
	}
	return nil
}

func (p *PostgresStore) SavePattern(ctx context.Context, accountID string, pat *behavior.Pattern) error {
	meta, err := json.Marshal(pat.Metadata)
	if err != nil {
		return fmt.Errorf("failed to encode pattern metadata: %w", err)
	}
	_, err = p.db.ExecContext(ctx, `
		INSERT INTO patterns (id, account_id, type, severity, occurrences, first_detected, last_detected, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			severity = $4, occurrences = $5, last_detected = $7, metadata = $8
	`, pat.ID, accountID, string(pat.Type), pat.Severity, pat.Occurrences,
		pat.FirstDetected, pat.LastDetected, meta)
	if err != nil {
		return fmt.Errorf("failed to save pattern: %w", err)
	}
	return nil
}

func (p *PostgresStore) RecentPatterns(ctx context.Context, accountID string, since time.Time) ([]*behavior.Pattern, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, type, severity, occurrences, first_detected, last_detected, metadata
		FROM patterns
		WHERE account_id = $1 AND last_detected >= $2
		ORDER BY last_detected DESC
	`, accountID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query patterns: %w", err)
	}
	defer rows.Close()

	var out []*behavior.Pattern
	for rows.Next() {
		var pat behavior.Pattern
		var typ string
		var meta []byte
		if err := rows.Scan(&pat.ID, &typ, &pat.Severity, &pat.Occurrences,
			&pat.FirstDetected, &pat.LastDetected, &meta); err != nil {
			return nil, fmt.Errorf("failed to scan pattern: %w", err)
		}
		pat.Type = behavior.PatternType(typ)
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &pat.Metadata); err != nil {
				return nil, fmt.Errorf("failed to decode pattern metadata: %w", err)
			}
		}
		out = append(out, &pat)
	}
	return out, rows.Err()
}
