package customers

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type pgxConn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PostgresRepository stores customers, bookings and turns in the relational database.
type PostgresRepository struct {
	db    pgxConn
	limit int
}

// NewPostgresRepository initializes a repo backed by pgxpool.
func NewPostgresRepository(pool *pgxpool.Pool, historyLimit int) *PostgresRepository {
	if pool == nil {
		panic("customers: pgx pool required")
	}
	return newPostgresRepository(pool, historyLimit)
}

func newPostgresRepository(db pgxConn, historyLimit int) *PostgresRepository {
	return &PostgresRepository{db: db, limit: normalizeLimit(historyLimit)}
}

// Get loads the profile and its bookings in insertion order.
func (r *PostgresRepository) Get(ctx context.Context, id string) (*Profile, error) {
	query := `
		SELECT id, name, language, onboarding_state, service_interest, created_at, updated_at
		FROM customers
		WHERE id = $1
	`
	var profile Profile
	var state string
	if err := r.db.QueryRow(ctx, query, id).Scan(
		&profile.ID,
		&profile.Name,
		&profile.Language,
		&state,
		&profile.ServiceInterest,
		&profile.CreatedAt,
		&profile.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("customers: select profile failed: %w", err)
	}
	profile.State = OnboardingState(state)

	rows, err := r.db.Query(ctx, `
		SELECT id, specialty, service_type, assignee, date_time, notes, created_at
		FROM customer_bookings
		WHERE customer_id = $1
		ORDER BY created_at, id
	`, id)
	if err != nil {
		return nil, fmt.Errorf("customers: select bookings failed: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var b BookingRecord
		if err := rows.Scan(&b.ID, &b.Specialty, &b.ServiceType, &b.Assignee, &b.DateTime, &b.Notes, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("customers: scan booking failed: %w", err)
		}
		profile.Bookings = append(profile.Bookings, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("customers: iterate bookings failed: %w", err)
	}
	return &profile, nil
}

// Upsert writes the profile row and inserts any bookings not yet stored, in one transaction.
func (r *PostgresRepository) Upsert(ctx context.Context, profile *Profile) error {
	if profile == nil || profile.ID == "" {
		return errors.New("customers: profile id required")
	}
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("customers: begin failed: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, `
		INSERT INTO customers (id, name, language, onboarding_state, service_interest, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			language = EXCLUDED.language,
			onboarding_state = EXCLUDED.onboarding_state,
			service_interest = EXCLUDED.service_interest,
			updated_at = EXCLUDED.updated_at
	`,
		profile.ID,
		profile.Name,
		profile.Language,
		string(profile.State),
		profile.ServiceInterest,
		profile.CreatedAt,
		profile.UpdatedAt,
	); err != nil {
		return fmt.Errorf("customers: upsert profile failed: %w", err)
	}

	for _, b := range profile.Bookings {
		if _, err := tx.Exec(ctx, `
			INSERT INTO customer_bookings (id, customer_id, specialty, service_type, assignee, date_time, notes, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (id) DO NOTHING
		`, b.ID, profile.ID, b.Specialty, b.ServiceType, b.Assignee, b.DateTime, b.Notes, b.CreatedAt); err != nil {
			return fmt.Errorf("customers: insert booking failed: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("customers: commit failed: %w", err)
	}
	return nil
}

// Append inserts turns and prunes everything older than the newest limit rows.
func (r *PostgresRepository) Append(ctx context.Context, id string, turns ...Turn) error {
	if len(turns) == 0 {
		return nil
	}
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("customers: begin failed: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	for _, turn := range turns {
		if _, err := tx.Exec(ctx, `
			INSERT INTO conversation_turns (customer_id, role, content, created_at)
			VALUES ($1, $2, $3, $4)
		`, id, string(turn.Role), turn.Content, turn.Timestamp); err != nil {
			return fmt.Errorf("customers: insert turn failed: %w", err)
		}
	}

	if _, err := tx.Exec(ctx, `
		DELETE FROM conversation_turns
		WHERE customer_id = $1
		  AND id NOT IN (
			SELECT id FROM conversation_turns
			WHERE customer_id = $1
			ORDER BY id DESC
			LIMIT $2
		  )
	`, id, r.limit); err != nil {
		return fmt.Errorf("customers: prune history failed: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("customers: commit failed: %w", err)
	}
	return nil
}

// History returns the retained turns oldest first.
func (r *PostgresRepository) History(ctx context.Context, id string) ([]Turn, error) {
	rows, err := r.db.Query(ctx, `
		SELECT role, content, created_at
		FROM conversation_turns
		WHERE customer_id = $1
		ORDER BY id
	`, id)
	if err != nil {
		return nil, fmt.Errorf("customers: select history failed: %w", err)
	}
	defer rows.Close()

	var turns []Turn
	for rows.Next() {
		var turn Turn
		var role string
		if err := rows.Scan(&role, &turn.Content, &turn.Timestamp); err != nil {
			return nil, fmt.Errorf("customers: scan turn failed: %w", err)
		}
		turn.Role = Role(role)
		turns = append(turns, turn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("customers: iterate history failed: %w", err)
	}
	return turns, nil
}
