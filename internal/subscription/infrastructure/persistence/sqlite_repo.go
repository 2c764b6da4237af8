package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/coachdesk/coachdesk/internal/subscription/domain"
	"github.com/google/uuid"

	_ "modernc.org/sqlite"
)

// SQLiteRepository is a SQLite implementation of domain.Repository for
// single-node deployments. Layout mirrors the Postgres table with text
// columns for UUIDs and RFC 3339 timestamps.
type SQLiteRepository struct {
	db *sql.DB
}

// OpenSQLite opens (and migrates) a SQLite database at path.
func OpenSQLite(path string) (*SQLiteRepository, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	repo := &SQLiteRepository{db: db}
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return repo, nil
}

// NewSQLiteRepository wraps an existing database handle.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Close closes the underlying database.
func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

func (r *SQLiteRepository) migrate() error {
	_, err := r.db.Exec(`
		CREATE TABLE IF NOT EXISTS subscriptions (
			id                   TEXT PRIMARY KEY,
			customer_id          TEXT NOT NULL,
			trainer_id           TEXT,
			group_id             TEXT,
			kind                 TEXT NOT NULL,
			plan_id              TEXT NOT NULL,
			state                TEXT NOT NULL,
			recurring_billing    INTEGER NOT NULL,
			next_renewal_date    TEXT NOT NULL,
			freeze_auto_resume   INTEGER,
			freeze_end           TEXT,
			discount_valid_until TEXT,
			trial_end_date       TEXT,
			snapshot             TEXT NOT NULL,
			created_at           TEXT NOT NULL,
			updated_at           TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_subscriptions_customer ON subscriptions (customer_id);
		CREATE INDEX IF NOT EXISTS idx_subscriptions_renewal ON subscriptions (state, next_renewal_date);
	`)
	if err != nil {
		return fmt.Errorf("migrate subscriptions table: %w", err)
	}
	return nil
}

// Save upserts a subscription.
func (r *SQLiteRepository) Save(ctx context.Context, sub *domain.Subscription) error {
	snap := sub.Snapshot()
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal subscription snapshot: %w", err)
	}

	var trainerID, groupID any
	if snap.TrainerID != nil {
		trainerID = snap.TrainerID.String()
	}
	if snap.GroupID != nil {
		groupID = snap.GroupID.String()
	}
	var freezeAutoResume, freezeEnd any
	if snap.Freeze != nil {
		freezeAutoResume = boolInt(snap.Freeze.AutoResume)
		freezeEnd = snap.Freeze.End.Format(time.RFC3339)
	}
	var discountValidUntil any
	if snap.Discount != nil && snap.Discount.ValidUntil != nil {
		discountValidUntil = snap.Discount.ValidUntil.Format(time.RFC3339)
	}
	var trialEnd any
	if snap.Trial != nil {
		trialEnd = snap.Trial.EndDate.Format(time.RFC3339)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO subscriptions (
			id, customer_id, trainer_id, group_id, kind, plan_id, state,
			recurring_billing, next_renewal_date, freeze_auto_resume,
			freeze_end, discount_valid_until, trial_end_date, snapshot,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			trainer_id = excluded.trainer_id,
			group_id = excluded.group_id,
			kind = excluded.kind,
			plan_id = excluded.plan_id,
			state = excluded.state,
			recurring_billing = excluded.recurring_billing,
			next_renewal_date = excluded.next_renewal_date,
			freeze_auto_resume = excluded.freeze_auto_resume,
			freeze_end = excluded.freeze_end,
			discount_valid_until = excluded.discount_valid_until,
			trial_end_date = excluded.trial_end_date,
			snapshot = excluded.snapshot,
			updated_at = excluded.updated_at`,
		snap.ID.String(), snap.CustomerID.String(), trainerID, groupID,
		string(snap.Kind), snap.PlanID, string(snap.State),
		boolInt(snap.RecurringBilling), snap.NextRenewalDate.Format(time.RFC3339),
		freezeAutoResume, freezeEnd, discountValidUntil, trialEnd,
		string(payload), snap.CreatedAt.Format(time.RFC3339), snap.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("save subscription: %w", err)
	}
	return nil
}

// FindByID finds a subscription by ID. Returns nil when absent.
func (r *SQLiteRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Subscription, error) {
	row := r.db.QueryRowContext(ctx, `SELECT snapshot FROM subscriptions WHERE id = ?`, id.String())
	sub, err := scanSnapshot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return sub, err
}

// FindByCustomerID finds all subscriptions of a customer.
func (r *SQLiteRepository) FindByCustomerID(ctx context.Context, customerID uuid.UUID) ([]*domain.Subscription, error) {
	return r.query(ctx, `SELECT snapshot FROM subscriptions WHERE customer_id = ? ORDER BY created_at`, customerID.String())
}

// FindByGroupID finds all subscriptions linked to a group.
func (r *SQLiteRepository) FindByGroupID(ctx context.Context, groupID uuid.UUID) ([]*domain.Subscription, error) {
	return r.query(ctx, `SELECT snapshot FROM subscriptions WHERE group_id = ? ORDER BY created_at`, groupID.String())
}

// List returns subscriptions matching the filter.
func (r *SQLiteRepository) List(ctx context.Context, filter domain.ListFilter) ([]*domain.Subscription, error) {
	var (
		conditions []string
		args       []any
	)
	if filter.CustomerID != nil {
		conditions = append(conditions, "customer_id = ?")
		args = append(args, filter.CustomerID.String())
	}
	if filter.TrainerID != nil {
		conditions = append(conditions, "trainer_id = ?")
		args = append(args, filter.TrainerID.String())
	}
	if filter.State != nil {
		conditions = append(conditions, "state = ?")
		args = append(args, string(*filter.State))
	}
	if filter.Kind != nil {
		conditions = append(conditions, "kind = ?")
		args = append(args, string(*filter.Kind))
	}

	query := "SELECT snapshot FROM subscriptions"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}
	if filter.Offset > 0 {
		if filter.Limit <= 0 {
			query += " LIMIT -1"
		}
		query += " OFFSET ?"
		args = append(args, filter.Offset)
	}

	return r.query(ctx, query, args...)
}

// FindFrozenDueForResume finds frozen subscriptions whose auto-resume window
// ended by today.
func (r *SQLiteRepository) FindFrozenDueForResume(ctx context.Context, today time.Time) ([]*domain.Subscription, error) {
	return r.query(ctx, `
		SELECT snapshot FROM subscriptions
		WHERE state = 'frozen' AND freeze_auto_resume = 1 AND freeze_end <= ?
		ORDER BY freeze_end`, today.Format(time.RFC3339))
}

// FindWithExpiringDiscounts finds subscriptions whose discount validity ends
// before today.
func (r *SQLiteRepository) FindWithExpiringDiscounts(ctx context.Context, today time.Time) ([]*domain.Subscription, error) {
	return r.query(ctx, `
		SELECT snapshot FROM subscriptions
		WHERE discount_valid_until IS NOT NULL AND discount_valid_until < ?
		ORDER BY discount_valid_until`, today.Format(time.RFC3339))
}

// FindDueForRenewal finds active recurring subscriptions due on or before
// today.
func (r *SQLiteRepository) FindDueForRenewal(ctx context.Context, today time.Time) ([]*domain.Subscription, error) {
	return r.query(ctx, `
		SELECT snapshot FROM subscriptions
		WHERE state = 'active' AND recurring_billing = 1 AND next_renewal_date <= ?
		ORDER BY next_renewal_date`, today.Format(time.RFC3339))
}

// FindTrialsExpiring finds trials ending on or before today.
func (r *SQLiteRepository) FindTrialsExpiring(ctx context.Context, today time.Time) ([]*domain.Subscription, error) {
	return r.query(ctx, `
		SELECT snapshot FROM subscriptions
		WHERE state = 'trial' AND trial_end_date IS NOT NULL AND trial_end_date <= ?
		ORDER BY trial_end_date`, today.Format(time.RFC3339))
}

// Delete removes a subscription.
func (r *SQLiteRepository) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM subscriptions WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("delete subscription: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) query(ctx context.Context, query string, args ...any) ([]*domain.Subscription, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query subscriptions: %w", err)
	}
	defer rows.Close()

	subs := make([]*domain.Subscription, 0)
	for rows.Next() {
		sub, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
