package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	sharedPersistence "github.com/coachdesk/coachdesk/internal/shared/infrastructure/persistence"
	"github.com/coachdesk/coachdesk/internal/subscription/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository is a Postgres implementation of domain.Repository. The
// aggregate is stored as a JSONB snapshot alongside the columns the sweep
// queries filter on.
//
// Schema:
//
//	CREATE TABLE subscriptions (
//	    id                   UUID PRIMARY KEY,
//	    customer_id          UUID NOT NULL,
//	    trainer_id           UUID,
//	    group_id             UUID,
//	    kind                 TEXT NOT NULL,
//	    plan_id              TEXT NOT NULL,
//	    state                TEXT NOT NULL,
//	    recurring_billing    BOOLEAN NOT NULL,
//	    next_renewal_date    TIMESTAMPTZ NOT NULL,
//	    freeze_auto_resume   BOOLEAN,
//	    freeze_end           TIMESTAMPTZ,
//	    discount_valid_until TIMESTAMPTZ,
//	    trial_end_date       TIMESTAMPTZ,
//	    snapshot             JSONB NOT NULL,
//	    created_at           TIMESTAMPTZ NOT NULL,
//	    updated_at           TIMESTAMPTZ NOT NULL
//	);
//	CREATE INDEX idx_subscriptions_customer ON subscriptions (customer_id);
//	CREATE INDEX idx_subscriptions_group ON subscriptions (group_id) WHERE group_id IS NOT NULL;
//	CREATE INDEX idx_subscriptions_renewal ON subscriptions (next_renewal_date) WHERE state = 'active' AND recurring_billing;
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a PostgresRepository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// Save upserts a subscription.
func (r *PostgresRepository) Save(ctx context.Context, sub *domain.Subscription) error {
	snap := sub.Snapshot()
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal subscription snapshot: %w", err)
	}

	var freezeAutoResume *bool
	var freezeEnd *time.Time
	if snap.Freeze != nil {
		freezeAutoResume = &snap.Freeze.AutoResume
		freezeEnd = &snap.Freeze.End
	}
	var discountValidUntil *time.Time
	if snap.Discount != nil {
		discountValidUntil = snap.Discount.ValidUntil
	}
	var trialEnd *time.Time
	if snap.Trial != nil {
		trialEnd = &snap.Trial.EndDate
	}

	_, err = sharedPersistence.Executor(ctx, r.pool).Exec(ctx, `
		INSERT INTO subscriptions (
			id, customer_id, trainer_id, group_id, kind, plan_id, state,
			recurring_billing, next_renewal_date, freeze_auto_resume,
			freeze_end, discount_valid_until, trial_end_date, snapshot,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (id) DO UPDATE SET
			trainer_id = EXCLUDED.trainer_id,
			group_id = EXCLUDED.group_id,
			kind = EXCLUDED.kind,
			plan_id = EXCLUDED.plan_id,
			state = EXCLUDED.state,
			recurring_billing = EXCLUDED.recurring_billing,
			next_renewal_date = EXCLUDED.next_renewal_date,
			freeze_auto_resume = EXCLUDED.freeze_auto_resume,
			freeze_end = EXCLUDED.freeze_end,
			discount_valid_until = EXCLUDED.discount_valid_until,
			trial_end_date = EXCLUDED.trial_end_date,
			snapshot = EXCLUDED.snapshot,
			updated_at = EXCLUDED.updated_at`,
		snap.ID, snap.CustomerID, snap.TrainerID, snap.GroupID, snap.Kind,
		snap.PlanID, snap.State, snap.RecurringBilling, snap.NextRenewalDate,
		freezeAutoResume, freezeEnd, discountValidUntil, trialEnd, payload,
		snap.CreatedAt, snap.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("save subscription: %w", err)
	}
	return nil
}

// FindByID finds a subscription by ID. Returns nil when absent.
func (r *PostgresRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Subscription, error) {
	row := sharedPersistence.Executor(ctx, r.pool).QueryRow(ctx, `SELECT snapshot FROM subscriptions WHERE id = $1`, id)
	sub, err := scanSnapshot(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return sub, err
}

// FindByCustomerID finds all subscriptions of a customer.
func (r *PostgresRepository) FindByCustomerID(ctx context.Context, customerID uuid.UUID) ([]*domain.Subscription, error) {
	return r.query(ctx, `SELECT snapshot FROM subscriptions WHERE customer_id = $1 ORDER BY created_at`, customerID)
}

// FindByGroupID finds all subscriptions linked to a group.
func (r *PostgresRepository) FindByGroupID(ctx context.Context, groupID uuid.UUID) ([]*domain.Subscription, error) {
	return r.query(ctx, `SELECT snapshot FROM subscriptions WHERE group_id = $1 ORDER BY created_at`, groupID)
}

// List returns subscriptions matching the filter.
func (r *PostgresRepository) List(ctx context.Context, filter domain.ListFilter) ([]*domain.Subscription, error) {
	var (
		conditions []string
		args       []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if filter.CustomerID != nil {
		conditions = append(conditions, "customer_id = "+arg(*filter.CustomerID))
	}
	if filter.TrainerID != nil {
		conditions = append(conditions, "trainer_id = "+arg(*filter.TrainerID))
	}
	if filter.State != nil {
		conditions = append(conditions, "state = "+arg(*filter.State))
	}
	if filter.Kind != nil {
		conditions = append(conditions, "kind = "+arg(*filter.Kind))
	}

	query := "SELECT snapshot FROM subscriptions"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at"
	if filter.Limit > 0 {
		query += " LIMIT " + arg(filter.Limit)
	}
	if filter.Offset > 0 {
		query += " OFFSET " + arg(filter.Offset)
	}

	return r.query(ctx, query, args...)
}

// FindFrozenDueForResume finds frozen subscriptions whose auto-resume window
// ended by today.
func (r *PostgresRepository) FindFrozenDueForResume(ctx context.Context, today time.Time) ([]*domain.Subscription, error) {
	return r.query(ctx, `
		SELECT snapshot FROM subscriptions
		WHERE state = 'frozen' AND freeze_auto_resume AND freeze_end <= $1
		ORDER BY freeze_end`, today)
}

// FindWithExpiringDiscounts finds subscriptions whose discount validity ends
// before today.
func (r *PostgresRepository) FindWithExpiringDiscounts(ctx context.Context, today time.Time) ([]*domain.Subscription, error) {
	return r.query(ctx, `
		SELECT snapshot FROM subscriptions
		WHERE discount_valid_until IS NOT NULL AND discount_valid_until < $1
		ORDER BY discount_valid_until`, today)
}

// FindDueForRenewal finds active recurring subscriptions due on or before
// today.
func (r *PostgresRepository) FindDueForRenewal(ctx context.Context, today time.Time) ([]*domain.Subscription, error) {
	return r.query(ctx, `
		SELECT snapshot FROM subscriptions
		WHERE state = 'active' AND recurring_billing AND next_renewal_date <= $1
		ORDER BY next_renewal_date`, today)
}

// FindTrialsExpiring finds trials ending on or before today.
func (r *PostgresRepository) FindTrialsExpiring(ctx context.Context, today time.Time) ([]*domain.Subscription, error) {
	return r.query(ctx, `
		SELECT snapshot FROM subscriptions
		WHERE state = 'trial' AND trial_end_date IS NOT NULL AND trial_end_date <= $1
		ORDER BY trial_end_date`, today)
}

// Delete removes a subscription.
func (r *PostgresRepository) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := sharedPersistence.Executor(ctx, r.pool).Exec(ctx, `DELETE FROM subscriptions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete subscription: %w", err)
	}
	return nil
}

func (r *PostgresRepository) query(ctx context.Context, sql string, args ...any) ([]*domain.Subscription, error) {
	rows, err := sharedPersistence.Executor(ctx, r.pool).Query(ctx, sql, args...)
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

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSnapshot(row rowScanner) (*domain.Subscription, error) {
	var payload []byte
	if err := row.Scan(&payload); err != nil {
		return nil, err
	}
	var snap domain.Snapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		return nil, fmt.Errorf("unmarshal subscription snapshot: %w", err)
	}
	return domain.FromSnapshot(snap), nil
}
