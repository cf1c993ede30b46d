package postgres

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the pull payment store.
var Migrations = migrate.NewGroup("pullpay")

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_pullpay_recurring_plans",
			Version: "20250101000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS pullpay_recurring_plans (
    payment_id             TEXT PRIMARY KEY,
    business_id            TEXT NOT NULL,
    plan_type              TEXT NOT NULL,
    currency               TEXT NOT NULL,
    conversion_rate        BIGINT NOT NULL,
    initial_amount_cents   BIGINT NOT NULL DEFAULT 0,
    recurring_amount_cents BIGINT NOT NULL,
    frequency_seconds      BIGINT NOT NULL,
    remaining_payments     BIGINT NOT NULL,
    start_timestamp        BIGINT NOT NULL,
    trial_period_seconds   BIGINT NOT NULL DEFAULT 0,
    next_due_timestamp     BIGINT NOT NULL,
    last_payment_timestamp BIGINT NOT NULL DEFAULT 0,
    cancel_timestamp       BIGINT NOT NULL DEFAULT 0,
    payer                  TEXT NOT NULL,
    treasury               TEXT NOT NULL,
    executor               TEXT NOT NULL,
    version                BIGINT NOT NULL DEFAULT 0,
    created_at             TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at             TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_pullpay_recurring_payer ON pullpay_recurring_plans (payer);
CREATE INDEX IF NOT EXISTS idx_pullpay_recurring_due ON pullpay_recurring_plans (next_due_timestamp)
    WHERE cancel_timestamp = 0 AND remaining_payments > 0;
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS pullpay_recurring_plans`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_pullpay_topup_plans",
			Version: "20250101000002",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS pullpay_topup_plans (
    payment_id                TEXT PRIMARY KEY,
    business_id               TEXT NOT NULL,
    currency                  TEXT NOT NULL,
    initial_conversion_rate   BIGINT NOT NULL,
    initial_amount_cents      BIGINT NOT NULL DEFAULT 0,
    top_up_amount_cents       BIGINT NOT NULL,
    start_timestamp           BIGINT NOT NULL,
    total_limit_cents         BIGINT NOT NULL,
    total_spent_cents         BIGINT NOT NULL DEFAULT 0,
    last_payment_timestamp    BIGINT NOT NULL DEFAULT 0,
    cancel_timestamp          BIGINT NOT NULL DEFAULT 0,
    payer                     TEXT NOT NULL,
    treasury                  TEXT NOT NULL,
    executor                  TEXT NOT NULL,
    expiration_timestamp      BIGINT NOT NULL DEFAULT 0,
    version                   BIGINT NOT NULL DEFAULT 0,
    has_time_based            BOOLEAN NOT NULL DEFAULT FALSE,
    time_based_limit_cents    BIGINT NOT NULL DEFAULT 0,
    time_based_period_seconds BIGINT NOT NULL DEFAULT 0,
    time_based_spent_cents    BIGINT NOT NULL DEFAULT 0,
    window_start_timestamp    BIGINT NOT NULL DEFAULT 0,
    created_at                TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at                TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_pullpay_topup_payer ON pullpay_topup_plans (payer);
CREATE INDEX IF NOT EXISTS idx_pullpay_topup_executor ON pullpay_topup_plans (executor);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS pullpay_topup_plans`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_pullpay_executions",
			Version: "20250101000003",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS pullpay_executions (
    id                 TEXT PRIMARY KEY,
    payment_id         TEXT NOT NULL,
    model              TEXT NOT NULL,
    kind               TEXT NOT NULL,
    payer              TEXT NOT NULL,
    treasury           TEXT NOT NULL,
    amount_cents       BIGINT NOT NULL,
    currency           TEXT NOT NULL,
    conversion_rate    BIGINT NOT NULL,
    ledger_amount      TEXT NOT NULL,
    remaining_payments BIGINT NOT NULL DEFAULT 0,
    executed_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_pullpay_executions_payment ON pullpay_executions (payment_id, executed_at DESC);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS pullpay_executions`)
				return err
			},
		},
	)
}
