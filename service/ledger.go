package service

import (
	"context"
	"fmt"

	"github.com/IBM/ibm-cloud-functions-serverless-ocr-openchecks/model"
	"github.com/jackc/pgx/v5/pgxpool"
)

// LedgerService persists processed deposits for the transaction system.
// Inserts are keyed by record id with ON CONFLICT DO NOTHING, so replaying
// a pipeline run can never double-book a deposit.
type LedgerService struct {
	pool *pgxpool.Pool
}

func NewLedgerService(ctx context.Context, databaseURL string) (*LedgerService, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create ledger pool: %w", err)
	}

	return &LedgerService{pool: pool}, nil
}

// EnsureSchema creates the processed-deposits table if it doesn't exist
func (s *LedgerService) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS processed_checks (
			id             TEXT PRIMARY KEY,
			email          TEXT NOT NULL,
			to_account     TEXT NOT NULL,
			from_account   TEXT NOT NULL,
			routing_number TEXT NOT NULL,
			amount         NUMERIC(12,2) NOT NULL,
			deposited_at   BIGINT NOT NULL,
			created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`)
	if err != nil {
		return fmt.Errorf("failed to ensure ledger schema: %w", err)
	}

	return nil
}

// RecordDeposit inserts the parsed record into the processed ledger.
// A duplicate id is a no-op, not an error.
func (s *LedgerService) RecordDeposit(ctx context.Context, rec *model.CheckRecord) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO processed_checks (id, email, to_account, from_account, routing_number, amount, deposited_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING`,
		rec.ID, rec.Email, rec.ToAccount, rec.FromAccount, rec.RoutingNumber, rec.Amount, rec.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to record deposit %s: %w", rec.ID, err)
	}

	return nil
}

// Contains reports whether a record has already been ledger-recorded.
func (s *LedgerService) Contains(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM processed_checks WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to query ledger for %s: %w", id, err)
	}

	return exists, nil
}

// Close releases the connection pool.
func (s *LedgerService) Close() {
	s.pool.Close()
}
