package service

import (
	"context"
	"os"
	"testing"

	"github.com/IBM/ibm-cloud-functions-serverless-ocr-openchecks/model"
)

// ledgerFromEnv connects to the database named by TEST_DATABASE_URL, or
// skips the test when none is configured.
func ledgerFromEnv(t *testing.T) *LedgerService {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("Ledger operations require a live Postgres (set TEST_DATABASE_URL)")
	}

	svc, err := NewLedgerService(context.Background(), dsn)
	if err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	t.Cleanup(svc.Close)

	if err := svc.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("Failed to ensure schema: %v", err)
	}
	return svc
}

func TestLedgerRecordDepositIsIdempotent(t *testing.T) {
	svc := ledgerFromEnv(t)
	ctx := context.Background()

	rec := &model.CheckRecord{
		ID:            model.DeriveID("ledger-test^1^10.00.png"),
		Email:         "ledger-test@example.com",
		ToAccount:     "1",
		FromAccount:   "987654321",
		RoutingNumber: "123456789",
		Amount:        "10.00",
		Timestamp:     1700000000,
	}

	if err := svc.RecordDeposit(ctx, rec); err != nil {
		t.Fatalf("First insert failed: %v", err)
	}
	// Duplicate insert must succeed quietly.
	if err := svc.RecordDeposit(ctx, rec); err != nil {
		t.Fatalf("Replayed insert failed: %v", err)
	}

	exists, err := svc.Contains(ctx, rec.ID)
	if err != nil {
		t.Fatalf("Contains failed: %v", err)
	}
	if !exists {
		t.Error("Expected record in ledger")
	}
}

func TestLedgerContainsUnknownID(t *testing.T) {
	svc := ledgerFromEnv(t)

	exists, err := svc.Contains(context.Background(), "never-inserted")
	if err != nil {
		t.Fatalf("Contains failed: %v", err)
	}
	if exists {
		t.Error("Expected unknown id to be absent")
	}
}
