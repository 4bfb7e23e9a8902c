package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/IBM/ibm-cloud-functions-serverless-ocr-openchecks/model"
	"github.com/IBM/ibm-cloud-functions-serverless-ocr-openchecks/pkg/logger"
)

// deleteSource removes the original image from the incoming bucket. It is
// the last stage: the terminal commit and, for parsed checks, the deposit
// record are already durable, so a crash before this point leaves the
// source in place for a safe full re-run. The store treats an
// already-deleted key as success.
func (o *Orchestrator) deleteSource(ctx context.Context, rec *model.CheckRecord) error {
	if err := o.deps.Objects.Delete(ctx, o.buckets.Incoming, rec.FileName); err != nil {
		return Retryable(StageCleanup, err)
	}
	logger.Info(ctx, "source image deleted", "file", rec.FileName)
	return nil
}

// recordDeposit inserts the parsed check into the processed ledger and
// then notifies the customer, as one waterfall: the ledger insert must
// succeed before the notification is attempted. The ledger insert is
// idempotent; the notification channel is at-least-once, so a retried run
// may re-send the email.
func (o *Orchestrator) recordDeposit(ctx context.Context, rec *model.CheckRecord) error {
	if err := o.deps.Ledger.RecordDeposit(ctx, rec); err != nil {
		return Retryable(StageRecord, err)
	}

	subject := "Check deposit accepted"
	if err := o.deps.Notifier.Send(ctx, rec.Email, subject, depositAcceptedBody(rec)); err != nil {
		return Retryable(StageRecord, err)
	}

	if err := rec.Advance(model.StatusProcessed); err != nil {
		return Fatal(StageRecord, err)
	}

	logger.Info(ctx, "deposit recorded and customer notified", "email", rec.Email)
	return nil
}

// depositAcceptedBody renders the customer notification text.
func depositAcceptedBody(rec *model.CheckRecord) string {
	return fmt.Sprintf(
		"Hello, your deposit for $%s was accepted into your account %s on %s. "+
			"For reference, the check number and routing number were: %s-%s. ",
		rec.Amount, rec.ToAccount, formatDate(rec.Timestamp), rec.FromAccount, rec.RoutingNumber)
}

// formatDate renders a Unix timestamp as M/D/YYYY.
func formatDate(timestamp int64) string {
	t := time.Unix(timestamp, 0).UTC()
	return fmt.Sprintf("%d/%d/%d", int(t.Month()), t.Day(), t.Year())
}
