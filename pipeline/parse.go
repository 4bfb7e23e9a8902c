package pipeline

import (
	"context"
	"encoding/base64"
	"errors"

	"github.com/IBM/ibm-cloud-functions-serverless-ocr-openchecks/micr"
	"github.com/IBM/ibm-cloud-functions-serverless-ocr-openchecks/model"
	"github.com/IBM/ibm-cloud-functions-serverless-ocr-openchecks/pkg/logger"
	"github.com/IBM/ibm-cloud-functions-serverless-ocr-openchecks/service"
)

// parse hands the audited image to the OCR collaborator, extracts the MICR
// data, and commits the terminal Parsed or Rejected document. A MICR
// validation failure is not an error: it routes to Rejected, once, with
// the sentinel markers set.
func (o *Orchestrator) parse(ctx context.Context, token string, rec *model.CheckRecord) error {
	imageRef, err := o.deps.Objects.PresignedURL(ctx, o.buckets.Audited, rec.ID+"/"+rec.AttachmentName)
	if err != nil {
		return Retryable(StageParse, err)
	}

	encoded, err := o.deps.OCR.Scan(ctx, token, imageRef, rec.ID)
	if err != nil {
		if errors.Is(err, service.ErrContractViolation) {
			return Fatal(StageParse, err)
		}
		return Retryable(StageParse, err)
	}

	// An undecodable payload flows into extraction as empty input; the
	// extractor's own rejection gives both cases one handling path.
	plaintext, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		logger.Warn(ctx, "OCR plaintext not decodable, treating as unreadable", "error", err)
		plaintext = nil
	}

	rec.Timestamp = o.now().Unix()

	result, extractErr := micr.Extract(string(plaintext))
	if extractErr != nil || !result.IsValid() {
		if extractErr != nil {
			logger.Warn(ctx, "rejecting check: no readable MICR text", "error", extractErr)
		} else {
			logger.Warn(ctx, "rejecting check: MICR validation failed",
				"routing_number", result.RoutingNumber,
				"account_number", result.AccountNumber,
			)
		}
		return o.commitTerminal(ctx, token, rec, model.StatusRejected, micr.SentinelAbsent, micr.SentinelAbsent)
	}

	logger.Info(ctx, "MICR extracted",
		"routing_number", result.RoutingNumber,
	)
	return o.commitTerminal(ctx, token, rec, model.StatusParsed, result.AccountNumber, result.RoutingNumber)
}

// commitTerminal writes the Parsed or Rejected document keyed by the
// record id. A duplicate-key conflict means an earlier run already
// committed the same terminal outcome, which is success.
func (o *Orchestrator) commitTerminal(ctx context.Context, token string, rec *model.CheckRecord, status, fromAccount, routingNumber string) error {
	rec.FromAccount = fromAccount
	rec.RoutingNumber = routingNumber

	db := o.databases.ParsedDB
	if status == model.StatusRejected {
		db = o.databases.RejectedDB
	}

	doc := *rec
	doc.Status = status
	if err := o.deps.Docs.Insert(ctx, token, db, rec.ID, &doc); err != nil && !errors.Is(err, service.ErrConflict) {
		return Retryable(StageParse, err)
	}

	if err := rec.Advance(status); err != nil {
		return Fatal(StageParse, err)
	}
	return nil
}
