package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/IBM/ibm-cloud-functions-serverless-ocr-openchecks/imaging"
	"github.com/IBM/ibm-cloud-functions-serverless-ocr-openchecks/model"
	"github.com/IBM/ibm-cloud-functions-serverless-ocr-openchecks/pkg/logger"
	"github.com/IBM/ibm-cloud-functions-serverless-ocr-openchecks/service"
	"github.com/google/uuid"
)

// transform downloads the source image, renders the derivative copies,
// stores the original in the audited bucket and the derivatives in the
// archive, and commits the audited document. Every write is idempotent,
// so the whole stage can be re-run after a crash.
func (o *Orchestrator) transform(ctx context.Context, token string, rec *model.CheckRecord) error {
	if !imaging.SupportedExtension(rec.FileName) {
		return Fatal(StageTransform, fmt.Errorf("%w: %s", imaging.ErrUnsupportedFormat, rec.FileName))
	}

	data, contentType, err := o.deps.Objects.Get(ctx, o.buckets.Incoming, rec.FileName)
	if err != nil {
		return Retryable(StageTransform, err)
	}
	rec.ContentType = contentType

	derivatives, err := imaging.Derivatives(rec.FileName, data, o.widths)
	if err != nil {
		if errors.Is(err, imaging.ErrUnsupportedFormat) {
			return Fatal(StageTransform, err)
		}
		// Codec faults are treated as transient per the retry policy.
		return Retryable(StageTransform, err)
	}

	attachmentName := "att-" + uuid.NewString()
	if err := o.deps.Objects.Put(ctx, o.buckets.Audited, rec.ID+"/"+attachmentName, data, contentType); err != nil {
		return Retryable(StageTransform, err)
	}
	for _, d := range derivatives {
		if err := o.deps.Objects.Put(ctx, o.buckets.Archived, rec.ID+"/"+d.Name, d.Data, contentType); err != nil {
			return Retryable(StageTransform, err)
		}
	}
	rec.AttachmentName = attachmentName

	audited := *rec
	audited.Status = model.StatusAudited
	err = o.deps.Docs.Insert(ctx, token, o.databases.AuditedDB, rec.ID, &audited)
	switch {
	case errors.Is(err, service.ErrConflict):
		// An earlier interrupted run already audited this record. Adopt
		// its attachment name so OCR reads the attachment that insert
		// made authoritative, and drop the copy this run just stored.
		var existing model.CheckRecord
		if err := o.deps.Docs.Get(ctx, token, o.databases.AuditedDB, rec.ID, &existing); err != nil {
			return Retryable(StageTransform, err)
		}
		if existing.AttachmentName != "" && existing.AttachmentName != attachmentName {
			rec.AttachmentName = existing.AttachmentName
			if err := o.deps.Objects.Delete(ctx, o.buckets.Audited, rec.ID+"/"+attachmentName); err != nil {
				logger.Warn(ctx, "could not remove superseded attachment",
					"attachment", attachmentName, "error", err)
			}
		}
		logger.Info(ctx, "record already audited, adopting stored attachment",
			"attachment", rec.AttachmentName)
	case err != nil:
		return Retryable(StageTransform, err)
	}

	if rec.Status == model.StatusIncoming {
		if err := rec.Advance(model.StatusAudited); err != nil {
			return Fatal(StageTransform, err)
		}
	}

	logger.Info(ctx, "check audited",
		"attachment", rec.AttachmentName,
		"derivatives", len(derivatives),
	)
	return nil
}
