package pipeline

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/IBM/ibm-cloud-functions-serverless-ocr-openchecks/config"
	"github.com/IBM/ibm-cloud-functions-serverless-ocr-openchecks/model"
	"github.com/IBM/ibm-cloud-functions-serverless-ocr-openchecks/pkg/logger"
	"github.com/IBM/ibm-cloud-functions-serverless-ocr-openchecks/service"
)

// ObjectStore is the object/blob storage collaborator contract.
type ObjectStore interface {
	List(ctx context.Context, bucket string) ([]model.ObjectInfo, error)
	Get(ctx context.Context, bucket, key string) ([]byte, string, error)
	Put(ctx context.Context, bucket, key string, data []byte, contentType string) error
	PresignedURL(ctx context.Context, bucket, key string) (string, error)
	Delete(ctx context.Context, bucket, key string) error
}

// DocumentStore is the record store collaborator contract. Insert returns
// service.ErrConflict when the id is already written.
type DocumentStore interface {
	Insert(ctx context.Context, token, db, id string, doc any) error
	Get(ctx context.Context, token, db, id string, out any) error
}

// OCRClient extracts MICR plaintext from an audited image reference.
type OCRClient interface {
	Scan(ctx context.Context, token, imageRef, recordID string) (string, error)
}

// Notifier delivers the customer email.
type Notifier interface {
	Send(ctx context.Context, to, subject, body string) error
}

// Ledger records processed deposits for the transaction system.
type Ledger interface {
	RecordDeposit(ctx context.Context, rec *model.CheckRecord) error
	Contains(ctx context.Context, id string) (bool, error)
}

// TokenSource mints the short-lived credential one pipeline invocation
// uses for its collaborator calls.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Dependencies bundles the collaborators an Orchestrator drives.
type Dependencies struct {
	Objects  ObjectStore
	Docs     DocumentStore
	OCR      OCRClient
	Notifier Notifier
	Ledger   Ledger
	Tokens   TokenSource
}

// RunStats summarizes one pipeline invocation.
type RunStats struct {
	Discovered int
	Processed  int
	Rejected   int
	Failed     int
}

// Orchestrator sequences the pipeline stages per record. Stages within one
// record run strictly sequentially; distinct records run concurrently up
// to MaxInFlight, with no shared mutable state between them.
type Orchestrator struct {
	deps      Dependencies
	buckets   config.BucketConfig
	databases config.DocStoreConfig
	widths    []int
	retry     RetryPolicy
	inFlight  int

	// now is swapped out in tests
	now func() time.Time
}

func NewOrchestrator(cfg *config.Config, deps Dependencies) *Orchestrator {
	return &Orchestrator{
		deps:      deps,
		buckets:   cfg.Buckets,
		databases: cfg.DocStore,
		widths:    cfg.Pipeline.DerivativeWidths,
		retry: RetryPolicy{
			MaxAttempts: cfg.Pipeline.RetryMaxAttempts,
			BaseDelay:   time.Duration(cfg.Pipeline.RetryBaseDelayMS) * time.Millisecond,
		},
		inFlight: cfg.Pipeline.MaxInFlight,
		now:      time.Now,
	}
}

// Run performs one full pipeline invocation: discover candidates in the
// incoming bucket and drive each through its stages. An empty listing is a
// successful run with zero candidates.
func (o *Orchestrator) Run(ctx context.Context) (RunStats, error) {
	var stats RunStats

	token, err := o.deps.Tokens.Token(ctx)
	if err != nil {
		return stats, Retryable(StageIngest, err)
	}

	candidates, err := o.listIncoming(ctx)
	if err != nil {
		return stats, err
	}

	stats.Discovered = len(candidates)
	logger.Info(ctx, "pipeline run started", "candidates", len(candidates))
	if len(candidates) == 0 {
		return stats, nil
	}

	inFlight := o.inFlight
	if inFlight < 1 {
		inFlight = 1
	}
	sem := make(chan struct{}, inFlight)

	var wg sync.WaitGroup
	var mu sync.Mutex
	for _, obj := range candidates {
		wg.Add(1)
		sem <- struct{}{}
		go func(obj model.ObjectInfo) {
			defer wg.Done()
			defer func() { <-sem }()

			status, err := o.processRecord(ctx, token, obj)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				stats.Failed++
			case status == model.StatusRejected:
				stats.Rejected++
			default:
				stats.Processed++
			}
		}(obj)
	}
	wg.Wait()

	logger.Info(ctx, "pipeline run finished",
		"discovered", stats.Discovered,
		"processed", stats.Processed,
		"rejected", stats.Rejected,
		"failed", stats.Failed,
	)
	return stats, nil
}

// listIncoming is the ingest stage: a fresh listing each invocation, no
// persisted cursor.
func (o *Orchestrator) listIncoming(ctx context.Context) ([]model.ObjectInfo, error) {
	ctx = logger.WithStage(ctx, StageIngest)

	var candidates []model.ObjectInfo
	err := o.retry.Do(ctx, func(ctx context.Context) error {
		listed, err := o.deps.Objects.List(ctx, o.buckets.Incoming)
		if err != nil {
			// A malformed listing response will not get better on
			// a retry; a transport fault might.
			if errors.Is(err, service.ErrContractViolation) {
				return Fatal(StageIngest, err)
			}
			return Retryable(StageIngest, err)
		}
		candidates = listed
		return nil
	})
	if err != nil {
		return nil, err
	}

	return candidates, nil
}

// processRecord drives one record through transform, parse, record and
// cleanup. A failure aborts only this record's pipeline; the source image
// stays in the incoming bucket until every downstream effect is durable,
// so the next scan resumes the record safely under the same id.
func (o *Orchestrator) processRecord(ctx context.Context, token string, obj model.ObjectInfo) (string, error) {
	rec, err := model.FromObjectKey(obj.Key)
	if err != nil {
		logger.Error(ctx, "skipping malformed source file", "key", obj.Key, "error", err)
		return "", Fatal(StageIngest, err)
	}

	ctx = logger.WithRecord(ctx, rec.ID)
	logger.Info(ctx, "processing check", "file", rec.FileName)

	if err := o.runStage(ctx, StageTransform, func(ctx context.Context) error {
		return o.transform(ctx, token, rec)
	}); err != nil {
		logger.Error(ctx, "transform stage failed", "error", err)
		return rec.Status, err
	}

	if err := o.runStage(ctx, StageParse, func(ctx context.Context) error {
		return o.parse(ctx, token, rec)
	}); err != nil {
		logger.Error(ctx, "parse stage failed", "error", err)
		return rec.Status, err
	}

	// The source image is the only discovery mechanism, so a parsed
	// check must be ledgered and notified before it leaves the drop
	// zone. If the record stage fails here, the next scan replays the
	// record end to end; every earlier stage is idempotent.
	if rec.Status == model.StatusParsed {
		if err := o.runStage(ctx, StageRecord, func(ctx context.Context) error {
			return o.recordDeposit(ctx, rec)
		}); err != nil {
			logger.Error(ctx, "record stage failed", "error", err)
			return rec.Status, err
		}
	}

	// The terminal commit and the deposit record are durable; only now
	// may the source image disappear.
	if err := o.runStage(ctx, StageCleanup, func(ctx context.Context) error {
		return o.deleteSource(ctx, rec)
	}); err != nil {
		logger.Error(ctx, "cleanup stage failed", "error", err)
		return rec.Status, err
	}

	logger.Info(ctx, "check finished", "status", rec.Status)
	return rec.Status, nil
}

func (o *Orchestrator) runStage(ctx context.Context, stage string, fn func(context.Context) error) error {
	return o.retry.Do(logger.WithStage(ctx, stage), fn)
}
