package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/IBM/ibm-cloud-functions-serverless-ocr-openchecks/config"
	"github.com/IBM/ibm-cloud-functions-serverless-ocr-openchecks/imaging"
	"github.com/IBM/ibm-cloud-functions-serverless-ocr-openchecks/model"
	"github.com/IBM/ibm-cloud-functions-serverless-ocr-openchecks/pipeline"
	"github.com/IBM/ibm-cloud-functions-serverless-ocr-openchecks/pkg/logger"
	"github.com/IBM/ibm-cloud-functions-serverless-ocr-openchecks/service"
	"github.com/gin-gonic/gin"
)

type ChecksHandler struct {
	config       *config.Config
	deps         pipeline.Dependencies
	orchestrator *pipeline.Orchestrator
}

func NewChecksHandler(cfg *config.Config, deps pipeline.Dependencies, orch *pipeline.Orchestrator) *ChecksHandler {
	return &ChecksHandler{
		config:       cfg,
		deps:         deps,
		orchestrator: orch,
	}
}

// Upload drops a check image into the incoming bucket. The file name must
// carry the deposit metadata: email^account^amount.ext.
func (h *ChecksHandler) Upload(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file provided"})
		return
	}
	defer file.Close()

	if !imaging.SupportedExtension(header.Filename) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Only BMP, GIF, JPG and PNG files are allowed"})
		return
	}

	rec, err := model.FromObjectKey(header.Filename)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "File name must be email^account^amount.ext"})
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read file"})
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}

	if err := h.deps.Objects.Put(c.Request.Context(), h.config.Buckets.Incoming, header.Filename, data, contentType); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to upload file: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":        rec.ID,
		"file_name": rec.FileName,
		"status":    model.StatusIncoming,
	})
}

// Scan triggers one pipeline invocation in the background.
func (h *ChecksHandler) Scan(c *gin.Context) {
	go func() {
		stats, err := h.orchestrator.Run(context.Background())
		if err != nil {
			logger.Error(context.Background(), "triggered pipeline run failed", "error", err)
			return
		}
		logger.Info(context.Background(), "triggered pipeline run finished",
			"discovered", stats.Discovered,
			"processed", stats.Processed,
			"rejected", stats.Rejected,
			"failed", stats.Failed,
		)
	}()

	c.JSON(http.StatusAccepted, gin.H{"status": "scan started"})
}

// Get reports the current state of a check by its record id. The terminal
// document stores win over the audited store; a ledger entry upgrades a
// parsed check to processed.
func (h *ChecksHandler) Get(c *gin.Context) {
	id := c.Param("id")
	ctx := c.Request.Context()

	token, err := h.deps.Tokens.Token(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to authenticate with record store"})
		return
	}

	var rec model.CheckRecord
	err = h.deps.Docs.Get(ctx, token, h.config.DocStore.ParsedDB, id, &rec)
	if err == nil {
		status := model.StatusParsed
		recorded, err := h.deps.Ledger.Contains(ctx, id)
		if err != nil {
			logger.Warn(ctx, "ledger lookup failed", "id", id, "error", err)
		} else if recorded {
			status = model.StatusProcessed
		}
		rec.Status = status
		c.JSON(http.StatusOK, rec)
		return
	}
	if !errors.Is(err, service.ErrNotFound) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to look up check"})
		return
	}

	for _, db := range []string{h.config.DocStore.RejectedDB, h.config.DocStore.AuditedDB} {
		err = h.deps.Docs.Get(ctx, token, db, id, &rec)
		if err == nil {
			c.JSON(http.StatusOK, rec)
			return
		}
		if !errors.Is(err, service.ErrNotFound) {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to look up check"})
			return
		}
	}

	c.JSON(http.StatusNotFound, gin.H{"error": "Check not found"})
}

// List returns the checks still waiting in the incoming bucket.
func (h *ChecksHandler) List(c *gin.Context) {
	ctx := c.Request.Context()

	objects, err := h.deps.Objects.List(ctx, h.config.Buckets.Incoming)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list checks"})
		return
	}

	checks := make([]gin.H, 0, len(objects))
	for _, obj := range objects {
		rec, err := model.FromObjectKey(obj.Key)
		if err != nil {
			logger.Warn(ctx, "skipping malformed object in listing", "key", obj.Key)
			continue
		}
		checks = append(checks, gin.H{
			"id":         rec.ID,
			"file_name":  rec.FileName,
			"email":      rec.Email,
			"to_account": rec.ToAccount,
			"amount":     rec.Amount,
			"status":     model.StatusIncoming,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"checks": checks,
		"total":  len(checks),
	})
}
