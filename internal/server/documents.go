package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/schiavigomme/hertz-invoicer/constants"
	"github.com/schiavigomme/hertz-invoicer/internal/common"
	"github.com/schiavigomme/hertz-invoicer/internal/extract"
	"github.com/schiavigomme/hertz-invoicer/internal/match"
	processor "github.com/schiavigomme/hertz-invoicer/internal/pipeline"
	"github.com/schiavigomme/hertz-invoicer/internal/repository"
)

// DocumentsHandler serves document intake and the pending pool.
type DocumentsHandler struct {
	processor *processor.Processor
	matcher   *match.Matcher
	documents repository.DocumentRepository
	log       *slog.Logger
}

func NewDocumentsHandler(proc *processor.Processor, matcher *match.Matcher, documents repository.DocumentRepository, log *slog.Logger) *DocumentsHandler {
	return &DocumentsHandler{processor: proc, matcher: matcher, documents: documents, log: log}
}

// Upload ingests one or more PDFs from a multipart form and reports the
// outcome per file. Files run through the pipeline synchronously so the
// response already reflects the match decision.
func (h *DocumentsHandler) Upload(c *gin.Context) {
	ctx := c.Request.Context()
	form, err := c.MultipartForm()
	if err != nil {
		h.log.Error("failed to read multipart form", "error", err)
		c.Error(common.NewAppError("INVALID_UPLOAD",
			`expected a multipart form with a "files" field`, common.ErrInvalidInput))
		return
	}
	files := form.File["files"]
	if len(files) == 0 {
		c.Error(common.NewAppError("NO_FILES", "no files in upload", common.ErrInvalidInput))
		return
	}

	results := make([]SubmissionResult, 0, len(files))
	for _, header := range files {
		results = append(results, h.ingest(ctx, header))
	}
	c.JSON(http.StatusOK, UploadResponse{Results: results})
}

func (h *DocumentsHandler) ingest(ctx context.Context, header *multipart.FileHeader) SubmissionResult {
	name := filepath.Base(header.Filename)
	if _, ok := constants.AllowedExtensions[constants.NormalizeExt(filepath.Ext(name))]; !ok {
		return SubmissionResult{
			Filename: name,
			Outcome:  outcomeRejected,
			Code:     "UNSUPPORTED_FILE_TYPE",
			Reason:   "only PDF documents are accepted",
		}
	}

	data, err := readUpload(header)
	if err != nil {
		h.log.Error("failed to read uploaded file", "filename", name, "error", err)
		return SubmissionResult{
			Filename: name,
			Outcome:  outcomeRejected,
			Code:     "UNREADABLE_FILE",
			Reason:   "could not read the uploaded file",
		}
	}

	res, err := h.processor.Process(ctx, &processor.Intake{
		Filename: name,
		Source:   constants.SourceUpload,
		Data:     data,
	})
	if err != nil {
		return rejectionResult(name, err)
	}
	return submissionResult(name, res)
}

func readUpload(header *multipart.FileHeader) ([]byte, error) {
	f, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

func rejectionResult(filename string, err error) SubmissionResult {
	result := SubmissionResult{
		Filename: filename,
		Outcome:  outcomeRejected,
		Reason:   err.Error(),
	}
	switch {
	case errors.Is(err, extract.ErrUnrecognizedLayout):
		result.Code = "UNRECOGNIZED_LAYOUT"
	case errors.Is(err, extract.ErrMissingRequiredField):
		result.Code = "MISSING_REQUIRED_FIELD"
	default:
		result.Code = "PROCESSING_FAILED"
		result.Reason = "the document could not be processed, check the server logs"
	}
	return result
}

// List returns pool candidates, pending ones unless a status filter says
// otherwise.
func (h *DocumentsHandler) List(c *gin.Context) {
	ctx := c.Request.Context()
	status := constants.DocStatusPending
	if raw := c.Query("status"); raw != "" {
		parsed, ok := parseDocumentStatus(raw)
		if !ok {
			c.Error(common.NewAppError("INVALID_STATUS",
				"unknown document status "+raw, common.ErrInvalidInput))
			return
		}
		status = parsed
	}

	docs, err := h.documents.ListByStatus(ctx, status)
	if err != nil {
		h.log.Error("failed to list documents", "status", status, "error", err)
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, ToListDocumentsResponse(docs))
}

// Purge removes a stale pending candidate on operator request. Nothing
// ages out of the pool on its own.
func (h *DocumentsHandler) Purge(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.Error(common.NewAppError("INVALID_DOCUMENT_ID",
			"document id must be a UUID", common.ErrInvalidInput))
		return
	}

	if err := h.matcher.Purge(c.Request.Context(), id); err != nil {
		h.log.Error("failed to purge document", "id", id, "error", err)
		c.Error(err)
		return
	}
	h.log.Info("document purged", "id", id)
	c.Status(http.StatusNoContent)
}
