package handlers

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"

	"github.com/markdave123-py/contexta/internal/core"
	"github.com/markdave123-py/contexta/internal/core/ingestion_engine"
	"github.com/markdave123-py/contexta/internal/services"
)

// multipartMemory is how much of an upload is buffered in memory before
// spilling to disk.
const multipartMemory = 32 << 20

type DocumentHandler struct {
	docs     *services.DocumentService
	maxBytes int64
	logger   *slog.Logger
}

func NewDocumentHandler(docs *services.DocumentService, maxBytes int64, logger *slog.Logger) *DocumentHandler {
	if maxBytes <= 0 {
		maxBytes = ingestion_engine.DefaultMaxFileBytes
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &DocumentHandler{docs: docs, maxBytes: maxBytes, logger: logger.With("component", "document-handler")}
}

// UploadDocument stores the multipart "file" in a scratch file and ingests it.
// The pipeline owns the scratch file from then on.
func (h *DocumentHandler) UploadDocument(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes+multipartMemory)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: fmt.Sprintf("upload exceeds %d bytes", h.maxBytes)})
			return
		}
		writeError(w, r, h.logger, fmt.Errorf("%w: invalid multipart form: %w", core.ErrValidation, err))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, h.logger, fmt.Errorf("%w: missing file: %w", core.ErrValidation, err))
		return
	}
	defer file.Close()

	path, err := spool(file)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	report, err := h.docs.Ingest(r.Context(), ingestion_engine.IngestRequest{
		FilePath:   path,
		FileName:   header.Filename,
		Title:      r.FormValue("title"),
		SourceType: r.FormValue("source_type"),
		UserID:     r.Header.Get("X-User-ID"),
		Temporary:  true,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, report)
}

func spool(src io.Reader) (string, error) {
	tmp, err := os.CreateTemp("", "contexta-upload-*")
	if err != nil {
		return "", fmt.Errorf("create scratch file: %w", err)
	}
	_, err = io.Copy(tmp, src)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("write scratch file: %w", err)
	}
	return tmp.Name(), nil
}

// GetDocuments lists the documents of ?user_id= (documents without an owner
// when it is absent).
func (h *DocumentHandler) GetDocuments(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		userID = r.Header.Get("X-User-ID")
	}
	documents, err := h.docs.ListByUser(r.Context(), userID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, documents)
}

func (h *DocumentHandler) GetIncompleteDocuments(w http.ResponseWriter, r *http.Request) {
	documents, err := h.docs.ListIncomplete(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, documents)
}

func (h *DocumentHandler) GetDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := h.docs.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}
