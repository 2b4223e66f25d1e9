package ingestion_engine

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/markdave123-py/contexta/internal/core"
	"github.com/markdave123-py/contexta/internal/models"
)

// extSourceTypes maps accepted file extensions to source types.
var extSourceTypes = map[string]string{
	".pdf": models.SourcePDF,
	".txt": models.SourceText,
	".md":  models.SourceMarkdown,
}

var contentTypes = map[string]string{
	models.SourcePDF:      "application/pdf",
	models.SourceText:     "text/plain; charset=utf-8",
	models.SourceMarkdown: "text/markdown; charset=utf-8",
}

// IsSupportedFile reports whether path has an extension the pipeline accepts.
func IsSupportedFile(path string) bool {
	_, ok := extSourceTypes[strings.ToLower(filepath.Ext(path))]
	return ok
}

// validatedFile is an IngestRequest after validation, with defaults filled in.
type validatedFile struct {
	path       string
	fileName   string
	title      string
	sourceType string
	size       int64
}

func validateRequest(req IngestRequest, maxBytes int64) (*validatedFile, error) {
	if strings.TrimSpace(req.FilePath) == "" {
		return nil, fmt.Errorf("%w: file path is empty", core.ErrValidation)
	}

	info, err := os.Stat(req.FilePath)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", core.ErrValidation, req.FilePath, err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%w: %s is not a regular file", core.ErrValidation, req.FilePath)
	}
	if info.Size() > maxBytes {
		return nil, fmt.Errorf("%w: %s is %d bytes, limit is %d", core.ErrValidation, req.FilePath, info.Size(), maxBytes)
	}

	fileName := filepath.Base(req.FilePath)
	if name := strings.TrimSpace(req.FileName); name != "" {
		fileName = filepath.Base(name)
	}
	ext := strings.ToLower(filepath.Ext(fileName))
	inferred, ok := extSourceTypes[ext]
	if !ok {
		return nil, fmt.Errorf("%w: unsupported file extension %q", core.ErrValidation, ext)
	}

	sourceType := inferred
	if req.SourceType != "" {
		sourceType, err = normalizeSourceType(req.SourceType)
		if err != nil {
			return nil, err
		}
		if sourceType != inferred {
			return nil, fmt.Errorf("%w: source type %q does not match extension %q", core.ErrValidation, req.SourceType, ext)
		}
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = strings.TrimSuffix(fileName, filepath.Ext(fileName))
	}

	return &validatedFile{
		path:       req.FilePath,
		fileName:   fileName,
		title:      title,
		sourceType: sourceType,
		size:       info.Size(),
	}, nil
}

func normalizeSourceType(s string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case models.SourcePDF:
		return models.SourcePDF, nil
	case models.SourceText, "text":
		return models.SourceText, nil
	case models.SourceMarkdown, "md":
		return models.SourceMarkdown, nil
	default:
		return "", fmt.Errorf("%w: unknown source type %q", core.ErrValidation, s)
	}
}
