package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"path"
	"strings"

	"github.com/alanyoungcy/spikebot/internal/domain"
)

// ArchivesHandler serves read-only access to the closed-trade archive
// objects so operators can verify and inspect exports without bucket
// credentials.
type ArchivesHandler struct {
	blobs  domain.BlobReader
	prefix string
	logger *slog.Logger
}

// NewArchivesHandler creates an ArchivesHandler scoped to the given key
// prefix. Keys outside the prefix are not reachable through it.
func NewArchivesHandler(blobs domain.BlobReader, prefix string, logger *slog.Logger) *ArchivesHandler {
	return &ArchivesHandler{
		blobs:  blobs,
		prefix: prefix,
		logger: logHandler(logger, "archives"),
	}
}

// archiveEntry is the JSON shape of one listed archive object.
type archiveEntry struct {
	Path         string `json:"path"`
	Size         int64  `json:"size"`
	LastModified string `json:"last_modified"`
}

// ListArchives returns metadata for every archive object under the prefix.
// GET /archives
func (h *ArchivesHandler) ListArchives(w http.ResponseWriter, r *http.Request) {
	infos, err := h.blobs.List(r.Context(), h.prefix)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list archives failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list archives")
		return
	}

	entries := make([]archiveEntry, 0, len(infos))
	for _, info := range infos {
		entries = append(entries, archiveEntry{
			Path:         info.Path,
			Size:         info.Size,
			LastModified: info.LastModified.UTC().Format("2006-01-02T15:04:05Z"),
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"archives": entries,
		"count":    len(entries),
	})
}

// DownloadArchive streams a single archive object. The key is the full
// object path as returned by ListArchives.
// GET /archives/{key...}
func (h *ArchivesHandler) DownloadArchive(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	if key == "" {
		writeError(w, http.StatusBadRequest, "missing archive key")
		return
	}
	if h.prefix != "" && !strings.HasPrefix(key, h.prefix) {
		writeError(w, http.StatusNotFound, "archive not found")
		return
	}

	body, err := h.blobs.Get(r.Context(), key)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "archive not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "fetch archive failed",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to fetch archive")
		return
	}
	defer body.Close()

	contentType := "application/octet-stream"
	if strings.HasSuffix(key, ".gz") {
		contentType = "application/gzip"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+path.Base(key)+`"`)
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, body); err != nil {
		h.logger.WarnContext(r.Context(), "archive stream interrupted",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
	}
}
