package delivery

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"

	"github.com/soundpack/backend/internal/logging"
	"github.com/soundpack/backend/internal/storage"
)

// Disposition selects how the browser should treat the delivered bytes.
type Disposition string

const (
	// Inline is used for preview streams played in place.
	Inline Disposition = "inline"
	// Attachment triggers a save dialog with the supplied filename.
	Attachment Disposition = "attachment"
)

var traversal = regexp.MustCompile(`(\.\./|/)`)

// SanitizeFilename strips path traversal and separator sequences from a
// client-influenced filename so it can never escape into the disposition
// header as a path.
func SanitizeFilename(name string) string {
	return traversal.ReplaceAllString(name, "")
}

// Serve writes a resolved asset to the response. Both token-gated paths are
// uncacheable. Remote assets are already buffered and go out in one write;
// local assets stream incrementally, and a mid-stream failure after headers
// have been flushed can only be logged and the connection dropped.
func Serve(ctx context.Context, w http.ResponseWriter, asset *storage.Asset, contentType string, mode Disposition, filename string) {
	defer asset.Close()

	logger := logging.FromContext(ctx)

	w.Header().Set("Content-Type", contentType)
	if mode == Attachment {
		w.Header().Set("Content-Disposition", fmt.Sprintf("%s; filename=%q", mode, SanitizeFilename(filename)))
	} else {
		w.Header().Set("Content-Disposition", fmt.Sprintf("%s; filename=%q", mode, filename))
	}
	w.Header().Set("Cache-Control", "no-store, max-age=0")
	if asset.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(asset.Size, 10))
	}

	if asset.Origin == storage.OriginRemote {
		if _, err := w.Write(asset.Bytes); err != nil {
			logger.Warn("write buffered asset", "error", err)
		}
		return
	}

	written, err := io.Copy(w, asset.Stream)
	if err != nil {
		logger.Error("stream local asset", "written", written, "error", err)
		if written == 0 {
			// Nothing reached the client yet, so the status can still change.
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		// Headers are gone; the only option left is aborting the stream.
	}
}
