package http

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mind-engage/mindsprint/internal/bank"
	"github.com/mind-engage/mindsprint/internal/storage"
)

const maxImportBytes = 8 << 20

// POST /admin/import (multipart: file=bank.json|bank.yaml)
// The raw upload is kept in the blob store under imports/ before it is applied.
func ImportBankHandler(im *bank.Importer, bs storage.BlobStore, now func() time.Time) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxImportBytes)
		f, hdr, err := r.FormFile("file")
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "file required"})
			return
		}
		defer f.Close()
		raw, err := io.ReadAll(f)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "read upload: " + err.Error()})
			return
		}

		name := path.Base(strings.ReplaceAll(hdr.Filename, "\\", "/"))
		key := fmt.Sprintf("imports/%s-%s", now().UTC().Format("20060102T150405.000"), name)
		key, err = bs.Put(r.Context(), key, bytes.NewReader(raw))
		if err != nil {
			writeError(w, err)
			return
		}

		doc, err := bank.Parse(bytes.NewReader(raw), bank.DetectFormat(name))
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error(), "key": key})
			return
		}
		rep, err := im.Import(r.Context(), doc)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"key": key, "report": rep})
	}
}

// MountImports serves stored uploads:
// GET /      -> list
// GET /*     -> raw file
func MountImports(r chi.Router, bs storage.BlobStore) {
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		objs, err := bs.List(r.Context(), "imports/")
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, objs)
	})
	r.Get("/*", func(w http.ResponseWriter, r *http.Request) {
		key := "imports/" + strings.TrimPrefix(chi.URLParam(r, "*"), "/")
		rc, err := bs.Get(r.Context(), key)
		if err != nil {
			writeError(w, err)
			return
		}
		defer rc.Close()
		w.Header().Set("Content-Type", "application/octet-stream")
		_, _ = io.Copy(w, rc)
	})
}
