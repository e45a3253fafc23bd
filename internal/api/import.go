package api

import (
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/starford/outliner/internal/storage"
)

const maxUploadBytes = 10 << 20 // 10 MB

// importName derives a document name from an uploaded file name by
// dropping any directory and the extension.
func importName(filename string) (string, error) {
	base := filepath.Base(filepath.Clean(filename))
	if name, ok := storage.NameOf(base); ok {
		return name, nil
	}
	name := strings.TrimSuffix(base, filepath.Ext(base))
	if name == "" || name == "." || strings.HasPrefix(name, ".") {
		return "", fmt.Errorf("invalid filename: %s", filename)
	}
	return name, nil
}

// ImportDocument handles POST /api/import (multipart/form-data, field
// "file", optional field "name").
//
//	@Summary		Import a JSON, YAML or OPML outline as a new document
//	@Tags			documents
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			file	formData	file	true	"Outline file"
//	@Param			name	formData	string	false	"Document name; defaults to the file name"
//	@Success		201		{object}	DocumentRow
//	@Failure		400		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/import [post]
func (h *Handler) ImportDocument(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("file too large or invalid multipart"))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("missing 'file' field in multipart form"))
		return
	}
	defer file.Close()

	name := r.FormValue("name")
	if name == "" {
		name, err = importName(header.Filename)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
			return
		}
	}

	data, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("failed to read file"))
		return
	}

	row, err := h.svc.Import(name, data)
	if err != nil {
		writeError(w, "import document", err)
		return
	}
	writeJSON(w, http.StatusCreated, row)
}
