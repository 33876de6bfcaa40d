package receipt

import (
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"time"
)

// maxFormSize bounds an upload batch; high-resolution phone photos run
// 10-20MB each.
const maxFormSize = int64(50 << 20)

func writeJSON(w http.ResponseWriter, status int, v any) {
	setCORSHeaders(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encoding response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// handleUploadBatch accepts a multipart batch of receipt files, runs
// extraction on each, and reports the settled batch.
func (s *Server) handleUploadBatch(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxFormSize); err != nil {
		slog.Error("parsing multipart form", "error", err)
		msg := "error parsing form"
		if err.Error() == "http: request body too large" {
			msg = "upload too large, maximum batch size is 50MB"
		}
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	var headers []*multipart.FileHeader
	if r.MultipartForm != nil {
		headers = r.MultipartForm.File["files"]
		if len(headers) == 0 {
			// Single-file clients use the "file" field.
			headers = r.MultipartForm.File["file"]
		}
	}
	if len(headers) == 0 {
		writeError(w, http.StatusBadRequest, "no files provided")
		return
	}

	files := make([]UploadFile, 0, len(headers))
	for _, header := range headers {
		f, err := header.Open()
		if err != nil {
			writeError(w, http.StatusBadRequest, "error reading upload "+header.Filename)
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			slog.Error("reading upload", "filename", header.Filename, "error", err)
			writeError(w, http.StatusInternalServerError, "error reading upload "+header.Filename)
			return
		}
		files = append(files, UploadFile{
			Name:        header.Filename,
			ContentType: uploadContentType(header),
			Data:        data,
		})
	}

	result, err := s.service.ProcessBatch(files, func(index, total int, filename string) {
		slog.Info("processing file", "index", index, "total", total, "filename", filename)
	})
	if err != nil {
		slog.Error("processing batch", "error", err)
		writeError(w, http.StatusInternalServerError, "error processing batch")
		return
	}

	writeJSON(w, http.StatusCreated, result)
}

// uploadContentType resolves the file's MIME type, falling back to the
// extension when the client sent none.
func uploadContentType(header *multipart.FileHeader) string {
	contentType := strings.ToLower(strings.TrimSpace(header.Header.Get("Content-Type")))
	if contentType != "" && contentType != "application/octet-stream" {
		return contentType
	}
	switch strings.ToLower(filepath.Ext(header.Filename)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".pdf":
		return "application/pdf"
	case ".heic":
		return "image/heic"
	case ".heif":
		return "image/heif"
	default:
		return "application/octet-stream"
	}
}

// handleListItems returns the review table
func (s *Server) handleListItems(w http.ResponseWriter, r *http.Request) {
	items, err := s.service.ListItems()
	if err != nil {
		slog.Error("listing items", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if items == nil {
		items = []*Item{}
	}
	writeJSON(w, http.StatusOK, items)
}

// handleUpdateItem applies a field-level edit to one row
func (s *Server) handleUpdateItem(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var patch ItemPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if patch.Amount != nil && *patch.Amount < 0 {
		writeError(w, http.StatusBadRequest, "amount must not be negative")
		return
	}

	item, err := s.service.UpdateItem(id, patch)
	if err != nil {
		writeError(w, http.StatusNotFound, "item not found")
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// handleDeleteItem removes one row
func (s *Server) handleDeleteItem(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeleteItem(r.PathValue("id")); err != nil {
		writeError(w, http.StatusNotFound, "item not found")
		return
	}
	setCORSHeaders(w)
	w.WriteHeader(http.StatusNoContent)
}

// handleReset clears the session
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if err := s.service.Reset(); err != nil {
		slog.Error("resetting session", "error", err)
		writeError(w, http.StatusInternalServerError, "error resetting session")
		return
	}
	setCORSHeaders(w)
	w.WriteHeader(http.StatusNoContent)
}

// handleGetSourceImage serves the archived upload behind a row
func (s *Server) handleGetSourceImage(w http.ResponseWriter, r *http.Request) {
	data, err := s.service.GetSourceImage(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "source image not found")
		return
	}
	setCORSHeaders(w)
	w.Header().Set("Content-Type", http.DetectContentType(data))
	w.Write(data)
}

// handleExport streams the review table as an xlsx download
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w)
	filename := ExportFilename(time.Now())
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	// RFC 5987 encoding keeps the Korean filename intact.
	w.Header().Set("Content-Disposition", `attachment; filename*=UTF-8''`+url.PathEscape(filename))
	if err := s.service.Export(w); err != nil {
		// Headers are already out; log and cut the stream.
		slog.Error("exporting spreadsheet", "error", err)
	}
}
