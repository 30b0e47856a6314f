package server

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/cristidraghici/open-file-sharing/internal/common"
	"github.com/cristidraghici/open-file-sharing/internal/media"
)

const maxUploadMemory = 32 << 20

// fileMetadata is the wire shape the SPA consumes for one stored object.
type fileMetadata struct {
	ID         string `json:"id"`
	FileName   string `json:"fileName"`
	FileType   string `json:"fileType"`
	Size       int64  `json:"size"`
	UploadedBy string `json:"uploadedBy"`
	UploadedAt string `json:"uploadedAt,omitempty"`
}

func toFileMetadata(obj *media.StoredObject) fileMetadata {
	return fileMetadata{
		ID:         obj.ID,
		FileName:   obj.FileName,
		FileType:   media.Classify(obj.Mime),
		Size:       obj.Size,
		UploadedBy: obj.UploadedBy,
		UploadedAt: obj.UploadedAt,
	}
}

// handleUpload accepts multipart uploads under "files[]" (with "files" and
// single-"file" fallbacks) and stores every readable part. Parts that fail
// are skipped, matching the at-least-one contract of the endpoint.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil || r.MultipartForm == nil {
		validationError(w, `Missing files in form-data under key "files[]"`, map[string]any{"files": "required"})
		return
	}

	var parts []*multipart.FileHeader
	for _, key := range []string{"files[]", "files", "file"} {
		if headers := r.MultipartForm.File[key]; len(headers) > 0 {
			parts = headers
			break
		}
	}
	if len(parts) == 0 {
		validationError(w, `Missing files in form-data under key "files[]"`, map[string]any{"files": "required"})
		return
	}

	uploadedBy := claimString(authClaims(r), "username")
	if uploadedBy == "" {
		uploadedBy = "unknown"
	}

	stored := make([]fileMetadata, 0, len(parts))
	for _, hdr := range parts {
		obj, err := s.storePart(hdr, uploadedBy)
		if err != nil {
			s.log.Warn(r.Context(), "skipping failed upload part", "filename", hdr.Filename, "error", err)
			continue
		}
		stored = append(stored, toFileMetadata(obj))
	}

	writeData(w, http.StatusCreated, stored)
}

// storePart spools one multipart file to a temp path and hands it to the
// media store, which moves it into place.
func (s *Server) storePart(hdr *multipart.FileHeader, uploadedBy string) (*media.StoredObject, error) {
	src, err := hdr.Open()
	if err != nil {
		return nil, err
	}
	defer src.Close()

	tmp, err := os.CreateTemp("", "ofs-upload-*")
	if err != nil {
		return nil, err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	_, copyErr := io.Copy(tmp, src)
	if closeErr := tmp.Close(); copyErr == nil {
		copyErr = closeErr
	}
	if copyErr != nil {
		return nil, copyErr
	}

	name := hdr.Filename
	if name == "" {
		name = "upload.bin"
	}
	return s.media.Store(name, tmpPath, uploadedBy)
}

func (s *Server) handleGetByID(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if id == "" {
		validationError(w, "Missing media id", nil)
		return
	}

	obj, err := s.media.FindByID(id)
	if err != nil {
		notFoundError(w, "Media not found")
		return
	}

	writeData(w, http.StatusOK, toFileMetadata(obj))
}

// handleContent streams the payload bytes. The stored MIME type wins over
// whatever the file extension would suggest.
func (s *Server) handleContent(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if id == "" {
		validationError(w, "Missing media id", nil)
		return
	}

	obj, err := s.media.FindByID(id)
	if err != nil {
		notFoundError(w, "Media not found")
		return
	}

	w.Header().Set("Content-Type", obj.Mime)
	w.Header().Set("Content-Disposition", "inline")
	http.ServeFile(w, r, obj.Path)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	page := queryInt(q.Get("page"), 1)
	if page < 1 {
		page = 1
	}
	perPage := queryInt(q.Get("per_page"), 20)
	if perPage < 1 {
		perPage = 1
	}
	if perPage > 100 {
		perPage = 100
	}

	typeFilter := q.Get("type")
	if typeFilter != "" && !media.ValidType(typeFilter) {
		validationError(w, "Invalid type parameter. Must be one of: image, video, document, other", nil)
		return
	}

	result, err := s.media.ListPaginated(page, perPage, typeFilter)
	if err != nil {
		serverError(w, "Could not list media")
		return
	}

	items := make([]fileMetadata, 0, len(result.Items))
	for _, obj := range result.Items {
		items = append(items, toFileMetadata(obj))
	}

	totalPages := (result.Total + perPage - 1) / perPage

	writeJSON(w, http.StatusOK, map[string]any{
		"data": items,
		"meta": map[string]any{
			"page":     result.Page,
			"per_page": result.PerPage,
			"total":    result.Total,
		},
		"links": buildLinks(page, perPage, typeFilter, totalPages),
	})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if id == "" {
		validationError(w, "Missing media id", nil)
		return
	}

	if _, err := s.media.FindByID(id); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			notFoundError(w, "File not found")
			return
		}
		serverError(w, "Could not resolve file")
		return
	}

	if !s.media.DeleteByID(id) {
		serverError(w, "Failed to delete file")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	writeData(w, http.StatusOK, "Welcome to Open File Sharing API")
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, map[string]any{
		"error": "Not Found",
		"code":  404,
	})
}

func queryInt(raw string, def int) int {
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

// buildLinks reproduces the pagination links the SPA expects: sticky
// per_page (when not the default) and type parameters, page appended last.
func buildLinks(page, perPage int, typeFilter string, totalPages int) map[string]any {
	qs := ""
	if perPage != 20 {
		qs = "per_page=" + strconv.Itoa(perPage)
	}
	if typeFilter != "" {
		if qs != "" {
			qs += "&"
		}
		qs += "type=" + typeFilter
	}

	link := func(p int) string {
		if qs != "" {
			return fmt.Sprintf("/api/media?%s&page=%d", qs, p)
		}
		return fmt.Sprintf("/api/media?page=%d", p)
	}

	links := map[string]any{
		"first": link(1),
		"last":  link(totalPages),
		"prev":  nil,
		"next":  nil,
	}
	if page > 1 {
		links["prev"] = link(page - 1)
	}
	if page < totalPages {
		links["next"] = link(page + 1)
	}
	return links
}
