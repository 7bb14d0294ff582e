package api

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/starford/labdesk/internal/checksum"
)

// maxUploadBytes bounds a single submitted file.
const maxUploadBytes = 50 << 20 // 50 MB

var errMissingFile = errors.New("missing 'file' field in multipart form")

// readUpload reads the "file" field of a multipart form.
func readUpload(w http.ResponseWriter, r *http.Request) (string, []byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return "", nil, errors.New("file too large or invalid multipart")
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		return "", nil, errMissingFile
	}
	defer file.Close()

	name := strings.TrimSpace(header.Filename)
	if name == "" {
		return "", nil, errors.New("filename is required")
	}
	data, err := io.ReadAll(file)
	if err != nil {
		return "", nil, errors.New("failed to read file")
	}
	return name, data, nil
}

// Extract handles POST /api/extract (multipart/form-data, field "file").
//
//	@Summary		Parse a script or notebook without storing it
//	@Tags			documents
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			file	formData	file	true	"A .py or .ipynb file"
//	@Success		200		{object}	Document
//	@Failure		400		{object}	errResponse
//	@Failure		415		{object}	errResponse
//	@Failure		422		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/extract [post]
func (h *Handler) Extract(w http.ResponseWriter, r *http.Request) {
	name, data, err := readUpload(w, r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	doc, err := h.svc.Extract(r.Context(), name, data)
	if err != nil {
		writeError(w, "extract", name, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// Upload handles POST /api/documents (multipart/form-data, fields "file" and optional "slot").
//
//	@Summary		Store and index a submission
//	@Tags			documents
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			file	formData	file	true	"A .py or .ipynb file"
//	@Param			slot	formData	string	false	"Upload slot, e.g. a lab id; random when empty"
//	@Success		201		{object}	DocumentDetail
//	@Failure		400		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Failure		415		{object}	errResponse
//	@Failure		422		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/documents [post]
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	name, data, err := readUpload(w, r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	d, err := h.svc.Upload(r.Context(), r.FormValue("slot"), name, data)
	if err != nil {
		writeError(w, "upload document", name, err)
		return
	}
	writeJSON(w, http.StatusCreated, d)
}

// Replace handles PUT /api/documents/* (multipart/form-data, field "file").
//
//	@Summary		Replace a stored submission with optimistic concurrency
//	@Tags			documents
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			path		path		string	true	"Document path"
//	@Param			If-Match	header		string	false	"SHA-256 checksum of the stored file"
//	@Param			file		formData	file	true	"Replacement content"
//	@Success		200			{object}	DocumentDetail
//	@Failure		404			{object}	errResponse
//	@Failure		409			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/documents/{path} [put]
func (h *Handler) Replace(w http.ResponseWriter, r *http.Request) {
	path := docPath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	_, data, err := readUpload(w, r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	ifMatch := checksum.FromETag(r.Header.Get("If-Match"))

	d, err := h.svc.Replace(r.Context(), path, data, ifMatch)
	if err != nil {
		writeError(w, "replace document", path, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}
