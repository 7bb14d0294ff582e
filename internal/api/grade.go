package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Validate validates the grade request.
func (r *GradeRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Path, validation.Required),
		validation.Field(&r.LabID, validation.Required),
	)
}

// Validate validates the project evaluation request.
func (r *ProjectEvaluateRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Paths, validation.Required, validation.Each(validation.Required)),
	)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v validation.Validatable) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return false
	}
	if err := v.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return false
	}
	return true
}

// Grade handles POST /api/grade.
//
// A backend failure still answers 200 with success=false and the fallback
// feedback, so clients always have a result to display.
//
//	@Summary		Grade a stored submission against a lab
//	@Tags			grading
//	@Accept			json
//	@Produce		json
//	@Param			body	body		GradeRequest	true	"Submission to grade"
//	@Success		200		{object}	GradeResult
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/grade [post]
func (h *Handler) Grade(w http.ResponseWriter, r *http.Request) {
	var req GradeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	res, err := h.svc.Grade(r.Context(), req.Path, req.LabID, req.LabInfo)
	if err != nil {
		writeError(w, "grade", req.Path, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// EvaluateProject handles POST /api/projects/evaluate.
//
//	@Summary		Evaluate several stored files as one project
//	@Tags			grading
//	@Accept			json
//	@Produce		json
//	@Param			body	body		ProjectEvaluateRequest	true	"Project and file paths"
//	@Success		200		{object}	ProjectResult
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/projects/evaluate [post]
func (h *Handler) EvaluateProject(w http.ResponseWriter, r *http.Request) {
	var req ProjectEvaluateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	res, err := h.svc.EvaluateProject(r.Context(), req.ProjectInfo, req.Paths)
	if err != nil {
		writeError(w, "evaluate project", req.ProjectInfo.Title, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// ListSubmissions handles GET /api/submissions.
//
//	@Summary		List locally logged grading attempts
//	@Tags			grading
//	@Produce		json
//	@Param			lab_id	query		string	false	"Filter by lab"
//	@Param			limit	query		int		false	"Page size"
//	@Param			offset	query		int		false	"Page offset"
//	@Success		200		{object}	SubmissionListResponse
//	@Security		BearerAuth
//	@Router			/submissions [get]
func (h *Handler) ListSubmissions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	items, total, err := h.svc.Submissions(r.Context(), q.Get("lab_id"), limit, offset)
	if err != nil {
		writeError(w, "list submissions", "", err)
		return
	}
	writeJSON(w, http.StatusOK, SubmissionListResponse{
		Submissions: nonNilSlice(items),
		Total:       total,
	})
}

// RemoteSubmissions handles GET /api/submissions/remote.
//
//	@Summary		List the submissions kept by the grading backend
//	@Tags			grading
//	@Produce		json
//	@Param			lab_id	query		string	false	"Single lab"
//	@Success		200		{object}	RemoteSubmissionsResponse
//	@Failure		404		{object}	errResponse
//	@Failure		502		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/submissions/remote [get]
func (h *Handler) RemoteSubmissions(w http.ResponseWriter, r *http.Request) {
	labID := r.URL.Query().Get("lab_id")
	subs, err := h.svc.RemoteSubmissions(r.Context(), labID)
	if err != nil {
		writeError(w, "remote submissions", labID, err)
		return
	}
	writeJSON(w, http.StatusOK, RemoteSubmissionsResponse{Submissions: nonNilSlice(subs)})
}

func nonNilSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
