package api

import (
	"github.com/starford/labdesk/internal/docservice"
	"github.com/starford/labdesk/internal/grading"
	"github.com/starford/labdesk/internal/index"
	"github.com/starford/labdesk/internal/models"
)

// Document is the parsed document (aliased from the domain layer).
type Document = models.Document

// DocumentDetail is the full document response type (aliased from the domain layer).
type DocumentDetail = docservice.DocumentDetail

// DocumentListItem is a lightweight item in a list response (aliased from the domain layer).
type DocumentListItem = docservice.DocumentListItem

// DocumentListResponse wraps paginated document listings.
type DocumentListResponse struct {
	Documents []DocumentListItem `json:"documents" validate:"required"`
	Total     int                `json:"total" example:"42" validate:"required"`
}

// SearchResult is a single search hit in the API response.
type SearchResult = index.SearchResult

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []SearchResult `json:"results" validate:"required"`
}

// GradeRequest is the request body for grading a stored document.
type GradeRequest struct {
	Path    string          `json:"path" example:"lab_1/hw.ipynb" validate:"required"`
	LabID   string          `json:"lab_id" example:"lab_1" validate:"required"`
	LabInfo grading.LabInfo `json:"lab_info"`
}

// GradeResult is the grading verdict (aliased from the grading client).
type GradeResult = grading.GradeResult

// ProjectEvaluateRequest is the request body for a project evaluation.
type ProjectEvaluateRequest struct {
	ProjectInfo grading.ProjectInfo `json:"project_info"`
	Paths       []string            `json:"paths" example:"proj/main.py,proj/eda.ipynb" validate:"required"`
}

// ProjectResult is the project verdict (aliased from the grading client).
type ProjectResult = grading.ProjectResult

// SubmissionListResponse wraps the local submission log.
type SubmissionListResponse struct {
	Submissions []docservice.SubmissionItem `json:"submissions" validate:"required"`
	Total       int                         `json:"total" example:"3" validate:"required"`
}

// RemoteSubmissionsResponse wraps submissions reported by the backend.
type RemoteSubmissionsResponse struct {
	Submissions []grading.Submission `json:"submissions" validate:"required"`
}
