package docservice

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/starford/labdesk/internal/grading"
	"github.com/starford/labdesk/internal/index"
	"github.com/starford/labdesk/internal/sse"
)

// SubmissionItem is one locally logged grading attempt.
type SubmissionItem struct {
	ID           string          `json:"id"`
	LabID        string          `json:"lab_id"`
	Path         string          `json:"path"`
	FileName     string          `json:"file_name"`
	OverallScore float64         `json:"overall_score"`
	Success      bool            `json:"success"`
	Feedback     string          `json:"feedback"`
	Result       json.RawMessage `json:"result"`
	CreatedAt    time.Time       `json:"created_at"`
}

// Grade sends a stored document to the grading backend. A backend failure
// is not returned as an error: the result is then the fallback grade, and
// the attempt is still logged. Errors are only returned when the document
// cannot be read or parsed.
func (s *Service) Grade(ctx context.Context, p, labID string, info grading.LabInfo) (*grading.GradeResult, error) {
	d, err := s.Get(ctx, p)
	if err != nil {
		return nil, err
	}
	req := grading.NewGradeRequest(labID, info, d.Document, s.limit)

	result, err := s.grader.Grade(ctx, req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		s.logger.Warn("grading failed",
			slog.String("path", p),
			slog.String("lab_id", labID),
			slog.String("error", err.Error()))
		result = grading.FallbackGrade(err)
	}

	s.logSubmission(p, labID, d.Document.FileName, result)
	if s.notifier != nil {
		s.notifier.Publish(sse.Event{Type: sse.EventSubmissionGraded, Data: map[string]any{
			"path":          p,
			"lab_id":        labID,
			"success":       result.Success,
			"overall_score": result.OverallScore,
		}})
	}
	return result, nil
}

func (s *Service) logSubmission(p, labID, fileName string, result *grading.GradeResult) {
	raw, err := json.Marshal(result)
	if err != nil {
		raw = []byte("{}")
	}
	row := index.SubmissionRow{
		ID:           uuid.NewString(),
		LabID:        labID,
		Path:         p,
		FileName:     fileName,
		OverallScore: result.OverallScore,
		Success:      result.Success,
		Feedback:     result.DetailedFeedback,
		Result:       string(raw),
	}
	if err := s.db.InsertSubmission(row); err != nil {
		s.logger.Error("log submission",
			slog.String("path", p),
			slog.String("error", err.Error()))
	}
}

// EvaluateProject sends several stored documents as one project. Like
// Grade, a backend failure yields the fallback result.
func (s *Service) EvaluateProject(ctx context.Context, info grading.ProjectInfo, paths []string) (*grading.ProjectResult, error) {
	if info.TechStack == nil {
		info.TechStack = []string{}
	}
	if info.Steps == nil {
		info.Steps = []string{}
	}
	req := grading.ProjectRequest{
		ProjectInfo:  info,
		FilesContent: make([]grading.ProjectFile, 0, len(paths)),
	}
	for _, p := range paths {
		d, err := s.Get(ctx, p)
		if err != nil {
			return nil, err
		}
		req.FilesContent = append(req.FilesContent, grading.NewProjectFile(d.Document, s.limit))
	}

	result, err := s.grader.EvaluateProject(ctx, req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		s.logger.Warn("project evaluation failed",
			slog.String("title", info.Title),
			slog.String("error", err.Error()))
		return grading.FallbackProject(err), nil
	}
	return result, nil
}

// Submissions lists locally logged grading attempts, newest first.
func (s *Service) Submissions(_ context.Context, labID string, limit, offset int) ([]SubmissionItem, int, error) {
	rows, total, err := s.db.ListSubmissions(labID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	items := make([]SubmissionItem, len(rows))
	for i, r := range rows {
		items[i] = SubmissionItem{
			ID:           r.ID,
			LabID:        r.LabID,
			Path:         r.Path,
			FileName:     r.FileName,
			OverallScore: r.OverallScore,
			Success:      r.Success,
			Feedback:     r.Feedback,
			Result:       json.RawMessage(r.Result),
			CreatedAt:    r.CreatedAt,
		}
	}
	return items, total, nil
}

// RemoteSubmissions lists the submissions the backend keeps for the
// configured user. An empty labID lists all of them.
func (s *Service) RemoteSubmissions(ctx context.Context, labID string) ([]grading.Submission, error) {
	if labID == "" {
		return s.grader.Submissions(ctx)
	}
	sub, err := s.grader.Submission(ctx, labID)
	if err != nil {
		return nil, err
	}
	return []grading.Submission{*sub}, nil
}
