package grading

import "github.com/starford/labdesk/internal/models"

// LabInfo describes the assignment a submission is graded against.
type LabInfo struct {
	Title        string   `json:"title"`
	Category     string   `json:"category"`
	Description  string   `json:"description"`
	Requirements []string `json:"requirements"`
}

// GradeRequest is the body of POST /ai/grade/.
type GradeRequest struct {
	LabID       string     `json:"lab_id"`
	LabInfo     LabInfo    `json:"lab_info"`
	CodeContent string     `json:"code_content"`
	FileName    string     `json:"file_name"`
	CellsInfo   []CellInfo `json:"cells_info"`
}

// CellInfo is the backend's view of one notebook cell.
type CellInfo struct {
	Index          int          `json:"index"`
	Type           string       `json:"type"`
	Source         string       `json:"source"`
	ExecutionCount *int         `json:"executionCount"`
	Outputs        []OutputInfo `json:"outputs"`
}

// OutputInfo is the backend's view of one cell output.
type OutputInfo struct {
	OutputType string        `json:"outputType"`
	Content    []ContentInfo `json:"content"`
}

// ContentInfo is one rendered output payload.
type ContentInfo struct {
	Type      string   `json:"type"`
	Text      string   `json:"text,omitempty"`
	HTML      string   `json:"html,omitempty"`
	Data      string   `json:"data,omitempty"`
	MimeType  string   `json:"mimeType,omitempty"`
	Ename     string   `json:"ename,omitempty"`
	Evalue    string   `json:"evalue,omitempty"`
	Traceback []string `json:"traceback,omitempty"`
}

// RequirementAnalysis is the verdict for one lab requirement.
// Status is "met", "partial" or "not_met".
type RequirementAnalysis struct {
	Requirement string `json:"requirement"`
	Status      string `json:"status"`
	Explanation string `json:"explanation"`
}

// GradeResult is the scored result returned by the backend.
type GradeResult struct {
	Success              bool                  `json:"success"`
	OverallScore         float64               `json:"overall_score"`
	CodeQuality          float64               `json:"code_quality"`
	Accuracy             float64               `json:"accuracy"`
	Efficiency           float64               `json:"efficiency"`
	RequirementsAnalysis []RequirementAnalysis `json:"requirements_analysis"`
	Strengths            []string              `json:"strengths"`
	AreasForImprovement  []string              `json:"areas_for_improvement"`
	DetailedFeedback     string                `json:"detailed_feedback"`
	CodeSuggestions      []string              `json:"code_suggestions"`
	LearningResources    []string              `json:"learning_resources"`
	Error                string                `json:"error,omitempty"`
}

// ProjectInfo describes a multi-file project.
type ProjectInfo struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	TechStack   []string `json:"tech_stack"`
	Steps       []string `json:"steps"`
}

// ProjectFile is one file of a project evaluation request.
type ProjectFile struct {
	FileName string `json:"file_name"`
	Content  string `json:"content"`
}

// ProjectRequest is the body of POST /ai/project/evaluate/.
type ProjectRequest struct {
	ProjectInfo  ProjectInfo   `json:"project_info"`
	FilesContent []ProjectFile `json:"files_content"`
}

// FileReview is the backend's per-file verdict in a project evaluation.
type FileReview struct {
	FileName string  `json:"file_name"`
	Score    float64 `json:"score"`
	Feedback string  `json:"feedback"`
}

// ProjectResult is the scored result of a project evaluation.
type ProjectResult struct {
	Success                 bool         `json:"success"`
	OverallScore            float64      `json:"overall_score"`
	CodeQuality             float64      `json:"code_quality"`
	Completeness            float64      `json:"completeness"`
	TechnicalImplementation float64      `json:"technical_implementation"`
	Strengths               []string     `json:"strengths"`
	AreasForImprovement     []string     `json:"areas_for_improvement"`
	DetailedFeedback        string       `json:"detailed_feedback"`
	FileReviews             []FileReview `json:"file_reviews"`
	Error                   string       `json:"error,omitempty"`
}

// Submission is a grading record kept by the backend for the current user.
type Submission struct {
	LabID         string      `json:"lab_id"`
	LabTitle      string      `json:"lab_title"`
	LabCategory   string      `json:"lab_category"`
	OverallScore  float64     `json:"overall_score"`
	CodeQuality   float64     `json:"code_quality"`
	Accuracy      float64     `json:"accuracy"`
	Efficiency    float64     `json:"efficiency"`
	FileName      string      `json:"file_name"`
	CodeContent   string      `json:"code_content"`
	SubmittedAt   string      `json:"submitted_at"`
	GradingResult GradeResult `json:"grading_result"`
}

// CellsInfo converts a notebook document to the backend's cells_info shape.
// It returns nil for scripts, which is sent as null.
func CellsInfo(doc *models.Document) []CellInfo {
	if doc.FileKind != models.FileKindNotebook {
		return nil
	}
	out := make([]CellInfo, 0, len(doc.Cells))
	for _, c := range doc.Cells {
		ci := CellInfo{
			Index:          c.Index,
			Type:           string(c.Kind),
			Source:         c.Source,
			ExecutionCount: c.ExecutionCount,
			Outputs:        make([]OutputInfo, 0, len(c.Outputs)),
		}
		for _, o := range c.Outputs {
			oi := OutputInfo{OutputType: string(o.OutputKind), Content: make([]ContentInfo, 0, len(o.Items))}
			for _, it := range o.Items {
				oi.Content = append(oi.Content, ContentInfo{
					Type:      string(it.Kind),
					Text:      it.Text,
					HTML:      it.HTML,
					Data:      it.ImageData,
					MimeType:  it.ImageMIME,
					Ename:     it.ErrorName,
					Evalue:    it.ErrorValue,
					Traceback: it.ErrorTraceback,
				})
			}
			ci.Outputs = append(ci.Outputs, oi)
		}
		out = append(out, ci)
	}
	return out
}
