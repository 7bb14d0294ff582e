package grading

import (
	"github.com/starford/labdesk/internal/models"
	"github.com/starford/labdesk/internal/projector"
)

// NewGradeRequest builds the grading body for doc. code_content is the
// evaluation text cut to limit characters; cells_info carries the full
// notebook structure.
func NewGradeRequest(labID string, info LabInfo, doc *models.Document, limit int) GradeRequest {
	if info.Requirements == nil {
		info.Requirements = []string{}
	}
	return GradeRequest{
		LabID:       labID,
		LabInfo:     info,
		CodeContent: projector.Truncate(projector.EvaluationText(doc), limit),
		FileName:    doc.FileName,
		CellsInfo:   CellsInfo(doc),
	}
}

// NewProjectFile projects doc for a project evaluation request.
func NewProjectFile(doc *models.Document, limit int) ProjectFile {
	return ProjectFile{
		FileName: doc.FileName,
		Content:  projector.Truncate(projector.EvaluationText(doc), limit),
	}
}
