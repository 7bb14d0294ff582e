package grading

import "errors"

const defaultFailureMessage = "An error occurred during grading. Please try again."

// FailureMessage extracts the user-facing text from a grading error.
func FailureMessage(err error) string {
	var be *BackendError
	if errors.As(err, &be) && be.Message != "" {
		return be.Message
	}
	if err != nil {
		return err.Error()
	}
	return defaultFailureMessage
}

// FallbackGrade is the zero-score result shown when grading fails, so the
// caller always has a result to display.
func FallbackGrade(err error) *GradeResult {
	msg := FailureMessage(err)
	return &GradeResult{
		Success:              false,
		RequirementsAnalysis: []RequirementAnalysis{},
		Strengths:            []string{},
		AreasForImprovement:  []string{"Unable to complete AI analysis"},
		DetailedFeedback:     msg,
		CodeSuggestions:      []string{},
		LearningResources:    []string{},
		Error:                msg,
	}
}

// FallbackProject is the zero-score project result used when evaluation fails.
func FallbackProject(err error) *ProjectResult {
	msg := FailureMessage(err)
	return &ProjectResult{
		Success:             false,
		Strengths:           []string{},
		AreasForImprovement: []string{"Unable to complete AI analysis"},
		DetailedFeedback:    msg,
		FileReviews:         []FileReview{},
		Error:               msg,
	}
}
