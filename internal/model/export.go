package model

import "time"

// ResultExport is the top-level JSON structure for result export.
type ResultExport struct {
	Kind       Kind             `json:"kind"`
	ExportedAt time.Time        `json:"exportedAt"`
	NumResults int              `json:"numResults"`
	Results    []ExportedResult `json:"results"`
}

// ExportedResult is one enriched result with the names a certificate or report needs.
type ExportedResult struct {
	ResultRecord
	StudentName string `json:"studentName"`
	TestTitle   string `json:"testTitle"`
}

// TestImport is the on-disk shape of a test definition file entry.
type TestImport struct {
	Kind               Kind       `json:"kind" validate:"required,oneof=placement proficiency"`
	Slug               string     `json:"slug" validate:"required,max=120"`
	Title              string     `json:"title" validate:"required"`
	DurationMinutes    int        `json:"durationMinutes" validate:"gte=0"`
	Status             TestStatus `json:"status" validate:"omitempty,oneof=draft published archived"`
	RequiresOralReview bool       `json:"requiresOralReview"`
	OralReviewPoints   float64    `json:"oralReviewPoints" validate:"gte=0"`
	Questions          Questions  `json:"questions"`
}

// Definition converts an import entry into a TestDefinition. Status defaults to draft.
func (ti TestImport) Definition() TestDefinition {
	status := ti.Status
	if status == "" {
		status = TestDraft
	}
	return TestDefinition{
		Kind:               ti.Kind,
		Slug:               ti.Slug,
		Title:              ti.Title,
		DurationMinutes:    ti.DurationMinutes,
		Status:             status,
		RequiresOralReview: ti.RequiresOralReview,
		OralReviewPoints:   ti.OralReviewPoints,
		Questions:          ti.Questions,
	}
}
