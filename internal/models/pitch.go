package models

// PitchContext is the descriptive input for a pitch summary
type PitchContext struct {
	SlideTitle    string   `json:"slideTitle"`
	SlideSubtitle string   `json:"slideSubtitle,omitempty"`
	KeyPoints     []string `json:"keyPoints"`
}
