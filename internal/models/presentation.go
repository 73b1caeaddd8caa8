package models

import "fmt"

// Theme is the visual theme a slide is rendered with
type Theme string

const (
	ThemeDark   Theme = "dark"
	ThemeLight  Theme = "light"
	ThemeAccent Theme = "accent"
)

// Valid reports whether the theme is one of the known values
func (t Theme) Valid() bool {
	switch t {
	case ThemeDark, ThemeLight, ThemeAccent:
		return true
	}
	return false
}

// Slide represents one presentable unit of the deck.
// Content is passed through to the renderer as-is.
type Slide struct {
	ID              string `json:"id" yaml:"id"`
	Title           string `json:"title" yaml:"title"`
	Subtitle        string `json:"subtitle,omitempty" yaml:"subtitle,omitempty"`
	Content         any    `json:"content,omitempty" yaml:"content,omitempty"`
	BackgroundImage string `json:"backgroundImage,omitempty" yaml:"backgroundImage,omitempty"`
	Theme           Theme  `json:"theme" yaml:"theme"`
}

// CatalogFile represents the root structure of a slide catalog file
type CatalogFile struct {
	PitchTags []string `yaml:"pitchTags"`
	Slides    []Slide  `yaml:"slides"`
}

// Validate checks the catalog for the invariants the session relies on
// and fills in the default theme.
func (f *CatalogFile) Validate() error {
	if len(f.Slides) == 0 {
		return fmt.Errorf("catalog has no slides")
	}

	seen := make(map[string]int, len(f.Slides))
	for i := range f.Slides {
		slide := &f.Slides[i]
		if slide.ID == "" {
			return fmt.Errorf("slide %d: id is required", i)
		}
		if prev, dup := seen[slide.ID]; dup {
			return fmt.Errorf("slide %d: id %q already used by slide %d", i, slide.ID, prev)
		}
		seen[slide.ID] = i

		if slide.Title == "" {
			return fmt.Errorf("slide %q: title is required", slide.ID)
		}
		if slide.Theme == "" {
			slide.Theme = ThemeDark
		}
		if !slide.Theme.Valid() {
			return fmt.Errorf("slide %q: unknown theme %q", slide.ID, slide.Theme)
		}
	}
	return nil
}
