package services

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"pitch-deck/internal/models"
)

//go:embed slides/default.yaml
var defaultCatalog []byte

// DefaultPitchTags are sent with every pitch request when a catalog lists none.
var DefaultPitchTags = []string{"Sales Mastery", "Gaming Vibe"}

// SlideCatalog is the fixed, ordered slide sequence. It is never mutated after load.
type SlideCatalog struct {
	slides    []models.Slide
	index     map[string]int
	pitchTags []string
}

// LoadSlideCatalog reads the catalog at path, or the embedded deck when path is empty
func LoadSlideCatalog(path string, logger *zap.Logger) (*SlideCatalog, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	data := defaultCatalog
	source := "embedded"
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read slide catalog: %w", err)
		}
		source = path
	}

	catalog, err := ParseSlideCatalog(data)
	if err != nil {
		return nil, fmt.Errorf("slide catalog %s: %w", source, err)
	}

	logger.Info("Slide catalog loaded", zap.String("source", source), zap.Int("slides", catalog.Len()))
	return catalog, nil
}

// ParseSlideCatalog decodes and validates a YAML catalog. Slide content must
// be encodable as JSON since renderers receive it that way.
func ParseSlideCatalog(data []byte) (*SlideCatalog, error) {
	var file models.CatalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	if err := file.Validate(); err != nil {
		return nil, err
	}
	for _, slide := range file.Slides {
		if _, err := json.Marshal(slide.Content); err != nil {
			return nil, fmt.Errorf("slide %s: content cannot be sent to renderers: %w", slide.ID, err)
		}
	}
	if len(file.PitchTags) == 0 {
		file.PitchTags = DefaultPitchTags
	}

	catalog := &SlideCatalog{
		slides:    file.Slides,
		index:     make(map[string]int, len(file.Slides)),
		pitchTags: file.PitchTags,
	}
	for i, slide := range file.Slides {
		catalog.index[slide.ID] = i
	}
	return catalog, nil
}

// Len returns the number of slides
func (c *SlideCatalog) Len() int {
	return len(c.slides)
}

// At returns the slide at position i
func (c *SlideCatalog) At(i int) (models.Slide, bool) {
	if i < 0 || i >= len(c.slides) {
		return models.Slide{}, false
	}
	return c.slides[i], true
}

// ByID finds a slide and its position by id
func (c *SlideCatalog) ByID(id string) (models.Slide, int, bool) {
	i, ok := c.index[id]
	if !ok {
		return models.Slide{}, -1, false
	}
	return c.slides[i], i, true
}

// All returns a copy of the slide list
func (c *SlideCatalog) All() []models.Slide {
	out := make([]models.Slide, len(c.slides))
	copy(out, c.slides)
	return out
}

// PitchTags returns the descriptive tags sent with every pitch request.
// It is never empty.
func (c *SlideCatalog) PitchTags() []string {
	return append([]string(nil), c.pitchTags...)
}
