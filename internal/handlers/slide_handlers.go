package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"pitch-deck/internal/models"
)

// SlideSource is the read-only slide catalog
type SlideSource interface {
	All() []models.Slide
	ByID(id string) (models.Slide, int, bool)
	PitchTags() []string
}

// SlideHandler serves the slide catalog to renderers
type SlideHandler struct {
	slides SlideSource
	logger *zap.Logger
}

// NewSlideHandler creates a new slide handler
func NewSlideHandler(slides SlideSource, logger *zap.Logger) *SlideHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SlideHandler{slides: slides, logger: logger}
}

// SlidesResponse represents the full catalog
type SlidesResponse struct {
	Count     int            `json:"count"`
	Slides    []models.Slide `json:"slides"`
	PitchTags []string       `json:"pitchTags"`
}

// SlideResponse represents one slide and its position
type SlideResponse struct {
	Index int          `json:"index"`
	Slide models.Slide `json:"slide"`
}

// ListSlides returns the whole deck in order
// GET /api/slides
func (h *SlideHandler) ListSlides(w http.ResponseWriter, r *http.Request) {
	slides := h.slides.All()
	writeJSON(w, h.logger, http.StatusOK, SlidesResponse{
		Count:     len(slides),
		Slides:    slides,
		PitchTags: h.slides.PitchTags(),
	})
}

// GetSlide returns a specific slide by id
// GET /api/slides/{id}
func (h *SlideHandler) GetSlide(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if id == "" {
		http.Error(w, "Slide id is required", http.StatusBadRequest)
		return
	}

	slide, index, ok := h.slides.ByID(id)
	if !ok {
		http.Error(w, "Slide not found", http.StatusNotFound)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, SlideResponse{Index: index, Slide: slide})
}
