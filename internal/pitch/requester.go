// Package pitch asks a text-generation service for a short spoken pitch for
// the slide on screen. Failures never reach the caller; they are replaced by
// fixed messages so the presentation keeps running.
package pitch

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"pitch-deck/internal/llm"
	"pitch-deck/internal/models"
)

const (
	// FallbackEmpty is shown when the service answers without text.
	FallbackEmpty = "Could not generate pitch script at this moment."
	// FallbackError is shown when the service call fails.
	FallbackError = "Error connecting to the AI pitch assistant."

	subtitlePlaceholder = "N/A"
)

// Requester builds pitch prompts and calls the generator
type Requester struct {
	generator llm.Generator
	tags      []string
	timeout   time.Duration
	logger    *zap.Logger
}

// NewRequester creates a requester. tags are sent as given after the subtitle;
// timeout <= 0 means no per-request deadline.
func NewRequester(generator llm.Generator, tags []string, timeout time.Duration, logger *zap.Logger) *Requester {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Requester{
		generator: generator,
		tags:      append([]string(nil), tags...),
		timeout:   timeout,
		logger:    logger,
	}
}

// Context returns the descriptive input sent for slide
func (r *Requester) Context(slide models.Slide) models.PitchContext {
	points := make([]string, 0, len(r.tags)+1)
	points = append(points, slide.Subtitle)
	points = append(points, r.tags...)
	return models.PitchContext{
		SlideTitle:    slide.Title,
		SlideSubtitle: slide.Subtitle,
		KeyPoints:     points,
	}
}

// Request returns generated pitch text for slide, or one of the fallback messages.
func (r *Requester) Request(ctx context.Context, slide models.Slide) string {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	prompt := BuildPrompt(r.Context(slide))
	start := time.Now()
	text, err := r.generator.GenerateText(ctx, prompt)
	if err != nil {
		r.logger.Error("Pitch generation failed",
			zap.String("slide", slide.ID),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return FallbackError
	}

	text = strings.TrimSpace(text)
	if text == "" {
		r.logger.Warn("Pitch generation returned no text", zap.String("slide", slide.ID))
		return FallbackEmpty
	}

	r.logger.Info("Pitch generated",
		zap.String("slide", slide.ID),
		zap.Int("chars", len(text)),
		zap.Duration("elapsed", time.Since(start)))
	return text
}

// BuildPrompt renders the coaching prompt for a pitch context
func BuildPrompt(pc models.PitchContext) string {
	subtitle := pc.SlideSubtitle
	if subtitle == "" {
		subtitle = subtitlePlaceholder
	}

	return fmt.Sprintf(`You are an expert Silicon Valley venture capital pitch coach.
Generate a compelling, concise 30-second spoken pitch for the following slide in a game development presentation:

Slide Title: %s
Subtitle: %s
Key Points: %s

The tone should be professional, exciting, and visionary.
Focus on the "why" and the "value proposition".
Keep it under 100 words.
`, pc.SlideTitle, subtitle, strings.Join(pc.KeyPoints, ", "))
}
