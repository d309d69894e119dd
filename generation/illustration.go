package generation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/coreybb/rhymera/models"
	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

// IllustrationGenerator turns an illustration prompt into a single image.
type IllustrationGenerator struct {
	streamer     ContentStreamer
	model        string
	defaultStyle string
	limiter      *rate.Limiter
}

// NewIllustrationGenerator creates an IllustrationGenerator. perMinute > 0 spaces calls out to at
// most that many per minute; 0 leaves them unpaced.
func NewIllustrationGenerator(streamer ContentStreamer, model, defaultStyle string, perMinute int) *IllustrationGenerator {
	if model == "" {
		model = DefaultImageModel
	}
	if defaultStyle == "" {
		defaultStyle = DefaultPageStyle
	}
	g := &IllustrationGenerator{streamer: streamer, model: model, defaultStyle: defaultStyle}
	if perMinute > 0 {
		g.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1)
	}
	return g
}

// Generate never fails: every problem is reported as an ImageResult without data and with a reason.
// An empty style uses the generator's default style.
func (g *IllustrationGenerator) Generate(ctx context.Context, prompt, style string) models.ImageResult {
	if strings.TrimSpace(prompt) == "" {
		return models.ImageResult{Reason: "empty illustration prompt"}
	}
	if style == "" {
		style = g.defaultStyle
	}

	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return g.absent(ctx, fmt.Sprintf("waiting for image quota: %v", err))
		}
	}

	contents := []*genai.Content{
		genai.NewContentFromText(imageGuidelines, genai.RoleUser),
		genai.NewContentFromText(imagePrompt(prompt, style), genai.RoleUser),
	}
	config := &genai.GenerateContentConfig{
		ResponseModalities: []string{"IMAGE", "TEXT"},
	}

	var finishReason genai.FinishReason
	for resp, err := range g.streamer.GenerateContentStream(ctx, g.model, contents, config) {
		if err != nil {
			return g.absent(ctx, fmt.Sprintf("image generation failed: %v", err))
		}
		candidate := firstCandidate(resp)
		if candidate == nil {
			continue
		}
		if candidate.FinishReason != "" {
			finishReason = candidate.FinishReason
		}
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part != nil && part.InlineData != nil && len(part.InlineData.Data) > 0 {
				// Only the first image is used; the rest of the stream is abandoned.
				return models.ImageResult{Data: part.InlineData.Data, MIMEType: part.InlineData.MIMEType}
			}
		}
	}

	if finishReason != "" && finishReason != genai.FinishReasonStop && finishReason != genai.FinishReasonUnspecified {
		return g.absent(ctx, fmt.Sprintf("model stopped without an image (finish reason: %s)", finishReason))
	}
	return g.absent(ctx, "model returned no image")
}

func (g *IllustrationGenerator) absent(ctx context.Context, reason string) models.ImageResult {
	slog.WarnContext(ctx, "Illustration not generated", "component", "illustration_generator", "model", g.model, "reason", reason)
	return models.ImageResult{Reason: reason}
}
