package generation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/coreybb/rhymera/models"
	"google.golang.org/genai"
)

// ErrMalformedBook means the text model answered, but not with a usable book.
var ErrMalformedBook = errors.New("malformed book content")

type TextGenerator struct {
	streamer ContentStreamer
	model    string
}

func NewTextGenerator(streamer ContentStreamer, model string) *TextGenerator {
	if model == "" {
		model = DefaultTextModel
	}
	return &TextGenerator{streamer: streamer, model: model}
}

// Generate asks the text model for a book and parses the streamed JSON. There is no retry and no
// repair of malformed output. The returned book_type is passed through unchecked.
func (g *TextGenerator) Generate(ctx context.Context, req models.BookRequest) (*models.BookText, error) {
	contents := []*genai.Content{genai.NewContentFromText(bookPrompt(req), genai.RoleUser)}
	for _, turn := range req.History {
		if strings.TrimSpace(turn.Text) == "" {
			continue
		}
		role := genai.RoleUser
		if turn.Role == string(genai.RoleModel) {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(turn.Text, role))
	}

	config := &genai.GenerateContentConfig{
		ResponseMIMEType:  "application/json",
		ResponseSchema:    bookSchema(),
		SystemInstruction: genai.NewContentFromText(textSystemInstruction, genai.RoleUser),
	}

	var raw strings.Builder
	for resp, err := range g.streamer.GenerateContentStream(ctx, g.model, contents, config) {
		if err != nil {
			return nil, fmt.Errorf("text generation failed: %w", err)
		}
		appendText(&raw, resp)
	}

	book, err := parseBookText(raw.String())
	if err != nil {
		slog.WarnContext(ctx, "Text model returned unusable content",
			"component", "text_generator", "model", g.model, "bytes", raw.Len(), "error", err)
		return nil, err
	}

	slog.InfoContext(ctx, "Generated book text",
		"component", "text_generator", "model", g.model, "pages", len(book.BookContent), "book_type", book.BookType)
	return book, nil
}

func appendText(sb *strings.Builder, resp *genai.GenerateContentResponse) {
	candidate := firstCandidate(resp)
	if candidate == nil || candidate.Content == nil {
		return
	}
	for _, part := range candidate.Content.Parts {
		if part == nil || part.Thought {
			continue
		}
		sb.WriteString(part.Text)
	}
}

func parseBookText(raw string) (*models.BookText, error) {
	body := stripCodeFence(raw)
	if body == "" {
		return nil, fmt.Errorf("%w: empty response", ErrMalformedBook)
	}

	var book models.BookText
	if err := json.Unmarshal([]byte(body), &book); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedBook, err)
	}
	if len(book.BookContent) == 0 {
		return nil, fmt.Errorf("%w: no book_content", ErrMalformedBook)
	}
	return &book, nil
}

// stripCodeFence removes a surrounding ```json ... ``` block if the model added one.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(s, "json")
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
