package generation

import (
	"context"
	"iter"

	"google.golang.org/genai"
)

// streamChunk is one element of a fake stream: either a response or an error.
type streamChunk struct {
	resp *genai.GenerateContentResponse
	err  error
}

type fakeStreamer struct {
	chunks []streamChunk

	calls        int
	consumed     int
	lastModel    string
	lastContents []*genai.Content
	lastConfig   *genai.GenerateContentConfig
}

func (f *fakeStreamer) GenerateContentStream(_ context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) iter.Seq2[*genai.GenerateContentResponse, error] {
	f.calls++
	f.lastModel = model
	f.lastContents = contents
	f.lastConfig = config
	return func(yield func(*genai.GenerateContentResponse, error) bool) {
		for _, c := range f.chunks {
			f.consumed++
			if !yield(c.resp, c.err) {
				return
			}
		}
	}
}

func textChunk(text string) streamChunk {
	return streamChunk{resp: &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: &genai.Content{Parts: []*genai.Part{{Text: text}}}}},
	}}
}

func imageChunk(data []byte, mimeType string) streamChunk {
	return streamChunk{resp: &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: &genai.Content{
			Parts: []*genai.Part{{InlineData: &genai.Blob{MIMEType: mimeType, Data: data}}},
		}}},
	}}
}

func finishChunk(reason genai.FinishReason) streamChunk {
	return streamChunk{resp: &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{FinishReason: reason}},
	}}
}
