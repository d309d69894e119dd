package generation

import (
	"context"
	"errors"
	"testing"

	"github.com/coreybb/rhymera/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

const threePageBook = `{"pages":3,"book_type":"story","title_cover":"Tuck the Turtle","book_cover":"a turtle under a big sky",
"book_content":[{"page":1,"content":"Tuck woke up.","illustration":"a sleepy turtle"},
{"page":2,"content":"Tuck walked.","illustration":"a turtle on a path"},
{"page":3,"content":"Tuck slept.","illustration":"a turtle in bed"}]}`

func TestTextGenerator_ConcatenatesStream(t *testing.T) {
	streamer := &fakeStreamer{chunks: []streamChunk{
		textChunk(threePageBook[:40]),
		textChunk(threePageBook[40:120]),
		textChunk(threePageBook[120:]),
	}}
	gen := NewTextGenerator(streamer, "")

	req := models.BookRequest{PageCount: 3, BookType: models.BookTypeStory, Topic: "a turtle",
		History: []models.Turn{{Role: "model", Text: "earlier answer"}, {Role: "user", Text: "make it shorter"}}}
	book, err := gen.Generate(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, DefaultTextModel, streamer.lastModel)
	require.Len(t, book.BookContent, 3)
	assert.Equal(t, 2, book.BookContent[1].Page)
	assert.Equal(t, "a turtle on a path", book.BookContent[1].Illustration)
	assert.Equal(t, "Tuck the Turtle", book.Title())

	require.Len(t, streamer.lastContents, 3)
	assert.Equal(t, "Please create a story children's book about a turtle with 3 pages.", streamer.lastContents[0].Parts[0].Text)
	assert.Equal(t, string(genai.RoleModel), streamer.lastContents[1].Role)
	assert.Equal(t, "application/json", streamer.lastConfig.ResponseMIMEType)
	require.NotNil(t, streamer.lastConfig.ResponseSchema)
	assert.Equal(t, []string{"pages", "book_type", "book_content"}, streamer.lastConfig.ResponseSchema.Required)
	assert.Equal(t, models.BookTypeStrings(), streamer.lastConfig.ResponseSchema.Properties["book_type"].Enum)
}

func TestTextGenerator_AcceptsFencedJSON(t *testing.T) {
	streamer := &fakeStreamer{chunks: []streamChunk{textChunk("```json\n" + threePageBook + "\n```")}}
	book, err := NewTextGenerator(streamer, "m").Generate(context.Background(), models.BookRequest{PageCount: 3, BookType: "story", Topic: "t"})
	require.NoError(t, err)
	assert.Len(t, book.BookContent, 3)
}

func TestTextGenerator_Failures(t *testing.T) {
	upstream := errors.New("quota exceeded")
	testCases := []struct {
		name      string
		chunks    []streamChunk
		malformed bool
		wantErr   error
	}{
		{name: "upstream error", chunks: []streamChunk{{err: upstream}}, wantErr: upstream},
		{name: "empty stream", chunks: nil, malformed: true},
		{name: "not json", chunks: []streamChunk{textChunk("Once upon a time")}, malformed: true},
		{name: "missing content", chunks: []streamChunk{textChunk(`{"pages":2,"book_type":"poem"}`)}, malformed: true},
		{name: "empty content", chunks: []streamChunk{textChunk(`{"pages":2,"book_type":"poem","book_content":[]}`)}, malformed: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			gen := NewTextGenerator(&fakeStreamer{chunks: tc.chunks}, "m")
			book, err := gen.Generate(context.Background(), models.BookRequest{PageCount: 2, BookType: "poem", Topic: "frogs"})
			require.Error(t, err)
			assert.Nil(t, book)
			assert.Equal(t, tc.malformed, errors.Is(err, ErrMalformedBook))
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
			}
		})
	}
}

func TestStripCodeFence(t *testing.T) {
	assert.Equal(t, `{"a":1}`, stripCodeFence("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripCodeFence("```\n{\"a\":1}```"))
	assert.Equal(t, `{"a":1}`, stripCodeFence("  {\"a\":1}  "))
	assert.Equal(t, "", stripCodeFence("   "))
}
