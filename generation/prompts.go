package generation

import (
	"fmt"

	"github.com/coreybb/rhymera/models"
	"google.golang.org/genai"
)

const (
	DefaultPageStyle  = "early 2000s comic art style"
	DefaultCoverStyle = "book cover illustration, professional quality"
)

const textSystemInstruction = `Your job is to generate a children's book about the topic the user gives you.
The user gives you the number of pages and the type of book. The type is one of:
1. story: a story book
2. poem: a poem
3. nursery_rhyme: a nursery rhyme
4. propaganda: propaganda mode, which is meant to be satirical
5. educational: educational mode, detailed and trying to teach
For every page write the page text and a description of the illustration for that page.
Also describe a cover illustration and give the book a title.`

const imageGuidelines = `Please generate images based on the given prompts.
Follow these guidelines:
- Generate square images (1024x1024 pixels)
- Do not include any text in the images
- Focus on visual representation only
- Use the specified art style`

func bookPrompt(req models.BookRequest) string {
	return fmt.Sprintf("Please create a %s children's book about %s with %d pages.", req.BookType, req.Topic, req.PageCount)
}

func imagePrompt(prompt, style string) string {
	return fmt.Sprintf("Please generate an image with the following details:\nStyle: %s\nPrompt: %s\nRemember: NO TEXT in the image, just visual representation.", style, prompt)
}

// bookSchema is the structured output the text model must produce.
func bookSchema() *genai.Schema {
	return &genai.Schema{
		Type:     genai.TypeObject,
		Required: []string{"pages", "book_type", "book_content"},
		Properties: map[string]*genai.Schema{
			"pages": {
				Type:        genai.TypeInteger,
				Description: "Total number of pages in the book",
			},
			"book_content": {
				Type: genai.TypeArray,
				Items: &genai.Schema{
					Type:     genai.TypeObject,
					Required: []string{"page", "content", "illustration"},
					Properties: map[string]*genai.Schema{
						"page":         {Type: genai.TypeInteger, Description: "Page number"},
						"content":      {Type: genai.TypeString, Description: "Text content for the page"},
						"illustration": {Type: genai.TypeString, Description: "Description of illustration for the page"},
					},
				},
			},
			"book_type": {
				Type:        genai.TypeString,
				Description: "Type of children's book to generate",
				Enum:        models.BookTypeStrings(),
			},
			"book_cover": {
				Type:        genai.TypeString,
				Description: "Description of the cover illustration, showing what the book is about",
			},
			"title_cover": {
				Type:        genai.TypeString,
				Description: "Title of the book as printed on the cover",
			},
		},
	}
}
