package ebook

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"
	"time"

	"github.com/coreybb/rhymera/models"
	"github.com/coreybb/rhymera/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x * 7), G: uint8(y * 5), B: 120, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

type mapBlobs map[string]*storage.Blob

func (m mapBlobs) Get(_ context.Context, id string) (*storage.Blob, error) {
	if b, ok := m[id]; ok {
		return b, nil
	}
	return nil, storage.ErrBlobNotFound
}

// sampleBook has three pages; page 2 has no image.
func sampleBook(t *testing.T) *models.BookRecord {
	img := testPNG(t, 40, 30)
	return &models.BookRecord{
		ID:        "b1",
		OwnerID:   "u1",
		Title:     "Tuck the Turtle",
		BookType:  models.BookTypeStory,
		PageCount: 3,
		Cover:     models.NotAttemptedIllustration(),
		Pages: []models.GeneratedPage{
			{PageNumber: 1, Content: "Tuck woke up.", Illustration: models.PresentIllustration(img, "image/png", "")},
			{PageNumber: 2, Content: "Tuck walked.\nThen Tuck ran.", Illustration: models.AbsentIllustration("model returned no image")},
			{PageNumber: 3, Content: "Tuck slept. Très bien.", Illustration: models.PresentIllustration(img, "image/png", "")},
		},
		CreatedAt: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestBuildLayout(t *testing.T) {
	book := sampleBook(t)
	layout := BuildLayout(book)

	assert.Equal(t, "Tuck the Turtle", layout.Title)
	assert.Equal(t, "A story", layout.Subtitle)
	require.Len(t, layout.Sections, 3)
	assert.Equal(t, "Page 2", layout.Sections[1].Heading)
	assert.Equal(t, "page-002", layout.Sections[1].Label)
	assert.Equal(t, layout, BuildLayout(book))

	empty := BuildLayout(&models.BookRecord{})
	assert.Equal(t, models.DefaultTitle, empty.Title)
	assert.Empty(t, empty.Sections)
	assert.False(t, empty.CreatedAt.IsZero())
}

func TestPDFRenderer_ThreePagesOneMissingImage(t *testing.T) {
	out, err := NewPDFRenderer(nil).Render(context.Background(), sampleBook(t))
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(out, []byte("%PDF-")))

	assert.Equal(t, 4, bytes.Count(out, []byte("<</Type /Page\n")), "title page plus one page per book page")
	assert.Equal(t, 2, bytes.Count(out, []byte("/Subtype /Image")), "only pages with images embed one")
}

func TestPDFRenderer_IsDeterministic(t *testing.T) {
	renderer := NewPDFRenderer(nil)
	book := sampleBook(t)

	first, err := renderer.Render(context.Background(), book)
	require.NoError(t, err)
	second, err := renderer.Render(context.Background(), book)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestPDFRenderer_SkipsBrokenImages(t *testing.T) {
	book := sampleBook(t)
	garbage := base64.StdEncoding.EncodeToString([]byte("not an image"))
	book.Pages[0].Illustration.Image = &garbage
	missingRef := "00000000-0000-0000-0000-000000000000"
	book.Pages[2].Illustration = models.Illustration{Status: models.IllustrationPresent, Ref: &missingRef}

	out, err := NewPDFRenderer(mapBlobs{}).Render(context.Background(), book)
	require.NoError(t, err)
	assert.Equal(t, 0, bytes.Count(out, []byte("/Subtype /Image")))
	assert.Equal(t, 4, bytes.Count(out, []byte("<</Type /Page\n")))
}

func TestPDFRenderer_ResolvesBlobRef(t *testing.T) {
	book := sampleBook(t)
	ref := "blob-1"
	book.Pages[1].Illustration = models.Illustration{Status: models.IllustrationPresent, Ref: &ref}
	blobs := mapBlobs{ref: {ID: ref, Data: testPNG(t, 20, 20), ContentType: "image/png"}}

	out, err := NewPDFRenderer(blobs).Render(context.Background(), book)
	require.NoError(t, err)
	assert.Equal(t, 3, bytes.Count(out, []byte("/Subtype /Image")))
}

func TestNormalizeImageFitsBox(t *testing.T) {
	img, err := normalizeImage(testPNG(t, 3600, 1200))
	require.NoError(t, err)
	assert.Equal(t, maxImageWidthPx, img.Width)
	assert.Equal(t, 600, img.Height)
	assert.True(t, bytes.HasPrefix(img.JPEG, []byte{0xff, 0xd8}), "output should be JPEG")

	_, err = normalizeImage([]byte("nope"))
	assert.Error(t, err)
}

func TestFitBox(t *testing.T) {
	w, h := fitBox(1000, 1000, imageBoxWidthMM, imageBoxHeightMM)
	assert.InDelta(t, imageBoxHeightMM, w, 0.001)
	assert.InDelta(t, imageBoxHeightMM, h, 0.001)

	w, h = fitBox(3000, 1000, imageBoxWidthMM, imageBoxHeightMM)
	assert.InDelta(t, imageBoxWidthMM, w, 0.001)
	assert.InDelta(t, imageBoxWidthMM/3, h, 0.001)
}

func TestEPUBRenderer(t *testing.T) {
	book := sampleBook(t)
	cover := models.PresentIllustration(testPNG(t, 30, 30), "image/png", "")
	book.Cover = cover
	book.Pages[0].Content = "Tuck <script>alert(1)</script> woke & smiled."

	out, err := NewEPUBRenderer(nil).Render(context.Background(), book)
	require.NoError(t, err)

	zr, err := zip.NewReader(bytes.NewReader(out), int64(len(out)))
	require.NoError(t, err)

	var images, sections int
	var firstPage string
	for _, f := range zr.File {
		switch {
		case strings.HasSuffix(f.Name, ".jpg"):
			images++
		case strings.HasSuffix(f.Name, "page-001.xhtml"):
			sections++
			rc, err := f.Open()
			require.NoError(t, err)
			var buf bytes.Buffer
			_, err = buf.ReadFrom(rc)
			require.NoError(t, err)
			rc.Close()
			firstPage = buf.String()
		case strings.HasSuffix(f.Name, ".xhtml") && strings.Contains(f.Name, "page-"):
			sections++
		}
	}
	assert.Equal(t, 3, sections)
	assert.Equal(t, 3, images, "cover plus the two illustrated pages")
	assert.Contains(t, firstPage, "Page 1")
	assert.NotContains(t, firstPage, "<script>")
	assert.Contains(t, firstPage, "&amp;")
}
