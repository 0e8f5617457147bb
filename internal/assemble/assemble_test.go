package assemble

import (
	"context"
	"image/color"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Mocca-flames/flame-pdf/internal/version"

	"github.com/disintegration/imaging"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePage(t *testing.T, dir, name string, w, h int) string {
	t.Helper()
	path := filepath.Join(dir, name)
	img := imaging.New(w, h, color.NRGBA{R: 240, G: 240, B: 235, A: 255})
	require.NoError(t, imaging.Save(img, path))
	return path
}

func TestBuild(t *testing.T) {
	dir := t.TempDir()
	pages := []string{
		writePage(t, dir, "p1.png", 600, 800),
		writePage(t, dir, "p2.png", 900, 400),
		writePage(t, dir, "p3.jpg", 300, 300),
	}
	out := filepath.Join(dir, "output.pdf")

	stats, err := New("A4", nil).Build(context.Background(), pages, out)
	require.NoError(t, err)

	assert.Equal(t, 3, stats.Pages)
	assert.Empty(t, stats.Skipped)
	assert.Positive(t, stats.Size)

	n, err := api.PageCountFile(out)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestBuildSetsDocumentInfo(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "output.pdf")

	_, err := New("A4", nil).Build(context.Background(), []string{writePage(t, dir, "p1.png", 600, 800)}, out)
	require.NoError(t, err)

	ctx, err := api.ReadContextFile(out)
	require.NoError(t, err)
	assert.Equal(t, DocumentTitle, ctx.Title)
	assert.Equal(t, version.Name, ctx.Author)
	assert.Contains(t, ctx.Subject, "Document generated on ")
}

func TestProperties(t *testing.T) {
	p := properties(time.Date(2024, 3, 9, 14, 5, 0, 0, time.UTC))
	assert.Equal(t, map[string]string{
		"Title":   "Generated Document",
		"Author":  "flame-pdf",
		"Subject": "Document generated on 2024-03-09 14:05:00",
	}, p)
}

func TestBuildSkipsUnreadableImages(t *testing.T) {
	dir := t.TempDir()
	good := writePage(t, dir, "good.png", 400, 500)
	bad := filepath.Join(dir, "bad.png")
	require.NoError(t, os.WriteFile(bad, []byte("not a png"), 0o644))
	missing := filepath.Join(dir, "missing.png")

	stats, err := New("Letter", nil).Build(context.Background(), []string{bad, good, missing}, filepath.Join(dir, "out.pdf"))
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Pages)
	assert.Equal(t, []string{bad, missing}, stats.Skipped)
}

func TestBuildReplacesExistingOutput(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "output.pdf")
	a := New("A4", nil)

	_, err := a.Build(context.Background(), []string{
		writePage(t, dir, "a.png", 200, 300),
		writePage(t, dir, "b.png", 200, 300),
	}, out)
	require.NoError(t, err)

	stats, err := a.Build(context.Background(), []string{writePage(t, dir, "c.png", 200, 300)}, out)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Pages)
}

func TestBuildNoPages(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.jpg")
	require.NoError(t, os.WriteFile(bad, []byte{0xff, 0xd8}, 0o644))

	_, err := New("A4", nil).Build(context.Background(), []string{bad}, filepath.Join(dir, "out.pdf"))
	assert.ErrorIs(t, err, ErrNoPages)

	_, err = New("A4", nil).Build(context.Background(), nil, filepath.Join(dir, "out.pdf"))
	assert.ErrorIs(t, err, ErrNoPages)
}

func TestBuildCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	dir := t.TempDir()
	_, err := New("A4", nil).Build(ctx, []string{writePage(t, dir, "a.png", 10, 10)}, filepath.Join(dir, "out.pdf"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFormSize(t *testing.T) {
	assert.Equal(t, "A4", formSize(""))
	assert.Equal(t, "A5", formSize("a5"))
	assert.Equal(t, "Letter", formSize("LETTER"))
	assert.Equal(t, "Legal", formSize("legal"))
}
