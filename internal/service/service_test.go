package service

import (
	"context"
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Mocca-flames/flame-pdf/internal/assemble"
	"github.com/Mocca-flames/flame-pdf/internal/config"
	"github.com/Mocca-flames/flame-pdf/internal/ingest"
	"github.com/Mocca-flames/flame-pdf/internal/pipeline"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeProcessor marks a page transformed unless its bytes start with "flat".
type fakeProcessor struct {
	err error
}

func (f fakeProcessor) Process(data []byte) (*pipeline.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &pipeline.Result{
		Image:       imaging.New(60, 80, color.White),
		Transformed: !strings.HasPrefix(string(data), "flat"),
	}, nil
}

type fakeBuilder struct {
	images []string
	out    string
	err    error
}

func (f *fakeBuilder) Build(_ context.Context, images []string, out string) (assemble.Stats, error) {
	f.images, f.out = images, out
	if f.err != nil {
		return assemble.Stats{}, f.err
	}
	return assemble.Stats{Pages: len(images), Size: 1234}, nil
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Ingest.ReadyTimeout = 200 * time.Millisecond
	return cfg
}

func batchDir(t *testing.T, ready bool, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	if ready {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "READY.txt"), nil, 0o644))
	}
	return dir
}

func TestGenerateAssemblesAndCleansUp(t *testing.T) {
	dir := batchDir(t, true, map[string]string{"img_2.jpg": "page", "img_1.jpg": "page", "notes.txt": "keep"})
	builder := &fakeBuilder{}
	svc := New(testConfig(), fakeProcessor{}, builder, nil)

	res, err := svc.Generate(context.Background(), Request{ID: "r1", UserID: "u1", ImageDir: dir})
	require.NoError(t, err)

	assert.False(t, res.UseDemo)
	assert.Equal(t, filepath.Join(dir, "output.pdf"), res.PDFPath)
	assert.Equal(t, 2, res.PageCount)
	assert.Equal(t, int64(1234), res.FileSize)
	assert.Equal(t, 2, res.Transformed)

	assert.Equal(t, []string{
		filepath.Join(dir, "processed_img_1.jpg.png"),
		filepath.Join(dir, "processed_img_2.jpg.png"),
	}, builder.images)

	for _, gone := range []string{"img_1.jpg", "img_2.jpg", "processed_img_1.jpg.png", "READY.txt"} {
		assert.NoFileExists(t, filepath.Join(dir, gone))
	}
	assert.FileExists(t, filepath.Join(dir, "notes.txt"))
}

func TestGenerateKeepsFilesWithoutCleanup(t *testing.T) {
	dir := batchDir(t, true, map[string]string{"img_1.png": "page"})
	cfg := testConfig()
	cfg.Ingest.Cleanup = false

	_, err := New(cfg, fakeProcessor{}, &fakeBuilder{}, nil).Generate(context.Background(), Request{ImageDir: dir})
	require.NoError(t, err)

	assert.FileExists(t, filepath.Join(dir, "img_1.png"))
	assert.FileExists(t, filepath.Join(dir, "processed_img_1.png"))
	assert.FileExists(t, filepath.Join(dir, "READY.txt"))
}

func TestGeneratePartialBatch(t *testing.T) {
	files := map[string]string{"img_1.jpg": "page", "img_2.jpg": "flat"}

	t.Run("placeholder", func(t *testing.T) {
		dir := batchDir(t, true, files)
		builder := &fakeBuilder{}

		res, err := New(testConfig(), fakeProcessor{}, builder, nil).Generate(context.Background(), Request{ImageDir: dir})
		require.NoError(t, err)

		assert.True(t, res.UseDemo)
		assert.Equal(t, "assets/demo.png", res.PlaceholderPath)
		assert.Equal(t, 1, res.Transformed)
		assert.Empty(t, res.PDFPath)
		assert.Nil(t, builder.images)
		assert.FileExists(t, filepath.Join(dir, "img_1.jpg"))
	})

	t.Run("mixed", func(t *testing.T) {
		dir := batchDir(t, true, files)
		cfg := testConfig()
		cfg.Output.Partial = config.PartialMixed
		builder := &fakeBuilder{}

		res, err := New(cfg, fakeProcessor{}, builder, nil).Generate(context.Background(), Request{ImageDir: dir})
		require.NoError(t, err)

		assert.False(t, res.UseDemo)
		assert.Equal(t, 2, res.PageCount)
		assert.Equal(t, 1, res.Transformed)
		assert.Len(t, builder.images, 2)
	})
}

func TestGenerateErrors(t *testing.T) {
	t.Run("missing dir", func(t *testing.T) {
		_, err := New(testConfig(), fakeProcessor{}, &fakeBuilder{}, nil).Generate(context.Background(), Request{})
		assert.ErrorIs(t, err, ErrInvalidRequest)
	})

	t.Run("not ready", func(t *testing.T) {
		dir := batchDir(t, false, map[string]string{"img_1.jpg": "page"})
		_, err := New(testConfig(), fakeProcessor{}, &fakeBuilder{}, nil).Generate(context.Background(), Request{ImageDir: dir})
		assert.ErrorIs(t, err, ingest.ErrReadyTimeout)
	})

	t.Run("no images", func(t *testing.T) {
		dir := batchDir(t, true, map[string]string{"scan.jpg": "page"})
		_, err := New(testConfig(), fakeProcessor{}, &fakeBuilder{}, nil).Generate(context.Background(), Request{ImageDir: dir})
		assert.ErrorIs(t, err, ingest.ErrNoImages)
	})

	t.Run("decode failure", func(t *testing.T) {
		dir := batchDir(t, true, map[string]string{"img_1.jpg": "page"})
		decodeErr := &pipeline.DecodeError{Err: errors.New("bad bytes")}
		_, err := New(testConfig(), fakeProcessor{err: decodeErr}, &fakeBuilder{}, nil).Generate(context.Background(), Request{ImageDir: dir})

		var de *pipeline.DecodeError
		assert.ErrorAs(t, err, &de)
	})

	t.Run("assembly failure", func(t *testing.T) {
		dir := batchDir(t, true, map[string]string{"img_1.jpg": "page"})
		_, err := New(testConfig(), fakeProcessor{}, &fakeBuilder{err: assemble.ErrNoPages}, nil).Generate(context.Background(), Request{ImageDir: dir})
		assert.ErrorIs(t, err, assemble.ErrNoPages)
		assert.FileExists(t, filepath.Join(dir, "img_1.jpg"))
	})
}

func TestGenerateWithRealPipeline(t *testing.T) {
	dir := t.TempDir()
	photo := imaging.New(1000, 800, color.NRGBA{R: 40, G: 45, B: 50, A: 255})
	photo = imaging.Paste(photo, imaging.New(640, 500, color.NRGBA{R: 236, G: 234, B: 228, A: 255}), image.Pt(200, 150))
	require.NoError(t, imaging.Save(photo, filepath.Join(dir, "img_1.png")))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "READY.txt"), nil, 0o644))

	svc := New(testConfig(), pipeline.NewProcessor(nil), assemble.New("A4", nil), nil)
	res, err := svc.Generate(context.Background(), Request{ID: "e2e", ImageDir: dir})
	require.NoError(t, err)

	assert.False(t, res.UseDemo)
	assert.Equal(t, 1, res.PageCount)
	assert.Equal(t, 1, res.Transformed)
	assert.FileExists(t, res.PDFPath)
}

func TestProcessedPath(t *testing.T) {
	assert.Equal(t, filepath.Join("d", "processed_img_1.jpg.png"), ProcessedPath(filepath.Join("d", "img_1.jpg")))
	assert.Equal(t, filepath.Join("d", "processed_img_1.png"), ProcessedPath(filepath.Join("d", "img_1.png")))
}
