// Package assemble lays processed page images out as a PDF document.
package assemble

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/Mocca-flames/flame-pdf/internal/logging"
	"github.com/Mocca-flames/flame-pdf/internal/version"

	"github.com/disintegration/imaging"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// ErrNoPages is returned when none of the images could be used.
var ErrNoPages = errors.New("no usable pages")

// pageStamp is written at the bottom-left of every page; %p is the page number.
const (
	pageStamp     = "Page %p"
	pageStampDesc = "fontname:Helvetica, points:10, position:bl, offset:30 30, scalefactor:1 abs, rotation:0, fillcolor:#000000"
)

// DocumentTitle is written to the Title entry of every document.
const DocumentTitle = "Generated Document"

var disableConfigDir sync.Once

// Stats describes a built document.
type Stats struct {
	Pages   int
	Size    int64
	Skipped []string
}

// Assembler builds one page per image on a fixed paper size, each image scaled to
// fit and centered.
type Assembler struct {
	pageSize string
	log      *slog.Logger
}

// New returns an assembler for the given paper size (A3, A4, A5, Letter, Legal).
func New(pageSize string, log *slog.Logger) *Assembler {
	// pdfcpu otherwise creates a config directory under the user's home.
	disableConfigDir.Do(api.DisableConfigDir)

	return &Assembler{
		pageSize: formSize(pageSize),
		log:      logging.OrDiscard(log),
	}
}

func formSize(s string) string {
	switch strings.ToUpper(s) {
	case "LETTER":
		return "Letter"
	case "LEGAL":
		return "Legal"
	case "":
		return "A4"
	default:
		return strings.ToUpper(s)
	}
}

// Build writes a document with one page per readable image to out, replacing any
// existing file. Images that cannot be opened are skipped and reported in Stats.
func (a *Assembler) Build(ctx context.Context, images []string, out string) (Stats, error) {
	var stats Stats

	pages := make([]string, 0, len(images))
	for _, path := range images {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		if _, err := imaging.Open(path); err != nil {
			a.log.Warn("skipping unreadable page image", "path", path, "error", err)
			stats.Skipped = append(stats.Skipped, path)
			continue
		}
		pages = append(pages, path)
	}
	if len(pages) == 0 {
		return stats, ErrNoPages
	}

	// ImportImagesFile appends to an existing document.
	if err := os.Remove(out); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return stats, fmt.Errorf("failed to replace %s: %w", out, err)
	}

	conf := model.NewDefaultConfiguration()

	imp, err := api.Import(fmt.Sprintf("formsize:%s, position:c, scalefactor:1.0 rel", a.pageSize), types.POINTS)
	if err != nil {
		return stats, fmt.Errorf("bad import settings: %w", err)
	}
	if err := api.ImportImagesFile(pages, out, imp, conf); err != nil {
		return stats, fmt.Errorf("failed to import images: %w", err)
	}

	if err := api.AddTextWatermarksFile(out, "", nil, true, pageStamp, pageStampDesc, conf); err != nil {
		return stats, fmt.Errorf("failed to stamp page numbers: %w", err)
	}

	if err := api.AddPropertiesFile(out, "", properties(time.Now()), conf); err != nil {
		return stats, fmt.Errorf("failed to set document properties: %w", err)
	}

	n, err := api.PageCountFile(out)
	if err != nil {
		return stats, fmt.Errorf("failed to read back %s: %w", out, err)
	}
	info, err := os.Stat(out)
	if err != nil {
		return stats, err
	}

	stats.Pages = n
	stats.Size = info.Size()
	a.log.Info("document assembled", "path", out, "pages", n, "bytes", stats.Size, "skipped", len(stats.Skipped))
	return stats, nil
}

func properties(now time.Time) map[string]string {
	return map[string]string{
		"Title":   DocumentTitle,
		"Author":  version.Name,
		"Subject": "Document generated on " + now.Format(time.DateTime),
	}
}
