package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/Mocca-flames/flame-pdf/internal/logging"
)

var pageSizes = map[string]bool{
	"A3": true, "A4": true, "A5": true, "LETTER": true, "LEGAL": true,
}

// Validate checks the configuration for values the service cannot run with.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("addr is required")
	}

	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}

	if c.Ingest.ReadyMarker == "" || strings.ContainsAny(c.Ingest.ReadyMarker, `/\`) {
		return fmt.Errorf("ingest.ready_marker must be a plain file name, got %q", c.Ingest.ReadyMarker)
	}
	if c.Ingest.ReadyTimeout <= 0 {
		return fmt.Errorf("ingest.ready_timeout must be > 0")
	}
	if len(c.Ingest.Patterns) == 0 {
		return fmt.Errorf("ingest.patterns must not be empty")
	}
	for _, p := range c.Ingest.Patterns {
		if _, err := filepath.Match(p, ""); err != nil {
			return fmt.Errorf("ingest.patterns: bad pattern %q: %w", p, err)
		}
	}

	if c.Output.PDFName == "" || filepath.Base(c.Output.PDFName) != c.Output.PDFName {
		return fmt.Errorf("output.pdf_name must be a plain file name, got %q", c.Output.PDFName)
	}
	if !pageSizes[strings.ToUpper(c.Output.PageSize)] {
		return fmt.Errorf("output.page_size %q is not supported", c.Output.PageSize)
	}
	switch c.Output.Partial {
	case PartialPlaceholder, PartialMixed:
	default:
		return fmt.Errorf("output.partial must be %q or %q, got %q", PartialPlaceholder, PartialMixed, c.Output.Partial)
	}
	if c.Output.Partial == PartialPlaceholder && c.Output.Placeholder == "" {
		return fmt.Errorf("output.placeholder is required with the %q policy", PartialPlaceholder)
	}

	return nil
}
