// Package report renders jobs, results and listings for terminals and tools.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/ternarybob/deepscan/internal/models"
	"gopkg.in/yaml.v3"
)

// Format selects the output encoding.
type Format string

const (
	FormatText     Format = "text"
	FormatJSON     Format = "json"
	FormatYAML     Format = "yaml"
	FormatMarkdown Format = "markdown"
)

// ParseFormat accepts text, json, yaml (or yml) and markdown (or md).
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	default:
		return "", fmt.Errorf("unknown output format %q (use text, json, yaml or markdown)", s)
	}
}

// Document is one finished analysis as rendered by Render.
type Document struct {
	Job        models.Job                `json:"job" yaml:"job"`
	Result     *models.AnalysisResult    `json:"result,omitempty" yaml:"result,omitempty"`
	Statistics *models.DerivedStatistics `json:"statistics,omitempty" yaml:"statistics,omitempty"`
}

// Render writes the document in the given format.
func Render(w io.Writer, format Format, doc Document) error {
	switch format {
	case FormatText:
		return writeText(w, doc)
	case FormatMarkdown:
		_, err := io.WriteString(w, Markdown(doc))
		return err
	default:
		return Encode(w, format, doc)
	}
}

// Encode writes v as JSON or YAML. Text and markdown fall back to JSON.
func Encode(w io.Writer, format Format, v interface{}) error {
	if format == FormatYAML {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("failed to encode yaml: %w", err)
		}
		return enc.Close()
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode json: %w", err)
	}
	return nil
}
