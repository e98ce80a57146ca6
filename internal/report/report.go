// Package report renders journey results as JSON, Markdown and HTML and
// publishes them to an artifact sink.
package report

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
	"github.com/microcosm-cc/bluemonday"

	"github.com/kuitang/parabank-e2e/internal/artifacts"
	"github.com/kuitang/parabank-e2e/internal/journey"
)

// Batch is a set of results produced by one invocation.
type Batch struct {
	ID        string            `json:"id"`
	Generated time.Time         `json:"generated"`
	Passed    int               `json:"passed"`
	Failed    int               `json:"failed"`
	Results   []*journey.Result `json:"results"`
}

// NewBatch tallies results.
func NewBatch(id string, generated time.Time, results []*journey.Result) Batch {
	b := Batch{ID: id, Generated: generated.UTC(), Results: results}
	for _, r := range results {
		if r == nil {
			continue
		}
		if r.Passed {
			b.Passed++
		} else {
			b.Failed++
		}
	}
	return b
}

// OK reports whether every journey passed.
func (b Batch) OK() bool {
	return b.Failed == 0 && b.Passed > 0
}

// JSON encodes the batch.
func JSON(b Batch) ([]byte, error) {
	data, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("report: encode json: %w", err)
	}
	return append(data, '\n'), nil
}

// Markdown renders a summary table followed by the steps of every failed journey.
func Markdown(b Batch) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# Journey report %s\n\n", cell(b.ID))
	fmt.Fprintf(&sb, "Generated %s. **%d passed, %d failed.**\n\n", b.Generated.Format(time.RFC3339), b.Passed, b.Failed)

	sb.WriteString("| Journey | Driver | Customer | Result | Duration |\n")
	sb.WriteString("|---|---|---|---|---|\n")
	for _, r := range b.Results {
		if r == nil {
			continue
		}
		fmt.Fprintf(&sb, "| %s | %s | %s | %s | %s |\n",
			cell(r.Journey), cell(r.Driver), cell(r.Username), outcome(r), r.Duration.Round(time.Millisecond))
	}

	for _, r := range b.Results {
		if r == nil || r.Passed {
			continue
		}
		fmt.Fprintf(&sb, "\n## %s\n\n", cell(r.Journey))
		if r.RunID != "" {
			fmt.Fprintf(&sb, "Run `%s`\n\n", r.RunID)
		}
		if r.Fixture != "" {
			sb.WriteString("Environment reset failed:\n\n")
			fence(&sb, r.Fixture)
		}
		for _, s := range r.Steps {
			fmt.Fprintf(&sb, "- **%s**: %s", cell(s.Name), s.Status)
			if s.Screenshot != "" {
				fmt.Fprintf(&sb, " (screenshot `%s`)", s.Screenshot)
			}
			sb.WriteString("\n")
			if s.Error != "" {
				sb.WriteString("\n")
				fence(&sb, s.Error)
			}
		}
	}
	return sb.String()
}

var pageTemplate = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Journey report {{.ID}}</title>
<style>
body { font-family: system-ui, sans-serif; max-width: 60rem; margin: 2rem auto; }
table { border-collapse: collapse; }
th, td { border: 1px solid #ccc; padding: 0.25rem 0.5rem; }
pre { background: #f6f6f6; padding: 0.5rem; white-space: pre-wrap; }
</style>
</head>
<body>
{{.Body}}
</body>
</html>
`))

// HTML renders the Markdown report to a standalone page. Step errors carry
// page text from the target site, so the rendered body is sanitized.
func HTML(b Batch) ([]byte, error) {
	extensions := parser.CommonExtensions | parser.AutoHeadingIDs | parser.NoEmptyLineBeforeBlock
	doc := parser.NewWithExtensions(extensions).Parse([]byte(Markdown(b)))

	renderer := html.NewRenderer(html.RendererOptions{Flags: html.CommonFlags})
	sanitized := bluemonday.UGCPolicy().SanitizeBytes(markdown.Render(doc, renderer))

	var buf bytes.Buffer
	err := pageTemplate.Execute(&buf, struct {
		ID   string
		Body template.HTML
	}{ID: b.ID, Body: template.HTML(sanitized)})
	if err != nil {
		return nil, fmt.Errorf("report: render html: %w", err)
	}
	return buf.Bytes(), nil
}

// Publish writes all three renderings to sink and returns their keys.
func Publish(ctx context.Context, sink artifacts.Sink, b Batch) ([]string, error) {
	jsonData, err := JSON(b)
	if err != nil {
		return nil, err
	}
	htmlData, err := HTML(b)
	if err != nil {
		return nil, err
	}
	outputs := []struct {
		ext, contentType string
		data             []byte
	}{
		{"json", "application/json", jsonData},
		{"md", "text/markdown; charset=utf-8", []byte(Markdown(b))},
		{"html", "text/html; charset=utf-8", htmlData},
	}

	keys := make([]string, 0, len(outputs))
	for _, o := range outputs {
		key := artifacts.ReportKey(b.ID, o.ext)
		if err := sink.Put(ctx, key, o.data, o.contentType); err != nil {
			return keys, fmt.Errorf("report: publish %s: %w", key, err)
		}
		keys = append(keys, key)
	}
	return keys, nil
}

func outcome(r *journey.Result) string {
	switch {
	case r.Passed:
		return "passed"
	case r.Fixture != "":
		return "reset failed"
	}
	for _, s := range r.Steps {
		if s.Status == journey.StatusFailed {
			return "failed at " + cell(s.Name)
		}
	}
	return "failed"
}

// cell keeps a value on one Markdown table line.
func cell(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.ReplaceAll(s, "|", `\|`)
}

func fence(sb *strings.Builder, text string) {
	text = strings.ReplaceAll(text, "```", "'''")
	sb.WriteString("```text\n")
	sb.WriteString(strings.TrimRight(text, "\n"))
	sb.WriteString("\n```\n\n")
}
