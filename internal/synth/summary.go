package synth

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
)

// The summary call asks for a tiny JSON object so the result can be
// validated before it is threaded into a parent prompt.
const summarySchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["summary"],
  "additionalProperties": false,
  "properties": {
    "summary": {"type": "string", "minLength": 1, "maxLength": 400}
  }
}`

var (
	summarySchemaOnce sync.Once
	summarySchema     *jsonschema.Schema
	summarySchemaErr  error
)

func compiledSummarySchema() (*jsonschema.Schema, error) {
	summarySchemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("summary.schema.json", strings.NewReader(summarySchemaJSON)); err != nil {
			summarySchemaErr = err
			return
		}
		summarySchema, summarySchemaErr = compiler.Compile("summary.schema.json")
	})
	return summarySchema, summarySchemaErr
}

const summaryInstruction = `Summarize the following documentation in one sentence for use as a table-of-contents entry.
Respond with only a JSON object of the form {"summary": "<one sentence>"} and nothing else.

Documentation:
`

// Summarize produces the one-line summary of a synthesized document. The
// model's JSON is validated against a schema; on any failure the first
// sentence of the document serves as the fallback, so summarization never
// fails a node.
func (s *Synthesizer) Summarize(ctx context.Context, path, markdown string) string {
	out, err := s.Synthesize(ctx, path, summaryInstruction+markdown)
	if err != nil {
		return firstSentence(markdown)
	}
	summary, err := parseSummaryJSON(out)
	if err != nil {
		return firstSentence(markdown)
	}
	return summary
}

func parseSummaryJSON(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if i := strings.Index(raw, "{"); i > 0 {
		raw = raw[i:]
	}
	if i := strings.LastIndex(raw, "}"); i >= 0 {
		raw = raw[:i+1]
	}

	var doc any
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return "", fmt.Errorf("summary is not valid JSON: %w", err)
	}
	schema, err := compiledSummarySchema()
	if err != nil {
		return "", err
	}
	if err := schema.Validate(doc); err != nil {
		return "", fmt.Errorf("summary failed schema validation: %w", err)
	}

	obj := doc.(map[string]any)
	return strings.TrimSpace(obj["summary"].(string)), nil
}

// firstSentence extracts a usable one-liner from Markdown, skipping
// headings and fences.
func firstSentence(markdown string) string {
	for _, line := range strings.Split(markdown, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "```") {
			continue
		}
		if i := strings.Index(line, ". "); i > 0 {
			return line[:i+1]
		}
		if len(line) > 200 {
			return line[:200]
		}
		return line
	}
	return "No summary available."
}
