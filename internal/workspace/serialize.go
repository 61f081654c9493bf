package workspace

import (
	"strings"

	"docflow/internal/blocks"
)

// languageAliases maps common fence languages onto the names the service
// accepts.
var languageAliases = map[string]string{
	"js":    "javascript",
	"py":    "python",
	"ts":    "typescript",
	"shell": "bash",
	"sh":    "bash",
	"yml":   "yaml",
	"text":  "plain text",
	"":      "plain text",
}

// supportedLanguages is the service's closed set of code block languages.
// Anything outside it degrades to plain text rather than failing the
// request.
var supportedLanguages = map[string]bool{
	"abap": true, "agda": true, "arduino": true, "assembly": true, "bash": true,
	"basic": true, "bnf": true, "c": true, "c#": true, "c++": true,
	"clojure": true, "coffeescript": true, "coq": true, "css": true, "dart": true,
	"dhall": true, "diff": true, "docker": true, "ebnf": true, "elixir": true,
	"elm": true, "erlang": true, "f#": true, "flow": true, "fortran": true,
	"gherkin": true, "glsl": true, "go": true, "graphql": true, "groovy": true,
	"haskell": true, "hcl": true, "html": true, "idris": true, "java": true,
	"javascript": true, "json": true, "julia": true, "kotlin": true, "latex": true,
	"less": true, "lisp": true, "livescript": true, "llvm ir": true, "lua": true,
	"makefile": true, "markdown": true, "markup": true, "matlab": true,
	"mathematica": true, "mermaid": true, "nix": true, "notion formula": true,
	"objective-c": true, "ocaml": true, "pascal": true, "perl": true, "php": true,
	"plain text": true, "powershell": true, "prolog": true, "protobuf": true,
	"purescript": true, "python": true, "r": true, "racket": true, "reason": true,
	"ruby": true, "rust": true, "sass": true, "scala": true, "scheme": true,
	"scss": true, "shell": true, "smalltalk": true, "solidity": true, "sql": true,
	"swift": true, "toml": true, "typescript": true, "vb.net": true,
	"verilog": true, "vhdl": true, "visual basic": true, "webassembly": true,
	"xml": true, "yaml": true,
}

// normalizeLanguage maps a Markdown fence language to a supported one.
func normalizeLanguage(lang string) string {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if mapped, ok := languageAliases[lang]; ok {
		lang = mapped
	}
	if !supportedLanguages[lang] {
		return "plain text"
	}
	return lang
}

type richText struct {
	Type        string       `json:"type"`
	Text        textContent  `json:"text"`
	Annotations *annotations `json:"annotations,omitempty"`
}

type textContent struct {
	Content string `json:"content"`
	Link    *link  `json:"link,omitempty"`
}

type link struct {
	URL string `json:"url"`
}

type annotations struct {
	Bold   bool `json:"bold,omitempty"`
	Italic bool `json:"italic,omitempty"`
	Code   bool `json:"code,omitempty"`
}

func richTextPayload(spans []blocks.TextSpan) []richText {
	out := make([]richText, 0, len(spans))
	for _, s := range spans {
		rt := richText{Type: "text", Text: textContent{Content: s.Text}}
		if s.Link != "" {
			rt.Text.Link = &link{URL: s.Link}
		}
		if s.Bold || s.Italic || s.Code {
			rt.Annotations = &annotations{Bold: s.Bold, Italic: s.Italic, Code: s.Code}
		}
		out = append(out, rt)
	}
	return out
}

// blockPayload serializes one typed block into the service's wire shape.
// The block grammar is closed, so every variant is handled explicitly.
func blockPayload(b blocks.Block) map[string]any {
	switch b.Type {
	case blocks.Heading1, blocks.Heading2, blocks.Heading3:
		return map[string]any{
			"object":       "block",
			"type":         string(b.Type),
			string(b.Type): map[string]any{"rich_text": richTextPayload(b.Rich)},
		}

	case blocks.Code:
		return map[string]any{
			"object": "block",
			"type":   "code",
			"code": map[string]any{
				"rich_text": []richText{{Type: "text", Text: textContent{Content: b.Text}}},
				"language":  normalizeLanguage(b.Language),
			},
		}

	case blocks.BulletedListItem, blocks.NumberedListItem:
		body := map[string]any{"rich_text": richTextPayload(b.Rich)}
		if len(b.Children) > 0 {
			body["children"] = blockPayloads(b.Children)
		}
		return map[string]any{
			"object":       "block",
			"type":         string(b.Type),
			string(b.Type): body,
		}

	case blocks.Table:
		width := 0
		if len(b.Children) > 0 {
			width = len(b.Children[0].Cells)
		}
		return map[string]any{
			"object": "block",
			"type":   "table",
			"table": map[string]any{
				"table_width":       width,
				"has_column_header": b.HasHeader,
				"children":          blockPayloads(b.Children),
			},
		}

	case blocks.TableRow:
		cells := make([][]richText, 0, len(b.Cells))
		for _, cell := range b.Cells {
			cells = append(cells, richTextPayload(cell))
		}
		return map[string]any{
			"object":    "block",
			"type":      "table_row",
			"table_row": map[string]any{"cells": cells},
		}

	default:
		return map[string]any{
			"object":    "block",
			"type":      "paragraph",
			"paragraph": map[string]any{"rich_text": richTextPayload(b.Rich)},
		}
	}
}

func blockPayloads(seq []blocks.Block) []map[string]any {
	out := make([]map[string]any, 0, len(seq))
	for _, b := range seq {
		out = append(out, blockPayload(b))
	}
	return out
}
