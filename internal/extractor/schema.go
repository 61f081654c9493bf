package extractor

import "fmt"

// DeclKind is the closed set of declaration kinds the pipeline understands.
// Downstream consumers (prompt assembly, block conversion) switch
// exhaustively on these values.
type DeclKind string

const (
	KindModule   DeclKind = "module"
	KindClass    DeclKind = "class"
	KindFunction DeclKind = "function"
	KindMethod   DeclKind = "method"
	KindConstant DeclKind = "constant"
)

// Declaration is one declaration extracted from a source file.
type Declaration struct {
	Kind      DeclKind `json:"kind"`
	Name      string   `json:"name"`
	Signature string   `json:"signature"`
	Doc       string   `json:"doc,omitempty"`
	StartLine int      `json:"start_line"`
	EndLine   int      `json:"end_line"`
	// Parent names the enclosing class for methods and class constants.
	// Empty for file-level declarations.
	Parent string `json:"parent,omitempty"`
}

// ImportEdge records a dependency on another module. Targets are kept as
// written in the source; resolution against the project tree is
// best-effort and unresolved targets are valid.
type ImportEdge struct {
	Target string   `json:"target"`
	Names  []string `json:"names,omitempty"`
}

// StructuralRecord is the language-agnostic extracted shape of one source
// file. It is derived from file content and recomputed every run.
type StructuralRecord struct {
	Path         string        `json:"path"`
	Language     string        `json:"language"`
	Doc          string        `json:"doc,omitempty"`
	Declarations []Declaration `json:"declarations"`
	Imports      []ImportEdge  `json:"imports"`
}

// ParseError reports that a file is not syntactically valid for the
// configured grammar. It is per-file: sibling files keep extracting.
type ParseError struct {
	Path string
	Line int
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("parse error in %s at line %d", e.Path, e.Line)
	}
	return fmt.Sprintf("parse error in %s", e.Path)
}
