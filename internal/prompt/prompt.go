package prompt

import (
	"fmt"
	"strings"

	"docflow/internal/extractor"
	"docflow/internal/project"
)

// ChildSummary is the one-line representation of an already synthesized
// child node, produced by a prior synthesis pass.
type ChildSummary struct {
	Name    string
	Path    string
	Summary string
	Failed  bool
}

// Spec is the assembled, budget-bounded prompt for one tree node.
type Spec struct {
	NodeID      string
	Path        string
	Title       string
	Kind        project.NodeKind
	Instruction string
	Context     string
	// Degraded marks that structural detail was reduced to fit the budget.
	Degraded bool
}

// Text renders the full prompt sent to the model.
func (s *Spec) Text() string {
	var sb strings.Builder
	sb.WriteString(s.Instruction)
	sb.WriteString("\n\n")
	sb.WriteString(s.Context)
	return sb.String()
}

// Assembler builds prompts under a configurable character budget. When a
// node's own detail plus child summaries exceed the budget, detail degrades
// stepwise (drop docs, then signatures) rather than failing: size is never
// a hard error.
type Assembler struct {
	budget int
}

const defaultBudget = 24000

func NewAssembler(budget int) *Assembler {
	if budget <= 0 {
		budget = defaultBudget
	}
	return &Assembler{budget: budget}
}

// Assemble builds the prompt for a node. Child summaries must cover every
// child (or record its skip); the caller guarantees the ordering.
func (a *Assembler) Assemble(node *project.TreeNode, children []ChildSummary) *Spec {
	spec := &Spec{
		NodeID: node.ID,
		Path:   node.Path,
		Title:  pageTitle(node),
		Kind:   node.Kind,
	}

	if node.Path == "." {
		spec.Instruction = overviewInstruction
	} else if node.Kind == project.NodePackage {
		spec.Instruction = packageInstruction
	} else {
		spec.Instruction = moduleInstruction
	}

	childPart := renderChildren(children)

	for _, level := range []detailLevel{detailFull, detailSignatures, detailNames} {
		ctx := renderContext(node, childPart, level)
		if len(spec.Instruction)+len(ctx) <= a.budget || level == detailNames {
			spec.Context = ctx
			spec.Degraded = level != detailFull
			break
		}
	}

	return spec
}

// pageTitle is the human title for a node's page.
func pageTitle(node *project.TreeNode) string {
	switch {
	case node.Path == ".":
		return node.Name
	case node.Kind == project.NodePackage:
		return "Package: " + node.Name
	default:
		return "Module: " + node.Name
	}
}

// Title exposes the page title derivation for the publisher.
func Title(node *project.TreeNode) string { return pageTitle(node) }

type detailLevel int

const (
	detailFull detailLevel = iota
	detailSignatures
	detailNames
)

func renderContext(node *project.TreeNode, childPart string, level detailLevel) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Node path: %s\n", node.Path)
	fmt.Fprintf(&sb, "Node kind: %s\n\n", node.Kind)

	if node.Record != nil {
		renderRecord(&sb, node.Record, level)
	}
	if childPart != "" {
		sb.WriteString("## Contained components\n")
		sb.WriteString(childPart)
	}
	return sb.String()
}

func renderRecord(sb *strings.Builder, rec *extractor.StructuralRecord, level detailLevel) {
	if rec.Doc != "" {
		fmt.Fprintf(sb, "Module docstring: %s\n\n", rec.Doc)
	}

	if len(rec.Imports) > 0 {
		sb.WriteString("Imports: ")
		var targets []string
		for _, e := range rec.Imports {
			targets = append(targets, e.Target)
		}
		sb.WriteString(strings.Join(targets, ", "))
		sb.WriteString("\n\n")
	}

	sb.WriteString("## Declarations\n")
	for _, d := range rec.Declarations {
		switch level {
		case detailFull:
			fmt.Fprintf(sb, "- [%s] %s", d.Kind, d.Signature)
			if d.Parent != "" {
				fmt.Fprintf(sb, " (in %s)", d.Parent)
			}
			sb.WriteString("\n")
			if d.Doc != "" {
				fmt.Fprintf(sb, "  doc: %s\n", strings.ReplaceAll(d.Doc, "\n", " "))
			}
		case detailSignatures:
			fmt.Fprintf(sb, "- [%s] %s\n", d.Kind, d.Signature)
		case detailNames:
			fmt.Fprintf(sb, "- [%s] %s\n", d.Kind, d.Name)
		}
	}
	sb.WriteString("\n")
}

func renderChildren(children []ChildSummary) string {
	if len(children) == 0 {
		return ""
	}
	var sb strings.Builder
	for _, c := range children {
		if c.Failed {
			fmt.Fprintf(&sb, "- %s: (documentation unavailable)\n", c.Name)
			continue
		}
		summary := c.Summary
		if summary == "" {
			summary = "no summary available"
		}
		fmt.Fprintf(&sb, "- %s: %s\n", c.Name, summary)
	}
	return sb.String()
}
