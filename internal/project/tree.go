package project

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"path"
	"sort"
	"strings"

	"docflow/internal/extractor"
)

// NodeKind distinguishes directory-level nodes from file-level ones.
type NodeKind string

const (
	NodePackage NodeKind = "package" // directory / package
	NodeModule  NodeKind = "module"  // single source file
)

// TreeNode is one node of the project model, mirroring filesystem nesting.
// The tree is acyclic by construction.
type TreeNode struct {
	// ID is a pure function of Path, reproducible across runs with no
	// persisted state. Re-runs address the same remote entity through it.
	ID   string
	Name string
	// Path is the slash-separated module path relative to the project
	// root ("." for the root itself). File extensions are stripped so a
	// module keeps its identity if the file is renamed across dialects.
	Path string
	Kind NodeKind
	// Record is set for module nodes only.
	Record   *extractor.StructuralRecord
	Children []*TreeNode
	// Fingerprint hashes the node's own structure plus every descendant
	// fingerprint, so a change anywhere propagates to the root.
	Fingerprint string
}

// NodeID derives the stable identifier for a module path.
func NodeID(modulePath string) string {
	sum := sha256.Sum256([]byte("docflow:" + modulePath))
	return hex.EncodeToString(sum[:16])
}

// ModulePath converts a source file path into its module path by dropping
// the extension ("pkg/util.py" -> "pkg/util").
func ModulePath(filePath string) string {
	ext := path.Ext(filePath)
	return strings.TrimSuffix(filePath, ext)
}

// Build aggregates per-file records into a single ordered tree. Children
// are sorted lexicographically by path, never in enumeration order, so two
// runs over an unchanged project yield byte-identical fingerprints.
func Build(projectName string, records []*extractor.StructuralRecord) *TreeNode {
	root := &TreeNode{
		ID:   NodeID("."),
		Name: projectName,
		Path: ".",
		Kind: NodePackage,
	}

	dirs := map[string]*TreeNode{".": root}

	// ensureDir creates the directory chain for a slash path.
	var ensureDir func(dir string) *TreeNode
	ensureDir = func(dir string) *TreeNode {
		if node, ok := dirs[dir]; ok {
			return node
		}
		parent := ensureDir(parentPath(dir))
		node := &TreeNode{
			ID:   NodeID(dir),
			Name: path.Base(dir),
			Path: dir,
			Kind: NodePackage,
		}
		parent.Children = append(parent.Children, node)
		dirs[dir] = node
		return node
	}

	for _, rec := range records {
		modPath := ModulePath(rec.Path)
		parent := ensureDir(parentPath(modPath))
		parent.Children = append(parent.Children, &TreeNode{
			ID:     NodeID(modPath),
			Name:   path.Base(modPath),
			Path:   modPath,
			Kind:   NodeModule,
			Record: rec,
		})
	}

	sortTree(root)
	fingerprint(root)
	return root
}

func parentPath(p string) string {
	dir := path.Dir(p)
	if dir == "" || dir == "/" {
		return "."
	}
	return dir
}

func sortTree(node *TreeNode) {
	sort.Slice(node.Children, func(i, j int) bool {
		return node.Children[i].Path < node.Children[j].Path
	})
	for _, child := range node.Children {
		sortTree(child)
	}
}

// fingerprint computes hashes bottom-up. A module hashes its structural
// record; a package hashes its own name plus the ordered child
// fingerprints.
func fingerprint(node *TreeNode) string {
	h := sha256.New()
	if node.Record != nil {
		// JSON encoding of the record is canonical: field order is fixed
		// by the struct definitions and slices preserve source order.
		data, _ := json.Marshal(node.Record)
		h.Write(data)
	}
	fmt.Fprintf(h, "name:%s\n", node.Name)
	for _, child := range node.Children {
		fmt.Fprintf(h, "child:%s=%s\n", child.Path, fingerprint(child))
	}
	node.Fingerprint = hex.EncodeToString(h.Sum(nil))
	return node.Fingerprint
}

// Walk visits the tree depth-first, parents before children.
func (n *TreeNode) Walk(fn func(*TreeNode)) {
	fn(n)
	for _, child := range n.Children {
		child.Walk(fn)
	}
}

// PostOrder visits children before their parent, the order synthesis
// needs: a parent's prompt observes every child's result.
func (n *TreeNode) PostOrder(fn func(*TreeNode)) {
	for _, child := range n.Children {
		child.PostOrder(fn)
	}
	fn(n)
}

// Count returns the number of nodes in the subtree, including n.
func (n *TreeNode) Count() int {
	count := 1
	for _, child := range n.Children {
		count += child.Count()
	}
	return count
}
