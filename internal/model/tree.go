// File: internal/model/tree.go
package model

import "fmt"

// leafFeature marks a node without a split.
const leafFeature = -1

// Node is one entry of a flattened binary tree. Rows with x[Feature] <= Threshold go Left.
// Value carries the leaf payload, whose meaning depends on the ensemble.
type Node struct {
	Feature   int       `json:"feature"`
	Threshold float64   `json:"threshold,omitempty"`
	Left      int       `json:"left,omitempty"`
	Right     int       `json:"right,omitempty"`
	Value     []float64 `json:"value,omitempty"`
}

// IsLeaf reports whether the node terminates a path.
func (n Node) IsLeaf() bool {
	return n.Feature == leafFeature
}

// Tree is a binary tree stored in pre-order; children always follow their parent.
type Tree struct {
	Nodes []Node `json:"nodes"`
}

// walk returns the leaf reached by x and the number of edges traversed.
func (t *Tree) walk(x []float64) (Node, int) {
	i, depth := 0, 0
	for {
		n := t.Nodes[i]
		if n.IsLeaf() {
			return n, depth
		}
		if x[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
		depth++
	}
}

// validate guarantees walk terminates and only reads valid features and payloads.
func (t *Tree) validate(nFeatures, valueLen int) error {
	if len(t.Nodes) == 0 {
		return fmt.Errorf("tree has no nodes")
	}
	for i, n := range t.Nodes {
		if n.IsLeaf() {
			if len(n.Value) != valueLen {
				return fmt.Errorf("leaf %d has %d values, expected %d", i, len(n.Value), valueLen)
			}
			continue
		}
		if n.Feature < 0 || n.Feature >= nFeatures {
			return fmt.Errorf("node %d splits on feature %d of %d", i, n.Feature, nFeatures)
		}
		if n.Left <= i || n.Right <= i || n.Left >= len(t.Nodes) || n.Right >= len(t.Nodes) {
			return fmt.Errorf("node %d has invalid children (%d, %d)", i, n.Left, n.Right)
		}
	}
	return nil
}

// treeBuilder appends nodes in pre-order.
type treeBuilder struct {
	nodes []Node
}

func (b *treeBuilder) leaf(value []float64) int {
	b.nodes = append(b.nodes, Node{Feature: leafFeature, Value: value})
	return len(b.nodes) - 1
}

// split reserves a split node; children are attached once they are built.
func (b *treeBuilder) split(feature int, threshold float64) int {
	b.nodes = append(b.nodes, Node{Feature: feature, Threshold: threshold})
	return len(b.nodes) - 1
}

func (b *treeBuilder) attach(parent, left, right int) {
	b.nodes[parent].Left = left
	b.nodes[parent].Right = right
}

func (b *treeBuilder) tree() Tree {
	return Tree{Nodes: b.nodes}
}
