package collection

import (
	"errors"
	"fmt"
)

// NodeID addresses a node inside a Tree.
type NodeID int

// Root is the parent ID used for top-level nodes.
const Root NodeID = -1

var ErrUnknownNode = errors.New("unknown node")

type entry struct {
	parent   NodeID
	node     Node
	children []NodeID
}

// Tree is an arena of collection nodes. Nodes are appended and never moved,
// so a NodeID stays valid for the lifetime of the tree.
type Tree struct {
	Name  string
	nodes []entry
	roots []NodeID
}

func NewTree(name string) *Tree {
	return &Tree{Name: name}
}

// Add appends n under parent. The parent must be Root or a group.
func (t *Tree) Add(parent NodeID, n Node) (NodeID, error) {
	if n == nil {
		return 0, fmt.Errorf("add node: nil node")
	}
	if parent != Root {
		if !t.valid(parent) {
			return 0, fmt.Errorf("add node %q: parent %d: %w", n.NodeName(), parent, ErrUnknownNode)
		}
		if _, ok := t.nodes[parent].node.(*Group); !ok {
			return 0, fmt.Errorf("add node %q: parent %q is not a group", n.NodeName(), t.nodes[parent].node.NodeName())
		}
	}

	id := NodeID(len(t.nodes))
	t.nodes = append(t.nodes, entry{parent: parent, node: n})
	if parent == Root {
		t.roots = append(t.roots, id)
	} else {
		t.nodes[parent].children = append(t.nodes[parent].children, id)
	}
	return id, nil
}

// AddGroup is Add for groups.
func (t *Tree) AddGroup(parent NodeID, g *Group) (NodeID, error) {
	return t.Add(parent, g)
}

// AddItem is Add for items.
func (t *Tree) AddItem(parent NodeID, it *Item) (NodeID, error) {
	return t.Add(parent, it)
}

func (t *Tree) valid(id NodeID) bool {
	return id >= 0 && int(id) < len(t.nodes)
}

// Len returns the number of nodes in the tree.
func (t *Tree) Len() int {
	return len(t.nodes)
}

// Node returns the node stored at id, or nil.
func (t *Tree) Node(id NodeID) Node {
	if !t.valid(id) {
		return nil
	}
	return t.nodes[id].node
}

// Item returns the item stored at id.
func (t *Tree) Item(id NodeID) (*Item, bool) {
	it, ok := t.Node(id).(*Item)
	return it, ok && it != nil
}

func (t *Tree) Parent(id NodeID) NodeID {
	if !t.valid(id) {
		return Root
	}
	return t.nodes[id].parent
}

func (t *Tree) Roots() []NodeID {
	return append([]NodeID(nil), t.roots...)
}

func (t *Tree) Children(id NodeID) []NodeID {
	if !t.valid(id) {
		return nil
	}
	return append([]NodeID(nil), t.nodes[id].children...)
}

// Ancestors returns the chain of nodes above id, ordered outer to inner
// (root group first, immediate parent last). The walk is bounded by the
// arena size so a corrupted parent link cannot loop forever.
func (t *Tree) Ancestors(id NodeID) []Node {
	if !t.valid(id) {
		return nil
	}
	var chain []Node
	cur := t.nodes[id].parent
	for steps := 0; cur != Root && t.valid(cur) && steps < len(t.nodes); steps++ {
		chain = append(chain, t.nodes[cur].node)
		cur = t.nodes[cur].parent
	}
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain
}

// Items returns every item ID in depth-first, declaration order.
func (t *Tree) Items() []NodeID {
	var out []NodeID
	var walk func(ids []NodeID)
	walk = func(ids []NodeID) {
		for _, id := range ids {
			switch t.nodes[id].node.(type) {
			case *Item:
				out = append(out, id)
			case *Group:
				walk(t.nodes[id].children)
			}
		}
	}
	walk(t.roots)
	return out
}

// Path returns the names from the outermost ancestor down to id joined by
// " / ".
func (t *Tree) Path(id NodeID) string {
	n := t.Node(id)
	if n == nil {
		return ""
	}
	path := ""
	for _, a := range t.Ancestors(id) {
		path += a.NodeName() + " / "
	}
	return path + n.NodeName()
}
