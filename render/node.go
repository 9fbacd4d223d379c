package render

// Node is one sprite in the host's flat display list: a position and a
// texture region, optionally parented under another Node so a whole
// subtree can be torn down together. Unlike the teacher's scene-graph
// Node, there is no transform matrix, rotation, scale, alpha, or
// animation state — EbitenHost only ever moves a sprite and swaps its
// texture region, so that's all a Node carries.
type Node struct {
	ID   uint64
	Name string

	X, Y          float64
	TextureRegion TextureRegion

	Parent   *Node
	Children []*Node

	disposed bool
}

var nextNodeID uint64

// NewSprite creates a detached Node displaying region. The caller parents
// it (AddChild) before it becomes visible.
func NewSprite(name string, region TextureRegion) *Node {
	nextNodeID++
	return &Node{ID: nextNodeID, Name: name, TextureRegion: region}
}

// SetTextureRegion swaps the sprite's displayed region, e.g. when an
// agent's pose changes facing or animation frame.
func (n *Node) SetTextureRegion(r TextureRegion) {
	n.TextureRegion = r
}

// AddChild parents child under n, detaching it from any prior parent.
func (n *Node) AddChild(child *Node) {
	if child == nil {
		panic("render: cannot add nil child")
	}
	if child.Parent != nil {
		child.Parent.removeChild(child)
	}
	child.Parent = n
	n.Children = append(n.Children, child)
}

func (n *Node) removeChild(child *Node) {
	for i, c := range n.Children {
		if c == child {
			n.Children = append(n.Children[:i], n.Children[i+1:]...)
			return
		}
	}
}

// Dispose detaches n from its parent and marks it (and its subtree) dead.
// A disposed Node must not be reused.
func (n *Node) Dispose() {
	if n.disposed {
		return
	}
	n.disposed = true
	if n.Parent != nil {
		n.Parent.removeChild(n)
		n.Parent = nil
	}
	children := n.Children
	n.Children = nil
	for _, c := range children {
		c.Parent = nil // already being detached via the slice above
		c.Dispose()
	}
}

// IsDisposed reports whether Dispose has been called on n.
func (n *Node) IsDisposed() bool {
	return n.disposed
}
