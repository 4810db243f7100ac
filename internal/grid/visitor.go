package grid

// Visitor acts on one node at a time during a dispatch.
type Visitor interface {
	VisitNode(n *Node)
}

// VisitorFunc adapts a plain function to Visitor.
type VisitorFunc func(n *Node)

func (f VisitorFunc) VisitNode(n *Node) { f(n) }

// updateVisitor re-derives node geometry after a refresh.
type updateVisitor struct {
	info *Info
}

func (u updateVisitor) VisitNode(n *Node) { n.Refresh(u.info) }
