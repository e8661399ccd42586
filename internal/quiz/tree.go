package quiz

// Kind identifies the variant of a Node.
type Kind string

const (
	// KindQuestion marks a node that offers options and continues the quiz.
	KindQuestion Kind = "question"
	// KindResult marks a terminal diagnosis node.
	KindResult Kind = "result"
)

// Tree is an immutable quiz definition. Build it with Parse or LoadFile so
// that it is validated before use; a Tree must not be modified afterwards.
type Tree struct {
	ID    string
	Title string
	Start string
	Nodes map[string]Node
}

// Node is one step of a quiz. The set of implementations is closed: only
// *Question and *Result satisfy it.
type Node interface {
	Kind() Kind
	Accept(v Visitor) error
	sealed()
}

// Visitor dispatches over every node kind. Adding a kind adds a method here,
// which breaks every consumer until it handles the new kind.
type Visitor interface {
	VisitQuestion(q *Question) error
	VisitResult(r *Result) error
}

// Question offers ordered options; order is display and selection order.
type Question struct {
	Text    string
	Options []Option
}

// Kind implements Node.
func (*Question) Kind() Kind { return KindQuestion }

// Accept implements Node.
func (q *Question) Accept(v Visitor) error { return v.VisitQuestion(q) }

func (*Question) sealed() {}

// Option is a selectable answer of a Question.
type Option struct {
	Text string
	Next string
	Tags []string
}

// Result is a terminal node with the diagnosis shown to the user.
type Result struct {
	Title     string
	Diagnosis string
	Actions   []string
	// Products and Fertilizer are both optional and may be set together.
	Products   []Product
	Fertilizer string
}

// Kind implements Node.
func (*Result) Kind() Kind { return KindResult }

// Accept implements Node.
func (r *Result) Accept(v Visitor) error { return v.VisitResult(r) }

func (*Result) sealed() {}

// Product is a recommended product listed on a Result.
type Product struct {
	Name        string
	Description string
	// Image is an opaque asset reference; see package assets for resolution.
	Image string
	Links []Link
}

// Link is a labelled external URL of a Product.
type Link struct {
	Title string
	URL   string
}

// Node returns the node stored under id.
func (t *Tree) Node(id string) (Node, bool) {
	if t == nil {
		return nil, false
	}
	n, ok := t.Nodes[id]
	return n, ok && n != nil
}

// Reachable returns the set of node ids reachable from Start.
func (t *Tree) Reachable() map[string]struct{} {
	seen := make(map[string]struct{}, len(t.Nodes))
	if _, ok := t.Node(t.Start); !ok {
		return seen
	}
	queue := []string{t.Start}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if _, done := seen[id]; done {
			continue
		}
		n, ok := t.Node(id)
		if !ok {
			continue
		}
		seen[id] = struct{}{}
		if q, isQ := n.(*Question); isQ {
			for _, opt := range q.Options {
				if _, done := seen[opt.Next]; !done {
					queue = append(queue, opt.Next)
				}
			}
		}
	}
	return seen
}
