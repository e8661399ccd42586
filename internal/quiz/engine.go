package quiz

import "fmt"

// State is the navigation state of one quiz session. Engine operations never
// modify a State in place; they return a new value that shares no slices with
// its input.
type State struct {
	CurrentID string   `json:"current_id"`
	History   []string `json:"history"`
	Tags      []string `json:"tags"`
}

// Initialize returns the state of a fresh session positioned at Start.
func (t *Tree) Initialize() State {
	return State{
		CurrentID: t.Start,
		History:   []string{},
		Tags:      []string{},
	}
}

// CurrentNode returns the node the state points at.
func (t *Tree) CurrentNode(s State) (Node, error) {
	n, ok := t.Node(s.CurrentID)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNodeNotFound, s.CurrentID)
	}
	return n, nil
}

// Advance selects option index of the current question. History gains the
// current id and tags gain the option's tags, both appended in order.
func (t *Tree) Advance(s State, index int) (State, error) {
	n, err := t.CurrentNode(s)
	if err != nil {
		return State{}, err
	}
	q, ok := n.(*Question)
	if !ok {
		return State{}, fmt.Errorf("%w: %q is a %s", ErrNotAQuestion, s.CurrentID, n.Kind())
	}
	if index < 0 || index >= len(q.Options) {
		return State{}, fmt.Errorf("%w: index %d, node %q has %d options", ErrInvalidOption, index, s.CurrentID, len(q.Options))
	}
	chosen := q.Options[index]

	history := make([]string, 0, len(s.History)+1)
	history = append(history, s.History...)
	history = append(history, s.CurrentID)

	tags := make([]string, 0, len(s.Tags)+len(chosen.Tags))
	tags = append(tags, s.Tags...)
	tags = append(tags, chosen.Tags...)

	return State{CurrentID: chosen.Next, History: history, Tags: tags}, nil
}

// Retreat moves back to the most recently visited node. The second result is
// false when history is empty; the returned state is then an unchanged copy
// and the caller decides where to go. Tags are kept.
func (t *Tree) Retreat(s State) (State, bool) {
	if len(s.History) == 0 {
		return s.clone(), false
	}
	last := len(s.History) - 1
	history := make([]string, last)
	copy(history, s.History[:last])
	return State{
		CurrentID: s.History[last],
		History:   history,
		Tags:      append([]string{}, s.Tags...),
	}, true
}

// IsTerminal reports whether the state points at a result node.
func (t *Tree) IsTerminal(s State) bool {
	n, ok := t.Node(s.CurrentID)
	return ok && n.Kind() == KindResult
}

// CanRetreat reports whether Retreat would move.
func (s State) CanRetreat() bool { return len(s.History) > 0 }

func (s State) clone() State {
	return State{
		CurrentID: s.CurrentID,
		History:   append([]string{}, s.History...),
		Tags:      append([]string{}, s.Tags...),
	}
}
