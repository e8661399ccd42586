package quiz

import (
	"fmt"
	"sort"
	"strings"
)

// Validate checks the structural invariants of a tree: Start resolves, every
// option target resolves, node ids are non-empty and every question has at
// least one option. All problems are reported together.
func Validate(t *Tree) error {
	if t == nil {
		return &ValidationError{Problems: []Problem{{Reason: "nil tree"}}}
	}
	var problems []Problem

	if strings.TrimSpace(t.Start) == "" {
		problems = append(problems, Problem{Path: "start", Reason: "required"})
	} else if _, ok := t.Node(t.Start); !ok {
		problems = append(problems, Problem{Path: "start", Reason: fmt.Sprintf("references missing node %q", t.Start)})
	}
	if len(t.Nodes) == 0 {
		problems = append(problems, Problem{Path: "nodes", Reason: "at least one node is required"})
	}

	for _, id := range sortedIDs(t.Nodes) {
		n := t.Nodes[id]
		path := "nodes." + id
		if id == "" {
			problems = append(problems, Problem{Path: "nodes", Reason: "empty node id"})
			path = `nodes.""`
		}
		if n == nil {
			problems = append(problems, Problem{Path: path, Reason: "nil node"})
			continue
		}
		q, ok := n.(*Question)
		if !ok {
			continue
		}
		if len(q.Options) == 0 {
			problems = append(problems, Problem{Path: path + ".options", Reason: "question has no options"})
		}
		for i, opt := range q.Options {
			optPath := fmt.Sprintf("%s.options[%d].next", path, i)
			if opt.Next == "" {
				problems = append(problems, Problem{Path: optPath, Reason: "required"})
				continue
			}
			if _, ok := t.Node(opt.Next); !ok {
				problems = append(problems, Problem{Path: optPath, Reason: fmt.Sprintf("references missing node %q", opt.Next)})
			}
		}
	}

	if len(problems) > 0 {
		return &ValidationError{Source: t.ID, Problems: problems}
	}
	return nil
}

// Unreachable lists node ids that no path from Start can visit, sorted.
func Unreachable(t *Tree) []string {
	reach := t.Reachable()
	var out []string
	for _, id := range sortedIDs(t.Nodes) {
		if _, ok := reach[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}

func sortedIDs(nodes map[string]Node) []string {
	ids := make([]string, 0, len(nodes))
	for id := range nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
