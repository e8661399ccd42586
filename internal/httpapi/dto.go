package httpapi

import (
	"github.com/DoctorPlant/DrPlantTelegramApp/internal/assets"
	"github.com/DoctorPlant/DrPlantTelegramApp/internal/quiz"
	"github.com/DoctorPlant/DrPlantTelegramApp/internal/service"
)

type quizSummary struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

type treeJSON struct {
	ID    string              `json:"id"`
	Title string              `json:"title"`
	Start string              `json:"start"`
	Nodes map[string]nodeJSON `json:"nodes"`
}

type nodeJSON struct {
	ID   string    `json:"id"`
	Type quiz.Kind `json:"type"`

	Text    string       `json:"text,omitempty"`
	Options []optionJSON `json:"options,omitempty"`

	Title      string        `json:"title,omitempty"`
	Diagnosis  string        `json:"diagnosis,omitempty"`
	Actions    []string      `json:"actions,omitempty"`
	Products   []productJSON `json:"products,omitempty"`
	Fertilizer string        `json:"fertilizer,omitempty"`
}

type optionJSON struct {
	Index int      `json:"index"`
	Text  string   `json:"text"`
	Next  string   `json:"next"`
	Tags  []string `json:"tags,omitempty"`
}

type productJSON struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Image       string     `json:"image,omitempty"`
	Links       []linkJSON `json:"links"`
}

type linkJSON struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

type sessionView struct {
	SessionID string     `json:"session_id"`
	QuizID    string     `json:"quiz_id"`
	State     quiz.State `json:"state"`
	Node      nodeJSON   `json:"node"`
	Terminal  bool       `json:"terminal"`
	CanGoBack bool       `json:"can_go_back"`
	Moved     *bool      `json:"moved,omitempty"`
}

type answerRequest struct {
	Option *int `json:"option"`
	// NodeID, when set, rejects the answer if the session moved on.
	NodeID string `json:"node_id,omitempty"`
}

type errorBody struct {
	Error string `json:"error"`
}

// nodeEncoder turns nodes into their JSON form with image URLs resolved.
type nodeEncoder struct {
	id       string
	resolver *assets.Resolver
	out      nodeJSON
}

func (e *nodeEncoder) VisitQuestion(q *quiz.Question) error {
	e.out = nodeJSON{ID: e.id, Type: quiz.KindQuestion, Text: q.Text, Options: make([]optionJSON, 0, len(q.Options))}
	for i, o := range q.Options {
		e.out.Options = append(e.out.Options, optionJSON{Index: i, Text: o.Text, Next: o.Next, Tags: o.Tags})
	}
	return nil
}

func (e *nodeEncoder) VisitResult(r *quiz.Result) error {
	e.out = nodeJSON{
		ID:         e.id,
		Type:       quiz.KindResult,
		Title:      r.Title,
		Diagnosis:  r.Diagnosis,
		Actions:    r.Actions,
		Fertilizer: r.Fertilizer,
	}
	for _, p := range r.Products {
		pj := productJSON{Name: p.Name, Description: p.Description, Image: e.resolver.Resolve(p.Image), Links: []linkJSON{}}
		for _, l := range p.Links {
			pj.Links = append(pj.Links, linkJSON{Title: l.Title, URL: l.URL})
		}
		e.out.Products = append(e.out.Products, pj)
	}
	return nil
}

func encodeNode(id string, n quiz.Node, r *assets.Resolver) nodeJSON {
	enc := &nodeEncoder{id: id, resolver: r}
	_ = n.Accept(enc)
	return enc.out
}

func encodeTree(t *quiz.Tree, r *assets.Resolver) treeJSON {
	out := treeJSON{ID: t.ID, Title: t.Title, Start: t.Start, Nodes: make(map[string]nodeJSON, len(t.Nodes))}
	for id, n := range t.Nodes {
		out.Nodes[id] = encodeNode(id, n, r)
	}
	return out
}

func encodeView(sessionID string, v service.View, r *assets.Resolver) sessionView {
	return sessionView{
		SessionID: sessionID,
		QuizID:    v.Record.QuizID,
		State:     v.State(),
		Node:      encodeNode(v.NodeID, v.Node, r),
		Terminal:  v.Terminal(),
		CanGoBack: v.CanGoBack(),
	}
}
