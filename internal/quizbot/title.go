package quizbot

import "github.com/DoctorPlant/DrPlantTelegramApp/internal/quiz"

// titleVisitor extracts a display title from a node.
type titleVisitor struct{ title string }

func (t *titleVisitor) VisitQuestion(q *quiz.Question) error { t.title = q.Text; return nil }
func (t *titleVisitor) VisitResult(r *quiz.Result) error     { t.title = r.Title; return nil }

func resultTitle(n quiz.Node, fallback string) string {
	tv := &titleVisitor{title: fallback}
	_ = n.Accept(tv)
	if tv.title == "" {
		return fallback
	}
	return tv.title
}
