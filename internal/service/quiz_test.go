package service

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/DoctorPlant/DrPlantTelegramApp/internal/diagnosis"
	"github.com/DoctorPlant/DrPlantTelegramApp/internal/metrics"
	"github.com/DoctorPlant/DrPlantTelegramApp/internal/quiz"
	"github.com/DoctorPlant/DrPlantTelegramApp/internal/session"
)

const doc = `{
  "id": "plant-doctor",
  "title": "Plant doctor",
  "start": "q1",
  "nodes": {
    "q1": {"type": "question", "text": "Leaves yellow?", "options": [
      {"text": "Yes", "next": "r1", "tags": ["overwater"]},
      {"text": "No", "next": "q2"}
    ]},
    "q2": {"type": "question", "text": "Brown spots?", "options": [
      {"text": "Yes", "next": "r2", "tags": ["fungus"]},
      {"text": "No", "next": "r1"}
    ]},
    "r1": {"type": "result", "title": "Overwatering", "diagnosis": "Too wet.", "actions": ["Water less"]},
    "r2": {"type": "result", "title": "Leaf spot", "diagnosis": "Fungus.", "actions": ["Remove leaves"]}
  }
}`

type fakeRecorder struct {
	mu      sync.Mutex
	entries []diagnosis.Entry
	err     error
}

func (f *fakeRecorder) Record(_ context.Context, e diagnosis.Entry) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	f.entries = append(f.entries, e)
	return int64(len(f.entries)), nil
}

func newService(t *testing.T, rec Recorder) *Quiz {
	t.Helper()
	tree, err := quiz.Parse([]byte(doc), quiz.FormatJSON)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	cat, err := quiz.NewCatalog("", tree)
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	now := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	return NewQuiz(cat, session.NewMemoryStore(), Options{
		Recorder: rec,
		Metrics:  metrics.New(),
		Channel:  diagnosis.ChannelBot,
		Now:      func() time.Time { return now },
	})
}

func TestStartAnswerReachesResultAndRecords(t *testing.T) {
	ctx := context.Background()
	rec := &fakeRecorder{}
	svc := newService(t, rec)

	v, err := svc.Start(ctx, "chat:1", "", 42)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if v.NodeID != "q1" || v.Terminal() || v.CanGoBack() {
		t.Fatalf("start view = %+v", v)
	}

	v, err = svc.Answer(ctx, "chat:1", 1)
	if err != nil {
		t.Fatalf("answer: %v", err)
	}
	if v.NodeID != "q2" || !v.CanGoBack() {
		t.Fatalf("after answer = %+v", v)
	}

	v, err = svc.AnswerAt(ctx, "chat:1", "q2", 0)
	if err != nil {
		t.Fatalf("answer at: %v", err)
	}
	if !v.Terminal() || v.NodeID != "r2" {
		t.Fatalf("expected r2 result, got %+v", v)
	}
	if len(rec.entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(rec.entries))
	}
	e := rec.entries[0]
	if e.ResultID != "r2" || e.UserID != 42 || e.Channel != diagnosis.ChannelBot {
		t.Fatalf("entry = %+v", e)
	}
	if !reflect.DeepEqual(e.Path, []string{"q1", "q2", "r2"}) || !reflect.DeepEqual(e.Tags, []string{"fungus"}) {
		t.Fatalf("entry path/tags = %v %v", e.Path, e.Tags)
	}

	cur, err := svc.Current(ctx, "chat:1")
	if err != nil || cur.NodeID != "r2" {
		t.Fatalf("current = %+v, %v", cur, err)
	}
}

func TestAnswerErrors(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, nil)

	if _, err := svc.Answer(ctx, "nobody", 0); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("err = %v, want ErrSessionNotFound", err)
	}
	if _, err := svc.Start(ctx, "k", "ghost", 0); !errors.Is(err, ErrQuizNotFound) {
		t.Fatalf("err = %v, want ErrQuizNotFound", err)
	}

	if _, err := svc.Start(ctx, "k", "plant-doctor", 0); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := svc.Answer(ctx, "k", 5); !errors.Is(err, quiz.ErrInvalidOption) {
		t.Fatalf("err = %v, want ErrInvalidOption", err)
	}
	v, err := svc.AnswerAt(ctx, "k", "q2", 0)
	if !errors.Is(err, ErrStaleOption) {
		t.Fatalf("err = %v, want ErrStaleOption", err)
	}
	if v.NodeID != "q1" {
		t.Fatalf("stale answer should return the current view, got %q", v.NodeID)
	}

	if _, err := svc.Answer(ctx, "k", 0); err != nil {
		t.Fatalf("answer: %v", err)
	}
	if _, err := svc.Answer(ctx, "k", 0); !errors.Is(err, quiz.ErrNotAQuestion) {
		t.Fatalf("err = %v, want ErrNotAQuestion", err)
	}
}

func TestBackAndRestart(t *testing.T) {
	ctx := context.Background()
	rec := &fakeRecorder{}
	svc := newService(t, rec)
	if _, err := svc.Start(ctx, "k", "", 0); err != nil {
		t.Fatalf("start: %v", err)
	}

	v, moved, err := svc.Back(ctx, "k")
	if err != nil || moved || v.NodeID != "q1" {
		t.Fatalf("back at start = %+v moved=%v err=%v", v, moved, err)
	}

	if _, err := svc.Answer(ctx, "k", 0); err != nil {
		t.Fatalf("answer: %v", err)
	}
	v, moved, err = svc.Back(ctx, "k")
	if err != nil || !moved || v.NodeID != "q1" {
		t.Fatalf("back = %+v moved=%v err=%v", v, moved, err)
	}
	if !reflect.DeepEqual(v.State().Tags, []string{"overwater"}) {
		t.Fatalf("tags after back = %v", v.State().Tags)
	}

	if _, err := svc.Answer(ctx, "k", 0); err != nil {
		t.Fatalf("answer again: %v", err)
	}
	if len(rec.entries) != 2 {
		t.Fatalf("each arrival must be recorded, got %d", len(rec.entries))
	}

	v, err = svc.Restart(ctx, "k")
	if err != nil {
		t.Fatalf("restart: %v", err)
	}
	if v.NodeID != "q1" || len(v.State().Tags) != 0 || len(v.State().History) != 0 {
		t.Fatalf("restart view = %+v", v.State())
	}

	if err := svc.End(ctx, "k"); err != nil {
		t.Fatalf("end: %v", err)
	}
	if _, err := svc.Current(ctx, "k"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("err = %v", err)
	}
}

func TestRecorderFailureIsNotSurfaced(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, &fakeRecorder{err: errors.New("db down")})
	if _, err := svc.Start(ctx, "k", "", 0); err != nil {
		t.Fatalf("start: %v", err)
	}
	v, err := svc.Answer(ctx, "k", 0)
	if err != nil {
		t.Fatalf("answer: %v", err)
	}
	if !v.Terminal() {
		t.Fatal("expected result")
	}
}

func TestWithChannel(t *testing.T) {
	ctx := context.Background()
	rec := &fakeRecorder{}
	svc := newService(t, rec).WithChannel(diagnosis.ChannelWebApp)
	if _, err := svc.Start(ctx, "k", "", 7); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := svc.Answer(ctx, "k", 0); err != nil {
		t.Fatalf("answer: %v", err)
	}
	if rec.entries[0].Channel != diagnosis.ChannelWebApp {
		t.Fatalf("channel = %q", rec.entries[0].Channel)
	}
}

func TestConcurrentAnswersAreSerialised(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, nil)
	if _, err := svc.Start(ctx, "k", "", 0); err != nil {
		t.Fatalf("start: %v", err)
	}
	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.AnswerAt(ctx, "k", "q1", 1)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	var ok, stale int
	for err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrStaleOption):
			stale++
		default:
			t.Fatalf("unexpected err: %v", err)
		}
	}
	if ok != 1 || stale != 1 {
		t.Fatalf("ok=%d stale=%d", ok, stale)
	}
}
