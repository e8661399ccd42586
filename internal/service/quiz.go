// Package service runs quiz sessions on top of the traversal engine: it
// loads and saves session records, records reached diagnoses and keeps the
// quiz metrics.
package service

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"sync"
	"time"

	"github.com/DoctorPlant/DrPlantTelegramApp/core/logger"
	"github.com/DoctorPlant/DrPlantTelegramApp/internal/diagnosis"
	"github.com/DoctorPlant/DrPlantTelegramApp/internal/metrics"
	"github.com/DoctorPlant/DrPlantTelegramApp/internal/quiz"
	"github.com/DoctorPlant/DrPlantTelegramApp/internal/session"
)

var (
	// ErrQuizNotFound reports an id missing from the catalog.
	ErrQuizNotFound = errors.New("service: quiz not found")
	// ErrSessionNotFound reports a key without a stored session.
	ErrSessionNotFound = errors.New("service: session not found")
	// ErrStaleOption reports an answer for a node that is no longer current,
	// typically a button pressed on an old message.
	ErrStaleOption = errors.New("service: option belongs to another node")
)

// Recorder persists reached diagnoses.
type Recorder interface {
	Record(ctx context.Context, e diagnosis.Entry) (int64, error)
}

// Options configures a Quiz service. Every field is optional.
type Options struct {
	Recorder Recorder
	Metrics  *metrics.Metrics
	// Channel is stored with every recorded diagnosis.
	Channel string
	Now     func() time.Time
}

// Quiz coordinates the catalog, the session store and the recorder.
type Quiz struct {
	catalog  *quiz.Catalog
	store    session.Store
	recorder Recorder
	metrics  *metrics.Metrics
	channel  string
	now      func() time.Time
	locks    *keyLocks
}

// NewQuiz builds the service.
func NewQuiz(catalog *quiz.Catalog, store session.Store, opts Options) *Quiz {
	now := opts.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Quiz{
		catalog:  catalog,
		store:    store,
		recorder: opts.Recorder,
		metrics:  opts.Metrics,
		channel:  opts.Channel,
		now:      now,
		locks:    &keyLocks{},
	}
}

// WithChannel returns a service sharing q's dependencies and locks that
// records diagnoses under channel.
func (q *Quiz) WithChannel(channel string) *Quiz {
	cp := *q
	cp.channel = channel
	return &cp
}

// Catalog returns the quiz catalog.
func (q *Quiz) Catalog() *quiz.Catalog { return q.catalog }

// View is a session snapshot ready for rendering.
type View struct {
	Key    string
	Tree   *quiz.Tree
	Record session.Record
	Node   quiz.Node
	// NodeID is the id of Node.
	NodeID string
}

// State returns the navigation state of the view.
func (v View) State() quiz.State { return v.Record.State }

// Terminal reports whether the view shows a result.
func (v View) Terminal() bool { return v.Node != nil && v.Node.Kind() == quiz.KindResult }

// CanGoBack reports whether Back would move.
func (v View) CanGoBack() bool { return v.Record.State.CanRetreat() }

// Start opens a fresh session of quizID under key, replacing any previous
// one. An empty quizID selects the catalog default.
func (q *Quiz) Start(ctx context.Context, key, quizID string, userID int64) (View, error) {
	tree, err := q.tree(quizID)
	if err != nil {
		return View{}, err
	}
	unlock := q.locks.lock(key)
	defer unlock()

	ctx = logger.WithSession(ctx, key, tree.ID)
	rec := session.Record{QuizID: tree.ID, State: tree.Initialize(), UserID: userID}
	v, err := q.save(ctx, key, tree, rec)
	if err != nil {
		return View{}, err
	}
	q.metrics.SessionStarted(tree.ID)
	logger.Info(ctx, logger.ComponentQuiz, "quiz.start",
		slog.String("node_id", v.NodeID),
	)
	q.arrived(ctx, v)
	return v, nil
}

// Current returns the stored session under key.
func (q *Quiz) Current(ctx context.Context, key string) (View, error) {
	_, v, err := q.load(ctx, key)
	return v, err
}

// Answer selects option index of the current question.
func (q *Quiz) Answer(ctx context.Context, key string, index int) (View, error) {
	return q.answer(ctx, key, "", index)
}

// AnswerAt is Answer guarded by the node the option was shown for. It fails
// with ErrStaleOption when nodeID is not the current node.
func (q *Quiz) AnswerAt(ctx context.Context, key, nodeID string, index int) (View, error) {
	if nodeID == "" {
		return View{}, fmt.Errorf("%w: empty node id", ErrStaleOption)
	}
	return q.answer(ctx, key, nodeID, index)
}

func (q *Quiz) answer(ctx context.Context, key, nodeID string, index int) (View, error) {
	unlock := q.locks.lock(key)
	defer unlock()

	tree, v, err := q.load(ctx, key)
	if err != nil {
		return View{}, err
	}
	ctx = logger.WithSession(ctx, key, tree.ID)
	if nodeID != "" && nodeID != v.NodeID {
		return v, fmt.Errorf("%w: %q, current is %q", ErrStaleOption, nodeID, v.NodeID)
	}
	next, err := tree.Advance(v.Record.State, index)
	if err != nil {
		logger.Warn(ctx, logger.ComponentQuiz, "quiz.answer",
			slog.String("status", "fail"),
			slog.String("node_id", v.NodeID),
			slog.Int("option", index),
			logger.Err(err),
		)
		return v, err
	}
	rec := v.Record
	rec.State = next
	out, err := q.save(ctx, key, tree, rec)
	if err != nil {
		return View{}, err
	}
	q.metrics.Answered(tree.ID)
	logger.Info(ctx, logger.ComponentQuiz, "quiz.answer",
		slog.String("status", "ok"),
		slog.String("node_id", v.NodeID),
		slog.Int("option", index),
		slog.String("node_kind", string(out.Node.Kind())),
	)
	q.arrived(ctx, out)
	return out, nil
}

// Back retreats one step. moved is false when the session was already at
// the start; the stored state is then left untouched.
func (q *Quiz) Back(ctx context.Context, key string) (View, bool, error) {
	unlock := q.locks.lock(key)
	defer unlock()

	tree, v, err := q.load(ctx, key)
	if err != nil {
		return View{}, false, err
	}
	ctx = logger.WithSession(ctx, key, tree.ID)
	prev, moved := tree.Retreat(v.Record.State)
	q.metrics.Back(tree.ID, moved)
	logger.Debug(ctx, logger.ComponentQuiz, "quiz.back",
		slog.Bool("moved", moved),
	)
	if !moved {
		return v, false, nil
	}
	rec := v.Record
	rec.State = prev
	out, err := q.save(ctx, key, tree, rec)
	if err != nil {
		return View{}, false, err
	}
	return out, true, nil
}

// Restart resets the session under key to the start of its quiz. Tags and
// history are cleared.
func (q *Quiz) Restart(ctx context.Context, key string) (View, error) {
	unlock := q.locks.lock(key)
	defer unlock()

	tree, v, err := q.load(ctx, key)
	if err != nil {
		return View{}, err
	}
	ctx = logger.WithSession(ctx, key, tree.ID)
	rec := v.Record
	rec.State = tree.Initialize()
	out, err := q.save(ctx, key, tree, rec)
	if err != nil {
		return View{}, err
	}
	q.metrics.SessionStarted(tree.ID)
	logger.Info(ctx, logger.ComponentQuiz, "quiz.restart")
	q.arrived(ctx, out)
	return out, nil
}

// End deletes the session under key.
func (q *Quiz) End(ctx context.Context, key string) error {
	if err := q.store.Delete(ctx, key); err != nil {
		return fmt.Errorf("service: delete session: %w", err)
	}
	return nil
}

func (q *Quiz) tree(id string) (*quiz.Tree, error) {
	if q.catalog == nil {
		return nil, fmt.Errorf("%w: empty catalog", ErrQuizNotFound)
	}
	if id == "" {
		if t := q.catalog.Default(); t != nil {
			return t, nil
		}
		return nil, fmt.Errorf("%w: no default quiz", ErrQuizNotFound)
	}
	t, ok := q.catalog.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrQuizNotFound, id)
	}
	return t, nil
}

func (q *Quiz) load(ctx context.Context, key string) (*quiz.Tree, View, error) {
	rec, err := q.store.Load(ctx, key)
	if errors.Is(err, session.ErrNotFound) {
		return nil, View{}, fmt.Errorf("%w: %s", ErrSessionNotFound, key)
	}
	if err != nil {
		return nil, View{}, fmt.Errorf("service: load session: %w", err)
	}
	tree, err := q.tree(rec.QuizID)
	if err != nil {
		return nil, View{}, err
	}
	v, err := view(key, tree, rec)
	if err != nil {
		return nil, View{}, err
	}
	return tree, v, nil
}

func (q *Quiz) save(ctx context.Context, key string, tree *quiz.Tree, rec session.Record) (View, error) {
	rec.UpdatedAt = q.now()
	v, err := view(key, tree, rec)
	if err != nil {
		return View{}, err
	}
	if err := q.store.Save(ctx, key, rec); err != nil {
		return View{}, fmt.Errorf("service: save session: %w", err)
	}
	return v, nil
}

func view(key string, tree *quiz.Tree, rec session.Record) (View, error) {
	n, err := tree.CurrentNode(rec.State)
	if err != nil {
		return View{}, err
	}
	return View{Key: key, Tree: tree, Record: rec, Node: n, NodeID: rec.State.CurrentID}, nil
}

// arrived records a diagnosis when v shows a result. Recorder failures are
// logged and never returned.
func (q *Quiz) arrived(ctx context.Context, v View) {
	if !v.Terminal() {
		return
	}
	ctx = logger.WithSession(ctx, v.Key, v.Tree.ID)
	st := v.Record.State
	q.metrics.ResultReached(v.Tree.ID, v.NodeID)
	logger.Info(ctx, logger.ComponentQuiz, "quiz.result",
		slog.String("result_id", v.NodeID),
		slog.Any("tags", st.Tags),
	)
	if q.recorder == nil {
		return
	}
	path := make([]string, 0, len(st.History)+1)
	path = append(path, st.History...)
	path = append(path, st.CurrentID)
	_, err := q.recorder.Record(ctx, diagnosis.Entry{
		QuizID:    v.Tree.ID,
		ResultID:  v.NodeID,
		UserID:    v.Record.UserID,
		Channel:   q.channel,
		Tags:      append([]string{}, st.Tags...),
		Path:      path,
		CreatedAt: v.Record.UpdatedAt,
	})
	if err != nil {
		logger.Error(ctx, logger.ComponentQuiz, "diagnosis.record",
			slog.String("status", "fail"),
			slog.String("result_id", v.NodeID),
			logger.Err(err),
		)
	}
}

const lockStripes = 64

// keyLocks serialises load-modify-save cycles per session key within one
// process.
type keyLocks struct {
	stripes [lockStripes]sync.Mutex
}

func (l *keyLocks) lock(key string) func() {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	m := &l.stripes[h.Sum32()%lockStripes]
	m.Lock()
	return m.Unlock
}
