package logger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"
)

type logFormat string

const (
	formatJSON logFormat = "json"
	formatKV   logFormat = "kv"
)

const tsLayout = "2006-01-02T15:04:05.000Z07:00"

type handlerConfig struct {
	level    slog.Leveler
	writer   *fanoutWriter
	format   logFormat
	keyOrder []string
}

type field struct {
	key string
	val any
}

// structuredHandler renders records as flat key sets. Attributes added with
// WithAttrs are flattened once and replayed on every record.
type structuredHandler struct {
	cfg    handlerConfig
	preset []field
	prefix string
}

func newStructuredHandler(cfg handlerConfig) *structuredHandler {
	if cfg.level == nil {
		cfg.level = slog.LevelInfo
	}
	if len(cfg.keyOrder) == 0 {
		cfg.keyOrder = defaultKeyOrder
	}
	return &structuredHandler{cfg: cfg}
}

func (h *structuredHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.cfg.level.Level()
}

func (h *structuredHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.cfg.writer == nil {
		return errors.New("logger: no writer")
	}
	fields := make(map[string]any, len(h.preset)+r.NumAttrs()+8)
	for _, f := range h.preset {
		fields[f.key] = f.val
	}
	r.Attrs(func(a slog.Attr) bool {
		flatten(h.prefix, a, func(k string, v any) { fields[k] = v })
		return true
	})
	MetaFrom(ctx).fill(fields)

	ts := r.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	ts = ts.UTC()
	fields["ts"] = ts.Format(tsLayout)
	fields["level"] = levelName(r.Level)

	json := h.cfg.format == formatJSON
	if json {
		fields["ts_unix_nano"] = ts.UnixNano()
	}
	if rid, _ := fields["rid"].(string); rid != "" {
		if short := CompactRID(rid); short != rid {
			fields["rid"] = short
			if _, ok := fields["rid_full"]; json && !ok {
				fields["rid_full"] = rid
			}
		}
	}
	if ev, _ := fields["event"].(string); ev == "" {
		fields["event"] = firstNonEmpty(r.Message, "unknown")
	}
	if c, _ := fields["component"].(string); c == "" {
		fields["component"] = ComponentApp
	}
	normalizeEnums(fields)
	pruneEmpty(fields)

	var line []byte
	if json {
		var err error
		if line, err = encodeJSON(fields, h.cfg.keyOrder); err != nil {
			return err
		}
	} else {
		line = encodeKV(fields, h.cfg.keyOrder)
	}
	return h.cfg.writer.Write(r.Level, line)
}

func (h *structuredHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	next := *h
	next.preset = append([]field(nil), h.preset...)
	for _, a := range attrs {
		flatten(h.prefix, a, func(k string, v any) {
			next.preset = append(next.preset, field{key: k, val: v})
		})
	}
	return &next
}

func (h *structuredHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := *h
	next.prefix = joinKey(h.prefix, name)
	return &next
}

func joinKey(prefix, key string) string {
	switch {
	case prefix == "":
		return key
	case key == "":
		return prefix
	}
	return prefix + "." + key
}

// flatten emits one key per leaf value. Durations are reported in whole
// milliseconds under a key ending in _ms.
func flatten(prefix string, a slog.Attr, emit func(string, any)) {
	v := a.Value.Resolve()
	key := joinKey(prefix, a.Key)
	if v.Kind() == slog.KindGroup {
		for _, child := range v.Group() {
			flatten(key, child, emit)
		}
		return
	}
	if key == "" {
		return
	}
	switch v.Kind() {
	case slog.KindString:
		emit(key, strings.TrimSpace(v.String()))
	case slog.KindBool:
		emit(key, v.Bool())
	case slog.KindInt64:
		emit(key, v.Int64())
	case slog.KindUint64:
		if u := v.Uint64(); u <= math.MaxInt64 {
			emit(key, int64(u))
		} else {
			emit(key, u)
		}
	case slog.KindFloat64:
		emit(key, v.Float64())
	case slog.KindDuration:
		emit(msKey(key), RoundMS(v.Duration()).Milliseconds())
	case slog.KindTime:
		emit(key, v.Time().UTC().Format(time.RFC3339Nano))
	default:
		emitAny(key, v.Any(), emit)
	}
}

func emitAny(key string, x any, emit func(string, any)) {
	switch t := x.(type) {
	case nil:
	case error:
		emit(key, SanitizeLimit(t.Error(), errLimit))
	case []string:
		emit(key, strings.Join(t, ","))
	case fmt.Stringer:
		emit(key, t.String())
	default:
		emit(key, fmt.Sprint(t))
	}
}

func msKey(key string) string {
	if strings.HasSuffix(key, "_ms") {
		return key
	}
	return key + "_ms"
}

func pruneEmpty(fields map[string]any) {
	for k, v := range fields {
		if s, ok := v.(string); ok && s == "" {
			delete(fields, k)
		}
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
