package logger

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	coreconfig "github.com/DoctorPlant/DrPlantTelegramApp/core/config"
)

const (
	defaultSampleNum = 1
	defaultSampleDen = 50
)

// settings is the parsed form of the logging config section.
type settings struct {
	format    logFormat
	level     slog.Level
	keyOrder  []string
	profile   string
	sampleNum int
	sampleDen int
	stacks    bool
}

func settingsFrom(lc coreconfig.LoggingConfig) settings {
	profile := strings.ToLower(strings.TrimSpace(lc.Profile))
	if profile == "" {
		profile = "prod"
	}
	dev := profile == "debug" || profile == "dev"
	num, den := parseRatio(lc.DebugSample)
	return settings{
		format:    parseFormat(lc.Format, dev),
		level:     parseLevel(lc.Level),
		keyOrder:  parseKeyOrder(lc.KeysOrder),
		profile:   profile,
		sampleNum: num,
		sampleDen: den,
		stacks:    parseSwitch(lc.Stacks, dev),
	}
}

func parseFormat(raw string, dev bool) logFormat {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "kv", "text", "pretty":
		return formatKV
	case "json":
		return formatJSON
	}
	if dev {
		return formatKV
	}
	return formatJSON
}

func parseLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// parseKeyOrder reads a comma separated key list; empty or "default" keeps
// defaultKeyOrder.
func parseKeyOrder(raw string) []string {
	var order []string
	for _, k := range strings.Split(raw, ",") {
		if k = strings.TrimSpace(k); k != "" && k != "default" {
			order = append(order, k)
		}
	}
	if len(order) == 0 {
		return append([]string(nil), defaultKeyOrder...)
	}
	return order
}

// parseRatio accepts "n/d" or "d" (meaning 1/d). Empty selects the default
// 1/50; anything unparsable or non-positive disables sampling.
func parseRatio(raw string) (int, int) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return defaultSampleNum, defaultSampleDen
	}
	if n, d, ok := strings.Cut(raw, "/"); ok {
		num, err1 := strconv.Atoi(strings.TrimSpace(n))
		den, err2 := strconv.Atoi(strings.TrimSpace(d))
		if err1 != nil || err2 != nil {
			return 0, 0
		}
		return num, den
	}
	den, err := strconv.Atoi(raw)
	if err != nil || den <= 0 {
		return 0, 0
	}
	return 1, den
}

func parseSwitch(raw string, def bool) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "on", "true", "1", "yes":
		return true
	case "off", "false", "0", "no":
		return false
	}
	return def
}

func envTruthy(name string) bool { return parseSwitch(os.Getenv(name), false) }

// openSinks returns stdout plus the optional files under logging.dir: the
// bot file receives every record, the errors file WARN and above.
func openSinks(lc coreconfig.LoggingConfig) ([]sink, error) {
	sinks := []sink{newSink(os.Stdout, slog.LevelDebug, nil)}
	files := []struct {
		name string
		min  slog.Level
	}{
		{strings.TrimSpace(lc.BotFile), slog.LevelDebug},
		{strings.TrimSpace(lc.ErrorsFile), slog.LevelWarn},
	}
	dir := strings.TrimSpace(lc.Dir)
	for _, f := range files {
		if f.name == "" {
			continue
		}
		path := filepath.Join(dir, f.name)
		fh, err := openAppend(path)
		if err != nil {
			closeSinks(sinks)
			return nil, err
		}
		sinks = append(sinks, newSink(fh, f.min, fh))
	}
	return sinks, nil
}

func openAppend(path string) (*os.File, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("logger: create log dir %s: %w", dir, err)
		}
	}
	fh, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("logger: open log file %s: %w", path, err)
	}
	return fh, nil
}

func closeSinks(sinks []sink) {
	for _, s := range sinks {
		if s.closer != nil {
			_ = s.closer.Close()
		}
	}
}
