package logger

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	coreconfig "github.com/DoctorPlant/DrPlantTelegramApp/core/config"
)

func TestFanoutLevels(t *testing.T) {
	all, warn := &bytes.Buffer{}, &bytes.Buffer{}
	fw := newFanoutWriter([]sink{
		newSink(all, slog.LevelDebug, nil),
		newSink(warn, slog.LevelWarn, nil),
	}, 4)
	_ = fw.Write(slog.LevelInfo, []byte("info\n"))
	_ = fw.Write(slog.LevelError, []byte("error\n"))
	if err := fw.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if all.String() != "info\nerror\n" {
		t.Fatalf("all = %q", all.String())
	}
	if warn.String() != "error\n" {
		t.Fatalf("warn = %q", warn.String())
	}
	if err := fw.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := fw.Write(slog.LevelInfo, []byte("late\n")); !errors.Is(err, errWriterClosed) {
		t.Fatalf("write after close: %v", err)
	}
}

func TestFanoutConcurrentWrites(t *testing.T) {
	buf := &bytes.Buffer{}
	fw := newFanoutWriter([]sink{newSink(buf, slog.LevelDebug, nil)}, 8)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_ = fw.Write(slog.LevelInfo, []byte("x\n"))
			}
		}()
	}
	wg.Wait()
	if err := fw.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if n := strings.Count(buf.String(), "x\n"); n != 400 {
		t.Fatalf("lines = %d", n)
	}
}

func TestOpenSinksWritesFiles(t *testing.T) {
	dir := t.TempDir()
	sinks, err := openSinks(coreconfig.LoggingConfig{Dir: filepath.Join(dir, "logs"), BotFile: "bot.log", ErrorsFile: "errors.log"})
	if err != nil {
		t.Fatalf("open sinks: %v", err)
	}
	if len(sinks) != 3 {
		t.Fatalf("sinks = %d", len(sinks))
	}
	// drop stdout to keep test output clean
	fw := newFanoutWriter(sinks[1:], 4)
	log := slog.New(newStructuredHandler(handlerConfig{level: slog.LevelDebug, writer: fw, format: formatKV}))
	LogEvent(context.Background(), log, slog.LevelInfo, "quiz.loaded")
	LogEvent(context.Background(), log, slog.LevelWarn, "quiz.unreachable")
	if err := fw.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	bot, _ := os.ReadFile(filepath.Join(dir, "logs", "bot.log"))
	errs, _ := os.ReadFile(filepath.Join(dir, "logs", "errors.log"))
	if !strings.Contains(string(bot), "quiz.loaded") || !strings.Contains(string(bot), "quiz.unreachable") {
		t.Fatalf("bot.log = %s", bot)
	}
	if strings.Contains(string(errs), "quiz.loaded") || !strings.Contains(string(errs), "quiz.unreachable") {
		t.Fatalf("errors.log = %s", errs)
	}
}
