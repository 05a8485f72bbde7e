package main

import (
	"log/slog"
	"os"

	slogmulti "github.com/samber/slog-multi"
)

// newLogger builds the fanned-out structured logger SPEC_FULL.md's
// AMBIENT STACK section calls for: a stderr handler always active, plus
// a second stderr handler raised to LevelWarn only when -w is set, both
// combined through slogmulti.Fanout. -v raises the primary handler to
// LevelDebug. This replaces the teacher's bare fmt.Printf verbose
// logging (wut4/lang/yld/main.go) with leveled, structured logging at
// the same call sites.
func newLogger(verbose, warnings bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}

	handlers := []slog.Handler{
		slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}),
	}
	if warnings {
		handlers = append(handlers, slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	}

	return slog.New(slogmulti.Fanout(handlers...))
}
