// Package main is the entry point for the image search API server.
//
// WHAT MAIN DOES HERE:
// Go starts every program in main() of package "main". We keep it thin:
//  1. Load configuration (environment variables, optionally a .env file)
//  2. Build the structured logger every other package receives
//  3. Hand both to internal/server and block until shutdown
//
// Routing, storage, sessions and the Unsplash client all live under
// internal/. Nothing here is worth unit testing, which is the point: the
// parts that are worth testing can be built without a process.
//
// RUNNING IT:
//
//	SESSION_SECRET=$(openssl rand -hex 32) \
//	GITHUB_CLIENT_ID=... GITHUB_CLIENT_SECRET=... \
//	UNSPLASH_ACCESS_KEY=... \
//	go run ./cmd/server
//
// Without UNSPLASH_ACCESS_KEY searches still work but return placeholder
// images. Without REDIS_URL sessions are kept in memory.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/sakif/imagesearch/internal/config"
	"github.com/sakif/imagesearch/internal/server"
)

func main() {
	// === 1. LOAD CONFIGURATION ===
	// config.Load reads .env (if present) and then the real environment,
	// which wins on conflicts. Every invalid value is reported at once
	// instead of failing on the first, so one restart fixes them all.
	//
	// The logger does not exist yet (its level is part of the config), so
	// this one error goes straight to stderr.
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	// === 2. SET UP LOGGING ===
	// slog.SetDefault also routes the stdlib "log" package and any bare
	// slog.Info calls through our handler, so nothing logs in a second format.
	logger := newLogger(cfg)
	slog.SetDefault(logger)

	// A missing SESSION_SECRET is allowed for local development only.
	// Cookies signed with the built-in secret can be forged by anyone who
	// has read this repository.
	if cfg.UsingDevSecret {
		logger.Warn("SESSION_SECRET not set, using an insecure development secret")
	}

	// === 3. CREATE AND START THE SERVER ===
	// server.New opens the database, picks the session backend and wires
	// every handler. Missing OAuth credentials or a missing Unsplash key
	// are warnings, not errors: the server starts with less functionality.
	srv, err := server.New(cfg, logger)
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Start blocks until SIGINT/SIGTERM and closes everything on return.
	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

// newLogger picks the handler from LOG_FORMAT.
//
//	text → key=value lines, easy to read in a terminal
//	json → one object per line, what log shippers expect
//
// Log levels run Debug → Info → Warn → Error; LOG_LEVEL sets the floor.
func newLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.LogLevel}
	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
