// ABOUTME: Runs the in-memory development chat server
// ABOUTME: Seeds users and prints a bearer token for each so clients can connect

package main

import (
	"context"
	"crypto/rand"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/gin-gonic/gin"

	"github.com/2389/chatsync/internal/chat"
	"github.com/2389/chatsync/internal/devserver"
	"github.com/2389/chatsync/internal/session"
)

const shutdownTimeout = 5 * time.Second

func main() {
	addr := flag.String("addr", "127.0.0.1:5001", "Listen address")
	users := flag.String("users", "u-alice:Alice,u-bob:Bob,u-carol:Carol", "Comma-separated id:name users to seed")
	tokenTTL := flag.Duration("token-ttl", 24*time.Hour, "Lifetime of printed tokens")
	logLevel := flag.String("log-level", "info", "Log level: debug, info, warn, error")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, *addr, *users, *tokenTTL, setupLogger(*logLevel)); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, addr, userSpec string, tokenTTL time.Duration, logger *slog.Logger) error {
	seed, err := parseUsers(userSpec)
	if err != nil {
		return err
	}

	// A fresh key per run; tokens from earlier runs stop working.
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return fmt.Errorf("generating signing key: %w", err)
	}

	gin.SetMode(gin.ReleaseMode)
	dev := devserver.New(secret, logger)

	cyan := color.New(color.FgCyan)
	green := color.New(color.FgGreen)
	gray := color.New(color.FgHiBlack)

	cyan.Println("chatsync development server")
	green.Print("  ▶ ")
	fmt.Printf("API:   http://%s\n", addr)
	green.Print("  ▶ ")
	fmt.Printf("Push:  ws://%s/ws\n\n", addr)

	for _, u := range seed {
		dev.AddUser(u)
		tok, err := session.NewToken(secret, u, tokenTTL)
		if err != nil {
			return fmt.Errorf("issuing token for %s: %w", u.ID, err)
		}
		fmt.Printf("  %s (%s)\n", u.Name, u.ID)
		gray.Printf("    CHATSYNC_TOKEN=%s\n", tok)
	}
	fmt.Println()

	srv := &http.Server{
		Addr:              addr,
		Handler:           dev.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serving: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	dev.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// parseUsers reads "id:name,id:name". A bare id doubles as the name.
func parseUsers(spec string) ([]chat.User, error) {
	var users []chat.User
	seen := make(map[string]bool)

	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, name, ok := strings.Cut(part, ":")
		if !ok {
			name = id
		}
		id, name = strings.TrimSpace(id), strings.TrimSpace(name)
		if id == "" {
			return nil, fmt.Errorf("invalid user %q: empty id", part)
		}
		if seen[id] {
			return nil, fmt.Errorf("duplicate user id %q", id)
		}
		seen[id] = true
		users = append(users, chat.User{ID: id, Name: name})
	}

	if len(users) == 0 {
		return nil, errors.New("no users to seed")
	}
	return users, nil
}

func setupLogger(levelName string) *slog.Logger {
	var level slog.Level
	switch levelName {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}
