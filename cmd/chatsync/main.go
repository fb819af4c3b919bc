// ABOUTME: Terminal chat client built on the conversation sync store
// ABOUTME: Reads commands from stdin while the push channel and renderer run alongside

package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"golang.org/x/sync/errgroup"

	"github.com/2389/chatsync/internal/api"
	"github.com/2389/chatsync/internal/chat"
	"github.com/2389/chatsync/internal/config"
	"github.com/2389/chatsync/internal/conversation"
	"github.com/2389/chatsync/internal/dedupe"
	"github.com/2389/chatsync/internal/realtime"
	"github.com/2389/chatsync/internal/session"
)

// version is set at build time.
var version = "dev"

// getToken returns the bearer token from CHATSYNC_TOKEN or ~/.config/chatsync/token
func getToken() string {
	if token := os.Getenv("CHATSYNC_TOKEN"); token != "" {
		return token
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	data, err := os.ReadFile(filepath.Join(configDir, "chatsync", "token"))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

func main() {
	configPath := flag.String("config", config.DefaultPath(), "Path to config file (.yaml or .toml)")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, *configPath); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("\nGoodbye!")
}

func run(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	logger := setupLogger(cfg.Logging)

	token := cfg.Auth.Token
	if token == "" {
		token = getToken()
	}
	sess, err := session.Parse(token)
	if err != nil {
		return fmt.Errorf("reading token (set auth.token or CHATSYNC_TOKEN): %w", err)
	}
	if sess.Expired(time.Now()) {
		return fmt.Errorf("token for %s expired at %s", sess.UserID, sess.ExpiresAt.Format(time.RFC3339))
	}
	self := sess.User()

	sock, err := realtime.Dial(ctx, cfg.Server.SocketURL, token, logger)
	if err != nil {
		return fmt.Errorf("connecting push channel: %w", err)
	}
	defer sock.Close()

	opts := conversation.Options{
		Logger:   logger,
		Notifier: consoleNotifier{},
		Self:     &self,
	}
	if cfg.Sync.DedupeIncoming {
		window := dedupe.NewWindow(cfg.Sync.DedupeTTL, cfg.Sync.DedupeMax)
		defer window.Close()
		opts.Dedupe = window
	}

	client := api.New(cfg.Server.BaseURL, token, api.WithTimeout(cfg.Server.RequestTimeout))
	store := conversation.NewStore(client, sock, opts)
	defer store.Close()

	printBanner(cfg, self)

	ctx, stop := context.WithCancel(ctx)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := sock.Run(gctx)
		if err == nil && gctx.Err() == nil {
			err = errors.New("push channel closed by server")
		}
		return err
	})

	g.Go(func() error {
		r := &renderer{selfID: self.ID}
		updates, _ := store.Watch(gctx)
		for snap := range updates {
			for _, line := range r.diff(snap) {
				fmt.Println(line)
			}
		}
		return nil
	})

	g.Go(func() error {
		defer stop()
		return inputLoop(gctx, store, self)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func printBanner(cfg *config.Config, self chat.User) {
	cyan := color.New(color.FgCyan)
	gray := color.New(color.FgHiBlack)
	green := color.New(color.FgGreen)

	cyan.Println("chatsync")
	gray.Printf("  version: %s\n\n", version)

	green.Print("  ▶ ")
	fmt.Printf("Server:  %s\n", cfg.Server.BaseURL)
	green.Print("  ▶ ")
	fmt.Printf("Push:    %s\n", cfg.Server.SocketURL)
	green.Print("  ▶ ")
	fmt.Printf("User:    %s (%s)\n", self.Name, self.ID)
	if cfg.Sync.DedupeIncoming {
		green.Print("  ▶ ")
		fmt.Printf("Dedupe:  on (%s, %d keys)\n", cfg.Sync.DedupeTTL, cfg.Sync.DedupeMax)
	}
	fmt.Println()
	fmt.Println("Type a message and press Enter. /help for commands. Ctrl+C to quit.")
	fmt.Println()
}

func inputLoop(ctx context.Context, store *conversation.Store, self chat.User) error {
	scanner := bufio.NewScanner(os.Stdin)
	r := &renderer{selfID: self.ID}

	for {
		if sel := store.Snapshot().Selected; sel != nil {
			fmt.Printf("[%s]> ", sel.Name)
		} else {
			fmt.Print("> ")
		}

		inputCh := make(chan string, 1)
		errCh := make(chan error, 1)

		go func() {
			if scanner.Scan() {
				inputCh <- scanner.Text()
			} else {
				if err := scanner.Err(); err != nil {
					errCh <- err
				} else {
					errCh <- io.EOF
				}
			}
		}()

		var input string
		select {
		case <-ctx.Done():
			return nil
		case err := <-errCh:
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("reading input: %w", err)
		case input = <-inputCh:
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}

		cmd, arg, _ := strings.Cut(input, " ")
		arg = strings.TrimSpace(arg)

		switch cmd {
		case "/quit", "/exit", "/q":
			return nil

		case "/help":
			printHelp()

		case "/users":
			if err := store.ListUsers(ctx); err == nil {
				printUsers(store.Snapshot())
			}

		case "/use":
			if arg == "" {
				store.SelectUser(nil)
				fmt.Println("Cleared conversation selection")
				break
			}
			user, ok := findUser(ctx, store, arg)
			if !ok {
				fmt.Printf("Unknown user %q. Use /users to list them.\n", arg)
				break
			}
			if err := store.Open(ctx, user); err == nil {
				r.printHistory(store.Snapshot())
			}

		case "/history":
			r.printHistory(store.Snapshot())

		case "/typing":
			switch arg {
			case "on":
				store.SignalTyping(ctx, true)
			case "off":
				store.SignalTyping(ctx, false)
			default:
				fmt.Println("Usage: /typing on|off")
			}

		case "/read":
			if arg == "" {
				fmt.Println("Usage: /read <message_id>")
				break
			}
			store.MarkRead(ctx, resolveMessageID(store.Snapshot(), arg))

		default:
			if strings.HasPrefix(cmd, "/") {
				fmt.Printf("Unknown command %s. /help for commands.\n", cmd)
				break
			}
			_, err := store.Send(ctx, chat.Draft{Content: input})
			if errors.Is(err, conversation.ErrNoSelection) {
				fmt.Println("No conversation selected. Use /use <user_id> first.")
			}
		}
	}
}

// printHelp displays available commands.
func printHelp() {
	fmt.Println("Commands:")
	fmt.Println("  /users            List users you can chat with")
	fmt.Println("  /use <id|name>    Open the conversation with a user")
	fmt.Println("  /use              Clear the selection")
	fmt.Println("  /history          Show the loaded conversation")
	fmt.Println("  /typing on|off    Tell the other user you are typing")
	fmt.Println("  /read <id>        Mark a message read (ID prefix accepted)")
	fmt.Println("  /help             Show this help")
	fmt.Println("  /quit             Exit")
}

func printUsers(s conversation.State) {
	if len(s.Users) == 0 {
		fmt.Println("No other users")
		return
	}
	fmt.Println("Users:")
	for _, u := range s.Users {
		fmt.Printf("  %s: %s\n", u.ID, u.Name)
	}
}

// findUser matches arg against user IDs and names, fetching the roster once
// if it has not been loaded yet.
func findUser(ctx context.Context, store *conversation.Store, arg string) (chat.User, bool) {
	users := store.Snapshot().Users
	if len(users) == 0 {
		if err := store.ListUsers(ctx); err != nil {
			return chat.User{}, false
		}
		users = store.Snapshot().Users
	}

	for _, u := range users {
		if u.ID == arg || strings.EqualFold(u.Name, arg) {
			return u, true
		}
	}
	return chat.User{}, false
}

// resolveMessageID expands a displayed ID prefix to the full loaded ID.
func resolveMessageID(s conversation.State, arg string) string {
	for _, m := range s.Messages {
		if strings.HasPrefix(m.ID, arg) {
			return m.ID
		}
	}
	return arg
}

func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelWarn
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	// Logs go to stderr so they do not interleave with the conversation.
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}
