package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/peterh/liner"

	"github.com/zhouzirui/crickgenius/internal/cli"
	"github.com/zhouzirui/crickgenius/internal/config"
	"github.com/zhouzirui/crickgenius/internal/dictation"
	"github.com/zhouzirui/crickgenius/internal/service/remote"
	"github.com/zhouzirui/crickgenius/internal/service/speech"
	"github.com/zhouzirui/crickgenius/internal/session"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	register := flag.Bool("register", false, "create the account before logging in")
	username := flag.String("user", "", "username (prompted when empty)")
	audioPath := flag.String("audio", "", "16kHz mono PCM file used as the dictation microphone")
	backend := flag.String("backend", cfg.Client.BackendURL, "chat backend base URL")
	flag.Parse()

	// 日志会打断输入行，默认关闭
	log.SetOutput(io.Discard)
	if os.Getenv("CHATCLIENT_DEBUG") != "" {
		log.SetOutput(os.Stderr)
	}

	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	client, err := remote.New(*backend, &http.Client{Timeout: 60 * time.Second})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	capability := newCapability(cfg, *audioPath)

	for {
		if err := login(line, client, *username, *register); err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				return
			}
			fmt.Println("login failed:", describe(err))
			continue
		}
		*register = false

		if quit := runSession(line, client, capability); quit {
			return
		}
		fmt.Println("Please log in again.")
	}
}

// newCapability returns nil when dictation cannot run, leaving it unavailable.
func newCapability(cfg *config.Config, audioPath string) dictation.Capability {
	if !cfg.Speech.Enabled || audioPath == "" {
		return nil
	}
	source := func(context.Context) (io.ReadCloser, error) {
		f, err := os.Open(audioPath)
		if err != nil {
			return nil, err
		}
		return f, nil
	}
	return speech.NewRecognizer(cfg.Speech.Model(), source, speech.WithPace(200*time.Millisecond))
}

func login(line *liner.State, client *remote.Client, username string, register bool) error {
	var err error
	if username == "" {
		if username, err = line.Prompt("username: "); err != nil {
			return err
		}
	}
	password, err := line.PasswordPrompt("password: ")
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if register {
		_, err = client.Register(ctx, username, password)
	} else {
		_, err = client.Login(ctx, username, password)
	}
	return err
}

// runSession mounts a controller until the user quits or must log in again.
func runSession(line *liner.State, client *remote.Client, capability dictation.Capability) (quit bool) {
	ctrl := session.NewController(client, capability)
	defer ctrl.Close()

	view := cli.NewView(ctrl, os.Stdout)
	ctrl.Subscribe(view.Render)

	ctx := context.Background()
	_ = ctrl.InitializeSession(ctx)
	fmt.Println("type a question, or /help")

	for {
		select {
		case <-ctrl.Redirect():
			return false
		default:
		}

		input, err := line.Prompt("> ")
		if err != nil {
			return true
		}
		if strings.TrimSpace(input) == "" {
			continue
		}
		line.AppendHistory(input)

		if err := view.Handle(ctx, input); err != nil {
			if errors.Is(err, cli.ErrQuit) {
				return true
			}
			fmt.Println(err)
		}
	}
}

func describe(err error) string {
	var statusErr *remote.StatusError
	switch {
	case errors.As(err, &statusErr):
		return statusErr.Message
	case errors.Is(err, remote.ErrUnauthorized):
		return "invalid credentials"
	default:
		return err.Error()
	}
}
