package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/zhouzirui/crickgenius/internal/config"
	"github.com/zhouzirui/crickgenius/internal/handler"
	"github.com/zhouzirui/crickgenius/internal/service/ai"
	"github.com/zhouzirui/crickgenius/internal/service/auth"
	"github.com/zhouzirui/crickgenius/internal/service/chat"
	"github.com/zhouzirui/crickgenius/internal/service/cricket"
	"github.com/zhouzirui/crickgenius/internal/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	db, err := store.Open(cfg.Store.Path)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}

	// Assistant is optional; without it every query gets the fallback reply
	var assistant chat.Assistant
	if cfg.AI.Enabled() {
		var opts []ai.Option
		if cfg.Cricket.Enabled() {
			opts = append(opts, ai.WithCricketData(cricket.NewClient(cfg.Cricket.APIKey, cfg.Cricket.BaseURL, cfg.Cricket.CacheTTL, nil)))
			log.Println("cricapi lookups enabled")
		}
		aiService, err := ai.NewService(ctx, cfg.AI, opts...)
		if err != nil {
			log.Printf("warning: failed to initialize AI service: %v", err)
			log.Println("continuing without AI functionality - 请检查 Ark 模型相关环境变量")
		} else {
			assistant = aiService
			log.Println("AI service initialized successfully")
		}
	} else {
		log.Println("Ark 凭证未配置，跳过 AI 功能初始化")
	}

	authService := auth.NewService(db, cfg.Auth.Secret, cfg.Auth.Lifetime)
	chatService := chat.NewService(chat.NewRepo(db), assistant)

	router := handler.NewRouter(authService, chatService, handler.Options{
		CORSOrigin:    cfg.CORS.Origin,
		SecureCookies: cfg.Auth.CookieSecure,
	})

	startServer(ctx, cfg.Server, router)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("CrickGenius backend listening on %s", addr)
	if err := runServer(ctx, srv); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
