package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	authHandler "github.com/zhouzirui/crickgenius/internal/handler/auth"
	chatHandler "github.com/zhouzirui/crickgenius/internal/handler/chat"
	middlewarePkg "github.com/zhouzirui/crickgenius/internal/middleware"
	authService "github.com/zhouzirui/crickgenius/internal/service/auth"
	chatService "github.com/zhouzirui/crickgenius/internal/service/chat"
)

// Options 路由所需的跨域与 cookie 设置
type Options struct {
	CORSOrigin    string
	SecureCookies bool
}

// NewRouter wires HTTP routes to core services.
func NewRouter(authSvc *authService.Service, chatSvc *chatService.Service, opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS(opts.CORSOrigin))

	accounts := authHandler.New(authSvc, opts.SecureCookies)
	chats := chatHandler.New(chatSvc, opts.SecureCookies)

	accounts.RegisterRoutes(r)

	r.Group(func(protected chi.Router) {
		protected.Use(middlewarePkg.RequireSession(authSvc))
		accounts.RegisterProtectedRoutes(protected)
		chats.RegisterRoutes(protected)
	})

	return r
}
