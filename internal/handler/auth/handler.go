package auth

import (
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/crickgenius/internal/middleware"
	"github.com/zhouzirui/crickgenius/internal/model/chat"
	authService "github.com/zhouzirui/crickgenius/internal/service/auth"
	"github.com/zhouzirui/crickgenius/pkg/utils"
)

// conversationCookie 与聊天处理器使用的 cookie 同名，登出时一并清除
const conversationCookie = "conversation_id"

// Handler 账户相关的HTTP处理器
type Handler struct {
	authSvc *authService.Service
	secure  bool
}

func New(authSvc *authService.Service, secureCookies bool) *Handler {
	return &Handler{authSvc: authSvc, secure: secureCookies}
}

// RegisterRoutes 注册无需登录的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/register", h.handleRegister)
	r.Post("/login", h.handleLogin)
	r.Post("/logout", h.handleLogout)
}

// RegisterProtectedRoutes 注册需要会话的路由
func (h *Handler) RegisterProtectedRoutes(r chi.Router) {
	r.Get("/profile", h.handleProfile)
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	creds, ok := decodeCredentials(w, r)
	if !ok {
		return
	}
	profile, err := h.authSvc.Register(r.Context(), creds)
	if err != nil {
		h.respondAuthError(w, err)
		return
	}
	h.startSession(w, profile)
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	creds, ok := decodeCredentials(w, r)
	if !ok {
		return
	}
	profile, err := h.authSvc.Login(r.Context(), creds)
	if err != nil {
		h.respondAuthError(w, err)
		return
	}
	h.startSession(w, profile)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	utils.ClearCookie(w, middleware.SessionCookie, h.secure)
	utils.ClearCookie(w, conversationCookie, h.secure)
	utils.RespondJSON(w, http.StatusOK, map[string]string{"message": "Logged out"})
}

func (h *Handler) handleProfile(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, chat.Profile{Username: middleware.Username(r.Context())})
}

func (h *Handler) startSession(w http.ResponseWriter, profile chat.Profile) {
	token, expires, err := h.authSvc.IssueToken(profile.Username)
	if err != nil {
		log.Printf("[auth] issue token failed: %v", err)
		utils.RespondError(w, http.StatusInternalServerError, "failed to start session")
		return
	}
	utils.SetCookie(w, middleware.SessionCookie, token, expires, h.secure)
	utils.RespondJSON(w, http.StatusOK, profile)
}

func (h *Handler) respondAuthError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, authService.ErrCredentialsRequired):
		utils.RespondError(w, http.StatusBadRequest, "Username and password must be non-empty")
	case errors.Is(err, authService.ErrUserExists):
		utils.RespondError(w, http.StatusBadRequest, "Username already exists")
	case errors.Is(err, authService.ErrInvalidCredentials):
		utils.RespondError(w, http.StatusUnauthorized, "Invalid credentials")
	default:
		log.Printf("[auth] request failed: %v", err)
		utils.RespondError(w, http.StatusInternalServerError, "internal error")
	}
}

func decodeCredentials(w http.ResponseWriter, r *http.Request) (chat.Credentials, bool) {
	var creds chat.Credentials
	if err := utils.DecodeJSON(w, r, &creds); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return chat.Credentials{}, false
	}
	return creds, true
}
