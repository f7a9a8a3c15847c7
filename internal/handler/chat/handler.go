package chat

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/crickgenius/internal/middleware"
	"github.com/zhouzirui/crickgenius/internal/model/chat"
	chatService "github.com/zhouzirui/crickgenius/internal/service/chat"
	"github.com/zhouzirui/crickgenius/pkg/utils"
)

// ConversationCookie 记录当前会话 id 的 cookie 名
const ConversationCookie = "conversation_id"

// Handler 聊天服务的HTTP处理器
type Handler struct {
	chatSvc *chatService.Service
	secure  bool
}

// New 创建聊天处理器
func New(chatSvc *chatService.Service, secureCookies bool) *Handler {
	return &Handler{chatSvc: chatSvc, secure: secureCookies}
}

// RegisterRoutes 注册聊天相关的路由，调用方负责挂载会话校验
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/new_chat", h.handleNewChat)
	r.Post("/chat", h.handleChat)
	r.Get("/chat_history", h.handleHistory)
}

// handleNewChat 开启新会话
func (h *Handler) handleNewChat(w http.ResponseWriter, r *http.Request) {
	id := h.chatSvc.NewConversation(r.Context(), middleware.Username(r.Context()))
	utils.SetCookie(w, ConversationCookie, id, time.Time{}, h.secure)
	utils.RespondJSON(w, http.StatusOK, chat.NewChatResponse{ConversationID: id})
}

// handleChat 在 cookie 指向的会话中问答
func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	var payload chat.QueryRequest
	if err := utils.DecodeJSON(w, r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var conversationID string
	if cookie, err := r.Cookie(ConversationCookie); err == nil {
		conversationID = cookie.Value
	}

	turn, conversationID, err := h.chatSvc.Exchange(r.Context(), middleware.Username(r.Context()), conversationID, payload.Query)
	if err != nil {
		if errors.Is(err, chatService.ErrQueryRequired) {
			utils.RespondError(w, http.StatusBadRequest, "query is required")
			return
		}
		log.Printf("[chat] exchange failed: %v", err)
		utils.RespondError(w, http.StatusInternalServerError, "failed to process query")
		return
	}

	utils.SetCookie(w, ConversationCookie, conversationID, time.Time{}, h.secure)
	utils.RespondJSON(w, http.StatusOK, chat.QueryResponse{
		Response:       turn.Response,
		ConversationID: conversationID,
	})
}

// handleHistory 返回用户的全部会话
func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	conversations, err := h.chatSvc.History(r.Context(), middleware.Username(r.Context()))
	if err != nil {
		log.Printf("[chat] history failed: %v", err)
		utils.RespondError(w, http.StatusInternalServerError, "failed to load history")
		return
	}
	utils.RespondJSON(w, http.StatusOK, chat.HistoryResponse{Conversations: conversations})
}
