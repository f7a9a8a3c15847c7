package middleware

import (
	"context"
	"net/http"

	"github.com/zhouzirui/crickgenius/pkg/utils"
)

// SessionCookie 保存签名会话令牌的 cookie 名
const SessionCookie = "session"

type usernameKey struct{}

// TokenParser 校验会话令牌并返回用户名
type TokenParser interface {
	ParseToken(raw string) (string, error)
}

// RequireSession 拒绝没有有效会话的请求
func RequireSession(tokens TokenParser) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(SessionCookie)
			if err != nil || cookie.Value == "" {
				utils.RespondError(w, http.StatusUnauthorized, "Unauthorized")
				return
			}
			username, err := tokens.ParseToken(cookie.Value)
			if err != nil {
				utils.RespondError(w, http.StatusUnauthorized, "Unauthorized")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUsername(r.Context(), username)))
		})
	}
}

// WithUsername 将用户名写入 context
func WithUsername(ctx context.Context, username string) context.Context {
	return context.WithValue(ctx, usernameKey{}, username)
}

// Username 取出 RequireSession 写入的用户名
func Username(ctx context.Context) string {
	username, _ := ctx.Value(usernameKey{}).(string)
	return username
}
