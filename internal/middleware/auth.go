// Package middleware содержит HTTP middleware сервиса начисления доходности.
package middleware

import (
	"crypto/hmac"
	"crypto/sha256"
	"net/http"
	"strings"
)

const bearerPrefix = "Bearer "

// AuthMiddleware проверяет административный токен в заголовке Authorization.
type AuthMiddleware struct {
	tokenMAC []byte
	key      []byte
}

// NewAuthMiddleware создаёт новый экземпляр AuthMiddleware. С пустым токеном проверка отключена.
func NewAuthMiddleware(token string) *AuthMiddleware {
	if token == "" {
		return &AuthMiddleware{}
	}

	key := []byte("roicredit-admin-token")
	return &AuthMiddleware{
		key:      key,
		tokenMAC: sign(key, token),
	}
}

// Enabled сообщает, включена ли проверка токена.
func (a *AuthMiddleware) Enabled() bool {
	return a != nil && len(a.tokenMAC) > 0
}

// Middleware пропускает запрос дальше только с корректным токеном.
func (a *AuthMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.Enabled() {
			next.ServeHTTP(w, r)
			return
		}

		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, bearerPrefix) {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}

		token := strings.TrimSpace(strings.TrimPrefix(header, bearerPrefix))
		// Сравнение за постоянное время.
		if !hmac.Equal(sign(a.key, token), a.tokenMAC) {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func sign(key []byte, value string) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(value))
	return mac.Sum(nil)
}
