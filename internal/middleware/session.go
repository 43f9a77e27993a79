package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type contextKey string

const (
	UserIDKey    contextKey = "user_id"
	SessionIDKey contextKey = "session_id"
)

const (
	sessionCookieName = "omex_session"
	sessionLifetime   = 7 * 24 * time.Hour

	// Single-user deployment default, matching the token table seed.
	defaultUserID int64 = 1
)

// Session issues and validates the signed session cookie (JWT HS256
// carrying the user ID and an opaque session ID). A missing or invalid
// cookie mints a fresh session rather than rejecting the request.
type Session struct {
	Secret []byte
}

func NewSession(secret string) *Session {
	return &Session{Secret: []byte(secret)}
}

func (s *Session) mint(w http.ResponseWriter) (int64, string) {
	sessionID := uuid.New().String()

	claims := jwt.MapClaims{
		"user_id":    defaultUserID,
		"session_id": sessionID,
		"exp":        time.Now().Add(sessionLifetime).Unix(),
		"iat":        time.Now().Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.Secret)
	if err != nil {
		return defaultUserID, sessionID
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    signed,
		Path:     "/",
		MaxAge:   int(sessionLifetime.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return defaultUserID, sessionID
}

// Middleware attaches user_id and session_id to the request context,
// minting a new session cookie when none is valid.
func (s *Session) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := defaultUserID
		sessionID := ""

		if cookie, err := r.Cookie(sessionCookieName); err == nil {
			token, err := jwt.Parse(cookie.Value, func(token *jwt.Token) (interface{}, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return s.Secret, nil
			})
			if err == nil && token.Valid {
				if claims, ok := token.Claims.(jwt.MapClaims); ok {
					if id, ok := claims["user_id"].(float64); ok {
						userID = int64(id)
					}
					if sid, ok := claims["session_id"].(string); ok {
						sessionID = sid
					}
				}
			}
		}

		if sessionID == "" {
			userID, sessionID = s.mint(w)
		}

		ctx := context.WithValue(r.Context(), UserIDKey, userID)
		ctx = context.WithValue(ctx, SessionIDKey, sessionID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetUserID extracts the user ID from the request context.
func GetUserID(ctx context.Context) int64 {
	if id, ok := ctx.Value(UserIDKey).(int64); ok {
		return id
	}
	return defaultUserID
}

// GetSessionID extracts the session ID from the request context.
func GetSessionID(ctx context.Context) string {
	id, _ := ctx.Value(SessionIDKey).(string)
	return id
}
