package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"

	"cafe-ops-service/internal/auth"

	"github.com/jackc/pgx/v5/pgxpool"
)

type contextKey string

const authContextKey contextKey = "authContext"

type AuthContext struct {
	UserID      int64
	SessionID   int64
	Role        auth.UserRole
	Email       string
	CafeID      *int64
	IsOwner     bool
	Permissions []string
}

func WithAuthContext(ctx context.Context, authCtx *AuthContext) context.Context {
	return context.WithValue(ctx, authContextKey, authCtx)
}

func GetAuthContext(ctx context.Context) (*AuthContext, bool) {
	value := ctx.Value(authContextKey)
	if value == nil {
		return nil, false
	}
	ac, ok := value.(*AuthContext)
	return ac, ok
}

func writeAuthError(w http.ResponseWriter, status int, message string) {
	writeAuthErrorDebug(w, status, message, "")
}

func writeAuthErrorDebug(w http.ResponseWriter, status int, message string, debug string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	payload := map[string]any{
		"success": false,
		"error":   "UNAUTHORIZED",
		"message": message,
	}

	if os.Getenv("APP_ENV") == "development" && strings.TrimSpace(debug) != "" {
		payload["debug"] = debug
	}

	_ = json.NewEncoder(w).Encode(payload)
}

func OwnerAuth(db *pgxpool.Pool, jwtSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := auth.ParseBearerToken(r.Header.Get("Authorization"))
			claims, err := auth.VerifyAccessToken(token, jwtSecret)
			if err != nil {
				writeAuthErrorDebug(w, http.StatusUnauthorized, "Authorization token required", err.Error())
				return
			}

			if claims.Role != auth.RoleOwner && claims.Role != auth.RoleManager && claims.Role != auth.RoleStaff {
				writeAuthError(w, http.StatusForbidden, "Cafe access required")
				return
			}

			if claims.CafeID == nil {
				writeAuthError(w, http.StatusUnauthorized, "Cafe not found")
				return
			}
			cafeID, err := parseInt64(*claims.CafeID)
			if err != nil {
				writeAuthError(w, http.StatusUnauthorized, "Cafe not found")
				return
			}

			userID, err := parseInt64(claims.UserID)
			if err != nil {
				writeAuthError(w, http.StatusUnauthorized, "Invalid token")
				return
			}
			sessionID, err := parseInt64(claims.SessionID)
			if err != nil {
				writeAuthError(w, http.StatusUnauthorized, "Invalid token")
				return
			}

			// Validate session + cafe link + cafe status
			var (
				role        string
				permissions []string
				cafeActive  bool
				linkActive  bool
			)

			query := `
				select u.role, cu.permissions, cu.is_active, c.is_active
				from users u
				join cafe_users cu on cu.user_id = u.id and cu.cafe_id = $2
				join cafes c on c.id = cu.cafe_id
				join user_sessions us on us.id = $3 and us.user_id = u.id and us.status = 'ACTIVE' and us.expires_at > now()
				where u.id = $1
			`
			err = db.QueryRow(r.Context(), query, userID, cafeID, sessionID).Scan(&role, &permissions, &linkActive, &cafeActive)
			if err != nil {
				writeAuthErrorDebug(w, http.StatusUnauthorized, "Cafe access required", err.Error())
				return
			}

			if !linkActive {
				writeAuthError(w, http.StatusForbidden, "Cafe access is disabled")
				return
			}
			if !cafeActive {
				writeAuthError(w, http.StatusForbidden, "Cafe is currently disabled")
				return
			}

			isOwner := claims.Role == auth.RoleOwner

			// Staff (and managers) are checked against per-API permissions;
			// owners bypass the permission map.
			if !isOwner {
				perm := auth.GetPermissionForAPI(r.URL.Path, r.Method)
				if perm != nil {
					has := false
					for _, p := range permissions {
						if p == string(*perm) {
							has = true
							break
						}
					}
					if !has {
						writeAuthError(w, http.StatusForbidden, "You do not have permission to access this resource")
						return
					}
				}
			}

			authCtx := &AuthContext{
				UserID:      userID,
				SessionID:   sessionID,
				Role:        claims.Role,
				Email:       claims.Email,
				CafeID:      &cafeID,
				IsOwner:     isOwner,
				Permissions: permissions,
			}

			ctx := WithAuthContext(r.Context(), authCtx)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func parseInt64(value string) (int64, error) {
	var out int64
	_, err := fmt.Sscan(value, &out)
	return out, err
}
