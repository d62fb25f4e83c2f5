package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"cafe-ops-service/internal/auth"
	"cafe-ops-service/pkg/response"

	"github.com/jackc/pgx/v5"
	"golang.org/x/crypto/bcrypt"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) AuthLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var body loginRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	email := strings.ToLower(strings.TrimSpace(body.Email))
	password := body.Password
	if email == "" || password == "" {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Email and password are required")
		return
	}

	var (
		userID       int64
		name         string
		role         string
		passwordHash string
		userActive   bool
		cafeID       int64
		cafeActive   bool
	)
	err := h.DB.QueryRow(ctx, `
		select u.id, u.name, u.role, u.password_hash, u.is_active, cu.cafe_id, c.is_active
		from users u
		join cafe_users cu on cu.user_id = u.id and cu.is_active = true
		join cafes c on c.id = cu.cafe_id
		where lower(u.email) = $1
		limit 1
	`, email).Scan(&userID, &name, &role, &passwordHash, &userActive, &cafeID, &cafeActive)
	if err == pgx.ErrNoRows {
		response.Error(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid email or password")
		return
	}
	if err != nil {
		h.Logger.Error("login lookup failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to sign in")
		return
	}

	if !userActive || !cafeActive {
		response.Error(w, http.StatusForbidden, "ACCOUNT_DISABLED", "Account is disabled")
		return
	}

	if bcrypt.CompareHashAndPassword([]byte(passwordHash), []byte(password)) != nil {
		response.Error(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid email or password")
		return
	}

	expiry := time.Duration(h.Config.JWTExpirySeconds) * time.Second
	var sessionID int64
	if err := h.DB.QueryRow(ctx, `
		insert into user_sessions (user_id, status, expires_at)
		values ($1, 'ACTIVE', $2)
		returning id
	`, userID, time.Now().Add(expiry)).Scan(&sessionID); err != nil {
		h.Logger.Error("session create failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to sign in")
		return
	}

	token, err := auth.GenerateAccessToken(userID, sessionID, auth.UserRole(role), email, cafeID, h.Config.JWTSecret, expiry)
	if err != nil {
		h.Logger.Error("token generate failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to sign in")
		return
	}

	response.Success(w, map[string]any{
		"accessToken": token,
		"expiresIn":   h.Config.JWTExpirySeconds,
		"user": map[string]any{
			"id":     userID,
			"name":   name,
			"email":  email,
			"role":   role,
			"cafeId": cafeID,
		},
	})
}

func (h *Handler) AuthLogout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	token := auth.ParseBearerToken(r.Header.Get("Authorization"))
	claims, err := auth.VerifyAccessToken(token, h.Config.JWTSecret)
	if err != nil {
		response.Error(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authorization token required")
		return
	}

	var sessionID int64
	if _, err := fmt.Sscan(claims.SessionID, &sessionID); err != nil {
		response.Error(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid token")
		return
	}

	if _, err := h.DB.Exec(ctx, `update user_sessions set status = 'REVOKED' where id = $1`, sessionID); err != nil {
		h.Logger.Error("session revoke failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to sign out")
		return
	}

	response.Success(w, map[string]any{"revoked": true})
}
