package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"LiveGuard/internal/models"
)

const (
	accessTTL  = 5 * time.Minute
	refreshTTL = 24 * time.Hour
)

// issue signs a token and records it as valid. Caller holds h.mu.
func (h *Handlers) issue(userID int64, tokenType string) string {
	now := h.now()
	ttl := accessTTL
	if tokenType == "refresh" {
		ttl = refreshTTL
	}
	claims := models.TokenClaims{
		UserID:    userID,
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(h.secret)
	if err != nil {
		// HS256 with a byte key cannot fail
		panic(err)
	}
	if tokenType == "refresh" {
		h.refresh[signed] = userID
	} else {
		h.access[signed] = userID
	}
	return signed
}

func (h *Handlers) handleLogin(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Invalid request body."})
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	var acc *account
	for _, a := range h.accounts {
		if strings.EqualFold(a.profile.Email, strings.TrimSpace(req.Email)) {
			acc = a
			break
		}
	}
	if acc == nil || acc.password != req.Password || !acc.isActive {
		c.JSON(http.StatusUnauthorized, gin.H{"non_field_errors": []string{"Invalid email or password."}})
		return
	}
	if req.ClientType == string(models.RoleAgency) && acc.profile.Role != models.RoleAgency {
		c.JSON(http.StatusUnauthorized, gin.H{"non_field_errors": []string{"This account is not linked to an agency."}})
		return
	}

	c.JSON(http.StatusOK, models.LoginResponse{
		User:    acc.profile,
		Access:  h.issue(acc.profile.ID, "access"),
		Refresh: h.issue(acc.profile.ID, "refresh"),
	})
}

func (h *Handlers) handleRefresh(c *gin.Context) {
	var req models.RefreshRequest
	_ = c.ShouldBindJSON(&req)

	h.mu.Lock()
	defer h.mu.Unlock()

	uid, ok := h.refresh[req.Refresh]
	if req.Refresh == "" || !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"detail": "Token is invalid or expired", "code": "token_not_valid"})
		return
	}
	c.JSON(http.StatusOK, models.RefreshResponse{Access: h.issue(uid, "access")})
}

func (h *Handlers) handleLogout(c *gin.Context) {
	var req models.RefreshRequest
	_ = c.ShouldBindJSON(&req)
	if req.Refresh == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Refresh token is required."})
		return
	}

	h.mu.Lock()
	delete(h.refresh, req.Refresh)
	h.mu.Unlock()

	c.JSON(http.StatusOK, models.Message{Message: "Logged out successfully."})
}

func (h *Handlers) handleProfile(c *gin.Context) {
	h.mu.Lock()
	p := currentAccount(c).profile
	h.mu.Unlock()
	c.JSON(http.StatusOK, p)
}

func (h *Handlers) handleRegisterDevice(c *gin.Context) {
	var req models.RegisterDeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.PushToken == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "push_token is required."})
		return
	}

	h.mu.Lock()
	currentAccount(c).pushToken = req.PushToken
	h.mu.Unlock()

	c.JSON(http.StatusOK, models.Message{Message: "Device registered successfully."})
}
