package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/suma/internal/middleware"
	"github.com/xxxsen/suma/internal/model"
	"github.com/xxxsen/suma/internal/pkg/response"
	"github.com/xxxsen/suma/internal/service"
)

const RefreshCookieName = "suma_refresh"

type AuthService interface {
	Register(ctx context.Context, email, password string) (*model.User, *service.TokenPair, error)
	Login(ctx context.Context, email, password string) (*model.User, *service.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (*service.TokenPair, error)
}

type CookieConfig struct {
	Secure bool
	MaxAge int
}

type AuthHandler struct {
	auth   AuthService
	cookie CookieConfig
}

func NewAuthHandler(auth AuthService, cookie CookieConfig) *AuthHandler {
	return &AuthHandler{auth: auth, cookie: cookie}
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidRequest(c, "invalid request")
		return
	}
	_, tokens, err := h.auth.Register(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		handleError(c, err)
		return
	}
	h.writeTokens(c, tokens)
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidRequest(c, "invalid request")
		return
	}
	_, tokens, err := h.auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		handleError(c, err)
		return
	}
	h.writeTokens(c, tokens)
}

func (h *AuthHandler) Refresh(c *gin.Context) {
	token, _ := c.Cookie(RefreshCookieName)
	tokens, err := h.auth.Refresh(c.Request.Context(), token)
	if err != nil {
		handleError(c, err)
		return
	}
	h.writeTokens(c, tokens)
}

func (h *AuthHandler) Logout(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(RefreshCookieName, "", -1, "/", "", h.cookie.Secure, true)
	response.Success(c, gin.H{"ok": true})
}

func (h *AuthHandler) Me(c *gin.Context) {
	response.Success(c, gin.H{"user_id": middleware.UserID(c)})
}

func (h *AuthHandler) writeTokens(c *gin.Context, tokens *service.TokenPair) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(RefreshCookieName, tokens.RefreshToken, h.cookie.MaxAge, "/", "", h.cookie.Secure, true)
	response.Success(c, tokens)
}
