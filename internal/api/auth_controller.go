package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Authenticator is the admin account surface; *services.AuthService implements it
type Authenticator interface {
	TokenParser
	Login(ctx context.Context, username, password string) (string, time.Time, error)
	ChangeCredentials(ctx context.Context, adminID, oldPassword, newUsername, newPassword string) error
}

// AuthController serves admin login and credential changes
type AuthController struct {
	auth Authenticator
}

func NewAuthController(auth Authenticator) *AuthController {
	return &AuthController{auth: auth}
}

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type LoginResponse struct {
	Token     string `json:"token"`
	ExpiresAt int64  `json:"expiresAt"`
}

// Login handles POST /api/admin/login
func (ac *AuthController) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	token, expires, err := ac.auth.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, LoginResponse{Token: token, ExpiresAt: expires.Unix()})
}

type ChangeCredentialsRequest struct {
	OldPassword string `json:"oldPassword" binding:"required"`
	NewUsername string `json:"newUsername"`
	NewPassword string `json:"newPassword"`
}

// ChangeCredentials handles POST /api/admin/change-credentials
func (ac *AuthController) ChangeCredentials(c *gin.Context) {
	claims := claimsFrom(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Nicht autorisiert"})
		return
	}

	var req ChangeCredentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if req.NewUsername == "" && req.NewPassword == "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Neuer Benutzername oder neues Passwort erforderlich"})
		return
	}

	err := ac.auth.ChangeCredentials(c.Request.Context(), claims.Subject, req.OldPassword, req.NewUsername, req.NewPassword)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Zugangsdaten wurden aktualisiert"})
}
