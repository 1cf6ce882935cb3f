package controllers

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode"

	"civicsync/apperr"
	"civicsync/middlewares"
	"civicsync/models"
	"civicsync/repository"
	"civicsync/services"
	"civicsync/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// CookieConfig controls the auth_token cookie set on login.
type CookieConfig struct {
	Domain string
	Secure bool
}

type AuthController struct {
	users       repository.UserRegistry
	tokens      *utils.TokenManager
	denylist    middlewares.TokenDenylist
	cookie      CookieConfig
	log         *zap.Logger
	sessionOpts []services.SessionOption
}

func NewAuthController(
	users repository.UserRegistry,
	tokens *utils.TokenManager,
	denylist middlewares.TokenDenylist,
	cookie CookieConfig,
	log *zap.Logger,
	sessionOpts ...services.SessionOption,
) *AuthController {
	return &AuthController{
		users:       users,
		tokens:      tokens,
		denylist:    denylist,
		cookie:      cookie,
		log:         log,
		sessionOpts: sessionOpts,
	}
}

func (ac *AuthController) session() *services.SessionStore {
	return services.NewSessionStore(ac.users, ac.sessionOpts...)
}

type authResponse struct {
	User     models.User `json:"user"`
	Token    string      `json:"token"`
	Redirect string      `json:"redirect,omitempty"`
}

// Register handles user registration
func (ac *AuthController) Register(c *gin.Context) {
	var input struct {
		Name     string  `json:"name" binding:"required,max=50"`
		Email    string  `json:"email" binding:"required,email"`
		Password string  `json:"password" binding:"required,min=6"`
		Avatar   *string `json:"avatar,omitempty" binding:"omitempty,url"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, err)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	user, err := ac.session().Register(ctx, services.RegisterInput{
		Name:     input.Name,
		Email:    input.Email,
		Password: input.Password,
		Avatar:   input.Avatar,
	})
	if err != nil {
		respondError(c, ac.log, err)
		return
	}

	token, ok := ac.issueToken(c, user)
	if !ok {
		return
	}
	respond(c, http.StatusCreated, authResponse{User: user, Token: token, Redirect: "/"})
}

// Login handles user login. The optional from field is echoed back as the
// page to return to.
func (ac *AuthController) Login(c *gin.Context) {
	var input struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
		From     string `json:"from"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, err)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	user, err := ac.session().Login(ctx, input.Email, input.Password)
	if err != nil {
		respondError(c, ac.log, err)
		return
	}

	token, ok := ac.issueToken(c, user)
	if !ok {
		return
	}
	from := input.From
	if from == "" {
		from = c.Query("from")
	}
	respond(c, http.StatusOK, authResponse{User: user, Token: token, Redirect: safeRedirect(from)})
}

func (ac *AuthController) issueToken(c *gin.Context, user models.User) (string, bool) {
	token, _, err := ac.tokens.GenerateToken(user)
	if err != nil {
		ac.log.Error("generate token", zap.String("user_id", user.ID), zap.Error(err))
		fail(c, http.StatusInternalServerError, "Something went wrong")
		return "", false
	}
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     middlewares.TokenCookie,
		Value:    token,
		MaxAge:   int(ac.tokens.TTL().Seconds()),
		Path:     "/",
		Domain:   ac.cookie.Domain,
		Secure:   ac.cookie.Secure,
		HttpOnly: true,
		SameSite: http.SameSiteNoneMode,
	})
	return token, true
}

// Logout revokes the presented token and clears the cookie. It succeeds for
// tokens that are already revoked.
func (ac *AuthController) Logout(c *gin.Context) {
	claims, ok := middlewares.ClaimsFrom(c)
	if !ok {
		respondError(c, ac.log, apperr.AuthenticationRequired("User not authenticated"))
		return
	}

	if ac.denylist != nil {
		if err := ac.denylist.Revoke(c.Request.Context(), claims.ID, claims.TTL(time.Now())); err != nil {
			respondError(c, ac.log, err)
			return
		}
	}

	session := ac.session()
	session.Restore(claims.User())
	session.Logout()

	c.SetCookie(middlewares.TokenCookie, "", -1, "/", ac.cookie.Domain, ac.cookie.Secure, true)
	respond(c, http.StatusOK, gin.H{"message": "Logged out successfully"})
}

// GetMe returns the signed-in user's profile.
func (ac *AuthController) GetMe(c *gin.Context) {
	claims, ok := middlewares.ClaimsFrom(c)
	if !ok {
		respondError(c, ac.log, apperr.AuthenticationRequired("User not authenticated"))
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	user, err := ac.users.FindByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			respondError(c, ac.log, apperr.NotFound("User not found"))
			return
		}
		respondError(c, ac.log, err)
		return
	}
	respond(c, http.StatusOK, user.Public())
}

// safeRedirect only allows same-site paths. Browsers read a backslash as a
// slash, so "/\host" is treated like "//host".
func safeRedirect(from string) string {
	if from == "" || strings.ContainsFunc(from, unicode.IsControl) {
		return "/"
	}
	normalized := strings.ReplaceAll(from, "\\", "/")
	if !strings.HasPrefix(normalized, "/") || strings.HasPrefix(normalized, "//") {
		return "/"
	}
	u, err := url.Parse(normalized)
	if err != nil || u.Scheme != "" || u.Host != "" || u.User != nil {
		return "/"
	}
	if strings.HasPrefix(u.Path, "/login") {
		return "/"
	}
	return normalized
}
