package handlers

import (
	"log/slog"
	"net/http"

	"github.com/Zack-y11/e-commerce/internal/users"
	"github.com/Zack-y11/e-commerce/middleware"
	"github.com/Zack-y11/e-commerce/pkg/ctxmanage"
	"github.com/Zack-y11/e-commerce/pkg/logkey"

	"github.com/gin-gonic/gin"
)

// idCookie lets browser clients read who is logged in without decoding the token.
const idCookie = "id"

func (h *Handler) Signup(c *gin.Context) {
	var newUser users.NewUser
	if !bindJSON(c, &newUser) {
		return
	}

	user, err := h.Users.InsertUser(c.Request.Context(), newUser)
	if err != nil {
		abortWithError(c, "error in creating user", err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "User created successfully",
		"user_id": user.ID,
	})
}

func (h *Handler) Login(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)

	var creds users.Credentials
	if !bindJSON(c, &creds) {
		return
	}

	user, err := h.Users.Authenticate(c.Request.Context(), creds)
	if err != nil {
		abortWithError(c, "login failed", err)
		return
	}

	token, err := h.Keys.GenerateToken(user.ID, user.Email, []string{user.Role})
	if err != nil {
		slog.Error("error in generating token", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": http.StatusText(http.StatusInternalServerError)})
		return
	}

	maxAge := int(h.Keys.TTL().Seconds())
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.TokenCookie, token, maxAge, "/", "", false, true)
	c.SetCookie(idCookie, user.ID, maxAge, "/", "", false, false)

	slog.Info("user logged in", slog.String(logkey.TraceID, traceId), slog.String(logkey.UserID, user.ID))
	c.JSON(http.StatusOK, gin.H{"token": token, "user": user})
}

func (h *Handler) Logout(c *gin.Context) {
	c.SetCookie(middleware.TokenCookie, "", -1, "/", "", false, true)
	c.SetCookie(idCookie, "", -1, "/", "", false, false)
	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}

func (h *Handler) GetProfile(c *gin.Context) {
	claims, ok := currentUser(c)
	if !ok {
		return
	}
	user, err := h.Users.GetUser(c.Request.Context(), claims.Subject)
	if err != nil {
		abortWithError(c, "error in fetching profile", err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *Handler) UpdateProfile(c *gin.Context) {
	claims, ok := currentUser(c)
	if !ok {
		return
	}
	var uu users.UpdateUser
	if !bindJSON(c, &uu) {
		return
	}
	user, err := h.Users.UpdateUser(c.Request.Context(), claims.Subject, uu)
	if err != nil {
		abortWithError(c, "error in updating profile", err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *Handler) DeleteProfile(c *gin.Context) {
	claims, ok := currentUser(c)
	if !ok {
		return
	}
	if err := h.Users.DeleteUser(c.Request.Context(), claims.Subject); err != nil {
		abortWithError(c, "error in deleting profile", err)
		return
	}
	c.SetCookie(middleware.TokenCookie, "", -1, "/", "", false, true)
	c.SetCookie(idCookie, "", -1, "/", "", false, false)
	c.Status(http.StatusNoContent)
}
