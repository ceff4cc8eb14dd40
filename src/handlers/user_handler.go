package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/username/stockfolio/backend/src/config"
	"github.com/username/stockfolio/backend/src/database"
	"github.com/username/stockfolio/backend/src/logger"
	"github.com/username/stockfolio/backend/src/model"
	"github.com/username/stockfolio/backend/src/security"
	"github.com/username/stockfolio/backend/src/utils"
)

type UserHandler struct {
	authService *security.AuthService
}

func NewUserHandler(authService *security.AuthService) *UserHandler {
	return &UserHandler{
		authService: authService,
	}
}

func (h *UserHandler) RegisterUserHandler(w http.ResponseWriter, r *http.Request) {
	var credentials struct {
		Username     string `json:"username"`
		Email        string `json:"email"`
		Password     string `json:"password"`
		Timezone     string `json:"timezone"`
		HomeCurrency string `json:"home_currency"`
	}

	if err := json.NewDecoder(r.Body).Decode(&credentials); err != nil {
		utils.SendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if credentials.Username == "" || credentials.Email == "" || len(credentials.Password) < 8 {
		utils.SendJSONError(w, "Username, email and a password of at least 8 characters are required", http.StatusBadRequest)
		return
	}

	hashedPassword, err := h.authService.HashPassword(credentials.Password)
	if err != nil {
		utils.SendJSONError(w, "Failed to hash password", http.StatusInternalServerError)
		return
	}

	if credentials.HomeCurrency == "" {
		credentials.HomeCurrency = config.Cfg.DefaultHomeCurrency
	}

	user := &model.User{
		Username:     credentials.Username,
		Email:        credentials.Email,
		Password:     hashedPassword,
		HomeCurrency: strings.ToUpper(credentials.HomeCurrency),
		Timezone:     credentials.Timezone,
	}

	if err := user.CreateUser(database.DB); err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			utils.SendJSONError(w, "Username or email already exists", http.StatusConflict)
			return
		}
		logger.L.Error("Failed to create user", "error", err)
		utils.SendJSONError(w, "Failed to create user", http.StatusInternalServerError)
		return
	}

	utils.WriteJSON(w, http.StatusCreated, map[string]string{
		"message": "User registered successfully",
	})
}

func (h *UserHandler) LoginUserHandler(w http.ResponseWriter, r *http.Request) {
	var credentials struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}

	if err := json.NewDecoder(r.Body).Decode(&credentials); err != nil {
		utils.SendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	user, err := model.GetUserByUsername(database.DB, credentials.Username)
	if err != nil {
		logger.L.Warn("Login: user lookup failed", "username", credentials.Username, "error", err)
		utils.SendJSONError(w, "Invalid username or password", http.StatusUnauthorized)
		return
	}

	if err := user.CheckPassword(credentials.Password); err != nil {
		logger.L.Warn("Login: password check failed", "username", credentials.Username)
		utils.SendJSONError(w, "Invalid username or password", http.StatusUnauthorized)
		return
	}

	userIDStr := fmt.Sprintf("%d", user.ID)
	accessToken, err := h.authService.GenerateToken(userIDStr)
	if err != nil {
		utils.SendJSONError(w, "Failed to generate access token", http.StatusInternalServerError)
		return
	}

	refreshToken, err := h.authService.GenerateRefreshToken()
	if err != nil {
		utils.SendJSONError(w, "Failed to generate refresh token", http.StatusInternalServerError)
		return
	}

	session := &model.Session{
		UserID:       user.ID,
		Token:        accessToken,
		RefreshToken: refreshToken,
		UserAgent:    r.UserAgent(),
		ClientIP:     r.RemoteAddr,
		IsBlocked:    false,
		ExpiresAt:    time.Now().Add(config.Cfg.RefreshTokenExpiry),
	}
	if err := model.CreateSession(database.DB, session); err != nil {
		utils.SendJSONError(w, "Failed to create session", http.StatusInternalServerError)
		return
	}

	utils.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"access_token":  accessToken,
		"refresh_token": refreshToken,
		"user": map[string]interface{}{
			"id":            user.ID,
			"username":      user.Username,
			"home_currency": user.HomeCurrency,
			"timezone":      user.Timezone,
		},
	})
}

func (h *UserHandler) RefreshTokenHandler(w http.ResponseWriter, r *http.Request) {
	var requestBody struct {
		RefreshToken string `json:"refresh_token"`
	}

	if err := json.NewDecoder(r.Body).Decode(&requestBody); err != nil {
		utils.SendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if requestBody.RefreshToken == "" {
		utils.SendJSONError(w, "Refresh token is required", http.StatusBadRequest)
		return
	}

	session, err := model.GetSessionByRefreshToken(database.DB, requestBody.RefreshToken)
	if err != nil {
		logger.L.Warn("Refresh token lookup failed", "error", err)
		utils.SendJSONError(w, "Invalid refresh token", http.StatusUnauthorized)
		return
	}

	userIDStr := fmt.Sprintf("%d", session.UserID)
	newAccessToken, err := h.authService.GenerateToken(userIDStr)
	if err != nil {
		utils.SendJSONError(w, "Failed to generate new access token", http.StatusInternalServerError)
		return
	}

	newRefreshToken, err := h.authService.GenerateRefreshToken()
	if err != nil {
		utils.SendJSONError(w, "Failed to generate new refresh token", http.StatusInternalServerError)
		return
	}

	newSession := &model.Session{
		UserID:       session.UserID,
		Token:        newAccessToken,
		RefreshToken: newRefreshToken,
		UserAgent:    r.UserAgent(),
		ClientIP:     r.RemoteAddr,
		IsBlocked:    false,
		ExpiresAt:    time.Now().Add(config.Cfg.RefreshTokenExpiry),
	}
	if err := model.CreateSession(database.DB, newSession); err != nil {
		utils.SendJSONError(w, "Failed to create new session on refresh", http.StatusInternalServerError)
		return
	}

	utils.WriteJSON(w, http.StatusOK, map[string]string{
		"access_token":  newAccessToken,
		"refresh_token": newRefreshToken,
	})
}

func (h *UserHandler) LogoutUserHandler(w http.ResponseWriter, r *http.Request) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		utils.SendJSONError(w, "Authorization header required", http.StatusUnauthorized)
		return
	}

	tokenString := authHeader
	if strings.HasPrefix(authHeader, "Bearer ") {
		tokenString = strings.TrimPrefix(authHeader, "Bearer ")
	}
	if tokenString == "" {
		utils.SendJSONError(w, "Malformed token", http.StatusUnauthorized)
		return
	}

	if err := model.DeleteSessionByToken(database.DB, tokenString); err != nil {
		logger.L.Warn("Logout: failed to delete session", "error", err)
	}

	w.WriteHeader(http.StatusNoContent)
}

// HandleChangePassword verifies the current password and stores a new hash.
func (h *UserHandler) HandleChangePassword(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	var payload struct {
		CurrentPassword string `json:"current_password"`
		NewPassword     string `json:"new_password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.SendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if len(payload.NewPassword) < 8 {
		utils.SendJSONError(w, "New password must be at least 8 characters", http.StatusBadRequest)
		return
	}

	user, err := model.GetUserByID(database.DB, userID)
	if err != nil {
		utils.SendDomainError(w, err)
		return
	}
	if err := user.CheckPassword(payload.CurrentPassword); err != nil {
		utils.SendJSONError(w, "Current password is incorrect", http.StatusUnauthorized)
		return
	}

	hashedPassword, err := h.authService.HashPassword(payload.NewPassword)
	if err != nil {
		utils.SendJSONError(w, "Failed to hash password", http.StatusInternalServerError)
		return
	}
	if err := model.UpdateUserPassword(database.DB, userID, hashedPassword); err != nil {
		utils.SendDomainError(w, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, map[string]string{
		"message": "Password updated successfully",
	})
}

// HandleGetSettings returns the authenticated user's profile.
func (h *UserHandler) HandleGetSettings(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	user, err := model.GetUserByID(database.DB, userID)
	if err != nil {
		utils.SendDomainError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, user)
}

// HandleUpdateSettings updates email, username, home currency and timezone.
func (h *UserHandler) HandleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	var payload struct {
		Email        string `json:"email"`
		Username     string `json:"username"`
		HomeCurrency string `json:"home_currency"`
		Timezone     string `json:"timezone"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.SendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	user, err := model.GetUserByID(database.DB, userID)
	if err != nil {
		utils.SendDomainError(w, err)
		return
	}

	if payload.Email != "" {
		user.Email = payload.Email
	}
	if payload.Username != "" {
		user.Username = payload.Username
	}
	if payload.HomeCurrency != "" {
		user.HomeCurrency = strings.ToUpper(payload.HomeCurrency)
	}
	if payload.Timezone != "" {
		user.Timezone = payload.Timezone
	}

	if err := model.UpdateUserSettings(database.DB, user); err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			utils.SendJSONError(w, "Username or email already exists", http.StatusConflict)
			return
		}
		utils.SendDomainError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, user)
}
