package handlers

import (
	"net/http"

	"beijjati-server/auth"
	"beijjati-server/middleware"
	"beijjati-server/utils/errors"
)

type AuthHandler struct {
	users  UserDirectory
	tokens *auth.TokenIssuer
}

func NewAuthHandler(users UserDirectory, tokens *auth.TokenIssuer) *AuthHandler {
	return &AuthHandler{users: users, tokens: tokens}
}

func (h *AuthHandler) RegisterUser(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &input); err != nil {
		middleware.WriteError(w, err)
		return
	}
	if input.Username == "" || input.Email == "" || input.Password == "" {
		middleware.WriteError(w, errors.BadRequest("Username, email, and password are required"))
		return
	}

	userID, err := h.users.Create(r.Context(), input.Username, input.Email, input.Password)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	token, err := h.tokens.Issue(userID, input.Username)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	middleware.WriteJSON(w, http.StatusCreated, map[string]string{
		"message":      "User created successfully",
		"access_token": token,
		"user_id":      userID.Hex(),
	})
}

func (h *AuthHandler) LoginUser(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &input); err != nil {
		middleware.WriteError(w, err)
		return
	}
	if input.Username == "" || input.Password == "" {
		middleware.WriteError(w, errors.BadRequest("Username and password are required"))
		return
	}

	user, err := h.users.Authenticate(r.Context(), input.Username, input.Password)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	token, err := h.tokens.Issue(user.ID, user.Username)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]string{
		"message":      "Login successful",
		"access_token": token,
		"user_id":      user.ID.Hex(),
		"username":     user.Username,
	})
}

func (h *AuthHandler) CurrentUser(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}

	user, err := h.users.GetUser(r.Context(), id.UserID)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]any{"user": user.Public()})
}
