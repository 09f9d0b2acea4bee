package handler

import (
	"net/http"

	"microboard/internal/auth"
	"microboard/internal/middleware"
	"microboard/internal/model"
	"microboard/internal/service"
	"microboard/pkg/apierror"
)

type AuthHandler struct {
	service *service.AuthService
}

func NewAuthHandler(service *service.AuthService) *AuthHandler {
	return &AuthHandler{service: service}
}

func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var payload model.SignupRequest
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, err)
		return
	}

	result, err := h.service.Signup(r.Context(), payload)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusCreated, result, nil)
}

func (h *AuthHandler) Signin(w http.ResponseWriter, r *http.Request) {
	var payload model.SigninRequest
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, err)
		return
	}

	result, err := h.service.Signin(r.Context(), payload)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, result, nil)
}

func (h *AuthHandler) Profile(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, apierror.Unauthorized("authentication required"))
		return
	}

	user, err := h.service.Profile(r.Context(), identity.ID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, user, nil)
}

// Verify answers dependent services. Success is the bare {valid, user} body;
// failures use the standard envelope so callers can classify by error code.
func (h *AuthHandler) Verify(w http.ResponseWriter, r *http.Request) {
	credential, err := auth.BearerToken(r.Header.Get("Authorization"))
	if err != nil {
		writeError(w, err)
		return
	}

	identity, err := h.service.VerifyToken(r.Context(), credential)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, model.VerifyResponse{Valid: true, User: identity})
}
