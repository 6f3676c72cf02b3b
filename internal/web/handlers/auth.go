package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/kozaktomas/face-auth/internal/auth"
	"github.com/kozaktomas/face-auth/internal/observe"
)

// FaceAuthHandler handles face registration and login.
type FaceAuthHandler struct {
	service *auth.Service
	obs     *observe.Observer
}

// NewFaceAuthHandler creates a new face auth handler
func NewFaceAuthHandler(service *auth.Service, obs *observe.Observer) *FaceAuthHandler {
	if obs == nil {
		obs = observe.Discard()
	}
	return &FaceAuthHandler{service: service, obs: obs}
}

// RegisterRequest is the body of POST /api/auth/register-face.
type RegisterRequest struct {
	UserID         string    `json:"userId"`
	FaceDescriptor []float64 `json:"faceDescriptor"`
}

// LoginRequest is the body of POST /api/auth/face-login.
type LoginRequest struct {
	FaceDescriptor []float64 `json:"faceDescriptor"`
}

// LoginResponse is returned on a successful face login.
type LoginResponse struct {
	Message string `json:"message"`
	UserID  string `json:"userId"`
}

// Register stores (or overwrites) the descriptor of a user.
func (h *FaceAuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if _, err := h.service.Register(r.Context(), req.UserID, req.FaceDescriptor); err != nil {
		h.respondAuthError(w, err, "register", req.UserID)
		return
	}

	respondJSON(w, http.StatusOK, MessageResponse{Message: "Face registered successfully!"})
}

// Login authenticates a face descriptor against the enrolled identities.
func (h *FaceAuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.service.Login(r.Context(), req.FaceDescriptor)
	if err != nil {
		h.respondAuthError(w, err, "login", "")
		return
	}

	respondJSON(w, http.StatusOK, LoginResponse{
		Message: fmt.Sprintf("Login successful! Welcome, %s", result.UserID),
		UserID:  result.UserID,
	})
}

// respondAuthError maps service errors to status codes. Failure details never
// reach the client: an unknown face and an empty store look the same.
func (h *FaceAuthHandler) respondAuthError(w http.ResponseWriter, err error, op, userID string) {
	switch {
	case errors.Is(err, auth.ErrInvalidInput):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, auth.ErrAuthenticationFailed):
		respondError(w, http.StatusUnauthorized, "Face not recognized")
	default:
		h.obs.Log().Error().
			Err(err).
			Str("op", op).
			Str("user_id", sanitizeForLog(userID)).
			Msg("face auth request failed")
		respondError(w, http.StatusInternalServerError, errInternal)
	}
}
