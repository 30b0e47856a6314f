package server

import (
	"encoding/json"
	"net/http"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type userResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

// handleLogin validates credentials against the CSV store and mints a
// signed token carrying the caller's identity claims.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	_ = json.NewDecoder(r.Body).Decode(&req)

	if req.Username == "" || req.Password == "" {
		validationError(w, "Username and password are required", map[string]any{
			"username": "required",
			"password": "required",
		})
		return
	}

	user, err := s.creds.VerifyCredentials(req.Username, req.Password)
	if err != nil {
		unauthorizedError(w, "Invalid credentials")
		return
	}

	tok, err := s.tokens.CreateToken(map[string]any{
		"sub":      user.ID,
		"username": user.Username,
		"role":     user.Role,
	})
	if err != nil {
		serverError(w, "Could not issue token")
		return
	}

	writeData(w, http.StatusOK, map[string]any{
		"token": tok,
		"user":  userResponse{ID: user.ID, Username: user.Username, Role: user.Role},
	})
}

// handleMe resolves the calling user from the bearer token's own claims.
// No credential lookup happens here; the signed payload is the source of
// truth.
func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	tok := bearerToken(r)
	if tok == "" {
		unauthorizedError(w, "Missing bearer token")
		return
	}

	claims, err := s.tokens.VerifyToken(tok)
	if err != nil {
		unauthorizedError(w, "Invalid or expired token")
		return
	}

	writeData(w, http.StatusOK, userResponse{
		ID:       claimString(claims, "sub"),
		Username: claimString(claims, "username"),
		Role:     claimString(claims, "role"),
	})
}
