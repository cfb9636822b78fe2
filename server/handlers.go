package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/greenwood-edu/lostfound-auth/users"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role,omitempty"`
}

type registerRequest struct {
	Username    string `json:"username"`
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name,omitempty"`
	Role        string `json:"role,omitempty"`
}

type credentialsResponse struct {
	Token string      `json:"token"`
	User  *users.User `json:"user"`
}

type refreshResponse struct {
	Token string `json:"token"`
}

// LoginHandler authenticates a username (or email) and password. A claimed
// role that does not match the account is treated as invalid credentials, so
// the response never discloses which part of the combination was wrong.
func (s *Server) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "username and password are required")
		return
	}

	user, err := s.users.GetByIdentifier(r.Context(), req.Username)
	if err != nil || !users.CheckPasswordHash(req.Password, user.PasswordHash) {
		writeError(w, http.StatusUnauthorized, "invalid_credentials", "invalid username or password")
		return
	}
	if req.Role != "" && users.Role(req.Role) != user.Role {
		writeError(w, http.StatusUnauthorized, "invalid_credentials", "invalid username or password")
		return
	}

	signed, _, err := s.tokens.Issue(r.Context(), user)
	if err != nil {
		s.internalError(w, err, "issuing token")
		return
	}
	if err := s.users.SetLastLogin(r.Context(), user.Username); err != nil {
		log.Warn().Err(err).Str("username", user.Username).Msg("failed recording last login")
	}

	writeJSON(w, http.StatusOK, credentialsResponse{Token: signed, User: user})
}

// RegisterHandler creates a new principal and authenticates it immediately,
// returning a token alongside the created profile.
func (s *Server) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed request body")
		return
	}

	user, err := s.buildNewUser(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", err.Error())
		return
	}

	if _, err := s.users.GetByUsername(r.Context(), user.Username); err == nil {
		writeError(w, http.StatusConflict, "already_exists", "username is already registered")
		return
	}
	if _, err := s.users.GetByEmail(r.Context(), user.Email); err == nil {
		writeError(w, http.StatusConflict, "already_exists", "email is already registered")
		return
	}

	if err := s.users.Upsert(r.Context(), user); err != nil {
		if errors.Is(err, users.AlreadyExistsErr) {
			writeError(w, http.StatusConflict, "already_exists", "account is already registered")
			return
		}
		s.internalError(w, err, "creating user")
		return
	}

	signed, _, err := s.tokens.Issue(r.Context(), user)
	if err != nil {
		s.internalError(w, err, "issuing token")
		return
	}

	log.Info().Str("username", user.Username).Str("role", string(user.Role)).Msg("user registered")
	writeJSON(w, http.StatusCreated, credentialsResponse{Token: signed, User: user})
}

// RefreshHandler exchanges a signature-valid, possibly expired token for a
// fresh one. The old token is rotated out and cannot be used again.
func (s *Server) RefreshHandler(w http.ResponseWriter, r *http.Request) {
	raw := bearerToken(r)
	if raw == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing token")
		return
	}

	signed, _, err := s.tokens.Refresh(r.Context(), raw)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "session_expired", "re-authentication required")
		return
	}
	writeJSON(w, http.StatusOK, refreshResponse{Token: signed})
}

// MeHandler returns the authoritative profile for the presented token.
func (s *Server) MeHandler(w http.ResponseWriter, r *http.Request) {
	claims, _ := ClaimsFromContext(r.Context())

	user, err := s.users.GetByID(r.Context(), claims.Subject)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized", "account no longer exists")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// LogoutHandler revokes the presented token. It succeeds regardless of
// whether the token was valid, so logout is idempotent.
func (s *Server) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	if raw := bearerToken(r); raw != "" {
		if claims, err := s.issuer.VerifyAllowExpired(raw); err == nil {
			if err := s.tokens.Revoke(r.Context(), claims.ID); err != nil {
				log.Warn().Err(err).Msg("failed revoking token on logout")
			}
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListUsersHandler returns every registered user. Gated to staff and admin.
func (s *Server) ListUsersHandler(w http.ResponseWriter, r *http.Request) {
	list, err := s.users.List(r.Context(), 0, 0)
	if err != nil {
		s.internalError(w, err, "listing users")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": list, "total": len(list)})
}

// DashboardHandler is the landing surface for any authenticated role.
func (s *Server) DashboardHandler(w http.ResponseWriter, r *http.Request) {
	claims, _ := ClaimsFromContext(r.Context())
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "welcome back",
		"name":    claims.DisplayName,
		"role":    string(claims.Role),
	})
}

// LoginPageHandler is the anonymous entry point the guard redirects to.
func (s *Server) LoginPageHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "authentication required",
		"from":    r.URL.Query().Get("from"),
	})
}

// UnauthorizedPageHandler is the forbidden page the guard redirects to.
func (s *Server) UnauthorizedPageHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusForbidden, map[string]string{
		"message": "you do not have access to this page",
	})
}

func (s *Server) buildNewUser(req registerRequest) (*users.User, error) {
	if req.Username == "" || req.Email == "" || req.Password == "" {
		return nil, errors.New("username, email and password are required")
	}
	if err := users.ValidatePasswordStrength(req.Password); err != nil {
		return nil, err
	}

	role := users.RoleStudent
	if req.Role != "" {
		parsed, err := users.ParseRole(req.Role)
		if err != nil {
			return nil, err
		}
		if parsed == users.RoleAdmin {
			// Admin accounts are provisioned, never self-registered.
			return nil, errors.New("cannot self-register as admin")
		}
		role = parsed
	}

	hash, err := users.HashPassword(req.Password)
	if err != nil {
		return nil, errors.Wrap(err, "hashing password")
	}

	displayName := req.DisplayName
	if displayName == "" {
		displayName = req.Username
	}

	return &users.User{
		Username:     req.Username,
		Email:        req.Email,
		DisplayName:  displayName,
		PasswordHash: hash,
		Role:         role,
		CreatedAt:    time.Now(),
	}, nil
}

func (s *Server) internalError(w http.ResponseWriter, err error, context string) {
	log.Error().Err(err).Msg(context)
	writeError(w, http.StatusInternalServerError, "internal_error", "something went wrong")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed encoding response")
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{"error": code, "message": message})
}
