package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"aerolite/backend/internal/account"
)

type userView struct {
	ID        int64  `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	IsAdmin   bool   `json:"isAdmin"`
}

type authResponse struct {
	Message     string   `json:"message"`
	AccessToken string   `json:"access_token"`
	User        userView `json:"user"`
}

func viewOf(u *account.User) userView {
	return userView{ID: u.ID, Email: u.Email, FirstName: u.FirstName, LastName: u.LastName}
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email     string `json:"email"`
		Password  string `json:"password"`
		FirstName string `json:"firstName"`
		LastName  string `json:"lastName"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "No data received")
		return
	}

	u, err := s.svc.Accounts.Register(r.Context(), req.Email, req.Password, req.FirstName, req.LastName)
	if err != nil {
		var vErr *account.ValidationError
		switch {
		case errors.As(err, &vErr):
			writeError(w, http.StatusBadRequest, vErr.Msg)
		case errors.Is(err, account.ErrEmailTaken):
			writeError(w, http.StatusBadRequest, "Email already registered")
		default:
			s.logger.Error("registration error", "err", err)
			writeError(w, http.StatusInternalServerError, "Registration failed")
		}
		return
	}

	token, err := s.svc.Sessions.Issue(r.Context(), u.ID)
	if err != nil {
		s.logger.Error("issue token after registration", "user_id", u.ID, "err", err)
		writeError(w, http.StatusInternalServerError, "Registration failed")
		return
	}

	writeJSON(w, http.StatusCreated, authResponse{
		Message:     "User created successfully",
		AccessToken: token,
		User:        viewOf(u),
	})
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	u, err := s.svc.Accounts.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, account.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "Invalid email or password")
			return
		}
		s.logger.Error("login error", "err", err)
		writeError(w, http.StatusInternalServerError, "Login failed")
		return
	}

	token, err := s.svc.Sessions.Issue(r.Context(), u.ID)
	if err != nil {
		s.logger.Error("issue token after login", "user_id", u.ID, "err", err)
		writeError(w, http.StatusInternalServerError, "Login failed")
		return
	}

	writeJSON(w, http.StatusOK, authResponse{
		Message:     "Login successful",
		AccessToken: token,
		User:        viewOf(u),
	})
}
