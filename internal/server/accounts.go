package server

import (
	"net/http"

	"github.com/desertthunder/zylofm/internal/tasks"
)

type credentialsRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

type profileRequest struct {
	Name            *string `json:"name"`
	Image           *string `json:"image"`
	Bio             *string `json:"bio"`
	Password        *string `json:"password"`
	CurrentPassword string  `json:"current_password"`
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}

	session, err := s.accounts.Register(r.Context(), req.Email, req.Name, req.Password)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, session)
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}

	session, err := s.accounts.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, session)
}

func (s *Server) me(w http.ResponseWriter, r *http.Request) {
	writeData(w, http.StatusOK, currentUser(r))
}

func (s *Server) updateMe(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}

	user, err := s.accounts.UpdateProfile(r.Context(), currentUser(r), tasks.ProfileChanges{
		Name:            req.Name,
		Image:           req.Image,
		Bio:             req.Bio,
		Password:        req.Password,
		CurrentPassword: req.CurrentPassword,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, user)
}
