package http

import (
	"net/http"

	"github.com/Spok95/makerspace/internal/clients"
	"github.com/Spok95/makerspace/internal/domain/users"
)

type signUpRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type federatedRequest struct {
	IDToken string `json:"id_token"`
}

type sessionResponse struct {
	Token string  `json:"token"`
	User  userDTO `json:"user"`
}

func (a *API) signUp(w http.ResponseWriter, r *http.Request) {
	var req signUpRequest
	if !decode(w, r, &req) {
		return
	}
	u, err := a.Auth.SignUp(r.Context(), req.Email, req.Password, req.DisplayName)
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.startSession(w, http.StatusCreated, u)
}

func (a *API) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decode(w, r, &req) {
		return
	}
	u, err := a.Auth.SignInWithCredentials(r.Context(), req.Email, req.Password)
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.startSession(w, http.StatusOK, u)
}

func (a *API) federated(w http.ResponseWriter, r *http.Request) {
	var req federatedRequest
	if !decode(w, r, &req) {
		return
	}
	u, err := a.Auth.SignInFederated(r.Context(), req.IDToken)
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.startSession(w, http.StatusOK, u)
}

func (a *API) startSession(w http.ResponseWriter, status int, u users.User) {
	token, err := a.Auth.IssueToken(u)
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.Clients.Get(u)
	a.Log.Info("user signed in", "user_id", u.ID, "provider", string(u.Provider))
	writeJSON(w, status, sessionResponse{Token: token, User: toUserDTO(u)})
}

// logout сбрасывает состояние клиента, в том числе подготовленную запись.
func (a *API) logout(w http.ResponseWriter, _ *http.Request, _ *clients.Client, u users.User) {
	a.Clients.Drop(u.ID)
	a.Log.Info("user signed out", "user_id", u.ID)
	w.WriteHeader(http.StatusNoContent)
}
