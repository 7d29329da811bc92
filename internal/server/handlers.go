package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/joshrizzo/MyLib/internal/membership"
	"github.com/joshrizzo/MyLib/internal/roles"
)

type registerRequest struct {
	UserName string `json:"username"`
	Password string `json:"password"`
	Email    string `json:"email"`
	Question string `json:"question,omitempty"`
	Answer   string `json:"answer,omitempty"`
}

type userResponse struct {
	Key              string    `json:"key"`
	UserName         string    `json:"username"`
	Email            string    `json:"email"`
	Comment          string    `json:"comment,omitempty"`
	IsApproved       bool      `json:"is_approved"`
	IsLockedOut      bool      `json:"is_locked_out"`
	CreationDate     time.Time `json:"creation_date"`
	LastLoginDate    time.Time `json:"last_login_date"`
	LastActivityDate time.Time `json:"last_activity_date"`
}

func toUserResponse(u *membership.User) userResponse {
	return userResponse{
		Key:              u.ID,
		UserName:         u.UserName,
		Email:            u.Email,
		Comment:          u.Comment,
		IsApproved:       u.IsApproved,
		IsLockedOut:      u.IsLockedOut,
		CreationDate:     u.CreationDate,
		LastLoginDate:    u.LastLoginDate,
		LastActivityDate: u.LastActivityDate,
	}
}

func decode(r *http.Request, v any) *HTTPError {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errInvalidJSON.WithDetail(err.Error())
	}
	return nil
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if herr := decode(r, &req); herr != nil {
		writeError(w, herr)
		return
	}
	user, status, err := s.members.CreateUser(r.Context(), req.UserName, req.Password, req.Email, req.Question, req.Answer, true, "")
	if err != nil && status == membership.StatusProviderError {
		s.log.Error("register failed", zap.String("username", req.UserName), zap.Error(err))
		writeError(w, errInternal)
		return
	}
	switch status {
	case membership.StatusSuccess:
		writeJSON(w, http.StatusCreated, toUserResponse(user))
	case membership.StatusDuplicateUserName, membership.StatusDuplicateEmail:
		writeError(w, errConflict.WithDetail(status.String()))
	default:
		writeError(w, errBadRequest.WithDetail(status.String()))
	}
}

type loginRequest struct {
	UserName string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if herr := decode(r, &req); herr != nil {
		writeError(w, herr)
		return
	}
	ok, err := s.members.ValidateUser(r.Context(), req.UserName, req.Password)
	if err != nil {
		s.log.Error("login failed", zap.String("username", req.UserName), zap.Error(err))
		writeError(w, errInternal)
		return
	}
	if !ok {
		writeError(w, errUnauthorized)
		return
	}
	exp := time.Now().Add(s.accessTTL)
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   req.UserName,
		Issuer:    s.jwtIssuer,
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(exp),
	})
	signed, err := tok.SignedString(s.jwtSecret)
	if err != nil {
		s.log.Error("token signing failed", zap.Error(err))
		writeError(w, errInternal)
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{AccessToken: signed, TokenType: "Bearer", ExpiresAt: exp})
}

type changePasswordRequest struct {
	UserName    string `json:"username"`
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	var req changePasswordRequest
	if herr := decode(r, &req); herr != nil {
		writeError(w, herr)
		return
	}
	ok, err := s.members.ChangePassword(r.Context(), req.UserName, req.OldPassword, req.NewPassword)
	if err != nil {
		if errors.Is(err, membership.ErrPasswordRejected) {
			writeError(w, errBadRequest.WithDetail(err.Error()))
			return
		}
		s.log.Error("change password failed", zap.String("username", req.UserName), zap.Error(err))
		writeError(w, errInternal)
		return
	}
	if !ok {
		writeError(w, errUnauthorized)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"changed": true})
}

type resetPasswordRequest struct {
	UserName string `json:"username"`
	Answer   string `json:"answer,omitempty"`
}

func (s *Server) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if herr := decode(r, &req); herr != nil {
		writeError(w, herr)
		return
	}
	pass, err := s.members.ResetPassword(r.Context(), req.UserName, req.Answer)
	if err != nil {
		switch {
		case errors.Is(err, membership.ErrUserNotFound):
			writeError(w, errNotFound)
		case errors.Is(err, membership.ErrBadAnswer), errors.Is(err, membership.ErrAnswerRequired):
			writeError(w, errUnauthorized.WithDetail(err.Error()))
		case errors.Is(err, membership.ErrResetDisabled), errors.Is(err, membership.ErrUserLockedOut):
			writeError(w, errBadRequest.WithDetail(err.Error()))
		default:
			s.log.Error("reset password failed", zap.String("username", req.UserName), zap.Error(err))
			writeError(w, errInternal)
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"password": pass})
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	page, size := pageParams(r)
	var (
		users []*membership.User
		total int
		err   error
	)
	switch {
	case r.URL.Query().Get("username") != "":
		users, total, err = s.members.FindUsersByName(r.Context(), r.URL.Query().Get("username"), page, size)
	case r.URL.Query().Get("email") != "":
		users, total, err = s.members.FindUsersByEmail(r.Context(), r.URL.Query().Get("email"), page, size)
	default:
		users, total, err = s.members.GetAllUsers(r.Context(), page, size)
	}
	if err != nil {
		s.log.Error("list users failed", zap.Error(err))
		writeError(w, errInternal)
		return
	}
	out := make([]userResponse, 0, len(users))
	for _, u := range users {
		out = append(out, toUserResponse(u))
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": out, "total": total})
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")
	online, _ := strconv.ParseBool(r.URL.Query().Get("online"))
	u, err := s.members.GetUser(r.Context(), username, online)
	if err != nil {
		if errors.Is(err, membership.ErrUserNotFound) {
			writeError(w, errNotFound)
			return
		}
		s.log.Error("get user failed", zap.String("username", username), zap.Error(err))
		writeError(w, errInternal)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(u))
}

func (s *Server) handleUnlock(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")
	ok, err := s.members.UnlockUser(r.Context(), username)
	if err != nil {
		s.log.Error("unlock failed", zap.String("username", username), zap.Error(err))
		writeError(w, errInternal)
		return
	}
	if !ok {
		writeError(w, errNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"unlocked": true})
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")
	cascade, _ := strconv.ParseBool(r.URL.Query().Get("cascade"))
	ok, err := s.members.DeleteUser(r.Context(), username, cascade)
	if err != nil {
		s.log.Error("delete user failed", zap.String("username", username), zap.Error(err))
		writeError(w, errInternal)
		return
	}
	if !ok {
		writeError(w, errNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUserRoles(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")
	names, err := s.roles.GetRolesForUser(r.Context(), username)
	if err != nil {
		s.log.Error("get roles for user failed", zap.String("username", username), zap.Error(err))
		writeError(w, errInternal)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"roles": names})
}

func (s *Server) handleListRoles(w http.ResponseWriter, r *http.Request) {
	names, err := s.roles.GetAllRoles(r.Context())
	if err != nil {
		s.log.Error("list roles failed", zap.Error(err))
		writeError(w, errInternal)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"roles": names})
}

type createRoleRequest struct {
	Name string `json:"name"`
}

func (s *Server) handleCreateRole(w http.ResponseWriter, r *http.Request) {
	var req createRoleRequest
	if herr := decode(r, &req); herr != nil {
		writeError(w, herr)
		return
	}
	if req.Name == "" {
		writeError(w, errBadRequest.WithDetail("role name is required"))
		return
	}
	if err := s.roles.CreateRole(r.Context(), req.Name); err != nil {
		if errors.Is(err, roles.ErrRoleExists) {
			writeError(w, errConflict.WithDetail(err.Error()))
			return
		}
		s.log.Error("create role failed", zap.String("role", req.Name), zap.Error(err))
		writeError(w, errInternal)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"name": req.Name})
}

func (s *Server) handleDeleteRole(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "role")
	failIfPopulated, _ := strconv.ParseBool(r.URL.Query().Get("fail_if_populated"))
	if err := s.roles.DeleteRole(r.Context(), name, failIfPopulated); err != nil {
		switch {
		case errors.Is(err, roles.ErrRoleNotFound):
			writeError(w, errNotFound)
		case errors.Is(err, roles.ErrRolePopulated):
			writeError(w, errConflict.WithDetail(err.Error()))
		default:
			s.log.Error("delete role failed", zap.String("role", name), zap.Error(err))
			writeError(w, errInternal)
		}
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRoleMembers(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "role")
	var (
		users []string
		err   error
	)
	if pattern := r.URL.Query().Get("username"); pattern != "" {
		users, err = s.roles.FindUsersInRole(r.Context(), name, pattern)
	} else {
		users, err = s.roles.GetUsersInRole(r.Context(), name)
	}
	if err != nil {
		s.log.Error("list role members failed", zap.String("role", name), zap.Error(err))
		writeError(w, errInternal)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"users": users})
}

type membersRequest struct {
	UserNames []string `json:"usernames"`
}

func (s *Server) handleAddMembers(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "role")
	var req membersRequest
	if herr := decode(r, &req); herr != nil {
		writeError(w, herr)
		return
	}
	if err := s.roles.AddUsersToRoles(r.Context(), req.UserNames, []string{name}); err != nil {
		if errors.Is(err, roles.ErrRoleNotFound) {
			writeError(w, errNotFound)
			return
		}
		s.log.Error("add role members failed", zap.String("role", name), zap.Error(err))
		writeError(w, errInternal)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"added": true})
}

func (s *Server) handleRemoveMembers(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "role")
	var req membersRequest
	if herr := decode(r, &req); herr != nil {
		writeError(w, herr)
		return
	}
	if err := s.roles.RemoveUsersFromRoles(r.Context(), req.UserNames, []string{name}); err != nil {
		s.log.Error("remove role members failed", zap.String("role", name), zap.Error(err))
		writeError(w, errInternal)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"removed": true})
}

func pageParams(r *http.Request) (page, size int) {
	page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	size, _ = strconv.Atoi(r.URL.Query().Get("size"))
	if size <= 0 {
		size = 20
	}
	if page < 0 {
		page = 0
	}
	return page, size
}
