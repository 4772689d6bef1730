package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"regexp"
	"strings"

	"campuspay/internal/auth"
	"campuspay/internal/middleware"
	"campuspay/internal/model"
	"campuspay/internal/store"
)

// the portal issues passwords derived from date of birth
var ddmmyyyyRegex = regexp.MustCompile(`^\d{8}$`)

type registerRequest struct {
	USN      string     `json:"usn"`
	Email    string     `json:"email"`
	Password string     `json:"password"`
	Name     string     `json:"name"`
	Role     model.Role `json:"role"`
}

type authResponse struct {
	Token string      `json:"token"`
	User  *model.User `json:"user"`
}

func (s *Server) RegisterUser(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Bad request format", http.StatusBadRequest)
		return
	}

	req.USN = strings.TrimSpace(req.USN)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Name = strings.TrimSpace(req.Name)
	req.Password = strings.TrimSpace(req.Password)

	if req.USN == "" || req.Email == "" || req.Password == "" || req.Name == "" {
		http.Error(w, "All fields are required", http.StatusBadRequest)
		return
	}

	// admin accounts are provisioned out of band
	if req.Role != "" && req.Role != model.RoleStudent {
		http.Error(w, "Only student registration is allowed", http.StatusForbidden)
		return
	}

	passwordHash, err := auth.HashPassword(req.Password)
	if err != nil {
		http.Error(w, "Failed to hash the password", http.StatusInternalServerError)
		return
	}

	user := &model.User{
		USN:          req.USN,
		Email:        req.Email,
		Name:         req.Name,
		Role:         model.RoleStudent,
		PasswordHash: passwordHash,
	}
	id, err := s.Users.CreateUser(r.Context(), user)
	if err != nil {
		if errors.Is(err, store.ErrDuplicateUser) {
			http.Error(w, "User with this USN or email already exists", http.StatusConflict)
			return
		}
		writeError(w, err)
		return
	}
	user.ID = id

	token, err := auth.GenerateToken(s.Config.JWTSecret, user)
	if err != nil {
		http.Error(w, "Failed generation token", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Authorization", "Bearer "+token)
	writeJSON(w, http.StatusOK, authResponse{Token: token, User: user})
}

type loginRequest struct {
	USN      string     `json:"usn"`
	Email    string     `json:"email"` // legacy clients send the USN in this field
	Password string     `json:"password"`
	Role     model.Role `json:"role"`
}

func (s *Server) LoginUser(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Bad request format", http.StatusBadRequest)
		return
	}

	usn := req.USN
	if usn == "" {
		usn = req.Email
	}

	user, err := s.Users.GetUserByUSN(r.Context(), usn)
	if err != nil {
		http.Error(w, "Invalid USN or password", http.StatusUnauthorized)
		return
	}

	if req.Role != "" && user.Role != req.Role {
		http.Error(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}

	if err := auth.CheckPass(user.PasswordHash, req.Password); err != nil {
		http.Error(w, "Invalid USN or password", http.StatusUnauthorized)
		return
	}

	token, err := auth.GenerateToken(s.Config.JWTSecret, user)
	if err != nil {
		http.Error(w, "Failed generation token", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Authorization", "Bearer "+token)
	writeJSON(w, http.StatusOK, authResponse{Token: token, User: user})
}

func (s *Server) GetProfile(w http.ResponseWriter, r *http.Request) {
	claims, err := middleware.ExtractUser(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	user, err := s.Users.GetUserByID(r.Context(), claims.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": user})
}

type profileRequest struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	DOB        string `json:"dob"`
	Phone      string `json:"phone"`
	Address    string `json:"address"`
	Department string `json:"department"`
	Year       string `json:"year"`
	Section    string `json:"section"`
}

func (s *Server) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	claims, err := middleware.ExtractUser(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req profileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Bad request format", http.StatusBadRequest)
		return
	}

	if req.DOB != "" && !ddmmyyyyRegex.MatchString(req.DOB) {
		http.Error(w, "DOB must be in DDMMYYYY format", http.StatusBadRequest)
		return
	}

	patch := &model.User{
		Name:       strings.TrimSpace(req.Name),
		Email:      strings.ToLower(strings.TrimSpace(req.Email)),
		DOB:        req.DOB,
		Phone:      strings.TrimSpace(req.Phone),
		Address:    strings.TrimSpace(req.Address),
		Department: strings.TrimSpace(req.Department),
		Year:       strings.TrimSpace(req.Year),
		Section:    strings.TrimSpace(req.Section),
	}
	if err := s.Users.UpdateProfile(r.Context(), claims.UserID, patch); err != nil {
		writeError(w, err)
		return
	}

	user, err := s.Users.GetUserByID(r.Context(), claims.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Profile updated successfully",
		"user":    user,
	})
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

func (s *Server) ChangePassword(w http.ResponseWriter, r *http.Request) {
	claims, err := middleware.ExtractUser(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req changePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Bad request format", http.StatusBadRequest)
		return
	}
	if req.CurrentPassword == "" || req.NewPassword == "" {
		http.Error(w, "Current password and new password are required", http.StatusBadRequest)
		return
	}
	if !ddmmyyyyRegex.MatchString(req.NewPassword) {
		http.Error(w, "New password must be in DDMMYYYY format", http.StatusBadRequest)
		return
	}

	user, err := s.Users.GetUserByID(r.Context(), claims.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := auth.CheckPass(user.PasswordHash, req.CurrentPassword); err != nil {
		http.Error(w, "Current password is incorrect", http.StatusBadRequest)
		return
	}

	newHash, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		http.Error(w, "Failed to hash the password", http.StatusInternalServerError)
		return
	}
	if err := s.Users.UpdatePassword(r.Context(), claims.UserID, newHash); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Password changed successfully"})
}
