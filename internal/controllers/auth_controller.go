package controllers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"ebus_manager/internal/apperr"
	"ebus_manager/internal/middleware"
	"ebus_manager/internal/models"
)

type loginInput struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
	UserType string `json:"userType" binding:"required"`
}

func hashPassword(pw string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
	return string(b), err
}

// checkPassword fails when no hash is stored.
func checkPassword(hash, pw string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pw)) == nil
}

// Login issues a JWT for an admin or a student.
func (h *Handler) Login(c *gin.Context) {
	var in loginInput
	if !bindJSON(c, &in) {
		return
	}
	ctx := c.Request.Context()
	invalid := apperr.Unauthorized("invalid credentials")

	var (
		id       uint
		email    string
		name     string
		role     string
		userType string
		hash     string
	)
	switch in.UserType {
	case middleware.UserTypeAdmin:
		admin, err := h.Accounts.FindAdminByEmail(ctx, in.Email)
		if err != nil {
			if apperr.IsKind(err, apperr.KindNotFound) {
				err = invalid
			}
			respondError(c, err)
			return
		}
		id, email, name, role, hash = admin.ID, admin.Email, admin.FullName, admin.Role, admin.PasswordHash
	case middleware.UserTypeStudent:
		st, err := h.Accounts.FindStudentByEmail(ctx, in.Email)
		if err != nil {
			if apperr.IsKind(err, apperr.KindNotFound) {
				err = invalid
			}
			respondError(c, err)
			return
		}
		id, email, name, role, hash = st.ID, st.Email, st.FullName, models.RoleStudent, st.PasswordHash
	default:
		respondError(c, apperr.Validation("invalid user type"))
		return
	}
	userType = in.UserType

	if !checkPassword(hash, in.Password) {
		respondError(c, invalid)
		return
	}
	token, err := h.JWT.GenerateToken(id, email, role, userType)
	if err != nil {
		respondError(c, apperr.Internal("could not generate token", err))
		return
	}
	respond(c, http.StatusOK, "Login successful", gin.H{
		"token": token,
		"user": gin.H{
			"id":       id,
			"email":    email,
			"name":     name,
			"role":     role,
			"userType": userType,
		},
	})
}

type registerInput struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	FullName string `json:"full_name"`
	Role     string `json:"role"`
}

// Register creates an admin account.
func (h *Handler) Register(c *gin.Context) {
	var in registerInput
	if !bindJSON(c, &in) {
		return
	}
	if in.Role == "" {
		in.Role = models.RoleAdmin
	}
	if in.Role != models.RoleAdmin && in.Role != models.RoleSuperAdmin {
		respondError(c, apperr.Validation("role must be admin or super_admin"))
		return
	}
	hashed, err := hashPassword(in.Password)
	if err != nil {
		respondError(c, apperr.Internal("could not hash password", err))
		return
	}
	admin := &models.AdminUser{
		Username:     strings.TrimSpace(in.Username),
		Email:        strings.ToLower(strings.TrimSpace(in.Email)),
		PasswordHash: hashed,
		FullName:     in.FullName,
		Role:         in.Role,
		IsActive:     true,
	}
	if err := h.Accounts.CreateAdmin(c.Request.Context(), admin); err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusCreated, "User registered successfully", admin)
}

func (h *Handler) Profile(c *gin.Context) {
	claims, ok := currentUser(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	if claims.UserType == middleware.UserTypeAdmin {
		admin, err := h.Accounts.FindAdmin(ctx, claims.UserID)
		if err != nil {
			respondError(c, err)
			return
		}
		respond(c, http.StatusOK, "Profile retrieved", admin)
		return
	}
	st, err := h.Accounts.FindStudent(ctx, claims.UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "Profile retrieved", st)
}

// RegisterDeviceToken stores the student's FCM token for push delivery.
func (h *Handler) RegisterDeviceToken(c *gin.Context) {
	claims, ok := currentUser(c)
	if !ok {
		return
	}
	var in struct {
		Token string `json:"fcm_token" binding:"required"`
	}
	if !bindJSON(c, &in) {
		return
	}
	if err := h.Accounts.UpdateStudentToken(c.Request.Context(), claims.UserID, in.Token); err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "Device token saved", nil)
}
