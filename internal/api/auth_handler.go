package api

import (
	"errors"
	"fitpanel/member-app/internal/domain"
	"fitpanel/member-app/internal/service"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// AuthHandler holds the authentication service dependency.
type AuthHandler struct {
	authService service.AuthService
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authService service.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// --- Request/Response Structs ---

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// AccountResponse is the wire form of a profile record.
type AccountResponse struct {
	ID               string      `json:"id"`
	Name             string      `json:"name"`
	Email            string      `json:"email"`
	PhoneNumber      string      `json:"phoneNumber"`
	Role             domain.Role `json:"role"`
	PlanID           string      `json:"planId"`
	MembershipStatus string      `json:"membershipStatus"`
	JoinedAt         time.Time   `json:"joinedAt"`
	ExpirationAt     time.Time   `json:"expirationAt"`
	TraineeCount     int         `json:"traineeCount,omitempty"`
	Description      string      `json:"description,omitempty"`
	Location         string      `json:"location,omitempty"`
	ImageKey         string      `json:"imageKey,omitempty"`
	TrainerID        string      `json:"trainerId,omitempty"`
}

type LoginResponse struct {
	Token   string          `json:"token"`
	Account AccountResponse `json:"account"`
}

type ChangePasswordRequest struct {
	Email       string `json:"email" binding:"required,email"`
	NewPassword string `json:"newPassword" binding:"required,min=8"`
	AccountID   string `json:"accountId"`
}

// --- Handler Methods ---

// Login authenticates a member and returns a JWT plus the matching profile
// from whichever namespace holds it.
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}

	token, account, err := h.authService.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrAuthenticationFailed) {
			abortWithError(c, http.StatusUnauthorized, err.Error())
		} else {
			abortWithError(c, http.StatusInternalServerError, "An unexpected error occurred during login")
		}
		return
	}

	c.JSON(http.StatusOK, LoginResponse{
		Token:   token,
		Account: MapAccountToResponse(account),
	})
}

// ChangePassword rotates the credential secret for the given email.
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	var req ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}

	err := h.authService.ChangePassword(c.Request.Context(), req.Email, req.NewPassword, req.AccountID)
	if err != nil {
		if errors.Is(err, service.ErrAccountNotFound) {
			abortWithError(c, http.StatusNotFound, err.Error())
		} else {
			abortWithError(c, http.StatusInternalServerError, "Could not update password")
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Password updated successfully"})
}

// MapAccountToResponse converts a domain Account to its wire form.
// Measurement history is intentionally excluded; it has its own endpoints.
func MapAccountToResponse(account *domain.Account) AccountResponse {
	if account == nil {
		return AccountResponse{}
	}
	return AccountResponse{
		ID:               account.ID,
		Name:             account.Name,
		Email:            account.Email,
		PhoneNumber:      account.PhoneNumber,
		Role:             account.Role,
		PlanID:           account.PlanID,
		MembershipStatus: account.MembershipStatus,
		JoinedAt:         account.JoinedAt,
		ExpirationAt:     account.ExpirationAt,
		TraineeCount:     account.TraineeCount,
		Description:      account.Description,
		Location:         account.Location,
		ImageKey:         account.ImageKey,
		TrainerID:        account.TrainerID,
	}
}
