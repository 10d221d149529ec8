package api

import (
	"errors"
	"fitpanel/member-app/internal/domain"
	"fitpanel/member-app/internal/repository"
	"fitpanel/member-app/internal/service"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Uploaded files are buffered in memory before reaching the services.
const maxUploadBytes = 10 << 20 // 10MB

// AccountHandler exposes the account lifecycle operations.
type AccountHandler struct {
	lifecycle service.LifecycleService
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(lifecycle service.LifecycleService) *AccountHandler {
	return &AccountHandler{lifecycle: lifecycle}
}

// --- Request Structs ---

type CreateTrainerRequest struct {
	AccountID        string `form:"accountId" binding:"required"`
	Name             string `form:"name" binding:"required"`
	Email            string `form:"email" binding:"required,email"`
	PhoneNumber      string `form:"phoneNumber"`
	PlanID           string `form:"planId" binding:"required"`
	MembershipStatus string `form:"membershipStatus"`
	Description      string `form:"description"`
	Location         string `form:"location"`
	TraineeCount     int    `form:"traineeCount"`
}

type CreateCustomerRequest struct {
	AccountID        string `form:"accountId" binding:"required"`
	Name             string `form:"name" binding:"required"`
	Email            string `form:"email" binding:"required,email"`
	PhoneNumber      string `form:"phoneNumber" binding:"required"`
	PlanID           string `form:"planId" binding:"required"`
	MembershipStatus string `form:"membershipStatus"`
	TrainerID        string `form:"trainerId" binding:"required"`
}

type UpdateAccountRequest struct {
	Name         *string    `form:"name"`
	PhoneNumber  *string    `form:"phoneNumber"`
	Email        *string    `form:"email"`
	PlanID       *string    `form:"planId"`
	ExpirationAt *time.Time `form:"expirationAt" time_format:"2006-01-02"`
	Description  *string    `form:"description"`
	Location     *string    `form:"location"`
}

type ChangePlanRequest struct {
	OldPlanID string `json:"oldPlanId"`
	NewPlanID string `json:"newPlanId" binding:"required"`
}

type SetStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

type DeleteAccountRequest struct {
	Email     string `json:"email" binding:"required,email"`
	TrainerID string `json:"trainerId"`
}

type LookupByEmailRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// --- Trainer Handlers ---

// CreateTrainer registers a trainer: credential, profile, and plan occupancy.
func (h *AccountHandler) CreateTrainer(c *gin.Context) {
	var req CreateTrainerRequest
	if err := c.ShouldBind(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}

	imageBytes, imageType, err := readFormFile(c, "imageFile")
	if err != nil {
		abortWithError(c, http.StatusBadRequest, err.Error())
		return
	}

	status := req.MembershipStatus
	if status == "" {
		status = domain.StatusActive
	}

	account, err := h.lifecycle.CreateAccount(c.Request.Context(), service.CreateAccountInput{
		Role:             domain.RoleTrainer,
		AccountID:        req.AccountID,
		Email:            req.Email,
		Name:             req.Name,
		PhoneNumber:      req.PhoneNumber,
		PlanID:           req.PlanID,
		MembershipStatus: status,
		Description:      req.Description,
		Location:         req.Location,
		TraineeCount:     req.TraineeCount,
		ImageBytes:       imageBytes,
		ImageType:        imageType,
	})
	if err != nil {
		respondLifecycleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, MapAccountToResponse(account))
}

// GetTrainers lists all trainer profiles.
func (h *AccountHandler) GetTrainers(c *gin.Context) {
	trainers, err := h.lifecycle.ListTrainers(c.Request.Context())
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, "Failed to list trainers")
		return
	}

	responses := make([]AccountResponse, len(trainers))
	for i := range trainers {
		responses[i] = MapAccountToResponse(&trainers[i])
	}
	c.JSON(http.StatusOK, responses)
}

// GetTrainer fetches a single trainer profile by account id.
func (h *AccountHandler) GetTrainer(c *gin.Context) {
	account, err := h.lifecycle.GetAccount(c.Request.Context(), domain.RoleTrainer, c.Param("id"))
	if err != nil {
		respondLifecycleError(c, err)
		return
	}
	c.JSON(http.StatusOK, MapAccountToResponse(account))
}

// UpdateTrainer applies a partial update, optionally replacing the profile image.
func (h *AccountHandler) UpdateTrainer(c *gin.Context) {
	h.updateAccount(c, domain.RoleTrainer)
}

// SetTrainerStatus toggles the membership status.
func (h *AccountHandler) SetTrainerStatus(c *gin.Context) {
	h.setStatus(c, domain.RoleTrainer)
}

// DeleteTrainer removes the trainer's profile and, best-effort, its credential.
func (h *AccountHandler) DeleteTrainer(c *gin.Context) {
	h.deleteAccount(c, domain.RoleTrainer)
}

// --- Customer Handlers ---

// CreateCustomer registers a customer under a trainer, storing any supplied
// plan files and bumping both the plan occupancy and the trainee count.
func (h *AccountHandler) CreateCustomer(c *gin.Context) {
	var req CreateCustomerRequest
	if err := c.ShouldBind(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}

	trainingBytes, _, err := readFormFile(c, "trainingPlanFile")
	if err != nil {
		abortWithError(c, http.StatusBadRequest, err.Error())
		return
	}
	foodBytes, _, err := readFormFile(c, "foodPlanFile")
	if err != nil {
		abortWithError(c, http.StatusBadRequest, err.Error())
		return
	}

	status := req.MembershipStatus
	if status == "" {
		status = domain.StatusActive
	}

	account, err := h.lifecycle.CreateAccount(c.Request.Context(), service.CreateAccountInput{
		Role:             domain.RoleCustomer,
		AccountID:        req.AccountID,
		Email:            req.Email,
		Name:             req.Name,
		PhoneNumber:      req.PhoneNumber,
		PlanID:           req.PlanID,
		MembershipStatus: status,
		TrainerID:        req.TrainerID,
		TrainingPlan:     trainingBytes,
		FoodPlan:         foodBytes,
	})
	if err != nil {
		respondLifecycleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, MapAccountToResponse(account))
}

// GetCustomersByTrainer lists all customers referencing a trainer. Returns an
// empty list rather than 404 when the trainer has no customers.
func (h *AccountHandler) GetCustomersByTrainer(c *gin.Context) {
	trainerID := c.Query("trainerId")
	if trainerID == "" {
		abortWithError(c, http.StatusBadRequest, "trainerId query parameter is required")
		return
	}

	customers, err := h.lifecycle.ListCustomersByTrainer(c.Request.Context(), trainerID)
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, "Failed to list customers")
		return
	}

	responses := make([]AccountResponse, len(customers))
	for i := range customers {
		responses[i] = MapAccountToResponse(&customers[i])
	}
	c.JSON(http.StatusOK, gin.H{"customers": responses})
}

// UpdateCustomer applies a partial update to a customer profile.
func (h *AccountHandler) UpdateCustomer(c *gin.Context) {
	h.updateAccount(c, domain.RoleCustomer)
}

// SetCustomerStatus toggles the membership status.
func (h *AccountHandler) SetCustomerStatus(c *gin.Context) {
	h.setStatus(c, domain.RoleCustomer)
}

// DeleteCustomer removes the customer's profile, best-effort deletes the
// credential, and decrements the owning trainer's trainee count.
func (h *AccountHandler) DeleteCustomer(c *gin.Context) {
	h.deleteAccount(c, domain.RoleCustomer)
}

// ChangePlan moves an account between plan tiers, adjusting both occupancy
// counters and recomputing the expiration.
func (h *AccountHandler) ChangePlan(c *gin.Context) {
	role, ok := roleFromParam(c)
	if !ok {
		return
	}

	var req ChangePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}

	account, err := h.lifecycle.ChangePlan(c.Request.Context(), role, c.Param("id"), req.OldPlanID, req.NewPlanID)
	if err != nil {
		respondLifecycleError(c, err)
		return
	}
	c.JSON(http.StatusOK, MapAccountToResponse(account))
}

// LookupByEmail resolves a profile from either namespace, trainers first.
func (h *AccountHandler) LookupByEmail(c *gin.Context) {
	var req LookupByEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}

	account, err := h.lifecycle.GetByEmailAnyRole(c.Request.Context(), req.Email)
	if err != nil {
		respondLifecycleError(c, err)
		return
	}
	c.JSON(http.StatusOK, MapAccountToResponse(account))
}

// --- shared helpers ---

func (h *AccountHandler) updateAccount(c *gin.Context, role domain.Role) {
	var req UpdateAccountRequest
	if err := c.ShouldBind(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}

	imageBytes, imageType, err := readFormFile(c, "imageFile")
	if err != nil {
		abortWithError(c, http.StatusBadRequest, err.Error())
		return
	}

	update := repository.ProfileUpdate{
		Name:         req.Name,
		PhoneNumber:  req.PhoneNumber,
		Email:        req.Email,
		PlanID:       req.PlanID,
		ExpirationAt: req.ExpirationAt,
		Description:  req.Description,
		Location:     req.Location,
	}

	if err := h.lifecycle.UpdateAccountFields(c.Request.Context(), role, c.Param("id"), update, imageBytes, imageType); err != nil {
		respondLifecycleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Account updated successfully"})
}

func (h *AccountHandler) setStatus(c *gin.Context, role domain.Role) {
	var req SetStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}

	if err := h.lifecycle.SetMembershipStatus(c.Request.Context(), role, c.Param("id"), req.Status); err != nil {
		respondLifecycleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Membership status updated successfully"})
}

func (h *AccountHandler) deleteAccount(c *gin.Context, role domain.Role) {
	var req DeleteAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}

	result, err := h.lifecycle.DeleteAccount(c.Request.Context(), role, c.Param("id"), req.Email, req.TrainerID)
	if err != nil {
		respondLifecycleError(c, err)
		return
	}

	resp := gin.H{"message": "Account deleted successfully"}
	if result.Warning != "" {
		resp["warning"] = result.Warning
	}
	c.JSON(http.StatusOK, resp)
}

func roleFromParam(c *gin.Context) (domain.Role, bool) {
	switch c.Param("role") {
	case string(domain.RoleTrainer):
		return domain.RoleTrainer, true
	case string(domain.RoleCustomer):
		return domain.RoleCustomer, true
	default:
		abortWithError(c, http.StatusBadRequest, "role must be 'trainer' or 'customer'")
		return "", false
	}
}

// readFormFile buffers an optional multipart file. Missing files are not an
// error; oversized or unreadable ones are.
func readFormFile(c *gin.Context, field string) ([]byte, string, error) {
	fileHeader, err := c.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			return nil, "", nil
		}
		return nil, "", fmt.Errorf("reading %s: %w", field, err)
	}
	if fileHeader.Size > maxUploadBytes {
		return nil, "", fmt.Errorf("%s exceeds the %d byte upload limit", field, maxUploadBytes)
	}

	f, err := fileHeader.Open()
	if err != nil {
		return nil, "", fmt.Errorf("opening %s: %w", field, err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxUploadBytes))
	if err != nil {
		return nil, "", fmt.Errorf("reading %s: %w", field, err)
	}
	return data, fileHeader.Header.Get("Content-Type"), nil
}

// respondLifecycleError maps service errors to HTTP statuses. Partial
// failures name the failed step so the caller can reconcile.
func respondLifecycleError(c *gin.Context, err error) {
	var pf *service.PartialFailure
	switch {
	case errors.As(err, &pf):
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error": "operation partially completed",
			"op":    pf.Op,
			"step":  pf.Step,
			"state": pf.State,
		})
	case errors.Is(err, service.ErrAccountIDTaken), errors.Is(err, service.ErrEmailInUse):
		abortWithError(c, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrAccountNotFound),
		errors.Is(err, service.ErrCustomerNotFound),
		errors.Is(err, service.ErrTrainerNotFound),
		errors.Is(err, service.ErrPlanNotFound):
		abortWithError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrMissingFields):
		abortWithError(c, http.StatusBadRequest, err.Error())
	default:
		abortWithError(c, http.StatusInternalServerError, "An unexpected error occurred")
	}
}
