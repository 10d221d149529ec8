package api

import (
	"fitpanel/member-app/internal/service"
	"net/http"

	"github.com/gin-gonic/gin"
)

// PlanHandler exposes the plan catalog.
type PlanHandler struct {
	lifecycle service.LifecycleService
}

// NewPlanHandler creates a new PlanHandler.
func NewPlanHandler(lifecycle service.LifecycleService) *PlanHandler {
	return &PlanHandler{lifecycle: lifecycle}
}

// List returns every plan tier with its current occupancy.
func (h *PlanHandler) List(c *gin.Context) {
	plans, err := h.lifecycle.ListPlans(c.Request.Context())
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, "Failed to list plans")
		return
	}
	c.JSON(http.StatusOK, plans)
}

// Reconcile re-derives a plan's occupancy from actual membership. Intended as
// a maintenance call after a reported partial failure.
func (h *PlanHandler) Reconcile(c *gin.Context) {
	count, err := h.lifecycle.ReconcileOccupancy(c.Request.Context(), c.Param("planId"))
	if err != nil {
		respondLifecycleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"planId": c.Param("planId"), "occupancyCount": count})
}
