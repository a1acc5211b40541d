package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/studyloop/backend/internal/services"
)

type PlannerHandler struct {
	plannerService services.PlannerService
	awardService   services.AwardService
}

func NewPlannerHandler(plannerService services.PlannerService, awardService services.AwardService) *PlannerHandler {
	return &PlannerHandler{plannerService: plannerService, awardService: awardService}
}

func (ph *PlannerHandler) ListDays(c *gin.Context) {
	days, err := ph.plannerService.ListDays(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"days": days})
}

func (ph *PlannerHandler) GetDay(c *gin.Context) {
	dayNumber, err := strconv.Atoi(c.Param("day"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid day number"})
		return
	}
	day, err := ph.plannerService.Day(c.Request.Context(), dayNumber)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, day)
}

func (ph *PlannerHandler) CreateTask(c *gin.Context) {
	var req struct {
		DayNumber int    `json:"day_number"`
		Name      string `json:"name"`
		Position  int    `json:"position"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	task, err := ph.plannerService.CreateTask(c.Request.Context(), req.DayNumber, req.Name, req.Position)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"task": task})
}

// UpdateTask toggles completion and may carry the day-completion bonus on top
// of the task's own grant.
func (ph *PlannerHandler) UpdateTask(c *gin.Context) {
	taskID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid task id"})
		return
	}
	var req services.CompletableUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	result, err := ph.awardService.SetPlannerTaskCompletion(c.Request.Context(), taskID, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (ph *PlannerHandler) DeleteTask(c *gin.Context) {
	taskID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid task id"})
		return
	}
	if err := ph.plannerService.DeleteTask(c.Request.Context(), taskID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}
