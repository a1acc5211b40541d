package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/studyloop/backend/internal/services"
)

type TodoHandler struct {
	todoService  services.TodoService
	awardService services.AwardService
}

func NewTodoHandler(todoService services.TodoService, awardService services.AwardService) *TodoHandler {
	return &TodoHandler{todoService: todoService, awardService: awardService}
}

func (th *TodoHandler) List(c *gin.Context) {
	todos, err := th.todoService.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"todos": todos})
}

func (th *TodoHandler) Create(c *gin.Context) {
	var req struct {
		Name     string `json:"name"`
		Position int    `json:"position"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	todo, err := th.todoService.Create(c.Request.Context(), req.Name, req.Position)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"todo": todo})
}

// Update is the reward entry point for todos: flipping is_completed here is
// what triggers the XP grant.
func (th *TodoHandler) Update(c *gin.Context) {
	todoID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid todo id"})
		return
	}
	var req services.CompletableUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	result, err := th.awardService.SetTodoCompletion(c.Request.Context(), todoID, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (th *TodoHandler) Delete(c *gin.Context) {
	todoID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid todo id"})
		return
	}
	if err := th.todoService.Delete(c.Request.Context(), todoID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}
