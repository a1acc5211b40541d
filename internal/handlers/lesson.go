package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/studyloop/backend/internal/services"
)

type LessonHandler struct {
	lessonService services.LessonProgressService
	awardService  services.AwardService
}

func NewLessonHandler(lessonService services.LessonProgressService, awardService services.AwardService) *LessonHandler {
	return &LessonHandler{lessonService: lessonService, awardService: awardService}
}

func (lh *LessonHandler) List(c *gin.Context) {
	rows, err := lh.lessonService.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"lessons": rows})
}

// Open lazily creates the per-user progress row for a catalog lesson and
// returns it, so the client learns the row id it will PATCH later.
func (lh *LessonHandler) Open(c *gin.Context) {
	var req struct {
		LessonRef int64 `json:"lesson_ref"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	row, err := lh.lessonService.EnsureRow(c.Request.Context(), req.LessonRef)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"lesson": row})
}

func (lh *LessonHandler) Update(c *gin.Context) {
	progressID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid progress id"})
		return
	}
	var req services.CompletableUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	result, err := lh.awardService.SetLessonCompletion(c.Request.Context(), progressID, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
