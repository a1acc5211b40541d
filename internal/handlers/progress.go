package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/studyloop/backend/internal/services"
	"github.com/studyloop/backend/internal/types"
)

type ProgressHandler struct {
	syncService services.ProgressSyncService
}

func NewProgressHandler(syncService services.ProgressSyncService) *ProgressHandler {
	return &ProgressHandler{syncService: syncService}
}

func (ph *ProgressHandler) Sync(c *gin.Context) {
	var req services.SyncRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	result, err := ph.syncService.Merge(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Header("ETag", result.ETag)
	c.JSON(http.StatusOK, result)
}

func (ph *ProgressHandler) GetSnapshot(c *gin.Context) {
	courseID, err := strconv.ParseInt(c.Param("courseID"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid course id"})
		return
	}
	snapshot, err := ph.syncService.GetSnapshot(c.Request.Context(), courseID)
	if err != nil {
		respondError(c, err)
		return
	}
	data, err := snapshot.DecodeData()
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"course_id": snapshot.CourseID,
		"data":      snapshotView(data),
		"xp_total":  snapshot.XPTotal,
		"version":   snapshot.Version,
	})
}

// snapshotView re-keys the document maps as strings, matching how clients
// store catalog ids in JSON.
func snapshotView(data types.SnapshotData) gin.H {
	lessons := map[string]types.SnapshotLesson{}
	for id, lesson := range data.Lessons {
		lessons[strconv.FormatInt(id, 10)] = lesson
	}
	questions := map[string]types.SnapshotQuestion{}
	for id, question := range data.Questions {
		questions[strconv.FormatInt(id, 10)] = question
	}
	return gin.H{"lessons": lessons, "questions": questions}
}
