package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/studyloop/backend/internal/services"
)

type RewardsHandler struct {
	rewardsService services.RewardsService
}

func NewRewardsHandler(rewardsService services.RewardsService) *RewardsHandler {
	return &RewardsHandler{rewardsService: rewardsService}
}

func (rh *RewardsHandler) Achievements(c *gin.Context) {
	achievements, err := rh.rewardsService.Achievements(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"achievements": achievements})
}

func (rh *RewardsHandler) Streak(c *gin.Context) {
	streak, err := rh.rewardsService.Streak(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"streak": streak})
}

func (rh *RewardsHandler) Level(c *gin.Context) {
	progress, err := rh.rewardsService.LevelProgress(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, progress)
}
