package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/employd-dev/employd/internal/models"
)

// DashboardSummary feeds the front-end stat panels.
type DashboardSummary struct {
	TotalUsers     int64            `json:"total_users"`
	UsersByRole    map[string]int64 `json:"users_by_role"`
	ActiveSessions int64            `json:"active_sessions"`
	GeneratedAt    time.Time        `json:"generated_at"`
}

// @Summary Dashboard summary
// @Description Aggregate counts for the dashboard landing page
// @Tags dashboard
// @Produce json
// @Security BearerAuth
// @Success 200 {object} DashboardSummary
// @Failure 401 {object} map[string]interface{}
// @Router /dashboard [get]
func (s *Server) getDashboardSummary(c *gin.Context) {
	summary := DashboardSummary{
		UsersByRole: make(map[string]int64),
		GeneratedAt: time.Now().UTC(),
	}

	if err := s.db.Model(&models.User{}).Count(&summary.TotalUsers).Error; err != nil {
		s.logger.Error().Err(err).Msg("Failed to count users")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	type roleCount struct {
		Role  string
		Count int64
	}
	var counts []roleCount
	if err := s.db.Model(&models.User{}).
		Select("role, count(*) as count").
		Group("role").
		Scan(&counts).Error; err != nil {
		s.logger.Error().Err(err).Msg("Failed to count users by role")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	for _, rc := range counts {
		summary.UsersByRole[rc.Role] = rc.Count
	}

	if err := s.db.Model(&models.GatewaySession{}).
		Where("revoked_at IS NULL AND expires_at > ?", time.Now()).
		Count(&summary.ActiveSessions).Error; err != nil {
		s.logger.Error().Err(err).Msg("Failed to count sessions")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, summary)
}

// @Summary Bank data
// @Description Payroll bank records, restricted to the view_bank_data permission
// @Tags dashboard
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]interface{}
// @Failure 403 {object} map[string]interface{}
// @Router /dashboard/bank-data [get]
func (s *Server) getBankData(c *gin.Context) {
	sessionData, _ := GetSessionData(c)

	// Placeholder payload until the payroll integration lands; the
	// interesting part is the permission gate in front of it.
	c.JSON(http.StatusOK, gin.H{
		"records":      []gin.H{},
		"requested_by": sessionData.UserID,
		"generated_at": time.Now().UTC(),
	})
}
