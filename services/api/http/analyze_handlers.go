package http

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/hydrogem/pool-dashboard/services/api/analysis"
)

// handleAnalyze runs a water-quality analysis over a trailing window.
// POST /api/analyze {"hours": 24}
func (s *Server) handleAnalyze(c *gin.Context) {
	// A missing or unreadable body falls back to the default window.
	body, _ := c.GetRawData()
	hours := analysis.ParseHours(body)

	result, err := s.analyzer.Analyze(c.Request.Context(), hours)
	if err != nil {
		log.Printf("analyze failed (request %s, hours=%v): %v", c.GetString("request_id"), hours, err)
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"ok":       true,
		"analysis": result.Analysis,
		"latest":   result.Latest,
		"count":    result.Count,
	})
}
