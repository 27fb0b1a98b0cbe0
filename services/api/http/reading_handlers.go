package http

import (
	"context"
	"io"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/hydrogem/pool-dashboard/services/api/analysis"
	"github.com/hydrogem/pool-dashboard/services/api/live"
	"github.com/hydrogem/pool-dashboard/services/api/models"
)

// handleLatest returns the most recent reading, or null when there is none.
// GET /api/readings/latest
func (s *Server) handleLatest(c *gin.Context) {
	latest, err := s.latest(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true, "latest": latest})
}

// handleLive streams one live view as server-sent events. The first event is
// "session" carrying the id used for manual refreshes; every state change
// after that is a "state" event.
// GET /api/live
func (s *Server) handleLive(c *gin.Context) {
	ctx := c.Request.Context()

	initial, err := s.latest(ctx)
	if err != nil {
		log.Printf("live: initial reading unavailable: %v", err)
		initial = nil
	}

	view := live.NewView(s.store, s.feed, live.Options{PollInterval: s.cfg.PollInterval})
	defer view.Release()

	if err := view.Mount(ctx, initial); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
		return
	}

	id := uuid.NewString()
	s.views.Store(id, view)
	defer s.views.Delete(id)

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	loc := s.cfg.Location()
	c.SSEvent("session", gin.H{"id": id})
	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case <-s.streamsDone:
			return false
		case st, ok := <-view.Updates():
			if !ok {
				return false
			}
			c.SSEvent("state", live.Present(st, loc))
			return true
		}
	})
}

// handleLiveRefresh runs a manual fetch for a connected live view.
// POST /api/live/:id/refresh
func (s *Server) handleLiveRefresh(c *gin.Context) {
	v, ok := s.views.Load(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"ok": false, "error": "live session not found"})
		return
	}

	// Fetch errors only mark the view stale; the stream reports that.
	if err := v.(*live.View).Refresh(c.Request.Context()); err != nil {
		log.Printf("live refresh failed: %v", err)
	}
	c.Status(http.StatusNoContent)
}

// handlePage renders the dashboard with the latest reading baked in. The
// last-refresh label is left empty; only the client stamps it.
// GET /
func (s *Server) handlePage(c *gin.Context) {
	initial, err := s.latest(c.Request.Context())
	if err != nil {
		log.Printf("page: latest reading unavailable: %v", err)
		initial = nil
	}

	c.HTML(http.StatusOK, "index.html", gin.H{
		"Cards":        live.Cards(initial, s.cfg.Location()),
		"HasReading":   initial != nil,
		"LastRefresh":  live.Placeholder,
		"DefaultHours": analysis.DefaultHours,
		"MinHours":     analysis.MinWindowHours,
		"MaxHours":     analysis.MaxWindowHours,
		"TimeZone":     s.cfg.Location().String(),
	})
}

func (s *Server) latest(ctx context.Context) (*models.Reading, error) {
	if s.cfg.DatabaseTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.DatabaseTimeout)
		defer cancel()
	}
	return s.store.LatestReading(ctx)
}
