package web

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jitterskin/logger/internal/domain"
	"github.com/jitterskin/logger/internal/feature/visit"
	"github.com/jitterskin/logger/internal/logging"
)

const unknownUserAgent = "Unknown"

type logVisitRequest struct {
	LoggerID         string  `json:"logger_id" binding:"required"`
	IPAddress        string  `json:"ip_address" binding:"required"`
	UserAgent        string  `json:"user_agent" binding:"required"`
	TelegramUserID   *int64  `json:"telegram_user_id"`
	TelegramUsername *string `json:"telegram_username"`
}

type visitView struct {
	IPAddress        string    `json:"ip_address"`
	UserAgent        string    `json:"user_agent"`
	TelegramUserID   *int64    `json:"telegram_user_id"`
	TelegramUsername *string   `json:"telegram_username"`
	CreatedAt        time.Time `json:"created_at"`
}

type statsResponse struct {
	LoggerName string      `json:"logger_name"`
	TotalLogs  int64       `json:"total_logs"`
	RecentLogs []visitView `json:"recent_logs"`
}

type healthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Database  string `json:"database"`
}

func (s *Server) handleIndex(c *gin.Context) {
	s.render(c, http.StatusOK, indexPage, nil)
}

func (s *Server) handleLoggerPage(c *gin.Context) {
	token := c.Param("token")

	userAgent := c.GetHeader("User-Agent")
	if userAgent == "" {
		userAgent = unknownUserAgent
	}

	recorded, err := s.recorder.Record(c.Request.Context(), visit.Visit{
		Token:           token,
		IP:              c.ClientIP(),
		UserAgent:       userAgent,
		VisitorID:       optionalInt(c.Query("tg_user_id")),
		VisitorUsername: optionalString(c.Query("tg_username")),
	})
	if err != nil {
		s.logger.WithFields(logging.Fields{
			"event": "http_visit_error",
			"route": "/logger/:token",
		}).WithError(err).Error("failed to record visit")
		s.render(c, http.StatusInternalServerError, errorPage, nil)
		return
	}
	if !recorded {
		s.render(c, http.StatusNotFound, notFoundPage, nil)
		return
	}

	s.render(c, http.StatusOK, recordedPage, pageData{Token: token})
}

func (s *Server) handleLogVisit(c *gin.Context) {
	var req logVisitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing required fields"})
		return
	}

	recorded, err := s.recorder.Record(c.Request.Context(), visit.Visit{
		Token:           req.LoggerID,
		IP:              req.IPAddress,
		UserAgent:       req.UserAgent,
		VisitorID:       req.TelegramUserID,
		VisitorUsername: nonEmpty(req.TelegramUsername),
	})
	if err != nil {
		s.logger.WithFields(logging.Fields{
			"event": "http_visit_error",
			"route": "/api/log",
		}).WithError(err).Error("failed to record visit")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to log IP"})
		return
	}
	if !recorded {
		c.JSON(http.StatusNotFound, gin.H{"error": "Logger not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) handleStats(c *gin.Context) {
	ctx := c.Request.Context()

	l, err := s.stats.Lookup(ctx, c.Param("token"))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Logger not found"})
			return
		}
		s.internalError(c, "/api/stats/:token", err)
		return
	}

	stats, err := s.stats.Stats(ctx, l.ID)
	if err != nil {
		s.internalError(c, "/api/stats/:token", err)
		return
	}

	resp := statsResponse{
		LoggerName: l.Name,
		TotalLogs:  stats.TotalCount,
		RecentLogs: make([]visitView, 0, len(stats.Recent)),
	}
	for _, v := range stats.Recent {
		resp.RecentLogs = append(resp.RecentLogs, visitView{
			IPAddress:        v.IPAddress,
			UserAgent:        v.UserAgent,
			TelegramUserID:   v.TelegramUserID,
			TelegramUsername: v.TelegramUsername,
			CreatedAt:        v.CreatedAt.UTC(),
		})
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleHealth(c *gin.Context) {
	resp := healthResponse{
		Status:    "healthy",
		Timestamp: s.now().Format(time.RFC3339),
		Database:  "ok",
	}

	if s.db == nil {
		resp.Status, resp.Database = "degraded", "error"
		s.logger.WithField("event", "health_db_missing").Warn("database checker is not configured for health endpoint")
	} else {
		pingCtx, cancel := context.WithTimeout(c.Request.Context(), pingTimeout)
		err := s.db.Ping(pingCtx)
		cancel()

		if err != nil {
			resp.Status, resp.Database = "degraded", "error"
			s.logger.WithField("event", "health_db_error").WithError(err).Warn("database ping failed during health check")
		}
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) internalError(c *gin.Context, route string, err error) {
	s.logger.WithFields(logging.Fields{
		"event": "http_error",
		"route": route,
	}).WithError(err).Error("request failed")
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
}

func optionalInt(raw string) *int64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil
	}
	return &v
}

func optionalString(raw string) *string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	return &raw
}

func nonEmpty(v *string) *string {
	if v == nil {
		return nil
	}
	return optionalString(*v)
}
