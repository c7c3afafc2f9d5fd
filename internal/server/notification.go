package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	notificationdomain "github.com/smallbiznis/partnerhub/internal/notification/domain"
)

const sseHeartbeatInterval = 15 * time.Second

func (s *Server) ListNotifications(c *gin.Context) {
	var query notificationdomain.ListNotificationsRequest
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	partner, err := s.currentPartner(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.notificationSvc.List(c.Request.Context(), partner.ID, query)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp.Notifications, "page_info": resp.PageInfo})
}

type createNotificationRequest struct {
	Title   string         `json:"title"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data"`
}

// CreateNotification lets a partner leave a note for themselves.
func (s *Server) CreateNotification(c *gin.Context) {
	var req createNotificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	partner, err := s.currentPartner(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.notificationSvc.Emit(c.Request.Context(), notificationdomain.EmitRequest{
		PartnerID: partner.ID,
		Type:      notificationdomain.TypeNote,
		Title:     req.Title,
		Message:   req.Message,
		Data:      req.Data,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) UnreadNotificationCount(c *gin.Context) {
	partner, err := s.currentPartner(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	count, err := s.notificationSvc.UnreadCount(c.Request.Context(), partner.ID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"unread": count}})
}

func (s *Server) MarkNotificationRead(c *gin.Context) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	partner, err := s.currentPartner(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.notificationSvc.MarkRead(c.Request.Context(), partner.ID, id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) MarkAllNotificationsRead(c *gin.Context) {
	partner, err := s.currentPartner(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	updated, err := s.notificationSvc.MarkAllRead(c.Request.Context(), partner.ID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"updated": updated}})
}

func (s *Server) StreamNotifications(c *gin.Context) {
	if s.liveNotifications == nil {
		AbortWithError(c, ErrServiceUnavailable)
		return
	}

	partner, err := s.currentPartner(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	subscription, err := s.liveNotifications.Subscribe(partner.ID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	defer subscription.Close()

	writer := c.Writer
	flusher, ok := writer.(http.Flusher)
	if !ok {
		AbortWithError(c, ErrServiceUnavailable)
		return
	}

	headers := writer.Header()
	headers.Set("Content-Type", "text/event-stream")
	headers.Set("Cache-Control", "no-cache")
	headers.Set("Connection", "keep-alive")
	headers.Set("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	if _, err := io.WriteString(writer, "retry: 2000\n\n"); err != nil {
		return
	}
	flusher.Flush()

	ctx := c.Request.Context()
	heartbeat := time.NewTicker(sseHeartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case n, ok := <-subscription.Notifications():
			if !ok {
				return
			}
			if err := writeNotificationEvent(writer, n); err != nil {
				return
			}
			flusher.Flush()
		case <-heartbeat.C:
			if _, err := io.WriteString(writer, ": heartbeat\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func writeNotificationEvent(w io.Writer, n notificationdomain.Notification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: notification\nid: %s\ndata: %s\n\n", n.ID.String(), data)
	return err
}
