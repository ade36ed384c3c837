package server

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

type chatRequest struct {
	Message string `json:"message"`
	Room    string `json:"room"`
	TopK    int    `json:"top_k"`
}

type recommendRequest struct {
	Crop   string `json:"crop"`
	Region string `json:"region"`
}

type schemeRequest struct {
	Crop  string `json:"crop"`
	State string `json:"state"`
}

func (s *Server) handleChatbot(c *gin.Context) {
	var req chatRequest
	if err := bindValidated(c, chatSchema, &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	req.Message = strings.TrimSpace(req.Message)
	if req.Message == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Empty message"})
		return
	}
	if req.Room == "" {
		req.Room = "global"
	}

	start := time.Now()
	answer := s.assistant.Answer(c.Request.Context(), req.Message, req.TopK, req.Room)
	elapsed := time.Since(start)

	c.JSON(http.StatusOK, gin.H{
		"reply":         answer,
		"response_time": fmt.Sprintf("%.2fs", elapsed.Seconds()),
	})
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleRecommend(c *gin.Context) {
	var req recommendRequest
	if err := bindValidated(c, recommendSchema, &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, s.sellers.Recommend(req.Crop, req.Region))
}

func (s *Server) handleScheme(c *gin.Context) {
	var req schemeRequest
	if err := bindValidated(c, schemeSchema, &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rec, ok := s.schemes.Recommend(req.Crop, req.State)
	if !ok {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "scheme corpus not loaded"})
		return
	}
	c.JSON(http.StatusOK, rec)
}
