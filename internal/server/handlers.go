package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"govai/internal/jobs"
	"govai/internal/report"
)

const maxRequestBody = 1 << 20

func (s *Server) handleAnalyze(c *gin.Context) {
	data, err := io.ReadAll(io.LimitReader(c.Request.Body, maxRequestBody))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": false, "error": "Invalid JSON body"})
		return
	}

	body := map[string]any{}
	if len(strings.TrimSpace(string(data))) > 0 {
		var decoded any
		if err := json.Unmarshal(data, &decoded); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"status": false, "error": "Invalid JSON body"})
			return
		}
		if m, ok := decoded.(map[string]any); ok {
			body = m
		}
	}

	url, ok := body["url"].(string)
	if !ok || url == "" {
		c.JSON(http.StatusBadRequest, gin.H{"status": false, "error": "Missing or invalid 'url' field"})
		return
	}

	job, err := s.queue.Enqueue(url, body["principles"])
	switch {
	case errors.Is(err, jobs.ErrQueueFull), errors.Is(err, jobs.ErrClosed):
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": false, "error": err.Error()})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"status": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": true, "job_id": job.ID, "queued": true})
}

func (s *Server) handleMissingJobID(c *gin.Context) {
	c.JSON(http.StatusBadRequest, gin.H{"status": false, "error": "Missing job id"})
}

func (s *Server) handleJob(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		s.handleMissingJobID(c)
		return
	}
	name := id + ".json"
	if err := report.ValidName(name); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": false, "error": "Invalid job id"})
		return
	}

	data, err := s.store.Read(name)
	if errors.Is(err, os.ErrNotExist) {
		resp := gin.H{"status": false}
		if job, ok := s.queue.Status(id); ok {
			resp["state"] = job.State
		}
		c.JSON(http.StatusOK, resp)
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"status": false, "error": err.Error()})
		return
	}

	var rep any
	if err := json.Unmarshal(data, &rep); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"status": false, "error": "corrupt report: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": true, "report": rep})
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":         true,
		"uptime_seconds": int(time.Since(s.startTime).Seconds()),
	})
}
