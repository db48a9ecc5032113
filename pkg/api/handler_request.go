package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jumpdesk/deskbridge/pkg/models"
)

// handleListRequests returns every registered request, newest first.
func (s *Server) handleListRequests(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"requests": s.requests.List()})
}

// handleGetRequest returns one request snapshot.
func (s *Server) handleGetRequest(c *gin.Context) {
	req, err := s.requests.Get(c.Param("id"))
	if err != nil {
		status, message := mapCoordinatorError(err)
		c.JSON(status, gin.H{"error": message})
		return
	}
	c.JSON(http.StatusOK, req)
}

// retryRequest is the optional retry body. An absent body or absent step
// means retry from the beginning.
type retryRequest struct {
	Step string `json:"step"`
}

// handleRetryRequest re-runs a terminal request, either entirely or from
// one step onward.
func (s *Server) handleRetryRequest(c *gin.Context) {
	var body retryRequest
	if err := c.ShouldBindJSON(&body); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload: " + err.Error()})
		return
	}

	var step *models.StepType
	if body.Step != "" {
		parsed, err := models.ParseStepType(body.Step)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		step = &parsed
	}

	snapshot, err := s.requests.Retry(c.Param("id"), step)
	if err != nil {
		status, message := mapCoordinatorError(err)
		c.JSON(status, gin.H{"error": message})
		return
	}

	s.logger.Info("Retry accepted", "request_id", snapshot.ID, "step", body.Step)
	c.JSON(http.StatusAccepted, snapshot)
}
