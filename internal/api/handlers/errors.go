package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/orrn/printfair/internal/core"
)

// respondError maps the core error taxonomy onto HTTP statuses. Validation
// and conflict messages are actionable and passed through; dependency
// failures surface as a generic retryable error.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, core.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, core.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, core.ErrAdmissionConflict), errors.Is(err, core.ErrStateConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "temporary failure, please retry"})
	}
}
