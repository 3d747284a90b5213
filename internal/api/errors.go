package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ivlev/scenereel/internal/model"
)

// handleError переводит ошибку в HTTP-статус и прерывает запрос.
func handleError(c *gin.Context, err error) {
	var maxErr *http.MaxBytesError
	status := http.StatusInternalServerError
	msg := "internal error"
	switch {
	case errors.As(err, &maxErr):
		status, msg = http.StatusRequestEntityTooLarge, err.Error()
	case errors.Is(err, model.ErrNotFound):
		status, msg = http.StatusNotFound, err.Error()
	case errors.Is(err, model.ErrInvalidInput), errors.Is(err, model.ErrEmptyTimeline):
		status, msg = http.StatusBadRequest, err.Error()
	default:
		_ = c.Error(err)
	}
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}
