package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-faster/errors"

	"github.com/lumiere-jewels/service-coupon/pkg/domain"
)

// Body is the standard API response envelope.
type Body struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

const internalMessage = "internal server error"

// Success sends a 200 JSON response with data.
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Body{Success: true, Data: data})
}

// Created sends a 201 JSON response with data.
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Body{Success: true, Data: data})
}

// BadRequest sends 400 with an error message.
func BadRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, Body{Success: false, Error: msg})
}

// Error maps err to a status code and writes the envelope.
func Error(c *gin.Context, err error) {
	ErrorWithData(c, err, nil)
}

// ErrorWithData is Error with a data payload, used when a failed outcome still
// has a body the client reads (coupon validation).
func ErrorWithData(c *gin.Context, err error, data interface{}) {
	status := StatusOf(err)
	msg := domain.MessageOf(err)
	if status == http.StatusInternalServerError || msg == "" {
		_ = c.Error(err)
		msg = internalMessage
	}
	c.JSON(status, Body{Success: false, Data: data, Error: msg})
}

// StatusOf returns the HTTP status for a domain error classification.
func StatusOf(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}
