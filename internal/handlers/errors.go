package handlers

import (
	"errors"
	nethttp "net/http"

	"github.com/gin-gonic/gin"

	"social-service/internal/services"
)

type errorKind struct {
	target  error
	status  int
	outcome string
}

var errorKinds = []errorKind{
	{services.ErrSelfRequest, nethttp.StatusBadRequest, "self_request"},
	{services.ErrAlreadyFriends, nethttp.StatusBadRequest, "already_friends"},
	{services.ErrRequestAlreadyPending, nethttp.StatusBadRequest, "already_pending"},
	{services.ErrInvalidProfile, nethttp.StatusBadRequest, "invalid_profile"},
	{services.ErrNotAuthorized, nethttp.StatusForbidden, "not_authorized"},
	{services.ErrNotFound, nethttp.StatusNotFound, "not_found"},
	{services.ErrAlreadyResolved, nethttp.StatusConflict, "already_resolved"},
	{services.ErrStoreUnavailable, nethttp.StatusServiceUnavailable, "store_unavailable"},
}

const outcomeUnauthorized = "unauthorized"

// classify maps engine and profile errors onto an HTTP status and a metric outcome.
func classify(err error) (int, string) {
	for _, kind := range errorKinds {
		if errors.Is(err, kind.target) {
			return kind.status, kind.outcome
		}
	}
	return nethttp.StatusInternalServerError, "internal"
}

func writeError(c *gin.Context, err error) {
	status, _ := classify(err)
	message := err.Error()
	switch status {
	case nethttp.StatusServiceUnavailable:
		c.Header("Retry-After", "1")
		message = "service temporarily unavailable, try again"
	case nethttp.StatusInternalServerError:
		message = "internal server error"
	}
	c.JSON(status, gin.H{"message": message})
}

func unauthorized(c *gin.Context) {
	c.JSON(nethttp.StatusUnauthorized, gin.H{"message": "Unauthorized"})
}
