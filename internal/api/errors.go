package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/qcyard/internal/qcerr"
	"go.uber.org/zap"
)

type errorBody struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}

// statusFor maps typed engine errors to HTTP statuses.
func statusFor(err error) int {
	switch qcerr.CodeOf(err) {
	case qcerr.CodeNotFound:
		return http.StatusNotFound
	case qcerr.CodeValidation:
		return http.StatusBadRequest
	case qcerr.CodePrecondition:
		return http.StatusPreconditionFailed
	case qcerr.CodeConflict:
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func (s *server) fail(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.log.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
	}
	c.AbortWithStatusJSON(status, errorBody{Error: err.Error(), Reason: qcerr.ReasonOf(err)})
}

func badRequest(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, errorBody{Error: err.Error(), Reason: "INVALID_REQUEST"})
}
