package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/jengzang/vehicle-forensics-go/internal/ingest"
	"github.com/jengzang/vehicle-forensics-go/internal/interpolation"
	"github.com/jengzang/vehicle-forensics-go/internal/projection"
	"github.com/jengzang/vehicle-forensics-go/internal/repository"
	"github.com/jengzang/vehicle-forensics-go/internal/service"
	"github.com/jengzang/vehicle-forensics-go/internal/wire"
	"github.com/jengzang/vehicle-forensics-go/pkg/response"
)

var logger = logrus.WithField("component", "http")

// statusFor maps service errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, repository.ErrNotFound), errors.Is(err, service.ErrUnknownAnalyzer):
		return http.StatusNotFound
	case errors.Is(err, ingest.ErrUnsupportedFormat),
		errors.Is(err, wire.ErrUnitMismatch),
		errors.Is(err, wire.ErrInvalidPayload),
		errors.Is(err, interpolation.ErrInvalidInterval),
		errors.Is(err, service.ErrNoVehicles):
		return http.StatusBadRequest
	case errors.Is(err, ingest.ErrNoValidPoints),
		errors.Is(err, ingest.ErrMissingColumns),
		errors.Is(err, projection.ErrInvalidCenter),
		errors.Is(err, projection.ErrOutsideUTM):
		return http.StatusUnprocessableEntity
	case errors.Is(err, service.ErrPersistenceDisabled):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func writeError(c *gin.Context, err error) {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		logger.WithError(err).WithField("path", c.FullPath()).Error("Request failed")
	}
	response.Error(c, code, err.Error())
}
