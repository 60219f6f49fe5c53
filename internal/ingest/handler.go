package ingest

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/tech-arch1tect/datacollector-agent/internal/common"
	"github.com/tech-arch1tect/datacollector-agent/internal/datacollector"
	"github.com/tech-arch1tect/datacollector-agent/internal/logging"
	"github.com/tech-arch1tect/datacollector-agent/internal/validation"

	"github.com/labstack/echo/v4"
)

// MaxBodyBytes caps a relayed payload at the Data Collector per-post limit.
const MaxBodyBytes = 30 * 1024 * 1024

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{
		service: service,
	}
}

func (h *Handler) PostLogs(c echo.Context) error {
	logType := c.Param("logType")
	if logType == "" {
		return common.SendBadRequest(c, "log type is required")
	}

	if err := validation.ValidateLogType(logType); err != nil {
		return common.SendBadRequest(c, "invalid log type: "+err.Error())
	}

	body, err := io.ReadAll(http.MaxBytesReader(c.Response(), c.Request().Body, MaxBodyBytes))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return common.SendError(c, http.StatusRequestEntityTooLarge, "payload exceeds 30MB")
		}
		return common.SendBadRequest(c, "failed to read request body: "+err.Error())
	}

	records, err := DecodeRecords(body, FormatJSON)
	req := Request{
		RequestID: logging.RequestID(c),
		Source:    SourceHTTP,
		LogType:   logType,
		ClientIP:  c.RealIP(),
	}
	if err != nil {
		h.service.recordDecodeFailure(req, err)
		return common.SendBadRequest(c, err.Error())
	}
	c.Set(logging.RecordCountContextKey, len(records))

	req.Records = records
	result, err := h.service.Ingest(c.Request().Context(), req)
	if err != nil {
		return sendIngestError(c, err)
	}

	return common.SendAccepted(c, result)
}

func sendIngestError(c echo.Context, err error) error {
	var (
		serr *datacollector.SerializationError
		ierr *datacollector.IngestionError
		terr *datacollector.TransportError
	)

	switch {
	case errors.As(err, &serr):
		return common.SendBadRequest(c, err.Error())
	case errors.As(err, &ierr):
		status := ierr.StatusCode
		if status < http.StatusBadRequest {
			status = http.StatusBadGateway
		}
		return common.SendUpstreamError(c, status, ierr.Code, ierr.Error(), ierr.Body)
	case errors.Is(err, context.DeadlineExceeded):
		return common.SendGatewayTimeout(c, err.Error())
	case errors.As(err, &terr):
		return common.SendBadGateway(c, err.Error())
	default:
		return common.SendInternalError(c, err.Error())
	}
}
