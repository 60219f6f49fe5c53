package ingest

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/tech-arch1tect/datacollector-agent/internal/audit"
	"github.com/tech-arch1tect/datacollector-agent/internal/datacollector"
	"github.com/tech-arch1tect/datacollector-agent/internal/logging"
	"github.com/tech-arch1tect/datacollector-agent/internal/websocket"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	SourceHTTP  = "http"
	SourceSpool = "spool"
	SourceCLI   = "cli"
)

// Poster is the part of *datacollector.Client the service depends on.
type Poster interface {
	PostData(ctx context.Context, records []datacollector.Record, logType string) (*http.Response, error)
	WorkspaceID() string
}

type Broadcaster interface {
	BroadcastIngestion(event websocket.IngestionEvent)
}

type Request struct {
	RequestID string
	Source    string
	LogType   string
	Records   []datacollector.Record
	ClientIP  string
	FilePath  string
}

type Result struct {
	RequestID  string `json:"request_id"`
	LogType    string `json:"log_type"`
	Records    int    `json:"records"`
	Bytes      int    `json:"bytes"`
	StatusCode int    `json:"status_code"`
}

// Service is the single path every surface (HTTP relay, spool, CLI) takes to
// the Data Collector API. It posts once and never retries.
type Service struct {
	client      Poster
	audit       *audit.Service
	broadcaster Broadcaster
	logger      *logging.Logger
	now         func() time.Time
}

func NewService(client Poster, auditService *audit.Service, broadcaster Broadcaster, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Service{
		client:      client,
		audit:       auditService,
		broadcaster: broadcaster,
		logger:      logger,
		now:         time.Now,
	}
}

func (s *Service) Ingest(ctx context.Context, req Request) (*Result, error) {
	if req.RequestID == "" {
		req.RequestID = uuid.New().String()
	}

	start := s.now()
	resp, err := s.client.PostData(ctx, req.Records, req.LogType)
	duration := s.now().Sub(start)

	result := &Result{
		RequestID: req.RequestID,
		LogType:   req.LogType,
		Records:   len(req.Records),
	}

	if err == nil {
		result.StatusCode = resp.StatusCode
		if resp.Request != nil && resp.Request.ContentLength > 0 {
			result.Bytes = int(resp.Request.ContentLength)
		}
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}

	s.record(req, result, duration, err)

	if err != nil {
		return nil, err
	}
	return result, nil
}

// IngestPayload decodes a raw document and ingests it. Decode failures are
// audited like any other failed attempt.
func (s *Service) IngestPayload(ctx context.Context, req Request, data []byte, format Format) (*Result, error) {
	records, err := DecodeRecords(data, format)
	if err != nil {
		if req.RequestID == "" {
			req.RequestID = uuid.New().String()
		}
		s.recordDecodeFailure(req, err)
		return nil, err
	}

	req.Records = records
	return s.Ingest(ctx, req)
}

func (s *Service) record(req Request, result *Result, duration time.Duration, err error) {
	event := audit.AuditEvent{
		RequestID:   req.RequestID,
		Source:      req.Source,
		ClientIP:    req.ClientIP,
		WorkspaceID: s.client.WorkspaceID(),
		LogType:     req.LogType,
		Records:     result.Records,
		Bytes:       result.Bytes,
		StatusCode:  result.StatusCode,
		FilePath:    req.FilePath,
		DurationMs:  duration.Milliseconds(),
		Success:     err == nil,
	}

	fields := []zap.Field{
		zap.String("request_id", req.RequestID),
		zap.String("source", req.Source),
		zap.String("log_type", req.LogType),
		zap.Int("records", result.Records),
		zap.Duration("duration", duration),
	}

	var (
		serr *datacollector.SerializationError
		ierr *datacollector.IngestionError
	)
	switch {
	case err == nil:
		event.EventType = audit.EventIngestAccepted
		s.logger.Info("records ingested", append(fields, zap.Int("status_code", result.StatusCode), zap.Int("bytes", result.Bytes))...)
	case errors.As(err, &serr):
		event.EventType = audit.EventIngestSerializationFailed
		event.FailureReason = err.Error()
		s.logger.Warn("records could not be serialized", append(fields, zap.Error(err))...)
	case errors.As(err, &ierr):
		event.EventType = audit.EventIngestRejected
		event.StatusCode = ierr.StatusCode
		event.UpstreamCode = ierr.Code
		event.FailureReason = err.Error()
		s.logger.Error("data collector rejected records", append(fields,
			zap.Int("status_code", ierr.StatusCode),
			zap.String("upstream_code", ierr.Code),
			zap.Error(err))...)
	default:
		event.EventType = audit.EventIngestTransportFailed
		event.FailureReason = err.Error()
		s.logger.Error("data collector request failed", append(fields, zap.Error(err))...)
	}

	if s.audit != nil {
		s.audit.Log(event)
	}

	if s.broadcaster != nil {
		ws := websocket.IngestionEvent{
			RequestID:  req.RequestID,
			Source:     req.Source,
			LogType:    req.LogType,
			Records:    result.Records,
			Bytes:      result.Bytes,
			StatusCode: event.StatusCode,
			Success:    err == nil,
		}
		if err != nil {
			ws.Error = err.Error()
		}
		s.broadcaster.BroadcastIngestion(ws)
	}
}

func (s *Service) recordDecodeFailure(req Request, err error) {
	s.logger.Warn("payload could not be decoded",
		zap.String("request_id", req.RequestID),
		zap.String("source", req.Source),
		zap.String("log_type", req.LogType),
		zap.Error(err))

	if s.audit != nil {
		s.audit.Log(audit.AuditEvent{
			EventType:     audit.EventIngestDecodeFailed,
			RequestID:     req.RequestID,
			Source:        req.Source,
			ClientIP:      req.ClientIP,
			WorkspaceID:   s.client.WorkspaceID(),
			LogType:       req.LogType,
			FilePath:      req.FilePath,
			FailureReason: err.Error(),
		})
	}
}
