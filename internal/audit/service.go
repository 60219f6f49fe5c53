package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/tech-arch1tect/datacollector-agent/internal/logging"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const dateLayout = "2006-01-02"

// Service appends ingestion audit events to a jsonl file. The live file is
// <base>-current<ext>; it is rotated to <base>-<date>[-<seq>]<ext> when the
// day changes or when it grows past maxSizeBytes.
type Service struct {
	logger        *logging.Logger
	fileWriter    *os.File
	writeMutex    sync.Mutex
	enabled       bool
	logDir        string
	logBaseName   string
	logExtension  string
	currentDate   string
	currentSeqNum int
	maxSizeBytes  int64
	now           func() time.Time
}

type AuditEvent struct {
	EventID       string         `json:"event_id"`
	Timestamp     time.Time      `json:"timestamp"`
	EventType     string         `json:"event_type"`
	EventCategory string         `json:"event_category"`
	Severity      string         `json:"severity"`
	Success       bool           `json:"success"`
	RequestID     string         `json:"request_id,omitempty"`
	Source        string         `json:"source,omitempty"`
	ClientIP      string         `json:"client_ip,omitempty"`
	WorkspaceID   string         `json:"workspace_id,omitempty"`
	LogType       string         `json:"log_type,omitempty"`
	Records       int            `json:"records"`
	Bytes         int            `json:"bytes,omitempty"`
	StatusCode    int            `json:"status_code,omitempty"`
	UpstreamCode  string         `json:"upstream_code,omitempty"`
	FilePath      string         `json:"file_path,omitempty"`
	FailureReason string         `json:"failure_reason,omitempty"`
	DurationMs    int64          `json:"duration_ms"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

func NewService(enabled bool, logFilePath string, maxSizeBytes int64, logger *logging.Logger) (*Service, error) {
	return newService(enabled, logFilePath, maxSizeBytes, logger, time.Now)
}

func newService(enabled bool, logFilePath string, maxSizeBytes int64, logger *logging.Logger, now func() time.Time) (*Service, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	if !enabled {
		return &Service{enabled: false, logger: logger, now: now}, nil
	}

	if logFilePath == "" {
		logFilePath = "/var/log/datacollector-agent/ingest.jsonl"
	}

	logDir := filepath.Dir(logFilePath)
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create audit log directory: %w", err)
	}

	ext := filepath.Ext(logFilePath)
	if ext == "" {
		ext = ".jsonl"
	}
	baseName := strings.TrimSuffix(filepath.Base(logFilePath), filepath.Ext(logFilePath))
	if baseName == "" {
		baseName = "ingest"
	}

	s := &Service{
		logger:       logger,
		enabled:      true,
		logDir:       logDir,
		logBaseName:  baseName,
		logExtension: ext,
		maxSizeBytes: maxSizeBytes,
		now:          now,
		currentDate:  now().Format(dateLayout),
	}

	// A live file left over from an earlier day belongs to that day; the
	// first ensureCurrentFileLocked rotates it under its own date.
	if info, err := os.Stat(s.CurrentFilePath()); err == nil && info.Size() > 0 {
		s.currentDate = info.ModTime().In(now().Location()).Format(dateLayout)
	}

	if err := s.scanExistingSequenceNumber(); err != nil {
		logger.Warn("failed to scan existing audit sequence numbers", zap.Error(err))
	}

	if err := s.ensureCurrentFileLocked(); err != nil {
		return nil, err
	}

	logger.Info("audit log service initialized",
		zap.String("log_dir", logDir),
		zap.String("base_name", baseName),
		zap.Int64("max_size_bytes", maxSizeBytes),
		zap.Int("current_seq_num", s.currentSeqNum),
	)

	return s, nil
}

func (s *Service) IsEnabled() bool {
	return s.enabled
}

// Log stamps the event with id, time, category and severity and appends it.
// Write failures are logged, never returned, so ingestion is not blocked on
// the audit trail.
func (s *Service) Log(event AuditEvent) {
	if !s.enabled {
		return
	}

	s.writeMutex.Lock()
	defer s.writeMutex.Unlock()

	if err := s.ensureCurrentFileLocked(); err != nil {
		s.logger.Error("failed to prepare audit log file", zap.Error(err))
		return
	}

	if event.EventID == "" {
		event.EventID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.now().UTC()
	}
	event.EventCategory = GetEventCategory(event.EventType)
	event.Severity = GetEventSeverity(event.EventType)

	data, err := json.Marshal(event)
	if err != nil {
		s.logger.Error("failed to marshal audit event", zap.Error(err))
		return
	}

	if _, err := s.fileWriter.Write(append(data, '\n')); err != nil {
		s.logger.Error("failed to write audit event", zap.Error(err))
		return
	}

	s.checkSizeRotationLocked()
}

func (s *Service) Close() error {
	if !s.enabled {
		return nil
	}

	s.writeMutex.Lock()
	defer s.writeMutex.Unlock()

	if s.fileWriter == nil {
		return nil
	}
	err := s.fileWriter.Close()
	s.fileWriter = nil
	return err
}

func (s *Service) CurrentFilePath() string {
	return filepath.Join(s.logDir, fmt.Sprintf("%s-current%s", s.logBaseName, s.logExtension))
}

func (s *Service) rotatedFilePath(date string, seqNum int) string {
	if seqNum == 0 {
		return filepath.Join(s.logDir, fmt.Sprintf("%s-%s%s", s.logBaseName, date, s.logExtension))
	}
	return filepath.Join(s.logDir, fmt.Sprintf("%s-%s-%d%s", s.logBaseName, date, seqNum, s.logExtension))
}

func (s *Service) scanExistingSequenceNumber() error {
	pattern := regexp.MustCompile(fmt.Sprintf(`^%s-%s-(\d+)%s$`,
		regexp.QuoteMeta(s.logBaseName), regexp.QuoteMeta(s.currentDate), regexp.QuoteMeta(s.logExtension)))

	entries, err := os.ReadDir(s.logDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	maxSeq := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		matches := pattern.FindStringSubmatch(entry.Name())
		if len(matches) != 2 {
			continue
		}
		if seq, err := strconv.Atoi(matches[1]); err == nil && seq > maxSeq {
			maxSeq = seq
		}
	}

	s.currentSeqNum = maxSeq
	return nil
}

func (s *Service) openCurrentFile() error {
	path := s.CurrentFilePath()
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open audit log file %s: %w", path, err)
	}
	s.fileWriter = file
	return nil
}

func (s *Service) closeCurrentFile() {
	if s.fileWriter == nil {
		return
	}
	if err := s.fileWriter.Close(); err != nil {
		s.logger.Warn("failed to close audit log file", zap.Error(err))
	}
	s.fileWriter = nil
}

func (s *Service) ensureCurrentFileLocked() error {
	today := s.now().Format(dateLayout)

	if s.currentDate != today {
		previousDate := s.currentDate
		s.currentDate = today
		return s.rotateMidnight(previousDate)
	}

	if s.fileWriter == nil {
		return s.openCurrentFile()
	}
	return nil
}

func (s *Service) rotateMidnight(previousDate string) error {
	s.closeCurrentFile()

	currentPath := s.CurrentFilePath()
	if info, err := os.Stat(currentPath); err == nil && info.Size() > 0 {
		seq := 0
		if s.currentSeqNum > 0 {
			seq = s.currentSeqNum + 1
		}
		rotatedPath := s.rotatedFilePath(previousDate, seq)
		if err := os.Rename(currentPath, rotatedPath); err != nil {
			return fmt.Errorf("failed to rotate audit log file: %w", err)
		}
		s.logger.Info("rotated audit log file at midnight", zap.String("rotated_to", rotatedPath))
	}

	s.currentSeqNum = 0
	return s.openCurrentFile()
}

func (s *Service) checkSizeRotationLocked() {
	if s.maxSizeBytes <= 0 || s.fileWriter == nil {
		return
	}

	info, err := s.fileWriter.Stat()
	if err != nil {
		s.logger.Warn("failed to stat audit log file", zap.Error(err))
		return
	}
	if info.Size() < s.maxSizeBytes {
		return
	}

	if err := s.rotateSize(); err != nil {
		s.logger.Error("failed to rotate audit log file by size", zap.Error(err))
	}
}

func (s *Service) rotateSize() error {
	s.closeCurrentFile()

	s.currentSeqNum++
	rotatedPath := s.rotatedFilePath(s.currentDate, s.currentSeqNum)
	if err := os.Rename(s.CurrentFilePath(), rotatedPath); err != nil {
		return fmt.Errorf("failed to rotate audit log file: %w", err)
	}

	s.logger.Info("rotated audit log file by size",
		zap.String("rotated_to", rotatedPath),
		zap.Int("seq_num", s.currentSeqNum),
	)

	return s.openCurrentFile()
}
