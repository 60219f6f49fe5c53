package spool

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/tech-arch1tect/datacollector-agent/internal/ingest"
	"github.com/tech-arch1tect/datacollector-agent/internal/logging"
	"github.com/tech-arch1tect/datacollector-agent/internal/validation"
	"github.com/tech-arch1tect/datacollector-agent/internal/websocket"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const (
	DoneDir   = ".done"
	FailedDir = ".failed"

	OutcomeDone   = "done"
	OutcomeFailed = "failed"

	DefaultSettleDelay = 500 * time.Millisecond
)

type Ingester interface {
	IngestPayload(ctx context.Context, req ingest.Request, data []byte, format ingest.Format) (*ingest.Result, error)
}

type Notifier interface {
	BroadcastSpoolFile(event websocket.SpoolFileEvent)
}

// Watcher ingests record files dropped into <dir>/<LogType>/. Every file is
// posted once and then moved out of the way, to .done or .failed.
type Watcher struct {
	dir      string
	settle   time.Duration
	ingester Ingester
	notifier Notifier
	logger   *logging.Logger

	watcher *fsnotify.Watcher
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	mu      sync.Mutex
	pending map[string]*time.Timer
	active  map[string]bool
	stopped bool
}

func NewWatcher(dir string, ingester Ingester, notifier Notifier, logger *logging.Logger) *Watcher {
	if logger == nil {
		logger = logging.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &Watcher{
		dir:      dir,
		settle:   DefaultSettleDelay,
		ingester: ingester,
		notifier: notifier,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
		pending:  make(map[string]*time.Timer),
		active:   make(map[string]bool),
	}
}

// SetSettleDelay changes how long a file must be quiet before it is read.
// It must be called before Start.
func (w *Watcher) SetSettleDelay(d time.Duration) {
	w.settle = d
}

func (w *Watcher) Dir() string {
	return w.dir
}

func (w *Watcher) Start() error {
	if err := os.MkdirAll(w.dir, 0755); err != nil {
		return fmt.Errorf("failed to create spool directory: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	w.watcher = watcher

	if err := w.watcher.Add(w.dir); err != nil {
		_ = w.watcher.Close()
		return fmt.Errorf("failed to watch spool directory: %w", err)
	}

	entries, err := os.ReadDir(w.dir)
	if err != nil {
		_ = w.watcher.Close()
		return fmt.Errorf("failed to read spool directory: %w", err)
	}

	w.wg.Add(1)
	go w.watchLoop()

	for _, entry := range entries {
		if entry.IsDir() {
			w.addLogTypeDir(filepath.Join(w.dir, entry.Name()))
		}
	}

	w.logger.Info("spool watcher started",
		zap.String("dir", w.dir),
		zap.Duration("settle_delay", w.settle))

	return nil
}

func (w *Watcher) Stop() {
	w.mu.Lock()
	w.stopped = true
	for path, timer := range w.pending {
		if timer.Stop() {
			w.wg.Done()
		}
		delete(w.pending, path)
	}
	w.mu.Unlock()

	w.cancel()
	if w.watcher != nil {
		_ = w.watcher.Close()
	}
	w.wg.Wait()

	w.logger.Info("spool watcher stopped")
}

func (w *Watcher) watchLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleFileEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("spool watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) handleFileEvent(event fsnotify.Event) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return
	}

	if event.Has(fsnotify.Create) && filepath.Dir(event.Name) == filepath.Clean(w.dir) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			w.addLogTypeDir(event.Name)
		}
		return
	}

	if _, ok := w.logTypeFor(event.Name); ok {
		w.schedule(event.Name)
	}
}

// addLogTypeDir watches a log type directory and queues whatever is already
// in it. Files created between the directory appearing and the watch being
// added are picked up by the scan.
func (w *Watcher) addLogTypeDir(path string) {
	name := filepath.Base(path)
	if strings.HasPrefix(name, ".") {
		return
	}
	if err := validation.ValidateLogType(name); err != nil {
		w.logger.Warn("ignoring spool directory with invalid log type",
			zap.String("dir", path),
			zap.Error(err))
		return
	}

	if err := w.watcher.Add(path); err != nil {
		w.logger.Warn("failed to watch spool directory",
			zap.String("dir", path),
			zap.Error(err))
		return
	}
	w.logger.Debug("watching log type directory", zap.String("log_type", name))

	entries, err := os.ReadDir(path)
	if err != nil {
		w.logger.Warn("failed to read spool directory", zap.String("dir", path), zap.Error(err))
		return
	}
	for _, entry := range entries {
		if entry.Type().IsRegular() {
			file := filepath.Join(path, entry.Name())
			if _, ok := w.logTypeFor(file); ok {
				w.schedule(file)
			}
		}
	}
}

// logTypeFor reports the log type a spooled file belongs to, or false when the
// path is not an ingestible file directly under a log type directory.
func (w *Watcher) logTypeFor(path string) (string, bool) {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") {
		return "", false
	}
	if _, err := ingest.FormatFromPath(path); err != nil {
		return "", false
	}

	parent := filepath.Dir(path)
	if filepath.Dir(parent) != filepath.Clean(w.dir) {
		return "", false
	}

	logType := filepath.Base(parent)
	if strings.HasPrefix(logType, ".") || validation.ValidateLogType(logType) != nil {
		return "", false
	}
	return logType, true
}

// schedule (re)arms the settle timer for path so a file that is still being
// written is only read once the writes stop.
func (w *Watcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped || w.active[path] {
		return
	}
	if timer, ok := w.pending[path]; ok {
		// A timer that already fired runs its func again after Reset.
		if !timer.Reset(w.settle) {
			w.wg.Add(1)
		}
		return
	}

	w.wg.Add(1)
	w.pending[path] = time.AfterFunc(w.settle, func() {
		defer w.wg.Done()

		w.mu.Lock()
		if _, ok := w.pending[path]; !ok {
			w.mu.Unlock()
			return
		}
		delete(w.pending, path)
		w.active[path] = true
		w.mu.Unlock()

		w.ProcessFile(w.ctx, path)

		w.mu.Lock()
		delete(w.active, path)
		w.mu.Unlock()
	})
}

// ProcessFile ingests one spooled file and moves it to .done or .failed. It
// returns the outcome reported to listeners, or "" when the file was gone.
func (w *Watcher) ProcessFile(ctx context.Context, path string) string {
	logType, ok := w.logTypeFor(path)
	if !ok {
		return ""
	}
	if _, err := validation.SanitizeSpoolPath(w.dir, filepath.Join(logType, filepath.Base(path))); err != nil {
		w.logger.Warn("ignoring spool file outside the spool directory",
			zap.String("file", path),
			zap.Error(err))
		return ""
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ""
		}
		return w.finish(path, logType, OutcomeFailed, fmt.Errorf("failed to read spool file: %w", err))
	}

	format, err := ingest.FormatFromPath(path)
	if err != nil {
		return w.finish(path, logType, OutcomeFailed, err)
	}

	result, err := w.ingester.IngestPayload(ctx, ingest.Request{
		Source:   ingest.SourceSpool,
		LogType:  logType,
		FilePath: path,
	}, data, format)
	if err != nil {
		if ctx.Err() != nil && errors.Is(err, context.Canceled) {
			w.logger.Info("spool file left in place, watcher stopping", zap.String("file", path))
			return ""
		}
		return w.finish(path, logType, OutcomeFailed, err)
	}

	w.logger.Debug("spool file ingested",
		zap.String("file", path),
		zap.String("request_id", result.RequestID),
		zap.Int("records", result.Records))
	return w.finish(path, logType, OutcomeDone, nil)
}

func (w *Watcher) finish(path, logType, outcome string, ingestErr error) string {
	targetDir := filepath.Join(DoneDir, logType)
	if outcome == OutcomeFailed {
		targetDir = filepath.Join(FailedDir, logType)
	}

	target, err := w.moveFile(path, targetDir)
	if err != nil {
		w.logger.Error("failed to move spool file",
			zap.String("file", path),
			zap.String("target_dir", targetDir),
			zap.Error(err))
	}

	event := websocket.SpoolFileEvent{
		LogType: logType,
		File:    filepath.Base(path),
		Outcome: outcome,
	}

	if ingestErr != nil {
		event.Error = ingestErr.Error()
		if target != "" {
			if err := os.WriteFile(target+".error", []byte(ingestErr.Error()+"\n"), 0644); err != nil {
				w.logger.Warn("failed to write spool error file", zap.String("file", target), zap.Error(err))
			}
		}
		w.logger.Warn("spool file failed",
			zap.String("file", path),
			zap.String("log_type", logType),
			zap.Error(ingestErr))
	} else {
		w.logger.Info("spool file processed",
			zap.String("file", path),
			zap.String("log_type", logType))
	}

	if w.notifier != nil {
		w.notifier.BroadcastSpoolFile(event)
	}
	return outcome
}

// moveFile renames path into dir, relative to the spool root. An existing file
// of the same name is kept and the new one gets a timestamp prefix.
func (w *Watcher) moveFile(path, dir string) (string, error) {
	absDir, err := validation.SanitizeSpoolPath(w.dir, dir)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(absDir, 0755); err != nil {
		return "", err
	}

	name := filepath.Base(path)
	if _, err := os.Stat(filepath.Join(absDir, name)); err == nil {
		name = time.Now().UTC().Format("20060102T150405.000000000") + "-" + name
	}

	target, err := validation.SanitizeSpoolPath(w.dir, filepath.Join(dir, name))
	if err != nil {
		return "", err
	}
	if err := os.Rename(path, target); err != nil {
		return "", err
	}
	return target, nil
}
