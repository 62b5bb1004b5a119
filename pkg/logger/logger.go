// Package logger wraps log/slog with process-wide application and audit
// loggers. The audit logger only receives mined counter transactions, one
// JSON record each, and is kept apart from the application log.
package logger

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Config describes the application and audit sinks.
type Config struct {
	Level       string
	Format      string
	OutputPaths []string
	Audit       AuditConfig
	// Fields are attached to every record, typically the active chain and
	// the counter contract address.
	Fields map[string]string
}

// AuditConfig controls where mined transactions are recorded. Rotation is
// size based; backups older than MaxAgeDays are pruned.
type AuditConfig struct {
	Enabled    bool
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

const (
	defaultMaxSizeMB  = 100
	defaultMaxBackups = 7
	defaultMaxAgeDays = 30
)

type sinks struct {
	app     *slog.Logger
	audit   *slog.Logger
	closers []io.Closer
}

var current atomic.Pointer[sinks]

// Init builds the loggers described by cfg and installs them. A previous
// configuration is flushed and replaced.
func Init(cfg Config) error {
	next, err := build(cfg)
	if err != nil {
		return err
	}
	if prev := current.Swap(next); prev != nil {
		return prev.close()
	}
	return nil
}

func build(cfg Config) (*sinks, error) {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	s := &sinks{}
	writer, err := s.open(cfg.OutputPaths)
	if err != nil {
		_ = s.close()
		return nil, err
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler = slog.NewJSONHandler(writer, opts)
	if strings.EqualFold(cfg.Format, "text") {
		handler = slog.NewTextHandler(writer, opts)
	}
	fields := staticAttrs(cfg.Fields)
	s.app = slog.New(handler.WithAttrs(fields))

	s.audit = s.app.With(slog.String("stream", "audit"))
	if cfg.Audit.Enabled {
		if cfg.Audit.Path == "" {
			_ = s.close()
			return nil, errors.New("audit log path cannot be empty when enabled")
		}
		rotator := newRotator(cfg.Audit.Path, cfg.Audit.MaxSizeMB, cfg.Audit.MaxBackups, cfg.Audit.MaxAgeDays)
		s.closers = append(s.closers, rotator)
		auditHandler := slog.NewJSONHandler(rotator, &slog.HandlerOptions{Level: slog.LevelInfo})
		s.audit = slog.New(auditHandler.WithAttrs(fields))
	}
	return s, nil
}

// open resolves output names into one writer. "stdout" and "stderr" are the
// process streams; anything else is a rotated file.
func (s *sinks) open(outputs []string) (io.Writer, error) {
	if len(outputs) == 0 {
		return os.Stdout, nil
	}
	writers := make([]io.Writer, 0, len(outputs))
	for _, out := range outputs {
		switch strings.ToLower(strings.TrimSpace(out)) {
		case "stdout":
			writers = append(writers, os.Stdout)
		case "stderr":
			writers = append(writers, os.Stderr)
		default:
			if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
				return nil, fmt.Errorf("create log directory: %w", err)
			}
			rotator := newRotator(out, 0, 0, 0)
			s.closers = append(s.closers, rotator)
			writers = append(writers, rotator)
		}
	}
	if len(writers) == 1 {
		return writers[0], nil
	}
	return io.MultiWriter(writers...), nil
}

func (s *sinks) close() error {
	var err error
	for _, c := range s.closers {
		err = errors.Join(err, c.Close())
	}
	s.closers = nil
	return err
}

func newRotator(path string, sizeMB, backups, ageDays int) *lumberjack.Logger {
	if sizeMB <= 0 {
		sizeMB = defaultMaxSizeMB
	}
	if backups <= 0 {
		backups = defaultMaxBackups
	}
	if ageDays <= 0 {
		ageDays = defaultMaxAgeDays
	}
	return &lumberjack.Logger{Filename: path, MaxSize: sizeMB, MaxBackups: backups, MaxAge: ageDays}
}

func staticAttrs(fields map[string]string) []slog.Attr {
	keys := make([]string, 0, len(fields))
	for k, v := range fields {
		if k != "" && v != "" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	attrs := make([]slog.Attr, 0, len(keys))
	for _, k := range keys {
		attrs = append(attrs, slog.String(k, fields[k]))
	}
	return attrs
}

func parseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", level)
	}
}

func loaded() *sinks {
	if s := current.Load(); s != nil {
		return s
	}
	app := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	fallback := &sinks{app: app, audit: app.With(slog.String("stream", "audit"))}
	if current.CompareAndSwap(nil, fallback) {
		return fallback
	}
	return current.Load()
}

// L returns the application logger, falling back to JSON on stdout before Init.
func L() *slog.Logger {
	return loaded().app
}

// Audit returns the transaction audit logger.
func Audit() *slog.Logger {
	return loaded().audit
}

// Sync flushes and closes the file sinks of the installed configuration.
func Sync() error {
	if s := current.Load(); s != nil {
		return s.close()
	}
	return nil
}

// Named returns a child logger tagged with the provided component name.
func Named(name string) *slog.Logger {
	return L().With(slog.String("component", name))
}

// TxRecord is one audit entry for a mined counter transaction.
type TxRecord struct {
	Action   string
	Hash     string
	From     string
	Contract string
	Block    uint64
	GasUsed  uint64
	Status   uint64
}

// Outcome names the receipt status.
func (r TxRecord) Outcome() string {
	if r.Status == 1 {
		return "confirmed"
	}
	return "reverted"
}

// AuditTransaction records a mined transaction, successful or reverted.
func AuditTransaction(rec TxRecord) {
	Audit().Info("counter transaction mined",
		slog.String("action", rec.Action),
		slog.String("outcome", rec.Outcome()),
		slog.String("tx_hash", rec.Hash),
		slog.String("from", rec.From),
		slog.String("contract", rec.Contract),
		slog.Uint64("block", rec.Block),
		slog.Uint64("gas_used", rec.GasUsed),
	)
}
