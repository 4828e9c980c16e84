package admin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/gogogo1024/filegate/protocol"
	"github.com/gogogo1024/filegate/transfer"
)

const (
	auditLogsKey = "filegate:audit:logs"
	auditLogsMax = 1000

	// DefaultMaxUpload bounds a single uploaded file.
	DefaultMaxUpload = 64 << 20
)

// Store is the writable file store the admin service manages.
// transfer.RedisStore implements it.
type Store interface {
	transfer.FileStore
	Put(ctx context.Context, name string, data []byte) error
	Delete(ctx context.Context, name string) error
}

// Service manages the files served by filegate.
type Service struct {
	store     Store
	audit     *redis.Client // nil disables the audit log
	maxUpload int64
	log       *zap.Logger
}

type Option func(*Service)

// WithAudit records every change in a Redis list.
func WithAudit(c *redis.Client) Option {
	return func(s *Service) { s.audit = c }
}

func WithMaxUpload(n int64) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxUpload = n
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

func NewService(store Store, opts ...Option) *Service {
	s := &Service{store: store, maxUpload: DefaultMaxUpload, log: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Response wrapper
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func respondJSON(w http.ResponseWriter, code int, msg string, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	return json.NewEncoder(w).Encode(Response{Code: code, Message: msg, Data: data})
}

// FileInfo describes a stored file.
type FileInfo struct {
	Name   string `json:"name"`
	Size   int64  `json:"size"`
	Chunks int    `json:"chunks"`
}

func fileInfo(name string, size int64) FileInfo {
	return FileInfo{Name: name, Size: size, Chunks: protocol.TotalChunks(size)}
}

// StatFile handles GET /api/files/{name}.
func (s *Service) StatFile(w http.ResponseWriter, r *http.Request) error {
	name := r.PathValue("name")
	size, err := s.store.Stat(r.Context(), name)
	if err != nil {
		return err
	}
	return respondJSON(w, http.StatusOK, "success", fileInfo(name, size))
}

// PutFile handles PUT /api/files/{name}; the request body is the file contents.
func (s *Service) PutFile(w http.ResponseWriter, r *http.Request) error {
	name := r.PathValue("name")
	if err := transfer.ValidateName(name); err != nil {
		return err
	}

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxUpload))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return fmt.Errorf("%w: upload exceeds %d bytes", errTooLarge, s.maxUpload)
		}
		return err
	}

	ctx := r.Context()
	if err := s.store.Put(ctx, name, data); err != nil {
		return err
	}
	s.addAuditLog(ctx, "file_put", name, fmt.Sprintf("stored %d bytes", len(data)))
	s.log.Info("file stored", zap.String("file", name), zap.Int("size", len(data)))
	return respondJSON(w, http.StatusOK, "file stored", fileInfo(name, int64(len(data))))
}

// DeleteFile handles DELETE /api/files/{name}.
func (s *Service) DeleteFile(w http.ResponseWriter, r *http.Request) error {
	name := r.PathValue("name")
	ctx := r.Context()
	if _, err := s.store.Stat(ctx, name); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, name); err != nil {
		return err
	}
	s.addAuditLog(ctx, "file_deleted", name, "deleted file")
	s.log.Info("file deleted", zap.String("file", name))
	return respondJSON(w, http.StatusOK, "file deleted", nil)
}

// AuditLog is one recorded change.
type AuditLog struct {
	ID        int64  `json:"id"`
	Action    string `json:"action"`
	Target    string `json:"target"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

func (s *Service) addAuditLog(ctx context.Context, action, target, message string) {
	if s.audit == nil {
		return
	}
	data, err := json.Marshal(AuditLog{
		Action:    action,
		Target:    target,
		Message:   message,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return
	}
	_, err = s.audit.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.LPush(ctx, auditLogsKey, data)
		p.LTrim(ctx, auditLogsKey, 0, auditLogsMax-1)
		return nil
	})
	if err != nil {
		s.log.Warn("audit log write failed", zap.String("action", action), zap.Error(err))
	}
}

// GetAuditLogs handles GET /api/audit-logs?limit=N, newest first.
func (s *Service) GetAuditLogs(w http.ResponseWriter, r *http.Request) error {
	if s.audit == nil {
		return respondJSON(w, http.StatusOK, "audit log disabled", map[string]interface{}{"total": 0, "logs": []AuditLog{}})
	}

	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n <= 0 {
			return fmt.Errorf("%w: invalid limit %q", errBadRequest, l)
		}
		limit = min(n, auditLogsMax)
	}

	ctx := r.Context()
	count, err := s.audit.LLen(ctx, auditLogsKey).Result()
	if err != nil {
		return err
	}
	raw, err := s.audit.LRange(ctx, auditLogsKey, 0, int64(limit-1)).Result()
	if err != nil {
		return err
	}

	logs := make([]AuditLog, 0, len(raw))
	for idx, entry := range raw {
		var l AuditLog
		if err := json.Unmarshal([]byte(entry), &l); err != nil {
			continue
		}
		l.ID = int64(idx + 1)
		logs = append(logs, l)
	}
	return respondJSON(w, http.StatusOK, "success", map[string]interface{}{
		"total": count,
		"limit": limit,
		"logs":  logs,
	})
}
