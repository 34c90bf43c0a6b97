package service

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/medscan/scangate/internal/model"
	"github.com/medscan/scangate/internal/pkg/localtime"
	"github.com/medscan/scangate/internal/pkg/logger"
)

// AuditRepo is the durable side of the audit trail. The service works without
// one; entries then live in the JSONL file and the in-memory ring only.
type AuditRepo interface {
	Insert(ctx context.Context, entry *model.AuditEntry) error
	List(ctx context.Context, action string, actorID *int64, limit int, from, to *time.Time) ([]*model.AuditEntry, error)
}

// AuditService records who did what, off the request path. Writes go through
// a buffered channel so a slow disk or database never stalls a handler.
type AuditService struct {
	logChan chan *model.AuditEntry
	logFile *os.File
	buffer  *auditBuffer
	repo    AuditRepo
}

func NewAuditService(logDir string, repo AuditRepo) (*AuditService, error) {
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, err
	}

	// One file per day; rotation beyond that is left to logrotate.
	filename := filepath.Join(logDir, "audit-"+time.Now().Format("2006-01-02")+".jsonl")
	f, err := os.OpenFile(filename, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}

	svc := &AuditService{
		logChan: make(chan *model.AuditEntry, 1000),
		logFile: f,
		buffer:  newAuditBuffer(1000),
		repo:    repo,
	}
	go svc.processEntries()
	return svc, nil
}

// Log enqueues one audit entry. When the buffer is full the entry is dropped
// rather than blocking the caller.
func (s *AuditService) Log(actorID *int64, action string, targetType *string, targetID *int64, details *string) {
	entry := &model.AuditEntry{
		ActorID:    actorID,
		Action:     action,
		TargetType: targetType,
		TargetID:   targetID,
		Details:    details,
		CreatedAt:  localtime.NowUTC(),
	}
	if s.buffer != nil {
		s.buffer.Add(entry)
	}
	select {
	case s.logChan <- entry:
	default:
		logger.Warn("audit buffer full, dropping entry", "action", action)
	}
}

// List reads from the database when one is wired, falling back to the
// in-memory ring so recent activity stays visible even without Postgres.
func (s *AuditService) List(ctx context.Context, action string, actorID *int64, limit int, from, to *time.Time) ([]*model.AuditEntry, error) {
	if s.repo != nil {
		records, err := s.repo.List(ctx, action, actorID, limit, from, to)
		if err == nil {
			return records, nil
		}
		logger.Warn("audit db read failed, serving from memory", "error", err)
	}
	if s.buffer == nil {
		return nil, nil
	}
	return s.buffer.List(action, actorID, limit), nil
}

func (s *AuditService) processEntries() {
	encoder := json.NewEncoder(s.logFile)
	for entry := range s.logChan {
		if s.repo != nil {
			if err := s.repo.Insert(context.Background(), entry); err != nil {
				logger.Error("failed to persist audit entry", "error", err, "action", entry.Action)
			}
		}
		if err := encoder.Encode(entry); err != nil {
			logger.Error("failed to append audit entry to file", "error", err)
		}
	}
}

func (s *AuditService) Close() {
	close(s.logChan)
	s.logFile.Close()
}

type auditBuffer struct {
	mu        sync.Mutex
	maxSize   int
	records   []*model.AuditEntry
	nextIndex int
}

func newAuditBuffer(maxSize int) *auditBuffer {
	if maxSize <= 0 {
		maxSize = 1000
	}
	return &auditBuffer{
		maxSize: maxSize,
		records: make([]*model.AuditEntry, 0, maxSize),
	}
}

func (b *auditBuffer) Add(entry *model.AuditEntry) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.records) < b.maxSize {
		b.records = append(b.records, entry)
		return
	}
	b.records[b.nextIndex] = entry
	b.nextIndex = (b.nextIndex + 1) % b.maxSize
}

func (b *auditBuffer) List(action string, actorID *int64, limit int) []*model.AuditEntry {
	b.mu.Lock()
	defer b.mu.Unlock()
	if limit <= 0 || limit > b.maxSize {
		limit = b.maxSize
	}
	results := make([]*model.AuditEntry, 0, limit)
	total := len(b.records)
	for i := 0; i < total; i++ {
		idx := (b.nextIndex + total - 1 - i) % total
		entry := b.records[idx]
		if entry == nil {
			continue
		}
		if action != "" && entry.Action != action {
			continue
		}
		if actorID != nil && (entry.ActorID == nil || *entry.ActorID != *actorID) {
			continue
		}
		results = append(results, entry)
		if len(results) >= limit {
			break
		}
	}
	return results
}
