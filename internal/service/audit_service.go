package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/uni-portal/internal/models"
	appErrors "github.com/noah-isme/uni-portal/pkg/errors"
	"github.com/noah-isme/uni-portal/pkg/jobs"
)

const auditJobType = "audit.write"

type auditRepository interface {
	Create(ctx context.Context, log *models.AuditLog) error
	List(ctx context.Context, filter models.AuditFilter) ([]models.AuditLog, int, error)
}

// AuditEntry describes one auditable action.
type AuditEntry struct {
	UserID     string
	Action     string
	Resource   string
	ResourceID string
	Details    interface{}
}

type requestMetaKey struct{}

// RequestMeta carries caller network details for the audit trail.
type RequestMeta struct {
	IP        string
	UserAgent string
}

// WithRequestMeta attaches caller details to ctx.
func WithRequestMeta(ctx context.Context, meta RequestMeta) context.Context {
	return context.WithValue(ctx, requestMetaKey{}, meta)
}

// RequestMetaFrom returns the caller details stored by WithRequestMeta.
func RequestMetaFrom(ctx context.Context) RequestMeta {
	meta, _ := ctx.Value(requestMetaKey{}).(RequestMeta)
	return meta
}

// AuditConfig tunes the audit worker pool.
type AuditConfig struct {
	Enabled    bool
	Workers    int
	Retries    int
	RetryDelay time.Duration
}

// AuditService records audit entries asynchronously through a job queue.
type AuditService struct {
	repo    auditRepository
	queue   *jobs.Queue
	enabled bool
	logger  *zap.Logger
	now     func() time.Time
}

// NewAuditService constructs the service and its worker queue.
func NewAuditService(repo auditRepository, cfg AuditConfig, logger *zap.Logger) *AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &AuditService{
		repo:    repo,
		enabled: cfg.Enabled && repo != nil,
		logger:  logger,
		now:     time.Now,
	}
	if s.enabled {
		s.queue = jobs.NewQueue("audit", s.handle, jobs.QueueConfig{
			Workers:    cfg.Workers,
			BufferSize: cfg.Workers * 64,
			MaxRetries: cfg.Retries,
			RetryDelay: cfg.RetryDelay,
			Logger:     logger,
		})
	}
	return s
}

// Start launches the audit workers.
func (s *AuditService) Start(ctx context.Context) {
	if s == nil || s.queue == nil {
		return
	}
	s.queue.Start(ctx)
}

// Stop drains the workers.
func (s *AuditService) Stop() {
	if s == nil || s.queue == nil {
		return
	}
	s.queue.Stop()
}

// Record enqueues an entry. Failures are logged and never surface to the caller.
func (s *AuditService) Record(ctx context.Context, entry AuditEntry) {
	if s == nil || !s.enabled {
		return
	}
	log, err := s.buildLog(ctx, entry)
	if err != nil {
		s.logger.Warn("failed to build audit log", zap.String("action", entry.Action), zap.Error(err))
		return
	}
	if err := s.queue.Enqueue(jobs.Job{ID: log.ID, Type: auditJobType, Payload: log}); err != nil {
		s.logger.Warn("failed to enqueue audit log", zap.String("action", entry.Action), zap.Error(err))
	}
}

// List returns a page of audit entries.
func (s *AuditService) List(ctx context.Context, filter models.AuditFilter) ([]models.AuditLog, *models.Pagination, error) {
	if s == nil || s.repo == nil {
		return []models.AuditLog{}, &models.Pagination{Page: 1}, nil
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 || filter.PageSize > 200 {
		filter.PageSize = 50
	}
	logs, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list audit logs")
	}
	if logs == nil {
		logs = []models.AuditLog{}
	}
	return logs, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

func (s *AuditService) buildLog(ctx context.Context, entry AuditEntry) (*models.AuditLog, error) {
	meta := RequestMetaFrom(ctx)
	log := &models.AuditLog{
		ID:        uuid.NewString(),
		Action:    entry.Action,
		Resource:  entry.Resource,
		IPAddress: meta.IP,
		UserAgent: meta.UserAgent,
		CreatedAt: s.now().UTC(),
	}
	if entry.UserID != "" {
		userID := entry.UserID
		log.UserID = &userID
	}
	if entry.ResourceID != "" {
		resourceID := entry.ResourceID
		log.ResourceID = &resourceID
	}
	if entry.Details != nil {
		raw, err := json.Marshal(entry.Details)
		if err != nil {
			return nil, err
		}
		log.Details = raw
	}
	return log, nil
}

func (s *AuditService) handle(ctx context.Context, job jobs.Job) error {
	log, ok := job.Payload.(*models.AuditLog)
	if !ok {
		return fmt.Errorf("unexpected audit payload %T", job.Payload)
	}
	return s.repo.Create(ctx, log)
}
