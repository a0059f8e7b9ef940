package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/noah-isme/agency-case-api/internal/models"
	appErrors "github.com/noah-isme/agency-case-api/pkg/errors"
)

// auditEntry describes one privileged mutation.
type auditEntry struct {
	Actor   models.Actor
	Action  string
	Table   string
	ID      string
	Details string
	Old     interface{}
	New     interface{}
}

// writeAudit appends entry through the store of the current unit of work.
// Any failure is reported as AUDIT_WRITE_FAILURE so the caller rolls back.
func writeAudit(ctx context.Context, store Store, entry auditEntry) error {
	log := &models.AuditLog{
		ActorID: entry.Actor.ID,
		Action:  entry.Action,
		Details: entry.Details,
	}
	if entry.Table != "" {
		log.TargetTable = &entry.Table
	}
	if entry.ID != "" {
		log.TargetID = &entry.ID
	}
	var err error
	if log.OldValues, err = marshalAuditValues(entry.Old); err != nil {
		return auditFailure(err)
	}
	if log.NewValues, err = marshalAuditValues(entry.New); err != nil {
		return auditFailure(err)
	}
	if err := store.Audit.Create(ctx, log); err != nil {
		return auditFailure(err)
	}
	return nil
}

func marshalAuditValues(v interface{}) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal audit values: %w", err)
	}
	return raw, nil
}

func auditFailure(err error) error {
	return appErrors.Wrap(err, appErrors.ErrAuditWriteFailure.Code, appErrors.ErrAuditWriteFailure.Status, appErrors.ErrAuditWriteFailure.Message)
}

// AuditService exposes read access to the audit trail. Entries are only
// ever written by the mutating services.
type AuditService struct {
	store Store
}

// NewAuditService constructs the service.
func NewAuditService(store Store) *AuditService {
	return &AuditService{store: store}
}

// List returns audit entries matching filter.
func (s *AuditService) List(ctx context.Context, filter models.AuditFilter) ([]models.AuditLog, *models.Pagination, error) {
	logs, total, err := s.store.Audit.List(ctx, filter)
	if err != nil {
		return nil, nil, translateStoreError(err, "audit logs not found")
	}
	return logs, pagination(filter.Page, filter.PageSize, total), nil
}

func pagination(page, pageSize, total int) *models.Pagination {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	return &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}
}
