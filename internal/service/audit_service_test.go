package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/agency-case-api/internal/dto"
	"github.com/noah-isme/agency-case-api/internal/models"
	appErrors "github.com/noah-isme/agency-case-api/pkg/errors"
)

func TestWriteAuditRecordsTargetAndValues(t *testing.T) {
	db := newMemDB()
	err := writeAudit(context.Background(), db.store(), auditEntry{
		Actor:   adminActor,
		Action:  models.AuditActionCaseAssign,
		Table:   models.AuditTargetCases,
		ID:      "case-1",
		Details: "assigned to lawyer-2",
		New:     map[string]string{"assigned_lawyer_id": "lawyer-2"},
	})
	require.NoError(t, err)

	db.put(func(s *memState) {
		require.Len(t, s.audit, 1)
		entry := s.audit[0]
		assert.Equal(t, adminActor.ID, entry.ActorID)
		assert.Equal(t, models.AuditTargetCases, *entry.TargetTable)
		assert.Equal(t, "case-1", *entry.TargetID)
		assert.Nil(t, entry.OldValues)
		assert.JSONEq(t, `{"assigned_lawyer_id":"lawyer-2"}`, string(entry.NewValues))
	})
}

func TestWriteAuditReportsUnencodableValues(t *testing.T) {
	db := newMemDB()
	err := writeAudit(context.Background(), db.store(), auditEntry{
		Actor:  adminActor,
		Action: models.AuditActionCaseDelete,
		Old:    map[string]interface{}{"bad": make(chan int)},
	})
	require.True(t, errors.Is(err, appErrors.ErrAuditWriteFailure))
	assert.Empty(t, db.auditActions())
}

func TestAuditListFiltersByTarget(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedCase(models.Case{ID: "case-1", Status: models.CaseStatusNew})
	f.seedCase(models.Case{ID: "case-2", Status: models.CaseStatusNew})
	_, err := f.cases.Advance(ctx, "case-1", lawyerActor)
	require.NoError(t, err)
	_, err = f.cases.Advance(ctx, "case-2", lawyerActor)
	require.NoError(t, err)
	_, err = f.cases.Assign(ctx, "case-1", dto.AssignCaseRequest{LawyerID: "lawyer-1"}, adminActor)
	require.NoError(t, err)

	svc := NewAuditService(f.db.store())
	logs, page, err := svc.List(ctx, models.AuditFilter{TargetID: "case-1"})
	require.NoError(t, err)
	assert.Equal(t, 2, page.TotalCount)
	require.Len(t, logs, 2)
	assert.Equal(t, models.AuditActionCaseStatusChange, logs[0].Action)
	assert.Equal(t, models.AuditActionCaseAssign, logs[1].Action)

	logs, _, err = svc.List(ctx, models.AuditFilter{ActorID: adminActor.ID})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, models.AuditActionCaseAssign, logs[0].Action)
}
