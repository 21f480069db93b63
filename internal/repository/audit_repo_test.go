package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/campusflow/procurement/internal/domain/entity"
)

func seedAuditTrail(t *testing.T, repo *AuditLogRepository) time.Time {
	t.Helper()
	ctx := context.Background()
	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	entries := []*entity.AuditLog{
		{
			ID: "a-1", Timestamp: base, Action: entity.AuditRequestCreated,
			Severity: entity.SeverityInfo, UserID: "fac-1", UserRole: "faculty",
			RequestID: "req-1", Metadata: map[string]string{"title": "Lab equipment"},
		},
		{
			ID: "a-2", Timestamp: base.Add(time.Minute), Action: entity.AuditApprovalGranted,
			Severity: entity.SeverityInfo, UserID: "hod-1", UserRole: "hod",
			RequestID: "req-1",
		},
		{
			ID: "a-3", Timestamp: base.Add(2 * time.Minute), Action: entity.AuditApprovalReturned,
			Severity: entity.SeverityInfo, UserID: "so-1", UserRole: "so",
			RequestID: "req-1", Metadata: map[string]string{"comment": "quotation missing"},
		},
		{
			ID: "a-4", Timestamp: base.Add(3 * time.Minute), Action: entity.AuditRequestDeleted,
			Severity: entity.SeverityWarning, UserID: "adm-1", UserRole: "admin",
			RequestID: "req-2",
		},
	}
	for _, e := range entries {
		require.NoError(t, repo.Record(ctx, e))
	}
	return base
}

func TestAuditLogRepository_List(t *testing.T) {
	db := newTestDB(t)
	repo := NewAuditLogRepository(db.DB, zap.NewNop())
	ctx := context.Background()
	base := seedAuditTrail(t, repo)

	all, err := repo.List(ctx, entity.AuditFilter{})
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, "a-4", all[0].ID, "newest first")

	byUser, err := repo.List(ctx, entity.AuditFilter{UserID: "hod-1"})
	require.NoError(t, err)
	require.Len(t, byUser, 1)
	assert.Equal(t, entity.AuditApprovalGranted, byUser[0].Action)

	byRequest, err := repo.List(ctx, entity.AuditFilter{RequestID: "req-1"})
	require.NoError(t, err)
	assert.Len(t, byRequest, 3)

	byAction, err := repo.List(ctx, entity.AuditFilter{
		Actions: []entity.AuditAction{entity.AuditApprovalGranted, entity.AuditApprovalReturned},
	})
	require.NoError(t, err)
	assert.Len(t, byAction, 2)

	bySeverity, err := repo.List(ctx, entity.AuditFilter{
		Severities: []entity.AuditSeverity{entity.SeverityWarning},
	})
	require.NoError(t, err)
	require.Len(t, bySeverity, 1)
	assert.Equal(t, "a-4", bySeverity[0].ID)

	since := base.Add(90 * time.Second)
	windowed, err := repo.List(ctx, entity.AuditFilter{Since: &since})
	require.NoError(t, err)
	assert.Len(t, windowed, 2)

	limited, err := repo.List(ctx, entity.AuditFilter{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestAuditLogRepository_MetadataRoundTrip(t *testing.T) {
	db := newTestDB(t)
	repo := NewAuditLogRepository(db.DB, zap.NewNop())
	ctx := context.Background()
	seedAuditTrail(t, repo)

	got, err := repo.List(ctx, entity.AuditFilter{UserID: "so-1"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "quotation missing", got[0].Metadata["comment"])
}

func TestAuditLogRepository_Summary(t *testing.T) {
	db := newTestDB(t)
	repo := NewAuditLogRepository(db.DB, zap.NewNop())
	ctx := context.Background()
	base := seedAuditTrail(t, repo)

	// Push fac-1 past the recent-actions window
	for i := 0; i < 12; i++ {
		require.NoError(t, repo.Record(ctx, &entity.AuditLog{
			ID:        fmt.Sprintf("extra-%d", i),
			Timestamp: base.Add(time.Duration(i+10) * time.Minute),
			Action:    entity.AuditCommentAdded,
			Severity:  entity.SeverityInfo,
			UserID:    "fac-1",
			UserRole:  "faculty",
			RequestID: "req-1",
		}))
	}

	summary, err := repo.Summary(ctx, "fac-1")
	require.NoError(t, err)
	assert.Equal(t, "fac-1", summary.UserID)
	assert.Equal(t, 13, summary.TotalActions)
	assert.Len(t, summary.RecentActions, summaryActionLimit)
}
