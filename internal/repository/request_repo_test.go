package repository

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/campusflow/procurement/internal/application/port"
	"github.com/campusflow/procurement/internal/domain/entity"
	"github.com/campusflow/procurement/internal/domain/workflow"
	"github.com/campusflow/procurement/pkg/database"
)

func newTestDB(t *testing.T) *database.DB {
	t.Helper()

	db, err := database.New(database.Config{
		Path:         filepath.Join(t.TempDir(), "test.db"),
		MaxOpenConns: 1,
	}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	migrator := database.NewMigrator(db, zap.NewNop())
	require.NoError(t, migrator.RunMigrations(context.Background(), "../../migrations"))

	return db
}

func sampleRequest(id string, ts time.Time) *entity.ProcurementRequest {
	req := &entity.ProcurementRequest{
		ID:            id,
		Title:         "Lab equipment",
		Department:    "Chemistry",
		Course:        entity.CourseUG,
		Category:      "Equipment",
		OrderType:     entity.OrderTypeAbove25K,
		Description:   "Replacement microscopes",
		Justification: "Current units beyond repair",
		CurrentStep:   workflow.StepHOD1,
		CreatedBy:     "fac-1",
		CreatedByRole: workflow.RoleFaculty,
		CreatedAt:     ts,
		UpdatedAt:     ts,
	}
	req.SetItems([]entity.RequestItem{
		{ID: id + "-item-1", ItemName: "Microscope", Quantity: 2, ApproxAmount: 45000},
		{ID: id + "-item-2", ItemName: "Slides", Quantity: 100, ApproxAmount: 2000},
	})
	return req
}

func TestRequestRepository_CreateAndGet(t *testing.T) {
	db := newTestDB(t)
	repo := NewRequestRepository(db.DB, zap.NewNop())
	ctx := context.Background()

	ts := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	req := sampleRequest("req-1", ts)
	require.NoError(t, repo.Create(ctx, req))

	got, err := repo.GetByID(ctx, "req-1")
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, "Lab equipment", got.Title)
	assert.Equal(t, entity.CourseUG, got.Course)
	assert.Equal(t, entity.OrderTypeAbove25K, got.OrderType)
	assert.Equal(t, workflow.StepHOD1, got.CurrentStep)
	assert.Equal(t, 47000.0, got.TotalAmount)

	require.Len(t, got.Items, 2)
	assert.Equal(t, "Microscope", got.Items[0].ItemName, "items keep their submission order")
	assert.Equal(t, "Slides", got.Items[1].ItemName)
}

func TestRequestRepository_GetMissing(t *testing.T) {
	db := newTestDB(t)
	repo := NewRequestRepository(db.DB, zap.NewNop())

	got, err := repo.GetByID(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRequestRepository_SetStep_Conflict(t *testing.T) {
	db := newTestDB(t)
	repo := NewRequestRepository(db.DB, zap.NewNop())
	ctx := context.Background()

	ts := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	require.NoError(t, repo.Create(ctx, sampleRequest("req-1", ts)))

	// First writer wins
	t1 := ts.Add(time.Minute)
	require.NoError(t, repo.SetStep(ctx, "req-1", workflow.StepSO1, t1, ts))

	// Second writer still holds the stale token
	err := repo.SetStep(ctx, "req-1", workflow.StepFaculty, ts.Add(2*time.Minute), ts)
	require.Error(t, err)
	assert.True(t, errors.Is(err, workflow.ErrConflict))

	got, err := repo.GetByID(ctx, "req-1")
	require.NoError(t, err)
	assert.Equal(t, workflow.StepSO1, got.CurrentStep, "losing write must not change the step")

	// Retrying with the fresh token succeeds
	require.NoError(t, repo.SetStep(ctx, "req-1", workflow.StepPO1, ts.Add(3*time.Minute), t1))
}

func TestRequestRepository_Touch_Conflict(t *testing.T) {
	db := newTestDB(t)
	repo := NewRequestRepository(db.DB, zap.NewNop())
	ctx := context.Background()

	ts := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	require.NoError(t, repo.Create(ctx, sampleRequest("req-1", ts)))

	require.NoError(t, repo.Touch(ctx, "req-1", ts.Add(time.Minute), ts))

	err := repo.Touch(ctx, "req-1", ts.Add(2*time.Minute), ts)
	assert.True(t, errors.Is(err, workflow.ErrConflict))
}

func TestRequestRepository_History(t *testing.T) {
	db := newTestDB(t)
	repo := NewRequestRepository(db.DB, zap.NewNop())
	ctx := context.Background()

	ts := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	require.NoError(t, repo.Create(ctx, sampleRequest("req-1", ts)))

	sig := &entity.Signature{ID: "sig-1", Kind: entity.SignatureDraw, Data: "ink", UserID: "hod-1"}
	require.NoError(t, repo.AppendAction(ctx, "req-1", &entity.WorkflowAction{
		Step:      workflow.StepHOD1,
		UserID:    "hod-1",
		UserName:  "Dr. Rao",
		UserRole:  workflow.RoleHOD,
		Action:    entity.ActionApprove,
		Comment:   "ok",
		Signature: sig,
		Timestamp: ts.Add(time.Minute),
	}))
	require.NoError(t, repo.AppendAction(ctx, "req-1", &entity.WorkflowAction{
		Step:      workflow.StepSO1,
		UserID:    "so-1",
		UserName:  "Mr. Shah",
		UserRole:  workflow.RoleSO,
		Action:    entity.ActionReturn,
		Comment:   "quotation missing",
		Timestamp: ts.Add(2 * time.Minute),
	}))

	require.NoError(t, repo.AppendComment(ctx, "req-1", &entity.Comment{
		ID:        "c-1",
		UserID:    "so-1",
		UserName:  "Mr. Shah",
		UserRole:  workflow.RoleSO,
		Text:      "quotation missing",
		Action:    entity.ActionReturn,
		Step:      workflow.StepSO1,
		Timestamp: ts.Add(2 * time.Minute),
	}))

	uploadedAt := ts.Add(3 * time.Minute)
	require.NoError(t, repo.AppendDocuments(ctx, "req-1", []entity.RequestDocument{
		{
			ID:             "doc-1",
			Name:           "quotation.pdf",
			SizeBytes:      20480,
			MimeType:       "application/pdf",
			ContentRef:     "blobs/doc-1",
			UploadedBy:     "fac-1",
			UploadedAt:     &uploadedAt,
			UploadedAtStep: workflow.StepHOD1,
		},
	}))

	got, err := repo.GetByID(ctx, "req-1")
	require.NoError(t, err)

	require.Len(t, got.WorkflowHistory, 2, "history is append-only, one entry per transition")
	assert.Equal(t, entity.ActionApprove, got.WorkflowHistory[0].Action)
	require.NotNil(t, got.WorkflowHistory[0].Signature)
	assert.Equal(t, "sig-1", got.WorkflowHistory[0].Signature.ID)
	assert.Equal(t, entity.ActionReturn, got.WorkflowHistory[1].Action)
	assert.Nil(t, got.WorkflowHistory[1].Signature)

	require.Len(t, got.Comments, 1)
	assert.Equal(t, entity.ActionReturn, got.Comments[0].Action)

	require.Len(t, got.Documents, 1)
	assert.Equal(t, "quotation.pdf", got.Documents[0].Name)
	assert.Equal(t, "fac-1", got.Documents[0].UploadedBy)
	assert.Equal(t, workflow.StepHOD1, got.Documents[0].UploadedAtStep)
	require.NotNil(t, got.Documents[0].UploadedAt)
}

func TestRequestRepository_ListAndCount(t *testing.T) {
	db := newTestDB(t)
	repo := NewRequestRepository(db.DB, zap.NewNop())
	ctx := context.Background()

	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	r1 := sampleRequest("req-1", base)
	r2 := sampleRequest("req-2", base.Add(time.Hour))
	r2.Department = "Physics"
	r3 := sampleRequest("req-3", base.Add(2*time.Hour))
	r3.CurrentStep = workflow.StepSO1
	for _, req := range []*entity.ProcurementRequest{r1, r2, r3} {
		require.NoError(t, repo.Create(ctx, req))
	}

	all, err := repo.List(ctx, port.RequestFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "req-3", all[0].ID, "newest first")

	chem, err := repo.List(ctx, port.RequestFilter{Department: "Chemistry"})
	require.NoError(t, err)
	assert.Len(t, chem, 2)

	atSO, err := repo.ListByStep(ctx, workflow.StepSO1)
	require.NoError(t, err)
	require.Len(t, atSO, 1)
	assert.Equal(t, "req-3", atSO[0].ID)

	since := base.Add(30 * time.Minute)
	recent, err := repo.List(ctx, port.RequestFilter{Since: &since})
	require.NoError(t, err)
	assert.Len(t, recent, 2)

	counts, err := repo.CountByStep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, counts[workflow.StepHOD1])
	assert.Equal(t, 1, counts[workflow.StepSO1])
}

func TestRequestRepository_DeleteCascades(t *testing.T) {
	db := newTestDB(t)
	repo := NewRequestRepository(db.DB, zap.NewNop())
	ctx := context.Background()

	ts := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	require.NoError(t, repo.Create(ctx, sampleRequest("req-1", ts)))
	require.NoError(t, repo.AppendComment(ctx, "req-1", &entity.Comment{
		ID: "c-1", UserID: "fac-1", Text: "note", Timestamp: ts,
	}))

	require.NoError(t, repo.Delete(ctx, "req-1"))

	got, err := repo.GetByID(ctx, "req-1")
	require.NoError(t, err)
	assert.Nil(t, got)

	var n int
	require.NoError(t, db.DB.QueryRow(
		`SELECT COUNT(*) FROM request_comments WHERE request_id = ?`, "req-1").Scan(&n))
	assert.Zero(t, n, "child rows cascade on delete")
}

func TestRequestRepository_TransactionRollback(t *testing.T) {
	db := newTestDB(t)
	repo := NewRequestRepository(db.DB, zap.NewNop())
	ctx := context.Background()

	ts := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	require.NoError(t, repo.Create(ctx, sampleRequest("req-1", ts)))

	boom := errors.New("boom")
	err := db.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := repo.SetStep(txCtx, "req-1", workflow.StepSO1, ts.Add(time.Minute), ts); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := repo.GetByID(ctx, "req-1")
	require.NoError(t, err)
	assert.Equal(t, workflow.StepHOD1, got.CurrentStep, "rolled-back step change must not persist")
}
