package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivlev/scenereel/internal/model"
)

func seedProject(t *testing.T, m *Memory) *model.Project {
	t.Helper()
	p := &model.Project{ID: uuid.New(), Name: "demo", Status: model.ProjectDraft}
	scenes := []model.Scene{
		{ID: "s2", OrderIndex: 1, DurationMs: 1000},
		{ID: "s1", OrderIndex: 0, DurationMs: 1000},
	}
	require.NoError(t, m.CreateProject(context.Background(), p, scenes))
	return p
}

func TestMemoryProjects(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	p := seedProject(t, m)

	scenes, err := m.ListScenes(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, scenes, 2)
	assert.Equal(t, "s1", scenes[0].ID)
	assert.Equal(t, p.ID, scenes[0].ProjectID)

	assert.Error(t, m.CreateProject(ctx, p, nil))
	_, err = m.GetProject(ctx, uuid.New())
	assert.ErrorIs(t, err, model.ErrNotFound)
	_, err = m.ListScenes(ctx, uuid.New())
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestMemoryFinishRenderOnlyForActiveRender(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	p := seedProject(t, m)

	older, newer := uuid.New(), uuid.New()
	require.NoError(t, m.StartRender(ctx, p.ID, older))
	require.NoError(t, m.StartRender(ctx, p.ID, newer))

	ok, err := m.FinishRender(ctx, p.ID, older, model.ProjectFailed)
	require.NoError(t, err)
	assert.False(t, ok)
	got, _ := m.GetProject(ctx, p.ID)
	assert.Equal(t, model.ProjectRendering, got.Status)

	ok, err = m.FinishRender(ctx, p.ID, newer, model.ProjectCompleted)
	require.NoError(t, err)
	assert.True(t, ok)
	got, _ = m.GetProject(ctx, p.ID)
	assert.Equal(t, model.ProjectCompleted, got.Status)
}

func TestMemoryApplyResult(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	r := model.NewRender(uuid.New(), uuid.New(), []model.Format{model.FormatHorizontal, model.FormatSquare}, model.QualityStandard, model.RendererLambda, now)
	require.NoError(t, m.CreateRender(ctx, r))

	got, mr, err := m.ApplyResult(ctx, r.ID, model.FormatResult{Format: model.FormatSquare, Outcome: model.OutcomeSuccess, OutputURL: "s.mp4"}, now)
	require.NoError(t, err)
	assert.True(t, mr.URLSet)
	assert.Equal(t, 50, got.Progress)

	// Возвращается копия: её изменения не попадают в хранилище.
	got.OutputURLs[model.FormatHorizontal] = "tampered"
	stored, err := m.GetRender(ctx, r.ID)
	require.NoError(t, err)
	assert.NotContains(t, stored.OutputURLs, model.FormatHorizontal)

	_, _, err = m.ApplyResult(ctx, uuid.New(), model.FormatResult{}, now)
	assert.ErrorIs(t, err, model.ErrNotFound)

	require.NoError(t, m.SetRenderer(ctx, r.ID, model.RendererSimulated))
	stored, _ = m.GetRender(ctx, r.ID)
	assert.Equal(t, model.RendererSimulated, stored.Renderer)
}

func TestMemoryCorrelations(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	renderID := uuid.New()
	for _, c := range []model.Correlation{
		{ExternalID: "job-b", RenderID: renderID, Format: model.FormatVertical},
		{ExternalID: "job-a", RenderID: renderID, Format: model.FormatHorizontal},
		{ExternalID: "job-x", RenderID: uuid.New(), Format: model.FormatSquare},
	} {
		require.NoError(t, m.Put(ctx, c))
	}

	c, err := m.Get(ctx, "job-a")
	require.NoError(t, err)
	assert.Equal(t, model.FormatHorizontal, c.Format)

	list, err := m.ListByRender(ctx, renderID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "job-a", list[0].ExternalID)

	_, err = m.Get(ctx, "unknown")
	assert.ErrorIs(t, err, model.ErrNotFound)
}
