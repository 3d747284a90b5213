package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ivlev/scenereel/internal/model"
)

// Memory - потокобезопасное хранилище в памяти для CLI, тестов и dev-режима.
type Memory struct {
	mu           sync.Mutex
	projects     map[uuid.UUID]*model.Project
	scenes       map[uuid.UUID][]model.Scene
	renders      map[uuid.UUID]*model.Render
	correlations map[string]model.Correlation
	now          func() time.Time
}

var (
	_ ProjectRepository = (*Memory)(nil)
	_ RenderRepository  = (*Memory)(nil)
	_ CorrelationStore  = (*Memory)(nil)
)

func NewMemory() *Memory {
	return &Memory{
		projects:     map[uuid.UUID]*model.Project{},
		scenes:       map[uuid.UUID][]model.Scene{},
		renders:      map[uuid.UUID]*model.Render{},
		correlations: map[string]model.Correlation{},
		now:          time.Now,
	}
}

func (m *Memory) CreateProject(_ context.Context, p *model.Project, scenes []model.Scene) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.projects[p.ID]; ok {
		return fmt.Errorf("%w: project %s already exists", model.ErrInvalidInput, p.ID)
	}
	cp := *p
	m.projects[p.ID] = &cp
	sorted := model.SortScenes(scenes)
	for i := range sorted {
		sorted[i].ProjectID = p.ID
	}
	m.scenes[p.ID] = sorted
	return nil
}

func (m *Memory) GetProject(_ context.Context, id uuid.UUID) (*model.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.projects[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *Memory) ListScenes(_ context.Context, projectID uuid.UUID) ([]model.Scene, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.projects[projectID]; !ok {
		return nil, model.ErrNotFound
	}
	return model.SortScenes(m.scenes[projectID]), nil
}

func (m *Memory) StartRender(_ context.Context, projectID, renderID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.projects[projectID]
	if !ok {
		return model.ErrNotFound
	}
	id := renderID
	p.ActiveRenderID = &id
	p.Status = model.ProjectRendering
	p.UpdatedAt = m.now()
	return nil
}

func (m *Memory) FinishRender(_ context.Context, projectID, renderID uuid.UUID, status model.ProjectStatus) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.projects[projectID]
	if !ok {
		return false, model.ErrNotFound
	}
	if p.ActiveRenderID == nil || *p.ActiveRenderID != renderID {
		return false, nil
	}
	p.Status = status
	p.UpdatedAt = m.now()
	return true, nil
}

func (m *Memory) CreateRender(_ context.Context, r *model.Render) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.renders[r.ID]; ok {
		return fmt.Errorf("%w: render %s already exists", model.ErrInvalidInput, r.ID)
	}
	m.renders[r.ID] = r.Clone()
	return nil
}

func (m *Memory) GetRender(_ context.Context, id uuid.UUID) (*model.Render, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.renders[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	return r.Clone(), nil
}

func (m *Memory) ApplyResult(_ context.Context, id uuid.UUID, res model.FormatResult, now time.Time) (*model.Render, model.MergeResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.renders[id]
	if !ok {
		return nil, model.MergeResult{}, model.ErrNotFound
	}
	mr := r.Merge(res, now)
	return r.Clone(), mr, nil
}

func (m *Memory) SetRenderer(_ context.Context, id uuid.UUID, renderer model.Renderer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.renders[id]
	if !ok {
		return model.ErrNotFound
	}
	r.Renderer = renderer
	r.UpdatedAt = m.now()
	return nil
}

func (m *Memory) Put(_ context.Context, c model.Correlation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.correlations[c.ExternalID] = c
	return nil
}

func (m *Memory) Get(_ context.Context, externalID string) (model.Correlation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.correlations[externalID]
	if !ok {
		return model.Correlation{}, model.ErrNotFound
	}
	return c, nil
}

func (m *Memory) ListByRender(_ context.Context, renderID uuid.UUID) ([]model.Correlation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Correlation
	for _, c := range m.correlations {
		if c.RenderID == renderID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExternalID < out[j].ExternalID })
	return out, nil
}
