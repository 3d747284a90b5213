package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/ivlev/scenereel/internal/model"
)

// DBTX - общий интерфейс пула и транзакции.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

const (
	insertProjectQuery = `
        INSERT INTO projects (id, name, target_duration_ms, brand, status, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)`
	insertSceneQuery = `
        INSERT INTO scenes (project_id, id, order_index, headline, subtext, duration_ms, transition, asset, motion)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	getProjectQuery = `
        SELECT id, name, target_duration_ms, brand, status, active_render_id, created_at, updated_at
        FROM projects WHERE id = $1`
	listScenesQuery = `
        SELECT project_id, id, order_index, headline, subtext, duration_ms, transition, asset, motion
        FROM scenes WHERE project_id = $1 ORDER BY order_index`
	startRenderQuery = `
        UPDATE projects SET active_render_id = $2, status = 'rendering', updated_at = now()
        WHERE id = $1`
	finishRenderQuery = `
        UPDATE projects SET status = $3, updated_at = now()
        WHERE id = $1 AND active_render_id = $2`
	projectExistsQuery = `SELECT EXISTS (SELECT 1 FROM projects WHERE id = $1)`

	insertRenderQuery = `
        INSERT INTO renders (id, project_id, formats, quality, status, progress, format_errors, error_message, renderer, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, '{}'::jsonb, $7, $8, $9, $10)`
	renderColumns = `id, project_id, formats, quality, status, progress, video_url, video_url_vertical,
        video_url_square, format_errors, error_message, renderer, created_at, updated_at, completed_at`
	getRenderQuery          = `SELECT ` + renderColumns + ` FROM renders WHERE id = $1`
	getRenderForUpdateQuery = getRenderQuery + ` FOR UPDATE`
	setRendererQuery        = `UPDATE renders SET renderer = $2, updated_at = now() WHERE id = $1`
)

// urlColumns - колонка с URL для каждого формата.
var urlColumns = map[model.Format]string{
	model.FormatHorizontal: "video_url",
	model.FormatVertical:   "video_url_vertical",
	model.FormatSquare:     "video_url_square",
}

type Postgres struct {
	db     DBTX
	logger *zap.Logger
}

var (
	_ ProjectRepository = (*Postgres)(nil)
	_ RenderRepository  = (*Postgres)(nil)
)

func NewPostgres(db DBTX, logger *zap.Logger) *Postgres {
	return &Postgres{db: db, logger: logger.Named("PgStore")}
}

// NewPool открывает пул и проверяет соединение.
func NewPool(ctx context.Context, dsn string, maxConns int32) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return pool, nil
}

type projectRow struct {
	ID               uuid.UUID   `db:"id"`
	Name             string      `db:"name"`
	TargetDurationMs int         `db:"target_duration_ms"`
	Brand            model.Brand `db:"brand"`
	Status           string      `db:"status"`
	ActiveRenderID   *uuid.UUID  `db:"active_render_id"`
	CreatedAt        time.Time   `db:"created_at"`
	UpdatedAt        time.Time   `db:"updated_at"`
}

type sceneRow struct {
	ProjectID  uuid.UUID          `db:"project_id"`
	ID         string             `db:"id"`
	OrderIndex int                `db:"order_index"`
	Headline   string             `db:"headline"`
	Subtext    string             `db:"subtext"`
	DurationMs int                `db:"duration_ms"`
	Transition string             `db:"transition"`
	Asset      model.Asset        `db:"asset"`
	Motion     model.MotionConfig `db:"motion"`
}

type renderRow struct {
	ID               uuid.UUID         `db:"id"`
	ProjectID        uuid.UUID         `db:"project_id"`
	Formats          []string          `db:"formats"`
	Quality          string            `db:"quality"`
	Status           string            `db:"status"`
	Progress         int               `db:"progress"`
	VideoURL         *string           `db:"video_url"`
	VideoURLVertical *string           `db:"video_url_vertical"`
	VideoURLSquare   *string           `db:"video_url_square"`
	FormatErrors     map[string]string `db:"format_errors"`
	ErrorMessage     string            `db:"error_message"`
	Renderer         string            `db:"renderer"`
	CreatedAt        time.Time         `db:"created_at"`
	UpdatedAt        time.Time         `db:"updated_at"`
	CompletedAt      *time.Time        `db:"completed_at"`
}

func (r renderRow) toModel() *model.Render {
	out := &model.Render{
		ID:           r.ID,
		ProjectID:    r.ProjectID,
		Quality:      model.Quality(r.Quality),
		OutputURLs:   map[model.Format]string{},
		FormatErrors: map[model.Format]string{},
		Status:       model.RenderStatus(r.Status),
		Progress:     r.Progress,
		ErrorMessage: r.ErrorMessage,
		Renderer:     model.Renderer(r.Renderer),
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
		CompletedAt:  r.CompletedAt,
	}
	for _, f := range r.Formats {
		out.Formats = append(out.Formats, model.Format(f))
	}
	for f, v := range map[model.Format]*string{
		model.FormatHorizontal: r.VideoURL,
		model.FormatVertical:   r.VideoURLVertical,
		model.FormatSquare:     r.VideoURLSquare,
	} {
		if v != nil && *v != "" {
			out.OutputURLs[f] = *v
		}
	}
	for f, msg := range r.FormatErrors {
		out.FormatErrors[model.Format(f)] = msg
	}
	return out
}

func (s *Postgres) CreateProject(ctx context.Context, p *model.Project, scenes []model.Scene) error {
	log := s.logger.With(zap.String("project_id", p.ID.String()))
	err := pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, insertProjectQuery, p.ID, p.Name, p.TargetDurationMs, p.Brand, p.Status, p.CreatedAt, p.UpdatedAt); err != nil {
			return fmt.Errorf("insert project: %w", err)
		}
		for _, sc := range scenes {
			if _, err := tx.Exec(ctx, insertSceneQuery, p.ID, sc.ID, sc.OrderIndex, sc.Headline, sc.Subtext, sc.DurationMs, sc.Transition, sc.Asset, sc.Motion); err != nil {
				return fmt.Errorf("insert scene %s: %w", sc.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		log.Error("Failed to create project", zap.Error(err))
		return err
	}
	log.Info("Project created", zap.Int("scenes", len(scenes)))
	return nil
}

func (s *Postgres) GetProject(ctx context.Context, id uuid.UUID) (*model.Project, error) {
	var row projectRow
	if err := pgxscan.Get(ctx, s.db, &row, getProjectQuery, id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrNotFound
		}
		return nil, fmt.Errorf("get project %s: %w", id, err)
	}
	return &model.Project{
		ID:               row.ID,
		Name:             row.Name,
		TargetDurationMs: row.TargetDurationMs,
		Brand:            row.Brand,
		Status:           model.ProjectStatus(row.Status),
		ActiveRenderID:   row.ActiveRenderID,
		CreatedAt:        row.CreatedAt,
		UpdatedAt:        row.UpdatedAt,
	}, nil
}

func (s *Postgres) ListScenes(ctx context.Context, projectID uuid.UUID) ([]model.Scene, error) {
	var exists bool
	if err := s.db.QueryRow(ctx, projectExistsQuery, projectID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("check project %s: %w", projectID, err)
	}
	if !exists {
		return nil, model.ErrNotFound
	}
	var rows []sceneRow
	if err := pgxscan.Select(ctx, s.db, &rows, listScenesQuery, projectID); err != nil {
		return nil, fmt.Errorf("list scenes of %s: %w", projectID, err)
	}
	out := make([]model.Scene, len(rows))
	for i, r := range rows {
		out[i] = model.Scene{
			ID:         r.ID,
			ProjectID:  r.ProjectID,
			OrderIndex: r.OrderIndex,
			Headline:   r.Headline,
			Subtext:    r.Subtext,
			DurationMs: r.DurationMs,
			Transition: r.Transition,
			Asset:      r.Asset,
			Motion:     r.Motion,
		}
	}
	return out, nil
}

func (s *Postgres) StartRender(ctx context.Context, projectID, renderID uuid.UUID) error {
	tag, err := s.db.Exec(ctx, startRenderQuery, projectID, renderID)
	if err != nil {
		return fmt.Errorf("start render for %s: %w", projectID, err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}

func (s *Postgres) FinishRender(ctx context.Context, projectID, renderID uuid.UUID, status model.ProjectStatus) (bool, error) {
	tag, err := s.db.Exec(ctx, finishRenderQuery, projectID, renderID, status)
	if err != nil {
		return false, fmt.Errorf("finish render for %s: %w", projectID, err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *Postgres) CreateRender(ctx context.Context, r *model.Render) error {
	formats := make([]string, len(r.Formats))
	for i, f := range r.Formats {
		formats[i] = string(f)
	}
	_, err := s.db.Exec(ctx, insertRenderQuery,
		r.ID, r.ProjectID, formats, r.Quality, r.Status, r.Progress, r.ErrorMessage, r.Renderer, r.CreatedAt, r.UpdatedAt)
	if err != nil {
		s.logger.Error("Failed to create render", zap.String("render_id", r.ID.String()), zap.Error(err))
		return fmt.Errorf("insert render: %w", err)
	}
	return nil
}

func (s *Postgres) GetRender(ctx context.Context, id uuid.UUID) (*model.Render, error) {
	return getRender(ctx, s.db, getRenderQuery, id)
}

func getRender(ctx context.Context, q pgxscan.Querier, query string, id uuid.UUID) (*model.Render, error) {
	var row renderRow
	if err := pgxscan.Get(ctx, q, &row, query, id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrNotFound
		}
		return nil, fmt.Errorf("get render %s: %w", id, err)
	}
	return row.toModel(), nil
}

// ApplyResult блокирует строку рендера, применяет Merge и обновляет только
// колонки этого формата плюс производные поля. URL пишется через COALESCE,
// поэтому уже записанный URL не перезаписывается даже при гонке.
func (s *Postgres) ApplyResult(ctx context.Context, id uuid.UUID, res model.FormatResult, now time.Time) (*model.Render, model.MergeResult, error) {
	var (
		out *model.Render
		mr  model.MergeResult
	)
	err := pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		r, err := getRender(ctx, tx, getRenderForUpdateQuery, id)
		if err != nil {
			return err
		}
		mr = r.Merge(res, now)
		out = r
		if !mr.Changed {
			return nil
		}

		set := []string{"status = $2", "progress = $3", "error_message = $4", "updated_at = $5", "completed_at = $6"}
		args := []any{id, r.Status, r.Progress, r.ErrorMessage, r.UpdatedAt, r.CompletedAt}
		if mr.URLSet {
			col, ok := urlColumns[res.Format]
			if !ok {
				return fmt.Errorf("%w: no url column for format %s", model.ErrInvalidInput, res.Format)
			}
			args = append(args, r.OutputURLs[res.Format])
			set = append(set, fmt.Sprintf("%s = COALESCE(%s, $%d)", col, col, len(args)))
		}
		if mr.ErrorSet {
			args = append(args, string(res.Format), r.FormatErrors[res.Format])
			set = append(set, fmt.Sprintf("format_errors = format_errors || jsonb_build_object($%d::text, $%d::text)", len(args)-1, len(args)))
		}
		query := "UPDATE renders SET " + strings.Join(set, ", ") + " WHERE id = $1"
		if _, err := tx.Exec(ctx, query, args...); err != nil {
			return fmt.Errorf("update render %s: %w", id, err)
		}
		return nil
	})
	if err != nil {
		if !errors.Is(err, model.ErrNotFound) {
			s.logger.Error("Failed to apply render result",
				zap.String("render_id", id.String()),
				zap.String("format", string(res.Format)),
				zap.Error(err),
			)
		}
		return nil, model.MergeResult{}, err
	}
	return out, mr, nil
}

func (s *Postgres) SetRenderer(ctx context.Context, id uuid.UUID, renderer model.Renderer) error {
	tag, err := s.db.Exec(ctx, setRendererQuery, id, renderer)
	if err != nil {
		return fmt.Errorf("set renderer for %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}
