package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/ivlev/scenereel/internal/compositor"
	"github.com/ivlev/scenereel/internal/director"
	"github.com/ivlev/scenereel/internal/dispatch"
	"github.com/ivlev/scenereel/internal/model"
	"github.com/ivlev/scenereel/internal/notify"
	"github.com/ivlev/scenereel/internal/store"
)

const defaultMaxBody = 8 << 20

// Dispatcher запускает рендер проекта.
type Dispatcher interface {
	Dispatch(ctx context.Context, req dispatch.Request) (*model.Render, error)
}

type Config struct {
	FPS              int
	TransitionWindow int
	Features         compositor.Features
	MaxBodyBytes     int64
}

type Handler struct {
	projects      store.ProjectRepository
	renders       store.RenderRepository
	dispatcher    Dispatcher
	notifications notify.Handler
	verifier      *notify.Verifier
	cfg           Config
	logger        *zap.Logger
	now           func() time.Time
}

func NewHandler(
	cfg Config,
	projects store.ProjectRepository,
	renders store.RenderRepository,
	dispatcher Dispatcher,
	notifications notify.Handler,
	verifier *notify.Verifier,
	logger *zap.Logger,
) *Handler {
	if cfg.FPS <= 0 {
		cfg.FPS = compositor.DefaultFPS
	}
	if cfg.TransitionWindow <= 0 {
		cfg.TransitionWindow = compositor.DefaultTransitionWindow
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxBody
	}
	return &Handler{
		projects:      projects,
		renders:       renders,
		dispatcher:    dispatcher,
		notifications: notifications,
		verifier:      verifier,
		cfg:           cfg,
		logger:        logger.Named("APIHandler"),
		now:           time.Now,
	}
}

func (h *Handler) RegisterRoutes(router gin.IRouter) {
	api := router.Group("/api")
	api.POST("/projects/import", h.importProject)
	api.GET("/projects/:projectId", h.getProject)
	api.GET("/projects/:projectId/storyboard", h.exportStoryboard)
	api.GET("/projects/:projectId/preview", h.previewFrame)
	api.POST("/projects/:projectId/renders", h.createRender)
	api.GET("/renders/:renderId", h.getRender)
	api.POST("/webhooks/render", h.renderWebhook)
}

type projectResponse struct {
	Project *model.Project `json:"project"`
	Scenes  []model.Scene  `json:"scenes"`
}

// importProject принимает сториборд в JSON или YAML.
func (h *Handler) importProject(c *gin.Context) {
	format := "json"
	if mt, _, err := mime.ParseMediaType(c.ContentType()); err == nil {
		switch mt {
		case "application/yaml", "application/x-yaml", "text/yaml", "text/x-yaml":
			format = "yaml"
		}
	}

	body := http.MaxBytesReader(c.Writer, c.Request.Body, h.cfg.MaxBodyBytes)
	sb, err := director.Decode(body, format)
	if err != nil {
		handleError(c, err)
		return
	}
	if err := director.Validate(sb); err != nil {
		handleError(c, err)
		return
	}

	p, scenes := director.Normalize(sb).ToProject(uuid.New(), h.now().UTC())
	if err := h.projects.CreateProject(c.Request.Context(), &p, scenes); err != nil {
		handleError(c, fmt.Errorf("create project: %w", err))
		return
	}
	h.logger.Info("Project imported",
		zap.String("project_id", p.ID.String()),
		zap.Int("scenes", len(scenes)),
	)
	c.JSON(http.StatusCreated, projectResponse{Project: &p, Scenes: scenes})
}

func (h *Handler) loadProject(c *gin.Context) (*model.Project, []model.Scene, bool) {
	id, err := uuid.Parse(c.Param("projectId"))
	if err != nil {
		handleError(c, fmt.Errorf("%w: project id %q", model.ErrInvalidInput, c.Param("projectId")))
		return nil, nil, false
	}
	ctx := c.Request.Context()
	p, err := h.projects.GetProject(ctx, id)
	if err != nil {
		handleError(c, err)
		return nil, nil, false
	}
	scenes, err := h.projects.ListScenes(ctx, id)
	if err != nil {
		handleError(c, err)
		return nil, nil, false
	}
	return p, scenes, true
}

func (h *Handler) getProject(c *gin.Context) {
	p, scenes, ok := h.loadProject(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, projectResponse{Project: p, Scenes: scenes})
}

// exportStoryboard отдаёт проект в виде YAML-сториборда.
func (h *Handler) exportStoryboard(c *gin.Context) {
	p, scenes, ok := h.loadProject(c)
	if !ok {
		return
	}
	data, err := yaml.Marshal(director.FromProject(*p, scenes))
	if err != nil {
		handleError(c, err)
		return
	}
	c.Data(http.StatusOK, "application/yaml", data)
}

// previewFrame возвращает описание одного кадра без растеризации.
func (h *Handler) previewFrame(c *gin.Context) {
	format := model.Format(c.DefaultQuery("format", string(model.FormatHorizontal)))
	if !format.Valid() {
		handleError(c, fmt.Errorf("%w: unknown format %q", model.ErrInvalidInput, format))
		return
	}
	frame, err := strconv.Atoi(c.DefaultQuery("frame", "0"))
	if err != nil {
		handleError(c, fmt.Errorf("%w: frame must be an integer", model.ErrInvalidInput))
		return
	}

	p, scenes, ok := h.loadProject(c)
	if !ok {
		return
	}
	w, ht := format.Dimensions()
	comp, err := compositor.New(scenes, p.Brand, compositor.Options{
		FPS:              h.cfg.FPS,
		Width:            w,
		Height:           ht,
		TransitionWindow: h.cfg.TransitionWindow,
		Features:         h.cfg.Features,
	})
	if err != nil {
		handleError(c, err)
		return
	}
	if frame < 0 || frame >= comp.TotalFrames() {
		handleError(c, fmt.Errorf("%w: frame %d outside [0, %d)", model.ErrInvalidInput, frame, comp.TotalFrames()))
		return
	}
	c.JSON(http.StatusOK, comp.Compose(frame))
}

type renderRequest struct {
	Formats  formatList `json:"formats"`
	Quality  string     `json:"quality"`
	RenderID uuid.UUID  `json:"renderId"`
}

func (h *Handler) createRender(c *gin.Context) {
	projectID, err := uuid.Parse(c.Param("projectId"))
	if err != nil {
		handleError(c, fmt.Errorf("%w: project id %q", model.ErrInvalidInput, c.Param("projectId")))
		return
	}
	var req renderRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			handleError(c, fmt.Errorf("%w: %v", model.ErrInvalidInput, err))
			return
		}
	}
	formats, err := model.ParseFormats(req.Formats)
	if err != nil {
		handleError(c, err)
		return
	}
	quality, err := model.ParseQuality(req.Quality)
	if err != nil {
		handleError(c, err)
		return
	}

	render, err := h.dispatcher.Dispatch(c.Request.Context(), dispatch.Request{
		ProjectID: projectID,
		RenderID:  req.RenderID,
		Formats:   formats,
		Quality:   quality,
	})
	if errors.Is(err, dispatch.ErrAggregateFailure) && render != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error(), "render": newRenderResponse(render)})
		return
	}
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, newRenderResponse(render))
}

func (h *Handler) getRender(c *gin.Context) {
	id, err := uuid.Parse(c.Param("renderId"))
	if err != nil {
		handleError(c, fmt.Errorf("%w: render id %q", model.ErrInvalidInput, c.Param("renderId")))
		return
	}
	r, err := h.renders.GetRender(c.Request.Context(), id)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, newRenderResponse(r))
}

// renderWebhook принимает уведомление удалённого рендерера. Несопоставленные
// уведомления подтверждаются 200, чтобы отправитель не повторял их.
func (h *Handler) renderWebhook(c *gin.Context) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, h.cfg.MaxBodyBytes))
	if err != nil {
		handleError(c, fmt.Errorf("%w: read body: %w", model.ErrInvalidInput, err))
		return
	}
	if h.verifier != nil {
		if err := h.verifier.Verify(body, c.GetHeader(notify.SignatureHeader)); err != nil {
			h.logger.Warn("Webhook rejected", zap.Error(err), zap.String("ip", c.ClientIP()))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
	}

	n, err := notify.Decode(body)
	if err != nil {
		handleError(c, err)
		return
	}
	out, err := h.notifications.OnNotification(c.Request.Context(), n)
	if err != nil && !notify.Ignorable(err) {
		handleError(c, err)
		return
	}
	resp := gin.H{"received": true, "result": out.Result}
	if err != nil {
		resp["result"] = "ignored"
		resp["reason"] = err.Error()
	}
	if out.Render != nil {
		resp["status"] = out.Render.Status
		resp["progress"] = out.Render.Progress
	}
	c.JSON(http.StatusOK, resp)
}
