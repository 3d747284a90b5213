//go:build integration

package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"

	"github.com/ivlev/scenereel/internal/model"
)

type StoreIntegrationSuite struct {
	suite.Suite
	ctx         context.Context
	pgContainer *postgres.PostgresContainer
	rdContainer *tcredis.RedisContainer
	pool        *pgxpool.Pool
	redisClient *redis.Client
	pg          *Postgres
	corr        *RedisCorrelations
	logger      *zap.Logger
}

func (s *StoreIntegrationSuite) SetupSuite() {
	s.ctx = context.Background()
	s.logger = zap.NewNop()
	var err error

	s.pgContainer, err = postgres.Run(s.ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("scenereel_test"),
		postgres.WithUsername("scenereel"),
		postgres.WithPassword("scenereel"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(5*time.Minute),
		),
	)
	require.NoError(s.T(), err, "Failed to start postgres container")

	dsn, err := s.pgContainer.ConnectionString(s.ctx, "sslmode=disable")
	require.NoError(s.T(), err)
	require.NoError(s.T(), Migrate(dsn, s.logger))

	s.pool, err = NewPool(s.ctx, dsn, 4)
	require.NoError(s.T(), err)
	s.pg = NewPostgres(s.pool, s.logger)

	s.rdContainer, err = tcredis.Run(s.ctx,
		"docker.io/redis:7-alpine",
		testcontainers.WithWaitStrategy(
			wait.ForLog("* Ready to accept connections").
				WithOccurrence(1).
				WithStartupTimeout(1*time.Minute),
		),
	)
	require.NoError(s.T(), err, "Failed to start redis container")
	host, err := s.rdContainer.Host(s.ctx)
	require.NoError(s.T(), err)
	port, err := s.rdContainer.MappedPort(s.ctx, "6379/tcp")
	require.NoError(s.T(), err)
	s.redisClient, err = NewRedisClient(s.ctx, fmt.Sprintf("%s:%s", host, port.Port()), "", 0)
	require.NoError(s.T(), err)
	s.corr = NewRedisCorrelations(s.redisClient, time.Minute, s.logger)
}

func (s *StoreIntegrationSuite) TearDownSuite() {
	if s.pool != nil {
		s.pool.Close()
	}
	if s.redisClient != nil {
		_ = s.redisClient.Close()
	}
	if s.pgContainer != nil {
		_ = s.pgContainer.Terminate(s.ctx)
	}
	if s.rdContainer != nil {
		_ = s.rdContainer.Terminate(s.ctx)
	}
}

func (s *StoreIntegrationSuite) createProject() *model.Project {
	now := time.Now().UTC().Truncate(time.Microsecond)
	p := &model.Project{
		ID:        uuid.New(),
		Name:      "integration",
		Brand:     model.Brand{AccentColor: "#123456", Seed: 9},
		Status:    model.ProjectDraft,
		CreatedAt: now,
		UpdatedAt: now,
	}
	scenes := []model.Scene{
		{ID: "b", OrderIndex: 1, Headline: "B", DurationMs: 1500, Transition: "fade",
			Motion: model.MotionConfig{Effects: []model.Effect{model.EffectGrain}, Spring: model.DefaultSpring}},
		{ID: "a", OrderIndex: 0, Headline: "A", DurationMs: 2000, Asset: model.Asset{URL: "a.png", Kind: model.AssetImage}},
	}
	s.Require().NoError(s.pg.CreateProject(s.ctx, p, scenes))
	return p
}

func (s *StoreIntegrationSuite) TestProjectAndScenes() {
	p := s.createProject()

	got, err := s.pg.GetProject(s.ctx, p.ID)
	s.Require().NoError(err)
	s.Equal(p.Brand, got.Brand)
	s.Equal(model.ProjectDraft, got.Status)

	scenes, err := s.pg.ListScenes(s.ctx, p.ID)
	s.Require().NoError(err)
	s.Require().Len(scenes, 2)
	s.Equal("a", scenes[0].ID)
	s.Equal(model.AssetImage, scenes[0].Asset.Kind)
	s.True(scenes[1].Motion.HasEffect(model.EffectGrain))

	_, err = s.pg.GetProject(s.ctx, uuid.New())
	s.ErrorIs(err, model.ErrNotFound)
}

func (s *StoreIntegrationSuite) TestApplyResultIsFieldScoped() {
	p := s.createProject()
	now := time.Now().UTC().Truncate(time.Microsecond)
	r := model.NewRender(uuid.New(), p.ID, model.AllFormats, model.QualityStandard, model.RendererLambda, now)
	s.Require().NoError(s.pg.CreateRender(s.ctx, r))
	s.Require().NoError(s.pg.StartRender(s.ctx, p.ID, r.ID))

	apply := func(f model.Format, o model.Outcome, url string) (*model.Render, model.MergeResult) {
		got, mr, err := s.pg.ApplyResult(s.ctx, r.ID, model.FormatResult{Format: f, Outcome: o, OutputURL: url, Errors: []string{"boom"}}, now)
		s.Require().NoError(err)
		return got, mr
	}

	got, mr := apply(model.FormatHorizontal, model.OutcomeSuccess, "h.mp4")
	s.True(mr.URLSet)
	s.Equal(33, got.Progress)
	s.Equal(model.RenderProcessing, got.Status)

	_, mr = apply(model.FormatHorizontal, model.OutcomeSuccess, "other.mp4")
	s.False(mr.Changed)

	apply(model.FormatVertical, model.OutcomeError, "")
	got, mr = apply(model.FormatSquare, model.OutcomeSuccess, "s.mp4")
	s.True(mr.Finalized)

	stored, err := s.pg.GetRender(s.ctx, r.ID)
	s.Require().NoError(err)
	s.Equal(model.RenderFailed, stored.Status)
	s.Equal("h.mp4", stored.OutputURLs[model.FormatHorizontal])
	s.Equal("s.mp4", stored.OutputURLs[model.FormatSquare])
	s.Equal("boom", stored.FormatErrors[model.FormatVertical])
	s.Contains(stored.ErrorMessage, "vertical")
	s.NotNil(stored.CompletedAt)
	s.Equal(got.Progress, stored.Progress)

	ok, err := s.pg.FinishRender(s.ctx, p.ID, uuid.New(), model.ProjectCompleted)
	s.Require().NoError(err)
	s.False(ok)
	ok, err = s.pg.FinishRender(s.ctx, p.ID, r.ID, model.ProjectFailed)
	s.Require().NoError(err)
	s.True(ok)
}

func (s *StoreIntegrationSuite) TestRedisCorrelations() {
	renderID := uuid.New()
	c := model.Correlation{ExternalID: "lambda-req-1", RenderID: renderID, Format: model.FormatSquare, Renderer: model.RendererLambda, CreatedAt: time.Now().UTC()}
	s.Require().NoError(s.corr.Put(s.ctx, c))

	got, err := s.corr.Get(s.ctx, "lambda-req-1")
	s.Require().NoError(err)
	s.Equal(c.RenderID, got.RenderID)
	s.Equal(c.Format, got.Format)

	list, err := s.corr.ListByRender(s.ctx, renderID)
	s.Require().NoError(err)
	s.Len(list, 1)

	ttl, err := s.redisClient.TTL(s.ctx, correlationKey("lambda-req-1")).Result()
	s.Require().NoError(err)
	s.Greater(ttl, time.Duration(0))

	_, err = s.corr.Get(s.ctx, "missing")
	s.ErrorIs(err, model.ErrNotFound)
}

func TestStoreIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration tests in short mode")
	}
	suite.Run(t, new(StoreIntegrationSuite))
}
