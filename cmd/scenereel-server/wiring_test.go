package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ivlev/scenereel/internal/config"
	"github.com/ivlev/scenereel/internal/model"
	"github.com/ivlev/scenereel/internal/objectstore"
	"github.com/ivlev/scenereel/internal/store"
)

func testConfig(t *testing.T) *config.Config {
	cfg := &config.Config{}
	cfg.App.PublicBaseURL = "http://localhost:8080"
	cfg.ObjectStore.LocalDir = t.TempDir()
	cfg.Render.OutputDir = t.TempDir()
	cfg.Lambda.Region = "eu-west-1"
	return cfg
}

func TestOpenStoresFallsBackToMemory(t *testing.T) {
	s, err := openStores(context.Background(), testConfig(t), zap.NewNop())
	require.NoError(t, err)
	defer s.Close()

	assert.IsType(t, &store.Memory{}, s.projects)
	assert.IsType(t, &store.Memory{}, s.renders)
	assert.IsType(t, &store.Memory{}, s.correlations)
	assert.Nil(t, s.pool)
	assert.Nil(t, s.redis)
}

func TestOpenObjectStore(t *testing.T) {
	cfg := testConfig(t)
	objects, err := openObjectStore(cfg, zap.NewNop())
	require.NoError(t, err)
	require.IsType(t, &objectstore.DirStore{}, objects)
	assert.Equal(t, "http://localhost:8080/objects/p-horizontal.mp4", objects.URL("p-horizontal.mp4"))

	cfg.ObjectStore.Bucket = "videos"
	cfg.Lambda.AccessKeyID = "AKID"
	cfg.Lambda.SecretAccessKey = "secret"
	objects, err = openObjectStore(cfg, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &objectstore.S3Store{}, objects)
}

func TestNewBackends(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	objects, err := objectstore.NewDirStore(t.TempDir(), "")
	require.NoError(t, err)

	cfg := testConfig(t)
	b := newBackends(ctx, cfg, objects, nil, zap.NewNop())
	assert.Nil(t, b.lambda)
	assert.Nil(t, b.local)
	assert.Nil(t, b.simulator)
	assert.Empty(t, b.list())

	cfg.Lambda.AccessKeyID = "AKID"
	cfg.Lambda.SecretAccessKey = "secret"
	cfg.Lambda.FunctionName = "render"
	cfg.Lambda.ServeURL = "https://example.com/site"
	cfg.ObjectStore.Bucket = "videos"
	cfg.Render.LocalEnabled = true
	cfg.Render.DevSimulation = true

	b = newBackends(ctx, cfg, objects, nil, zap.NewNop())
	require.NotNil(t, b.lambda)
	require.NotNil(t, b.local)
	require.NotNil(t, b.simulator)

	list := b.list()
	require.Len(t, list, 2)
	assert.Equal(t, model.RendererLambda, list[0].Name())
	assert.Equal(t, model.RendererLocal, list[1].Name())

	cancel()
	b.wait()
}
