package dispatch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ivlev/scenereel/internal/aggregator"
	"github.com/ivlev/scenereel/internal/model"
	"github.com/ivlev/scenereel/internal/objectstore"
	"github.com/ivlev/scenereel/internal/payload"
)

type recordingNotifier struct {
	mu   sync.Mutex
	seen []model.Notification
}

func (r *recordingNotifier) OnNotification(_ context.Context, n model.Notification) (aggregator.Outcome, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, n)
	return aggregator.Outcome{}, nil
}

func (r *recordingNotifier) all() []model.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.Notification(nil), r.seen...)
}

type fileRenderer struct {
	dir string
	err error
}

func (f fileRenderer) RenderFormat(_ context.Context, props payload.InputProps) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	path := filepath.Join(f.dir, string(props.Format)+".mp4")
	return path, os.WriteFile(path, []byte("mp4:"+string(props.Format)), 0o644)
}

func formatJob(f model.Format) Job {
	projectID := uuid.New()
	return Job{Props: payload.InputProps{
		RenderID:  uuid.New(),
		ProjectID: projectID,
		Format:    f,
		OutputKey: payload.OutputKey(projectID, f),
	}}
}

func TestLocalBackendUploadsAndNotifies(t *testing.T) {
	objects, err := objectstore.NewDirStore(t.TempDir(), "http://cdn.test")
	require.NoError(t, err)
	notifier := &recordingNotifier{}
	b := NewLocalBackend(context.Background(), fileRenderer{dir: t.TempDir()}, objects, notifier, zap.NewNop())

	job := formatJob(model.FormatSquare)
	id, err := b.Submit(context.Background(), job)
	require.NoError(t, err)
	b.Wait()

	seen := notifier.all()
	require.Len(t, seen, 1)
	n := seen[0]
	assert.Equal(t, id, n.ExternalID)
	assert.Equal(t, model.OutcomeSuccess, n.Outcome)
	assert.Equal(t, "http://cdn.test/"+job.Props.OutputKey, n.OutputURL)
	assert.Equal(t, job.Props.RenderID, n.RenderID)

	body, err := objects.Get(context.Background(), job.Props.OutputKey)
	require.NoError(t, err)
	assert.Equal(t, "mp4:square", string(body))
}

func TestLocalBackendReportsRenderError(t *testing.T) {
	objects, err := objectstore.NewDirStore(t.TempDir(), "")
	require.NoError(t, err)
	notifier := &recordingNotifier{}
	b := NewLocalBackend(context.Background(), fileRenderer{err: errors.New("ffmpeg exited")}, objects, notifier, zap.NewNop())

	_, err = b.Submit(context.Background(), formatJob(model.FormatVertical))
	require.NoError(t, err)
	b.Wait()

	seen := notifier.all()
	require.Len(t, seen, 1)
	assert.Equal(t, model.OutcomeError, seen[0].Outcome)
	assert.Equal(t, []string{"ffmpeg exited"}, seen[0].Errors)
}

func TestLocalBackendCancelledReportsTimeout(t *testing.T) {
	objects, err := objectstore.NewDirStore(t.TempDir(), "")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	notifier := &recordingNotifier{}
	b := NewLocalBackend(ctx, fileRenderer{err: context.Canceled}, objects, notifier, zap.NewNop())

	_, err = b.Submit(context.Background(), formatJob(model.FormatHorizontal))
	require.NoError(t, err)
	b.Wait()

	seen := notifier.all()
	require.Len(t, seen, 1)
	assert.Equal(t, model.OutcomeTimeout, seen[0].Outcome)
}

func TestSimulatorNotifiesSuccess(t *testing.T) {
	notifier := &recordingNotifier{}
	s := NewSimulator(context.Background(), SimulatorConfig{PublicBaseURL: "http://localhost/objects/", Steps: 2}, notifier, zap.NewNop())

	job := formatJob(model.FormatVertical)
	id, err := s.Submit(context.Background(), job)
	require.NoError(t, err)
	s.Wait()

	seen := notifier.all()
	require.Len(t, seen, 1)
	assert.Equal(t, id, seen[0].ExternalID)
	assert.Equal(t, model.OutcomeSuccess, seen[0].Outcome)
	assert.Equal(t, "http://localhost/objects/"+job.Props.ProjectID.String()+"-vertical.mp4", seen[0].OutputURL)
}

func TestSimulatorStopsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	notifier := &recordingNotifier{}
	s := NewSimulator(ctx, SimulatorConfig{Steps: 3, StepDelay: time.Hour}, notifier, zap.NewNop())

	_, err := s.Submit(context.Background(), formatJob(model.FormatSquare))
	require.NoError(t, err)
	cancel()
	s.Wait()

	assert.Empty(t, notifier.all())
}
