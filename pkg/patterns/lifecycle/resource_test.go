package lifecycle

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeResource struct {
	name     string
	startErr error
	log      *[]string
}

func (f *fakeResource) Name() string { return f.name }

func (f *fakeResource) Start(context.Context) error {
	if f.startErr != nil {
		return f.startErr
	}
	*f.log = append(*f.log, "start "+f.name)
	return nil
}

func (f *fakeResource) Stop(context.Context) error {
	*f.log = append(*f.log, "stop "+f.name)
	return nil
}

func (f *fakeResource) Health(context.Context) HealthStatus {
	return HealthStatus{Ready: true}
}

func TestManager_StartStopOrder(t *testing.T) {
	var log []string
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	m := NewManager(logger, &fakeResource{name: "a", log: &log}, &fakeResource{name: "b", log: &log})

	require.NoError(t, m.Start(context.Background()))
	require.NoError(t, m.Stop(context.Background()))

	assert.Equal(t, []string{"start a", "start b", "stop b", "stop a"}, log)
	assert.True(t, m.Health(context.Background())["a"].Ready)
}

func TestManager_StartFailureRollsBack(t *testing.T) {
	var log []string
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	boom := errors.New("boom")
	m := NewManager(logger, &fakeResource{name: "a", log: &log}, &fakeResource{name: "b", startErr: boom, log: &log})

	err := m.Start(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"start a", "stop a"}, log)
}

func TestManager_AddAppendsInOrder(t *testing.T) {
	var log []string
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	m := NewManager(logger, &fakeResource{name: "monitor", log: &log})
	m.Add(&fakeResource{name: "server", log: &log})

	require.NoError(t, m.Start(context.Background()))
	require.NoError(t, m.Stop(context.Background()))

	assert.Equal(t, []string{"start monitor", "start server", "stop server", "stop monitor"}, log)
	assert.Len(t, m.Health(context.Background()), 2)
}
