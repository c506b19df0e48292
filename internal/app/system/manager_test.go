package system

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingService struct {
	name       string
	startErr   error
	started    *[]string
	stopped    *[]string
}

func (r recordingService) Name() string { return r.name }

func (r recordingService) Start(context.Context) error {
	if r.startErr != nil {
		return r.startErr
	}
	*r.started = append(*r.started, r.name)
	return nil
}

func (r recordingService) Stop(context.Context) error {
	*r.stopped = append(*r.stopped, r.name)
	return nil
}

func TestManagerStartsInOrderAndStopsInReverse(t *testing.T) {
	var started, stopped []string
	m := NewManager()
	require.NoError(t, m.Register(recordingService{name: "a", started: &started, stopped: &stopped}))
	require.NoError(t, m.Register(recordingService{name: "b", started: &started, stopped: &stopped}))

	require.NoError(t, m.Start(context.Background()))
	assert.Equal(t, []string{"a", "b"}, started)

	require.NoError(t, m.Stop(context.Background()))
	assert.Equal(t, []string{"b", "a"}, stopped)
}

func TestManagerRollsBackOnStartFailure(t *testing.T) {
	var started, stopped []string
	m := NewManager()
	require.NoError(t, m.Register(recordingService{name: "a", started: &started, stopped: &stopped}))
	require.NoError(t, m.Register(recordingService{name: "b", startErr: errors.New("boom"), started: &started, stopped: &stopped}))

	err := m.Start(context.Background())
	require.Error(t, err)
	assert.Equal(t, []string{"a"}, started)
	assert.Equal(t, []string{"a"}, stopped)
}

func TestRegisterAfterStartFails(t *testing.T) {
	var started, stopped []string
	m := NewManager()
	require.NoError(t, m.Start(context.Background()))
	err := m.Register(recordingService{name: "late", started: &started, stopped: &stopped})
	assert.Error(t, err)
}

func TestRegisterNilFails(t *testing.T) {
	m := NewManager()
	assert.Error(t, m.Register(nil))
}
