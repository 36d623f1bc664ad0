package startup

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

type recorder struct {
	events []string
}

func (r *recorder) dep(name string, requires ...string) Dependency {
	return Dependency{
		Name:     name,
		Requires: requires,
		OnStart: func(context.Context) error {
			r.events = append(r.events, "start:"+name)
			return nil
		},
		OnStop: func(context.Context) error {
			r.events = append(r.events, "stop:"+name)
			return nil
		},
	}
}

func TestStartup_StartsInDependencyOrderAndStopsInReverse(t *testing.T) {
	rec := &recorder{}
	s := NewStartup(testLogger(), 1)
	s.AddDependency(rec.dep("ops", "consumer"))
	s.AddDependency(rec.dep("consumer", "database", "redis"))
	s.AddDependency(rec.dep("redis"))
	s.AddDependency(rec.dep("database"))

	require.NoError(t, s.Start(context.Background()))
	assert.Equal(t, []string{"start:database", "start:redis", "start:consumer", "start:ops"}, rec.events)
	assert.Equal(t, StartupStatusStarted, s.Status("ops"))

	rec.events = nil
	require.NoError(t, s.Stop(context.Background()))
	assert.Equal(t, []string{"stop:ops", "stop:consumer", "stop:redis", "stop:database"}, rec.events)
	assert.Equal(t, StartupStatusStopped, s.Status("database"))
}

func TestStartup_RetriesWithBackoff(t *testing.T) {
	calls := 0
	s := NewStartup(testLogger(), 3)
	s.unit = time.Millisecond
	s.AddDependency(Dependency{Name: "database", OnStart: func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("connection refused")
		}
		return nil
	}})

	require.NoError(t, s.Start(context.Background()))
	assert.Equal(t, 3, calls)
}

func TestStartup_GivesUpAfterMaxAttempts(t *testing.T) {
	s := NewStartup(testLogger(), 2)
	s.unit = time.Millisecond
	s.AddDependency(Dependency{Name: "database", OnStart: func(context.Context) error {
		return errors.New("connection refused")
	}})

	err := s.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 2 attempts")
	assert.Equal(t, StartupStatusFailed, s.Status("database"))
}

func TestStartup_StartedDependenciesAreNotRestarted(t *testing.T) {
	rec := &recorder{}
	flaky := 0
	s := NewStartup(testLogger(), 2)
	s.unit = time.Millisecond
	s.AddDependency(rec.dep("database"))
	s.AddDependency(Dependency{Name: "consumer", Requires: []string{"database"}, OnStart: func(context.Context) error {
		flaky++
		if flaky == 1 {
			return errors.New("broker not ready")
		}
		return nil
	}})

	require.NoError(t, s.Start(context.Background()))
	assert.Equal(t, []string{"start:database"}, rec.events)
}

func TestStartup_UnknownAndCyclicDependencies(t *testing.T) {
	s := NewStartup(testLogger(), 1)
	s.AddDependency(Dependency{Name: "consumer", Requires: []string{"missing"}})
	assert.ErrorContains(t, s.Start(context.Background()), "unknown startup dependency 'missing'")

	s = NewStartup(testLogger(), 1)
	s.AddDependency(Dependency{Name: "a", Requires: []string{"b"}})
	s.AddDependency(Dependency{Name: "b", Requires: []string{"a"}})
	assert.ErrorContains(t, s.Start(context.Background()), "cycle")
}
