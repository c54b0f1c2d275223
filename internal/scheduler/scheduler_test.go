package scheduler

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/mamadbah2/fieldtrack/internal/config"
	"github.com/mamadbah2/fieldtrack/internal/service/reporting"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeReporter struct {
	digests atomic.Int32
	exports atomic.Int32
	to      atomic.Value
	export  error
}

func (f *fakeReporter) SendDigest(_ context.Context, to string) error {
	f.digests.Add(1)
	f.to.Store(to)
	return nil
}

func (f *fakeReporter) ExportLedger(context.Context) (int, error) {
	f.exports.Add(1)
	return 3, f.export
}

type fakeSweeper struct{ calls atomic.Int32 }

func (f *fakeSweeper) Sweep() int {
	f.calls.Add(1)
	return 1
}

func baseConfig() config.ReportingConfig {
	return config.ReportingConfig{
		DigestSchedule: "0 7 * * *",
		ExportSchedule: "0 20 * * 5",
		Timezone:       "Asia/Kolkata",
		DigestTo:       "+919800000000",
	}
}

func TestStartRegistersJobs(t *testing.T) {
	s, err := NewScheduler(baseConfig(), &fakeReporter{}, &fakeSweeper{}, nil)
	require.NoError(t, err)

	require.NoError(t, s.Start())
	assert.Equal(t, 3, s.Entries())
	s.Stop()
}

func TestDigestDisabledWithoutRecipient(t *testing.T) {
	cfg := baseConfig()
	cfg.DigestTo = ""
	s, err := NewScheduler(cfg, &fakeReporter{}, nil, nil)
	require.NoError(t, err)

	require.NoError(t, s.Start())
	assert.Equal(t, 1, s.Entries())
	s.Stop()
}

func TestInvalidScheduleOrTimezone(t *testing.T) {
	cfg := baseConfig()
	cfg.Timezone = "Mars/Olympus"
	_, err := NewScheduler(cfg, &fakeReporter{}, nil, nil)
	assert.Error(t, err)

	cfg = baseConfig()
	cfg.ExportSchedule = "not a schedule"
	s, err := NewScheduler(cfg, &fakeReporter{}, nil, nil)
	require.NoError(t, err)
	assert.Error(t, s.Start())
}

func TestJobsCallReporter(t *testing.T) {
	rep := &fakeReporter{export: reporting.ErrExportDisabled}
	sweeper := &fakeSweeper{}
	s, err := NewScheduler(baseConfig(), rep, sweeper, nil)
	require.NoError(t, err)

	s.sendDigest()
	s.exportLedger()
	s.sweepSessions()

	assert.EqualValues(t, 1, rep.digests.Load())
	assert.Equal(t, "+919800000000", rep.to.Load())
	assert.EqualValues(t, 1, rep.exports.Load())
	assert.EqualValues(t, 1, sweeper.calls.Load())
}
