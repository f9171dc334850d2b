package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingInvalidator struct {
	calls      int
	start, end time.Time
}

func (r *recordingInvalidator) Invalidate(_ context.Context, start, end time.Time) error {
	r.calls++
	r.start, r.end = start, end
	return nil
}

func TestRefresherRunNowInvalidatesAndReloads(t *testing.T) {
	f := newFixture(t)
	inv := &recordingInvalidator{}
	r := NewRefresher("@every 1h", f.dash, inv, nil)

	require.NoError(t, r.RunNow(context.Background()))
	require.NoError(t, r.RunNow(context.Background()))

	assert.Equal(t, 2, inv.calls)
	assert.Equal(t, "2020-01-01", inv.start.Format("2006-01-02"))
	assert.Equal(t, 2, f.historical.Calls())
}

func TestRefresherRejectsBadSpec(t *testing.T) {
	f := newFixture(t)
	r := NewRefresher("every tuesday", f.dash, nil, nil)

	assert.Error(t, r.Start())
}

func TestRefresherDisabledWithoutSpec(t *testing.T) {
	f := newFixture(t)
	r := NewRefresher("", f.dash, nil, nil)

	assert.False(t, r.Enabled())
	require.NoError(t, r.Start())
	require.NoError(t, r.Stop(context.Background()))
}

func TestRefresherStartStop(t *testing.T) {
	f := newFixture(t)
	r := NewRefresher("0 */5 * * * *", f.dash, nil, nil)

	require.NoError(t, r.Start())
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, r.Stop(ctx))
}
