package client

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/THORISO2Nnoi/GBV-sub000/internal/models"
	"github.com/THORISO2Nnoi/GBV-sub000/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStatusAPI struct {
	updates atomic.Int32
	reads   atomic.Int32
	block   chan struct{}
	err     error
}

func (f *fakeStatusAPI) UpdateStatus(_ context.Context, alertID string, status models.AlertStatus, note string) (*models.Alert, error) {
	f.updates.Add(1)
	if f.block != nil {
		<-f.block
	}
	if f.err != nil {
		return nil, f.err
	}
	return &models.Alert{ID: alertID, Status: status}, nil
}

func (f *fakeStatusAPI) Get(_ context.Context, alertID string) (*models.Alert, error) {
	f.reads.Add(1)
	return &models.Alert{ID: alertID, Status: models.StatusContacted}, nil
}

func TestSecondUpdateSuppressedWhileInFlight(t *testing.T) {
	api := &fakeStatusAPI{block: make(chan struct{})}
	u := NewStatusUpdater(api, WithSettleDelay(200*time.Millisecond))
	ctx := context.Background()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := u.Update(ctx, "A1", models.StatusContacted, "")
		assert.NoError(t, err)
	}()
	require.Eventually(t, func() bool { return api.updates.Load() == 1 }, time.Second, time.Millisecond)

	_, err := u.Update(ctx, "A1", models.StatusContacted, "")
	assert.ErrorIs(t, err, ErrInFlight)
	assert.True(t, u.InFlight("A1"))

	close(api.block)
	wg.Wait()

	// still marked during the settle delay, the echo is ignored
	assert.True(t, u.InFlight("A1"))
	assert.False(t, u.ShouldRefresh(models.StatusUpdateEvent{AlertID: "A1"}))
	assert.True(t, u.ShouldRefresh(models.StatusUpdateEvent{AlertID: "A2"}))

	require.Eventually(t, func() bool { return !u.InFlight("A1") }, time.Second, 5*time.Millisecond)
	_, err = u.Update(ctx, "A1", models.StatusResolved, "")
	assert.NoError(t, err)
	assert.EqualValues(t, 2, api.updates.Load())
	assert.EqualValues(t, 2, api.reads.Load())
}

func TestRefreshHookGetsReadBack(t *testing.T) {
	api := &fakeStatusAPI{}
	var got *models.Alert
	u := NewStatusUpdater(api, WithSettleDelay(0), WithRefresh(func(a *models.Alert) { got = a }))

	a, err := u.Update(context.Background(), "A1", models.StatusContacted, "on my way")
	require.NoError(t, err)
	assert.Same(t, a, got)
	assert.False(t, u.InFlight("A1"))
}

func TestFailedUpdateReleasesImmediately(t *testing.T) {
	api := &fakeStatusAPI{err: errors.Conflict("alert is already resolved")}
	u := NewStatusUpdater(api)

	_, err := u.Update(context.Background(), "A1", models.StatusContacted, "")
	assert.True(t, errors.IsKind(err, errors.KindConflict))
	assert.False(t, u.InFlight("A1"))
	assert.EqualValues(t, 0, api.reads.Load())
}

func TestInFlightSetIsBounded(t *testing.T) {
	api := &fakeStatusAPI{}
	u := NewStatusUpdater(api, WithMaxInFlight(2), WithSettleDelay(time.Hour))
	ctx := context.Background()

	_, err := u.Update(ctx, "A1", models.StatusContacted, "")
	require.NoError(t, err)
	_, err = u.Update(ctx, "A2", models.StatusContacted, "")
	require.NoError(t, err)
	_, err = u.Update(ctx, "A3", models.StatusContacted, "")
	assert.ErrorIs(t, err, ErrTooManyInFlight)
}

func TestTinySettleDelayAlwaysClears(t *testing.T) {
	api := &fakeStatusAPI{}
	u := NewStatusUpdater(api, WithSettleDelay(time.Nanosecond), WithMaxInFlight(1))
	ctx := context.Background()

	for i := 0; i < 200; i++ {
		require.Eventually(t, func() bool { return !u.InFlight("A1") }, time.Second, time.Millisecond)
		_, err := u.Update(ctx, "A1", models.StatusContacted, "")
		require.NoError(t, err)
	}
	require.Eventually(t, func() bool { return !u.InFlight("A1") }, time.Second, time.Millisecond)
}
