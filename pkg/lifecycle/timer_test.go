package lifecycle

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type expiry struct {
	key Key
	gen uint64
}

func newTestTimer(t *testing.T) (*Timer, *clock.Mock, chan expiry) {
	t.Helper()
	mock := clock.NewMock()
	fired := make(chan expiry, 16)
	timer := New(mock, func(key Key, gen uint64) {
		fired <- expiry{key: key, gen: gen}
	})
	t.Cleanup(timer.Stop)
	return timer, mock, fired
}

func waitExpiry(t *testing.T, fired chan expiry) expiry {
	t.Helper()
	select {
	case e := <-fired:
		return e
	case <-time.After(time.Second):
		t.Fatal("expiry not delivered")
		return expiry{}
	}
}

func assertNoExpiry(t *testing.T, fired chan expiry) {
	t.Helper()
	select {
	case e := <-fired:
		t.Fatalf("unexpected expiry %v", e.key)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestScheduleAndExpire(t *testing.T) {
	timer, mock, fired := newTestTimer(t)
	key := SessionKey(KindPublish, 1)

	gen, err := timer.Schedule(key, 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, 1, timer.Pending())
	assert.Equal(t, 5*time.Second, timer.Remaining(key))

	mock.Add(4 * time.Second)
	assertNoExpiry(t, fired)
	assert.Equal(t, time.Second, timer.Remaining(key))

	mock.Add(time.Second)
	e := waitExpiry(t, fired)
	assert.Equal(t, key, e.key)
	assert.Equal(t, gen, e.gen)

	require.True(t, timer.Claim(e.key, e.gen))
	assert.False(t, timer.Claim(e.key, e.gen), "expiry claimed twice")
	assert.Equal(t, 0, timer.Pending())
}

func TestCancelPreventsExpiry(t *testing.T) {
	timer, mock, fired := newTestTimer(t)
	key := SessionKey(KindSubscribe, 3)

	_, err := timer.Schedule(key, time.Second)
	require.NoError(t, err)
	assert.True(t, timer.Cancel(key))
	assert.False(t, timer.Cancel(key))

	mock.Add(2 * time.Second)
	assertNoExpiry(t, fired)
	assert.False(t, timer.Has(key))
}

func TestRescheduleInvalidatesOldGeneration(t *testing.T) {
	timer, mock, fired := newTestTimer(t)
	key := PeerKey(KindPairing, "02:00:00:00:01:00")

	first, err := timer.Schedule(key, time.Second)
	require.NoError(t, err)
	second, err := timer.Schedule(key, 3*time.Second)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	assert.False(t, timer.Claim(key, first))

	mock.Add(time.Second)
	assertNoExpiry(t, fired)

	mock.Add(2 * time.Second)
	e := waitExpiry(t, fired)
	assert.Equal(t, second, e.gen)
	assert.True(t, timer.Claim(key, e.gen))
}

func TestScheduleRejectsNonPositive(t *testing.T) {
	timer, _, _ := newTestTimer(t)

	_, err := timer.Schedule(SessionKey(KindPublish, 1), 0)
	assert.ErrorIs(t, err, ErrInvalidDuration)
}

func TestStopCancelsEverything(t *testing.T) {
	timer, mock, fired := newTestTimer(t)

	for i := 1; i <= 3; i++ {
		_, err := timer.Schedule(SessionKey(KindPublish, i), time.Second)
		require.NoError(t, err)
	}
	timer.Stop()
	assert.Equal(t, 0, timer.Pending())

	mock.Add(time.Minute)
	assertNoExpiry(t, fired)

	_, err := timer.Schedule(SessionKey(KindPublish, 9), time.Second)
	assert.ErrorIs(t, err, ErrTimerStopped)
}

func TestCancelKind(t *testing.T) {
	timer, _, _ := newTestTimer(t)

	_, _ = timer.Schedule(SessionKey(KindProbe, 1), time.Second)
	_, _ = timer.Schedule(SessionKey(KindProbe, 2), time.Second)
	_, _ = timer.Schedule(SessionKey(KindSubscribe, 1), time.Second)

	assert.Equal(t, 2, timer.CancelKind(KindProbe))
	assert.Equal(t, 1, timer.Pending())
	assert.True(t, timer.Has(SessionKey(KindSubscribe, 1)))
}

func TestKeyString(t *testing.T) {
	assert.Equal(t, "PUBLISH/7", SessionKey(KindPublish, 7).String())
	assert.Equal(t, "FORMATION/aa", PeerKey(KindFormation, "aa").String())
}
