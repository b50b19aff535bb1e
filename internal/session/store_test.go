package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MikeSquared-Agency/clerk/internal/intent"
	"github.com/MikeSquared-Agency/clerk/internal/returns"
)

func setupRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func sampleState(now time.Time) *State {
	s := New("sess-1", now)
	s.Intent = intent.Insert
	s.Phase = PhaseCollecting
	s.Fields[returns.FieldProduct] = "Apple TV"
	s.AppendTurn(Turn{
		Utterance: "I want to return an Apple TV",
		Fields:    returns.Fields{returns.FieldProduct: "Apple TV"},
		Intent:    intent.Insert,
		Reply:     "Please tell me the store.",
		At:        now,
	}, 0)
	return s
}

func exerciseStore(t *testing.T, store Store) {
	ctx := context.Background()
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	_, err := store.Load(ctx, "sess-1")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Save(ctx, sampleState(now)))

	got, err := store.Load(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, "sess-1", got.SessionID)
	assert.Equal(t, PhaseCollecting, got.Phase)
	assert.Equal(t, intent.Insert, got.Intent)
	assert.Equal(t, "Apple TV", got.Fields[returns.FieldProduct])
	require.Len(t, got.Turns, 1)
	assert.Equal(t, "I want to return an Apple TV", got.Turns[0].Utterance)
	assert.True(t, got.CreatedAt.Equal(now))

	require.NoError(t, store.Delete(ctx, "sess-1"))
	_, err = store.Load(ctx, "sess-1")
	require.ErrorIs(t, err, ErrNotFound)

	// Deleting a missing session is not an error.
	require.NoError(t, store.Delete(ctx, "nope"))
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore(time.Minute))
}

func TestRedisStore(t *testing.T) {
	_, client := setupRedis(t)
	exerciseStore(t, NewRedisStore(client, time.Minute))
}

func TestMemoryStore_Expiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	m := NewMemoryStore(30 * time.Minute)
	m.now = func() time.Time { return now }

	require.NoError(t, m.Save(ctx, sampleState(now)))
	require.NoError(t, m.Save(ctx, &State{SessionID: "sess-2"}))

	now = now.Add(29 * time.Minute)
	_, err := m.Load(ctx, "sess-1")
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	_, err = m.Load(ctx, "sess-1")
	require.ErrorIs(t, err, ErrNotFound)

	assert.Equal(t, 1, m.Sweep())
	assert.Equal(t, 0, m.Sweep())
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore(time.Minute)
	s := sampleState(time.Now())
	require.NoError(t, m.Save(ctx, s))

	s.Fields[returns.FieldStore] = "mutated after save"

	got, err := m.Load(ctx, "sess-1")
	require.NoError(t, err)
	assert.NotContains(t, got.Fields, returns.FieldStore)

	got.Fields[returns.FieldStore] = "mutated after load"
	again, err := m.Load(ctx, "sess-1")
	require.NoError(t, err)
	assert.NotContains(t, again.Fields, returns.FieldStore)
}

func TestRedisStore_TTL(t *testing.T) {
	ctx := context.Background()
	mr, client := setupRedis(t)
	store := NewRedisStore(client, 30*time.Minute)

	require.NoError(t, store.Save(ctx, sampleState(time.Now())))
	assert.True(t, mr.Exists(keyPrefix+"sess-1"))
	assert.Equal(t, 30*time.Minute, mr.TTL(keyPrefix+"sess-1"))

	mr.FastForward(31 * time.Minute)
	_, err := store.Load(ctx, "sess-1")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStore_CorruptDocument(t *testing.T) {
	mr, client := setupRedis(t)
	require.NoError(t, mr.Set(keyPrefix+"bad", "{not json"))

	_, err := NewRedisStore(client, time.Minute).Load(context.Background(), "bad")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestStateAppendTurnCaps(t *testing.T) {
	s := New("s", time.Now())
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		s.AppendTurn(Turn{Utterance: string(rune('a' + i)), At: base.Add(time.Duration(i) * time.Minute)}, 3)
	}

	require.Len(t, s.Turns, 3)
	assert.Equal(t, "c", s.Turns[0].Utterance)
	assert.Equal(t, "e", s.Turns[2].Utterance)
	assert.True(t, s.UpdatedAt.Equal(base.Add(4*time.Minute)))
}

func TestStateReset(t *testing.T) {
	s := sampleState(time.Now())
	s.Complete = true
	s.Reset()

	assert.Empty(t, s.Fields)
	assert.Equal(t, PhaseIdle, s.Phase)
	assert.Equal(t, intent.None, s.Intent)
	assert.False(t, s.Complete)
	assert.Len(t, s.Turns, 1)
}
