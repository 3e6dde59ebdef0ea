package roll

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sandeepkv93/dailyd/internal/clock"
	"github.com/sandeepkv93/dailyd/internal/model"
	"github.com/sandeepkv93/dailyd/internal/storage"
)

type firing struct {
	position int
	delay    time.Duration
}

// runChain drives the roll to completion by jumping the clock to each step.
func runChain(t *testing.T, fc *clock.Fake, repo storage.Repository, chain *Chain, id string) []firing {
	t.Helper()
	ctx := context.Background()
	var out []firing
	last := fc.Now()
	for i := 0; i < 1000; i++ {
		n, err := repo.GetNotification(ctx, model.RollKey(id))
		if err != nil {
			require.ErrorIs(t, err, storage.ErrNotFound)
			return out
		}
		fc.Set(n.FireAt)
		ok, err := repo.Consume(ctx, n.Key, n.Revision)
		require.NoError(t, err)
		require.True(t, ok)
		_, err = chain.Handle(ctx, repo, *n.Payload.Roll)
		require.NoError(t, err)
		out = append(out, firing{position: n.Payload.Roll.Position, delay: n.FireAt.Sub(last)})
		last = n.FireAt
	}
	t.Fatal("roll chain did not terminate")
	return nil
}

func TestChainFiresExactlyNTimesAndLandsOnFinal(t *testing.T) {
	for final := 1; final <= model.RollFaces; final++ {
		fc := clock.NewFake(time.Date(2026, 2, 9, 12, 0, 0, 0, time.UTC))
		repo := storage.NewMemoryRepository()
		chain := New(fc, WithSeed(uint64(final)))

		state, err := chain.Begin(context.Background(), repo, "d1", final)
		require.NoError(t, err)
		total := state.Remaining
		cycles := (total - final) / model.RollFaces
		assert.GreaterOrEqual(t, cycles, DefaultMinCycles)
		assert.LessOrEqual(t, cycles, DefaultMaxCycles)

		firings := runChain(t, fc, repo, chain, "d1")
		require.Len(t, firings, total)

		for i, f := range firings {
			assert.Equal(t, i%model.RollFaces+1, f.position, "firing %d", i)
			if i > 0 {
				assert.GreaterOrEqual(t, f.delay, firings[i-1].delay, "delays must not shrink")
			}
		}
		assert.Equal(t, final, firings[len(firings)-1].position)
		assert.Equal(t, time.Second, firings[len(firings)-1].delay)

		got, err := repo.GetRoll(context.Background(), "d1")
		require.NoError(t, err)
		assert.True(t, got.Finished)
		assert.Equal(t, final, got.Position)
		assert.Zero(t, got.Remaining)
	}
}

func TestBeginRandomIsReproducibleWithSeed(t *testing.T) {
	start := time.Date(2026, 2, 9, 12, 0, 0, 0, time.UTC)
	a := New(clock.NewFake(start), WithSeed(42))
	b := New(clock.NewFake(start), WithSeed(42))

	for i := 0; i < 5; i++ {
		ra, err := a.BeginRandom(context.Background(), storage.NewMemoryRepository(), "d")
		require.NoError(t, err)
		rb, err := b.BeginRandom(context.Background(), storage.NewMemoryRepository(), "d")
		require.NoError(t, err)
		assert.Equal(t, ra.Final, rb.Final)
		assert.Equal(t, ra.Remaining, rb.Remaining)
		assert.GreaterOrEqual(t, ra.Final, 1)
		assert.LessOrEqual(t, ra.Final, model.RollFaces)
	}
}

func TestBeginRejectsInvalidInput(t *testing.T) {
	chain := New(clock.NewFake(time.Now()), WithSeed(1))
	repo := storage.NewMemoryRepository()

	_, err := chain.Begin(context.Background(), repo, "", 3)
	require.ErrorIs(t, err, ErrInvalidRoll)
	_, err = chain.Begin(context.Background(), repo, "d", 7)
	require.ErrorIs(t, err, ErrInvalidRoll)
	_, err = chain.Begin(context.Background(), repo, "d", 0)
	require.ErrorIs(t, err, ErrInvalidRoll)
}

func TestHandleRecoversMissingRollState(t *testing.T) {
	fc := clock.NewFake(time.Date(2026, 2, 9, 12, 0, 0, 0, time.UTC))
	repo := storage.NewMemoryRepository()
	chain := New(fc, WithSeed(7))

	state, err := chain.Handle(context.Background(), repo, model.RollStep{ID: "lost", Remaining: 3, Position: 5})
	require.NoError(t, err)
	assert.Equal(t, 1, state.Final)
	assert.Equal(t, 5, state.Position)
	assert.Equal(t, 2, state.Remaining)

	n, err := repo.GetNotification(context.Background(), model.RollKey("lost"))
	require.NoError(t, err)
	assert.Equal(t, model.RollStep{ID: "lost", Remaining: 2, Position: 6}, *n.Payload.Roll)
	assert.Equal(t, StepDelay(2), n.FireAt.Sub(fc.Now()))
}

func TestStepDelay(t *testing.T) {
	assert.Equal(t, time.Second, StepDelay(1))
	assert.Equal(t, 833*time.Millisecond, StepDelay(2))
	assert.Equal(t, 694*time.Millisecond, StepDelay(3))
	assert.Equal(t, time.Second, StepDelay(0))
	for r := 2; r < 40; r++ {
		assert.LessOrEqual(t, StepDelay(r), StepDelay(r-1))
	}
}
