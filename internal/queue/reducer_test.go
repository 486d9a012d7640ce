package queue

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestReducer numbers queue ids q1, q2, ... and shuffles by reversing.
func newTestReducer(max int) *Reducer {
	n := 0
	return &Reducer{
		MaxItems: max,
		NewID: func() string {
			n++
			return fmt.Sprintf("q%d", n)
		},
		Shuffle: func(n int, swap func(i, j int)) {
			for i := 0; i < n/2; i++ {
				swap(i, n-1-i)
			}
		},
	}
}

func intp(v int) *int { return &v }

func mustReduce(t *testing.T, r *Reducer, s State, a Action) State {
	t.Helper()
	next, err := r.Reduce(s, a)
	require.NoError(t, err)
	return next
}

func TestSet(t *testing.T) {
	r := newTestReducer(10)

	s := mustReduce(t, r, Empty(), Action{Type: ActionSet, SongIDs: []uint{1, 2, 3}, StartIndex: intp(1)})
	assert.Equal(t, []uint{1, 2, 3}, s.SongIDs())
	assert.Equal(t, 1, s.CurrentIndex)
	assert.Equal(t, int64(1), s.Version)
	assert.Equal(t, RepeatOff, s.Repeat)

	t.Run("start index is clamped", func(t *testing.T) {
		s := mustReduce(t, r, Empty(), Action{Type: ActionSet, SongIDs: []uint{1, 2}, StartIndex: intp(9)})
		assert.Equal(t, 1, s.CurrentIndex)
		s = mustReduce(t, r, Empty(), Action{Type: ActionSet, SongIDs: []uint{1, 2}, StartIndex: intp(-4)})
		assert.Equal(t, 0, s.CurrentIndex)
	})

	t.Run("empty set empties the queue", func(t *testing.T) {
		next := mustReduce(t, r, s, Action{Type: ActionSet})
		assert.Empty(t, next.Items)
		assert.Equal(t, -1, next.CurrentIndex)
	})

	t.Run("set turns shuffle off", func(t *testing.T) {
		shuffled := mustReduce(t, r, s, Action{Type: ActionToggleShuffle})
		require.True(t, shuffled.Shuffle)
		next := mustReduce(t, r, shuffled, Action{Type: ActionSet, SongIDs: []uint{7}})
		assert.False(t, next.Shuffle)
		assert.Nil(t, next.Original)
	})

	t.Run("over the limit", func(t *testing.T) {
		_, err := newTestReducer(2).Reduce(Empty(), Action{Type: ActionSet, SongIDs: []uint{1, 2, 3}})
		assert.ErrorIs(t, err, ErrQueueFull)
	})
}

func TestReduceDoesNotMutateInput(t *testing.T) {
	r := newTestReducer(10)
	s := mustReduce(t, r, Empty(), Action{Type: ActionSet, SongIDs: []uint{1, 2, 3}})
	before := s.clone()

	_ = mustReduce(t, r, s, Action{Type: ActionRemove, QueueID: s.Items[0].QueueID})
	_ = mustReduce(t, r, s, Action{Type: ActionMove, From: intp(0), To: intp(2)})
	_ = mustReduce(t, r, s, Action{Type: ActionToggleShuffle})

	assert.Equal(t, before, s)
}

func TestAddAndPlayNext(t *testing.T) {
	r := newTestReducer(5)

	s := mustReduce(t, r, Empty(), Action{Type: ActionAdd, SongIDs: []uint{1}})
	assert.Equal(t, 0, s.CurrentIndex, "adding to an empty queue selects the first item")

	s = mustReduce(t, r, s, Action{Type: ActionAdd, SongIDs: []uint{2, 3}})
	assert.Equal(t, []uint{1, 2, 3}, s.SongIDs())

	s = mustReduce(t, r, s, Action{Type: ActionPlayNext, SongIDs: []uint{9}})
	assert.Equal(t, []uint{1, 9, 2, 3}, s.SongIDs())
	assert.Equal(t, 0, s.CurrentIndex)

	_, err := r.Reduce(s, Action{Type: ActionAdd, SongIDs: []uint{4, 5}})
	assert.ErrorIs(t, err, ErrQueueFull)

	_, err = r.Reduce(s, Action{Type: ActionAdd})
	assert.ErrorIs(t, err, ErrNoSongs)

	t.Run("shuffled add also extends the original order", func(t *testing.T) {
		shuffled := mustReduce(t, r, Empty(), Action{Type: ActionSet, SongIDs: []uint{1, 2}})
		shuffled = mustReduce(t, r, shuffled, Action{Type: ActionToggleShuffle})
		shuffled = mustReduce(t, r, shuffled, Action{Type: ActionAdd, SongIDs: []uint{3}})
		require.Len(t, shuffled.Original, 3)
		assert.Equal(t, uint(3), shuffled.Original[2].SongID)
	})
}

func TestRemove(t *testing.T) {
	r := newTestReducer(10)
	base := mustReduce(t, r, Empty(), Action{Type: ActionSet, SongIDs: []uint{1, 2, 3, 4}, StartIndex: intp(2)})

	t.Run("before current shifts current left", func(t *testing.T) {
		s := mustReduce(t, r, base, Action{Type: ActionRemove, QueueID: base.Items[0].QueueID})
		assert.Equal(t, []uint{2, 3, 4}, s.SongIDs())
		assert.Equal(t, 1, s.CurrentIndex)
		cur, _ := s.Current()
		assert.Equal(t, uint(3), cur.SongID)
	})

	t.Run("current keeps the index so the next item plays", func(t *testing.T) {
		s := mustReduce(t, r, base, Action{Type: ActionRemove, QueueID: base.Items[2].QueueID})
		assert.Equal(t, 2, s.CurrentIndex)
		cur, _ := s.Current()
		assert.Equal(t, uint(4), cur.SongID)
	})

	t.Run("current at the end is clamped", func(t *testing.T) {
		last := mustReduce(t, r, base, Action{Type: ActionJump, Index: intp(3)})
		s := mustReduce(t, r, last, Action{Type: ActionRemove, QueueID: last.Items[3].QueueID})
		assert.Equal(t, 2, s.CurrentIndex)
	})

	t.Run("after current leaves it alone", func(t *testing.T) {
		s := mustReduce(t, r, base, Action{Type: ActionRemove, QueueID: base.Items[3].QueueID})
		assert.Equal(t, 2, s.CurrentIndex)
	})

	t.Run("last item empties the queue", func(t *testing.T) {
		one := mustReduce(t, r, Empty(), Action{Type: ActionSet, SongIDs: []uint{1}})
		s := mustReduce(t, r, one, Action{Type: ActionRemove, QueueID: one.Items[0].QueueID})
		assert.Equal(t, -1, s.CurrentIndex)
		assert.Empty(t, s.Items)
	})

	t.Run("unknown queue id", func(t *testing.T) {
		_, err := r.Reduce(base, Action{Type: ActionRemove, QueueID: "nope"})
		assert.ErrorIs(t, err, ErrItemNotFound)
	})
}

func TestMove(t *testing.T) {
	r := newTestReducer(10)
	s := mustReduce(t, r, Empty(), Action{Type: ActionSet, SongIDs: []uint{1, 2, 3, 4}, StartIndex: intp(1)})

	moved := mustReduce(t, r, s, Action{Type: ActionMove, From: intp(1), To: intp(3)})
	assert.Equal(t, []uint{1, 3, 4, 2}, moved.SongIDs())
	assert.Equal(t, 3, moved.CurrentIndex, "current index follows the playing item")

	moved = mustReduce(t, r, s, Action{Type: ActionMove, From: intp(3), To: intp(0)})
	assert.Equal(t, []uint{4, 1, 2, 3}, moved.SongIDs())
	assert.Equal(t, 2, moved.CurrentIndex)

	_, err := r.Reduce(s, Action{Type: ActionMove, From: intp(0), To: intp(4)})
	assert.ErrorIs(t, err, ErrOutOfRange)
	_, err = r.Reduce(s, Action{Type: ActionMove, From: intp(0)})
	assert.ErrorIs(t, err, ErrMissingField)
}

func TestNextPrevious(t *testing.T) {
	r := newTestReducer(10)
	s := mustReduce(t, r, Empty(), Action{Type: ActionSet, SongIDs: []uint{1, 2, 3}})

	s = mustReduce(t, r, s, Action{Type: ActionNext})
	s = mustReduce(t, r, s, Action{Type: ActionNext})
	assert.Equal(t, 2, s.CurrentIndex)

	s = mustReduce(t, r, s, Action{Type: ActionNext})
	assert.Equal(t, 2, s.CurrentIndex, "repeat off stays on the last item")

	all := mustReduce(t, r, s, Action{Type: ActionSetRepeat, Mode: RepeatAll})
	all = mustReduce(t, r, all, Action{Type: ActionNext})
	assert.Equal(t, 0, all.CurrentIndex)
	all = mustReduce(t, r, all, Action{Type: ActionPrevious})
	assert.Equal(t, 2, all.CurrentIndex, "repeat all wraps backwards")

	one := mustReduce(t, r, s, Action{Type: ActionSetRepeat, Mode: RepeatOne})
	one = mustReduce(t, r, one, Action{Type: ActionJump, Index: intp(1)})
	one = mustReduce(t, r, one, Action{Type: ActionNext})
	assert.Equal(t, 1, one.CurrentIndex)

	first := mustReduce(t, r, s, Action{Type: ActionJump, Index: intp(0)})
	first = mustReduce(t, r, first, Action{Type: ActionPrevious})
	assert.Equal(t, 0, first.CurrentIndex)

	_, err := r.Reduce(Empty(), Action{Type: ActionNext})
	assert.ErrorIs(t, err, ErrEmptyQueue)
}

func TestJump(t *testing.T) {
	r := newTestReducer(10)
	s := mustReduce(t, r, Empty(), Action{Type: ActionSet, SongIDs: []uint{1, 2}})

	_, err := r.Reduce(s, Action{Type: ActionJump, Index: intp(2)})
	assert.ErrorIs(t, err, ErrOutOfRange)
	_, err = r.Reduce(s, Action{Type: ActionJump, Index: intp(-1)})
	assert.ErrorIs(t, err, ErrOutOfRange)
	_, err = r.Reduce(s, Action{Type: ActionJump})
	assert.ErrorIs(t, err, ErrMissingField)
}

func TestClearKeepsRepeat(t *testing.T) {
	r := newTestReducer(10)
	s := mustReduce(t, r, Empty(), Action{Type: ActionSet, SongIDs: []uint{1, 2}})
	s = mustReduce(t, r, s, Action{Type: ActionSetRepeat, Mode: RepeatAll})

	cleared := mustReduce(t, r, s, Action{Type: ActionClear})
	assert.Empty(t, cleared.Items)
	assert.Equal(t, -1, cleared.CurrentIndex)
	assert.Equal(t, RepeatAll, cleared.Repeat)
	assert.Equal(t, s.Version+1, cleared.Version)
}

func TestToggleShuffle(t *testing.T) {
	r := newTestReducer(10)
	s := mustReduce(t, r, Empty(), Action{Type: ActionSet, SongIDs: []uint{1, 2, 3, 4}, StartIndex: intp(2)})

	on := mustReduce(t, r, s, Action{Type: ActionToggleShuffle})
	assert.True(t, on.Shuffle)
	assert.Equal(t, 0, on.CurrentIndex)
	assert.Equal(t, []uint{3, 4, 2, 1}, on.SongIDs(), "current first, rest shuffled")
	assert.Equal(t, s.Items, on.Original)

	on = mustReduce(t, r, on, Action{Type: ActionNext})
	cur, _ := on.Current()
	require.Equal(t, uint(4), cur.SongID)

	off := mustReduce(t, r, on, Action{Type: ActionToggleShuffle})
	assert.False(t, off.Shuffle)
	assert.Nil(t, off.Original)
	assert.Equal(t, []uint{1, 2, 3, 4}, off.SongIDs())
	assert.Equal(t, 3, off.CurrentIndex, "current item is re-located in the original order")
}

func TestSetRepeatAndUnknown(t *testing.T) {
	r := newTestReducer(10)

	_, err := r.Reduce(Empty(), Action{Type: ActionSetRepeat, Mode: "sometimes"})
	assert.ErrorIs(t, err, ErrInvalidRepeat)

	s, err := r.Reduce(Empty(), Action{Type: "dance"})
	assert.ErrorIs(t, err, ErrUnknownAction)
	assert.Equal(t, int64(0), s.Version)
}

func TestRestore(t *testing.T) {
	r := newTestReducer(10)

	t.Run("drops unknown songs and re-locates current", func(t *testing.T) {
		s := State{
			Items:        []Item{{"a", 1}, {"b", 2}, {"c", 3}},
			CurrentIndex: 2,
			Repeat:       RepeatAll,
		}
		out := r.Restore(s, map[uint]bool{2: true, 3: true})
		assert.Equal(t, []uint{2, 3}, out.SongIDs())
		assert.Equal(t, 1, out.CurrentIndex)
		assert.Equal(t, RepeatAll, out.Repeat)
	})

	t.Run("current song gone clamps the index", func(t *testing.T) {
		s := State{Items: []Item{{"a", 1}, {"b", 2}}, CurrentIndex: 1}
		out := r.Restore(s, map[uint]bool{1: true})
		assert.Equal(t, 0, out.CurrentIndex)
	})

	t.Run("duplicate and empty queue ids are regenerated", func(t *testing.T) {
		s := State{Items: []Item{{"a", 1}, {"a", 1}, {"", 2}}, CurrentIndex: 0}
		out := r.Restore(s, map[uint]bool{1: true, 2: true})
		require.Len(t, out.Items, 3)
		ids := map[string]bool{}
		for _, it := range out.Items {
			assert.NotEmpty(t, it.QueueID)
			ids[it.QueueID] = true
		}
		assert.Len(t, ids, 3)
	})

	t.Run("nothing left", func(t *testing.T) {
		out := r.Restore(State{Items: []Item{{"a", 1}}, CurrentIndex: 0, Repeat: "bogus"}, map[uint]bool{})
		assert.Equal(t, -1, out.CurrentIndex)
		assert.Equal(t, RepeatOff, out.Repeat)
	})

	t.Run("stale original order is rebuilt", func(t *testing.T) {
		s := State{
			Items:        []Item{{"b", 2}, {"a", 1}},
			Original:     []Item{{"a", 1}, {"x", 9}},
			Shuffle:      true,
			CurrentIndex: 0,
		}
		out := r.Restore(s, map[uint]bool{1: true, 2: true})
		assert.Equal(t, out.Items, out.Original)
	})
}

func TestRestoreTrimsToMaxItems(t *testing.T) {
	r := newTestReducer(3)
	known := map[uint]bool{1: true, 2: true, 3: true, 4: true, 5: true, 6: true}
	items := []Item{{"a", 1}, {"b", 2}, {"c", 3}, {"d", 4}, {"e", 5}, {"f", 6}}

	t.Run("played items go first", func(t *testing.T) {
		out := r.Restore(State{Items: items, CurrentIndex: 2}, known)
		assert.Equal(t, []uint{3, 4, 5}, out.SongIDs())
		assert.Equal(t, 0, out.CurrentIndex)
	})

	t.Run("near the end keeps the tail", func(t *testing.T) {
		out := r.Restore(State{Items: items, CurrentIndex: 4}, known)
		assert.Equal(t, []uint{4, 5, 6}, out.SongIDs())
		assert.Equal(t, 1, out.CurrentIndex)
	})

	t.Run("restored queue accepts edits", func(t *testing.T) {
		out := r.Restore(State{Items: items, CurrentIndex: 0}, known)
		require.Len(t, out.Items, 3)
		_, err := r.Reduce(out, Action{Type: ActionRemove, QueueID: out.Items[2].QueueID})
		require.NoError(t, err)
	})
}
