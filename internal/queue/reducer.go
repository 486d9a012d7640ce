// Package queue implements the playback queue state machine.
//
// Reducer.Reduce is pure: it never mutates its input and the only sources of
// nondeterminism (queue id generation and shuffling) are injectable.
package queue

import (
	"errors"
	"math/rand"

	"github.com/google/uuid"
)

// DefaultMaxItems caps the queue length when no limit is configured.
const DefaultMaxItems = 500

// Repeat modes.
const (
	RepeatOff = "off"
	RepeatAll = "all"
	RepeatOne = "one"
)

// Action types.
const (
	ActionSet           = "set"
	ActionAdd           = "add"
	ActionPlayNext      = "play_next"
	ActionRemove        = "remove"
	ActionMove          = "move"
	ActionNext          = "next"
	ActionPrevious      = "previous"
	ActionJump          = "jump"
	ActionClear         = "clear"
	ActionToggleShuffle = "toggle_shuffle"
	ActionSetRepeat     = "set_repeat"
)

var (
	ErrUnknownAction = errors.New("unknown queue action")
	ErrQueueFull     = errors.New("queue is full")
	ErrOutOfRange    = errors.New("queue index out of range")
	ErrItemNotFound  = errors.New("queue item not found")
	ErrEmptyQueue    = errors.New("queue is empty")
	ErrNoSongs       = errors.New("song_ids must not be empty")
	ErrInvalidRepeat = errors.New("repeat mode must be off, all or one")
	ErrMissingField  = errors.New("action is missing a required field")
)

// Item is one entry of the queue. The same song may be queued twice, each
// occurrence with its own QueueID.
type Item struct {
	QueueID string `json:"queue_id"`
	SongID  uint   `json:"song_id"`
}

// State is the persisted queue of one user.
type State struct {
	Items        []Item `json:"items"`
	CurrentIndex int    `json:"current_index"`
	Shuffle      bool   `json:"shuffle"`
	Repeat       string `json:"repeat"`
	// Original is the pre-shuffle order, kept only while Shuffle is on.
	Original []Item `json:"original,omitempty"`
	Version  int64  `json:"version"`
}

// Empty returns an empty queue.
func Empty() State {
	return State{Items: []Item{}, CurrentIndex: -1, Repeat: RepeatOff}
}

// Current returns the item being played.
func (s State) Current() (Item, bool) {
	if s.CurrentIndex < 0 || s.CurrentIndex >= len(s.Items) {
		return Item{}, false
	}
	return s.Items[s.CurrentIndex], true
}

// SongIDs lists the song ids of the queue in play order.
func (s State) SongIDs() []uint {
	ids := make([]uint, len(s.Items))
	for i, it := range s.Items {
		ids[i] = it.SongID
	}
	return ids
}

func (s State) clone() State {
	out := s
	out.Items = append([]Item{}, s.Items...)
	if s.Original != nil {
		out.Original = append([]Item{}, s.Original...)
	}
	return out
}

func (s State) indexOf(queueID string) int {
	return indexOf(s.Items, queueID)
}

func indexOf(items []Item, queueID string) int {
	for i, it := range items {
		if it.QueueID == queueID {
			return i
		}
	}
	return -1
}

// Action is a queue command. Which fields are read depends on Type.
type Action struct {
	Type       string `json:"type" binding:"required"`
	SongIDs    []uint `json:"song_ids,omitempty"`
	StartIndex *int   `json:"start_index,omitempty"`
	QueueID    string `json:"queue_id,omitempty"`
	From       *int   `json:"from,omitempty"`
	To         *int   `json:"to,omitempty"`
	Index      *int   `json:"index,omitempty"`
	Mode       string `json:"mode,omitempty"`
}

// AddsSongs reports whether the action introduces new song ids.
func (a Action) AddsSongs() bool {
	switch a.Type {
	case ActionSet, ActionAdd, ActionPlayNext:
		return true
	}
	return false
}

// Reducer applies actions to queue states.
type Reducer struct {
	MaxItems int
	// NewID generates queue ids.
	NewID func() string
	// Shuffle permutes n elements in place through swap.
	Shuffle func(n int, swap func(i, j int))
}

// NewReducer returns a reducer with uuid queue ids and math/rand shuffling.
func NewReducer(maxItems int) *Reducer {
	if maxItems <= 0 {
		maxItems = DefaultMaxItems
	}
	return &Reducer{MaxItems: maxItems, NewID: uuid.NewString, Shuffle: rand.Shuffle}
}

func (r *Reducer) items(songIDs []uint) []Item {
	out := make([]Item, len(songIDs))
	for i, id := range songIDs {
		out[i] = Item{QueueID: r.NewID(), SongID: id}
	}
	return out
}

// Reduce returns the state that results from applying a to s. On error s is
// returned unchanged. Every accepted action increments Version.
func (r *Reducer) Reduce(s State, a Action) (State, error) {
	next := s.clone()
	if next.Items == nil {
		next.Items = []Item{}
	}
	if next.Repeat == "" {
		next.Repeat = RepeatOff
	}

	var err error
	switch a.Type {
	case ActionSet:
		err = r.set(&next, a)
	case ActionAdd:
		err = r.add(&next, a)
	case ActionPlayNext:
		err = r.playNext(&next, a)
	case ActionRemove:
		err = remove(&next, a)
	case ActionMove:
		err = move(&next, a)
	case ActionNext:
		err = forward(&next)
	case ActionPrevious:
		err = backward(&next)
	case ActionJump:
		err = jump(&next, a)
	case ActionClear:
		repeat := next.Repeat
		next = Empty()
		next.Repeat = repeat
	case ActionToggleShuffle:
		r.toggleShuffle(&next)
	case ActionSetRepeat:
		err = setRepeat(&next, a)
	default:
		err = ErrUnknownAction
	}
	if err != nil {
		return s, err
	}
	next.Version = s.Version + 1
	return next, nil
}

func (r *Reducer) set(s *State, a Action) error {
	if len(a.SongIDs) > r.MaxItems {
		return ErrQueueFull
	}
	s.Items = r.items(a.SongIDs)
	s.Shuffle = false
	s.Original = nil
	if len(s.Items) == 0 {
		s.CurrentIndex = -1
		return nil
	}
	start := 0
	if a.StartIndex != nil {
		start = *a.StartIndex
	}
	s.CurrentIndex = clamp(start, 0, len(s.Items)-1)
	return nil
}

func (r *Reducer) add(s *State, a Action) error {
	if len(a.SongIDs) == 0 {
		return ErrNoSongs
	}
	if len(s.Items)+len(a.SongIDs) > r.MaxItems {
		return ErrQueueFull
	}
	added := r.items(a.SongIDs)
	s.Items = append(s.Items, added...)
	if s.Shuffle {
		s.Original = append(s.Original, added...)
	}
	if s.CurrentIndex < 0 {
		s.CurrentIndex = 0
	}
	return nil
}

func (r *Reducer) playNext(s *State, a Action) error {
	if len(a.SongIDs) == 0 {
		return ErrNoSongs
	}
	if len(s.Items)+len(a.SongIDs) > r.MaxItems {
		return ErrQueueFull
	}
	added := r.items(a.SongIDs)
	cur, hasCurrent := s.Current()
	s.Items = insert(s.Items, s.CurrentIndex+1, added)
	if s.Shuffle {
		at := len(s.Original)
		if hasCurrent {
			if i := indexOf(s.Original, cur.QueueID); i >= 0 {
				at = i + 1
			}
		}
		s.Original = insert(s.Original, at, added)
	}
	if s.CurrentIndex < 0 {
		s.CurrentIndex = 0
	}
	return nil
}

func remove(s *State, a Action) error {
	if a.QueueID == "" {
		return ErrMissingField
	}
	idx := s.indexOf(a.QueueID)
	if idx < 0 {
		return ErrItemNotFound
	}
	s.Items = append(s.Items[:idx], s.Items[idx+1:]...)
	if i := indexOf(s.Original, a.QueueID); i >= 0 {
		s.Original = append(s.Original[:i], s.Original[i+1:]...)
	}

	switch {
	case len(s.Items) == 0:
		s.CurrentIndex = -1
	case idx < s.CurrentIndex:
		s.CurrentIndex--
	case idx == s.CurrentIndex && s.CurrentIndex >= len(s.Items):
		s.CurrentIndex = len(s.Items) - 1
	}
	return nil
}

func move(s *State, a Action) error {
	if a.From == nil || a.To == nil {
		return ErrMissingField
	}
	from, to := *a.From, *a.To
	if !inRange(from, len(s.Items)) || !inRange(to, len(s.Items)) {
		return ErrOutOfRange
	}
	cur, hasCurrent := s.Current()
	it := s.Items[from]
	s.Items = append(s.Items[:from], s.Items[from+1:]...)
	s.Items = insert(s.Items, to, []Item{it})
	if hasCurrent {
		s.CurrentIndex = s.indexOf(cur.QueueID)
	}
	return nil
}

func forward(s *State) error {
	if len(s.Items) == 0 {
		return ErrEmptyQueue
	}
	switch {
	case s.Repeat == RepeatOne:
	case s.CurrentIndex < len(s.Items)-1:
		s.CurrentIndex++
	case s.Repeat == RepeatAll:
		s.CurrentIndex = 0
	}
	return nil
}

func backward(s *State) error {
	if len(s.Items) == 0 {
		return ErrEmptyQueue
	}
	switch {
	case s.CurrentIndex > 0:
		s.CurrentIndex--
	case s.Repeat == RepeatAll:
		s.CurrentIndex = len(s.Items) - 1
	default:
		s.CurrentIndex = 0
	}
	return nil
}

func jump(s *State, a Action) error {
	if a.Index == nil {
		return ErrMissingField
	}
	if !inRange(*a.Index, len(s.Items)) {
		return ErrOutOfRange
	}
	s.CurrentIndex = *a.Index
	return nil
}

func (r *Reducer) toggleShuffle(s *State) {
	if s.Shuffle {
		cur, hasCurrent := s.Current()
		if s.Original != nil {
			s.Items = s.Original
		}
		s.Original = nil
		s.Shuffle = false
		if hasCurrent {
			s.CurrentIndex = max(s.indexOf(cur.QueueID), 0)
		}
		return
	}

	s.Shuffle = true
	s.Original = append([]Item{}, s.Items...)
	if len(s.Items) == 0 {
		return
	}
	rest := make([]Item, 0, len(s.Items)-1)
	var head []Item
	for i, it := range s.Items {
		if i == s.CurrentIndex {
			head = append(head, it)
			continue
		}
		rest = append(rest, it)
	}
	r.Shuffle(len(rest), func(i, j int) { rest[i], rest[j] = rest[j], rest[i] })
	s.Items = append(head, rest...)
	s.CurrentIndex = 0
}

func setRepeat(s *State, a Action) error {
	switch a.Mode {
	case RepeatOff, RepeatAll, RepeatOne:
		s.Repeat = a.Mode
		return nil
	}
	return ErrInvalidRepeat
}

func insert(items []Item, at int, added []Item) []Item {
	out := make([]Item, 0, len(items)+len(added))
	out = append(out, items[:at]...)
	out = append(out, added...)
	return append(out, items[at:]...)
}

func inRange(i, n int) bool { return i >= 0 && i < n }

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
