// Package learner persists per-player state for the course player: lesson
// notes, the discussion thread and the resume point. Everything is stored
// as strings in a kv.Store so any backend can hold it.
package learner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/JonMunkholm/coursedesk/internal/kv"
)

// ErrEmptyComment is returned when a comment has no text after trimming.
var ErrEmptyComment = errors.New("comment text is empty")

const (
	// CommentAuthor is the author recorded on every local comment.
	CommentAuthor = "You"

	// CommentWhen is the relative timestamp shown on new comments.
	CommentWhen = "now"
)

// Comment is one discussion entry.
type Comment struct {
	ID     string `json:"id"`
	Author string `json:"author"`
	Text   string `json:"text"`
	When   string `json:"when"`
}

// State is where the player was left: the selected lesson and playback time
// in seconds.
type State struct {
	SelectedID string  `json:"selectedId"`
	Time       float64 `json:"time"`
}

// Store reads and writes learner data.
type Store struct {
	kv kv.Store
}

// NewStore returns a learner store over s.
func NewStore(s kv.Store) *Store {
	return &Store{kv: s}
}

// Notes returns the saved notes for a lesson, or "" when none exist.
func (s *Store) Notes(ctx context.Context, playerID, lessonID string) (string, error) {
	v, err := kv.GetOr(ctx, s.kv, kv.NotesKey(playerID, lessonID), "")
	if err != nil {
		return "", fmt.Errorf("load notes: %w", err)
	}
	return v, nil
}

// SaveNotes overwrites the notes for a lesson. Empty text clears them.
func (s *Store) SaveNotes(ctx context.Context, playerID, lessonID, text string) error {
	key := kv.NotesKey(playerID, lessonID)
	var err error
	if text == "" {
		err = s.kv.Remove(ctx, key)
	} else {
		err = s.kv.Set(ctx, key, text)
	}
	if err != nil {
		return fmt.Errorf("save notes: %w", err)
	}
	return nil
}

// Discussion returns the thread, newest first.
func (s *Store) Discussion(ctx context.Context, playerID string) ([]Comment, error) {
	raw, err := s.kv.Get(ctx, kv.DiscussionKey(playerID))
	if errors.Is(err, kv.ErrNotFound) {
		return []Comment{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load discussion: %w", err)
	}
	var out []Comment
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("decode discussion: %w", err)
	}
	if out == nil {
		out = []Comment{}
	}
	return out, nil
}

// AddComment prepends a comment by CommentAuthor and returns it.
func (s *Store) AddComment(ctx context.Context, playerID, text string) (Comment, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Comment{}, ErrEmptyComment
	}

	thread, err := s.Discussion(ctx, playerID)
	if err != nil {
		return Comment{}, err
	}
	c := Comment{ID: uuid.NewString(), Author: CommentAuthor, Text: text, When: CommentWhen}
	thread = append([]Comment{c}, thread...)

	data, err := json.Marshal(thread)
	if err != nil {
		return Comment{}, fmt.Errorf("encode discussion: %w", err)
	}
	if err := s.kv.Set(ctx, kv.DiscussionKey(playerID), string(data)); err != nil {
		return Comment{}, fmt.Errorf("save discussion: %w", err)
	}
	return c, nil
}

// State returns the resume point. ok is false when nothing was saved.
func (s *Store) State(ctx context.Context, playerID string) (st State, ok bool, err error) {
	raw, err := s.kv.Get(ctx, kv.PlayerKey(playerID))
	if errors.Is(err, kv.ErrNotFound) {
		return State{}, false, nil
	}
	if err != nil {
		return State{}, false, fmt.Errorf("load player state: %w", err)
	}
	if err := json.Unmarshal([]byte(raw), &st); err != nil {
		return State{}, false, fmt.Errorf("decode player state: %w", err)
	}
	return st, true, nil
}

// SaveState records the resume point. Negative times are clamped to zero.
func (s *Store) SaveState(ctx context.Context, playerID string, st State) error {
	if st.Time < 0 {
		st.Time = 0
	}
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode player state: %w", err)
	}
	if err := s.kv.Set(ctx, kv.PlayerKey(playerID), string(data)); err != nil {
		return fmt.Errorf("save player state: %w", err)
	}
	return nil
}
