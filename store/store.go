// Package store persists plugin documents. A document is a JSON encoded Go value addressed by a Key.
// Every read-modify-write goes through Update, which holds an exclusive lock on the document for the duration
// of the mutation, so concurrent writers to the same document serialize while unrelated documents never wait on
// each other.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
)

// Scope partitions a plugin's documents.
type Scope string

const (
	ScopeGlobal Scope = "global"
	ScopeGuild  Scope = "guild"
	ScopeMember Scope = "member"
	ScopeUser   Scope = "user"
)

var ErrNoPlugin = errors.New("key has no plugin")

// Key addresses a single document.
type Key struct {
	Plugin  string
	Scope   Scope
	GuildID string
	UserID  string
}

func GlobalKey(plugin string) Key {
	return Key{Plugin: plugin, Scope: ScopeGlobal}
}

func GuildKey(plugin string, guildID string) Key {
	return Key{Plugin: plugin, Scope: ScopeGuild, GuildID: guildID}
}

func MemberKey(plugin string, guildID string, userID string) Key {
	return Key{Plugin: plugin, Scope: ScopeMember, GuildID: guildID, UserID: userID}
}

func UserKey(plugin string, userID string) Key {
	return Key{Plugin: plugin, Scope: ScopeUser, UserID: userID}
}

// String renders the key as the backend identifier, e.g. "afk/member/<guild>/<user>".
func (k Key) String() string {
	parts := []string{k.Plugin, string(k.Scope)}
	switch k.Scope {
	case ScopeGuild:
		parts = append(parts, k.GuildID)
	case ScopeMember:
		parts = append(parts, k.GuildID, k.UserID)
	case ScopeUser:
		parts = append(parts, k.UserID)
	}

	return strings.Join(parts, "/")
}

// ParseKey is the inverse of Key.String.
func ParseKey(s string) (Key, error) {
	parts := strings.Split(s, "/")
	if len(parts) < 2 || parts[0] == "" {
		return Key{}, fmt.Errorf("malformed key %q", s)
	}

	k := Key{Plugin: parts[0], Scope: Scope(parts[1])}
	switch {
	case k.Scope == ScopeGlobal && len(parts) == 2:
	case k.Scope == ScopeGuild && len(parts) == 3:
		k.GuildID = parts[2]
	case k.Scope == ScopeMember && len(parts) == 4:
		k.GuildID, k.UserID = parts[2], parts[3]
	case k.Scope == ScopeUser && len(parts) == 3:
		k.UserID = parts[2]
	default:
		return Key{}, fmt.Errorf("malformed key %q", s)
	}

	return k, nil
}

// Defaulter is implemented by documents that need non-zero defaults. SetDefaults is called on a fresh value before
// any stored data is decoded into it.
type Defaulter interface {
	SetDefaults()
}

// Backend is the raw persistence layer behind a Store.
type Backend interface {
	Load(ctx context.Context, key string) ([]byte, bool, error)
	Save(ctx context.Context, key string, data []byte) error
	Delete(ctx context.Context, key string) error
	List(ctx context.Context, prefix string) ([]string, error)
	Close() error
}

type docLock struct {
	mu   sync.Mutex
	refs int
}

// Store hands out locked access to documents held by a Backend.
type Store struct {
	backend Backend

	mu    sync.Mutex
	locks map[string]*docLock
}

func New(backend Backend) *Store {
	return &Store{
		backend: backend,
		locks:   make(map[string]*docLock),
	}
}

// Open creates a Store on top of the backend named by driver ("sqlite" or "json").
func Open(driver string, path string) (*Store, error) {
	var backend Backend
	var err error

	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", "sqlite":
		backend, err = OpenSQLite(path)
	case "json":
		backend, err = OpenJSON(path)
	default:
		return nil, fmt.Errorf("unknown store driver %q", driver)
	}
	if err != nil {
		return nil, err
	}

	return New(backend), nil
}

func (s *Store) Close() error {
	if s == nil || s.backend == nil {
		return nil
	}
	return s.backend.Close()
}

func (s *Store) lock(key string) func() {
	s.mu.Lock()
	l, ok := s.locks[key]
	if !ok {
		l = &docLock{}
		s.locks[key] = l
	}
	l.refs++
	s.mu.Unlock()

	l.mu.Lock()

	return func() {
		l.mu.Unlock()

		s.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, key)
		}
		s.mu.Unlock()
	}
}

func load[T any](ctx context.Context, s *Store, key string) (*T, bool, error) {
	doc := new(T)
	if d, ok := any(doc).(Defaulter); ok {
		d.SetDefaults()
	}

	data, found, err := s.backend.Load(ctx, key)
	if err != nil {
		return nil, false, fmt.Errorf("load %s: %w", key, err)
	}
	if !found {
		return doc, false, nil
	}

	if err = json.Unmarshal(data, doc); err != nil {
		return nil, false, fmt.Errorf("decode %s: %w", key, err)
	}

	return doc, true, nil
}

// Update runs fn with exclusive access to the document at key. The document is created lazily: a missing document is
// handed to fn with its defaults applied. The (possibly mutated) document is persisted only when fn returns nil; an
// error from fn is returned as is.
func Update[T any](ctx context.Context, s *Store, key Key, fn func(doc *T) error) error {
	if key.Plugin == "" {
		return ErrNoPlugin
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	k := key.String()
	unlock := s.lock(k)
	defer unlock()

	doc, _, err := load[T](ctx, s, k)
	if err != nil {
		return err
	}

	if err = fn(doc); err != nil {
		return err
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode %s: %w", k, err)
	}

	if err = s.backend.Save(ctx, k, data); err != nil {
		return fmt.Errorf("save %s: %w", k, err)
	}

	return nil
}

// View returns a copy of the document at key. Missing documents come back with their defaults applied.
func View[T any](ctx context.Context, s *Store, key Key) (T, error) {
	var zero T
	if key.Plugin == "" {
		return zero, ErrNoPlugin
	}
	if err := ctx.Err(); err != nil {
		return zero, err
	}

	k := key.String()
	unlock := s.lock(k)
	defer unlock()

	doc, _, err := load[T](ctx, s, k)
	if err != nil {
		return zero, err
	}

	return *doc, nil
}

// Exists reports whether a document has ever been persisted at key.
func (s *Store) Exists(ctx context.Context, key Key) (bool, error) {
	_, found, err := s.backend.Load(ctx, key.String())
	return found, err
}

// Delete removes the document at key. Deleting a missing document is not an error.
func (s *Store) Delete(ctx context.Context, key Key) error {
	k := key.String()
	unlock := s.lock(k)
	defer unlock()

	if err := s.backend.Delete(ctx, k); err != nil {
		return fmt.Errorf("delete %s: %w", k, err)
	}

	return nil
}

// Keys lists every persisted document of a plugin within a scope.
func (s *Store) Keys(ctx context.Context, plugin string, scope Scope) ([]Key, error) {
	prefix := plugin + "/" + string(scope)
	raw, err := s.backend.List(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", prefix, err)
	}

	keys := make([]Key, 0, len(raw))
	for _, r := range raw {
		k, err := ParseKey(r)
		if err != nil || k.Plugin != plugin || k.Scope != scope {
			continue
		}
		keys = append(keys, k)
	}

	return keys, nil
}

// GuildIDs lists the guilds that have a guild scoped document for plugin.
func (s *Store) GuildIDs(ctx context.Context, plugin string) ([]string, error) {
	keys, err := s.Keys(ctx, plugin, ScopeGuild)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(keys))
	for _, k := range keys {
		ids = append(ids, k.GuildID)
	}

	return ids, nil
}

// Count returns the number of persisted documents of a plugin across all scopes.
func (s *Store) Count(ctx context.Context, plugin string) (int, error) {
	raw, err := s.backend.List(ctx, plugin+"/")
	if err != nil {
		return 0, err
	}
	return len(raw), nil
}
