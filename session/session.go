package session

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dchest/uniuri"
	"github.com/indigo-web/ember/http/cookie"
	json "github.com/json-iterator/go"
)

// CookieName is the cookie carrying the session identifier.
const CookieName = "SESSIONID"

const idLength = 32

type Session struct {
	ID     string         `json:"id"`
	Values map[string]any `json:"values"`
	// Fresh is set for sessions created during the current request. They must be
	// announced to the client via Set-Cookie.
	Fresh    bool `json:"-"`
	modified bool
}

func (s *Session) Get(key string) (value any, found bool) {
	value, found = s.Values[key]
	return value, found
}

func (s *Session) Set(key string, value any) {
	s.Values[key] = value
	s.modified = true
}

func (s *Session) Delete(key string) {
	delete(s.Values, key)
	s.modified = true
}

// Modified reports whether the session must be persisted.
func (s *Session) Modified() bool {
	return s.modified || s.Fresh
}

// Store persists every session as a separate JSON file in a single directory.
type Store struct {
	dir    string
	maxAge time.Duration
}

func NewStore(dir string, maxAge time.Duration) (*Store, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("session: create directory: %w", err)
	}

	return &Store{dir: dir, maxAge: maxAge}, nil
}

// Load restores the session by its identifier. Unknown, expired or malformed identifiers
// silently result in a fresh session.
func (s *Store) Load(id string) (*Session, error) {
	if !validID(id) {
		return s.fresh(), nil
	}

	path := s.path(id)
	stat, err := os.Stat(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return s.fresh(), nil
	case err != nil:
		return nil, err
	case s.maxAge > 0 && time.Since(stat.ModTime()) > s.maxAge:
		_ = os.Remove(path)
		return s.fresh(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	sess := new(Session)
	if err = json.Unmarshal(data, sess); err != nil || sess.ID != id {
		return s.fresh(), nil
	}

	if sess.Values == nil {
		sess.Values = make(map[string]any)
	}

	return sess, nil
}

// Save writes the session onto the disk if it was modified. The file is replaced
// atomically, so concurrent loads never observe a half-written session.
func (s *Store) Save(sess *Session) error {
	if !sess.Modified() {
		return nil
	}

	data, err := json.Marshal(sess)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.dir, sess.ID+".*.tmp")
	if err != nil {
		return err
	}

	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}

	if err = tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}

	if err = os.Rename(tmp.Name(), s.path(sess.ID)); err != nil {
		return err
	}

	sess.modified = false
	return nil
}

// Destroy removes the session file.
func (s *Store) Destroy(id string) error {
	if !validID(id) {
		return nil
	}

	err := os.Remove(s.path(id))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}

	return err
}

// Cookie returns the cookie announcing the session to the client.
func (s *Store) Cookie(sess *Session) cookie.Cookie {
	c := cookie.Build(CookieName, sess.ID).
		Path("/").
		HttpOnly(true).
		SameSite(cookie.SameSiteLax)

	if s.maxAge > 0 {
		c = c.MaxAge(int(s.maxAge / time.Second))
	}

	return c.Cookie()
}

func (s *Store) fresh() *Session {
	return &Session{
		ID:     uniuri.NewLen(idLength),
		Values: make(map[string]any),
		Fresh:  true,
	}
}

func (s *Store) path(id string) string {
	return filepath.Join(s.dir, id+".json")
}

// validID accepts exactly what uniuri generates, so identifiers never escape the directory.
func validID(id string) bool {
	if len(id) != idLength {
		return false
	}

	for i := 0; i < len(id); i++ {
		switch c := id[i]; {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		default:
			return false
		}
	}

	return true
}
