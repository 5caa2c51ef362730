package session

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestStore(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir, time.Hour)
	require.NoError(t, err)

	t.Run("fresh session on unknown id", func(t *testing.T) {
		for _, id := range []string{"", "../../etc/passwd", "short"} {
			sess, err := store.Load(id)
			require.NoError(t, err)
			require.True(t, sess.Fresh)
			require.Len(t, sess.ID, idLength)
		}
	})

	t.Run("persist and restore", func(t *testing.T) {
		sess, err := store.Load("")
		require.NoError(t, err)
		sess.Set("user", "pavlo")
		require.NoError(t, store.Save(sess))

		restored, err := store.Load(sess.ID)
		require.NoError(t, err)
		require.False(t, restored.Fresh)
		value, found := restored.Get("user")
		require.True(t, found)
		require.Equal(t, "pavlo", value)
		require.False(t, restored.Modified())
	})

	t.Run("destroy", func(t *testing.T) {
		sess, err := store.Load("")
		require.NoError(t, err)
		require.NoError(t, store.Save(sess))
		require.NoError(t, store.Destroy(sess.ID))
		_, err = os.Stat(filepath.Join(dir, sess.ID+".json"))
		require.ErrorIs(t, err, os.ErrNotExist)
		require.NoError(t, store.Destroy(sess.ID))
	})

	t.Run("cookie", func(t *testing.T) {
		sess, err := store.Load("")
		require.NoError(t, err)
		c := store.Cookie(sess)
		require.Equal(t, CookieName, c.Name)
		require.Equal(t, sess.ID, c.Value)
		require.Equal(t, 3600, c.MaxAge)
		require.True(t, c.HttpOnly)
	})
}

func TestExpiry(t *testing.T) {
	store, err := NewStore(t.TempDir(), time.Millisecond)
	require.NoError(t, err)

	sess, err := store.Load("")
	require.NoError(t, err)
	require.NoError(t, store.Save(sess))
	time.Sleep(10 * time.Millisecond)

	restored, err := store.Load(sess.ID)
	require.NoError(t, err)
	require.True(t, restored.Fresh)
	require.NotEqual(t, sess.ID, restored.ID)
}
