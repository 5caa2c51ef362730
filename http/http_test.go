package http

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/indigo-web/ember/http/mime"
	"github.com/indigo-web/ember/http/status"
	"github.com/indigo-web/ember/kv"
	"github.com/stretchr/testify/require"
)

func newRequest() *Request {
	return NewRequest(kv.New(), NewResponse(), nil)
}

func TestContentState(t *testing.T) {
	t.Run("monotonic", func(t *testing.T) {
		req := newRequest()
		require.Equal(t, NotLoaded, req.ContentState())
		require.True(t, req.Transition(WantsSave))
		require.False(t, req.Transition(Cached))
		require.True(t, req.Transition(Saved))
		require.False(t, req.Transition(Corrupted))
		require.False(t, req.Transition(NotLoaded))
		require.Equal(t, Saved, req.ContentState())
	})

	t.Run("reset returns to not loaded", func(t *testing.T) {
		req := newRequest()
		require.True(t, req.Transition(PayloadExceeded))
		req.Reset()
		require.Equal(t, NotLoaded, req.ContentState())
		require.Equal(t, int64(-1), req.ContentLength)
	})

	t.Run("failed states", func(t *testing.T) {
		for _, s := range []ContentState{Lost, Corrupted, PayloadExceeded, SaveException} {
			require.True(t, s.Failed(), s.String())
			require.True(t, s.Terminal(), s.String())
		}

		require.False(t, Saved.Failed())
		require.False(t, WantsSave.Terminal())
	})
}

func TestCookies(t *testing.T) {
	req := newRequest()
	req.Headers.Add("Cookie", "a=b; c=d").Add("cookie", "e=f")
	jar, err := req.Cookies()
	require.NoError(t, err)
	require.Equal(t, "b", jar.Value("a"))
	require.Equal(t, "f", jar.Value("e"))

	req.Reset()
	req.Headers.Add("Cookie", "x=y")
	jar, err = req.Cookies()
	require.NoError(t, err)
	require.False(t, jar.Has("a"))
	require.Equal(t, "y", jar.Value("x"))
}

func TestResponse(t *testing.T) {
	t.Run("json", func(t *testing.T) {
		resp := newRequest().Respond().JSON(map[string]int{"answer": 42})
		fields := resp.Reveal()
		require.Equal(t, mime.JSON, fields.ContentType)
		require.Equal(t, `{"answer":42}`, string(fields.Body))
	})

	t.Run("headers", func(t *testing.T) {
		resp := NewResponse().
			Header("X-Multi", "1", "2").
			SetHeader("X-Single", "a").
			SetHeader("x-single", "b")

		fields := resp.Reveal()
		require.Equal(t, 3, fields.Headers.Len())
		require.Equal(t, "b", fields.Headers.Value("X-Single"))
	})

	t.Run("error", func(t *testing.T) {
		resp := NewResponse().Error(status.ErrNotFound)
		require.Equal(t, status.NotFound, resp.Reveal().Code)
		resp = NewResponse().Error(os.ErrClosed)
		require.Equal(t, status.InternalServerError, resp.Reveal().Code)
		resp = NewResponse().Drop()
		require.Equal(t, status.Silent, resp.Reveal().Code)
	})

	t.Run("file", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "index.html")
		require.NoError(t, os.WriteFile(path, []byte("<h1>hi</h1>"), 0o644))

		resp := NewResponse().File(path, 1024)
		fields := resp.Reveal()
		require.Equal(t, status.OK, fields.Code)
		require.Equal(t, mime.HTML, fields.ContentType)
		require.Equal(t, "<h1>hi</h1>", string(fields.Body))
		require.False(t, fields.Streamed())

		big := filepath.Join(dir, "big.bin")
		require.NoError(t, os.WriteFile(big, []byte(strings.Repeat("a", 2048)), 0o644))
		resp = NewResponse().File(big, 1024)
		fields = resp.Reveal()
		require.True(t, fields.Streamed())
		require.Equal(t, int64(2048), fields.FileSize)
		resp.Clear()

		resp = NewResponse().File(filepath.Join(dir, "missing"), 1024)
		require.Equal(t, status.NotFound, resp.Reveal().Code)
	})
}

func TestParams(t *testing.T) {
	req := newRequest()
	req.Query = "name=J%C3%B6rg&tags=a&tags=b+c"

	params, err := req.Params()
	require.NoError(t, err)
	require.Equal(t, "Jörg", params.Value("name"))
	require.Equal(t, 3, params.Len())

	req.Reset()
	req.Query = "x=%zz"
	_, err = req.Params()
	require.ErrorIs(t, err, status.ErrURIDecoding)
}

func TestForm(t *testing.T) {
	req := newRequest()
	req.ContentType = "application/x-www-form-urlencoded; charset=utf-8"
	req.Body = []byte("login=admin&password=p%40ss")

	form, err := req.Form()
	require.NoError(t, err)
	require.Equal(t, "admin", form.Value("login"))
	require.Equal(t, "p@ss", form.Value("password"))

	req.Reset()
	req.ContentType = mime.JSON
	_, err = req.Form()
	require.ErrorIs(t, err, status.ErrUnsupportedEncoding)
}
