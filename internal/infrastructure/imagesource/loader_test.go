package imagesource

import (
	"context"
	"encoding/base64"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"nanobot/internal/domain"
	"nanobot/internal/infrastructure/httpsession"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func newTestLoader(downgrade bool) *Loader {
	return NewLoader(httpsession.New(&http.Client{Timeout: 5 * time.Second}, zerolog.Nop()), downgrade, zerolog.Nop())
}

func TestLoader_LocalFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.png")
	require.NoError(t, os.WriteFile(path, []byte("png-bytes"), 0o600))

	data, err := newTestLoader(false).Load(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, []byte("png-bytes"), data)
}

func TestLoader_RemoteURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok.png":
			w.Write([]byte("remote-bytes"))
		case "/empty.png":
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	l := newTestLoader(false)

	data, err := l.Load(context.Background(), srv.URL+"/ok.png")
	require.NoError(t, err)
	assert.Equal(t, []byte("remote-bytes"), data)

	_, err = l.Load(context.Background(), srv.URL+"/empty.png")
	assert.ErrorIs(t, err, domain.ErrSourceNotFound)
	assert.ErrorIs(t, err, domain.ErrDownloadFailure)

	_, err = l.Load(context.Background(), srv.URL+"/missing.png")
	assert.ErrorIs(t, err, domain.ErrSourceNotFound)
}

func TestLoader_InsecureDowngrade(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("plain-http"))
	}))
	defer srv.Close()

	httpsURL := "https://" + strings.TrimPrefix(srv.URL, "http://") + "/a.png"

	data, err := newTestLoader(true).Load(context.Background(), httpsURL)
	require.NoError(t, err)
	assert.Equal(t, []byte("plain-http"), data)

	// 書き換えが無効な場合はTLSハンドシェイクに失敗する
	_, err = newTestLoader(false).Load(context.Background(), httpsURL)
	assert.ErrorIs(t, err, domain.ErrSourceNotFound)
}

func TestLoader_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := newTestLoader(false).Load(context.Background(), url+"/a.png")
	assert.ErrorIs(t, err, domain.ErrSourceNotFound)
}

func TestLoader_InlineBase64(t *testing.T) {
	l := newTestLoader(false)

	data, err := l.Load(context.Background(), "base64://"+base64.StdEncoding.EncodeToString([]byte("hello")))
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), data)

	_, err = l.Load(context.Background(), "base64://!!!not-base64")
	assert.ErrorIs(t, err, domain.ErrDecodeFailure)
	assert.NotErrorIs(t, err, domain.ErrSourceNotFound)
}

func TestLoader_Unresolved(t *testing.T) {
	_, err := newTestLoader(false).Load(context.Background(), "ftp://x/y.png")
	assert.ErrorIs(t, err, domain.ErrSourceNotFound)
}

func TestLoader_Base64RoundTrip(t *testing.T) {
	l := newTestLoader(false)

	rapid.Check(t, func(rt *rapid.T) {
		raw := rapid.SliceOf(rapid.Byte()).Draw(rt, "raw")
		encoded := base64.StdEncoding.EncodeToString(raw)

		data, err := l.Load(context.Background(), "base64://"+encoded)
		if err != nil {
			rt.Fatalf("デコードに失敗: %v", err)
		}
		if got := base64.StdEncoding.EncodeToString(data); got != encoded {
			rt.Fatalf("往復結果が一致しません: %q != %q", got, encoded)
		}
	})
}

func TestAvatarFetcher_URL(t *testing.T) {
	a := NewAvatarFetcher(newTestLoader(false), "http://avatar/%s", time.Second, rand.New(rand.NewPCG(1, 2)), zerolog.Nop())

	assert.Equal(t, "http://avatar/12345", a.URL("12345"))

	url := a.URL("not-a-number")
	id := strings.TrimPrefix(url, "http://avatar/")
	assert.Len(t, id, placeholderDigits)
	assert.True(t, isNumeric(id), "置き換えIDが数字ではありません: %s", id)

	// 同じシードなら同じ置き換えIDになる
	b := NewAvatarFetcher(newTestLoader(false), "http://avatar/%s", time.Second, rand.New(rand.NewPCG(1, 2)), zerolog.Nop())
	assert.Equal(t, url, b.URL("not-a-number"))
}

func TestAvatarFetcher_Fetch(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.RawQuery
		w.Write([]byte("avatar"))
	}))
	defer srv.Close()

	a := NewAvatarFetcher(newTestLoader(false), srv.URL+"/headimg_dl?dst_uin=%s&spec=640", time.Second, nil, zerolog.Nop())

	data, err := a.Fetch(context.Background(), "42")
	require.NoError(t, err)
	assert.Equal(t, []byte("avatar"), data)
	assert.Equal(t, "dst_uin=42&spec=640", gotPath)
}

func TestLoader_ClosedSession(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Write([]byte("img"))
	}))
	defer srv.Close()

	session := httpsession.New(&http.Client{Timeout: 5 * time.Second}, zerolog.Nop())
	l := NewLoader(session, false, zerolog.Nop())
	a := NewAvatarFetcher(l, srv.URL+"/avatar/%s", time.Second, nil, zerolog.Nop())

	require.NoError(t, session.Close())

	data, err := l.Load(context.Background(), srv.URL+"/a.png")
	assert.Nil(t, data)
	assert.ErrorIs(t, err, domain.ErrClientClosed)
	assert.ErrorIs(t, err, domain.ErrSourceNotFound)

	_, err = l.Fetch(context.Background(), srv.URL+"/result.png")
	assert.ErrorIs(t, err, domain.ErrClientClosed)

	_, err = a.Fetch(context.Background(), "42")
	assert.ErrorIs(t, err, domain.ErrClientClosed)

	assert.EqualValues(t, 0, atomic.LoadInt32(&hits), "終了後のセッションは接続しない")
}
