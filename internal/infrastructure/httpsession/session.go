// Package httpsession は、画像の取得と生成エンドポイントで共有するHTTPセッションです
package httpsession

import (
	"net/http"
	"sync/atomic"

	"nanobot/internal/domain"

	"github.com/rs/zerolog"
)

// Session は、共有HTTPクライアントと終了状態をまとめたものです
// Closeの後は、どの利用者のリクエストも接続せずに失敗します
type Session struct {
	client *http.Client
	closed atomic.Bool
	log    zerolog.Logger
}

// New は新しいSessionインスタンスを作成します
func New(client *http.Client, log zerolog.Logger) *Session {
	if client == nil {
		client = &http.Client{}
	}
	return &Session{client: client, log: log}
}

// Client は、内部のHTTPクライアントを返します
func (s *Session) Client() *http.Client {
	return s.client
}

// Closed は、セッションが終了済みかどうかを返します
func (s *Session) Closed() bool {
	return s.closed.Load()
}

// Do は、セッションが有効な場合にのみリクエストを送信します
func (s *Session) Do(req *http.Request) (*http.Response, error) {
	if s.closed.Load() {
		return nil, domain.ErrClientClosed
	}
	return s.client.Do(req)
}

// Close は、セッションを終了してアイドル接続を閉じます
// 複数回呼び出しても安全です
func (s *Session) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	s.client.CloseIdleConnections()
	s.log.Info().Msg("HTTPセッションを閉じました")
	return nil
}
