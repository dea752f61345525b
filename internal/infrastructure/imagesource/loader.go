// Package imagesource は、参照文字列やユーザーIDから画像のバイト列を取得します
package imagesource

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"nanobot/internal/domain"
	"nanobot/internal/infrastructure/httpsession"

	"github.com/rs/zerolog"
)

// maxDownloadBytes は、1回のダウンロードで読み込む上限です
const maxDownloadBytes = 32 << 20

// Loader は、ローカルパス・URL・インラインBase64を画像のバイト列に変換します
// リトライは行いません。失敗時は呼び出し側が次の候補に進みます
type Loader struct {
	session           *httpsession.Session
	insecureDowngrade bool
	log               zerolog.Logger
}

// NewLoader は新しいLoaderインスタンスを作成します
// 共有セッションが終了すると、以降のダウンロードは ErrClientClosed で失敗します
func NewLoader(session *httpsession.Session, allowInsecureDowngrade bool, log zerolog.Logger) *Loader {
	if session == nil {
		session = httpsession.New(nil, log)
	}
	return &Loader{
		session:           session,
		insecureDowngrade: allowInsecureDowngrade,
		log:               log,
	}
}

// Load は、参照文字列を分類してバイト列を返します
func (l *Loader) Load(ctx context.Context, ref string) ([]byte, error) {
	src := domain.ClassifySource(ref, isRegularFile)

	switch src.Kind {
	case domain.SourceLocalPath:
		data, err := os.ReadFile(src.Value)
		if err != nil || len(data) == 0 {
			return nil, fmt.Errorf("%w: %s", domain.ErrSourceNotFound, src.Value)
		}
		return data, nil

	case domain.SourceRemoteURL:
		url := src.Value
		if l.insecureDowngrade {
			url = downgradeScheme(url)
		}
		data, err := l.Fetch(ctx, url)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrSourceNotFound, err)
		}
		return data, nil

	case domain.SourceInlineBase64:
		data, err := base64.StdEncoding.DecodeString(src.Value)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrDecodeFailure, err)
		}
		return data, nil

	default:
		return nil, fmt.Errorf("%w: 未対応の参照です", domain.ErrSourceNotFound)
	}
}

// Fetch は、URLをそのままGETして本文を返します
// 生成結果の画像リンクのように、書き換えずに取得するURLに使用します
func (l *Loader) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrDownloadFailure, err)
	}

	resp, err := l.session.Do(req)
	if errors.Is(err, domain.ErrClientClosed) {
		return nil, fmt.Errorf("%w: %w", domain.ErrDownloadFailure, err)
	}
	if err != nil {
		l.log.Error().Err(err).Str("url", url).Msg("画像のダウンロードに失敗")
		return nil, fmt.Errorf("%w: %v", domain.ErrDownloadFailure, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		l.log.Error().Int("status", resp.StatusCode).Str("url", url).Msg("画像のダウンロードに失敗")
		return nil, fmt.Errorf("%w: http %d", domain.ErrDownloadFailure, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDownloadBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrDownloadFailure, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: 本文が空です", domain.ErrDownloadFailure)
	}
	return data, nil
}

// downgradeScheme は、https:// を http:// に書き換えます
func downgradeScheme(url string) string {
	if rest, ok := strings.CutPrefix(url, "https://"); ok {
		return "http://" + rest
	}
	return url
}

func isRegularFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
