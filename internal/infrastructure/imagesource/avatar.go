package imagesource

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// placeholderDigits は、数値でないIDの代わりに使う桁数です
const placeholderDigits = 9

// AvatarFetcher は、ユーザーIDからアバター画像を取得します
type AvatarFetcher struct {
	loader      *Loader
	urlTemplate string
	timeout     time.Duration

	mu  sync.Mutex
	rng *rand.Rand
	log zerolog.Logger
}

// NewAvatarFetcher は新しいAvatarFetcherインスタンスを作成します
// rngは数値でないIDの置き換えに使用され、テストでは固定シードを渡せます
func NewAvatarFetcher(loader *Loader, urlTemplate string, timeout time.Duration, rng *rand.Rand, log zerolog.Logger) *AvatarFetcher {
	if rng == nil {
		rng = rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0))
	}
	return &AvatarFetcher{
		loader:      loader,
		urlTemplate: urlTemplate,
		timeout:     timeout,
		rng:         rng,
		log:         log,
	}
}

// URL は、ユーザーIDのアバターURLを返します
// IDが数字のみでない場合は、ランダムな数字列に置き換えます
func (a *AvatarFetcher) URL(userID string) string {
	if !isNumeric(userID) {
		userID = a.placeholderID()
	}
	return fmt.Sprintf(a.urlTemplate, userID)
}

// Fetch は、ユーザーのアバター画像を取得します
func (a *AvatarFetcher) Fetch(ctx context.Context, userID string) ([]byte, error) {
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	url := a.URL(userID)
	data, err := a.loader.Fetch(ctx, url)
	if err != nil {
		a.log.Error().Err(err).Str("user_id", userID).Msg("アバターの取得に失敗")
		return nil, err
	}
	return data, nil
}

func (a *AvatarFetcher) placeholderID() string {
	a.mu.Lock()
	defer a.mu.Unlock()

	var b strings.Builder
	for i := 0; i < placeholderDigits; i++ {
		b.WriteByte(byte('0' + a.rng.IntN(10)))
	}
	return b.String()
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
