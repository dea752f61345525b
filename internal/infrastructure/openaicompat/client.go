// Package openaicompat は、OpenAI互換エンドポイントを使った画像生成クライアントです
package openaicompat

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"nanobot/internal/domain"
	"nanobot/internal/infrastructure/config"
	"nanobot/internal/infrastructure/httpsession"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"
)

// ImageCompressor は、送信前に画像を圧縮するコンポーネントです
type ImageCompressor interface {
	Compress(ctx context.Context, data []byte, policy domain.CompressionPolicy) ([]byte, error)
}

// ImageFetcher は、生成結果の画像リンクをダウンロードするコンポーネントです
type ImageFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// SleepFunc は、バックオフの待機を行う関数です
// ctxがキャンセルされた場合はctx.Err()を返します
type SleepFunc func(ctx context.Context, d time.Duration) error

// バックオフの上限
const (
	maxBackoff      = time.Hour
	maxBackoffShift = 30
)

// Client は、チャット補完エンドポイントへのリクエスト・リトライ・レスポンス解析を行います
// HTTPセッションと選択中のモデルはインスタンスの生存期間中保持されます
type Client struct {
	api        *openai.Client
	session    *httpsession.Session
	compressor ImageCompressor
	fetcher    ImageFetcher
	policy     domain.CompressionPolicy
	config     *config.EndpointConfig
	sleep      SleepFunc

	model atomic.Value // string
	log   zerolog.Logger
}

// Option は、Clientの生成時オプションです
type Option func(*Client)

// WithSleep は、バックオフの待機関数を差し替えます
func WithSleep(sleep SleepFunc) Option {
	return func(c *Client) {
		c.sleep = sleep
	}
}

// WithCompressionPolicy は、送信前の圧縮ポリシーを差し替えます
func WithCompressionPolicy(policy domain.CompressionPolicy) Option {
	return func(c *Client) {
		c.policy = policy
	}
}

// NewClient は新しいClientインスタンスを作成します
// sessionは画像の取得と共有され、Closeで一緒に終了します
func NewClient(
	endpointConfig *config.EndpointConfig,
	session *httpsession.Session,
	compressor ImageCompressor,
	fetcher ImageFetcher,
	log zerolog.Logger,
	opts ...Option,
) *Client {
	if endpointConfig == nil {
		endpointConfig = config.DefaultEndpointConfig()
	}
	if session == nil {
		session = httpsession.New(&http.Client{Timeout: endpointConfig.RequestTimeout}, log)
	}

	apiConfig := openai.DefaultConfig(endpointConfig.APIKey)
	apiConfig.BaseURL = strings.TrimRight(endpointConfig.BaseURL, "/") + "/v1"
	apiConfig.HTTPClient = session.Client()

	c := &Client{
		api:        openai.NewClientWithConfig(apiConfig),
		session:    session,
		compressor: compressor,
		fetcher:    fetcher,
		policy:     domain.DefaultCompressionPolicy(),
		config:     endpointConfig,
		sleep:      sleepContext,
		log:        log,
	}
	c.model.Store(endpointConfig.Model)

	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Model は、現在選択中のモデルIDを返します
func (c *Client) Model() string {
	return c.model.Load().(string)
}

// SetModel は、選択中のモデルIDを変更します
// エンドポイントには問い合わせません。同時に呼ばれた場合は最後の書き込みが残ります
func (c *Client) SetModel(model string) {
	c.model.Store(model)
	c.log.Info().Str("model", model).Msg("モデルを切り替えました")
}

// Generate は、プロンプトと画像から画像生成を行い、画像・テキスト・失敗のいずれかを返します
func (c *Client) Generate(ctx context.Context, request domain.GenerationRequest) domain.GenerationResult {
	if c.session.Closed() {
		return domain.FailureResult(domain.ErrClientClosed.Error())
	}

	model := request.Model
	if model == "" {
		model = c.Model()
	}

	chatRequest, err := c.buildRequest(ctx, model, request)
	if err != nil {
		c.log.Error().Err(err).Msg("リクエストの作成に失敗")
		return domain.FailureResult(err.Error())
	}

	attempts := max(request.MaxRetries, 0) + 1
	lastReason := ""

	for attempt := 0; attempt < attempts; attempt++ {
		if c.session.Closed() {
			return domain.FailureResult(domain.ErrClientClosed.Error())
		}

		c.log.Info().
			Str("model", model).
			Int("attempt", attempt+1).
			Str("prompt", truncate(request.Prompt, 50)).
			Msg("画像生成をリクエスト中")

		result, reason := c.attempt(ctx, chatRequest)
		if result != nil {
			return *result
		}

		lastReason = reason
		c.log.Error().Int("attempt", attempt+1).Str("reason", reason).Msg("画像生成の試行に失敗")

		if attempt < attempts-1 {
			delay := c.backoff(attempt)
			if err := c.sleep(ctx, delay); err != nil {
				return domain.FailureResult(lastReason)
			}
		}
	}

	if lastReason == "" {
		lastReason = "unknown error"
	}
	return domain.FailureResult(lastReason)
}

// attempt は1回分のリクエストを行います
// 結果が確定した場合はresultを、リトライすべき場合は失敗理由を返します
func (c *Client) attempt(ctx context.Context, request openai.ChatCompletionRequest) (*domain.GenerationResult, string) {
	resp, err := c.api.CreateChatCompletion(ctx, request)
	if err != nil {
		return nil, failureReason(err)
	}

	content := ""
	if len(resp.Choices) > 0 {
		content = resp.Choices[0].Message.Content
	}
	if content == "" {
		return nil, domain.ErrEmptyResponse.Error()
	}

	imageURL, ok := ExtractImageURL(content)
	if !ok {
		result := domain.TextResult(content)
		return &result, ""
	}

	c.log.Info().Str("url", imageURL).Msg("生成画像のURLを取得")
	data, err := c.fetcher.Fetch(ctx, imageURL)
	if err != nil || len(data) == 0 {
		return nil, domain.ErrDownloadFailure.Error()
	}

	result := domain.ImageResult(data)
	return &result, ""
}

// buildRequest は、チャット補完形式のリクエストを作成します
func (c *Client) buildRequest(ctx context.Context, model string, request domain.GenerationRequest) (openai.ChatCompletionRequest, error) {
	parts := []openai.ChatMessagePart{
		{
			Type: openai.ChatMessagePartTypeText,
			Text: request.Prompt,
		},
	}

	if request.HasImage() {
		compressed, err := c.compressor.Compress(ctx, request.Image, c.policy)
		if err != nil {
			return openai.ChatCompletionRequest{}, err
		}
		parts = append(parts, openai.ChatMessagePart{
			Type: openai.ChatMessagePartTypeImageURL,
			ImageURL: &openai.ChatMessageImageURL{
				URL: "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(compressed),
			},
		})
	}

	return openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:         openai.ChatMessageRoleUser,
				MultiContent: parts,
			},
		},
		N: 1,
	}, nil
}

// ListModels は、エンドポイントから利用可能なモデルIDの一覧を取得します
// 非2xxの場合はリトライせずにエラーを返します
func (c *Client) ListModels(ctx context.Context) (domain.ModelList, error) {
	if c.session.Closed() {
		return nil, domain.ErrClientClosed
	}

	resp, err := c.api.ListModels(ctx)
	if err != nil {
		c.log.Error().Err(err).Msg("モデル一覧の取得に失敗")
		return nil, fmt.Errorf("%w: %s", domain.ErrEndpointFailure, failureReason(err))
	}

	models := make(domain.ModelList, 0, len(resp.Models))
	for _, m := range resp.Models {
		models = append(models, m.ID)
	}
	return models, nil
}

// Close は、共有HTTPセッションを終了します
// 複数回呼び出しても安全で、以降は生成も画像の取得も即座に失敗します
func (c *Client) Close() error {
	return c.session.Close()
}

// backoff は、attempt回目の失敗後の待機時間を返します（BackoffBase × 2^attempt、上限 maxBackoff）
func (c *Client) backoff(attempt int) time.Duration {
	base := c.config.BackoffBase
	if base <= 0 {
		base = time.Second
	}
	shift := min(max(attempt, 0), maxBackoffShift)
	if base > maxBackoff>>shift {
		return maxBackoff
	}
	return base << shift
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
