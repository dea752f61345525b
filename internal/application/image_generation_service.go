package application

import (
	"context"
	"strings"

	"nanobot/internal/domain"
	"nanobot/internal/infrastructure/config"

	"github.com/rs/zerolog"
)

// ImageSelector は、メッセージから入力画像を決定するインターフェースです
type ImageSelector interface {
	Resolve(ctx context.Context, msg domain.MessageContext, selfID, senderID string) ([]byte, bool)
}

// GenerateImageInput は、1回の画像生成コマンドの入力です
type GenerateImageInput struct {
	Message  domain.MessageContext
	Prompt   string
	SelfID   string
	SenderID string
}

// ImageGenerationService は、画像生成に関するビジネスロジックを担当するサービスです
type ImageGenerationService struct {
	resolver   ImageSelector
	client     GenerationClient
	store      ArtifactStore // nilの場合は保存しない
	botConfig  *config.BotConfig
	maxRetries int
	log        zerolog.Logger
}

// NewImageGenerationService は新しいImageGenerationServiceインスタンスを作成します
func NewImageGenerationService(
	resolver ImageSelector,
	client GenerationClient,
	store ArtifactStore,
	botConfig *config.BotConfig,
	maxRetries int,
	log zerolog.Logger,
) *ImageGenerationService {
	if botConfig == nil {
		botConfig = config.DefaultBotConfig()
	}
	return &ImageGenerationService{
		resolver:   resolver,
		client:     client,
		store:      store,
		botConfig:  botConfig,
		maxRetries: maxRetries,
		log:        log,
	}
}

// GenerateImage は、メッセージから画像を決定して画像生成を行います
// 画像が見つからない場合はエンドポイントに問い合わせずに失敗を返します
func (s *ImageGenerationService) GenerateImage(ctx context.Context, input GenerateImageInput) domain.GenerationResult {
	image, ok := s.resolver.Resolve(ctx, input.Message, input.SelfID, input.SenderID)
	if !ok {
		return domain.FailureResult(domain.ErrNoImage.Error())
	}

	model := s.client.Model()
	request := domain.GenerationRequest{
		Prompt:     s.EffectivePrompt(input.Prompt),
		Image:      image,
		Model:      model,
		MaxRetries: s.maxRetries,
	}

	s.log.Info().
		Str("model", model).
		Int("bytes", len(image)).
		Str("prompt", truncate(request.Prompt, 50)).
		Msg("画像生成サービス: 生成を開始")

	result := s.client.Generate(ctx, request)

	if result.Kind == domain.ResultImage && s.store != nil {
		path, err := s.store.Save(model, result.Image)
		if err != nil {
			s.log.Error().Err(err).Msg("生成画像の保存に失敗")
		} else {
			s.log.Info().Str("path", path).Msg("生成画像を保存しました")
		}
	}

	s.log.Info().Str("result", result.String()).Msg("画像生成サービス: 生成完了")
	return result
}

// EffectivePrompt は、実際に送信するプロンプトを返します
// 空のプロンプトや@で始まるプロンプト（メンションの取り違え）はデフォルトに置き換えます
func (s *ImageGenerationService) EffectivePrompt(prompt string) string {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" || strings.HasPrefix(prompt, "@") {
		return s.botConfig.DefaultPrompt
	}
	return prompt
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
