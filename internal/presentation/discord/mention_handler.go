package discord

import (
	"context"
	"time"

	"nanobot/internal/application"
	"nanobot/internal/domain"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"
)

// ImageGenerator は、画像生成コマンドを実行するサービスです
type ImageGenerator interface {
	GenerateImage(ctx context.Context, input application.GenerateImageInput) domain.GenerationResult
}

// ReferenceLoader は、引用元メッセージを取得するリポジトリです
type ReferenceLoader interface {
	ReferencedMessage(ctx context.Context, m *discordgo.Message) (*discordgo.Message, error)
}

// MentionHandler は、Botへのメンションによる画像生成コマンドを担当するハンドラーです
type MentionHandler struct {
	generator       ImageGenerator
	references      ReferenceLoader
	responseHandler *ResponseHandler
	botID           string
	triggerWords    []string
	timeout         time.Duration
	log             zerolog.Logger
}

// NewMentionHandler は新しいMentionHandlerインスタンスを作成します
// timeout は1コマンド全体（画像取得からリトライを含む生成まで）の上限です
func NewMentionHandler(
	generator ImageGenerator,
	references ReferenceLoader,
	responseHandler *ResponseHandler,
	botID string,
	triggerWords []string,
	timeout time.Duration,
	log zerolog.Logger,
) *MentionHandler {
	return &MentionHandler{
		generator:       generator,
		references:      references,
		responseHandler: responseHandler,
		botID:           botID,
		triggerWords:    triggerWords,
		timeout:         timeout,
		log:             log,
	}
}

// handleReady は、Botが準備完了した際のイベントを処理します
func (h *MentionHandler) handleReady(s *discordgo.Session, event *discordgo.Ready) {
	h.log.Info().Str("user", event.User.Username).Msg("Botが準備完了しました")
}

// handleMessageCreate は、メッセージ作成イベントを処理します
func (h *MentionHandler) handleMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	prompt, ok := h.parse(m.Message)
	if !ok {
		return
	}

	h.log.Info().Str("channel", m.ChannelID).Str("author", m.Author.ID).Msg("画像生成コマンドを検出")

	// 非同期で画像生成を処理
	go h.processImageGeneration(context.Background(), m.Message, prompt)
}

// parse は、メッセージが画像生成コマンドであればプロンプトを返します
func (h *MentionHandler) parse(m *discordgo.Message) (string, bool) {
	if m == nil || m.Author == nil {
		return "", false
	}
	// Bot自身と他のBotのメッセージは無視
	if m.Author.ID == h.botID || m.Author.Bot {
		return "", false
	}
	if !h.isMentioned(m) {
		return "", false
	}
	return ParseCommand(m.Content, h.triggerWords)
}

// isMentioned は、メッセージがBotへのメンションかどうかを判定します
func (h *MentionHandler) isMentioned(m *discordgo.Message) bool {
	for _, mention := range m.Mentions {
		if mention != nil && mention.ID == h.botID {
			return true
		}
	}
	return mentionsUser(m.Content, h.botID)
}

// processImageGeneration は、1件の画像生成コマンドを処理して結果を返信します
func (h *MentionHandler) processImageGeneration(ctx context.Context, m *discordgo.Message, prompt string) {
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	thinking := h.responseHandler.SendThinking(m)

	referenced, err := h.references.ReferencedMessage(ctx, m)
	if err != nil {
		// 引用元が取得できなくても他の候補で続行する
		h.log.Warn().Err(err).Msg("引用元メッセージの取得に失敗")
	}

	result := h.generator.GenerateImage(ctx, application.GenerateImageInput{
		Message:  NewMessageContext(m, referenced),
		Prompt:   prompt,
		SelfID:   h.botID,
		SenderID: m.Author.ID,
	})

	h.responseHandler.DeleteThinking(thinking)

	if result.Kind == domain.ResultFailure {
		h.log.Error().Str("reason", result.Reason).Msg("画像生成に失敗")
	}
	h.responseHandler.SendResult(m, result)
}
