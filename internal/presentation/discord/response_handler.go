package discord

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"

	"nanobot/internal/domain"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"
)

// DiscordMessageLimit は、Discordのメッセージ文字数制限です
const DiscordMessageLimit = 2000

// Messenger は、メッセージの送信・削除に使うDiscordセッションの操作です
type Messenger interface {
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageDelete(channelID, messageID string, options ...discordgo.RequestOption) error
}

// ResponseHandler は、生成結果の送信・フォーマット処理を担当するハンドラーです
type ResponseHandler struct {
	session Messenger
	log     zerolog.Logger
}

// NewResponseHandler は新しいResponseHandlerインスタンスを作成します
func NewResponseHandler(session Messenger, log zerolog.Logger) *ResponseHandler {
	return &ResponseHandler{
		session: session,
		log:     log,
	}
}

// SendResult は、生成結果を元のメッセージへのリプライとして送信します
func (h *ResponseHandler) SendResult(m *discordgo.Message, result domain.GenerationResult) {
	switch result.Kind {
	case domain.ResultImage:
		h.sendImage(m, result.Image)
	case domain.ResultText:
		h.sendText(m, result.Text)
	default:
		h.reply(m, &discordgo.MessageSend{Content: formatFailure(result.Reason)})
	}
}

// SendThinking は、処理中メッセージを送信します
// 送信に失敗した場合はnilを返します
func (h *ResponseHandler) SendThinking(m *discordgo.Message) *discordgo.Message {
	msg, err := h.session.ChannelMessageSendComplex(m.ChannelID, &discordgo.MessageSend{
		Content:   "🎨 画像を生成中...",
		Reference: m.Reference(),
	})
	if err != nil {
		h.log.Warn().Err(err).Msg("処理中メッセージの送信に失敗")
		return nil
	}
	return msg
}

// DeleteThinking は、処理中メッセージを削除します
func (h *ResponseHandler) DeleteThinking(thinking *discordgo.Message) {
	if thinking == nil {
		return
	}
	if err := h.session.ChannelMessageDelete(thinking.ChannelID, thinking.ID); err != nil {
		h.log.Warn().Err(err).Msg("処理中メッセージの削除に失敗")
	}
}

// sendImage は、画像をファイルとしてアップロードします
func (h *ResponseHandler) sendImage(m *discordgo.Message, data []byte) {
	contentType := http.DetectContentType(data)
	h.reply(m, &discordgo.MessageSend{
		Files: []*discordgo.File{
			{
				Name:        "nano" + extensionFor(contentType),
				ContentType: contentType,
				Reader:      bytes.NewReader(data),
			},
		},
	})
}

// sendText は、テキスト応答をDiscordの制限に合わせて分割して送信します
func (h *ResponseHandler) sendText(m *discordgo.Message, text string) {
	for i, chunk := range splitMessage(text) {
		if err := h.reply(m, &discordgo.MessageSend{Content: chunk}); err != nil {
			h.log.Error().Err(err).Int("chunk", i+1).Msg("応答メッセージの送信に失敗")
			return
		}
	}
}

func (h *ResponseHandler) reply(m *discordgo.Message, data *discordgo.MessageSend) error {
	data.Reference = m.Reference()
	if _, err := h.session.ChannelMessageSendComplex(m.ChannelID, data); err != nil {
		h.log.Error().Err(err).Str("channel", m.ChannelID).Msg("メッセージの送信に失敗")
		return err
	}
	return nil
}

// extensionFor は、Content-Typeに対応する拡張子を返します
func extensionFor(contentType string) string {
	switch contentType {
	case "image/jpeg":
		return ".jpg"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	default:
		return ".png"
	}
}

// formatFailure は、失敗理由を適切なメッセージにフォーマットします
func formatFailure(reason string) string {
	switch {
	case reason == "":
		return "❌ **不明なエラーが発生しました**"
	case reason == domain.ErrNoImage.Error():
		return "🖼️ **画像が見つかりませんでした**\n" +
			"画像を添付するか、画像付きのメッセージに返信してください。"
	case reason == domain.ErrClientClosed.Error():
		return "🔌 **Botは停止処理中です**\nしばらく待ってから再度お試しください。"
	case isTimeoutReason(reason):
		return "⏰ **画像生成がタイムアウトしました**\n\n" +
			"処理に時間がかかりすぎました。しばらく待ってから再度お試しください。"
	default:
		return fmt.Sprintf("❌ **画像生成エラー**\n%s", reason)
	}
}

// isTimeoutReason は、失敗理由がタイムアウトを示しているかどうかを判定します
func isTimeoutReason(reason string) bool {
	reason = strings.ToLower(reason)
	for _, keyword := range []string{"timeout", "タイムアウト", "deadline exceeded"} {
		if strings.Contains(reason, keyword) {
			return true
		}
	}
	return false
}

// splitMessage は、長いメッセージをDiscordの制限に合わせて分割します
// 改行、空白の順に区切り位置を探し、見つからない場合は文字単位で分割します
func splitMessage(message string) []string {
	runes := []rune(message)
	if len(runes) <= DiscordMessageLimit {
		return []string{message}
	}

	var chunks []string
	for len(runes) > 0 {
		if len(runes) <= DiscordMessageLimit {
			chunks = append(chunks, string(runes))
			break
		}

		splitIndex := lastIndexRune(runes[:DiscordMessageLimit], '\n')
		if splitIndex <= 0 {
			splitIndex = lastIndexRune(runes[:DiscordMessageLimit], ' ')
		}
		if splitIndex <= 0 {
			splitIndex = DiscordMessageLimit
		}

		chunks = append(chunks, string(runes[:splitIndex]))
		runes = []rune(strings.TrimLeft(string(runes[splitIndex:]), " \n"))
	}

	return chunks
}

// lastIndexRune は、rを含む位置の直後のインデックスを返します（見つからない場合は0）
func lastIndexRune(runes []rune, r rune) int {
	for i := len(runes); i > 0; i-- {
		if runes[i-1] == r {
			return i
		}
	}
	return 0
}
