package discord

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"
)

// messageFetcher は、Discord APIからメッセージを1件取得する操作です
type messageFetcher interface {
	ChannelMessage(channelID, messageID string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// DiscordMessageRepository は、Discord APIを使用して引用元メッセージを取得します
type DiscordMessageRepository struct {
	session messageFetcher
	log     zerolog.Logger
}

// NewDiscordMessageRepository は新しいDiscordMessageRepositoryインスタンスを作成します
func NewDiscordMessageRepository(session messageFetcher, log zerolog.Logger) *DiscordMessageRepository {
	return &DiscordMessageRepository{
		session: session,
		log:     log,
	}
}

// ReferencedMessage は、メッセージが引用しているメッセージを返します
// ゲートウェイイベントに含まれていない場合はDiscord APIから取得します
// 引用がない場合は nil, nil を返します
func (r *DiscordMessageRepository) ReferencedMessage(ctx context.Context, m *discordgo.Message) (*discordgo.Message, error) {
	if m == nil || m.MessageReference == nil || m.MessageReference.MessageID == "" {
		return nil, nil
	}
	if m.ReferencedMessage != nil {
		return m.ReferencedMessage, nil
	}

	channelID := m.MessageReference.ChannelID
	if channelID == "" {
		channelID = m.ChannelID
	}

	r.log.Debug().
		Str("channel", channelID).
		Str("message", m.MessageReference.MessageID).
		Msg("Discordから引用元メッセージを取得中")

	referenced, err := r.session.ChannelMessage(channelID, m.MessageReference.MessageID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("Discord APIから引用元メッセージの取得に失敗: %w", err)
	}
	return referenced, nil
}
