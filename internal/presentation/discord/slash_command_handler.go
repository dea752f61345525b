package discord

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"nanobot/internal/domain"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"
)

// ModelSelector は、モデル一覧の取得と選択を行うサービスです
type ModelSelector interface {
	ListModels(ctx context.Context) (domain.ModelList, error)
	CurrentModel() string
	SelectModel(ctx context.Context, index int) (string, error)
}

// InteractionSession は、スラッシュコマンドの登録と応答に使うDiscordセッションの操作です
type InteractionSession interface {
	ApplicationCommandCreate(appID string, guildID string, cmd *discordgo.ApplicationCommand, options ...discordgo.RequestOption) (*discordgo.ApplicationCommand, error)
	InteractionRespond(interaction *discordgo.Interaction, resp *discordgo.InteractionResponse, options ...discordgo.RequestOption) error
	InteractionResponseEdit(interaction *discordgo.Interaction, newresp *discordgo.WebhookEdit, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// SlashCommandHandler は、Discordのスラッシュコマンドを処理するハンドラーです
type SlashCommandHandler struct {
	session InteractionSession
	models  ModelSelector
	log     zerolog.Logger
}

// NewSlashCommandHandler は新しいSlashCommandHandlerインスタンスを作成します
func NewSlashCommandHandler(session InteractionSession, models ModelSelector, log zerolog.Logger) *SlashCommandHandler {
	return &SlashCommandHandler{
		session: session,
		models:  models,
		log:     log,
	}
}

// Commands は、登録するスラッシュコマンドの定義を返します
func (h *SlashCommandHandler) Commands() []*discordgo.ApplicationCommand {
	minIndex := 1.0
	return []*discordgo.ApplicationCommand{
		{
			Name:        "models",
			Description: "画像生成エンドポイントで利用可能なモデルの一覧を表示します",
		},
		{
			Name:        "model",
			Description: "画像生成に使用するモデルを一覧の番号で切り替えます",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "index",
					Description: "/models で表示されたモデルの番号",
					Required:    true,
					MinValue:    &minIndex,
				},
			},
		},
	}
}

// SetupSlashCommands は、スラッシュコマンドをグローバルコマンドとして登録します
func (h *SlashCommandHandler) SetupSlashCommands(appID string) error {
	for _, command := range h.Commands() {
		if _, err := h.session.ApplicationCommandCreate(appID, "", command); err != nil {
			return fmt.Errorf("スラッシュコマンド %s の登録に失敗: %w", command.Name, err)
		}
		h.log.Info().Str("command", command.Name).Msg("スラッシュコマンドを登録しました")
	}
	return nil
}

// handleInteractionCreate は、インタラクション作成イベントを処理します
func (h *SlashCommandHandler) handleInteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	h.handleInteraction(context.Background(), i.Interaction)
}

func (h *SlashCommandHandler) handleInteraction(ctx context.Context, i *discordgo.Interaction) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}

	data := i.ApplicationCommandData()
	switch data.Name {
	case "models", "model":
	default:
		h.log.Warn().Str("command", data.Name).Msg("未知のスラッシュコマンド")
		return
	}

	// エンドポイントへの問い合わせは3秒の応答期限を超えることがあるため先に保留応答を返す
	err := h.session.InteractionRespond(i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("インタラクションへの応答に失敗")
		return
	}

	var content string
	if data.Name == "models" {
		content = h.modelsMessage(ctx)
	} else {
		content = h.selectModelMessage(ctx, indexOption(data.Options))
	}

	if _, err := h.session.InteractionResponseEdit(i, &discordgo.WebhookEdit{Content: &content}); err != nil {
		h.log.Error().Err(err).Msg("インタラクション応答の更新に失敗")
	}
}

// modelsMessage は、/models の応答本文を作成します
func (h *SlashCommandHandler) modelsMessage(ctx context.Context) string {
	models, err := h.models.ListModels(ctx)
	if err != nil {
		h.log.Error().Err(err).Msg("モデル一覧の取得に失敗")
		return fmt.Sprintf("❌ **モデル一覧の取得に失敗しました**\n%s", endpointReason(err))
	}
	if len(models) == 0 {
		return "📭 利用可能なモデルがありません"
	}

	current := h.models.CurrentModel()

	var sb strings.Builder
	sb.WriteString("📋 **利用可能なモデル**\n")
	for i, model := range models {
		marker := ""
		if model == current {
			marker = " ✅"
		}
		fmt.Fprintf(&sb, "%d. `%s`%s\n", i+1, model, marker)
	}
	fmt.Fprintf(&sb, "\n現在のモデル: `%s`\n`/model index:<番号>` で切り替えられます", current)
	return sb.String()
}

// selectModelMessage は、/model の応答本文を作成します
func (h *SlashCommandHandler) selectModelMessage(ctx context.Context, index int) string {
	model, err := h.models.SelectModel(ctx, index)
	switch {
	case errors.Is(err, domain.ErrModelIndexOutOfRange):
		return fmt.Sprintf("⚠️ **番号 %d のモデルはありません**\n`/models` で一覧を確認してください。", index)
	case err != nil:
		h.log.Error().Err(err).Msg("モデルの切り替えに失敗")
		return fmt.Sprintf("❌ **モデルの切り替えに失敗しました**\n%s", endpointReason(err))
	default:
		return fmt.Sprintf("✅ モデルを `%s` に切り替えました", model)
	}
}

// indexOption は、index オプションの値を返します（未指定の場合は0）
func indexOption(options []*discordgo.ApplicationCommandInteractionDataOption) int {
	for _, opt := range options {
		if opt.Name == "index" && opt.Type == discordgo.ApplicationCommandOptionInteger {
			return int(opt.IntValue())
		}
	}
	return 0
}

// endpointReason は、ラップされたエラーからユーザー向けの理由部分を取り出します
func endpointReason(err error) string {
	msg := err.Error()
	if _, reason, ok := strings.Cut(msg, domain.ErrEndpointFailure.Error()+": "); ok {
		return reason
	}
	return msg
}
