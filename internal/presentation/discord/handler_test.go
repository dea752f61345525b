package discord

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"nanobot/internal/application"
	"nanobot/internal/domain"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeGenerator は、受け取った入力を記録して固定の結果を返します
type fakeGenerator struct {
	mu       sync.Mutex
	result   domain.GenerationResult
	inputs   []application.GenerateImageInput
	deadline bool
}

func (f *fakeGenerator) GenerateImage(ctx context.Context, input application.GenerateImageInput) domain.GenerationResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, f.deadline = ctx.Deadline()
	f.inputs = append(f.inputs, input)
	return f.result
}

// fakeReferences は、固定の引用元メッセージを返します
type fakeReferences struct {
	message *discordgo.Message
	err     error
}

func (f *fakeReferences) ReferencedMessage(ctx context.Context, m *discordgo.Message) (*discordgo.Message, error) {
	return f.message, f.err
}

// fakeRegistrar は、登録されたハンドラを記録します
type fakeRegistrar struct {
	handlers []interface{}
}

func (f *fakeRegistrar) AddHandler(handler interface{}) func() {
	f.handlers = append(f.handlers, handler)
	return func() {}
}

func newTestMentionHandler(generator ImageGenerator, references ReferenceLoader, session Messenger) *MentionHandler {
	return NewMentionHandler(
		generator,
		references,
		NewResponseHandler(session, zerolog.Nop()),
		"999",
		[]string{"nano", "フィギュア化"},
		time.Minute,
		zerolog.Nop(),
	)
}

func TestMentionHandler_Parse(t *testing.T) {
	h := newTestMentionHandler(&fakeGenerator{}, &fakeReferences{}, &fakeMessenger{})

	tests := []struct {
		name    string
		message *discordgo.Message
		want    string
		wantOK  bool
	}{
		{
			name: "メンションとトリガー",
			message: &discordgo.Message{
				Content:  "<@999> nano shiny",
				Author:   &discordgo.User{ID: "2002"},
				Mentions: []*discordgo.User{{ID: "999"}},
			},
			want:   "shiny",
			wantOK: true,
		},
		{
			name: "メンション配列が空でも本文のトークンで判定",
			message: &discordgo.Message{
				Content: "<@!999> フィギュア化",
				Author:  &discordgo.User{ID: "2002"},
			},
			wantOK: true,
		},
		{
			name: "メンションなし",
			message: &discordgo.Message{
				Content: "nano shiny",
				Author:  &discordgo.User{ID: "2002"},
			},
		},
		{
			name: "Bot自身",
			message: &discordgo.Message{
				Content: "<@999> nano",
				Author:  &discordgo.User{ID: "999"},
			},
		},
		{
			name: "他のBot",
			message: &discordgo.Message{
				Content: "<@999> nano",
				Author:  &discordgo.User{ID: "3003", Bot: true},
			},
		},
		{
			name:    "作者なし",
			message: &discordgo.Message{Content: "<@999> nano"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prompt, ok := h.parse(tt.message)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, prompt)
		})
	}
}

func TestMentionHandler_ProcessImageGeneration(t *testing.T) {
	generator := &fakeGenerator{result: domain.ImageResult([]byte("\x89PNG\r\n\x1a\nrest"))}
	referenced := &discordgo.Message{
		Attachments: []*discordgo.MessageAttachment{{URL: "https://cdn/a.png", ContentType: "image/png"}},
	}
	session := &fakeMessenger{}
	h := newTestMentionHandler(generator, &fakeReferences{message: referenced}, session)

	m := testMessage()
	m.Content = "<@999> nano cute"
	h.processImageGeneration(context.Background(), m, "cute")

	require.Len(t, generator.inputs, 1)
	input := generator.inputs[0]
	assert.Equal(t, "cute", input.Prompt)
	assert.Equal(t, "999", input.SelfID)
	assert.Equal(t, "2002", input.SenderID)
	assert.True(t, generator.deadline, "コマンド全体にタイムアウトが設定されます")

	reply, ok := input.Message.FirstReply()
	require.True(t, ok)
	assert.Equal(t, []domain.Segment{domain.ImageSegment("https://cdn/a.png", "")}, reply.Chain)

	sent := session.messages()
	require.Len(t, sent, 2)
	assert.Equal(t, "🎨 画像を生成中...", sent[0].content)
	assert.Contains(t, sent[1].files, "nano.png")
	assert.Len(t, session.deleted, 1, "処理中メッセージは削除されます")
}

func TestMentionHandler_ReferenceFailureContinues(t *testing.T) {
	generator := &fakeGenerator{result: domain.FailureResult(domain.ErrNoImage.Error())}
	session := &fakeMessenger{}
	h := newTestMentionHandler(generator, &fakeReferences{err: errors.New("unknown message")}, session)

	h.processImageGeneration(context.Background(), testMessage(), "")

	require.Len(t, generator.inputs, 1)
	_, ok := generator.inputs[0].Message.FirstReply()
	assert.False(t, ok)

	sent := session.messages()
	require.Len(t, sent, 2)
	assert.True(t, strings.HasPrefix(sent[1].content, "🖼️ **画像が見つかりませんでした**"))
}

func TestDiscordHandler_SetupHandlers(t *testing.T) {
	registrar := &fakeRegistrar{}
	mention := newTestMentionHandler(&fakeGenerator{}, &fakeReferences{}, &fakeMessenger{})
	slash := NewSlashCommandHandler(&fakeInteractionSession{}, &fakeModels{}, zerolog.Nop())

	NewDiscordHandler(registrar, mention, slash).SetupHandlers()
	assert.Len(t, registrar.handlers, 3)

	registrar = &fakeRegistrar{}
	NewDiscordHandler(registrar, mention, nil).SetupHandlers()
	assert.Len(t, registrar.handlers, 2)
}

// fakeModels は、テスト用のモデルサービスです
type fakeModels struct {
	models  domain.ModelList
	current string
	err     error
}

func (f *fakeModels) ListModels(ctx context.Context) (domain.ModelList, error) {
	return f.models, f.err
}

func (f *fakeModels) CurrentModel() string {
	return f.current
}

func (f *fakeModels) SelectModel(ctx context.Context, index int) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	model, err := f.models.At(index)
	if err != nil {
		return "", err
	}
	f.current = model
	return model, nil
}

// fakeInteractionSession は、インタラクションへの応答を記録します
type fakeInteractionSession struct {
	commands  []*discordgo.ApplicationCommand
	responses []discordgo.InteractionResponseType
	edits     []string
	createErr error
}

func (f *fakeInteractionSession) ApplicationCommandCreate(appID string, guildID string, cmd *discordgo.ApplicationCommand, options ...discordgo.RequestOption) (*discordgo.ApplicationCommand, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.commands = append(f.commands, cmd)
	return cmd, nil
}

func (f *fakeInteractionSession) InteractionRespond(interaction *discordgo.Interaction, resp *discordgo.InteractionResponse, options ...discordgo.RequestOption) error {
	f.responses = append(f.responses, resp.Type)
	return nil
}

func (f *fakeInteractionSession) InteractionResponseEdit(interaction *discordgo.Interaction, newresp *discordgo.WebhookEdit, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.edits = append(f.edits, *newresp.Content)
	return &discordgo.Message{}, nil
}

func commandInteraction(name string, options ...*discordgo.ApplicationCommandInteractionDataOption) *discordgo.Interaction {
	return &discordgo.Interaction{
		Type: discordgo.InteractionApplicationCommand,
		Data: discordgo.ApplicationCommandInteractionData{
			Name:    name,
			Options: options,
		},
	}
}

func indexArg(n int) *discordgo.ApplicationCommandInteractionDataOption {
	return &discordgo.ApplicationCommandInteractionDataOption{
		Name:  "index",
		Type:  discordgo.ApplicationCommandOptionInteger,
		Value: float64(n),
	}
}

func TestSlashCommandHandler_SetupSlashCommands(t *testing.T) {
	session := &fakeInteractionSession{}
	h := NewSlashCommandHandler(session, &fakeModels{}, zerolog.Nop())

	require.NoError(t, h.SetupSlashCommands("app"))
	require.Len(t, session.commands, 2)
	assert.Equal(t, "models", session.commands[0].Name)
	assert.Equal(t, "model", session.commands[1].Name)
	assert.True(t, session.commands[1].Options[0].Required)

	session = &fakeInteractionSession{createErr: errors.New("401 Unauthorized")}
	err := NewSlashCommandHandler(session, &fakeModels{}, zerolog.Nop()).SetupSlashCommands("app")
	assert.ErrorContains(t, err, "models")
}

func TestSlashCommandHandler_Models(t *testing.T) {
	session := &fakeInteractionSession{}
	models := &fakeModels{models: domain.ModelList{"nano-banana", "nano-banana-pro"}, current: "nano-banana"}
	h := NewSlashCommandHandler(session, models, zerolog.Nop())

	h.handleInteraction(context.Background(), commandInteraction("models"))

	assert.Equal(t, []discordgo.InteractionResponseType{discordgo.InteractionResponseDeferredChannelMessageWithSource}, session.responses)
	require.Len(t, session.edits, 1)
	assert.Contains(t, session.edits[0], "1. `nano-banana` ✅\n")
	assert.Contains(t, session.edits[0], "2. `nano-banana-pro`\n")
}

func TestSlashCommandHandler_ModelsEmptyAndFailure(t *testing.T) {
	session := &fakeInteractionSession{}
	models := &fakeModels{models: domain.ModelList{}}
	h := NewSlashCommandHandler(session, models, zerolog.Nop())

	h.handleInteraction(context.Background(), commandInteraction("models"))

	models.err = fmt.Errorf("モデル一覧の取得に失敗: %w", fmt.Errorf("%w: %s", domain.ErrEndpointFailure, "502 Bad Gateway"))
	h.handleInteraction(context.Background(), commandInteraction("models"))

	require.Len(t, session.edits, 2)
	assert.Equal(t, "📭 利用可能なモデルがありません", session.edits[0])
	assert.Equal(t, "❌ **モデル一覧の取得に失敗しました**\n502 Bad Gateway", session.edits[1])
}

func TestSlashCommandHandler_SelectModel(t *testing.T) {
	session := &fakeInteractionSession{}
	models := &fakeModels{models: domain.ModelList{"nano-banana", "nano-banana-pro"}, current: "nano-banana"}
	h := NewSlashCommandHandler(session, models, zerolog.Nop())

	h.handleInteraction(context.Background(), commandInteraction("model", indexArg(2)))
	h.handleInteraction(context.Background(), commandInteraction("model", indexArg(5)))
	h.handleInteraction(context.Background(), commandInteraction("model"))

	require.Len(t, session.edits, 3)
	assert.Equal(t, "✅ モデルを `nano-banana-pro` に切り替えました", session.edits[0])
	assert.True(t, strings.HasPrefix(session.edits[1], "⚠️ **番号 5 のモデルはありません**"))
	assert.True(t, strings.HasPrefix(session.edits[2], "⚠️ **番号 0 のモデルはありません**"))
	assert.Equal(t, "nano-banana-pro", models.current)
}

func TestSlashCommandHandler_IgnoresOtherInteractions(t *testing.T) {
	session := &fakeInteractionSession{}
	h := NewSlashCommandHandler(session, &fakeModels{}, zerolog.Nop())

	h.handleInteraction(context.Background(), &discordgo.Interaction{Type: discordgo.InteractionMessageComponent})
	h.handleInteraction(context.Background(), commandInteraction("set-api"))

	assert.Empty(t, session.responses)
	assert.Empty(t, session.edits)
}
