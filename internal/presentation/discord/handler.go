package discord

// EventRegistrar は、Discordのイベントハンドラを登録できるセッションです
type EventRegistrar interface {
	AddHandler(handler interface{}) func()
}

// DiscordHandler は、Discordのイベントハンドラです
type DiscordHandler struct {
	session             EventRegistrar
	mentionHandler      *MentionHandler
	slashCommandHandler *SlashCommandHandler
}

// NewDiscordHandler は新しいDiscordHandlerインスタンスを作成します
func NewDiscordHandler(
	session EventRegistrar,
	mentionHandler *MentionHandler,
	slashCommandHandler *SlashCommandHandler,
) *DiscordHandler {
	return &DiscordHandler{
		session:             session,
		mentionHandler:      mentionHandler,
		slashCommandHandler: slashCommandHandler,
	}
}

// SetupHandlers は、Discordのイベントハンドラを設定します
func (h *DiscordHandler) SetupHandlers() {
	if h.mentionHandler != nil {
		h.session.AddHandler(h.mentionHandler.handleMessageCreate)
		h.session.AddHandler(h.mentionHandler.handleReady)
	}

	if h.slashCommandHandler != nil {
		h.session.AddHandler(h.slashCommandHandler.handleInteractionCreate)
	}
}
