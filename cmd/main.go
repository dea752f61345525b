package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"nanobot/configs"
	"nanobot/internal/application"
	"nanobot/internal/domain"
	discordInfra "nanobot/internal/infrastructure/discord"
	"nanobot/internal/infrastructure/httpsession"
	"nanobot/internal/infrastructure/imagesource"
	"nanobot/internal/infrastructure/imaging"
	"nanobot/internal/infrastructure/openaicompat"
	"nanobot/internal/infrastructure/storage"
	discordPres "nanobot/internal/presentation/discord"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.DateTime}).
		With().Timestamp().Logger()

	log.Info().Msg("画像生成Botを起動中...")

	// 設定を読み込み
	config, err := configs.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("設定の読み込みに失敗")
	}

	level, _ := zerolog.ParseLevel(config.Bot.LogLevel)
	logger := log.Logger.Level(level)
	log.Logger = logger

	// Discordセッションを作成
	session, err := discordgo.New("Bot " + config.Discord.BotToken)
	if err != nil {
		logger.Fatal().Err(err).Msg("Discordセッションの作成に失敗")
	}
	session.Identify.Intents = discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentsMessageContent

	// Botの情報を取得
	user, err := session.User("@me")
	if err != nil {
		logger.Fatal().Err(err).Msg("Bot情報の取得に失敗")
	}
	logger.Info().Str("user", user.Username).Str("id", user.ID).Msg("Bot情報")

	// 画像取得と生成で共有するHTTPセッション（生成クライアントのCloseで一緒に終了します）
	httpSession := httpsession.New(&http.Client{Timeout: config.Endpoint.RequestTimeout}, component(logger, "http"))

	loader := imagesource.NewLoader(httpSession, config.Image.AllowInsecureDowngrade, component(logger, "loader"))
	avatars := imagesource.NewAvatarFetcher(loader, config.Image.AvatarURLTemplate, config.Image.AvatarTimeout, nil, component(logger, "avatar"))
	normalizer := imaging.NewFrameNormalizer(component(logger, "normalizer"))
	compressor := imaging.NewCompressor(component(logger, "compressor"), 0)

	// 画像生成クライアントを作成
	client := openaicompat.NewClient(
		&config.Endpoint,
		httpSession,
		compressor,
		loader,
		component(logger, "openaicompat"),
		openaicompat.WithCompressionPolicy(domain.CompressionPolicy{
			MaxBytes:     config.Image.CompressMaxBytes,
			MaxDimension: config.Image.CompressMaxDimension,
		}),
	)

	var store application.ArtifactStore
	if config.Bot.SaveImage {
		store = storage.NewArtifactStore(config.Bot.SaveDir, component(logger, "storage"))
	}

	// アプリケーションサービスを作成
	resolver := application.NewImageResolver(loader, avatars, normalizer, component(logger, "resolver"))
	generationService := application.NewImageGenerationService(
		resolver,
		client,
		store,
		&config.Bot,
		config.Endpoint.MaxRetries,
		component(logger, "generation"),
	)
	modelService := application.NewModelService(client, component(logger, "models"))

	// Discordハンドラを作成
	messageRepo := discordInfra.NewDiscordMessageRepository(session, component(logger, "discord"))
	responseHandler := discordPres.NewResponseHandler(session, component(logger, "discord"))
	mentionHandler := discordPres.NewMentionHandler(
		generationService,
		messageRepo,
		responseHandler,
		user.ID,
		config.Bot.TriggerWords,
		config.Bot.CommandTimeout,
		component(logger, "discord"),
	)
	slashCommandHandler := discordPres.NewSlashCommandHandler(session, modelService, component(logger, "discord"))

	handler := discordPres.NewDiscordHandler(session, mentionHandler, slashCommandHandler)
	handler.SetupHandlers()

	// スラッシュコマンドを設定
	if err := slashCommandHandler.SetupSlashCommands(user.ID); err != nil {
		logger.Fatal().Err(err).Msg("スラッシュコマンドの設定に失敗")
	}

	// Discordに接続
	if err := session.Open(); err != nil {
		logger.Fatal().Err(err).Msg("Discordへの接続に失敗")
	}

	logger.Info().
		Str("base_url", config.Endpoint.BaseURL).
		Str("model", client.Model()).
		Strs("triggers", config.Bot.TriggerWords).
		Msg("Discordに接続しました。Botが準備完了しました！")

	// 終了シグナルを待機
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	logger.Info().Msg("終了シグナルを受信しました。Botを停止中...")

	// クリーンアップ
	if err := session.Close(); err != nil {
		logger.Error().Err(err).Msg("Discordセッションのクローズに失敗")
	}
	if err := client.Close(); err != nil {
		logger.Error().Err(err).Msg("画像生成クライアントのクローズに失敗")
	}

	logger.Info().Msg("Botが正常に停止しました。")
}

// component は、コンポーネント名を付けた子ロガーを返します
func component(logger zerolog.Logger, name string) zerolog.Logger {
	return logger.With().Str("component", name).Logger()
}
