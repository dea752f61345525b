package main

import (
	"fmt"
	"os"

	"github.com/bwmarrin/discordgo"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// 必要な権限
const (
	permissionViewChannel        = discordgo.PermissionViewChannel
	permissionSendMessages       = discordgo.PermissionSendMessages
	permissionAttachFiles        = discordgo.PermissionAttachFiles
	permissionReadMessageHistory = discordgo.PermissionReadMessageHistory
)

func main() {
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr})

	// .envファイルを読み込み
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg(".envファイルの読み込みに失敗しました")
	}

	// Bot Tokenを取得
	botToken := os.Getenv("DISCORD_BOT_TOKEN")
	if botToken == "" {
		log.Fatal().Msg("DISCORD_BOT_TOKEN が設定されていません")
	}

	// Discordセッションを作成
	session, err := discordgo.New("Bot " + botToken)
	if err != nil {
		log.Fatal().Err(err).Msg("Discordセッションの作成に失敗")
	}
	defer session.Close()

	// Botの情報を取得
	user, err := session.User("@me")
	if err != nil {
		log.Fatal().Err(err).Msg("Bot情報の取得に失敗")
	}

	permissions := permissionViewChannel | permissionSendMessages | permissionAttachFiles | permissionReadMessageHistory

	fmt.Printf("🤖 Bot情報:\n")
	fmt.Printf("   名前: %s\n", user.Username)
	fmt.Printf("   Client ID: %s\n", user.ID)
	fmt.Println()

	// 招待URLを生成（スラッシュコマンド用に applications.commands スコープを含める）
	inviteURL := fmt.Sprintf(
		"https://discord.com/api/oauth2/authorize?client_id=%s&permissions=%d&scope=bot%%20applications.commands",
		user.ID, permissions,
	)

	fmt.Printf("🔗 Bot招待URL:\n")
	fmt.Printf("   %s\n", inviteURL)
	fmt.Println()

	fmt.Printf("📋 必要な権限:\n")
	fmt.Printf("   - View Channels (%d)\n", permissionViewChannel)
	fmt.Printf("   - Send Messages (%d)\n", permissionSendMessages)
	fmt.Printf("   - Attach Files (%d)\n", permissionAttachFiles)
	fmt.Printf("   - Read Message History (%d)\n", permissionReadMessageHistory)
	fmt.Printf("   - 合計: %d\n", permissions)
	fmt.Println()

	fmt.Printf("🎯 Botの使い方:\n")
	fmt.Printf("   1. 画像を添付してBotをメンション: @%s nano\n", user.Username)
	fmt.Printf("   2. 画像付きメッセージに返信して: @%s nano サイバーパンク風\n", user.Username)
	fmt.Printf("   3. 他のユーザーをメンションするとそのアバターを使用: @%s nano @ユーザー\n", user.Username)
	fmt.Printf("   4. /models でモデル一覧、/model index:<番号> で切り替え\n")
}
