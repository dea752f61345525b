package config

import "time"

// DefaultAvatarURLTemplate は、ユーザーIDからアバターURLを作るテンプレートです
const DefaultAvatarURLTemplate = "https://q4.qlogo.cn/headimg_dl?dst_uin=%s&spec=640"

// EndpointConfig は、OpenAI互換エンドポイント関連の設定を定義します
type EndpointConfig struct {
	BaseURL        string
	APIKey         string        // 空の場合は認証なし
	Model          string        // 起動時に選択されるモデル
	MaxRetries     int           // 最大リトライ回数（試行回数は+1）
	BackoffBase    time.Duration // 2^n倍される待機時間の単位
	RequestTimeout time.Duration
}

// ImageConfig は、画像取得と圧縮の設定を定義します
type ImageConfig struct {
	CompressMaxBytes       int
	CompressMaxDimension   int
	AllowInsecureDowngrade bool // https:// を http:// に書き換えて取得する
	AvatarURLTemplate      string
	AvatarTimeout          time.Duration
}

// BotConfig は、Bot関連の設定を定義します
type BotConfig struct {
	DefaultPrompt  string
	TriggerWords   []string
	CommandTimeout time.Duration // 1コマンド全体の上限
	SaveImage      bool
	SaveDir        string
	LogLevel       string
}

// DiscordConfig は、Discord関連の設定を定義します
type DiscordConfig struct {
	BotToken string
}

// DefaultEndpointConfig は、デフォルトのエンドポイント設定を返します
func DefaultEndpointConfig() *EndpointConfig {
	return &EndpointConfig{
		BaseURL:        "http://127.0.0.1:5102",
		Model:          "nano-banana",
		MaxRetries:     3,
		BackoffBase:    time.Second,
		RequestTimeout: 180 * time.Second,
	}
}

// DefaultImageConfig は、デフォルトの画像設定を返します
func DefaultImageConfig() *ImageConfig {
	return &ImageConfig{
		CompressMaxBytes:     3_500_000,
		CompressMaxDimension: 1024,
		AvatarURLTemplate:    DefaultAvatarURLTemplate,
		AvatarTimeout:        10 * time.Second,
	}
}

// DefaultPrompt は、プロンプトが指定されなかった場合に使う指示文です
const DefaultPrompt = "Use the nano-banana model to create a 1/7 scale commercialized figure of the character in the illustration, in a realistic style and environment. Place the figure on a computer desk, using a circular transparent acrylic base without any text. On the computer screen, display the ZBrush modeling process of the figure. Next to the computer screen, place a BANDAI-style toy packaging box printed with the original artwork."

// DefaultBotConfig は、デフォルトのBot設定を返します
func DefaultBotConfig() *BotConfig {
	return &BotConfig{
		DefaultPrompt:  DefaultPrompt,
		TriggerWords:   []string{"nano", "フィギュア化"},
		CommandTimeout: 15 * time.Minute,
		SaveDir:        "data/images",
		LogLevel:       "info",
	}
}
