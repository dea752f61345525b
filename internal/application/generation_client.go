package application

import (
	"context"

	"nanobot/internal/domain"
)

// GenerationClient は、画像生成エンドポイントとの通信を行うクライアントのインターフェースです
type GenerationClient interface {
	// Generate は、プロンプトと画像から画像生成を行います
	Generate(ctx context.Context, request domain.GenerationRequest) domain.GenerationResult

	// ListModels は、利用可能なモデルIDの一覧を取得します
	ListModels(ctx context.Context) (domain.ModelList, error)

	// Model は、現在選択中のモデルIDを返します
	Model() string

	// SetModel は、選択中のモデルIDを変更します
	SetModel(model string)
}

// ArtifactStore は、生成された画像を保存するインターフェースです
type ArtifactStore interface {
	Save(model string, data []byte) (string, error)
}
