package application

import (
	"context"
	"fmt"

	"nanobot/internal/domain"

	"github.com/rs/zerolog"
)

// ModelService は、モデル一覧の取得と選択を担当するサービスです
type ModelService struct {
	client GenerationClient
	log    zerolog.Logger
}

// NewModelService は新しいModelServiceインスタンスを作成します
func NewModelService(client GenerationClient, log zerolog.Logger) *ModelService {
	return &ModelService{
		client: client,
		log:    log,
	}
}

// ListModels は、エンドポイントから利用可能なモデル一覧を取得します
func (s *ModelService) ListModels(ctx context.Context) (domain.ModelList, error) {
	models, err := s.client.ListModels(ctx)
	if err != nil {
		return nil, fmt.Errorf("モデル一覧の取得に失敗: %w", err)
	}
	s.log.Debug().Int("count", len(models)).Msg("モデル一覧を取得しました")
	return models, nil
}

// CurrentModel は、現在選択中のモデルIDを返します
func (s *ModelService) CurrentModel() string {
	return s.client.Model()
}

// SelectModel は、一覧の index 番目（1始まり）のモデルを選択します
// 一覧はその都度エンドポイントから取得し直します
func (s *ModelService) SelectModel(ctx context.Context, index int) (string, error) {
	models, err := s.ListModels(ctx)
	if err != nil {
		return "", err
	}

	model, err := models.At(index)
	if err != nil {
		return "", err
	}

	s.client.SetModel(model)
	return model, nil
}
