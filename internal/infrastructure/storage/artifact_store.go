// Package storage は、生成された画像をローカルディスクに保存します
package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// ArtifactStore は、生成画像を {dir}/{model}_{YYYYMMDD_HHMMSS_micro}.png として保存します
type ArtifactStore struct {
	dir string
	now func() time.Time
	log zerolog.Logger
}

// NewArtifactStore は新しいArtifactStoreインスタンスを作成します
func NewArtifactStore(dir string, log zerolog.Logger) *ArtifactStore {
	return &ArtifactStore{
		dir: dir,
		now: time.Now,
		log: log,
	}
}

// Save は、画像を保存して書き込んだパスを返します
// 保存先ディレクトリが存在しない場合は作成します
func (s *ArtifactStore) Save(model string, data []byte) (string, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("保存先ディレクトリの作成に失敗: %w", err)
	}

	path := filepath.Join(s.dir, FileName(model, s.now()))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("画像の書き込みに失敗: %w", err)
	}

	s.log.Debug().Str("path", path).Int("bytes", len(data)).Msg("画像を保存しました")
	return path, nil
}

// FileName は、モデル名と時刻から保存ファイル名を作成します
// モデル名に含まれるパス区切り文字は _ に置き換えます
func FileName(model string, t time.Time) string {
	safe := strings.NewReplacer("/", "_", `\`, "_", ":", "_").Replace(model)
	if safe == "" {
		safe = "image"
	}
	return fmt.Sprintf("%s_%s_%06d.png", safe, t.Format("20060102_150405"), t.Nanosecond()/int(time.Microsecond))
}
