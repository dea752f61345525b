// Package imaging は、生成エンドポイントへ送る前の画像処理（フレーム抽出と圧縮）を提供します
package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/gif"
	"image/png"

	"nanobot/internal/domain"

	"github.com/rs/zerolog"
	"golang.org/x/image/draw"
)

var gifSignatures = [][]byte{[]byte("GIF87a"), []byte("GIF89a")}

// IsAnimated は、フォーマットのシグネチャからアニメーション画像かどうかを判定します
func IsAnimated(data []byte) bool {
	for _, sig := range gifSignatures {
		if bytes.HasPrefix(data, sig) {
			return true
		}
	}
	return false
}

// FrameNormalizer は、アニメーション画像を最初の静止フレームに変換します
type FrameNormalizer struct {
	log zerolog.Logger
}

// NewFrameNormalizer は新しいFrameNormalizerインスタンスを作成します
func NewFrameNormalizer(log zerolog.Logger) *FrameNormalizer {
	return &FrameNormalizer{log: log}
}

// Normalize は、GIFなら最初のフレームをPNGとして返し、それ以外は入力をそのまま返します
func (n *FrameNormalizer) Normalize(data []byte) ([]byte, error) {
	if !IsAnimated(data) {
		return data, nil
	}

	n.log.Info().Int("bytes", len(data)).Msg("GIFを検出、最初のフレームを抽出します")

	// キャンバス（論理画面）の寸法はヘッダーから取る
	cfg, err := gif.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrDecodeFailure, err)
	}
	if err := checkPixels(cfg.Width, cfg.Height); err != nil {
		return nil, err
	}

	// gif.Decode は最初のフレームだけを、キャンバス上の位置の矩形で返す
	frame, err := gif.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrDecodeFailure, err)
	}

	dst := image.NewNRGBA(image.Rect(0, 0, cfg.Width, cfg.Height))
	draw.Draw(dst, frame.Bounds(), frame, frame.Bounds().Min, draw.Src)

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrDecodeFailure, err)
	}
	return buf.Bytes(), nil
}
