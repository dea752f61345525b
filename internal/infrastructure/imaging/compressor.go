package imaging

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"runtime"

	_ "image/gif"
	_ "image/png"

	"nanobot/internal/domain"

	"github.com/rs/zerolog"
	"golang.org/x/image/draw"
	"golang.org/x/sync/semaphore"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// 圧縮ループのパラメータ
const (
	thumbnailQuality = 70
	loopQuality      = 50
	qualityStep      = 5
	qualityFloor     = 5
	scaleDecay       = 0.9
	scaleFloor       = 0.2
)

// MaxPixels は、全体をデコードしてよい画像の画素数の上限です
// ヘッダーの寸法がこれを超える画像はデコード前に拒否します
const MaxPixels = 40_000_000

// Compressor は、静止画像をバイト数の上限以内に再エンコードします
// 再エンコードはCPUを使うため、同時実行数をセマフォで制限した別goroutineで行います
type Compressor struct {
	sem *semaphore.Weighted
	log zerolog.Logger
}

// NewCompressor は新しいCompressorインスタンスを作成します
// workersが0以下の場合はGOMAXPROCSを使用します
func NewCompressor(log zerolog.Logger, workers int) *Compressor {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Compressor{
		sem: semaphore.NewWeighted(int64(workers)),
		log: log,
	}
}

type compressResult struct {
	data []byte
	err  error
}

// Compress は、画像をポリシーの範囲内に圧縮します
// 目標サイズに届かなかった場合は最小の試行結果を返し、エラーにはしません
func (c *Compressor) Compress(ctx context.Context, data []byte, policy domain.CompressionPolicy) ([]byte, error) {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}

	done := make(chan compressResult, 1)
	go func() {
		defer c.sem.Release(1)
		out, err := c.compress(data, policy)
		done <- compressResult{data: out, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-done:
		return r.data, r.err
	}
}

func (c *Compressor) compress(data []byte, policy domain.CompressionPolicy) ([]byte, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrCompressionFailure, err)
	}

	// アニメーションは圧縮対象外
	if format == "gif" {
		return data, nil
	}

	if policy.Satisfied(len(data), cfg.Width, cfg.Height) {
		return data, nil
	}

	if err := checkPixels(cfg.Width, cfg.Height); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrCompressionFailure, err)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrCompressionFailure, err)
	}

	base := flatten(img)
	if policy.MaxDimension > 0 {
		base = thumbnail(base, policy.MaxDimension)
	}

	best, err := encodeJPEG(base, thumbnailQuality)
	if err != nil {
		return nil, err
	}

	if !policy.FitsBytes(len(best)) {
		quality, scale := loopQuality, 1.0
		for {
			candidate := base
			if scale < 1 {
				candidate = scaleImage(base, scale)
			}

			out, err := encodeJPEG(candidate, quality)
			if err != nil {
				return nil, err
			}
			if len(out) < len(best) {
				best = out
			}

			if policy.FitsBytes(len(out)) || (quality <= qualityFloor && scale <= scaleFloor) {
				break
			}

			if quality > qualityFloor {
				quality -= qualityStep
			} else {
				scale *= scaleDecay
			}
		}
	}

	// 寸法に問題が無く元の方が小さいなら、元データの方が良い結果になる
	if policy.FitsDimension(cfg.Width, cfg.Height) && len(data) <= len(best) {
		return data, nil
	}

	c.log.Debug().
		Str("format", format).
		Int("from", len(data)).
		Int("to", len(best)).
		Int("max_bytes", policy.MaxBytes).
		Msg("画像を圧縮しました")
	return best, nil
}

// checkPixels は、寸法が MaxPixels を超える場合に ErrDecodeFailure を返します
func checkPixels(width, height int) error {
	if width <= 0 || height <= 0 || int64(width)*int64(height) > MaxPixels {
		return fmt.Errorf("%w: 画素数が上限を超えています (%dx%d)", domain.ErrDecodeFailure, width, height)
	}
	return nil
}

// flatten は、透過部分を白で塗りつぶしたRGBA画像を返します
func flatten(src image.Image) *image.RGBA {
	bounds := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.Draw(dst, dst.Bounds(), src, bounds.Min, draw.Over)
	return dst
}

// thumbnail は、長辺がmaxDimension以下になるようにアスペクト比を保って縮小します
func thumbnail(src *image.RGBA, maxDimension int) *image.RGBA {
	w, h := src.Bounds().Dx(), src.Bounds().Dy()
	if w <= maxDimension && h <= maxDimension {
		return src
	}
	longest := w
	if h > longest {
		longest = h
	}
	return scaleImage(src, float64(maxDimension)/float64(longest))
}

// scaleImage は、縦横を同じ倍率で縮小します
func scaleImage(src *image.RGBA, scale float64) *image.RGBA {
	w := max(int(float64(src.Bounds().Dx())*scale), 1)
	h := max(int(float64(src.Bounds().Dy())*scale), 1)

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return dst
}

func encodeJPEG(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrCompressionFailure, err)
	}
	return buf.Bytes(), nil
}
