package domain

import "fmt"

// CompressionPolicy は、送信前の画像圧縮の上限を定義します
type CompressionPolicy struct {
	// MaxBytes はエンコード後のバイト数の上限です
	MaxBytes int
	// MaxDimension は長辺の上限です（0は無制限）
	MaxDimension int
}

// DefaultCompressionPolicy は、生成エンドポイント向けのデフォルトポリシーを返します
func DefaultCompressionPolicy() CompressionPolicy {
	return CompressionPolicy{
		MaxBytes:     3_500_000,
		MaxDimension: 1024,
	}
}

// FitsBytes は、バイト数が上限以内かどうかを判定します（MaxBytes<=0は無制限）
func (p CompressionPolicy) FitsBytes(size int) bool {
	return p.MaxBytes <= 0 || size <= p.MaxBytes
}

// FitsDimension は、寸法が上限以内かどうかを判定します
func (p CompressionPolicy) FitsDimension(width, height int) bool {
	return p.MaxDimension <= 0 || (width <= p.MaxDimension && height <= p.MaxDimension)
}

// Satisfied は、サイズと寸法がポリシーの範囲内かどうかを判定します
func (p CompressionPolicy) Satisfied(size, width, height int) bool {
	return p.FitsBytes(size) && p.FitsDimension(width, height)
}

// GenerationRequest は、画像生成リクエストを表すドメインオブジェクトです
type GenerationRequest struct {
	Prompt     string
	Image      []byte
	Model      string
	MaxRetries int
}

// HasImage は、入力画像が含まれているかどうかを返します
func (r GenerationRequest) HasImage() bool {
	return len(r.Image) > 0
}

// ResultKind は生成結果の種類です
type ResultKind int

const (
	ResultFailure ResultKind = iota
	ResultImage
	ResultText
)

// String はResultKindの名前を返します
func (k ResultKind) String() string {
	switch k {
	case ResultImage:
		return "image"
	case ResultText:
		return "text"
	default:
		return "failure"
	}
}

// GenerationResult は、画像生成の結果を表すドメインオブジェクトです
// Kindに対応するフィールドだけが設定されます
type GenerationResult struct {
	Kind   ResultKind
	Image  []byte
	Text   string
	Reason string
}

// ImageResult は画像の結果を作成します
func ImageResult(data []byte) GenerationResult {
	return GenerationResult{Kind: ResultImage, Image: data}
}

// TextResult はテキストの結果を作成します
func TextResult(text string) GenerationResult {
	return GenerationResult{Kind: ResultText, Text: text}
}

// FailureResult は失敗の結果を作成します
func FailureResult(reason string) GenerationResult {
	return GenerationResult{Kind: ResultFailure, Reason: reason}
}

// String はGenerationResultの文字列表現を返します
func (r GenerationResult) String() string {
	switch r.Kind {
	case ResultImage:
		return fmt.Sprintf("Image(%d bytes)", len(r.Image))
	case ResultText:
		return fmt.Sprintf("Text(%q)", r.Text)
	default:
		return fmt.Sprintf("Failure(%q)", r.Reason)
	}
}

// ModelList は、エンドポイントから取得したモデルIDの一覧です
type ModelList []string

// At は、1始まりの番号でモデルIDを返します
func (l ModelList) At(index int) (string, error) {
	if index < 1 || index > len(l) {
		return "", fmt.Errorf("%w: %d (1-%d)", ErrModelIndexOutOfRange, index, len(l))
	}
	return l[index-1], nil
}
