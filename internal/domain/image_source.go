package domain

import "strings"

// InlineBase64Marker は、インラインBase64参照の接頭辞です
const InlineBase64Marker = "base64://"

// ImageSourceKind は画像ソースの種類です
type ImageSourceKind int

const (
	SourceUnresolved ImageSourceKind = iota
	SourceLocalPath
	SourceRemoteURL
	SourceInlineBase64
)

// ImageSource は、画像データへの参照を分類した値オブジェクトです
// SourceInlineBase64 の場合、Value は接頭辞を除いたBase64文字列です
type ImageSource struct {
	Kind  ImageSourceKind
	Value string
}

// IsResolved は、ソースが分類できたかどうかを返します
func (s ImageSource) IsResolved() bool {
	return s.Kind != SourceUnresolved
}

// ClassifySource は、参照文字列を固定の順序で分類します
// ローカルファイル → HTTP(S) URL → base64:// の順に判定します
func ClassifySource(ref string, isFile func(string) bool) ImageSource {
	if ref == "" {
		return ImageSource{}
	}
	if isFile != nil && isFile(ref) {
		return ImageSource{Kind: SourceLocalPath, Value: ref}
	}
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return ImageSource{Kind: SourceRemoteURL, Value: ref}
	}
	if rest, ok := strings.CutPrefix(ref, InlineBase64Marker); ok {
		return ImageSource{Kind: SourceInlineBase64, Value: rest}
	}
	return ImageSource{}
}
