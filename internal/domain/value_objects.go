package domain

import (
	"fmt"
	"strings"
)

// SegmentType は、メッセージを構成するセグメントの種類です
type SegmentType int

const (
	SegmentPlain SegmentType = iota
	SegmentImage
	SegmentMention
	SegmentReply
)

// String はSegmentTypeの名前を返します
func (t SegmentType) String() string {
	switch t {
	case SegmentPlain:
		return "plain"
	case SegmentImage:
		return "image"
	case SegmentMention:
		return "mention"
	case SegmentReply:
		return "reply"
	default:
		return "unknown"
	}
}

// Segment は、チャットメッセージの1要素を表現する値オブジェクトです
//
// Typeに応じて使用するフィールドが異なります:
//   - SegmentPlain: Text
//   - SegmentImage: URL（第一参照）, File（第二参照）
//   - SegmentMention: UserID
//   - SegmentReply: Chain（引用元メッセージのセグメント列）
type Segment struct {
	Type   SegmentType
	Text   string
	URL    string
	File   string
	UserID string
	Chain  []Segment
}

// PlainSegment はテキストセグメントを作成します
func PlainSegment(text string) Segment {
	return Segment{Type: SegmentPlain, Text: text}
}

// ImageSegment は画像セグメントを作成します
func ImageSegment(url, file string) Segment {
	return Segment{Type: SegmentImage, URL: url, File: file}
}

// MentionSegment はメンションセグメントを作成します
func MentionSegment(userID string) Segment {
	return Segment{Type: SegmentMention, UserID: userID}
}

// ReplySegment は引用セグメントを作成します
func ReplySegment(chain ...Segment) Segment {
	return Segment{Type: SegmentReply, Chain: chain}
}

// References は、画像セグメントの参照を試行順（URL→File）で返します
func (s Segment) References() []string {
	var refs []string
	if s.URL != "" {
		refs = append(refs, s.URL)
	}
	if s.File != "" {
		refs = append(refs, s.File)
	}
	return refs
}

// MessageContext は、呼び出し側から渡されるメッセージのセグメント列です
// コアはこれを読み取るだけで変更しません
type MessageContext struct {
	Segments []Segment
}

// NewMessageContext は新しいMessageContextを作成します
func NewMessageContext(segments ...Segment) MessageContext {
	return MessageContext{Segments: segments}
}

// FirstReply は、最初の引用セグメントを返します
func (m MessageContext) FirstReply() (Segment, bool) {
	for _, seg := range m.Segments {
		if seg.Type == SegmentReply {
			return seg, true
		}
	}
	return Segment{}, false
}

// OfType は、指定した種類のセグメントを出現順に返します
func (m MessageContext) OfType(t SegmentType) []Segment {
	var out []Segment
	for _, seg := range m.Segments {
		if seg.Type == t {
			out = append(out, seg)
		}
	}
	return out
}

// String はMessageContextの文字列表現を返します
func (m MessageContext) String() string {
	parts := make([]string, 0, len(m.Segments))
	for _, seg := range m.Segments {
		parts = append(parts, seg.Type.String())
	}
	return fmt.Sprintf("MessageContext{%s}", strings.Join(parts, ", "))
}
