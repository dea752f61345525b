package discord

import (
	"path"
	"regexp"
	"strings"

	"nanobot/internal/domain"

	"github.com/bwmarrin/discordgo"
)

// mentionTokenPattern は、本文中のユーザーメンション <@id> / <@!id> にマッチします
var mentionTokenPattern = regexp.MustCompile(`<@!?(\d+)>`)

var imageExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
	".webp": true,
	".bmp":  true,
	".tif":  true,
	".tiff": true,
}

// NewMessageContext は、Discordメッセージをセグメント列に変換します
// referenced は引用元メッセージで、nilの場合は引用セグメントを作りません
//
// セグメントの順序:
//
//	[引用] → 本文（テキストとメンションを出現順に） → 添付画像 → 埋め込み画像
func NewMessageContext(m *discordgo.Message, referenced *discordgo.Message) domain.MessageContext {
	var segments []domain.Segment

	if referenced != nil {
		segments = append(segments, domain.ReplySegment(messageSegments(referenced)...))
	}
	segments = append(segments, messageSegments(m)...)

	return domain.NewMessageContext(segments...)
}

// messageSegments は、1件のメッセージの本文と画像をセグメントに変換します
func messageSegments(m *discordgo.Message) []domain.Segment {
	if m == nil {
		return nil
	}

	segments := contentSegments(m.Content)

	for _, a := range m.Attachments {
		if a == nil || !isImageAttachment(a) {
			continue
		}
		segments = append(segments, domain.ImageSegment(a.URL, a.ProxyURL))
	}

	for _, e := range m.Embeds {
		if e == nil {
			continue
		}
		if e.Image != nil && e.Image.URL != "" {
			segments = append(segments, domain.ImageSegment(e.Image.URL, e.Image.ProxyURL))
		}
		if e.Thumbnail != nil && e.Thumbnail.URL != "" {
			segments = append(segments, domain.ImageSegment(e.Thumbnail.URL, e.Thumbnail.ProxyURL))
		}
	}

	return segments
}

// contentSegments は、本文をテキストとメンションのセグメントに分割します
func contentSegments(content string) []domain.Segment {
	var segments []domain.Segment

	appendText := func(text string) {
		if text = strings.TrimSpace(text); text != "" {
			segments = append(segments, domain.PlainSegment(text))
		}
	}

	last := 0
	for _, loc := range mentionTokenPattern.FindAllStringSubmatchIndex(content, -1) {
		appendText(content[last:loc[0]])
		segments = append(segments, domain.MentionSegment(content[loc[2]:loc[3]]))
		last = loc[1]
	}
	appendText(content[last:])

	return segments
}

// isImageAttachment は、添付ファイルが画像かどうかを判定します
func isImageAttachment(a *discordgo.MessageAttachment) bool {
	if strings.HasPrefix(a.ContentType, "image/") {
		return true
	}
	return imageExtensions[strings.ToLower(path.Ext(a.Filename))]
}

// ParseCommand は、メッセージ本文からトリガーワードに続くプロンプトを取り出します
// メンションを除いた本文の先頭の語がトリガーワードの場合のみ ok=true を返します
func ParseCommand(content string, triggerWords []string) (prompt string, ok bool) {
	text := strings.TrimSpace(mentionTokenPattern.ReplaceAllString(content, " "))
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return "", false
	}

	word := fields[0]
	for _, trigger := range triggerWords {
		if strings.EqualFold(word, trigger) {
			return strings.TrimSpace(strings.TrimPrefix(text, word)), true
		}
	}
	return "", false
}

// mentionsUser は、本文に指定ユーザーへのメンショントークンが含まれているかを判定します
func mentionsUser(content, userID string) bool {
	if userID == "" {
		return false
	}
	for _, match := range mentionTokenPattern.FindAllStringSubmatch(content, -1) {
		if match[1] == userID {
			return true
		}
	}
	return false
}
