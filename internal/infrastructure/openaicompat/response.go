package openaicompat

import (
	"encoding/json"
	"errors"
	"io"
	"regexp"
	"strings"

	"nanobot/internal/domain"

	"github.com/sashabaranov/go-openai"
)

// markdownImagePattern は、Markdown形式の画像リンク ![alt](url) にマッチします
var markdownImagePattern = regexp.MustCompile(`!\[.*?\]\((.*?)\)`)

// ExtractImageURL は、テキスト中の最初のMarkdown画像リンクのURLを返します
func ExtractImageURL(content string) (string, bool) {
	match := markdownImagePattern.FindStringSubmatch(content)
	if len(match) < 2 || strings.TrimSpace(match[1]) == "" {
		return "", false
	}
	return strings.TrimSpace(match[1]), true
}

// errorBody は、エンドポイントのエラーレスポンスです
type errorBody struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// failureReason は、エラーからユーザーに見せる短い失敗理由を取り出します
func failureReason(err error) string {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		if len(reqErr.Body) > 0 {
			var body errorBody
			if json.Unmarshal(reqErr.Body, &body) == nil && body.Error.Message != "" {
				return body.Error.Message
			}
			return strings.TrimSpace(string(reqErr.Body))
		}
		if reqErr.HTTPStatusCode != 0 {
			return reqErr.HTTPStatus
		}
	}

	// 2xxで本文が空の場合はJSONのデコードがEOFになる
	if errors.Is(err, io.EOF) {
		return domain.ErrEmptyResponse.Error()
	}
	return err.Error()
}
