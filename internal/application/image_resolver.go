package application

import (
	"context"
	"strings"

	"nanobot/internal/domain"

	"github.com/rs/zerolog"
)

// SourceLoader は、参照文字列を画像のバイト列に変換するインターフェースです
type SourceLoader interface {
	Load(ctx context.Context, ref string) ([]byte, error)
}

// AvatarFetcher は、ユーザーIDからアバター画像を取得するインターフェースです
type AvatarFetcher interface {
	Fetch(ctx context.Context, userID string) ([]byte, error)
}

// FrameNormalizer は、アニメーション画像を静止画像に変換するインターフェースです
type FrameNormalizer interface {
	Normalize(data []byte) ([]byte, error)
}

// ResolveInput は、画像解決に必要な情報をまとめたものです
type ResolveInput struct {
	Message  domain.MessageContext
	SelfID   string
	SenderID string
}

// resolveStrategy は、優先順位の1段分の画像取得方法です
type resolveStrategy struct {
	name    string
	resolve func(ctx context.Context, in ResolveInput) []byte
}

// ImageResolver は、メッセージから処理対象の画像を1枚決定します
//
// 優先順位:
//  1. 引用メッセージ内の画像
//  2. 現在のメッセージ内の画像
//  3. Bot以外へのメンションのアバター
//  4. "<コマンド> @<ID>" 形式のテキストのアバター
//  5. 送信者自身のアバター
type ImageResolver struct {
	loader     SourceLoader
	avatars    AvatarFetcher
	normalizer FrameNormalizer
	strategies []resolveStrategy
	log        zerolog.Logger
}

// NewImageResolver は新しいImageResolverインスタンスを作成します
func NewImageResolver(loader SourceLoader, avatars AvatarFetcher, normalizer FrameNormalizer, log zerolog.Logger) *ImageResolver {
	r := &ImageResolver{
		loader:     loader,
		avatars:    avatars,
		normalizer: normalizer,
		log:        log,
	}
	r.strategies = []resolveStrategy{
		{name: "reply-image", resolve: r.fromReplyImage},
		{name: "message-image", resolve: r.fromMessageImage},
		{name: "mention-avatar", resolve: r.fromMentionAvatar},
		{name: "text-mention-avatar", resolve: r.fromTextMentionAvatar},
		{name: "sender-avatar", resolve: r.fromSenderAvatar},
	}
	return r
}

// Resolve は、優先順位に従って最初に取得できた画像を返します
// すべての候補が失敗した場合はfalseを返します
func (r *ImageResolver) Resolve(ctx context.Context, msg domain.MessageContext, selfID, senderID string) ([]byte, bool) {
	in := ResolveInput{Message: msg, SelfID: selfID, SenderID: senderID}

	for _, s := range r.strategies {
		if data := s.resolve(ctx, in); len(data) > 0 {
			r.log.Debug().Str("strategy", s.name).Int("bytes", len(data)).Msg("画像を決定しました")
			return data, true
		}
	}

	r.log.Info().Str("message", msg.String()).Msg("利用できる画像がありません")
	return nil, false
}

func (r *ImageResolver) fromReplyImage(ctx context.Context, in ResolveInput) []byte {
	reply, ok := in.Message.FirstReply()
	if !ok {
		return nil
	}
	return r.firstImage(ctx, domain.NewMessageContext(reply.Chain...).OfType(domain.SegmentImage))
}

func (r *ImageResolver) fromMessageImage(ctx context.Context, in ResolveInput) []byte {
	return r.firstImage(ctx, in.Message.OfType(domain.SegmentImage))
}

func (r *ImageResolver) fromMentionAvatar(ctx context.Context, in ResolveInput) []byte {
	for _, seg := range in.Message.OfType(domain.SegmentMention) {
		if seg.UserID == "" || seg.UserID == in.SelfID {
			continue
		}
		if data := r.avatar(ctx, seg.UserID); data != nil {
			return data
		}
	}
	return nil
}

func (r *ImageResolver) fromTextMentionAvatar(ctx context.Context, in ResolveInput) []byte {
	for _, seg := range in.Message.OfType(domain.SegmentPlain) {
		userID, ok := textMentionTarget(seg.Text)
		if !ok {
			continue
		}
		if data := r.avatar(ctx, userID); data != nil {
			return data
		}
	}
	return nil
}

func (r *ImageResolver) fromSenderAvatar(ctx context.Context, in ResolveInput) []byte {
	if in.SenderID == "" {
		return nil
	}
	return r.avatar(ctx, in.SenderID)
}

// firstImage は、画像セグメントを順に試し、URL→Fileの順で最初に読み込めたものを返します
func (r *ImageResolver) firstImage(ctx context.Context, images []domain.Segment) []byte {
	for _, seg := range images {
		for _, ref := range seg.References() {
			data, err := r.loader.Load(ctx, ref)
			if err != nil {
				r.log.Debug().Err(err).Str("ref", shortRef(ref)).Msg("画像候補をスキップ")
				continue
			}
			if data = r.normalize(data); data != nil {
				return data
			}
		}
	}
	return nil
}

func (r *ImageResolver) avatar(ctx context.Context, userID string) []byte {
	data, err := r.avatars.Fetch(ctx, userID)
	if err != nil {
		return nil
	}
	return r.normalize(data)
}

func (r *ImageResolver) normalize(data []byte) []byte {
	if len(data) == 0 {
		return nil
	}
	out, err := r.normalizer.Normalize(data)
	if err != nil {
		r.log.Debug().Err(err).Msg("フレームの抽出に失敗、候補をスキップ")
		return nil
	}
	return out
}

// textMentionTarget は、"nano @12345" のように2語からなり、2語目が@で始まるテキストからIDを取り出します
func textMentionTarget(text string) (string, bool) {
	fields := strings.Fields(text)
	if len(fields) != 2 {
		return "", false
	}
	userID, ok := strings.CutPrefix(fields[1], "@")
	if !ok || userID == "" {
		return "", false
	}
	return userID, true
}

// shortRef は、ログ用にインラインBase64などの長い参照を短くします
func shortRef(ref string) string {
	if len(ref) > 80 {
		return ref[:80] + "..."
	}
	return ref
}
