package domain

import "errors"

// ドメイン固有のエラー型を定義
var (
	// ErrSourceNotFound は、候補から利用可能な画像が得られなかった場合のエラーです
	ErrSourceNotFound = errors.New("画像ソースが見つかりません")

	// ErrDownloadFailure は、ネットワークエラー・タイムアウト・非2xxでダウンロードに失敗した場合のエラーです
	ErrDownloadFailure = errors.New("画像のダウンロードに失敗しました")

	// ErrDecodeFailure は、画像やBase64のデコードに失敗した場合のエラーです
	ErrDecodeFailure = errors.New("画像のデコードに失敗しました")

	// ErrCompressionFailure は、再エンコード中にコーデックエラーが発生した場合のエラーです
	// 目標サイズに届かなかったことはエラーではありません
	ErrCompressionFailure = errors.New("画像の圧縮に失敗しました")

	// ErrEndpointFailure は、エンドポイントが非2xxまたは不正なJSONを返した場合のエラーです
	ErrEndpointFailure = errors.New("エンドポイントの呼び出しに失敗しました")

	// ErrEmptyResponse は、2xxでも利用可能なコンテンツが無い場合のエラーです
	ErrEmptyResponse = errors.New("レスポンスが空です")

	// ErrClientClosed は、終了済みのクライアントを使用した場合のエラーです
	ErrClientClosed = errors.New("クライアントは既に終了しています")

	// ErrNoImage は、すべての候補を試しても画像が得られなかった場合のエラーです
	ErrNoImage = errors.New("画像が見つかりませんでした")

	// ErrModelIndexOutOfRange は、モデル番号が一覧の範囲外の場合のエラーです
	ErrModelIndexOutOfRange = errors.New("モデル番号が範囲外です")
)
