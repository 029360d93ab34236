// Package client は変換サービスを呼び出すサービス間HTTPクライアントを提供する。
//
// バックエンドが変換サービスのAPIを呼び出す際に使用する。
// リクエストごとに共有シークレットで認証トークンを発行し、
// Authorizationヘッダーに載せて送信する。
package client
