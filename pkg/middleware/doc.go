// Package middleware はGinベースのHTTP APIで使用する共通ミドルウェアを提供する。
//
// サービス間認証トークンの検証、パニックリカバリ、CORS設定など、
// 変換サービスの全ルートで共通して使用するミドルウェアを含む。
package middleware
