// Package auth はサービス間認証用の署名付きトークンの発行と検証を提供する。
//
// バックエンド（発行側）と本サービス（検証側）が共有シークレットを使い、
// HS256署名のJWTで呼び出し元サービスを識別する。トークンはベアラートークンで
// あり、失効の仕組みは持たない。漏洩時はシークレットのローテーションで
// 全トークンを無効化する。
package auth
