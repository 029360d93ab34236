// Package converter はOfficeドキュメントをPDFに変換するサービスの内部実装を提供する。
//
// DOCX/PPTX/PPT形式のファイルをマルチパートフォームで受け取り、
// LibreOfficeをヘッドレスモードで起動してPDFに変換し、結果を返す。
// 変換エンドポイントへのアクセスはサービス間認証トークンで保護される。
//
// 主な機能:
//   - ファイルアップロードとPDF変換（POST /api/v1/convert）
//   - 変換履歴の参照（GET /api/v1/jobs）
//   - 開発環境限定のトークン発行（POST /auth/dev-token）
package converter
