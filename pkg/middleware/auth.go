package middleware

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ryanlohyr/convert-office-files-to-pdf/pkg/auth"
)

// contextKeyClaims は検証済みクレームをGinコンテキストに格納するためのキー。
const contextKeyClaims = "service_claims"

// headerKeyCallerService は呼び出し元サービス名を応答に載せるHTTPヘッダーキー。
const headerKeyCallerService = "X-Caller-Service"

// ServiceAuth はサービス間認証トークンを検証するGinミドルウェアを返す。
// 検証に成功した場合、クレームをコンテキストに設定して後続ハンドラに渡す。
// 失敗した場合はリクエストを打ち切り、拒否種別に応じたステータスと
// {"error": <カテゴリ>, "message": <説明>} 形式のJSONを返す。
func ServiceAuth(verifier *auth.Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := verifier.Authenticate(c.GetHeader("Authorization"))
		if err != nil {
			status, category, message, kind := classifyRejection(err)
			// トークン本体は決してログに出さない。
			log.Printf("[auth] 認証拒否: kind=%s, remote=%s, path=%s, detail=%v",
				kind, c.ClientIP(), c.Request.URL.Path, err)
			c.AbortWithStatusJSON(status, gin.H{
				"error":   category,
				"message": message,
			})
			return
		}

		c.Set(contextKeyClaims, claims)
		c.Header(headerKeyCallerService, claims.Service)
		c.Next()
	}
}

// classifyRejection は検証エラーをHTTPステータス、応答カテゴリ、
// 公開メッセージ、ログ用の拒否種別にマッピングする。
// 検証機構自体の異常（いずれのセンチネルにも該当しないエラー）は
// クライアント起因の拒否と区別し、詳細を漏らさず500として扱う。
func classifyRejection(err error) (status int, category, message, kind string) {
	switch {
	case errors.Is(err, auth.ErrMissingCredential):
		return http.StatusUnauthorized, "Unauthorized", "認証トークンがないか、Bearer形式ではありません", "missing_credential"
	case errors.Is(err, auth.ErrInvalidCredential):
		return http.StatusUnauthorized, "Unauthorized", "認証トークンが無効です", "invalid_credential"
	case errors.Is(err, auth.ErrExpiredCredential):
		return http.StatusUnauthorized, "Unauthorized", "認証トークンの有効期限が切れています", "expired_credential"
	case errors.Is(err, auth.ErrWrongService):
		return http.StatusForbidden, "Forbidden", "このサービスからのアクセスは許可されていません", "wrong_service"
	default:
		return http.StatusInternalServerError, "InternalServerError", "内部サーバーエラーが発生しました", "verification_fault"
	}
}

// GetClaims はGinコンテキストから検証済みクレームを取得する。
// ServiceAuthミドルウェアが事前に適用されている必要がある。
// クレームが無い場合はnilを返す。
func GetClaims(c *gin.Context) *auth.Claims {
	v, ok := c.Get(contextKeyClaims)
	if !ok {
		return nil
	}
	claims, ok := v.(*auth.Claims)
	if !ok {
		return nil
	}
	return claims
}

// GetCallerService はGinコンテキストから呼び出し元サービス名を取得する。
// クレームが無い場合は空文字列を返す。
func GetCallerService(c *gin.Context) string {
	claims := GetClaims(c)
	if claims == nil {
		return ""
	}
	return claims.Service
}
