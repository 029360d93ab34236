package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenTTL はトークンの有効期間。発行から1時間で失効する。
const TokenTTL = time.Hour

// 検証失敗の種類を表すセンチネルエラー。
// 呼び出し側はerrors.Isで種類を判別し、適切なHTTPステータスにマッピングする。
var (
	// ErrMissingCredential はAuthorizationヘッダーが無い、
	// または"Bearer "接頭辞で始まらないことを表す。
	ErrMissingCredential = errors.New("認証トークンがありません")
	// ErrInvalidCredential はトークンの形式が不正、または署名が一致しないことを表す。
	ErrInvalidCredential = errors.New("認証トークンが無効です")
	// ErrExpiredCredential は署名は正しいが有効期限が切れていることを表す。
	// 期限切れは運用上の正常事象であり、署名不一致とは区別する。
	ErrExpiredCredential = errors.New("認証トークンの有効期限が切れています")
	// ErrWrongService はserviceクレームが期待する呼び出し元と一致しないことを表す。
	ErrWrongService = errors.New("許可されていないサービスです")
)

// Claims はサービス間認証トークンのクレーム（ペイロード）を表す。
type Claims struct {
	jwt.RegisteredClaims
	// Service は呼び出し元サービスの識別子。
	Service string `json:"service"`
}

// Issue はserviceを名乗る署名付きトークンを発行する。
// 発行側（バックエンド）がリクエストごとに呼び出す。有効期間はTokenTTL。
func Issue(secret, service string) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(TokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		Service: service,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("トークンの署名に失敗: %w", err)
	}
	return signed, nil
}

// Verifier は受信したトークンを検証する。
// シークレットと許可サービス名はプロセス起動時に固定され、以後変更されない。
// 可変状態を持たないため、複数ゴルーチンから同時に呼び出してよい。
type Verifier struct {
	// secret はトークン署名の検証に使う共有シークレット。
	secret []byte
	// allowedService は唯一許可する呼び出し元サービスの識別子。
	allowedService string
}

// NewVerifier は新しいVerifierを生成する。
// シークレットまたは許可サービス名が空の場合はエラーを返す。
// 起動時の設定不備はここで検出し、プロセスを起動させないことを呼び出し側に委ねる。
func NewVerifier(secret, allowedService string) (*Verifier, error) {
	if secret == "" {
		return nil, errors.New("共有シークレットが設定されていません")
	}
	if allowedService == "" {
		return nil, errors.New("許可サービス名が設定されていません")
	}
	return &Verifier{
		secret:         []byte(secret),
		allowedService: allowedService,
	}, nil
}

// Authenticate はAuthorizationヘッダーの値を検証し、成功時はクレームを返す。
// 失敗時はErrMissingCredential、ErrInvalidCredential、ErrExpiredCredential、
// ErrWrongServiceのいずれかをラップしたエラーを返す。
// いずれにも該当しないエラーは検証機構自体の異常を表す。
func (v *Verifier) Authenticate(header string) (*Claims, error) {
	if header == "" {
		return nil, fmt.Errorf("%w: Authorizationヘッダーがありません", ErrMissingCredential)
	}

	tokenString, found := strings.CutPrefix(header, "Bearer ")
	if !found {
		return nil, fmt.Errorf("%w: Bearer形式ではありません", ErrMissingCredential)
	}

	claims := &Claims{}
	// expクレームの無いトークンは受け付けない。
	token, err := jwt.ParseWithClaims(tokenString, claims, func(_ *jwt.Token) (any, error) {
		return v.secret, nil
	}, jwt.WithExpirationRequired())
	if err != nil {
		// 署名不一致を優先して判定する。署名が正しくないトークンの
		// 期限切れ情報は信用できないため。
		if errors.Is(err, jwt.ErrTokenSignatureInvalid) {
			return nil, fmt.Errorf("%w: %w", ErrInvalidCredential, err)
		}
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %w", ErrExpiredCredential, err)
		}
		return nil, fmt.Errorf("%w: %w", ErrInvalidCredential, err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("%w: トークンが無効です", ErrInvalidCredential)
	}

	if claims.Service != v.allowedService {
		return nil, fmt.Errorf("%w: service=%q", ErrWrongService, claims.Service)
	}

	return claims, nil
}

// AllowedService は許可している呼び出し元サービスの識別子を返す。
func (v *Verifier) AllowedService() string {
	return v.allowedService
}
