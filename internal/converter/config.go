package converter

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config は変換サービスの起動設定。
// 環境変数からmainで組み立て、NewServerに値渡しする。
type Config struct {
	// Port はサーバーのリッスンポート。
	Port string
	// JWTSecret はサービス間認証トークンの共有シークレット。
	// 空の場合、NewServerはエラーを返しサービスは起動しない。
	JWTSecret string
	// AllowedService は唯一許可する呼び出し元サービスの識別子。
	AllowedService string
	// Env はデプロイメントモード。"development"の場合のみ
	// トークン発行エンドポイントが登録される。
	Env string
	// AllowedOrigins はCORSで許可するオリジンの一覧。
	AllowedOrigins []string
	// DataDir は変換作業ファイルの保存先ベースディレクトリ。
	DataDir string
	// DatabasePath は変換履歴SQLiteデータベースのパス。
	DatabasePath string
	// ConverterPath はLibreOffice実行バイナリのパス。
	ConverterPath string
	// ConvertTimeout は1回の変換処理のタイムアウト。
	ConvertTimeout time.Duration
}

// envDevelopment は開発環境を表すEnvの値。
const envDevelopment = "development"

// ConfigFromEnv は環境変数からConfigを組み立てる。
// JWT_SECRETの有無はここでは検査せず、NewServerで検査する。
func ConfigFromEnv() Config {
	timeoutSec := 90
	if v := os.Getenv("CONVERT_TIMEOUT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			timeoutSec = n
		}
	}

	var origins []string
	for _, o := range strings.Split(os.Getenv("ALLOWED_ORIGINS"), ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}

	return Config{
		Port:           getEnvOr("PORT", "8080"),
		JWTSecret:      os.Getenv("JWT_SECRET"),
		AllowedService: getEnvOr("ALLOWED_SERVICE", "backend"),
		Env:            getEnvOr("ENV", "production"),
		AllowedOrigins: origins,
		DataDir:        getEnvOr("DATA_DIR", "/data/conversions"),
		DatabasePath:   getEnvOr("DATABASE_PATH", "/data/converter.db"),
		ConverterPath:  getEnvOr("LIBREOFFICE_PATH", "soffice"),
		ConvertTimeout: time.Duration(timeoutSec) * time.Second,
	}
}

// IsDevelopment は開発環境かどうかを返す。
func (c Config) IsDevelopment() bool {
	return c.Env == envDevelopment
}

// getEnvOr は環境変数を取得し、設定されていない場合はデフォルト値を返す。
func getEnvOr(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}
