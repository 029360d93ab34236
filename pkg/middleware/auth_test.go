package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/ryanlohyr/convert-office-files-to-pdf/pkg/auth"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// testSecret はテスト用の共有シークレット。
const testSecret = "test-secret-key-for-unit-tests"

// testService はテスト用の許可サービス名。
const testService = "backend"

// newTestRouter はServiceAuthを適用したテスト用ルーターを構築する。
// 保護されたルートに到達したかどうかをreachedで観測できる。
func newTestRouter(t *testing.T, reached *bool) *gin.Engine {
	t.Helper()

	verifier, err := auth.NewVerifier(testSecret, testService)
	if err != nil {
		t.Fatalf("NewVerifier()でエラーが発生: %v", err)
	}

	router := gin.New()
	router.Use(ServiceAuth(verifier))
	router.GET("/protected", func(c *gin.Context) {
		if reached != nil {
			*reached = true
		}
		c.JSON(http.StatusOK, gin.H{"service": GetCallerService(c)})
	})
	return router
}

// doAuthRequest はAuthorizationヘッダー付きのリクエストを実行するテストヘルパー。
func doAuthRequest(router *gin.Engine, authHeader string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// decodeErrorBody はエラー応答のJSONボディをデコードするテストヘルパー。
func decodeErrorBody(t *testing.T, w *httptest.ResponseRecorder) map[string]string {
	t.Helper()

	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("レスポンスボディのパースに失敗: %v", err)
	}
	return body
}

// TestServiceAuth はServiceAuthミドルウェアを検証する。
func TestServiceAuth(t *testing.T) {
	t.Parallel()

	t.Run("有効なトークンでリクエストが成功すること", func(t *testing.T) {
		t.Parallel()

		tokenStr, err := auth.Issue(testSecret, testService)
		if err != nil {
			t.Fatalf("Issue()でエラーが発生: %v", err)
		}

		var reached bool
		router := newTestRouter(t, &reached)
		w := doAuthRequest(router, "Bearer "+tokenStr)

		if w.Code != http.StatusOK {
			t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusOK)
		}
		if !reached {
			t.Error("保護されたハンドラに到達していない")
		}
		if got := w.Header().Get("X-Caller-Service"); got != testService {
			t.Errorf("X-Caller-Service = %q, want %q", got, testService)
		}
	})

	t.Run("Authorizationヘッダーが無い場合401が返り、ハンドラが実行されないこと", func(t *testing.T) {
		t.Parallel()

		var reached bool
		router := newTestRouter(t, &reached)
		w := doAuthRequest(router, "")

		if w.Code != http.StatusUnauthorized {
			t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusUnauthorized)
		}
		if reached {
			t.Error("拒否されたリクエストでハンドラが実行された")
		}

		body := decodeErrorBody(t, w)
		if body["error"] != "Unauthorized" {
			t.Errorf("error = %q, want %q", body["error"], "Unauthorized")
		}
		if body["message"] == "" {
			t.Error("messageが空")
		}
	})

	t.Run("Bearer接頭辞が無い場合401が返ること", func(t *testing.T) {
		t.Parallel()

		tokenStr, err := auth.Issue(testSecret, testService)
		if err != nil {
			t.Fatalf("Issue()でエラーが発生: %v", err)
		}

		router := newTestRouter(t, nil)
		w := doAuthRequest(router, tokenStr) // "Bearer "接頭辞なし

		if w.Code != http.StatusUnauthorized {
			t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusUnauthorized)
		}
		if body := decodeErrorBody(t, w); body["error"] != "Unauthorized" {
			t.Errorf("error = %q, want %q", body["error"], "Unauthorized")
		}
	})

	t.Run("異なるシークレットで署名されたトークンで401が返ること", func(t *testing.T) {
		t.Parallel()

		tokenStr, err := auth.Issue("different-secret", testService)
		if err != nil {
			t.Fatalf("Issue()でエラーが発生: %v", err)
		}

		router := newTestRouter(t, nil)
		w := doAuthRequest(router, "Bearer "+tokenStr)

		if w.Code != http.StatusUnauthorized {
			t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusUnauthorized)
		}
		if body := decodeErrorBody(t, w); body["error"] != "Unauthorized" {
			t.Errorf("error = %q, want %q", body["error"], "Unauthorized")
		}
	})

	t.Run("期限切れトークンで401が返ること", func(t *testing.T) {
		t.Parallel()

		// 期限切れのクレームを手動で生成する
		claims := auth.Claims{
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(-1 * time.Minute)),
				IssuedAt:  jwt.NewNumericDate(time.Now().Add(-auth.TokenTTL - time.Minute)),
			},
			Service: testService,
		}
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
		tokenStr, err := token.SignedString([]byte(testSecret))
		if err != nil {
			t.Fatalf("トークンの署名に失敗: %v", err)
		}

		router := newTestRouter(t, nil)
		w := doAuthRequest(router, "Bearer "+tokenStr)

		if w.Code != http.StatusUnauthorized {
			t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusUnauthorized)
		}
		if body := decodeErrorBody(t, w); body["error"] != "Unauthorized" {
			t.Errorf("error = %q, want %q", body["error"], "Unauthorized")
		}
	})

	t.Run("許可されていないサービスのトークンで403が返ること", func(t *testing.T) {
		t.Parallel()

		tokenStr, err := auth.Issue(testSecret, "other-service")
		if err != nil {
			t.Fatalf("Issue()でエラーが発生: %v", err)
		}

		var reached bool
		router := newTestRouter(t, &reached)
		w := doAuthRequest(router, "Bearer "+tokenStr)

		if w.Code != http.StatusForbidden {
			t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusForbidden)
		}
		if reached {
			t.Error("拒否されたリクエストでハンドラが実行された")
		}
		if body := decodeErrorBody(t, w); body["error"] != "Forbidden" {
			t.Errorf("error = %q, want %q", body["error"], "Forbidden")
		}
	})

	t.Run("拒否応答のボディにトークンが含まれないこと", func(t *testing.T) {
		t.Parallel()

		tokenStr, err := auth.Issue("different-secret", testService)
		if err != nil {
			t.Fatalf("Issue()でエラーが発生: %v", err)
		}

		router := newTestRouter(t, nil)
		w := doAuthRequest(router, "Bearer "+tokenStr)

		if strings.Contains(w.Body.String(), tokenStr) {
			t.Error("拒否応答のボディにトークンが含まれている")
		}
	})
}

// TestGetClaims はGetClaimsとGetCallerServiceを検証する。
func TestGetClaims(t *testing.T) {
	t.Parallel()

	t.Run("ServiceAuth経由でクレームが取得できること", func(t *testing.T) {
		t.Parallel()

		tokenStr, err := auth.Issue(testSecret, testService)
		if err != nil {
			t.Fatalf("Issue()でエラーが発生: %v", err)
		}

		verifier, err := auth.NewVerifier(testSecret, testService)
		if err != nil {
			t.Fatalf("NewVerifier()でエラーが発生: %v", err)
		}

		var gotService string
		var gotClaims *auth.Claims
		router := gin.New()
		router.Use(ServiceAuth(verifier))
		router.GET("/test", func(c *gin.Context) {
			gotClaims = GetClaims(c)
			gotService = GetCallerService(c)
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})

		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set("Authorization", "Bearer "+tokenStr)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("ステータスコード = %d, want %d", w.Code, http.StatusOK)
		}
		if gotClaims == nil {
			t.Fatal("GetClaims() = nil, クレームが取得できるべき")
		}
		if gotService != testService {
			t.Errorf("GetCallerService() = %q, want %q", gotService, testService)
		}
	})

	t.Run("クレームが設定されていない場合nilと空文字列が返ること", func(t *testing.T) {
		t.Parallel()

		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)

		if got := GetClaims(c); got != nil {
			t.Errorf("GetClaims() = %v, want nil", got)
		}
		if got := GetCallerService(c); got != "" {
			t.Errorf("GetCallerService() = %q, want empty string", got)
		}
	})

	t.Run("クレームが不正な型の場合nilが返ること", func(t *testing.T) {
		t.Parallel()

		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Set(contextKeyClaims, "not-a-claims-struct")

		if got := GetClaims(c); got != nil {
			t.Errorf("GetClaims() = %v, want nil", got)
		}
	})
}
