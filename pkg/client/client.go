package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/ryanlohyr/convert-office-files-to-pdf/pkg/auth"
)

// Client は変換サービス呼び出し用のHTTPクライアント。
// 発行側（バックエンド）として共有シークレットでトークンを発行する。
type Client struct {
	// httpClient は内部で使用するHTTPクライアント。
	httpClient *http.Client
	// baseURL は変換サービスのベースURL。
	baseURL string
	// secret はトークン発行に使う共有シークレット。
	secret string
	// service は自サービスの識別子。serviceクレームとして送信される。
	service string
}

// New は新しい変換サービスクライアントを生成する。
// baseURLには変換サービスのベースURL（例: "http://converter:8080"）、
// serviceには自サービスの識別子を指定する。
func New(baseURL, secret, service string) *Client {
	return &Client{
		httpClient: &http.Client{
			// 変換処理はLibreOfficeの起動を伴うため長めに取る。
			Timeout: 2 * time.Minute,
		},
		baseURL: baseURL,
		secret:  secret,
		service: service,
	}
}

// errorResponse は変換サービスが返すエラー応答のJSON構造。
type errorResponse struct {
	// Error はエラーカテゴリ（例: "Unauthorized", "Forbidden"）。
	Error string `json:"error"`
	// Message は人間向けの説明。
	Message string `json:"message"`
}

// Convert はファイルを変換サービスに送信し、変換されたPDFのバイト列を返す。
// filenameは拡張子を含む元のファイル名、rはファイルの内容。
func (c *Client) Convert(ctx context.Context, filename string, r io.Reader) ([]byte, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("マルチパートフォームの作成に失敗: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return nil, fmt.Errorf("ファイル内容の書き込みに失敗: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("マルチパートフォームの終端に失敗: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/convert", &body)
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエストの作成に失敗: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	if err := c.setAuthorization(req); err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエストの送信に失敗: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, decodeError(resp)
	}

	pdf, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("レスポンスボディの読み取りに失敗: %w", err)
	}
	return pdf, nil
}

// Job は変換履歴の1件を表す。
type Job struct {
	// ID は変換ジョブのID（UUID）。
	ID string `json:"id"`
	// Service は変換を依頼したサービスの識別子。
	Service string `json:"service"`
	// Filename はアップロードされた元のファイル名。
	Filename string `json:"filename"`
	// Status は変換ジョブのステータス。
	Status string `json:"status"`
	// FailureReason は変換失敗時の理由。
	FailureReason string `json:"failure_reason,omitempty"`
	// DurationMs は変換処理にかかった時間（ミリ秒）。
	DurationMs int64 `json:"duration_ms"`
	// CreatedAt はジョブの作成日時。
	CreatedAt time.Time `json:"created_at"`
}

// ListJobs は自サービスの変換履歴一覧を取得する。
func (c *Client) ListJobs(ctx context.Context) ([]Job, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v1/jobs", nil)
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエストの作成に失敗: %w", err)
	}

	if err := c.setAuthorization(req); err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエストの送信に失敗: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, decodeError(resp)
	}

	var result struct {
		Jobs []Job `json:"jobs"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("レスポンスボディのデシリアライズに失敗: %w", err)
	}
	return result.Jobs, nil
}

// setAuthorization はリクエストごとにトークンを発行してヘッダーに設定する。
func (c *Client) setAuthorization(req *http.Request) error {
	token, err := auth.Issue(c.secret, c.service)
	if err != nil {
		return fmt.Errorf("認証トークンの発行に失敗: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return nil
}

// decodeError はエラー応答をGoのエラーに変換する。
func decodeError(resp *http.Response) error {
	respBody, _ := io.ReadAll(resp.Body)

	var errResp errorResponse
	if err := json.Unmarshal(respBody, &errResp); err == nil && errResp.Error != "" {
		return fmt.Errorf("変換サービスエラー: status=%d, error=%s, message=%s",
			resp.StatusCode, errResp.Error, errResp.Message)
	}
	return fmt.Errorf("変換サービスエラー: status=%d, body=%s", resp.StatusCode, string(respBody))
}
