package converter

import (
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	converterdb "github.com/ryanlohyr/convert-office-files-to-pdf/internal/converter/db"
	"github.com/ryanlohyr/convert-office-files-to-pdf/pkg/auth"
	"github.com/ryanlohyr/convert-office-files-to-pdf/pkg/middleware"
)

// defaultMaxUploadSize はアップロード可能なファイルの最大サイズ（50MB）。
const defaultMaxUploadSize int64 = 50 << 20

// 変換ジョブのステータス。
const (
	jobStatusProcessing = "processing"
	jobStatusSucceeded  = "succeeded"
	jobStatusFailed     = "failed"
)

// defaultJobsLimit は変換履歴一覧のデフォルト取得件数。
const defaultJobsLimit = 50

// maxJobsLimit は変換履歴一覧の最大取得件数。
const maxJobsLimit = 200

// Server は変換サービスのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// cfg はサーバーの起動設定。
	cfg Config
	// queries はsqlcが生成したクエリ実行オブジェクト。
	queries *converterdb.Queries
	// db はSQLiteデータベース接続。
	db *sql.DB
	// engine はLibreOfficeによるPDF変換エンジン。
	engine *Engine
	// verifier はサービス間認証トークンの検証器。
	verifier *auth.Verifier
	// maxUploadSize はアップロード可能なファイルの最大サイズ（バイト）。
	maxUploadSize int64
}

// NewServer は新しい変換サーバーを生成する。
// 共有シークレットが未設定の場合はエラーを返し、サービスを起動させない。
// 作業ディレクトリとSQLiteデータベースの初期化も行う。
func NewServer(cfg Config) (*Server, error) {
	verifier, err := auth.NewVerifier(cfg.JWTSecret, cfg.AllowedService)
	if err != nil {
		return nil, fmt.Errorf("認証設定が不正: %w", err)
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("作業ディレクトリの作成に失敗: %w", err)
	}

	sqlDB, err := sql.Open("sqlite", cfg.DatabasePath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("データベース接続に失敗: %w", err)
	}

	if err := initSchema(sqlDB); err != nil {
		return nil, fmt.Errorf("スキーマ初期化に失敗: %w", err)
	}

	router := gin.New()
	router.Use(middleware.Recovery())
	router.Use(gin.Logger())
	if len(cfg.AllowedOrigins) > 0 {
		router.Use(middleware.CORS(cfg.AllowedOrigins))
	}

	// マルチパートフォームの最大メモリを設定する。
	router.MaxMultipartMemory = defaultMaxUploadSize

	s := &Server{
		router:        router,
		cfg:           cfg,
		queries:       converterdb.New(sqlDB),
		db:            sqlDB,
		engine:        NewEngine(cfg.ConverterPath, cfg.ConvertTimeout),
		verifier:      verifier,
		maxUploadSize: defaultMaxUploadSize,
	}
	s.setupRoutes()

	return s, nil
}

// Run はHTTPサーバーを起動する。
func (s *Server) Run() error {
	return s.router.Run(fmt.Sprintf(":%s", s.cfg.Port))
}

// setupRoutes はAPIルーティングを設定する。
// トークン発行エンドポイントは開発環境のときだけ組み立て時に登録され、
// 本番環境ではルート自体が存在しない。
func (s *Server) setupRoutes() {
	if s.cfg.IsDevelopment() {
		s.router.POST("/auth/dev-token", s.handleDevToken())
	}

	// 認証必須のAPIエンドポイント
	api := s.router.Group("/api/v1")
	api.Use(middleware.ServiceAuth(s.verifier))
	{
		// ドキュメントのPDF変換（マルチパートフォーム）
		api.POST("/convert", s.handleConvert())

		jobs := api.Group("/jobs")
		{
			// 変換履歴の一覧
			jobs.GET("", s.handleListJobs())
			// 変換履歴の取得
			jobs.GET("/:id", s.handleGetJob())
		}
	}

	// ヘルスチェック
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "converter"})
	})
}

// handleDevToken は開発用のサービス間認証トークンを発行するハンドラを返す。
// setupRoutesが開発環境のときだけ登録するため、本番環境では到達不能。
func (s *Server) handleDevToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := auth.Issue(s.cfg.JWTSecret, s.cfg.AllowedService)
		if err != nil {
			log.Printf("トークン発行エラー: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":   "InternalServerError",
				"message": "トークンの発行に失敗しました",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"token":      token,
			"service":    s.cfg.AllowedService,
			"expires_in": int(auth.TokenTTL.Seconds()),
		})
	}
}

// handleConvert はOfficeドキュメントのPDF変換を処理するハンドラを返す。
// マルチパートフォームからファイルを受け取り、拡張子とマジックナンバーを
// 検証し、LibreOfficeで変換してPDFを返す。結果は変換履歴に記録する。
func (s *Server) handleConvert() gin.HandlerFunc {
	return func(c *gin.Context) {
		service := middleware.GetCallerService(c)

		// マルチパートフォームからファイルを取得する。
		file, header, err := c.Request.FormFile("file")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "BadRequest",
				"message": fmt.Sprintf("ファイルの取得に失敗しました: %v", err),
			})
			return
		}
		defer file.Close()

		// ファイルサイズのバリデーション。
		if header.Size > s.maxUploadSize {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "BadRequest",
				"message": fmt.Sprintf("ファイルサイズが上限を超えています（最大%dバイト）", s.maxUploadSize),
			})
			return
		}

		// 先頭バイトを読み取り、拡張子と中身を検証する。
		// 空ファイルや8バイト未満のファイルは読めた範囲で検証に回す。
		head := make([]byte, 8)
		n, err := io.ReadFull(file, head)
		if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "BadRequest",
				"message": "ファイルの読み取りに失敗しました",
			})
			return
		}
		if _, err := file.Seek(0, io.SeekStart); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":   "InternalServerError",
				"message": "ファイルの読み取りに失敗しました",
			})
			return
		}

		filename := filepath.Base(header.Filename)
		if err := validateUpload(filename, head[:n]); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "BadRequest",
				"message": err.Error(),
			})
			return
		}

		// ジョブごとの作業ディレクトリを作成する。
		jobID := uuid.New().String()
		jobDir := filepath.Join(s.cfg.DataDir, jobID)
		if err := os.MkdirAll(jobDir, 0o755); err != nil {
			log.Printf("作業ディレクトリの作成に失敗: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":   "InternalServerError",
				"message": "作業領域の作成に失敗しました",
			})
			return
		}
		// 変換結果の送信後に作業ファイルを削除する。
		defer func() {
			if err := os.RemoveAll(jobDir); err != nil {
				log.Printf("作業ディレクトリの削除に失敗: %v", err)
			}
		}()

		// アップロードされたファイルをディスクに保存する。
		inputPath := filepath.Join(jobDir, filename)
		dst, err := os.Create(inputPath)
		if err != nil {
			log.Printf("ファイルの作成に失敗: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":   "InternalServerError",
				"message": "ファイルの保存に失敗しました",
			})
			return
		}

		written, err := io.Copy(dst, file)
		if closeErr := dst.Close(); err == nil {
			err = closeErr
		}
		if err != nil {
			log.Printf("ファイルの書き込みに失敗: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":   "InternalServerError",
				"message": "ファイルの書き込みに失敗しました",
			})
			return
		}

		// 変換履歴に記録する。
		contentType := header.Header.Get("Content-Type")
		if err := s.queries.CreateJob(c.Request.Context(), converterdb.CreateJobParams{
			ID:          jobID,
			Service:     service,
			Filename:    filename,
			ContentType: contentType,
			SizeBytes:   written,
			Status:      jobStatusProcessing,
		}); err != nil {
			log.Printf("変換履歴の記録に失敗: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":   "InternalServerError",
				"message": "変換履歴の記録に失敗しました",
			})
			return
		}

		// PDFに変換する。
		start := time.Now()
		pdfPath, err := s.engine.Convert(c.Request.Context(), inputPath, jobDir)
		durationMs := time.Since(start).Milliseconds()
		if err != nil {
			log.Printf("変換エラー (job=%s, file=%s): %v", jobID, filename, err)
			s.finishJob(c, jobID, jobStatusFailed, err.Error(), durationMs)
			c.JSON(http.StatusUnprocessableEntity, gin.H{
				"error":   "UnprocessableEntity",
				"message": "PDFへの変換に失敗しました",
			})
			return
		}

		s.finishJob(c, jobID, jobStatusSucceeded, "", durationMs)

		c.Header("X-Job-ID", jobID)
		c.FileAttachment(pdfPath, filepath.Base(pdfPath))
	}
}

// finishJob は変換ジョブの最終状態を変換履歴に反映する。
// 応答内容は既に確定しているため、失敗してもログに残すだけにする。
func (s *Server) finishJob(c *gin.Context, jobID, status, reason string, durationMs int64) {
	if err := s.queries.FinishJob(c.Request.Context(), converterdb.FinishJobParams{
		Status:        status,
		FailureReason: reason,
		DurationMs:    durationMs,
		ID:            jobID,
	}); err != nil {
		log.Printf("変換履歴の更新に失敗 (job=%s): %v", jobID, err)
	}
}

// jobResponse は変換履歴のレスポンス。
type jobResponse struct {
	// ID は変換ジョブのID（UUID）。
	ID string `json:"id"`
	// Service は変換を依頼したサービスの識別子。
	Service string `json:"service"`
	// Filename はアップロードされた元のファイル名。
	Filename string `json:"filename"`
	// ContentType はアップロード時に宣言されたMIMEタイプ。
	ContentType string `json:"content_type"`
	// SizeBytes はアップロードされたファイルのサイズ（バイト）。
	SizeBytes int64 `json:"size_bytes"`
	// Status は変換ジョブのステータス。
	Status string `json:"status"`
	// FailureReason は変換失敗時の理由。成功時は空文字列。
	FailureReason string `json:"failure_reason,omitempty"`
	// DurationMs は変換処理にかかった時間（ミリ秒）。
	DurationMs int64 `json:"duration_ms"`
	// CreatedAt はジョブの作成日時。
	CreatedAt time.Time `json:"created_at"`
}

// toJobResponse はDBの行をレスポンス構造体に変換する。
func toJobResponse(job converterdb.ConversionJob) jobResponse {
	return jobResponse{
		ID:            job.ID,
		Service:       job.Service,
		Filename:      job.Filename,
		ContentType:   job.ContentType,
		SizeBytes:     job.SizeBytes,
		Status:        job.Status,
		FailureReason: job.FailureReason,
		DurationMs:    job.DurationMs,
		CreatedAt:     job.CreatedAt,
	}
}

// handleListJobs は呼び出し元サービスの変換履歴一覧を返すハンドラを返す。
// クエリパラメータlimitで取得件数を指定できる（デフォルト50、最大200）。
func (s *Server) handleListJobs() gin.HandlerFunc {
	return func(c *gin.Context) {
		service := middleware.GetCallerService(c)

		limit := int64(defaultJobsLimit)
		if v := c.Query("limit"); v != "" {
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil || n < 1 {
				c.JSON(http.StatusBadRequest, gin.H{
					"error":   "BadRequest",
					"message": "limitには1以上の整数を指定してください",
				})
				return
			}
			if n > maxJobsLimit {
				n = maxJobsLimit
			}
			limit = n
		}

		jobs, err := s.queries.ListJobsByService(c.Request.Context(), converterdb.ListJobsByServiceParams{
			Service: service,
			Limit:   limit,
		})
		if err != nil {
			log.Printf("変換履歴の取得に失敗: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":   "InternalServerError",
				"message": "変換履歴の取得に失敗しました",
			})
			return
		}

		resp := make([]jobResponse, 0, len(jobs))
		for _, job := range jobs {
			resp = append(resp, toJobResponse(job))
		}
		c.JSON(http.StatusOK, gin.H{"jobs": resp})
	}
}

// handleGetJob は変換履歴を1件取得するハンドラを返す。
// 他サービスのジョブは存在しないものとして404を返す。
func (s *Server) handleGetJob() gin.HandlerFunc {
	return func(c *gin.Context) {
		service := middleware.GetCallerService(c)
		jobID := c.Param("id")

		job, err := s.queries.GetJob(c.Request.Context(), jobID)
		if errors.Is(err, sql.ErrNoRows) || (err == nil && job.Service != service) {
			c.JSON(http.StatusNotFound, gin.H{
				"error":   "NotFound",
				"message": "指定された変換ジョブが見つかりません",
			})
			return
		}
		if err != nil {
			log.Printf("変換履歴の取得に失敗 (job=%s): %v", jobID, err)
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":   "InternalServerError",
				"message": "変換履歴の取得に失敗しました",
			})
			return
		}

		c.JSON(http.StatusOK, toJobResponse(job))
	}
}
