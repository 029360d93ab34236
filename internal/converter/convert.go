package converter

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// Engine はLibreOfficeをヘッドレスモードで起動してPDF変換を行う。
// 1回の変換ごとに独立したプロセスを起動するため、並行呼び出しに対して安全。
type Engine struct {
	// binPath はLibreOffice実行バイナリのパス。
	binPath string
	// timeout は1回の変換処理のタイムアウト。
	timeout time.Duration
}

// NewEngine は新しい変換エンジンを生成する。
func NewEngine(binPath string, timeout time.Duration) *Engine {
	return &Engine{
		binPath: binPath,
		timeout: timeout,
	}
}

// Convert はinputPathのファイルをPDFに変換し、生成されたPDFのパスを返す。
// 出力はoutDirに書き込まれる。LibreOfficeは入力ファイル名の拡張子を
// .pdfに置き換えた名前で出力する。
func (e *Engine) Convert(ctx context.Context, inputPath, outDir string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	// プロファイルディレクトリを変換ごとに分離し、同時実行時のロック競合を避ける。
	profileDir := filepath.Join(outDir, ".profile")
	cmd := exec.CommandContext(ctx, e.binPath,
		"--headless",
		"--norestore",
		fmt.Sprintf("-env:UserInstallation=file://%s", profileDir),
		"--convert-to", "pdf",
		"--outdir", outDir,
		inputPath,
	)

	output, err := cmd.CombinedOutput()
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return "", fmt.Errorf("変換処理がタイムアウトしました（%s）", e.timeout)
		}
		return "", fmt.Errorf("変換プロセスの実行に失敗: %w: %s", err, strings.TrimSpace(string(output)))
	}

	base := filepath.Base(inputPath)
	pdfName := strings.TrimSuffix(base, filepath.Ext(base)) + ".pdf"
	pdfPath := filepath.Join(outDir, pdfName)

	// LibreOfficeは変換失敗時にも終了コード0を返すことがあるため、
	// 出力ファイルの存在で成否を確定する。
	if _, err := os.Stat(pdfPath); err != nil {
		return "", fmt.Errorf("変換結果のPDFが見つかりません: %s", strings.TrimSpace(string(output)))
	}

	return pdfPath, nil
}
