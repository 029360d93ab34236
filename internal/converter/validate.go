package converter

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
)

// allowedExtensions は変換を受け付けるファイル拡張子の集合。
var allowedExtensions = map[string]struct{}{
	".docx": {},
	".pptx": {},
	".ppt":  {},
}

// ooxmlMagic はOOXML形式（.docx/.pptx）のマジックナンバー。ZIPコンテナのヘッダー。
var ooxmlMagic = []byte{0x50, 0x4B, 0x03, 0x04}

// oleMagic はレガシーOffice形式（.ppt）のマジックナンバー。OLE複合ファイルのヘッダー。
var oleMagic = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}

// validateUpload はアップロードされたファイルの拡張子と先頭バイトを検証する。
// headにはファイル先頭の最低8バイトを渡す。
// 拡張子が許可外、または中身が宣言された形式と一致しない場合はエラーを返す。
func validateUpload(filename string, head []byte) error {
	ext := strings.ToLower(filepath.Ext(filename))
	if _, ok := allowedExtensions[ext]; !ok {
		return fmt.Errorf("許可されていない拡張子です: %s（.docx/.pptx/.pptのみ）", ext)
	}

	switch ext {
	case ".docx", ".pptx":
		if !bytes.HasPrefix(head, ooxmlMagic) {
			return fmt.Errorf("ファイルの中身が%s形式ではありません", ext)
		}
	case ".ppt":
		if !bytes.HasPrefix(head, oleMagic) {
			return fmt.Errorf("ファイルの中身が.ppt形式ではありません")
		}
	}
	return nil
}
