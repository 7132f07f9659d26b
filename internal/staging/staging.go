package staging

import (
	"AzureAssistant/internal/apperr"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// Kind — тип содержимого подготовленного файла.
type Kind string

const (
	KindJSON Kind = "json"
	KindText Kind = "text"
)

// FileConfig описывает файл для отправки: либо путь на диске (FilePath),
// либо содержимое в памяти (RawContent + FileName). FileType опционален.
type FileConfig struct {
	FilePath   string
	RawContent string
	FileName   string
	FileType   Kind
}

// StagedFile — файл, проверенный и готовый к загрузке.
type StagedFile struct {
	Path   string
	Kind   Kind
	Parsed any // разобранный JSON для KindJSON, строка для KindText
	Raw    string
}

// Stage проверяет и нормализует файл. Сетевых вызовов нет, только чтение с диска для FilePath.
func Stage(cfg FileConfig) (StagedFile, error) {
	const op = "stage file"

	if cfg.FileType != "" && cfg.FileType != KindJSON && cfg.FileType != KindText {
		return StagedFile{}, apperr.Newf(apperr.ErrValidation, op, "unsupported file type %q", cfg.FileType)
	}

	var (
		path string
		raw  string
		kind Kind
	)
	switch {
	case cfg.FilePath != "":
		data, err := os.ReadFile(cfg.FilePath)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return StagedFile{}, apperr.Wrap(apperr.ErrNotFound, op, err)
			}
			return StagedFile{}, apperr.Wrap(apperr.ErrValidation, op, err)
		}
		path, raw = cfg.FilePath, string(data)
		kind = kindFromExt(cfg.FilePath)
	default:
		if strings.TrimSpace(cfg.FileName) == "" {
			return StagedFile{}, apperr.New(apperr.ErrValidation, op, "fileName is required for raw content")
		}
		path, raw = cfg.FileName, cfg.RawContent
		kind = KindText
	}
	if cfg.FileType != "" {
		kind = cfg.FileType
	}

	sf := StagedFile{Path: path, Kind: kind, Raw: raw, Parsed: raw}
	if kind == KindJSON {
		var parsed any
		if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
			return StagedFile{}, apperr.Newf(apperr.ErrValidation, op, "invalid JSON in %s: %v", path, err)
		}
		sf.Parsed = parsed
	}
	return sf, nil
}

func kindFromExt(path string) Kind {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return KindJSON
	}
	return KindText
}

// Payload возвращает содержимое для загрузки: JSON сериализуется заново, текст отправляется как есть.
func (f StagedFile) Payload() ([]byte, error) {
	if f.Kind == KindJSON {
		return json.Marshal(f.Parsed)
	}
	return []byte(f.Raw), nil
}

// ContentType для multipart части.
func (f StagedFile) ContentType() string {
	if f.Kind == KindJSON {
		return "application/json"
	}
	return "text/plain"
}

// Name — имя файла для удалённой стороны.
func (f StagedFile) Name() string {
	return filepath.Base(f.Path)
}
