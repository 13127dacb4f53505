package storage

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/h2non/filetype"
	"golang.org/x/crypto/blake2b"

	"github.com/ignatzorin/marketplace-backend/internal/domain/entity"
	"github.com/ignatzorin/marketplace-backend/internal/pkg/apperror"
)

const sniffLen = 512

// Разрешённые типы доказательств
var allowedMimeTypes = map[string]bool{
	"image/jpeg":      true,
	"image/png":       true,
	"image/gif":       true,
	"image/webp":      true,
	"application/pdf": true,
	"application/zip": true,
	"video/mp4":       true,
	"audio/mpeg":      true,
}

// Текстовые файлы filetype не распознаёт, их проверяем по расширению и UTF-8.
var textExtensions = map[string]bool{
	".txt": true,
	".log": true,
	".csv": true,
	".md":  true,
}

// EvidenceStorage хранит файлы доказательств на локальном диске, по каталогу на спор.
type EvidenceStorage struct {
	rootPath       string
	maxUploadBytes int64
}

func NewEvidenceStorage(rootPath string, maxUploadMB int64) (*EvidenceStorage, error) {
	if err := os.MkdirAll(rootPath, 0o755); err != nil {
		return nil, fmt.Errorf("storage: не удалось создать каталог %s: %w", rootPath, err)
	}

	return &EvidenceStorage{
		rootPath:       rootPath,
		maxUploadBytes: maxUploadMB * 1024 * 1024,
	}, nil
}

// Save проверяет тип по содержимому, сохраняет файл и возвращает ссылку с blake2b-дайджестом.
func (s *EvidenceStorage) Save(ctx context.Context, disputeID uuid.UUID, originalName string, r io.Reader) (entity.FileRef, error) {
	if err := ctx.Err(); err != nil {
		return entity.FileRef{}, err
	}

	safeName := sanitizeFilename(originalName)
	ext := strings.ToLower(filepath.Ext(safeName))

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(r, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return entity.FileRef{}, apperror.Internal(err, "не удалось прочитать файл")
	}
	head = head[:n]
	if n == 0 {
		return entity.FileRef{}, apperror.Validation("пустой файл")
	}

	contentType, err := detectContentType(head, ext)
	if err != nil {
		return entity.FileRef{}, err
	}

	dir := filepath.Join(s.rootPath, disputeID.String())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return entity.FileRef{}, apperror.Internal(err, "не удалось создать каталог спора")
	}

	fileName := uuid.NewString() + ext
	targetPath := filepath.Join(dir, fileName)
	tempPath := targetPath + ".tmp"

	f, err := os.Create(tempPath)
	if err != nil {
		return entity.FileRef{}, apperror.Internal(err, "не удалось создать файл")
	}
	defer f.Close()

	hasher, err := blake2b.New256(nil)
	if err != nil {
		_ = os.Remove(tempPath)
		return entity.FileRef{}, apperror.Internal(err, "не удалось инициализировать хеш")
	}

	limitedReader := io.LimitedReader{R: io.MultiReader(bytes.NewReader(head), r), N: s.maxUploadBytes + 1}
	written, err := io.Copy(io.MultiWriter(f, hasher), &limitedReader)
	if err != nil {
		_ = os.Remove(tempPath)
		return entity.FileRef{}, apperror.Internal(err, "ошибка записи файла")
	}

	if written > s.maxUploadBytes {
		_ = os.Remove(tempPath)
		return entity.FileRef{}, apperror.Validation(fmt.Sprintf("размер файла превышает лимит %d байт", s.maxUploadBytes))
	}

	if err := f.Close(); err != nil {
		_ = os.Remove(tempPath)
		return entity.FileRef{}, apperror.Internal(err, "ошибка закрытия файла")
	}

	if err := os.Rename(tempPath, targetPath); err != nil {
		return entity.FileRef{}, apperror.Internal(err, "не удалось переименовать файл")
	}

	return entity.FileRef{
		Key:         filepath.ToSlash(filepath.Join(disputeID.String(), fileName)),
		Name:        safeName,
		ContentType: contentType,
		Size:        written,
		Digest:      "blake2b-256:" + hex.EncodeToString(hasher.Sum(nil)),
	}, nil
}

// Open открывает сохранённый файл для чтения.
func (s *EvidenceStorage) Open(ctx context.Context, key string) (*os.File, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := s.resolve(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, apperror.New(apperror.ErrCodeNotFound, "файл не найден")
	}
	if err != nil {
		return nil, apperror.Internal(err, "не удалось открыть файл")
	}
	return f, nil
}

// Delete удаляет файл из хранилища.
func (s *EvidenceStorage) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := s.resolve(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("storage: не удалось удалить файл: %w", err)
	}
	return nil
}

// resolve не выпускает ключ за пределы корневого каталога.
func (s *EvidenceStorage) resolve(key string) (string, error) {
	path := filepath.Join(s.rootPath, filepath.FromSlash(key))
	rel, err := filepath.Rel(s.rootPath, path)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", apperror.Validation("некорректный ключ файла")
	}
	return path, nil
}

func detectContentType(head []byte, ext string) (string, error) {
	kind, err := filetype.Match(head)
	if err == nil && kind != filetype.Unknown {
		if !allowedMimeTypes[kind.MIME.Value] {
			return "", apperror.Validation(fmt.Sprintf("неподдерживаемый тип файла (%s)", kind.MIME.Value))
		}
		return kind.MIME.Value, nil
	}
	if textExtensions[ext] && utf8.Valid(trimIncompleteRune(head)) {
		return "text/plain; charset=utf-8", nil
	}
	return "", apperror.Validation("не удалось определить тип файла")
}

// trimIncompleteRune отбрасывает руну, разрезанную границей буфера.
func trimIncompleteRune(b []byte) []byte {
	for i := len(b) - 1; i >= 0 && i >= len(b)-utf8.UTFMax; i-- {
		if utf8.RuneStart(b[i]) {
			if !utf8.FullRune(b[i:]) {
				return b[:i]
			}
			break
		}
	}
	return b
}

// sanitizeFilename удаляет потенциально опасные символы.
func sanitizeFilename(name string) string {
	name = filepath.Base(name)
	name = strings.ReplaceAll(name, "..", "")
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "\\", "_")
	if name == "" || name == "." {
		name = "evidence"
	}
	return name
}
