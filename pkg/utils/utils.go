package utils

import (
	"crypto/rand"
	"errors"
	"io"
	"mime/multipart"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/oklog/ulid/v2"
)

var (
	ErrNoFile       = errors.New("no file uploaded")
	ErrFileTooLarge = errors.New("file size exceeds limit")
)

type IUtils interface {
	NewULIDFromTimestamp(t time.Time) (string, error)
	ReadUpload(file *multipart.FileHeader) ([]byte, string, error)
	DetectContentType(data []byte) string
}

type utils struct {
	maxFileSize int64
}

func New(maxFileSize int64) IUtils {
	if maxFileSize <= 0 {
		maxFileSize = 10 * 1024 * 1024
	}
	return &utils{
		maxFileSize: maxFileSize,
	}
}

func (u *utils) NewULIDFromTimestamp(t time.Time) (string, error) {
	ms := ulid.Timestamp(t)
	entropy := ulid.Monotonic(rand.Reader, 0)

	id, err := ulid.New(ms, entropy)
	if err != nil {
		return "", err
	}

	return id.String(), nil
}

// ReadUpload reads the whole upload and returns it with the MIME type sniffed
// from its bytes. The declared Content-Type header is not trusted.
func (u *utils) ReadUpload(file *multipart.FileHeader) ([]byte, string, error) {
	if file == nil {
		return nil, "", ErrNoFile
	}

	if file.Size > u.maxFileSize {
		return nil, "", ErrFileTooLarge
	}

	src, err := file.Open()
	if err != nil {
		return nil, "", err
	}
	defer src.Close()

	data, err := io.ReadAll(io.LimitReader(src, u.maxFileSize+1))
	if err != nil {
		return nil, "", err
	}
	if int64(len(data)) > u.maxFileSize {
		return nil, "", ErrFileTooLarge
	}

	return data, u.DetectContentType(data), nil
}

func (u *utils) DetectContentType(data []byte) string {
	return mimetype.Detect(data).String()
}
