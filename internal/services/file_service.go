package services

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"go.uber.org/zap"

	"github.com/ivaspavlo/staff-management-system/internal/apperrors"
)

var fileTypePattern = regexp.MustCompile(`^[A-Za-z0-9_-]*$`)

// ObjectStorage is the part of the MinIO client the file service uses.
type ObjectStorage interface {
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	StatObject(ctx context.Context, bucketName, objectName string, opts minio.StatObjectOptions) (minio.ObjectInfo, error)
	GetObject(ctx context.Context, bucketName, objectName string, opts minio.GetObjectOptions) (*minio.Object, error)
	RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error
}

// FileService stores uploaded files in one bucket.
type FileService struct {
	storage   ObjectStorage
	bucket    string
	publicURL string
	log       *zap.Logger
	now       func() time.Time
}

func NewFileService(storage ObjectStorage, bucket, publicURL string, log *zap.Logger) *FileService {
	return &FileService{
		storage:   storage,
		bucket:    bucket,
		publicURL: strings.TrimRight(publicURL, "/"),
		log:       log,
		now:       time.Now,
	}
}

// ObjectName builds "<fileType>/<unix-ms><ext>", or "<unix-ms><ext>"
// without a file type.
func (s *FileService) ObjectName(fileType, originalName string) (string, error) {
	if !fileTypePattern.MatchString(fileType) {
		return "", apperrors.NewValidation("The fileType may only contain letters, numbers, dashes and underscores.")
	}
	name := fmt.Sprintf("%d%s", s.now().UnixMilli(), path.Ext(originalName))
	if fileType == "" {
		return name, nil
	}
	return fileType + "/" + name, nil
}

// Upload stores the file and returns its public URL.
func (s *FileService) Upload(ctx context.Context, fileType, originalName, contentType string, size int64, reader io.Reader) (string, error) {
	objectName, err := s.ObjectName(fileType, originalName)
	if err != nil {
		return "", err
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	_, err = s.storage.PutObject(ctx, s.bucket, objectName, reader, size, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		s.log.Error("failed to upload file", zap.String("object", objectName), zap.Error(err))
		return "", fmt.Errorf("failed to upload file: %w", err)
	}
	s.log.Info("uploaded file", zap.String("object", objectName), zap.Int64("size", size))
	return s.URL(objectName), nil
}

func (s *FileService) URL(objectName string) string {
	return s.publicURL + "/" + s.bucket + "/" + objectName
}

// ObjectNameFromURL extracts the object name from a file URL. Both full URLs
// and bare paths are accepted.
func (s *FileService) ObjectNameFromURL(raw string) string {
	p := raw
	if u, err := url.Parse(raw); err == nil {
		p = u.Path
	}
	p = strings.TrimPrefix(p, "/")
	p = strings.TrimPrefix(p, s.bucket+"/")
	return p
}

// Delete removes the file behind fileURL and reports the outcome as a
// message.
func (s *FileService) Delete(ctx context.Context, fileURL string) (string, error) {
	if fileURL == "" {
		return "No URL was received", nil
	}
	objectName := s.ObjectNameFromURL(fileURL)
	if objectName == "" {
		return "No file with the passed URL", nil
	}
	if _, err := s.storage.StatObject(ctx, s.bucket, objectName, minio.StatObjectOptions{}); err != nil {
		if isNoSuchKey(err) {
			return "No file with the passed URL", nil
		}
		return "", fmt.Errorf("failed to stat file: %w", err)
	}
	if err := s.storage.RemoveObject(ctx, s.bucket, objectName, minio.RemoveObjectOptions{}); err != nil {
		s.log.Error("failed to delete file", zap.String("object", objectName), zap.Error(err))
		return "", fmt.Errorf("failed to delete file: %w", err)
	}
	return "File was deleted", nil
}

// Open returns a reader over the stored object and its metadata.
func (s *FileService) Open(ctx context.Context, objectName string) (io.ReadCloser, minio.ObjectInfo, error) {
	info, err := s.storage.StatObject(ctx, s.bucket, objectName, minio.StatObjectOptions{})
	if err != nil {
		if isNoSuchKey(err) {
			return nil, minio.ObjectInfo{}, apperrors.NotFound("File %s not found", objectName)
		}
		return nil, minio.ObjectInfo{}, fmt.Errorf("failed to stat file: %w", err)
	}
	obj, err := s.storage.GetObject(ctx, s.bucket, objectName, minio.GetObjectOptions{})
	if err != nil {
		return nil, minio.ObjectInfo{}, fmt.Errorf("failed to get file: %w", err)
	}
	return obj, info, nil
}

func isNoSuchKey(err error) bool {
	return minio.ToErrorResponse(err).Code == "NoSuchKey"
}
