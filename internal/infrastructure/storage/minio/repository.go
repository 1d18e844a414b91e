package minio

import (
	"bytes"
	"context"
	"io"
	"path"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"

	"github.com/molinfo-vienna/CDPKit-sub014/internal/infrastructure/monitoring/logging"
	"github.com/molinfo-vienna/CDPKit-sub014/pkg/errors"
)

// ContentTypeSDF is the MIME type used for conformer ensembles.
const ContentTypeSDF = "chemical/x-mdl-sdfile"

var (
	ErrObjectNotFound = errors.New(errors.ErrCodeNotFound, "object not found")
	ErrInvalidRequest = errors.New(errors.ErrCodeValidation, "invalid request")
)

// ResultRepository stores generated conformer ensembles as objects keyed by
// job.
type ResultRepository interface {
	Upload(ctx context.Context, req *UploadRequest) (*UploadResult, error)
	Download(ctx context.Context, objectKey string) (*DownloadResult, error)
	Exists(ctx context.Context, objectKey string) (bool, error)
	Delete(ctx context.Context, objectKey string) error
	List(ctx context.Context, prefix string, maxKeys int) ([]*ObjectMetadata, error)
	PresignedURL(ctx context.Context, objectKey string, expiry time.Duration) (string, error)
}

type UploadRequest struct {
	ObjectKey   string
	Data        []byte
	ContentType string
	Metadata    map[string]string
}

type UploadResult struct {
	Bucket     string
	ObjectKey  string
	ETag       string
	Size       int64
	UploadedAt time.Time
}

type DownloadResult struct {
	Data         []byte
	ContentType  string
	Size         int64
	ETag         string
	Metadata     map[string]string
	LastModified time.Time
}

type ObjectMetadata struct {
	ObjectKey    string
	Size         int64
	LastModified time.Time
}

// ResultKey builds the object key for a job's ensemble.
func ResultKey(jobID string) string {
	return path.Join("results", jobID+".sdf")
}

type minioRepository struct {
	client *MinIOClient
	logger logging.Logger
}

func NewResultRepository(client *MinIOClient, log logging.Logger) ResultRepository {
	return &minioRepository{
		client: client,
		logger: logging.OrDefault(log).With(logging.Component("result-store")),
	}
}

func (r *minioRepository) guard(objectKey string) error {
	if r.client.isClosed() {
		return ErrMinIOClientClosed
	}
	if strings.TrimSpace(objectKey) == "" {
		return ErrInvalidRequest.WithDetail("object key is required")
	}
	return nil
}

func (r *minioRepository) Upload(ctx context.Context, req *UploadRequest) (*UploadResult, error) {
	if req == nil {
		return nil, ErrInvalidRequest.WithDetail("nil upload request")
	}
	if err := r.guard(req.ObjectKey); err != nil {
		return nil, err
	}
	contentType := req.ContentType
	if contentType == "" {
		contentType = ContentTypeSDF
	}

	info, err := r.client.GetClient().PutObject(ctx, r.client.Bucket(), req.ObjectKey,
		bytes.NewReader(req.Data), int64(len(req.Data)),
		minio.PutObjectOptions{ContentType: contentType, UserMetadata: req.Metadata})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeStorageError, "upload failed").WithDetail(req.ObjectKey)
	}
	r.logger.Debug("Uploaded object", logging.String("key", req.ObjectKey), logging.Int64("size", info.Size))

	return &UploadResult{
		Bucket:     info.Bucket,
		ObjectKey:  info.Key,
		ETag:       info.ETag,
		Size:       info.Size,
		UploadedAt: time.Now(),
	}, nil
}

func (r *minioRepository) Download(ctx context.Context, objectKey string) (*DownloadResult, error) {
	if err := r.guard(objectKey); err != nil {
		return nil, err
	}
	obj, err := r.client.GetClient().GetObject(ctx, r.client.Bucket(), objectKey, minio.GetObjectOptions{})
	if err != nil {
		return nil, r.translate(err, objectKey, "download failed")
	}
	defer obj.Close()

	stat, err := obj.Stat()
	if err != nil {
		return nil, r.translate(err, objectKey, "download failed")
	}
	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeStorageError, "read object failed").WithDetail(objectKey)
	}

	return &DownloadResult{
		Data:         data,
		ContentType:  stat.ContentType,
		Size:         stat.Size,
		ETag:         stat.ETag,
		Metadata:     stat.UserMetadata,
		LastModified: stat.LastModified,
	}, nil
}

func (r *minioRepository) Exists(ctx context.Context, objectKey string) (bool, error) {
	if err := r.guard(objectKey); err != nil {
		return false, err
	}
	_, err := r.client.GetClient().StatObject(ctx, r.client.Bucket(), objectKey, minio.StatObjectOptions{})
	if err != nil {
		if isNoSuchKey(err) {
			return false, nil
		}
		return false, errors.Wrap(err, errors.ErrCodeStorageError, "stat failed").WithDetail(objectKey)
	}
	return true, nil
}

func (r *minioRepository) Delete(ctx context.Context, objectKey string) error {
	if err := r.guard(objectKey); err != nil {
		return err
	}
	if err := r.client.GetClient().RemoveObject(ctx, r.client.Bucket(), objectKey, minio.RemoveObjectOptions{}); err != nil {
		return errors.Wrap(err, errors.ErrCodeStorageError, "delete failed").WithDetail(objectKey)
	}
	return nil
}

func (r *minioRepository) List(ctx context.Context, prefix string, maxKeys int) ([]*ObjectMetadata, error) {
	if r.client.isClosed() {
		return nil, ErrMinIOClientClosed
	}
	if maxKeys <= 0 {
		maxKeys = 1000
	}
	// Cancelling stops the listing goroutine when we break early.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var objects []*ObjectMetadata
	ch := r.client.GetClient().ListObjects(ctx, r.client.Bucket(), minio.ListObjectsOptions{Prefix: prefix, Recursive: true})
	for obj := range ch {
		if obj.Err != nil {
			return nil, errors.Wrap(obj.Err, errors.ErrCodeStorageError, "list failed").WithDetail(prefix)
		}
		objects = append(objects, &ObjectMetadata{ObjectKey: obj.Key, Size: obj.Size, LastModified: obj.LastModified})
		if len(objects) >= maxKeys {
			break
		}
	}
	return objects, nil
}

func (r *minioRepository) PresignedURL(ctx context.Context, objectKey string, expiry time.Duration) (string, error) {
	if err := r.guard(objectKey); err != nil {
		return "", err
	}
	return r.client.GeneratePresignedGetURL(ctx, objectKey, expiry)
}

func (r *minioRepository) translate(err error, objectKey, msg string) error {
	if isNoSuchKey(err) {
		return ErrObjectNotFound.WithDetail(objectKey)
	}
	return errors.Wrap(err, errors.ErrCodeStorageError, msg).WithDetail(objectKey)
}

func isNoSuchKey(err error) bool {
	return minio.ToErrorResponse(err).Code == "NoSuchKey"
}

//Personal.AI order the ending
