package blob

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"

	"github.com/novabloom/capsulecore/internal/logger"
	"github.com/novabloom/capsulecore/pkg/coreerrors"
	"github.com/novabloom/capsulecore/pkg/ids"
	"github.com/novabloom/capsulecore/pkg/metrics"
)

// s3API is the subset of *s3.Client this package calls, so tests can
// substitute a fake without spinning up a real bucket.
type s3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Store is a Store backed by a single S3 bucket. Each blob is one
// object (content) plus one sibling object (JSON meta), under a shared
// key prefix.
//
// The spec's CHUNK_SIZE range (tens of KiB up to ~1.8 MiB) sits well
// below S3's real multipart-upload minimum part size of 5 MiB, so a
// literal chunk-by-chunk multipart translation would either violate
// that minimum or require buffering anyway. PutChunked reassembles the
// full object with assembleChunks and issues one PutObject, trading
// streaming upload for a simpler, correct implementation at the chunk
// sizes this system actually uses.
type S3Store struct {
	client  s3API
	bucket  string
	prefix  string
	clock   func() int64
	metrics *metrics.Metrics
}

// SetMetrics attaches a metrics collector, or detaches one with nil.
func (s *S3Store) SetMetrics(m *metrics.Metrics) {
	s.metrics = m
}

// NewS3Store builds a Store over an existing bucket. prefix is
// prepended to every object key; pass "" for no prefix. clock supplies
// CreatedAt for new blobs; pass nil to leave it zero.
func NewS3Store(client s3API, bucket, prefix string, clock func() int64) *S3Store {
	if clock == nil {
		clock = func() int64 { return 0 }
	}
	return &S3Store{client: client, bucket: bucket, prefix: prefix, clock: clock}
}

func (s *S3Store) contentKey(id ids.BlobId) string {
	return s.prefix + "blobs/" + string(id)
}

func (s *S3Store) metaKey(id ids.BlobId) string {
	return s.prefix + "blobs/" + string(id) + ".meta"
}

func (s *S3Store) putContent(ctx context.Context, id ids.BlobId, data []byte) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.contentKey(id)),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return fmt.Errorf("blob: s3 put content: %w", err)
	}
	return nil
}

func (s *S3Store) putMeta(ctx context.Context, id ids.BlobId, meta Meta) error {
	encoded, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("blob: encode meta: %w", err)
	}
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.metaKey(id)),
		Body:   bytes.NewReader(encoded),
	})
	if err != nil {
		return fmt.Errorf("blob: s3 put meta: %w", err)
	}
	return nil
}

func (s *S3Store) PutInline(ctx context.Context, data []byte) (BlobRef, error) {
	hash := ids.SumSha256(data)
	id := ids.NewBlobId()

	if err := s.putContent(ctx, id, data); err != nil {
		s.metrics.RecordBlobOp("s3", metrics.OpPutInline, metrics.StatusError)
		return BlobRef{}, coreerrors.Wrap(coreerrors.KindInternal, "content_write_failed", err, "put inline")
	}
	if err := s.putMeta(ctx, id, Meta{Size: uint64(len(data)), Sha256: hash, CreatedAt: s.clock()}); err != nil {
		_, _ = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(s.contentKey(id))})
		s.metrics.RecordBlobOp("s3", metrics.OpPutInline, metrics.StatusError)
		return BlobRef{}, coreerrors.Wrap(coreerrors.KindInternal, "meta_write_failed", err, "put inline")
	}
	logger.Info("blob put inline", logger.Backend("s3"), logger.BlobID(string(id)), logger.Size(uint64(len(data))))
	s.metrics.RecordBlobBytes("s3", metrics.OpPutInline, uint64(len(data)))
	s.metrics.RecordBlobOp("s3", metrics.OpPutInline, metrics.StatusOK)
	return BlobRef{Locator: id, Hash: hash, Len: uint64(len(data))}, nil
}

func (s *S3Store) PutChunked(ctx context.Context, chunks ChunkReader, expectedLen uint64, expectedHash ids.Sha256) (BlobRef, error) {
	pages, total, err := assembleChunks(ctx, chunks, expectedLen, expectedHash)
	if err != nil {
		return BlobRef{}, err
	}

	id := ids.NewBlobId()
	full := make([]byte, 0, total)
	for _, page := range pages {
		full = append(full, page...)
	}

	if err := s.putContent(ctx, id, full); err != nil {
		s.metrics.RecordBlobOp("s3", metrics.OpPutChunked, metrics.StatusError)
		return BlobRef{}, coreerrors.Wrap(coreerrors.KindInternal, "content_write_failed", err, "put chunked")
	}
	if err := s.putMeta(ctx, id, Meta{Size: total, Sha256: expectedHash, CreatedAt: s.clock()}); err != nil {
		_, _ = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(s.contentKey(id))})
		s.metrics.RecordBlobOp("s3", metrics.OpPutChunked, metrics.StatusError)
		return BlobRef{}, coreerrors.Wrap(coreerrors.KindInternal, "meta_write_failed", err, "put chunked")
	}
	logger.Info("blob put chunked", logger.Backend("s3"), logger.BlobID(string(id)), logger.Size(total))
	s.metrics.RecordBlobBytes("s3", metrics.OpPutChunked, total)
	s.metrics.RecordBlobOp("s3", metrics.OpPutChunked, metrics.StatusOK)
	return BlobRef{Locator: id, Hash: expectedHash, Len: total}, nil
}

func isNotFound(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		return code == "NoSuchKey" || code == "NotFound"
	}
	return false
}

func (s *S3Store) readMeta(ctx context.Context, id ids.BlobId) (Meta, bool, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.metaKey(id)),
	})
	if err != nil {
		if isNotFound(err) {
			return Meta{}, false, nil
		}
		return Meta{}, false, fmt.Errorf("blob: s3 get meta: %w", err)
	}
	defer out.Body.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(out.Body); err != nil {
		return Meta{}, false, fmt.Errorf("blob: s3 read meta body: %w", err)
	}
	var m Meta
	if err := json.Unmarshal(buf.Bytes(), &m); err != nil {
		return Meta{}, false, fmt.Errorf("blob: decode meta: %w", err)
	}
	return m, true, nil
}

func (s *S3Store) Read(ctx context.Context, id ids.BlobId, offset, limit uint64) ([]byte, error) {
	meta, found, err := s.readMeta(ctx, id)
	if err != nil {
		return nil, coreerrors.Wrap(coreerrors.KindInternal, "meta_read_failed", err, "read")
	}
	if !found {
		return nil, coreerrors.NotFound("blob:"+string(id), "blob not found")
	}
	if offset >= meta.Size {
		return []byte{}, nil
	}
	end := offset + limit
	if limit == 0 || end > meta.Size {
		end = meta.Size
	}

	rangeHeader := fmt.Sprintf("bytes=%d-%d", offset, end-1)
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.contentKey(id)),
		Range:  aws.String(rangeHeader),
	})
	if err != nil {
		return nil, coreerrors.Wrap(coreerrors.KindInternal, "content_read_failed", err, "read")
	}
	defer out.Body.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(out.Body); err != nil {
		return nil, coreerrors.Wrap(coreerrors.KindInternal, "content_read_failed", err, "read body")
	}
	return buf.Bytes(), nil
}

func (s *S3Store) GetMeta(ctx context.Context, id ids.BlobId) (Meta, bool, error) {
	meta, found, err := s.readMeta(ctx, id)
	if err != nil {
		return Meta{}, false, coreerrors.Wrap(coreerrors.KindInternal, "meta_read_failed", err, "get meta")
	}
	return meta, found, nil
}

func (s *S3Store) Delete(ctx context.Context, id ids.BlobId) error {
	// Meta first, content last, same ordering discipline as every other
	// backend: once meta is gone the blob is absent to readers.
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(s.metaKey(id))})
	if err != nil {
		s.metrics.RecordBlobOp("s3", metrics.OpDelete, metrics.StatusError)
		return coreerrors.Wrap(coreerrors.KindInternal, "meta_delete_failed", err, "delete")
	}
	_, _ = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(s.contentKey(id))})
	logger.Info("blob deleted", logger.Backend("s3"), logger.BlobID(string(id)))
	s.metrics.RecordBlobOp("s3", metrics.OpDelete, metrics.StatusOK)
	return nil
}
