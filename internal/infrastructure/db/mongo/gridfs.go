package mongo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/99minutos/travel-portal/internal/core/domain"
	"github.com/99minutos/travel-portal/internal/core/ports"
)

const blobBucket = "uploads"

// BlobStorage keeps uploaded files in a GridFS bucket and hands out URLs
// served by the API's /files route.
type BlobStorage struct {
	bucket  *gridfs.Bucket
	baseURL string
}

var _ ports.BlobStorage = (*BlobStorage)(nil)

func NewBlobStorage(db *mongo.Database, publicBaseURL string) (*BlobStorage, error) {
	bucket, err := gridfs.NewBucket(db, optionsBucket())
	if err != nil {
		return nil, fmt.Errorf("open gridfs bucket: %w", err)
	}
	return &BlobStorage{bucket: bucket, baseURL: strings.TrimRight(publicBaseURL, "/")}, nil
}

func (s *BlobStorage) Upload(ctx context.Context, name string, r io.Reader) (string, error) {
	stream, err := s.bucket.OpenUploadStream(name)
	if err != nil {
		return "", fmt.Errorf("open upload stream: %w", err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = stream.SetWriteDeadline(deadline)
	}
	if _, err := io.Copy(stream, r); err != nil {
		_ = stream.Abort()
		return "", fmt.Errorf("write %s: %w", name, err)
	}
	if err := stream.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", name, err)
	}

	id, ok := stream.FileID.(primitive.ObjectID)
	if !ok {
		return "", fmt.Errorf("unexpected file id type %T", stream.FileID)
	}
	return s.baseURL + "/files/" + id.Hex(), nil
}

func (s *BlobStorage) Open(ctx context.Context, id string) (io.ReadCloser, string, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, "", domain.ErrNotFound
	}

	cur, err := s.bucket.Find(bson.M{"_id": oid})
	if err != nil {
		return nil, "", fmt.Errorf("find file %s: %w", id, err)
	}
	defer cur.Close(ctx)

	var file gridfs.File
	if !cur.Next(ctx) {
		return nil, "", domain.ErrNotFound
	}
	if err := cur.Decode(&file); err != nil {
		return nil, "", fmt.Errorf("decode file %s: %w", id, err)
	}

	stream, err := s.bucket.OpenDownloadStream(oid)
	if err != nil {
		if errors.Is(err, gridfs.ErrFileNotFound) {
			return nil, "", domain.ErrNotFound
		}
		return nil, "", fmt.Errorf("open file %s: %w", id, err)
	}
	return stream, file.Name, nil
}

func optionsBucket() *options.BucketOptions {
	return options.GridFSBucket().SetName(blobBucket)
}
