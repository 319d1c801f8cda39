// Package storage keeps episode document blobs in GridFS, keyed by an
// episode-scoped path. Descriptors live on the episode; this package only
// handles bytes.
package storage

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type GridFSStore struct {
	bucket *gridfs.Bucket
}

func NewGridFSStore(db *mongo.Database) (*GridFSStore, error) {
	bucket, err := gridfs.NewBucket(db, options.GridFSBucket().SetName("episode_documents"))
	if err != nil {
		return nil, err
	}
	return &GridFSStore{bucket: bucket}, nil
}

// Put stores the file under episodes/<episodeID>/<filename> and returns
// that path for the document descriptor.
func (s *GridFSStore) Put(ctx context.Context, episodeID, filename string, data []byte) (string, error) {
	path := fmt.Sprintf("episodes/%s/%s", episodeID, filename)

	stream, err := s.bucket.OpenUploadStream(path)
	if err != nil {
		return "", err
	}
	if _, err := stream.Write(data); err != nil {
		stream.Close()
		return "", err
	}
	if err := stream.Close(); err != nil {
		return "", err
	}
	return path, nil
}
