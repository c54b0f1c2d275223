package mongodb

import (
	"bytes"
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mamadbah2/fieldtrack/internal/blob"
)

// ObjectStore keeps uploaded images in a GridFS bucket, one file per path.
type ObjectStore struct {
	bucket *gridfs.Bucket
}

type gridFile struct {
	ID       primitive.ObjectID `bson:"_id"`
	Metadata bson.M             `bson:"metadata"`
}

// NewObjectStore opens the named GridFS bucket on the store's database.
func NewObjectStore(store *Store, bucketName string) (*ObjectStore, error) {
	bucket, err := gridfs.NewBucket(store.Database(), options.GridFSBucket().SetName(bucketName))
	if err != nil {
		return nil, fmt.Errorf("failed to open gridfs bucket %s: %w", bucketName, err)
	}
	return &ObjectStore{bucket: bucket}, nil
}

// Put replaces any object stored at path.
func (s *ObjectStore) Put(ctx context.Context, path string, obj blob.Object) error {
	existing, err := s.find(ctx, path, 0)
	if err != nil {
		return err
	}
	for _, f := range existing {
		if err := s.bucket.Delete(f.ID); err != nil {
			return fmt.Errorf("failed to replace %s: %w", path, err)
		}
	}

	uploadOpts := options.GridFSUpload().SetMetadata(bson.M{"contentType": obj.ContentType})
	if _, err := s.bucket.UploadFromStream(path, bytes.NewReader(obj.Data), uploadOpts); err != nil {
		return fmt.Errorf("failed to upload %s: %w", path, err)
	}
	return nil
}

func (s *ObjectStore) Get(ctx context.Context, path string) (blob.Object, error) {
	files, err := s.find(ctx, path, 1)
	if err != nil {
		return blob.Object{}, err
	}
	if len(files) == 0 {
		return blob.Object{}, fmt.Errorf("%s: %w", path, blob.ErrNotFound)
	}

	var buf bytes.Buffer
	if _, err := s.bucket.DownloadToStream(files[0].ID, &buf); err != nil {
		return blob.Object{}, fmt.Errorf("failed to download %s: %w", path, err)
	}

	contentType, _ := files[0].Metadata["contentType"].(string)
	return blob.Object{Data: buf.Bytes(), ContentType: contentType}, nil
}

func (s *ObjectStore) find(ctx context.Context, path string, limit int32) ([]gridFile, error) {
	findOpts := options.GridFSFind().SetSort(bson.D{{Key: "uploadDate", Value: -1}})
	if limit > 0 {
		findOpts.SetLimit(limit)
	}

	cur, err := s.bucket.Find(bson.M{"filename": path}, findOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to look up %s: %w", path, err)
	}

	var files []gridFile
	if err := cur.All(ctx, &files); err != nil {
		return nil, fmt.Errorf("failed to read %s metadata: %w", path, err)
	}
	return files, nil
}
