package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"

	"sqlmerge/core/database"

	"github.com/minio/minio-go/v7"
)

// Recorder keeps table metadata as one JSON document per table in a bucket.
// It is used when the target database does not accept extended properties.
type Recorder struct {
	client Client
	bucket string
	prefix string
}

// NewRecorder creates a recorder storing documents under prefix in bucket.
func NewRecorder(client Client, bucket, prefix string) *Recorder {
	return &Recorder{client: client, bucket: bucket, prefix: prefix}
}

// ObjectName returns the document location for target.
func (r *Recorder) ObjectName(target database.TableRef) string {
	return path.Join(r.prefix, target.String()+".json")
}

// EnsureProperty creates the key with an empty value when absent.
func (r *Recorder) EnsureProperty(ctx context.Context, target database.TableRef, key string) error {
	props, err := r.load(ctx, target)
	if err != nil {
		return err
	}
	if _, ok := props[key]; ok {
		return nil
	}
	props[key] = ""
	return r.save(ctx, target, props)
}

// SetProperty overwrites the value of key.
func (r *Recorder) SetProperty(ctx context.Context, target database.TableRef, key, value string) error {
	props, err := r.load(ctx, target)
	if err != nil {
		return err
	}
	props[key] = value
	return r.save(ctx, target, props)
}

func (r *Recorder) load(ctx context.Context, target database.TableRef) (map[string]string, error) {
	if target.Temporary() {
		return nil, fmt.Errorf("%w: %s is a temporary table", database.ErrPropertiesUnsupported, target)
	}
	name := r.ObjectName(target)
	props := map[string]string{}

	obj, err := r.client.GetObject(ctx, r.bucket, name, minio.GetObjectOptions{})
	if err != nil {
		if isNotFound(err) {
			return props, nil
		}
		return nil, fmt.Errorf("failed to get %s: %w", name, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		if isNotFound(err) {
			return props, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return props, nil
	}
	if err := json.Unmarshal(data, &props); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", name, err)
	}
	return props, nil
}

func (r *Recorder) save(ctx context.Context, target database.TableRef, props map[string]string) error {
	name := r.ObjectName(target)
	data, err := json.Marshal(props)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", name, err)
	}
	_, err = r.client.PutObject(ctx, r.bucket, name, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return fmt.Errorf("failed to put %s: %w", name, err)
	}
	return nil
}

func isNotFound(err error) bool {
	var resp minio.ErrorResponse
	if errors.As(err, &resp) {
		return resp.Code == "NoSuchKey"
	}
	return minio.ToErrorResponse(err).Code == "NoSuchKey"
}
