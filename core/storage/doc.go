// Package storage keeps merge metadata in S3 compatible object storage.
//
// It wraps the MinIO Go client behind the narrow Client interface so the
// recorder can be tested with core/storage/mocks. Both AWS S3 and self-hosted
// MinIO instances are supported.
//
// # Recorder
//
// Recorder keeps merge metadata as one JSON document per target table
// (<prefix>/<database>.<schema>.<table>.json). It serves as the metadata
// recorder when the target database cannot carry extended properties.
//
// # Usage
//
//	client, err := storage.NewClient(cfg)
//	err = storage.EnsureBucket(ctx, client, cfg.Bucket, cfg.Region)
//	rec := storage.NewRecorder(client, cfg.Bucket, "merge-metadata")
package storage
