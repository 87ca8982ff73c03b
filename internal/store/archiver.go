package store

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/chrysalis-dev/morph-core/internal/canonical"
	"github.com/chrysalis-dev/morph-core/internal/canonicaljson"
)

// Archiver is the cold-storage side channel for snapshots: every
// CreateSnapshot call can be mirrored here for durable, independently
// auditable retention, grounded on kernel/internal/audit/s3_archiver.go.
type Archiver interface {
	Archive(ctx context.Context, snap Snapshot) error
}

// S3SnapshotArchiver writes one canonical JSON object per snapshot under
// a dated key, the same layout the kernel's audit archiver uses
// (prefix/snapshots/YYYY/MM/DD/agent-id/version.json), using
// aws-sdk-go-v2's manager.Uploader for multipart-safe puts.
type S3SnapshotArchiver struct {
	client   *s3.Client
	uploader *manager.Uploader
	bucket   string
	prefix   string
}

// NewS3SnapshotArchiver constructs an archiver over an existing S3 client.
func NewS3SnapshotArchiver(client *s3.Client, bucket, prefix string) *S3SnapshotArchiver {
	return &S3SnapshotArchiver{
		client:   client,
		uploader: manager.NewUploader(client),
		bucket:   bucket,
		prefix:   prefix,
	}
}

type archivedSnapshot struct {
	AgentID   string                 `json:"agent_id"`
	Version   int                    `json:"version"`
	GraphName string                 `json:"graph_name"`
	Quads     []string               `json:"quads"`
	Meta      map[string]interface{} `json:"meta"`
	ValidFrom time.Time              `json:"valid_from"`
	ValidTo   *time.Time             `json:"valid_to,omitempty"`
	TxTime    time.Time              `json:"tx_time"`
	PrevHash  string                 `json:"prev_hash"`
	Hash      string                 `json:"hash"`
}

// Archive uploads the canonical JSON form of snap to S3 with SSE-S3
// server-side encryption, under a dated object key.
func (a *S3SnapshotArchiver) Archive(ctx context.Context, snap Snapshot) error {
	lines := make([]string, 0, len(snap.Quads))
	for _, q := range snap.Quads {
		lines = append(lines, canonical.Serialize([]canonical.Quad{q}))
	}

	payload, err := canonicaljson.Marshal(archivedSnapshot{
		AgentID:   snap.AgentID,
		Version:   snap.Version,
		GraphName: snap.GraphName,
		Quads:     lines,
		Meta:      snap.Meta,
		ValidFrom: snap.ValidFrom,
		ValidTo:   snap.ValidTo,
		TxTime:    snap.TxTime,
		PrevHash:  snap.PrevHash,
		Hash:      snap.Hash,
	})
	if err != nil {
		return fmt.Errorf("archiver: canonicalize snapshot: %w", err)
	}

	year, month, day := snap.TxTime.Date()
	key := path.Join(a.prefix, "snapshots",
		fmt.Sprintf("%04d", year), fmt.Sprintf("%02d", int(month)), fmt.Sprintf("%02d", day),
		snap.AgentID, fmt.Sprintf("%d.json", snap.Version))

	_, err = a.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:               aws.String(a.bucket),
		Key:                  aws.String(key),
		Body:                 bytes.NewReader(payload),
		ServerSideEncryption: types.ServerSideEncryptionAes256,
		ContentType:          aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("archiver: upload snapshot: %w", err)
	}
	return nil
}
