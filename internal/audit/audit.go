// Package audit records every real DDL execution to an append-only log file
// and optionally ships the log to S3.
package audit

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// Log appends one line per executed statement: id | timestamp | tier | sql.
// Appends are unconditional for every real execution; dry runs never reach
// the log.
type Log struct {
	path string
}

func NewLog(path string) *Log {
	return &Log{path: path}
}

func (l *Log) Path() string { return l.path }

// Append writes one audit line. The file and its parent directory are
// created on first use.
func (l *Log) Append(tier string, sql string) error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("create audit dir: %w", err)
	}
	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open audit log: %w", err)
	}
	defer f.Close()
	line := fmt.Sprintf("%s | %s | %s | %s\n", uuid.NewString(), time.Now().UTC().Format(time.RFC3339), tier, sql)
	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("append audit line: %w", err)
	}
	return nil
}

// Archiver uploads the audit log to an S3 bucket so the trail survives the
// host. Unconfigured (empty bucket) archivers are inert.
type Archiver struct {
	log    *Log
	bucket string
	prefix string
	client *s3.Client
}

func NewArchiver(ctx context.Context, log *Log, bucket, prefix string) (*Archiver, error) {
	a := &Archiver{log: log, bucket: bucket, prefix: prefix}
	if bucket == "" {
		return a, nil
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	a.client = s3.NewFromConfig(cfg)
	return a, nil
}

// Upload puts the current log file under prefix/audit-<date>.log. Returns
// false when archival is not configured or the log file does not exist yet.
func (a *Archiver) Upload(ctx context.Context) (bool, error) {
	if a.client == nil {
		return false, nil
	}
	f, err := os.Open(a.log.Path())
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("open audit log: %w", err)
	}
	defer f.Close()
	key := filepath.Join(a.prefix, fmt.Sprintf("audit-%s.log", time.Now().UTC().Format("2006-01-02")))
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: &a.bucket,
		Key:    &key,
		Body:   f,
	})
	if err != nil {
		return false, fmt.Errorf("upload audit log: %w", err)
	}
	return true, nil
}
