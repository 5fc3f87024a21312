package storage

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"bookwhisperer/config"
	s3client "bookwhisperer/pkg/s3"
)

var contentTypes = map[string]string{
	".epub": "application/epub+zip",
	".txt":  "text/plain",
	".pdf":  "application/pdf",
	".wav":  "audio/wav",
	".mp3":  "audio/mpeg",
}

func contentTypeFor(ext string) string {
	if ct, ok := contentTypes[ext]; ok {
		return ct
	}
	return "application/octet-stream"
}

func useS3() bool {
	return strings.TrimSpace(config.Cfg.S3.Bucket) != ""
}

// SaveUpload stores a manuscript stream under a content-hash name and
// returns the stored path (local path or s3:// URL) plus the sha256 hex.
func SaveUpload(ctx context.Context, r io.Reader, filename string) (string, string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" {
		ext = ".txt"
	}
	if useS3() {
		return storeToS3(ctx, r, "uploads", ext)
	}
	return storeToLocal(r, config.Cfg.Storage.UploadPath, ext)
}

// SaveAudio stores one synthesized segment and returns its stored path.
// Audio files are addressed by chapter and chunk, not by content hash, so a
// re-run overwrites the previous take.
func SaveAudio(ctx context.Context, data []byte, chapterID string, chunkIndex int, format string) (string, error) {
	name := fmt.Sprintf("%s_%03d.%s", chapterID, chunkIndex, format)

	if useS3() {
		key := "audio/" + name
		client, err := s3client.GetClient()
		if err != nil {
			return "", fmt.Errorf("s3 client: %w", err)
		}
		bucket := config.Cfg.S3.Bucket
		if err := ensureBucket(ctx, client, bucket); err != nil {
			return "", err
		}
		_, err = client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(bucket),
			Key:         aws.String(key),
			Body:        bytes.NewReader(data),
			ContentType: aws.String(contentTypeFor("." + format)),
		})
		if err != nil {
			return "", fmt.Errorf("put object: %w", err)
		}
		return fmt.Sprintf("s3://%s/%s", bucket, key), nil
	}

	baseDir := config.Cfg.Storage.AudioPath
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create audio dir: %w", err)
	}
	path := filepath.Join(baseDir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write audio file: %w", err)
	}
	return path, nil
}

func storeToLocal(r io.Reader, baseDir, ext string) (string, string, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return "", "", fmt.Errorf("failed to create storage dir: %w", err)
	}

	tmpFile, err := os.CreateTemp(baseDir, "upload-*.tmp")
	if err != nil {
		return "", "", fmt.Errorf("failed to create temp file: %w", err)
	}
	defer func() {
		tmpFile.Close()
		_ = os.Remove(tmpFile.Name())
	}()

	hasher := sha256.New()
	if _, err := io.Copy(io.MultiWriter(tmpFile, hasher), r); err != nil {
		return "", "", fmt.Errorf("failed to write file: %w", err)
	}

	shaHex := hex.EncodeToString(hasher.Sum(nil))
	finalPath := filepath.Join(baseDir, shaHex+ext)
	if err := os.Rename(tmpFile.Name(), finalPath); err != nil {
		return "", "", fmt.Errorf("failed to finalize file: %w", err)
	}
	return finalPath, shaHex, nil
}

func storeToS3(ctx context.Context, r io.Reader, prefix, ext string) (string, string, error) {
	client, err := s3client.GetClient()
	if err != nil {
		return "", "", fmt.Errorf("s3 client: %w", err)
	}
	bucket := config.Cfg.S3.Bucket
	if err := ensureBucket(ctx, client, bucket); err != nil {
		return "", "", err
	}

	// The body is needed twice (hash + upload); buffer through a temp file.
	tmp, err := os.CreateTemp("", "s3-upload-*.tmp")
	if err != nil {
		return "", "", fmt.Errorf("tempfile: %w", err)
	}
	defer func() {
		tmp.Close()
		_ = os.Remove(tmp.Name())
	}()

	hasher := sha256.New()
	if _, err := io.Copy(io.MultiWriter(tmp, hasher), r); err != nil {
		return "", "", fmt.Errorf("stream copy: %w", err)
	}
	shaHex := hex.EncodeToString(hasher.Sum(nil))
	key := fmt.Sprintf("%s/%s%s", prefix, shaHex, ext)

	if _, err := tmp.Seek(0, 0); err != nil {
		return "", "", fmt.Errorf("seek: %w", err)
	}
	_, err = client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		Body:        tmp,
		ContentType: aws.String(contentTypeFor(ext)),
	})
	if err != nil {
		return "", "", fmt.Errorf("put object: %w", err)
	}
	return fmt.Sprintf("s3://%s/%s", bucket, key), shaHex, nil
}

func ensureBucket(ctx context.Context, client *s3.Client, bucket string) error {
	if _, err := client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(bucket)}); err == nil {
		return nil
	}
	if _, err := client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(bucket)}); err != nil {
		var owned *s3types.BucketAlreadyOwnedByYou
		if !errors.As(err, &owned) {
			return fmt.Errorf("create bucket: %w", err)
		}
	}
	return nil
}

// FetchToLocalTemp makes a stored file readable from the local filesystem,
// downloading from S3 when needed. The cleanup func removes the temp copy.
func FetchToLocalTemp(ctx context.Context, storedPath string) (string, func(), error) {
	noop := func() {}
	ext := filepath.Ext(storedPath)

	if strings.HasPrefix(storedPath, "s3://") {
		u, err := url.Parse(storedPath)
		if err != nil {
			return "", noop, err
		}
		bucket := u.Host
		key := strings.TrimPrefix(u.Path, "/")

		client, err := s3client.GetClient()
		if err != nil {
			return "", noop, err
		}
		out, err := client.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(bucket), Key: aws.String(key)})
		if err != nil {
			return "", noop, err
		}
		defer out.Body.Close()

		tmp, err := os.CreateTemp("", "fetch-*"+ext)
		if err != nil {
			return "", noop, err
		}
		if _, err := io.Copy(tmp, out.Body); err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
			return "", noop, err
		}
		tmp.Close()
		return tmp.Name(), func() { _ = os.Remove(tmp.Name()) }, nil
	}

	abs := storedPath
	if !filepath.IsAbs(abs) {
		cwd, _ := os.Getwd()
		abs = filepath.Join(cwd, storedPath)
	}
	if _, err := os.Stat(abs); err != nil {
		return "", noop, err
	}
	return abs, noop, nil
}

// PresignDownload returns a time-limited direct download URL for an
// S3-backed file. Local files return "" so callers fall back to the API's
// own download endpoint.
func PresignDownload(ctx context.Context, storedPath string, expiry time.Duration) (string, error) {
	if !strings.HasPrefix(storedPath, "s3://") {
		return "", nil
	}
	u, err := url.Parse(storedPath)
	if err != nil {
		return "", err
	}
	presigner, err := s3client.GetPresignClient()
	if err != nil {
		return "", err
	}
	req, err := presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(u.Host),
		Key:    aws.String(strings.TrimPrefix(u.Path, "/")),
	}, s3.WithPresignExpires(expiry))
	if err != nil {
		return "", err
	}
	return req.URL, nil
}

// Delete removes a stored file, local or S3. Missing files are not an error.
func Delete(ctx context.Context, storedPath string) error {
	if storedPath == "" {
		return nil
	}
	if strings.HasPrefix(storedPath, "s3://") {
		u, err := url.Parse(storedPath)
		if err != nil {
			return err
		}
		client, err := s3client.GetClient()
		if err != nil {
			return err
		}
		_, err = client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(u.Host),
			Key:    aws.String(strings.TrimPrefix(u.Path, "/")),
		})
		return err
	}
	if err := os.Remove(storedPath); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
