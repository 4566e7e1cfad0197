package utils

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"

	"osint-market/config"
	"osint-market/models"
)

// maxEvidenceBlob bounds inline evidence uploads (8 MiB decoded).
const maxEvidenceBlob = 8 << 20

// R2Archiver stores durable copies of submission evidence in a
// Cloudflare R2 bucket. Evidence rots — pages go down, images get
// deleted — so the archived URL is what disputes are judged against.
type R2Archiver struct {
	client  *s3.Client
	bucket  string
	baseURL string
}

// NewR2Archiver returns nil when the archive is not configured;
// callers treat a nil archiver as archiving disabled.
func NewR2Archiver(cfg config.ArchiveConfig) (*R2Archiver, error) {
	if cfg.AccountID == "" || cfg.Bucket == "" {
		return nil, nil
	}

	endpoint := fmt.Sprintf("https://%s.r2.cloudflarestorage.com", cfg.AccountID)
	baseURL := cfg.PublicBaseURL
	if baseURL == "" {
		baseURL = endpoint
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion("auto"),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID, cfg.AccessKeySecret, "",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load R2 config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
	})
	return &R2Archiver{client: client, bucket: cfg.Bucket, baseURL: baseURL}, nil
}

// Archive uploads inline image and archive evidence and rewrites each
// item to point at the stored copy. Best effort: items that fail to
// upload are returned unchanged.
func (a *R2Archiver) Archive(ctx context.Context, bountyID string, evidence []models.Evidence) []models.Evidence {
	if a == nil {
		return evidence
	}
	out := make([]models.Evidence, len(evidence))
	for i, ev := range evidence {
		out[i] = ev
		if ev.Type != models.EvidenceImage && ev.Type != models.EvidenceArchive {
			continue
		}
		url, err := a.uploadDataURI(ctx, bountyID, i, ev.Content)
		if err != nil {
			zap.S().Warnf("⚠️ Evidence archive failed for bounty %s item %d: %v", bountyID, i, err)
			continue
		}
		out[i].Content = url
		out[i].ArchivedAt = url
	}
	return out
}

// uploadDataURI decodes a data: URI and stores the payload under a
// per-bounty key.
func (a *R2Archiver) uploadDataURI(ctx context.Context, bountyID string, index int, content string) (string, error) {
	if !strings.HasPrefix(content, "data:") {
		return "", fmt.Errorf("not an inline data URI")
	}
	head, payload, found := strings.Cut(content[len("data:"):], ",")
	if !found {
		return "", fmt.Errorf("malformed data URI")
	}
	contentType := strings.TrimSuffix(head, ";base64")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", fmt.Errorf("failed to decode evidence payload: %w", err)
	}
	if len(data) > maxEvidenceBlob {
		return "", fmt.Errorf("evidence payload exceeds %d bytes", maxEvidenceBlob)
	}

	key := fmt.Sprintf("evidence/%s/%d-%d%s", bountyID, index, time.Now().Unix(), extensionFor(contentType))
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload to R2: %w", err)
	}
	return fmt.Sprintf("%s/%s", a.baseURL, key), nil
}

func extensionFor(contentType string) string {
	switch contentType {
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	case "application/zip":
		return ".zip"
	case "application/pdf":
		return ".pdf"
	default:
		return ".bin"
	}
}
