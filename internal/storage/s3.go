package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/draftsmith-ai/draftsmith/pkg/models"
)

// Metadata keys on stored objects.
const (
	metaSessionID = "session-id"
	metaAgentID   = "agent-id"
	metaCommand   = "command"
	metaTimestamp = "timestamp"
	metaTags      = "tags"
)

// S3Config configures an S3-compatible backend.
type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string
	Prefix          string
	AccessKeyID     string
	SecretAccessKey string
	UsePathStyle    bool
}

// S3Backend stores documents and session state in an S3-compatible bucket.
// Documents live under {prefix}/documents/{sessionId}/..., session state
// under {prefix}/sessions/{id}.json.
type S3Backend struct {
	client    *s3.Client
	presigner *s3.PresignClient
	bucket    string
	prefix    string
}

// NewS3Backend creates an S3-backed storage backend.
func NewS3Backend(ctx context.Context, cfg S3Config) (*S3Backend, error) {
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = "us-east-1"
	}

	loadOptions := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(region),
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		loadOptions = append(loadOptions, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOptions...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	endpoint := strings.TrimSpace(cfg.Endpoint)
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
		if cfg.UsePathStyle {
			o.UsePathStyle = true
		}
	})

	return &S3Backend{
		client:    client,
		presigner: s3.NewPresignClient(client),
		bucket:    bucket,
		prefix:    strings.Trim(cfg.Prefix, "/"),
	}, nil
}

// Initialize verifies the bucket is reachable.
func (b *S3Backend) Initialize(ctx context.Context) error {
	if _, err := b.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: &b.bucket}); err != nil {
		return fmt.Errorf("s3 head bucket %s: %w", b.bucket, err)
	}
	return nil
}

func (b *S3Backend) Close(ctx context.Context) error { return nil }

func (b *S3Backend) Save(ctx context.Context, doc models.Document, meta Metadata) (*SaveResult, error) {
	if meta.Timestamp.IsZero() {
		meta.Timestamp = time.Now()
	}
	meta.Size = len(doc.Content)
	if meta.MimeType == "" {
		meta.MimeType = MimeTypeFor(doc.Path)
	}

	storedPath := DocumentKey(meta.SessionID, doc.Path)
	key := b.documentKey(storedPath)
	input := &s3.PutObjectInput{
		Bucket:      &b.bucket,
		Key:         &key,
		Body:        strings.NewReader(doc.Content),
		ContentType: aws.String(meta.MimeType),
		Metadata:    encodeMetadata(meta),
	}
	if _, err := b.client.PutObject(ctx, input); err != nil {
		return nil, fmt.Errorf("s3 put object: %w", err)
	}

	return &SaveResult{Path: storedPath, Size: meta.Size, SavedAt: meta.Timestamp}, nil
}

func (b *S3Backend) SaveBatch(ctx context.Context, docs []models.Document, meta Metadata) ([]*SaveResult, error) {
	results := make([]*SaveResult, 0, len(docs))
	for _, doc := range docs {
		result, err := b.Save(ctx, doc, meta)
		if err != nil {
			return results, err
		}
		results = append(results, result)
	}
	return results, nil
}

func (b *S3Backend) Load(ctx context.Context, storedPath string) (*models.Document, error) {
	key := b.documentKey(storedPath)
	out, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &b.bucket,
		Key:    &key,
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("load %s: %w", storedPath, ErrNotFound)
		}
		return nil, fmt.Errorf("s3 get object: %w", err)
	}
	defer out.Body.Close()

	content, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("s3 read object: %w", err)
	}
	return &models.Document{Path: storedPath, Content: string(content)}, nil
}

func (b *S3Backend) Exists(ctx context.Context, storedPath string) (bool, error) {
	key := b.documentKey(storedPath)
	_, err := b.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: &b.bucket,
		Key:    &key,
	})
	if err == nil {
		return true, nil
	}
	if isNotFound(err) {
		return false, nil
	}
	return false, fmt.Errorf("s3 head object: %w", err)
}

func (b *S3Backend) Delete(ctx context.Context, storedPath string) (bool, error) {
	exists, err := b.Exists(ctx, storedPath)
	if err != nil || !exists {
		return false, err
	}
	key := b.documentKey(storedPath)
	if _, err := b.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: &b.bucket,
		Key:    &key,
	}); err != nil {
		return false, fmt.Errorf("s3 delete object: %w", err)
	}
	return true, nil
}

func (b *S3Backend) List(ctx context.Context, opts QueryOptions) (*ListResult, error) {
	// Session-scoped queries narrow the scan to the session's namespace.
	scanPrefix := b.documentKey("")
	if opts.SessionID != "" {
		scanPrefix = b.documentKey(opts.SessionID + "/")
	}

	var items []Item
	paginator := s3.NewListObjectsV2Paginator(b.client, &s3.ListObjectsV2Input{
		Bucket: &b.bucket,
		Prefix: &scanPrefix,
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("s3 list objects: %w", err)
		}
		for _, obj := range page.Contents {
			storedPath := b.storedPath(aws.ToString(obj.Key))
			meta, err := b.GetMetadata(ctx, storedPath)
			if err != nil {
				continue
			}
			if matchesQuery(*meta, opts) {
				items = append(items, Item{Path: storedPath, Metadata: *meta})
			}
		}
	}

	sort.Slice(items, func(i, j int) bool { return items[i].Path < items[j].Path })

	start, end, hasMore := paginate(len(items), opts.Offset, opts.Limit)
	return &ListResult{
		Items:   items[start:end],
		Total:   len(items),
		HasMore: hasMore,
	}, nil
}

func (b *S3Backend) GetMetadata(ctx context.Context, storedPath string) (*Metadata, error) {
	key := b.documentKey(storedPath)
	out, err := b.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: &b.bucket,
		Key:    &key,
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("metadata %s: %w", storedPath, ErrNotFound)
		}
		return nil, fmt.Errorf("s3 head object: %w", err)
	}

	meta := decodeMetadata(out.Metadata)
	meta.Size = int(aws.ToInt64(out.ContentLength))
	meta.MimeType = aws.ToString(out.ContentType)
	return &meta, nil
}

func (b *S3Backend) GetURL(ctx context.Context, storedPath string, expires time.Duration) (string, error) {
	if expires <= 0 {
		expires = 15 * time.Minute
	}
	key := b.documentKey(storedPath)
	req, err := b.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: &b.bucket,
		Key:    &key,
	}, func(o *s3.PresignOptions) {
		o.Expires = expires
	})
	if err != nil {
		return "", fmt.Errorf("s3 presign: %w", err)
	}
	return req.URL, nil
}

func (b *S3Backend) SaveSessionState(ctx context.Context, state *models.SessionState) error {
	encoded, err := models.EncodeSessionState(state)
	if err != nil {
		return err
	}
	key := b.sessionKey(state.ID)
	if _, err := b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      &b.bucket,
		Key:         &key,
		Body:        strings.NewReader(string(encoded)),
		ContentType: aws.String("application/json"),
	}); err != nil {
		return fmt.Errorf("s3 put session state: %w", err)
	}
	return nil
}

func (b *S3Backend) LoadSessionState(ctx context.Context, id string) (*models.SessionState, error) {
	key := b.sessionKey(id)
	out, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &b.bucket,
		Key:    &key,
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("session %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("s3 get session state: %w", err)
	}
	defer out.Body.Close()

	encoded, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("s3 read session state: %w", err)
	}
	return models.DecodeSessionState(encoded)
}

func (b *S3Backend) ListSessions(ctx context.Context, opts SessionQueryOptions) (*SessionListResult, error) {
	scanPrefix := b.sessionKey("")
	var states []*models.SessionState

	paginator := s3.NewListObjectsV2Paginator(b.client, &s3.ListObjectsV2Input{
		Bucket: &b.bucket,
		Prefix: &scanPrefix,
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("s3 list sessions: %w", err)
		}
		for _, obj := range page.Contents {
			id := strings.TrimSuffix(path.Base(aws.ToString(obj.Key)), ".json")
			state, err := b.LoadSessionState(ctx, id)
			if err != nil {
				continue
			}
			if opts.AgentID != "" && state.AgentID != opts.AgentID {
				continue
			}
			if opts.Status != "" && state.Status != opts.Status {
				continue
			}
			states = append(states, state)
		}
	}

	sort.Slice(states, func(i, j int) bool {
		if states[i].CreatedAt.Equal(states[j].CreatedAt) {
			return states[i].ID < states[j].ID
		}
		return states[i].CreatedAt.After(states[j].CreatedAt)
	})

	start, end, hasMore := paginate(len(states), opts.Offset, opts.Limit)
	return &SessionListResult{
		Sessions: states[start:end],
		Total:    len(states),
		HasMore:  hasMore,
	}, nil
}

func (b *S3Backend) DeleteSession(ctx context.Context, id string) (bool, error) {
	key := b.sessionKey(id)
	if _, err := b.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: &b.bucket,
		Key:    &key,
	}); err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("s3 head session state: %w", err)
	}
	if _, err := b.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: &b.bucket,
		Key:    &key,
	}); err != nil {
		return false, fmt.Errorf("s3 delete session state: %w", err)
	}
	return true, nil
}

func (b *S3Backend) documentKey(storedPath string) string {
	if b.prefix == "" {
		return "documents/" + storedPath
	}
	return b.prefix + "/documents/" + storedPath
}

func (b *S3Backend) storedPath(key string) string {
	return strings.TrimPrefix(key, b.documentKey(""))
}

func (b *S3Backend) sessionKey(id string) string {
	suffix := "sessions/" + id
	if id != "" {
		suffix += ".json"
	}
	if b.prefix == "" {
		return suffix
	}
	return b.prefix + "/" + suffix
}

func encodeMetadata(meta Metadata) map[string]string {
	out := map[string]string{
		metaSessionID: meta.SessionID,
		metaAgentID:   meta.AgentID,
		metaCommand:   meta.Command,
		metaTimestamp: strconv.FormatInt(meta.Timestamp.UnixMilli(), 10),
	}
	if len(meta.Tags) > 0 {
		out[metaTags] = strings.Join(meta.Tags, ",")
	}
	return out
}

func decodeMetadata(raw map[string]string) Metadata {
	meta := Metadata{
		SessionID: raw[metaSessionID],
		AgentID:   raw[metaAgentID],
		Command:   raw[metaCommand],
	}
	if ts, err := strconv.ParseInt(raw[metaTimestamp], 10, 64); err == nil {
		meta.Timestamp = time.UnixMilli(ts)
	}
	if tags := raw[metaTags]; tags != "" {
		meta.Tags = strings.Split(tags, ",")
	}
	return meta
}

func isNotFound(err error) bool {
	var notFound *types.NotFound
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &notFound) || errors.As(err, &noSuchKey) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		return strings.EqualFold(code, "NotFound") || strings.EqualFold(code, "NoSuchKey")
	}
	return false
}
