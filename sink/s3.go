// S3-backed export sink.
//
// Each export becomes one NDJSON object in the bucket, keyed by export time.  The sink depends on
// a narrow client interface rather than the concrete SDK client so tests can run against an
// in-memory fake.

package sink

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Client is the subset of the AWS SDK client the sink uses.
type S3Client interface {
	PutObject(
		ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options),
	) (*s3.PutObjectOutput, error)
}

type S3Sink struct {
	client S3Client
	bucket string
	prefix string
	now    func() time.Time
}

func NewS3Sink(client S3Client, bucket, prefix string) *S3Sink {
	return &S3Sink{
		client: client,
		bucket: bucket,
		prefix: prefix,
		now:    time.Now,
	}
}

func (ss *S3Sink) Write(lines [][]byte) error {
	var buf bytes.Buffer
	for _, line := range lines {
		buf.Write(line)
		buf.WriteByte('\n')
	}
	key := fmt.Sprintf("%sexport-%s.ndjson", ss.prefix, ss.now().UTC().Format("20060102T150405Z"))
	_, err := ss.client.PutObject(context.Background(), &s3.PutObjectInput{
		Bucket:      aws.String(ss.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: aws.String("application/x-ndjson"),
	})
	if err != nil {
		return fmt.Errorf("Export to s3://%s/%s failed: %w", ss.bucket, key, err)
	}
	return nil
}

// NewEnvS3Client builds a concrete SDK client from the conventional environment: AWS_REGION,
// AWS_ACCESS_KEY_ID, AWS_SECRET_ACCESS_KEY and optionally AWS_SESSION_TOKEN.

func NewEnvS3Client() S3Client {
	creds := aws.CredentialsProviderFunc(func(context.Context) (aws.Credentials, error) {
		return aws.Credentials{
			AccessKeyID:     os.Getenv("AWS_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
			SessionToken:    os.Getenv("AWS_SESSION_TOKEN"),
		}, nil
	})
	return s3.New(s3.Options{
		Region:      os.Getenv("AWS_REGION"),
		Credentials: creds,
	})
}

// A MemoryS3Client is an in-memory stand-in for the SDK client, for tests.  Safe for concurrent
// use.

type MemoryS3Client struct {
	lock    sync.Mutex
	objects map[string][]byte
}

func NewMemoryS3Client() *MemoryS3Client {
	return &MemoryS3Client{objects: make(map[string][]byte)}
}

func (mc *MemoryS3Client) PutObject(
	_ context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options),
) (*s3.PutObjectOutput, error) {
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(params.Body); err != nil {
		return nil, err
	}
	mc.lock.Lock()
	defer mc.lock.Unlock()
	mc.objects[aws.ToString(params.Key)] = buf.Bytes()
	return &s3.PutObjectOutput{}, nil
}

func (mc *MemoryS3Client) Object(key string) ([]byte, bool) {
	mc.lock.Lock()
	defer mc.lock.Unlock()
	data, found := mc.objects[key]
	return data, found
}

func (mc *MemoryS3Client) Keys() []string {
	mc.lock.Lock()
	defer mc.lock.Unlock()
	keys := make([]string, 0, len(mc.objects))
	for k := range mc.objects {
		keys = append(keys, k)
	}
	return keys
}
