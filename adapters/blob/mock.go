package blob

import (
	"context"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// MockObject is one captured object, following storage/s3_mock.go's
// MockS3Object shape.
type MockObject struct {
	Key     string
	Content string
	ETag    string
}

// MockClient is a dependency-free stand-in for Client, following
// storage/s3_mock.go's MockS3Client Objects-map / Err-injection /
// Called-tracking / Last*-capture convention, extended with DeleteObject
// since this adapter (unlike the teacher's upload-only use case) needs to
// remove objects on Rollback.
type MockClient struct {
	Objects map[string]*MockObject
	Err     error

	PutObjectCalled    bool
	GetObjectCalled    bool
	DeleteObjectCalled bool
	ListObjectsCalled  bool

	LastBucket    string
	LastObjectKey string
}

// NewMockClient creates an empty mock.
func NewMockClient() *MockClient {
	return &MockClient{Objects: make(map[string]*MockObject)}
}

func (m *MockClient) ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	m.ListObjectsCalled = true
	if params.Bucket != nil {
		m.LastBucket = *params.Bucket
	}
	if m.Err != nil {
		return nil, m.Err
	}

	prefix := aws.ToString(params.Prefix)
	var contents []types.Object
	for key, obj := range m.Objects {
		if prefix == "" || strings.HasPrefix(key, prefix) {
			contents = append(contents, types.Object{
				Key:  aws.String(obj.Key),
				ETag: aws.String(obj.ETag),
				Size: aws.Int64(int64(len(obj.Content))),
			})
		}
	}
	return &s3.ListObjectsV2Output{Contents: contents, IsTruncated: aws.Bool(false)}, nil
}

func (m *MockClient) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	m.GetObjectCalled = true
	if params.Key != nil {
		m.LastObjectKey = *params.Key
	}
	if m.Err != nil {
		return nil, m.Err
	}

	obj, ok := m.Objects[aws.ToString(params.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(obj.Content)), ETag: aws.String(obj.ETag)}, nil
}

func (m *MockClient) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	m.PutObjectCalled = true
	if params.Key != nil {
		m.LastObjectKey = *params.Key
	}
	if m.Err != nil {
		return nil, m.Err
	}

	content := ""
	if params.Body != nil {
		data, err := io.ReadAll(params.Body)
		if err == nil {
			content = string(data)
		}
	}
	key := aws.ToString(params.Key)
	m.Objects[key] = &MockObject{Key: key, Content: content, ETag: etagOf(content)}
	return &s3.PutObjectOutput{}, nil
}

func (m *MockClient) DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	m.DeleteObjectCalled = true
	if params.Key != nil {
		m.LastObjectKey = *params.Key
	}
	if m.Err != nil {
		return nil, m.Err
	}
	delete(m.Objects, aws.ToString(params.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func etagOf(content string) string {
	// A real bucket's ETag is an MD5 of the body for simple uploads; the
	// mock only needs content-sensitivity, not MD5 compatibility, so a
	// cheap "mock-"+content marker is enough to distinguish objects in tests.
	return "mock-" + content
}
