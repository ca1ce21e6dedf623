package archive

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type recordingPutter struct {
	input *s3.PutObjectInput
	body  string
	err   error
}

func (r *recordingPutter) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	r.input = in
	data, _ := io.ReadAll(in.Body)
	r.body = string(data)
	if r.err != nil {
		return nil, r.err
	}
	return &s3.PutObjectOutput{}, nil
}

func TestStoreUploadsUnderPrefix(t *testing.T) {
	t.Parallel()

	video := filepath.Join(t.TempDir(), "AB12345_shorts.mp4")
	if err := os.WriteFile(video, []byte("mp4"), 0o644); err != nil {
		t.Fatalf("write video: %v", err)
	}

	putter := &recordingPutter{}
	key, err := newS3Archive(putter, "shorts-bucket", "/news/shorts/").Store(context.Background(), video)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if key != "news/shorts/AB12345_shorts.mp4" {
		t.Fatalf("unexpected key: %s", key)
	}
	if aws.ToString(putter.input.Bucket) != "shorts-bucket" || aws.ToString(putter.input.ContentType) != "video/mp4" {
		t.Fatalf("unexpected input: %+v", putter.input)
	}
	if putter.body != "mp4" {
		t.Fatalf("unexpected body: %q", putter.body)
	}
}

func TestStoreReportsFailures(t *testing.T) {
	t.Parallel()

	archive := newS3Archive(&recordingPutter{err: errors.New("access denied")}, "b", "")
	if _, err := archive.Store(context.Background(), filepath.Join(t.TempDir(), "missing.mp4")); err == nil {
		t.Fatalf("expected error for a missing file")
	}

	video := filepath.Join(t.TempDir(), "v.mp4")
	if err := os.WriteFile(video, []byte("x"), 0o644); err != nil {
		t.Fatalf("write video: %v", err)
	}
	if _, err := archive.Store(context.Background(), video); err == nil {
		t.Fatalf("expected put error")
	}
}
