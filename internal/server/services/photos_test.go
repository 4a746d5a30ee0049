package services

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	sc "github.com/aturbins/hushwire/internal/server/config"
	"github.com/aturbins/hushwire/internal/server/repositories/repomanager"
)

type noopRepoMgr struct{ repomanager.RepositoryManager }

func newSvcForPresign(t *testing.T) (*PhotoService, *sql.DB) {
	t.Helper()
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New err: %v", err)
	}
	cfg := &sc.Config{
		S3Region:       "us-east-1",
		S3RootUser:     "minioadmin",
		S3RootPassword: "minioadmin",
		S3BaseEndpoint: "http://127.0.0.1:9000",
		S3Bucket:       "avatars",
		SecretKey:      "k",
	}
	return NewPhotoService(db, &noopRepoMgr{}, cfg), db
}

func stubPresignSeams(t *testing.T) {
	t.Helper()
	origLoad := loadDefaultAWSConfig
	origNewS3 := newS3ClientFromConfig
	origNewPre := newS3PresignClient
	origPut := presignPutObject
	origGet := presignGetObject
	t.Cleanup(func() {
		loadDefaultAWSConfig = origLoad
		newS3ClientFromConfig = origNewS3
		newS3PresignClient = origNewPre
		presignPutObject = origPut
		presignGetObject = origGet
	})

	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		return aws.Config{}, nil
	}
	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return &s3.Client{}
	}
	newS3PresignClient = func(c *s3.Client) *s3.PresignClient {
		return &s3.PresignClient{}
	}
}

func TestGetUploadURL_KeyAndURL(t *testing.T) {
	svc, db := newSvcForPresign(t)
	defer db.Close()
	stubPresignSeams(t)

	var capturedKey string
	presignPutObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		if *in.Bucket != "avatars" {
			t.Fatalf("bucket mismatch: %q", *in.Bucket)
		}
		capturedKey = *in.Key
		return &v4.PresignedHTTPRequest{URL: "http://signed-put/" + *in.Key}, nil
	}

	key, url, err := svc.GetUploadURL(context.Background(), "u-1")
	if err != nil {
		t.Fatalf("GetUploadURL err: %v", err)
	}
	if key != capturedKey {
		t.Fatalf("returned key differs from presigned key")
	}
	if !strings.HasPrefix(key, "avatars/u-1/") {
		t.Fatalf("key not scoped to user: %q", key)
	}
	if !strings.HasPrefix(url, "http://signed-put/") {
		t.Fatalf("unexpected url: %q", url)
	}
}

func TestGetDownloadURL(t *testing.T) {
	svc, db := newSvcForPresign(t)
	defer db.Close()
	stubPresignSeams(t)

	presignGetObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return &v4.PresignedHTTPRequest{URL: "http://signed-get/" + *in.Key}, nil
	}

	url, err := svc.GetDownloadURL(context.Background(), "avatars/u-1/x")
	if err != nil {
		t.Fatalf("GetDownloadURL err: %v", err)
	}
	if url != "http://signed-get/avatars/u-1/x" {
		t.Fatalf("unexpected url: %q", url)
	}
}

func TestGetUploadURL_PresignError(t *testing.T) {
	svc, db := newSvcForPresign(t)
	defer db.Close()
	stubPresignSeams(t)

	presignPutObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return nil, errors.New("presign-fail")
	}

	_, _, err := svc.GetUploadURL(context.Background(), "u-1")
	if err == nil || !strings.Contains(err.Error(), "presign-fail") {
		t.Fatalf("expected presign error, got %v", err)
	}
}

func TestGetUploadURL_ConfigLoadError(t *testing.T) {
	svc, db := newSvcForPresign(t)
	defer db.Close()
	stubPresignSeams(t)

	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		return aws.Config{}, errors.New("load-fail")
	}

	_, _, err := svc.GetUploadURL(context.Background(), "u-1")
	if err == nil || !strings.Contains(err.Error(), "load-fail") {
		t.Fatalf("expected config load error, got %v", err)
	}
}
