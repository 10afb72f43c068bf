package render

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"charmstudio/internal/llm"
)

type S3Config struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	// URLExpiry bounds presigned links. Zero means one hour.
	URLExpiry time.Duration
}

type S3Store struct {
	client     *minio.Client
	bucketName string
	region     string
	expiry     time.Duration
	initOnce   sync.Once
	initErr    error
}

func NewS3Store(cfg S3Config) (*S3Store, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("s3 endpoint is required")
	}
	access := strings.TrimSpace(cfg.AccessKey)
	secret := strings.TrimSpace(cfg.SecretKey)
	if access == "" || secret == "" {
		return nil, fmt.Errorf("s3 access key and secret key are required")
	}
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = "us-east-1"
	}
	expiry := cfg.URLExpiry
	if expiry <= 0 {
		expiry = time.Hour
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(access, secret, ""),
		Secure: cfg.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("init s3 client: %w", err)
	}
	return &S3Store{client: client, bucketName: bucket, region: region, expiry: expiry}, nil
}

func (s *S3Store) ensureBucket(ctx context.Context) error {
	s.initOnce.Do(func() {
		exists, err := s.client.BucketExists(ctx, s.bucketName)
		if err != nil {
			s.initErr = err
			return
		}
		if exists {
			return
		}
		s.initErr = s.client.MakeBucket(ctx, s.bucketName, minio.MakeBucketOptions{Region: s.region})
	})
	return s.initErr
}

func (s *S3Store) Put(ctx context.Context, ownerID string, img llm.Image) (Stored, error) {
	if len(img.Data) == 0 {
		return Stored{}, fmt.Errorf("render is empty")
	}
	if err := s.ensureBucket(ctx); err != nil {
		return Stored{}, fmt.Errorf("ensure bucket: %w", err)
	}
	id := newID(img.MIMEType)
	_, err := s.client.PutObject(ctx, s.bucketName, objectKey(id), bytes.NewReader(img.Data), int64(len(img.Data)), minio.PutObjectOptions{
		ContentType:  img.MIMEType,
		UserMetadata: map[string]string{"owner": ownerID},
	})
	if err != nil {
		return Stored{}, err
	}
	u, err := s.client.PresignedGetObject(ctx, s.bucketName, objectKey(id), s.expiry, nil)
	if err != nil {
		return Stored{}, err
	}
	return Stored{ID: id, URL: u.String()}, nil
}

func (s *S3Store) Get(ctx context.Context, id string) (llm.Image, error) {
	if !validID(id) {
		return llm.Image{}, ErrNotFound
	}
	if err := s.ensureBucket(ctx); err != nil {
		return llm.Image{}, fmt.Errorf("ensure bucket: %w", err)
	}
	obj, err := s.client.GetObject(ctx, s.bucketName, objectKey(id), minio.GetObjectOptions{})
	if err != nil {
		return llm.Image{}, err
	}
	defer obj.Close()
	data, err := io.ReadAll(obj)
	if err != nil {
		errResp := minio.ToErrorResponse(err)
		if errResp.Code == "NoSuchKey" || errResp.Code == "NoSuchBucket" {
			return llm.Image{}, ErrNotFound
		}
		return llm.Image{}, err
	}
	info, err := obj.Stat()
	if err != nil {
		return llm.Image{}, err
	}
	return llm.Image{MIMEType: info.ContentType, Data: data}, nil
}

func objectKey(id string) string {
	return "renders/" + strings.TrimSpace(id)
}
