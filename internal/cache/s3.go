package cache

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/aws/aws-sdk-go/service/s3/s3manager/s3manageriface"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/h4ev/formgate/internal/models"
)

type S3Config struct {
	Bucket    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
}

// S3Store keeps payloads in an S3-compatible bucket and their expiry in the
// cache_entries table.
type S3Store struct {
	client   s3iface.S3API
	uploader s3manageriface.UploaderAPI
	bucket   string
	db       *gorm.DB
	log      *logrus.Entry
	now      func() time.Time
}

func NewS3Store(logger *logrus.Logger, cfg S3Config, db *gorm.DB) (*S3Store, error) {
	awsConfig := &aws.Config{
		Region:           aws.String(cfg.Region),
		Credentials:      credentials.NewStaticCredentials(cfg.AccessKey, cfg.SecretKey, ""),
		S3ForcePathStyle: aws.Bool(true),
	}
	if cfg.Endpoint != "" {
		awsConfig.Endpoint = aws.String(cfg.Endpoint)
	}

	sess, err := session.NewSession(awsConfig)
	if err != nil {
		return nil, fmt.Errorf("s3 session: %w", err)
	}

	client := s3.New(sess)
	return &S3Store{
		client:   client,
		uploader: s3manager.NewUploaderWithClient(client),
		bucket:   cfg.Bucket,
		db:       db,
		log:      logger.WithField("component", "s3_cache"),
		now:      time.Now,
	}, nil
}

func (s *S3Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var entry models.CacheEntry
	err := s.db.WithContext(ctx).Where("key = ?", key).First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache index lookup failed: %w", err)
	}

	if !s.now().Before(entry.ExpiresAt) {
		if err := s.Delete(ctx, key); err != nil {
			s.log.WithError(err).WithField("key", key).Warn("Failed to delete expired cache entry")
		}
		return nil, false, nil
	}

	resp, err := s.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var aerr awserr.Error
		if errors.As(err, &aerr) && aerr.Code() == s3.ErrCodeNoSuchKey {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("s3 get failed: %w", err)
	}
	defer resp.Body.Close()

	content, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, false, fmt.Errorf("s3 read failed: %w", err)
	}
	return content, true, nil
}

func (s *S3Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	_, err := s.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(value),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("s3 upload failed: %w", err)
	}

	now := s.now()
	entry := models.CacheEntry{
		Key:       key,
		SizeBytes: int64(len(value)),
		StoredAt:  now,
		ExpiresAt: now.Add(ttl),
	}
	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&entry).Error; err != nil {
		return fmt.Errorf("failed to save cache entry: %w", err)
	}
	return nil
}

// Delete removes the object and its index row. The index row is removed even
// when the object delete fails.
func (s *S3Store) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})

	if dbErr := s.db.WithContext(ctx).Where("key = ?", key).Delete(&models.CacheEntry{}).Error; dbErr != nil {
		s.log.WithError(dbErr).WithField("key", key).Warn("Failed to delete cache entry from index")
	}

	return err
}

func (s *S3Store) PurgeExpired(ctx context.Context) (int, error) {
	var expired []models.CacheEntry
	if err := s.db.WithContext(ctx).
		Where("expires_at <= ?", s.now()).
		Find(&expired).Error; err != nil {
		return 0, fmt.Errorf("cache purge query failed: %w", err)
	}

	purged := 0
	for _, entry := range expired {
		if err := s.Delete(ctx, entry.Key); err != nil {
			s.log.WithFields(logrus.Fields{"key": entry.Key, "error": err}).Error("Failed to delete cache object")
			continue
		}
		purged++
	}
	return purged, nil
}
