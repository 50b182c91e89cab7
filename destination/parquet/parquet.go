package parquet

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/datazip-inc/kvrdd/constants"
	"github.com/datazip-inc/kvrdd/destination"
	"github.com/datazip-inc/kvrdd/types"
	"github.com/datazip-inc/kvrdd/utils"
	"github.com/datazip-inc/kvrdd/utils/logger"
	"github.com/hashicorp/go-multierror"
	pqgo "github.com/parquet-go/parquet-go"
	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/source"
)

type Config struct {
	Path       string `json:"local_path"`
	Bucket     string `json:"s3_bucket"`
	Region     string `json:"s3_region" validate:"required_with=Bucket"`
	AccessKey  string `json:"s3_access_key"`
	SecretKey  string `json:"s3_secret_key" validate:"required_with=AccessKey"`
	S3Endpoint string `json:"s3_endpoint"`
	Prefix     string `json:"s3_path"`
}

func (c *Config) Validate() error {
	if c.Path == "" && c.Bucket == "" {
		return fmt.Errorf("either local_path or s3_bucket is required")
	}
	return utils.Validate(c)
}

type fileMetadata struct {
	name     string
	basePath string
	writer   *pqgo.GenericWriter[types.Row]
	file     source.ParquetFile
	rows     int64
}

// Parquet writes each query result into one snappy compressed file under
// local_path/<name>/ and optionally uploads it to S3.
type Parquet struct {
	config   *Config
	s3Client *s3.S3
	current  *fileMetadata
}

func (p *Parquet) GetConfigRef() destination.Config {
	p.config = &Config{}
	return p.config
}

func (p *Parquet) Type() string {
	return string(constants.Parquet)
}

// setup s3 client if credentials provided
func (p *Parquet) initS3Writer() error {
	if p.config.Bucket == "" || p.config.Region == "" {
		return nil
	}

	s3Config := aws.Config{
		Region: aws.String(p.config.Region),
	}
	if p.config.S3Endpoint != "" {
		s3Config.Endpoint = aws.String(p.config.S3Endpoint)
		// path-style urls for MinIO and other s3 compatible endpoints
		s3Config.S3ForcePathStyle = aws.Bool(true)
	}
	if p.config.AccessKey != "" && p.config.SecretKey != "" {
		s3Config.Credentials = credentials.NewStaticCredentials(p.config.AccessKey, p.config.SecretKey, "")
	}
	sess, err := session.NewSession(&s3Config)
	if err != nil {
		return fmt.Errorf("failed to create AWS session: %s", err)
	}
	p.s3Client = s3.New(sess)
	return nil
}

// Check validates the local path and S3 access if configured
func (p *Parquet) Check(ctx context.Context) error {
	if err := p.initS3Writer(); err != nil {
		return err
	}

	if p.s3Client != nil {
		if _, err := p.s3Client.HeadBucketWithContext(ctx, &s3.HeadBucketInput{Bucket: aws.String(p.config.Bucket)}); err != nil {
			return fmt.Errorf("failed to access s3 bucket[%s]: %s", p.config.Bucket, err)
		}
		if p.config.Path == "" {
			p.config.Path = os.TempDir()
		}
		p.config.Prefix = strings.Trim(p.config.Prefix, "/")
		logger.Infof("s3 writer configuration found, uploading to s3://%s/%s", p.config.Bucket, p.config.Prefix)
	} else {
		logger.Infof("local writer configuration found, writing at location[%s]", p.config.Path)
	}

	if err := os.MkdirAll(p.config.Path, os.ModePerm); err != nil {
		return fmt.Errorf("failed to create path: %s", err)
	}
	tempFile, err := os.CreateTemp(p.config.Path, "temporary-*.txt")
	if err != nil {
		return fmt.Errorf("directory is not writable: %s", err)
	}
	tempFile.Close()
	os.Remove(tempFile.Name())
	return nil
}

func (p *Parquet) Setup(_ context.Context, name string) error {
	if p.current != nil {
		return fmt.Errorf("parquet writer already set up for[%s]", p.current.basePath)
	}

	directoryPath := filepath.Join(p.config.Path, name)
	if err := os.MkdirAll(directoryPath, os.ModePerm); err != nil {
		return fmt.Errorf("failed to create directories[%s]: %s", directoryPath, err)
	}

	fileName := utils.TimestampedFileName(constants.ParquetFileExt)
	filePath := filepath.Join(directoryPath, fileName)
	pqFile, err := local.NewLocalFileWriter(filePath)
	if err != nil {
		return fmt.Errorf("failed to create parquet file writer: %s", err)
	}

	p.current = &fileMetadata{
		name:     fileName,
		basePath: name,
		file:     pqFile,
		writer:   pqgo.NewGenericWriter[types.Row](pqFile, types.GetParquetRowSchema(), pqgo.Compression(&pqgo.Snappy)),
	}
	logger.Infof("created parquet file[%s]", filePath)
	return nil
}

func (p *Parquet) Write(_ context.Context, rows []types.Row) error {
	if p.current == nil {
		return fmt.Errorf("parquet writer used before setup")
	}
	if _, err := p.current.writer.Write(rows); err != nil {
		return fmt.Errorf("failed to write in parquet file: %s", err)
	}
	p.current.rows += int64(len(rows))
	return nil
}

// Close flushes the file and uploads it when s3 is configured; the local copy
// is removed after a successful upload
func (p *Parquet) Close(ctx context.Context) error {
	if p.current == nil {
		return nil
	}
	current := p.current
	p.current = nil
	filePath := filepath.Join(p.config.Path, current.basePath, current.name)

	var result *multierror.Error
	if err := current.writer.Close(); err != nil {
		result = multierror.Append(result, fmt.Errorf("failed to close writer: %s", err))
	}
	if err := current.file.Close(); err != nil {
		result = multierror.Append(result, fmt.Errorf("failed to close file: %s", err))
	}
	if err := result.ErrorOrNil(); err != nil {
		return err
	}
	logger.Infof("finished writing %d rows to file[%s]", current.rows, filePath)

	if p.s3Client == nil {
		return nil
	}
	return p.upload(ctx, filePath, current)
}

func (p *Parquet) upload(ctx context.Context, filePath string, current *fileMetadata) error {
	file, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("failed to open file: %s", err)
	}
	defer file.Close()

	s3KeyPath := filepath.Join(current.basePath, current.name)
	if p.config.Prefix != "" {
		s3KeyPath = filepath.Join(p.config.Prefix, s3KeyPath)
	}

	_, err = s3manager.NewUploaderWithClient(p.s3Client).UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket: aws.String(p.config.Bucket),
		Key:    aws.String(s3KeyPath),
		Body:   file,
	})
	if err != nil {
		return fmt.Errorf("failed to put object into s3: %s", err)
	}

	if err := os.Remove(filePath); err != nil {
		logger.Warnf("failed to delete file[%s] after upload: %s", filePath, err)
	}
	logger.Infof("successfully uploaded file to S3: s3://%s/%s", p.config.Bucket, s3KeyPath)
	return nil
}

func init() {
	destination.RegisteredWriters[constants.Parquet] = func() destination.Writer {
		return new(Parquet)
	}
}
