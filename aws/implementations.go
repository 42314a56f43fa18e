package aws

import (
	"context"
	"fmt"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

// Clients bundles the service clients built from one shared AWS configuration.
type Clients struct {
	S3             *S3ClientImpl
	SecretsManager *SecretsManagerClientImpl
	IAM            *IAMClientImpl
	STS            *STSClientImpl

	// Raw is the unwrapped S3 client, handed to libraries that want the SDK type.
	Raw *s3.Client
}

// NewClients loads the default credential chain for region (and optional
// profile) and constructs every client the toolkit uses.
func NewClients(ctx context.Context, region, profile string) (*Clients, error) {
	opts := []func(*awsconfig.LoadOptions) error{}
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	if profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(profile))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return NewClientsFromConfig(cfg), nil
}

// NewClientsFromConfig builds the client bundle from an already loaded configuration.
func NewClientsFromConfig(cfg sdkaws.Config) *Clients {
	raw := s3.NewFromConfig(cfg)
	return &Clients{
		S3:             NewS3Client(raw),
		SecretsManager: NewSecretsManagerClient(secretsmanager.NewFromConfig(cfg)),
		IAM:            NewIAMClient(iam.NewFromConfig(cfg)),
		STS:            NewSTSClient(sts.NewFromConfig(cfg)),
		Raw:            raw,
	}
}

// S3ClientImpl implements S3Client using the AWS SDK.
type S3ClientImpl struct {
	client *s3.Client
}

// NewS3Client creates a new S3ClientImpl instance
func NewS3Client(client *s3.Client) *S3ClientImpl {
	return &S3ClientImpl{client: client}
}

// GetObject implements the S3Client interface for reading objects
func (c *S3ClientImpl) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	return c.client.GetObject(ctx, params, optFns...)
}

// PutObject implements the S3Client interface for writing objects
func (c *S3ClientImpl) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	return c.client.PutObject(ctx, params, optFns...)
}

// HeadObject implements the S3Client interface for retrieving object metadata
func (c *S3ClientImpl) HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	return c.client.HeadObject(ctx, params, optFns...)
}

// ListObjectsV2 implements the S3Client interface for listing a bucket page by page
func (c *S3ClientImpl) ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	return c.client.ListObjectsV2(ctx, params, optFns...)
}

func (c *S3ClientImpl) CreateMultipartUpload(ctx context.Context, params *s3.CreateMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error) {
	return c.client.CreateMultipartUpload(ctx, params, optFns...)
}

func (c *S3ClientImpl) UploadPart(ctx context.Context, params *s3.UploadPartInput, optFns ...func(*s3.Options)) (*s3.UploadPartOutput, error) {
	return c.client.UploadPart(ctx, params, optFns...)
}

func (c *S3ClientImpl) CompleteMultipartUpload(ctx context.Context, params *s3.CompleteMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error) {
	return c.client.CompleteMultipartUpload(ctx, params, optFns...)
}

func (c *S3ClientImpl) AbortMultipartUpload(ctx context.Context, params *s3.AbortMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error) {
	return c.client.AbortMultipartUpload(ctx, params, optFns...)
}

// SecretsManagerClientImpl implements SecretsManagerClient using the AWS SDK.
type SecretsManagerClientImpl struct {
	client *secretsmanager.Client
}

// NewSecretsManagerClient creates a new SecretsManagerClientImpl instance
func NewSecretsManagerClient(client *secretsmanager.Client) *SecretsManagerClientImpl {
	return &SecretsManagerClientImpl{client: client}
}

// GetSecretValue implements the SecretsManagerClient interface
func (c *SecretsManagerClientImpl) GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	return c.client.GetSecretValue(ctx, params, optFns...)
}

// IAMClientImpl implements IAMClient using the AWS SDK.
// It provides concrete implementations for simulating permissions.
type IAMClientImpl struct {
	client *iam.Client
}

// NewIAMClient creates a new IAMClientImpl instance
func NewIAMClient(client *iam.Client) *IAMClientImpl {
	return &IAMClientImpl{client: client}
}

// SimulatePrincipalPolicy implements the IAMClient interface for permission simulation
func (c *IAMClientImpl) SimulatePrincipalPolicy(ctx context.Context, params *iam.SimulatePrincipalPolicyInput, optFns ...func(*iam.Options)) (*iam.SimulatePrincipalPolicyOutput, error) {
	return c.client.SimulatePrincipalPolicy(ctx, params, optFns...)
}

// STSClientImpl implements STSClient using the AWS SDK.
type STSClientImpl struct {
	client *sts.Client
}

// NewSTSClient creates a new STSClientImpl instance
func NewSTSClient(client *sts.Client) *STSClientImpl {
	return &STSClientImpl{client: client}
}

// GetCallerIdentity implements the STSClient interface
func (c *STSClientImpl) GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error) {
	return c.client.GetCallerIdentity(ctx, params, optFns...)
}
