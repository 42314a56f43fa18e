package mock

import (
	"context"
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
)

// SecretsManagerClient is a mock implementation of aws.SecretsManagerClient.
type SecretsManagerClient struct {
	mu      sync.Mutex
	Secrets map[string]string
	// Err, when set, is returned from every call.
	Err error
}

// NewSecretsManagerClient creates a new mock Secrets Manager client
func NewSecretsManagerClient() *SecretsManagerClient {
	return &SecretsManagerClient{Secrets: make(map[string]string)}
}

// AddSecret stores a SecretString under name.
func (m *SecretsManagerClient) AddSecret(name, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Secrets[name] = value
}

// GetSecretValue implements the SecretsManagerClient interface
func (m *SecretsManagerClient) GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	if m.Err != nil {
		return nil, m.Err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	name := aws.ToString(params.SecretId)
	value, ok := m.Secrets[name]
	if !ok {
		return nil, &types.ResourceNotFoundException{
			Message: aws.String(fmt.Sprintf("Secrets Manager can't find the specified secret: %s", name)),
		}
	}
	return &secretsmanager.GetSecretValueOutput{
		Name:         aws.String(name),
		SecretString: aws.String(value),
	}, nil
}
