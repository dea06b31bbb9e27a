package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const (
	testGenesisKey    = "genesis-secret-0123456789"
	testValidationKey = "validation-secret-0123456789"
)

// isolateEnv points the .env lookup at an empty directory.
func isolateEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("ENV_FILE_PATH", filepath.Join(dir, ".env"))
	return dir
}

type staticFetcher struct {
	values map[string]string
	err    error
	calls  []string
}

func (f *staticFetcher) FetchSecret(_ context.Context, secretID string) (map[string]string, error) {
	f.calls = append(f.calls, secretID)
	return f.values, f.err
}

type mockSecretsManager struct {
	mock.Mock
}

func (m *mockSecretsManager) GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	args := m.Called(ctx, params)
	if out := args.Get(0); out != nil {
		return out.(*secretsmanager.GetSecretValueOutput), args.Error(1)
	}
	return nil, args.Error(1)
}

func TestLoad_DefaultsWithEnvSecrets(t *testing.T) {
	isolateEnv(t)
	t.Setenv("GENESIS_SECRET", testGenesisKey)
	t.Setenv("VALIDATION_SECRET", testValidationKey)

	cfg, err := Load(context.Background(), "")
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, 15*time.Second, cfg.Pipeline.GenesisTTL)
	assert.Equal(t, 10*time.Second, cfg.Pipeline.ValidationTTL)
	assert.Equal(t, 5*time.Second, cfg.Pipeline.RoutingTTL)
	assert.Equal(t, MinNonceTTL, cfg.Pipeline.NonceTTL)
	assert.Equal(t, EventSinkWatermill, cfg.Events.Sink)
	assert.False(t, cfg.Redis.Enabled())
	assert.Equal(t, testGenesisKey, cfg.Secrets.GenesisKey)
	assert.Equal(t, testValidationKey, cfg.Secrets.ValidationKey)
	assert.Empty(t, cfg.Server.TrustedProxies)

	contextKey, err := DeriveKey([]byte(testGenesisKey), "context")
	require.NoError(t, err)
	assert.Equal(t, contextKey, cfg.Secrets.ContextKey)
}

func TestLoad_TrustedProxies(t *testing.T) {
	isolateEnv(t)
	t.Setenv("GENESIS_SECRET", testGenesisKey)
	t.Setenv("VALIDATION_SECRET", testValidationKey)
	t.Setenv("TRUSTED_PROXIES", "10.0.0.0/8, 192.0.2.1,,")

	cfg, err := Load(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, []string{"10.0.0.0/8", "192.0.2.1"}, cfg.Server.TrustedProxies)
}

func TestLoad_ExplicitContextKey(t *testing.T) {
	isolateEnv(t)
	t.Setenv("GENESIS_SECRET", testGenesisKey)
	t.Setenv("VALIDATION_SECRET", testValidationKey)
	t.Setenv("CONTEXT_SECRET", "context-secret-0123456789")

	cfg, err := Load(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "context-secret-0123456789", cfg.Secrets.ContextKey)
}

func TestLoad_MissingKeysFails(t *testing.T) {
	isolateEnv(t)

	_, err := Load(context.Background(), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GENESIS_SECRET")
}

func TestLoad_YAMLThenEnv(t *testing.T) {
	dir := isolateEnv(t)
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: "9090"
  base_url: https://go.example.com
  rate_limit: 20
database:
  driver: postgres
  dsn: postgres://links@db/links
pipeline:
  genesis_ttl: 20s
events:
  sink: none
`), 0o600))
	t.Setenv("PORT", "7070")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("VALIDATION_TOKEN_TTL", "12")
	t.Setenv("GENESIS_SECRET", testGenesisKey)
	t.Setenv("VALIDATION_SECRET", testValidationKey)

	cfg, err := Load(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, "7070", cfg.Server.Port, "env overrides file")
	assert.Equal(t, "https://go.example.com", cfg.Server.BaseURL)
	assert.Equal(t, 20, cfg.Server.RateLimit)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, 20*time.Second, cfg.Pipeline.GenesisTTL)
	assert.Equal(t, 12*time.Second, cfg.Pipeline.ValidationTTL)
	assert.Equal(t, EventSinkNone, cfg.Events.Sink)
	assert.True(t, cfg.Redis.Enabled())
}

func TestLoad_MissingFileIgnored(t *testing.T) {
	dir := isolateEnv(t)
	t.Setenv("GENESIS_SECRET", testGenesisKey)
	t.Setenv("VALIDATION_SECRET", testValidationKey)

	_, err := Load(context.Background(), filepath.Join(dir, "absent.yaml"))
	assert.NoError(t, err)
}

func TestLoad_MalformedFile(t *testing.T) {
	dir := isolateEnv(t)
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [unclosed"), 0o600))

	_, err := Load(context.Background(), path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config file")
}

func TestLoad_DotEnv(t *testing.T) {
	dir := isolateEnv(t)
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("GENESIS_SECRET="+testGenesisKey+"\nVALIDATION_SECRET="+testValidationKey+"\nLOG_LEVEL=debug\n"), 0o600))
	t.Cleanup(func() {
		os.Unsetenv("GENESIS_SECRET")
		os.Unsetenv("VALIDATION_SECRET")
		os.Unsetenv("LOG_LEVEL")
	})

	cfg, err := Load(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, testGenesisKey, cfg.Secrets.GenesisKey)
}

func TestLoad_MasterSecretDerivesStageKeys(t *testing.T) {
	isolateEnv(t)
	t.Setenv("MASTER_SECRET", "a-long-master-secret-value")

	cfg, err := Load(context.Background(), "")
	require.NoError(t, err)

	assert.Len(t, cfg.Secrets.GenesisKey, 2*derivedKeySize)
	assert.NotEqual(t, cfg.Secrets.GenesisKey, cfg.Secrets.ValidationKey)
	assert.NotEqual(t, cfg.Secrets.ValidationKey, cfg.Secrets.RoutingKey)
	assert.NotEqual(t, cfg.Secrets.GenesisKey, cfg.Secrets.ContextKey)
	assert.Len(t, cfg.Secrets.ContextKey, 2*derivedKeySize)

	again, err := Load(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, cfg.Secrets, again.Secrets, "derivation is deterministic")
}

func TestLoad_ExplicitKeyWinsOverDerivation(t *testing.T) {
	isolateEnv(t)
	t.Setenv("MASTER_SECRET", "a-long-master-secret-value")
	t.Setenv("GENESIS_SECRET", testGenesisKey)

	cfg, err := Load(context.Background(), "")
	require.NoError(t, err)

	derived, err := DeriveKey([]byte("a-long-master-secret-value"), "validation")
	require.NoError(t, err)
	assert.Equal(t, testGenesisKey, cfg.Secrets.GenesisKey)
	assert.Equal(t, derived, cfg.Secrets.ValidationKey)
}

func TestLoad_SecretsManager(t *testing.T) {
	isolateEnv(t)
	t.Setenv("AWS_SECRETS_MANAGER_SECRET_ID", "prod/redirect")
	t.Setenv("GENESIS_SECRET", testGenesisKey)
	fetcher := &staticFetcher{values: map[string]string{
		"GENESIS_SECRET":    "from-secrets-manager-genesis",
		"VALIDATION_SECRET": "from-secrets-manager-validation",
	}}

	cfg, err := Load(context.Background(), "", WithSecretsFetcher(fetcher))
	require.NoError(t, err)

	assert.Equal(t, []string{"prod/redirect"}, fetcher.calls)
	assert.Equal(t, testGenesisKey, cfg.Secrets.GenesisKey, "env keeps precedence")
	assert.Equal(t, "from-secrets-manager-validation", cfg.Secrets.ValidationKey)
}

func TestLoad_SecretsManagerOverwrite(t *testing.T) {
	isolateEnv(t)
	t.Setenv("AWS_SECRETS_MANAGER_SECRET_ID", "prod/redirect")
	t.Setenv("AWS_SECRETS_MANAGER_OVERWRITE", "true")
	t.Setenv("GENESIS_SECRET", testGenesisKey)
	t.Setenv("VALIDATION_SECRET", testValidationKey)
	fetcher := &staticFetcher{values: map[string]string{"GENESIS_SECRET": "from-secrets-manager-genesis"}}

	cfg, err := Load(context.Background(), "", WithSecretsFetcher(fetcher))
	require.NoError(t, err)
	assert.Equal(t, "from-secrets-manager-genesis", cfg.Secrets.GenesisKey)
}

func TestLoad_SecretsManagerError(t *testing.T) {
	isolateEnv(t)
	t.Setenv("AWS_SECRETS_MANAGER_SECRET_ID", "prod/redirect")
	fetcher := &staticFetcher{err: errors.New("access denied")}

	_, err := Load(context.Background(), "", WithSecretsFetcher(fetcher))
	assert.ErrorContains(t, err, "access denied")
}

func TestAWSSecretsFetcher(t *testing.T) {
	t.Run("string payload", func(t *testing.T) {
		// Arrange
		client := new(mockSecretsManager)
		client.On("GetSecretValue", mock.Anything, mock.MatchedBy(func(in *secretsmanager.GetSecretValueInput) bool {
			return aws.ToString(in.SecretId) == "prod/redirect" && aws.ToString(in.VersionStage) == "AWSCURRENT"
		})).Return(&secretsmanager.GetSecretValueOutput{
			SecretString: aws.String(`{"GENESIS_SECRET":"abc","RATE":5}`),
		}, nil)
		fetcher := NewAWSSecretsFetcherWithClient(client, "AWSCURRENT")

		// Act
		kv, err := fetcher.FetchSecret(context.Background(), "prod/redirect")

		// Assert
		require.NoError(t, err)
		assert.Equal(t, map[string]string{"GENESIS_SECRET": "abc", "RATE": "5"}, kv)
		client.AssertExpectations(t)
	})

	t.Run("binary payload", func(t *testing.T) {
		client := new(mockSecretsManager)
		client.On("GetSecretValue", mock.Anything, mock.Anything).Return(&secretsmanager.GetSecretValueOutput{
			SecretBinary: []byte(`{"MASTER_SECRET":"m"}`),
		}, nil)

		kv, err := NewAWSSecretsFetcherWithClient(client, "").FetchSecret(context.Background(), "id")
		require.NoError(t, err)
		assert.Equal(t, "m", kv["MASTER_SECRET"])
	})

	t.Run("not json", func(t *testing.T) {
		client := new(mockSecretsManager)
		client.On("GetSecretValue", mock.Anything, mock.Anything).Return(&secretsmanager.GetSecretValueOutput{
			SecretString: aws.String("plain"),
		}, nil)

		_, err := NewAWSSecretsFetcherWithClient(client, "").FetchSecret(context.Background(), "id")
		assert.ErrorContains(t, err, "as JSON")
	})

	t.Run("empty", func(t *testing.T) {
		client := new(mockSecretsManager)
		client.On("GetSecretValue", mock.Anything, mock.Anything).Return(&secretsmanager.GetSecretValueOutput{}, nil)

		_, err := NewAWSSecretsFetcherWithClient(client, "").FetchSecret(context.Background(), "id")
		assert.ErrorContains(t, err, "no payload")
	})
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		cfg := Default()
		cfg.Secrets.GenesisKey = testGenesisKey
		cfg.Secrets.ValidationKey = testValidationKey
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "same stage keys", mutate: func(c *Config) { c.Secrets.ValidationKey = c.Secrets.GenesisKey }, wantErr: "must differ"},
		{name: "short key", mutate: func(c *Config) { c.Secrets.GenesisKey = "short" }, wantErr: "secrets"},
		{name: "unknown driver", mutate: func(c *Config) { c.Database.Driver = "mysql" }, wantErr: "database"},
		{name: "bad port", mutate: func(c *Config) { c.Server.Port = "http" }, wantErr: "server"},
		{name: "nonce shorter than floor", mutate: func(c *Config) { c.Pipeline.NonceTTL = 30 * time.Second }, wantErr: "pipeline"},
		{name: "nonce shorter than stage", mutate: func(c *Config) {
			c.Pipeline.GenesisTTL = 2 * time.Minute
		}, wantErr: "must outlive"},
		{name: "dapr without topic", mutate: func(c *Config) {
			c.Events.Sink = EventSinkDapr
			c.Events.DaprTopic = ""
		}, wantErr: "events"},
		{name: "unknown sink", mutate: func(c *Config) { c.Events.Sink = "kafka" }, wantErr: "events"},
		{name: "trusted proxies", mutate: func(c *Config) { c.Server.TrustedProxies = []string{"10.0.0.0/8", "192.0.2.1", "::1"} }},
		{name: "bad trusted proxy", mutate: func(c *Config) { c.Server.TrustedProxies = []string{"10.0.0.0/8", "proxy.local"} }, wantErr: "CIDR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
