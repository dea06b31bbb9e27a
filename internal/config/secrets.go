package config

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"golang.org/x/crypto/hkdf"
)

const (
	derivedKeySize = 32
	hkdfSalt       = "brain-link-tracker/stage-keys/v1"
)

// SecretsFetcher returns the key/value pairs of a JSON secret.
type SecretsFetcher interface {
	FetchSecret(ctx context.Context, secretID string) (map[string]string, error)
}

// SecretsManagerAPI is the subset of the Secrets Manager client in use.
type SecretsManagerAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// AWSSecretsFetcher reads secrets from AWS Secrets Manager.
type AWSSecretsFetcher struct {
	client       SecretsManagerAPI
	versionStage string
}

// NewAWSSecretsFetcher builds a client from the default AWS credential chain.
func NewAWSSecretsFetcher(ctx context.Context, region string) (*AWSSecretsFetcher, error) {
	var (
		cfg aws.Config
		err error
	)
	if region != "" {
		cfg, err = awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	} else {
		cfg, err = awsconfig.LoadDefaultConfig(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return NewAWSSecretsFetcherWithClient(secretsmanager.NewFromConfig(cfg), getEnv("AWS_SECRETS_MANAGER_VERSION_STAGE", "AWSCURRENT")), nil
}

func NewAWSSecretsFetcherWithClient(client SecretsManagerAPI, versionStage string) *AWSSecretsFetcher {
	return &AWSSecretsFetcher{client: client, versionStage: versionStage}
}

func (f *AWSSecretsFetcher) FetchSecret(ctx context.Context, secretID string) (map[string]string, error) {
	input := &secretsmanager.GetSecretValueInput{SecretId: aws.String(secretID)}
	if f.versionStage != "" {
		input.VersionStage = aws.String(f.versionStage)
	}

	output, err := f.client.GetSecretValue(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("fetching secret %s: %w", secretID, err)
	}

	var payload []byte
	switch {
	case output.SecretString != nil:
		payload = []byte(*output.SecretString)
	case len(output.SecretBinary) > 0:
		payload = output.SecretBinary
	default:
		return nil, fmt.Errorf("secret %s has no payload", secretID)
	}

	var kv map[string]any
	if err := json.Unmarshal(payload, &kv); err != nil {
		return nil, fmt.Errorf("parsing secret %s as JSON: %w", secretID, err)
	}

	out := make(map[string]string, len(kv))
	for k, v := range kv {
		out[k] = fmt.Sprint(v)
	}
	return out, nil
}

// applySecrets fills the stage keys from a secret. Keys already configured
// are kept unless overwrite is set.
func applySecrets(ctx context.Context, cfg *Config, fetcher SecretsFetcher, secretID string, overwrite bool) error {
	kv, err := fetcher.FetchSecret(ctx, secretID)
	if err != nil {
		return err
	}

	set := func(dst *string, key string) {
		v, ok := kv[key]
		if !ok || v == "" {
			return
		}
		if *dst == "" || overwrite {
			*dst = v
		}
	}
	set(&cfg.Secrets.GenesisKey, "GENESIS_SECRET")
	set(&cfg.Secrets.ValidationKey, "VALIDATION_SECRET")
	set(&cfg.Secrets.RoutingKey, "ROUTING_SECRET")
	set(&cfg.Secrets.ContextKey, "CONTEXT_SECRET")
	set(&cfg.Secrets.MasterSecret, "MASTER_SECRET")
	return nil
}

// deriveMissing fills unset stage keys from MasterSecret with HKDF-SHA256,
// one info string per stage. Without a master secret the context key is
// derived from the genesis key so every instance agrees on it.
func (s *SecretsConfig) deriveMissing() error {
	if s.MasterSecret == "" {
		if s.ContextKey == "" && s.GenesisKey != "" {
			key, err := DeriveKey([]byte(s.GenesisKey), "context")
			if err != nil {
				return err
			}
			s.ContextKey = key
		}
		return nil
	}

	for _, k := range []struct {
		dst  *string
		info string
	}{
		{&s.GenesisKey, "genesis"},
		{&s.ValidationKey, "validation"},
		{&s.RoutingKey, "routing"},
		{&s.ContextKey, "context"},
	} {
		if *k.dst != "" {
			continue
		}
		key, err := DeriveKey([]byte(s.MasterSecret), k.info)
		if err != nil {
			return err
		}
		*k.dst = key
	}
	return nil
}

// DeriveKey derives a hex encoded 256-bit key for the given stage.
func DeriveKey(master []byte, info string) (string, error) {
	r := hkdf.New(sha256.New, master, []byte(hkdfSalt), []byte(info))
	key := make([]byte, derivedKeySize)
	if _, err := io.ReadFull(r, key); err != nil {
		return "", fmt.Errorf("derive %s key: %w", info, err)
	}
	return hex.EncodeToString(key), nil
}
