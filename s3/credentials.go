package s3

import (
	"context"
	"fmt"
	"os"

	"github.com/meigma/rangefetch/internal/fragtype"
)

// Credentials is a short-lived S3 credential bundle.
type Credentials struct {
	AccessKeyID     string `json:"accessKeyId"`
	SecretAccessKey string `json:"secretAccessKey"`
	SessionToken    string `json:"sessionToken"`
}

// Validate checks that the key pair is present.
func (c Credentials) Validate() error {
	if c.AccessKeyID == "" {
		return fmt.Errorf("%w: access key id is required", fragtype.ErrConfig)
	}
	if c.SecretAccessKey == "" {
		return fmt.Errorf("%w: secret access key is required", fragtype.ErrConfig)
	}
	return nil
}

// CredentialsProvider supplies S3 credentials.
// How the credentials are obtained is up to the implementation.
type CredentialsProvider interface {
	Credentials(ctx context.Context) (Credentials, error)
}

// CredentialsFunc adapts a function to the CredentialsProvider interface.
type CredentialsFunc func(ctx context.Context) (Credentials, error)

// Credentials calls f.
func (f CredentialsFunc) Credentials(ctx context.Context) (Credentials, error) {
	return f(ctx)
}

// StaticCredentials always returns the same bundle.
type StaticCredentials Credentials

// Credentials returns c.
func (c StaticCredentials) Credentials(context.Context) (Credentials, error) {
	return Credentials(c), nil
}

// Environment variables read by EnvCredentials.
const (
	EnvAccessKeyID     = "AWS_ACCESS_KEY_ID"
	EnvSecretAccessKey = "AWS_SECRET_ACCESS_KEY"
	EnvSessionToken    = "AWS_SESSION_TOKEN"
)

// EnvCredentials reads credentials from the standard AWS environment variables.
func EnvCredentials() CredentialsProvider {
	return CredentialsFunc(func(context.Context) (Credentials, error) {
		creds := Credentials{
			AccessKeyID:     os.Getenv(EnvAccessKeyID),
			SecretAccessKey: os.Getenv(EnvSecretAccessKey),
			SessionToken:    os.Getenv(EnvSessionToken),
		}
		if err := creds.Validate(); err != nil {
			return Credentials{}, fmt.Errorf("%w (set %s and %s)", err, EnvAccessKeyID, EnvSecretAccessKey)
		}
		return creds, nil
	})
}
