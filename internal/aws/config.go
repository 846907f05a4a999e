package aws

import (
	"context"
	"fmt"
	"os"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
)

// LoadAWSConfig builds the shared SDK config from the environment.
//
// AWS_REGION defaults to us-east-1. AWS_ENDPOINT_OVERRIDE points every client at a
// local emulator (LocalStack, DynamoDB local); in that mode static credentials are
// used because the emulators do not validate them.
func LoadAWSConfig(ctx context.Context) (sdkaws.Config, error) {
	region := os.Getenv("AWS_REGION")
	if region == "" {
		region = "us-east-1" // default fallback
	}

	opts := []func(*config.LoadOptions) error{
		config.WithRegion(region),
	}

	if endpoint := os.Getenv("AWS_ENDPOINT_OVERRIDE"); endpoint != "" {
		opts = append(opts,
			config.WithBaseEndpoint(endpoint),
			config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
				getenvDefault("AWS_ACCESS_KEY_ID", "local"),
				getenvDefault("AWS_SECRET_ACCESS_KEY", "local"),
				"",
			)),
		)
	}

	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return cfg, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return cfg, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
