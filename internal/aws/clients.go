package aws

import (
	"context"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

// AWSClients bundles the service clients used by the API and the worker.
type AWSClients struct {
	DynamoDB   DynamoDBAPI
	SQS        SQSAPI
	CloudWatch CloudWatchAPI
}

// NewAWSClients loads the shared config from the environment. storeMaxAttempts
// bounds the SDK retries of DynamoDB calls; 0 keeps the SDK default.
func NewAWSClients(ctx context.Context, storeMaxAttempts int) (*AWSClients, error) {
	cfg, err := LoadAWSConfig(ctx)
	if err != nil {
		return nil, err
	}
	return NewAWSClientsFromConfig(cfg, storeMaxAttempts), nil
}

func NewAWSClientsFromConfig(cfg sdkaws.Config, storeMaxAttempts int) *AWSClients {
	return &AWSClients{
		DynamoDB: dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
			if storeMaxAttempts > 0 {
				o.RetryMaxAttempts = storeMaxAttempts
			}
		}),
		SQS:        sqs.NewFromConfig(cfg),
		CloudWatch: cloudwatch.NewFromConfig(cfg),
	}
}
