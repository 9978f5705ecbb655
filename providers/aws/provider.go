// Package aws implements the resource client contract against the AWS
// control plane: DynamoDB tables, IAM roles, Lambda functions, API Gateway
// REST APIs and deployment stages.
package aws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/apigateway"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/aws/smithy-go"

	"github.com/stackform-io/stackform/internal/ir"
	"github.com/stackform-io/stackform/pkg/resource"
)

// Client is the AWS resource client.
type Client struct {
	region string

	dynamodb   *dynamodb.Client
	iam        *iam.Client
	lambda     *lambda.Client
	apigateway *apigateway.Client
	sts        *sts.Client

	accountID string
}

// New loads the default AWS config for the region and builds the service
// clients.
func New(ctx context.Context, region string) (*Client, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("unable to load AWS SDK config: %w", err)
	}

	return &Client{
		region:     region,
		dynamodb:   dynamodb.NewFromConfig(cfg),
		iam:        iam.NewFromConfig(cfg),
		lambda:     lambda.NewFromConfig(cfg),
		apigateway: apigateway.NewFromConfig(cfg),
		sts:        sts.NewFromConfig(cfg),
	}, nil
}

func (c *Client) Create(ctx context.Context, kind ir.Kind, name string, config map[string]any) (*resource.Result, error) {
	switch kind {
	case ir.KindTable:
		return c.createTable(ctx, name, config)
	case ir.KindRole:
		return c.createRole(ctx, name, config)
	case ir.KindFunction:
		return c.createFunction(ctx, name, config)
	case ir.KindAPI:
		return c.createRestAPI(ctx, name, config)
	case ir.KindStage:
		return c.createStage(ctx, name, config)
	}
	return nil, unsupported(kind, name)
}

func (c *Client) Read(ctx context.Context, kind ir.Kind, name, remoteID string) (*resource.Result, error) {
	switch kind {
	case ir.KindTable:
		return c.readTable(ctx, name, remoteID)
	case ir.KindRole:
		return c.readRole(ctx, name, remoteID)
	case ir.KindFunction:
		return c.readFunction(ctx, name, remoteID)
	case ir.KindAPI:
		return c.readRestAPI(ctx, name, remoteID)
	case ir.KindStage:
		return c.readStage(ctx, name, remoteID)
	}
	return nil, unsupported(kind, name)
}

func (c *Client) Update(ctx context.Context, kind ir.Kind, name, remoteID string, config map[string]any) (*resource.Result, error) {
	switch kind {
	case ir.KindTable:
		return c.updateTable(ctx, name, remoteID, config)
	case ir.KindRole:
		return c.updateRole(ctx, name, remoteID, config)
	case ir.KindFunction:
		return c.updateFunction(ctx, name, remoteID, config)
	case ir.KindAPI:
		return c.updateRestAPI(ctx, name, remoteID, config)
	case ir.KindStage:
		return c.updateStage(ctx, name, remoteID, config)
	}
	return nil, unsupported(kind, name)
}

func (c *Client) Delete(ctx context.Context, kind ir.Kind, name, remoteID string) error {
	switch kind {
	case ir.KindTable:
		return c.deleteTable(ctx, name, remoteID)
	case ir.KindRole:
		return c.deleteRole(ctx, name, remoteID)
	case ir.KindFunction:
		return c.deleteFunction(ctx, name, remoteID)
	case ir.KindAPI:
		return c.deleteRestAPI(ctx, name, remoteID)
	case ir.KindStage:
		return c.deleteStage(ctx, name, remoteID)
	}
	return unsupported(kind, name)
}

func (c *Client) WaitUntilReady(ctx context.Context, kind ir.Kind, remoteID string, timeout time.Duration) error {
	switch kind {
	case ir.KindTable:
		return c.waitTable(ctx, remoteID, timeout)
	case ir.KindRole:
		return c.waitRole(ctx, remoteID, timeout)
	case ir.KindFunction:
		return c.waitFunction(ctx, remoteID, timeout)
	case ir.KindAPI, ir.KindStage:
		// Usable as soon as the create call returns.
		return nil
	}
	return unsupported(kind, remoteID)
}

// account resolves (and caches) the caller's account ID, needed to build
// source ARNs for Lambda invoke permissions.
func (c *Client) account(ctx context.Context) (string, error) {
	if c.accountID != "" {
		return c.accountID, nil
	}
	out, err := c.sts.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return "", fmt.Errorf("failed to resolve account ID: %w", err)
	}
	c.accountID = *out.Account
	return c.accountID, nil
}

func unsupported(kind ir.Kind, name string) error {
	return resource.NewError(resource.ClassValidation, kind, name, fmt.Errorf("kind not managed by the aws client"))
}

// decodeConfig maps the opaque config of a resource onto the typed request
// shape for its kind via a JSON round trip.
func decodeConfig[T any](kind ir.Kind, name string, config map[string]any) (T, error) {
	var out T
	raw, err := json.Marshal(config)
	if err != nil {
		return out, resource.NewError(resource.ClassValidation, kind, name, err)
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, resource.NewError(resource.ClassValidation, kind, name, fmt.Errorf("invalid config: %w", err))
	}
	return out, nil
}

// classify buckets an AWS error into the engine-facing taxonomy. API error
// codes are authoritative; a message heuristic catches transport-level
// failures that carry no code.
func classify(kind ir.Kind, name string, err error) error {
	if err == nil {
		return nil
	}
	var already *resource.Error
	if errors.As(err, &already) {
		return err
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "ResourceInUseException", "EntityAlreadyExists", "ResourceConflictException", "ConflictException":
			return resource.NewError(resource.ClassAlreadyExists, kind, name, err)
		case "ResourceNotFoundException", "NoSuchEntity", "NotFoundException":
			return resource.NewError(resource.ClassNotFound, kind, name, err)
		case "AccessDenied", "AccessDeniedException", "UnauthorizedOperation", "UnrecognizedClientException":
			return resource.NewError(resource.ClassPermissionDenied, kind, name, err)
		case "Throttling", "ThrottlingException", "TooManyRequestsException", "RequestLimitExceeded",
			"ProvisionedThroughputExceededException", "ServiceUnavailable", "ServiceUnavailableException",
			"InternalFailure", "InternalServerError", "InternalServerErrorException":
			return resource.NewError(resource.ClassTransient, kind, name, err)
		case "ValidationException", "ValidationError", "InvalidParameterValueException",
			"MalformedPolicyDocument", "BadRequestException":
			return resource.NewError(resource.ClassValidation, kind, name, err)
		}
	}

	if isTransientMessage(err.Error()) {
		return resource.NewError(resource.ClassTransient, kind, name, err)
	}
	return resource.NewError(resource.ClassFatal, kind, name, err)
}

func isTransientMessage(msg string) bool {
	msg = strings.ToLower(msg)
	patterns := []string{
		"throttl",
		"rate exceed",
		"too many requests",
		"service unavailable",
		"connection reset",
		"connection refused",
		"i/o timeout",
		"tls handshake",
		"temporary failure",
	}
	for _, pattern := range patterns {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}
