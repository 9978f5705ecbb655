package aws

import (
	"context"
	"fmt"
	"os"
	"time"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/lambda/types"

	"github.com/stackform-io/stackform/internal/ir"
	"github.com/stackform-io/stackform/pkg/resource"
)

type functionConfig struct {
	FunctionName string            `json:"functionName"`
	Runtime      string            `json:"runtime"`
	Handler      string            `json:"handler"`
	Role         string            `json:"role"` // execution role ARN
	CodePath     string            `json:"codePath"`
	MemoryMB     int32             `json:"memoryMB"`
	TimeoutSec   int32             `json:"timeoutSec"`
	Environment  map[string]string `json:"environment"`
}

func (cfg *functionConfig) applyDefaults(name string) {
	if cfg.FunctionName == "" {
		cfg.FunctionName = name
	}
	if cfg.MemoryMB == 0 {
		cfg.MemoryMB = 128
	}
	if cfg.TimeoutSec == 0 {
		cfg.TimeoutSec = 30
	}
}

func (cfg *functionConfig) validate(name string) error {
	if cfg.Runtime == "" || cfg.Handler == "" || cfg.Role == "" || cfg.CodePath == "" {
		return resource.NewError(resource.ClassValidation, ir.KindFunction, name,
			fmt.Errorf("function config requires runtime, handler, role, and codePath"))
	}
	return nil
}

func (cfg *functionConfig) codeArchive(name string) ([]byte, error) {
	zip, err := os.ReadFile(cfg.CodePath)
	if err != nil {
		return nil, resource.NewError(resource.ClassValidation, ir.KindFunction, name,
			fmt.Errorf("failed to read code archive %s: %w", cfg.CodePath, err))
	}
	return zip, nil
}

func (c *Client) createFunction(ctx context.Context, name string, config map[string]any) (*resource.Result, error) {
	cfg, err := decodeConfig[functionConfig](ir.KindFunction, name, config)
	if err != nil {
		return nil, err
	}
	cfg.applyDefaults(name)
	if err := cfg.validate(name); err != nil {
		return nil, err
	}
	zip, err := cfg.codeArchive(name)
	if err != nil {
		return nil, err
	}

	out, err := c.lambda.CreateFunction(ctx, &lambda.CreateFunctionInput{
		FunctionName: awssdk.String(cfg.FunctionName),
		Runtime:      types.Runtime(cfg.Runtime),
		Handler:      awssdk.String(cfg.Handler),
		Role:         awssdk.String(cfg.Role),
		Code:         &types.FunctionCode{ZipFile: zip},
		MemorySize:   awssdk.Int32(cfg.MemoryMB),
		Timeout:      awssdk.Int32(cfg.TimeoutSec),
		Environment:  &types.Environment{Variables: cfg.Environment},
	})
	if err != nil {
		return nil, classify(ir.KindFunction, name, err)
	}

	return &resource.Result{
		RemoteID: cfg.FunctionName,
		Outputs: map[string]string{
			"functionName": cfg.FunctionName,
			"arn":          awssdk.ToString(out.FunctionArn),
		},
	}, nil
}

func (c *Client) readFunction(ctx context.Context, name, remoteID string) (*resource.Result, error) {
	functionName := remoteID
	if functionName == "" {
		functionName = name
	}

	out, err := c.lambda.GetFunction(ctx, &lambda.GetFunctionInput{
		FunctionName: awssdk.String(functionName),
	})
	if err != nil {
		return nil, classify(ir.KindFunction, name, err)
	}

	return &resource.Result{
		RemoteID: awssdk.ToString(out.Configuration.FunctionName),
		Outputs: map[string]string{
			"functionName": awssdk.ToString(out.Configuration.FunctionName),
			"arn":          awssdk.ToString(out.Configuration.FunctionArn),
		},
	}, nil
}

func (c *Client) updateFunction(ctx context.Context, name, remoteID string, config map[string]any) (*resource.Result, error) {
	cfg, err := decodeConfig[functionConfig](ir.KindFunction, name, config)
	if err != nil {
		return nil, err
	}
	cfg.applyDefaults(name)
	cfg.FunctionName = remoteID
	if err := cfg.validate(name); err != nil {
		return nil, err
	}
	zip, err := cfg.codeArchive(name)
	if err != nil {
		return nil, err
	}

	// Code and configuration share one fingerprint, so an update pushes
	// both. Code goes first; Lambda rejects a configuration update while a
	// code update is still in progress, so wait for the function to settle
	// in between.
	_, err = c.lambda.UpdateFunctionCode(ctx, &lambda.UpdateFunctionCodeInput{
		FunctionName: awssdk.String(cfg.FunctionName),
		ZipFile:      zip,
	})
	if err != nil {
		return nil, classify(ir.KindFunction, name, err)
	}
	if err := c.waitFunctionUpdated(ctx, cfg.FunctionName); err != nil {
		return nil, err
	}

	out, err := c.lambda.UpdateFunctionConfiguration(ctx, &lambda.UpdateFunctionConfigurationInput{
		FunctionName: awssdk.String(cfg.FunctionName),
		Runtime:      types.Runtime(cfg.Runtime),
		Handler:      awssdk.String(cfg.Handler),
		Role:         awssdk.String(cfg.Role),
		MemorySize:   awssdk.Int32(cfg.MemoryMB),
		Timeout:      awssdk.Int32(cfg.TimeoutSec),
		Environment:  &types.Environment{Variables: cfg.Environment},
	})
	if err != nil {
		return nil, classify(ir.KindFunction, name, err)
	}

	return &resource.Result{
		RemoteID: cfg.FunctionName,
		Outputs: map[string]string{
			"functionName": cfg.FunctionName,
			"arn":          awssdk.ToString(out.FunctionArn),
		},
	}, nil
}

func (c *Client) deleteFunction(ctx context.Context, name, remoteID string) error {
	_, err := c.lambda.DeleteFunction(ctx, &lambda.DeleteFunctionInput{
		FunctionName: awssdk.String(remoteID),
	})
	if err != nil {
		return classify(ir.KindFunction, name, err)
	}
	return nil
}

func (c *Client) waitFunction(ctx context.Context, remoteID string, timeout time.Duration) error {
	waiter := lambda.NewFunctionActiveV2Waiter(c.lambda)
	err := waiter.Wait(ctx, &lambda.GetFunctionInput{
		FunctionName: awssdk.String(remoteID),
	}, timeout)
	if err != nil {
		return resource.NewError(resource.ClassTimedOut, ir.KindFunction, remoteID,
			fmt.Errorf("function did not reach Active: %w", err))
	}
	return nil
}

func (c *Client) waitFunctionUpdated(ctx context.Context, functionName string) error {
	waiter := lambda.NewFunctionUpdatedV2Waiter(c.lambda)
	err := waiter.Wait(ctx, &lambda.GetFunctionInput{
		FunctionName: awssdk.String(functionName),
	}, 2*time.Minute)
	if err != nil {
		return resource.NewError(resource.ClassTimedOut, ir.KindFunction, functionName,
			fmt.Errorf("code update did not settle: %w", err))
	}
	return nil
}
