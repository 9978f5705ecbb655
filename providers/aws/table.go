package aws

import (
	"context"
	"errors"
	"fmt"
	"time"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/stackform-io/stackform/internal/ir"
	"github.com/stackform-io/stackform/pkg/resource"
)

type tableConfig struct {
	TableName   string           `json:"tableName"`
	BillingMode string           `json:"billingMode"`
	Attributes  []tableAttribute `json:"attributes"`
	KeySchema   []tableKey       `json:"keySchema"`
}

type tableAttribute struct {
	Name string `json:"name"`
	Type string `json:"type"` // S, N, or B
}

type tableKey struct {
	Name string `json:"name"`
	Type string `json:"type"` // HASH or RANGE
}

func (cfg *tableConfig) applyDefaults(name string) {
	if cfg.TableName == "" {
		cfg.TableName = name
	}
	if cfg.BillingMode == "" {
		cfg.BillingMode = string(types.BillingModePayPerRequest)
	}
}

func (c *Client) createTable(ctx context.Context, name string, config map[string]any) (*resource.Result, error) {
	cfg, err := decodeConfig[tableConfig](ir.KindTable, name, config)
	if err != nil {
		return nil, err
	}
	cfg.applyDefaults(name)

	if len(cfg.Attributes) == 0 || len(cfg.KeySchema) == 0 {
		return nil, resource.NewError(resource.ClassValidation, ir.KindTable, name,
			fmt.Errorf("table config requires attributes and keySchema"))
	}

	defs := make([]types.AttributeDefinition, 0, len(cfg.Attributes))
	for _, attr := range cfg.Attributes {
		defs = append(defs, types.AttributeDefinition{
			AttributeName: awssdk.String(attr.Name),
			AttributeType: types.ScalarAttributeType(attr.Type),
		})
	}
	keys := make([]types.KeySchemaElement, 0, len(cfg.KeySchema))
	for _, key := range cfg.KeySchema {
		keys = append(keys, types.KeySchemaElement{
			AttributeName: awssdk.String(key.Name),
			KeyType:       types.KeyType(key.Type),
		})
	}

	out, err := c.dynamodb.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName:            awssdk.String(cfg.TableName),
		AttributeDefinitions: defs,
		KeySchema:            keys,
		BillingMode:          types.BillingMode(cfg.BillingMode),
	})
	if err != nil {
		return nil, classify(ir.KindTable, name, err)
	}

	return &resource.Result{
		RemoteID: cfg.TableName,
		Outputs: map[string]string{
			"tableName": cfg.TableName,
			"arn":       awssdk.ToString(out.TableDescription.TableArn),
		},
	}, nil
}

func (c *Client) readTable(ctx context.Context, name, remoteID string) (*resource.Result, error) {
	// Tables are addressed by name, so a reconcile lookup and an ID lookup
	// are the same call.
	tableName := remoteID
	if tableName == "" {
		tableName = name
	}

	out, err := c.dynamodb.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: awssdk.String(tableName),
	})
	if err != nil {
		return nil, classify(ir.KindTable, name, err)
	}

	return &resource.Result{
		RemoteID: awssdk.ToString(out.Table.TableName),
		Outputs: map[string]string{
			"tableName": awssdk.ToString(out.Table.TableName),
			"arn":       awssdk.ToString(out.Table.TableArn),
		},
	}, nil
}

func (c *Client) updateTable(ctx context.Context, name, remoteID string, config map[string]any) (*resource.Result, error) {
	cfg, err := decodeConfig[tableConfig](ir.KindTable, name, config)
	if err != nil {
		return nil, err
	}
	cfg.applyDefaults(name)

	// Key schema changes would force a replacement; only the billing mode
	// is updatable in place.
	_, err = c.dynamodb.UpdateTable(ctx, &dynamodb.UpdateTableInput{
		TableName:   awssdk.String(remoteID),
		BillingMode: types.BillingMode(cfg.BillingMode),
	})
	if err != nil {
		// UpdateTable rejects a request that changes nothing; treat that as
		// already converged and fall through to the read.
		classified := classify(ir.KindTable, name, err)
		var re *resource.Error
		if !errors.As(classified, &re) || re.Class != resource.ClassValidation {
			return nil, classified
		}
	}

	return c.readTable(ctx, name, remoteID)
}

func (c *Client) deleteTable(ctx context.Context, name, remoteID string) error {
	_, err := c.dynamodb.DeleteTable(ctx, &dynamodb.DeleteTableInput{
		TableName: awssdk.String(remoteID),
	})
	if err != nil {
		return classify(ir.KindTable, name, err)
	}
	return nil
}

func (c *Client) waitTable(ctx context.Context, remoteID string, timeout time.Duration) error {
	waiter := dynamodb.NewTableExistsWaiter(c.dynamodb)
	err := waiter.Wait(ctx, &dynamodb.DescribeTableInput{
		TableName: awssdk.String(remoteID),
	}, timeout)
	if err != nil {
		return resource.NewError(resource.ClassTimedOut, ir.KindTable, remoteID,
			fmt.Errorf("table did not become ACTIVE: %w", err))
	}
	return nil
}
