package aws

import (
	"context"
	"fmt"
	"strings"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/apigateway"
	"github.com/aws/aws-sdk-go-v2/service/lambda"

	"github.com/stackform-io/stackform/internal/ir"
	"github.com/stackform-io/stackform/pkg/resource"
)

type restAPIConfig struct {
	APIName     string `json:"apiName"`
	Description string `json:"description"`
	PathPart    string `json:"pathPart"`
	HTTPMethod  string `json:"httpMethod"`
	FunctionArn string `json:"functionArn"` // backing Lambda, usually a ref
}

func (cfg *restAPIConfig) applyDefaults(name string) {
	if cfg.APIName == "" {
		cfg.APIName = name
	}
	if cfg.HTTPMethod == "" {
		cfg.HTTPMethod = "ANY"
	}
}

func (c *Client) createRestAPI(ctx context.Context, name string, config map[string]any) (*resource.Result, error) {
	cfg, err := decodeConfig[restAPIConfig](ir.KindAPI, name, config)
	if err != nil {
		return nil, err
	}
	cfg.applyDefaults(name)

	if cfg.PathPart == "" || cfg.FunctionArn == "" {
		return nil, resource.NewError(resource.ClassValidation, ir.KindAPI, name,
			fmt.Errorf("api config requires pathPart and functionArn"))
	}

	created, err := c.apigateway.CreateRestApi(ctx, &apigateway.CreateRestApiInput{
		Name:        awssdk.String(cfg.APIName),
		Description: awssdk.String(cfg.Description),
	})
	if err != nil {
		return nil, classify(ir.KindAPI, name, err)
	}
	apiID := awssdk.ToString(created.Id)

	if err := c.wireRoute(ctx, name, apiID, &cfg); err != nil {
		return nil, err
	}

	executeArn, err := c.executeAPIArn(ctx, apiID)
	if err != nil {
		return nil, classify(ir.KindAPI, name, err)
	}
	return &resource.Result{
		RemoteID: apiID,
		Outputs: map[string]string{
			"id":         apiID,
			"executeArn": executeArn,
		},
	}, nil
}

// wireRoute builds the proxy route on the API: a resource for the path part,
// a method on it, a Lambda proxy integration, and the invoke permission on
// the function. Every step is an idempotent put, so it is safe to re-run on
// update.
func (c *Client) wireRoute(ctx context.Context, name, apiID string, cfg *restAPIConfig) error {
	rootID, err := c.rootResourceID(ctx, apiID)
	if err != nil {
		return classify(ir.KindAPI, name, err)
	}

	resourceID, err := c.ensurePathResource(ctx, apiID, rootID, cfg.PathPart)
	if err != nil {
		return classify(ir.KindAPI, name, err)
	}

	_, err = c.apigateway.PutMethod(ctx, &apigateway.PutMethodInput{
		RestApiId:         awssdk.String(apiID),
		ResourceId:        awssdk.String(resourceID),
		HttpMethod:        awssdk.String(cfg.HTTPMethod),
		AuthorizationType: awssdk.String("NONE"),
	})
	if err != nil && !resource.IsAlreadyExists(classify(ir.KindAPI, name, err)) {
		return classify(ir.KindAPI, name, err)
	}

	// Proxy integrations always invoke Lambda with POST regardless of the
	// client-facing method.
	integrationURI := fmt.Sprintf(
		"arn:aws:apigateway:%s:lambda:path/2015-03-31/functions/%s/invocations",
		c.region, cfg.FunctionArn)
	_, err = c.apigateway.PutIntegration(ctx, &apigateway.PutIntegrationInput{
		RestApiId:             awssdk.String(apiID),
		ResourceId:            awssdk.String(resourceID),
		HttpMethod:            awssdk.String(cfg.HTTPMethod),
		Type:                  "AWS_PROXY",
		IntegrationHttpMethod: awssdk.String("POST"),
		Uri:                   awssdk.String(integrationURI),
	})
	if err != nil {
		return classify(ir.KindAPI, name, err)
	}

	return c.grantInvoke(ctx, name, apiID, cfg.FunctionArn)
}

func (c *Client) rootResourceID(ctx context.Context, apiID string) (string, error) {
	out, err := c.apigateway.GetResources(ctx, &apigateway.GetResourcesInput{
		RestApiId: awssdk.String(apiID),
	})
	if err != nil {
		return "", err
	}
	for _, item := range out.Items {
		if awssdk.ToString(item.Path) == "/" {
			return awssdk.ToString(item.Id), nil
		}
	}
	return "", fmt.Errorf("api %s has no root resource", apiID)
}

func (c *Client) ensurePathResource(ctx context.Context, apiID, rootID, pathPart string) (string, error) {
	existing, err := c.apigateway.GetResources(ctx, &apigateway.GetResourcesInput{
		RestApiId: awssdk.String(apiID),
	})
	if err != nil {
		return "", err
	}
	want := "/" + pathPart
	for _, item := range existing.Items {
		if awssdk.ToString(item.Path) == want {
			return awssdk.ToString(item.Id), nil
		}
	}

	created, err := c.apigateway.CreateResource(ctx, &apigateway.CreateResourceInput{
		RestApiId: awssdk.String(apiID),
		ParentId:  awssdk.String(rootID),
		PathPart:  awssdk.String(pathPart),
	})
	if err != nil {
		return "", err
	}
	return awssdk.ToString(created.Id), nil
}

// grantInvoke allows this API to invoke the backing function. A conflict
// means the statement is already in place from a previous run.
func (c *Client) grantInvoke(ctx context.Context, name, apiID, functionArn string) error {
	executeArn, err := c.executeAPIArn(ctx, apiID)
	if err != nil {
		return classify(ir.KindAPI, name, err)
	}

	_, err = c.lambda.AddPermission(ctx, &lambda.AddPermissionInput{
		FunctionName: awssdk.String(functionArn),
		StatementId:  awssdk.String("stackform-" + apiID),
		Action:       awssdk.String("lambda:InvokeFunction"),
		Principal:    awssdk.String("apigateway.amazonaws.com"),
		SourceArn:    awssdk.String(executeArn + "/*"),
	})
	if err != nil {
		classified := classify(ir.KindAPI, name, err)
		if resource.IsAlreadyExists(classified) {
			return nil
		}
		return classified
	}
	return nil
}

func (c *Client) executeAPIArn(ctx context.Context, apiID string) (string, error) {
	account, err := c.account(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("arn:aws:execute-api:%s:%s:%s", c.region, account, apiID), nil
}

func (c *Client) readRestAPI(ctx context.Context, name, remoteID string) (*resource.Result, error) {
	if remoteID != "" {
		out, err := c.apigateway.GetRestApi(ctx, &apigateway.GetRestApiInput{
			RestApiId: awssdk.String(remoteID),
		})
		if err != nil {
			return nil, classify(ir.KindAPI, name, err)
		}
		return c.restAPIResult(ctx, name, awssdk.ToString(out.Id))
	}

	// Reconcile path: find the API by name. GetRestApis pages by position.
	var position *string
	for {
		out, err := c.apigateway.GetRestApis(ctx, &apigateway.GetRestApisInput{
			Position: position,
		})
		if err != nil {
			return nil, classify(ir.KindAPI, name, err)
		}
		for _, item := range out.Items {
			if awssdk.ToString(item.Name) == name {
				return c.restAPIResult(ctx, name, awssdk.ToString(item.Id))
			}
		}
		if out.Position == nil {
			break
		}
		position = out.Position
	}
	return nil, resource.NewError(resource.ClassNotFound, ir.KindAPI, name,
		fmt.Errorf("no REST API named %q", name))
}

func (c *Client) restAPIResult(ctx context.Context, name, apiID string) (*resource.Result, error) {
	executeArn, err := c.executeAPIArn(ctx, apiID)
	if err != nil {
		return nil, classify(ir.KindAPI, name, err)
	}
	return &resource.Result{
		RemoteID: apiID,
		Outputs: map[string]string{
			"id":         apiID,
			"executeArn": executeArn,
		},
	}, nil
}

func (c *Client) updateRestAPI(ctx context.Context, name, remoteID string, config map[string]any) (*resource.Result, error) {
	cfg, err := decodeConfig[restAPIConfig](ir.KindAPI, name, config)
	if err != nil {
		return nil, err
	}
	cfg.applyDefaults(name)

	if err := c.wireRoute(ctx, name, remoteID, &cfg); err != nil {
		return nil, err
	}
	return c.restAPIResult(ctx, name, remoteID)
}

func (c *Client) deleteRestAPI(ctx context.Context, name, remoteID string) error {
	_, err := c.apigateway.DeleteRestApi(ctx, &apigateway.DeleteRestApiInput{
		RestApiId: awssdk.String(remoteID),
	})
	if err != nil {
		return classify(ir.KindAPI, name, err)
	}
	return nil
}

// stageRemoteID packs the API ID and stage name into one identifier, since a
// stage is only addressable through its API.
func stageRemoteID(apiID, stageName string) string {
	return apiID + ":" + stageName
}

func splitStageRemoteID(remoteID string) (apiID, stageName string, ok bool) {
	apiID, stageName, ok = strings.Cut(remoteID, ":")
	return apiID, stageName, ok && apiID != "" && stageName != ""
}
