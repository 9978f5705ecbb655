package aws

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/iam"

	"github.com/stackform-io/stackform/internal/ir"
	"github.com/stackform-io/stackform/pkg/resource"
)

type roleConfig struct {
	RoleName          string         `json:"roleName"`
	AssumeRolePolicy  map[string]any `json:"assumeRolePolicy"`
	ManagedPolicyArns []string       `json:"managedPolicyArns"`
	// InlinePolicies maps policy name to policy document.
	InlinePolicies map[string]map[string]any `json:"inlinePolicies"`
}

func (cfg *roleConfig) applyDefaults(name string) {
	if cfg.RoleName == "" {
		cfg.RoleName = name
	}
}

func policyJSON(kind ir.Kind, name string, doc map[string]any) (string, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return "", resource.NewError(resource.ClassValidation, kind, name,
			fmt.Errorf("policy document is not serializable: %w", err))
	}
	return string(raw), nil
}

func (c *Client) createRole(ctx context.Context, name string, config map[string]any) (*resource.Result, error) {
	cfg, err := decodeConfig[roleConfig](ir.KindRole, name, config)
	if err != nil {
		return nil, err
	}
	cfg.applyDefaults(name)

	if len(cfg.AssumeRolePolicy) == 0 {
		return nil, resource.NewError(resource.ClassValidation, ir.KindRole, name,
			fmt.Errorf("role config requires assumeRolePolicy"))
	}
	trust, err := policyJSON(ir.KindRole, name, cfg.AssumeRolePolicy)
	if err != nil {
		return nil, err
	}

	out, err := c.iam.CreateRole(ctx, &iam.CreateRoleInput{
		RoleName:                 awssdk.String(cfg.RoleName),
		AssumeRolePolicyDocument: awssdk.String(trust),
	})
	if err != nil {
		return nil, classify(ir.KindRole, name, err)
	}

	if err := c.syncRolePolicies(ctx, name, &cfg); err != nil {
		return nil, err
	}

	return &resource.Result{
		RemoteID: cfg.RoleName,
		Outputs: map[string]string{
			"roleName": cfg.RoleName,
			"arn":      awssdk.ToString(out.Role.Arn),
		},
	}, nil
}

func (c *Client) readRole(ctx context.Context, name, remoteID string) (*resource.Result, error) {
	roleName := remoteID
	if roleName == "" {
		roleName = name
	}

	out, err := c.iam.GetRole(ctx, &iam.GetRoleInput{RoleName: awssdk.String(roleName)})
	if err != nil {
		return nil, classify(ir.KindRole, name, err)
	}

	return &resource.Result{
		RemoteID: awssdk.ToString(out.Role.RoleName),
		Outputs: map[string]string{
			"roleName": awssdk.ToString(out.Role.RoleName),
			"arn":      awssdk.ToString(out.Role.Arn),
		},
	}, nil
}

func (c *Client) updateRole(ctx context.Context, name, remoteID string, config map[string]any) (*resource.Result, error) {
	cfg, err := decodeConfig[roleConfig](ir.KindRole, name, config)
	if err != nil {
		return nil, err
	}
	cfg.applyDefaults(name)
	cfg.RoleName = remoteID

	if len(cfg.AssumeRolePolicy) > 0 {
		trust, err := policyJSON(ir.KindRole, name, cfg.AssumeRolePolicy)
		if err != nil {
			return nil, err
		}
		_, err = c.iam.UpdateAssumeRolePolicy(ctx, &iam.UpdateAssumeRolePolicyInput{
			RoleName:       awssdk.String(cfg.RoleName),
			PolicyDocument: awssdk.String(trust),
		})
		if err != nil {
			return nil, classify(ir.KindRole, name, err)
		}
	}

	if err := c.syncRolePolicies(ctx, name, &cfg); err != nil {
		return nil, err
	}
	return c.readRole(ctx, name, cfg.RoleName)
}

// syncRolePolicies reconciles attached managed policies and inline policies
// toward the declared set: desired entries are (re)put, undesired ones
// detached or deleted.
func (c *Client) syncRolePolicies(ctx context.Context, name string, cfg *roleConfig) error {
	desired := make(map[string]bool, len(cfg.ManagedPolicyArns))
	for _, arn := range cfg.ManagedPolicyArns {
		desired[arn] = true
		_, err := c.iam.AttachRolePolicy(ctx, &iam.AttachRolePolicyInput{
			RoleName:  awssdk.String(cfg.RoleName),
			PolicyArn: awssdk.String(arn),
		})
		if err != nil {
			return classify(ir.KindRole, name, err)
		}
	}

	attached, err := c.iam.ListAttachedRolePolicies(ctx, &iam.ListAttachedRolePoliciesInput{
		RoleName: awssdk.String(cfg.RoleName),
	})
	if err != nil {
		return classify(ir.KindRole, name, err)
	}
	for _, policy := range attached.AttachedPolicies {
		if desired[awssdk.ToString(policy.PolicyArn)] {
			continue
		}
		_, err := c.iam.DetachRolePolicy(ctx, &iam.DetachRolePolicyInput{
			RoleName:  awssdk.String(cfg.RoleName),
			PolicyArn: policy.PolicyArn,
		})
		if err != nil {
			return classify(ir.KindRole, name, err)
		}
	}

	desiredInline := make(map[string]bool, len(cfg.InlinePolicies))
	for policyName, doc := range cfg.InlinePolicies {
		desiredInline[policyName] = true
		body, err := policyJSON(ir.KindRole, name, doc)
		if err != nil {
			return err
		}
		_, err = c.iam.PutRolePolicy(ctx, &iam.PutRolePolicyInput{
			RoleName:       awssdk.String(cfg.RoleName),
			PolicyName:     awssdk.String(policyName),
			PolicyDocument: awssdk.String(body),
		})
		if err != nil {
			return classify(ir.KindRole, name, err)
		}
	}

	inline, err := c.iam.ListRolePolicies(ctx, &iam.ListRolePoliciesInput{
		RoleName: awssdk.String(cfg.RoleName),
	})
	if err != nil {
		return classify(ir.KindRole, name, err)
	}
	for _, policyName := range inline.PolicyNames {
		if desiredInline[policyName] {
			continue
		}
		_, err := c.iam.DeleteRolePolicy(ctx, &iam.DeleteRolePolicyInput{
			RoleName:   awssdk.String(cfg.RoleName),
			PolicyName: awssdk.String(policyName),
		})
		if err != nil {
			return classify(ir.KindRole, name, err)
		}
	}

	return nil
}

func (c *Client) deleteRole(ctx context.Context, name, remoteID string) error {
	// IAM refuses to delete a role that still has attachments, so strip
	// managed and inline policies first.
	attached, err := c.iam.ListAttachedRolePolicies(ctx, &iam.ListAttachedRolePoliciesInput{
		RoleName: awssdk.String(remoteID),
	})
	if err != nil {
		return classify(ir.KindRole, name, err)
	}
	for _, policy := range attached.AttachedPolicies {
		_, err := c.iam.DetachRolePolicy(ctx, &iam.DetachRolePolicyInput{
			RoleName:  awssdk.String(remoteID),
			PolicyArn: policy.PolicyArn,
		})
		if err != nil {
			return classify(ir.KindRole, name, err)
		}
	}

	inline, err := c.iam.ListRolePolicies(ctx, &iam.ListRolePoliciesInput{
		RoleName: awssdk.String(remoteID),
	})
	if err != nil {
		return classify(ir.KindRole, name, err)
	}
	for _, policyName := range inline.PolicyNames {
		_, err := c.iam.DeleteRolePolicy(ctx, &iam.DeleteRolePolicyInput{
			RoleName:   awssdk.String(remoteID),
			PolicyName: awssdk.String(policyName),
		})
		if err != nil {
			return classify(ir.KindRole, name, err)
		}
	}

	_, err = c.iam.DeleteRole(ctx, &iam.DeleteRoleInput{RoleName: awssdk.String(remoteID)})
	if err != nil {
		return classify(ir.KindRole, name, err)
	}
	return nil
}

func (c *Client) waitRole(ctx context.Context, remoteID string, timeout time.Duration) error {
	waiter := iam.NewRoleExistsWaiter(c.iam)
	err := waiter.Wait(ctx, &iam.GetRoleInput{RoleName: awssdk.String(remoteID)}, timeout)
	if err != nil {
		return resource.NewError(resource.ClassTimedOut, ir.KindRole, remoteID,
			fmt.Errorf("role did not propagate: %w", err))
	}
	return nil
}
