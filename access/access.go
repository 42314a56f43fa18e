// Package access checks, before any data moves, whether the current AWS
// identity may write the objects an upload would create.
package access

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/iam/types"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/gurre/dskit/aws"
)

// ErrDenied is returned when the simulated policy denies at least one action.
var ErrDenied = errors.New("access denied")

// ActionPutObject is the IAM action required for an upload.
const ActionPutObject = "s3:PutObject"

// Checker simulates IAM policies for the caller identity.
type Checker struct {
	iam aws.IAMClient
	sts aws.STSClient
}

// NewChecker creates a new Checker instance
func NewChecker(iamClient aws.IAMClient, stsClient aws.STSClient) *Checker {
	return &Checker{iam: iamClient, sts: stsClient}
}

// CanPut reports whether the caller may s3:PutObject every key in bucket.
// Denied resources are listed in the returned error, which wraps ErrDenied.
func (c *Checker) CanPut(ctx context.Context, bucket string, keys []string) error {
	if len(keys) == 0 {
		return nil
	}

	principal, err := c.principal(ctx)
	if err != nil {
		return err
	}

	resources := make([]string, 0, len(keys))
	for _, key := range keys {
		resources = append(resources, ObjectARN(bucket, key))
	}

	return c.simulate(ctx, principal, []string{ActionPutObject}, resources)
}

func (c *Checker) principal(ctx context.Context) (string, error) {
	out, err := c.sts.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return "", fmt.Errorf("failed to resolve caller identity: %w", err)
	}
	if out.Arn == nil {
		return "", fmt.Errorf("caller identity has no ARN")
	}
	return PrincipalARN(*out.Arn), nil
}

func (c *Checker) simulate(ctx context.Context, principal string, actions, resources []string) error {
	input := &iam.SimulatePrincipalPolicyInput{
		PolicySourceArn: &principal,
		ActionNames:     actions,
		ResourceArns:    resources,
	}

	var denied []string
	paginator := iam.NewSimulatePrincipalPolicyPaginator(c.iam, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return fmt.Errorf("failed to simulate policy for %s: %w", principal, err)
		}
		for _, result := range page.EvaluationResults {
			if result.EvalDecision != types.PolicyEvaluationDecisionTypeAllowed {
				denied = append(denied, fmt.Sprintf("%s on %s", deref(result.EvalActionName), deref(result.EvalResourceName)))
			}
		}
	}

	if len(denied) > 0 {
		return fmt.Errorf("%w for %s: %s", ErrDenied, principal, strings.Join(denied, ", "))
	}
	return nil
}

// ObjectARN returns the ARN of an S3 object.
func ObjectARN(bucket, key string) string {
	return "arn:aws:s3:::" + bucket + "/" + key
}

// PrincipalARN maps an STS caller ARN to the IAM ARN that policy simulation
// accepts. Assumed-role sessions map to their role; role paths are not
// recoverable from the session ARN and are dropped.
//
//	arn:aws:sts::123456789012:assumed-role/Analyst/jane -> arn:aws:iam::123456789012:role/Analyst
func PrincipalARN(callerARN string) string {
	parts := strings.SplitN(callerARN, ":", 6)
	if len(parts) != 6 || parts[2] != "sts" {
		return callerARN
	}
	resource := parts[5]
	if !strings.HasPrefix(resource, "assumed-role/") {
		return callerARN
	}
	segments := strings.Split(resource, "/")
	if len(segments) < 2 {
		return callerARN
	}
	return fmt.Sprintf("arn:%s:iam::%s:role/%s", parts[1], parts[4], segments[1])
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
