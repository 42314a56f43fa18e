package mock

import (
	"context"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/iam/types"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

// STSClient is a mock implementation of aws.STSClient returning a fixed ARN.
type STSClient struct {
	ARN     string
	Account string
}

// GetCallerIdentity implements the STSClient interface
func (m *STSClient) GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error) {
	return &sts.GetCallerIdentityOutput{
		Arn:     aws.String(m.ARN),
		Account: aws.String(m.Account),
	}, nil
}

// IAMClient is a mock implementation of aws.IAMClient. Resources whose ARN
// starts with one of Allowed are reported as allowed; everything else is
// implicitly denied.
type IAMClient struct {
	Allowed []string

	// Calls records every simulation request.
	Calls []*iam.SimulatePrincipalPolicyInput
}

// SimulatePrincipalPolicy implements the IAMClient interface for permission simulation
func (m *IAMClient) SimulatePrincipalPolicy(ctx context.Context, params *iam.SimulatePrincipalPolicyInput, optFns ...func(*iam.Options)) (*iam.SimulatePrincipalPolicyOutput, error) {
	m.Calls = append(m.Calls, params)

	out := &iam.SimulatePrincipalPolicyOutput{}
	for _, action := range params.ActionNames {
		for _, resource := range params.ResourceArns {
			decision := types.PolicyEvaluationDecisionTypeImplicitDeny
			for _, prefix := range m.Allowed {
				if strings.HasPrefix(resource, prefix) {
					decision = types.PolicyEvaluationDecisionTypeAllowed
					break
				}
			}
			out.EvaluationResults = append(out.EvaluationResults, types.EvaluationResult{
				EvalActionName:   aws.String(action),
				EvalResourceName: aws.String(resource),
				EvalDecision:     decision,
			})
		}
	}
	return out, nil
}
