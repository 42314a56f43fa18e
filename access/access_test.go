package access

import (
	"context"
	"testing"

	"github.com/gurre/dskit/integration/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanPutAllowed(t *testing.T) {
	iamClient := &mock.IAMClient{Allowed: []string{"arn:aws:s3:::data-scientist-share/data/"}}
	stsClient := &mock.STSClient{ARN: "arn:aws:sts::123456789012:assumed-role/Analyst/jane", Account: "123456789012"}

	err := NewChecker(iamClient, stsClient).CanPut(context.Background(), "data-scientist-share", []string{"data/test/a.txt", "data/test1/b.csv"})
	require.NoError(t, err)

	require.Len(t, iamClient.Calls, 1)
	call := iamClient.Calls[0]
	assert.Equal(t, "arn:aws:iam::123456789012:role/Analyst", *call.PolicySourceArn)
	assert.Equal(t, []string{ActionPutObject}, call.ActionNames)
	assert.Equal(t, []string{
		"arn:aws:s3:::data-scientist-share/data/test/a.txt",
		"arn:aws:s3:::data-scientist-share/data/test1/b.csv",
	}, call.ResourceArns)
}

func TestCanPutDenied(t *testing.T) {
	iamClient := &mock.IAMClient{Allowed: []string{"arn:aws:s3:::data-scientist-share/data/"}}
	stsClient := &mock.STSClient{ARN: "arn:aws:iam::123456789012:user/jane"}

	err := NewChecker(iamClient, stsClient).CanPut(context.Background(), "data-scientist-share", []string{"data/ok.txt", "private/no.txt"})
	assert.ErrorIs(t, err, ErrDenied)
	assert.Contains(t, err.Error(), "private/no.txt")
	assert.NotContains(t, err.Error(), "data/ok.txt")
}

func TestCanPutNoKeys(t *testing.T) {
	iamClient := &mock.IAMClient{}
	require.NoError(t, NewChecker(iamClient, &mock.STSClient{}).CanPut(context.Background(), "b", nil))
	assert.Empty(t, iamClient.Calls)
}

func TestPrincipalARN(t *testing.T) {
	testCases := map[string]string{
		"arn:aws:sts::123456789012:assumed-role/Analyst/jane":     "arn:aws:iam::123456789012:role/Analyst",
		"arn:aws-cn:sts::123456789012:assumed-role/Etl/session-1": "arn:aws-cn:iam::123456789012:role/Etl",
		"arn:aws:iam::123456789012:user/jane":                     "arn:aws:iam::123456789012:user/jane",
		"arn:aws:sts::123456789012:federated-user/bob":            "arn:aws:sts::123456789012:federated-user/bob",
		"not-an-arn": "not-an-arn",
	}
	for in, want := range testCases {
		assert.Equal(t, want, PrincipalARN(in), in)
	}
}
