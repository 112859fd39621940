package llm

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ensemble-ai/internal/domain"
)

type fakeConverseClient struct {
	gotInput *bedrockruntime.ConverseInput
	output   *bedrockruntime.ConverseOutput
	err      error
}

func (f *fakeConverseClient) Converse(_ context.Context, params *bedrockruntime.ConverseInput, _ ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error) {
	f.gotInput = params
	if f.err != nil {
		return nil, f.err
	}
	return f.output, nil
}

func newBedrockTestProvider(client *fakeConverseClient) *BedrockProvider {
	return newBedrockProviderWithClient(domain.ModelConfig{
		Provider: domain.ProviderBedrock,
		Model:    "anthropic.claude-sonnet-4-5-v1:0",
	}, client, testLogger())
}

func TestBedrockChat(t *testing.T) {
	client := &fakeConverseClient{
		output: &bedrockruntime.ConverseOutput{
			Output: &types.ConverseOutputMemberMessage{
				Value: types.Message{
					Role: types.ConversationRoleAssistant,
					Content: []types.ContentBlock{
						&types.ContentBlockMemberText{Value: "hello"},
					},
				},
			},
			StopReason: types.StopReasonEndTurn,
			Usage: &types.TokenUsage{
				InputTokens:  aws.Int32(11),
				OutputTokens: aws.Int32(4),
			},
		},
	}
	p := newBedrockTestProvider(client)

	resp, err := p.Chat(context.Background(), domain.ChatRequest{
		System:   "be terse",
		Messages: []domain.Message{{Role: domain.RoleUser, Content: "hi"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "hello", resp.Message.Content)
	assert.Equal(t, "end_turn", resp.FinishReason)
	assert.Equal(t, 15, resp.Usage.TotalTokens)

	require.NotNil(t, client.gotInput)
	assert.Equal(t, "anthropic.claude-sonnet-4-5-v1:0", aws.ToString(client.gotInput.ModelId))
	require.Len(t, client.gotInput.System, 1)
	sys, ok := client.gotInput.System[0].(*types.SystemContentBlockMemberText)
	require.True(t, ok)
	assert.Equal(t, "be terse", sys.Value)
	require.Len(t, client.gotInput.Messages, 1)
}

func TestBedrockChatToolUse(t *testing.T) {
	client := &fakeConverseClient{
		output: &bedrockruntime.ConverseOutput{
			Output: &types.ConverseOutputMemberMessage{
				Value: types.Message{
					Role: types.ConversationRoleAssistant,
					Content: []types.ContentBlock{
						&types.ContentBlockMemberToolUse{
							Value: types.ToolUseBlock{
								ToolUseId: aws.String("bu_1"),
								Name:      aws.String("calculator"),
								Input: document.NewLazyDocument(map[string]interface{}{
									"expression": "2+2",
								}),
							},
						},
					},
				},
			},
			StopReason: types.StopReasonToolUse,
		},
	}
	p := newBedrockTestProvider(client)

	resp, err := p.Chat(context.Background(), domain.ChatRequest{
		Messages: []domain.Message{{Role: domain.RoleUser, Content: "what is 2+2?"}},
		Tools: []domain.ToolSchema{{
			Name: "calculator",
			Parameters: map[string]domain.ParamSpec{
				"expression": {Type: domain.ParamString, Required: true},
			},
		}},
	})
	require.NoError(t, err)
	require.Len(t, resp.Message.ToolCalls, 1)
	assert.Equal(t, "bu_1", resp.Message.ToolCalls[0].ID)
	assert.Equal(t, "calculator", resp.Message.ToolCalls[0].Name)
	assert.JSONEq(t, `{"expression":"2+2"}`, string(resp.Message.ToolCalls[0].Arguments))
	assert.Equal(t, "tool_use", resp.FinishReason)

	require.NotNil(t, client.gotInput.ToolConfig)
	require.Len(t, client.gotInput.ToolConfig.Tools, 1)
}

func TestBedrockChatToolResultMessage(t *testing.T) {
	client := &fakeConverseClient{
		output: &bedrockruntime.ConverseOutput{
			Output: &types.ConverseOutputMemberMessage{
				Value: types.Message{
					Role: types.ConversationRoleAssistant,
					Content: []types.ContentBlock{
						&types.ContentBlockMemberText{Value: "the answer is 4"},
					},
				},
			},
			StopReason: types.StopReasonEndTurn,
		},
	}
	p := newBedrockTestProvider(client)

	_, err := p.Chat(context.Background(), domain.ChatRequest{
		Messages: []domain.Message{
			{Role: domain.RoleUser, Content: "what is 2+2?"},
			{Role: domain.RoleAssistant, ToolCalls: []domain.ToolCall{
				{ID: "bu_1", Name: "calculator", Arguments: []byte(`{"expression":"2+2"}`)},
			}},
			{Role: domain.RoleTool, ToolCallID: "bu_1", Content: "4"},
		},
	})
	require.NoError(t, err)

	// Tool result rides as a user message with a tool_result block.
	require.Len(t, client.gotInput.Messages, 3)
	last := client.gotInput.Messages[2]
	assert.Equal(t, types.ConversationRoleUser, last.Role)
	require.Len(t, last.Content, 1)
	tr, ok := last.Content[0].(*types.ContentBlockMemberToolResult)
	require.True(t, ok)
	assert.Equal(t, "bu_1", aws.ToString(tr.Value.ToolUseId))
}

func TestMapBedrockError(t *testing.T) {
	cases := []struct {
		name     string
		code     string
		message  string
		sentinel error
	}{
		{"throttled", "ThrottlingException", "slow down", domain.ErrRateLimit},
		{"denied", "AccessDeniedException", "no access", domain.ErrAuthInvalid},
		{"context overflow", "ValidationException", "input is too long", domain.ErrContextOverflow},
		{"model not ready", "ModelNotReadyException", "warming up", domain.ErrProviderError},
		{"internal", "InternalServerException", "oops", domain.ErrProviderError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := mapBedrockError(&smithy.GenericAPIError{Code: tc.code, Message: tc.message})
			assert.ErrorIs(t, err, tc.sentinel)
		})
	}
}

func TestBedrockChatAPIError(t *testing.T) {
	client := &fakeConverseClient{
		err: &smithy.GenericAPIError{Code: "ThrottlingException", Message: "slow down"},
	}
	p := newBedrockTestProvider(client)

	_, err := p.Chat(context.Background(), domain.ChatRequest{
		Messages: []domain.Message{{Role: domain.RoleUser, Content: "hi"}},
	})
	assert.ErrorIs(t, err, domain.ErrRateLimit)
	assert.True(t, domain.IsRetryableError(err))
}
