package multiai

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ensemble-ai/internal/domain"
)

type recordingProvider struct {
	content string
	err     error
	gotReq  *domain.ChatRequest
}

func (p *recordingProvider) Chat(_ context.Context, req domain.ChatRequest) (*domain.ChatResponse, error) {
	p.gotReq = &req
	if p.err != nil {
		return nil, p.err
	}
	return &domain.ChatResponse{Message: domain.Message{Role: domain.RoleAssistant, Content: p.content}}, nil
}

func (p *recordingProvider) Name() string { return "test" }

type singleGateway struct {
	provider domain.LLMProvider
	lastCfg  domain.ModelConfig
}

func (g *singleGateway) Resolve(model domain.ModelConfig) (domain.LLMProvider, error) {
	g.lastCfg = model
	return g.provider, nil
}

type fakeUploader struct {
	gotContent  string
	gotFilename string
	err         error
}

func (u *fakeUploader) UploadHTML(_ context.Context, content, filename string) (string, error) {
	u.gotContent = content
	u.gotFilename = filename
	if u.err != nil {
		return "", u.err
	}
	return "https://reports.example.com/" + filename, nil
}

func sampleAnalyses() []Analysis {
	return []Analysis{
		{Source: "claude", Content: "revenue grew 12%", Confidence: 0.9},
		{Source: "gpt", Content: "revenue grew about 12%, margins flat", Confidence: 0.7},
	}
}

func TestSynthesizeFindings(t *testing.T) {
	provider := &recordingProvider{content: "merged narrative"}
	gw := &singleGateway{provider: provider}
	s := NewSynthesizer(gw, domain.ModelConfig{}, nil, testLogger())

	result, err := s.SynthesizeFindings(context.Background(), sampleAnalyses())
	require.NoError(t, err)

	assert.Equal(t, "merged narrative", result.Narrative)
	assert.InDelta(t, 0.8, result.Confidence, 1e-9)
	assert.Equal(t, []string{"claude", "gpt"}, result.Sources)
	assert.Empty(t, result.ReportURL)

	// The default high-capability model handled the synthesis turn.
	assert.Equal(t, "claude-sonnet-4-5", gw.lastCfg.Model)

	// Both analyses appear in the constructed prompt.
	require.NotNil(t, provider.gotReq)
	prompt := provider.gotReq.Messages[0].Content
	assert.Contains(t, prompt, "claude")
	assert.Contains(t, prompt, "revenue grew 12%")
	assert.Contains(t, prompt, "margins flat")
	assert.NotEmpty(t, provider.gotReq.System)
}

func TestSynthesizeFindingsRequiresTwoInputs(t *testing.T) {
	s := NewSynthesizer(&singleGateway{provider: &recordingProvider{}}, domain.ModelConfig{}, nil, testLogger())

	_, err := s.SynthesizeFindings(context.Background(), sampleAnalyses()[:1])
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestSynthesizeFindingsUploadsReport(t *testing.T) {
	uploader := &fakeUploader{}
	s := NewSynthesizer(&singleGateway{provider: &recordingProvider{content: "narrative"}},
		domain.ModelConfig{Provider: "test", Model: "m"}, uploader, testLogger())

	result, err := s.SynthesizeFindings(context.Background(), sampleAnalyses())
	require.NoError(t, err)

	assert.Contains(t, result.ReportURL, "https://reports.example.com/synthesis-")
	assert.Regexp(t, `^synthesis-\d{8}T\d{6}\.html$`, uploader.gotFilename)
	assert.Contains(t, uploader.gotContent, "<h1>Synthesis Report</h1>")
	assert.Contains(t, uploader.gotContent, "narrative")
}

func TestSynthesizeFindingsUploadFailureIsNonFatal(t *testing.T) {
	uploader := &fakeUploader{err: fmt.Errorf("s3 down")}
	s := NewSynthesizer(&singleGateway{provider: &recordingProvider{content: "narrative"}},
		domain.ModelConfig{Provider: "test", Model: "m"}, uploader, testLogger())

	result, err := s.SynthesizeFindings(context.Background(), sampleAnalyses())
	require.NoError(t, err)
	assert.Empty(t, result.ReportURL)
	assert.Equal(t, "narrative", result.Narrative)
}

func TestSynthesizeFindingsGenerationFailure(t *testing.T) {
	s := NewSynthesizer(&singleGateway{provider: &recordingProvider{err: fmt.Errorf("provider down")}},
		domain.ModelConfig{Provider: "test", Model: "m"}, nil, testLogger())

	_, err := s.SynthesizeFindings(context.Background(), sampleAnalyses())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "provider down")
}

func TestMergeAnalysisDelegates(t *testing.T) {
	provider := &recordingProvider{content: "merged"}
	s := NewSynthesizer(&singleGateway{provider: provider}, domain.ModelConfig{Provider: "test", Model: "m"}, nil, testLogger())

	a := sampleAnalyses()
	result, err := s.MergeAnalysis(context.Background(), a[0], a[1])
	require.NoError(t, err)
	assert.Equal(t, "merged", result.Narrative)
	assert.Len(t, result.Sources, 2)
}
