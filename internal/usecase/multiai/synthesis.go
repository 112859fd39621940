package multiai

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"strings"
	"time"

	"ensemble-ai/internal/domain"
)

// Analysis is one model's textual finding with a confidence score in [0,1].
type Analysis struct {
	Source     string  `json:"source"`
	Content    string  `json:"content"`
	Confidence float64 `json:"confidence"`
}

// Synthesis is the merged narrative across several analyses. Confidence is
// the average of the input confidences, not a model judgment. ReportURL is
// set when an uploader is configured.
type Synthesis struct {
	Narrative  string   `json:"narrative"`
	Confidence float64  `json:"confidence"`
	Sources    []string `json:"sources"`
	ReportURL  string   `json:"report_url,omitempty"`
}

// The synthesis turn always runs on a fixed high-capability model unless the
// caller supplies one.
var defaultSynthesisModel = domain.ModelConfig{
	Provider: domain.ProviderAnthropic,
	Model:    "claude-sonnet-4-5",
}

// Synthesizer merges multiple analyses into one coherent narrative with a
// single extra generation call.
type Synthesizer struct {
	gateway  domain.ModelGateway
	model    domain.ModelConfig
	uploader domain.Uploader // optional
	logger   *slog.Logger
}

// NewSynthesizer creates a synthesizer. An empty model falls back to the
// default high-capability model; a nil uploader disables report publishing.
func NewSynthesizer(gateway domain.ModelGateway, model domain.ModelConfig, uploader domain.Uploader, logger *slog.Logger) *Synthesizer {
	if model.Model == "" {
		model = defaultSynthesisModel
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Synthesizer{gateway: gateway, model: model, uploader: uploader, logger: logger}
}

// MergeAnalysis merges exactly two analyses.
func (s *Synthesizer) MergeAnalysis(ctx context.Context, a, b Analysis) (*Synthesis, error) {
	return s.SynthesizeFindings(ctx, []Analysis{a, b})
}

// SynthesizeFindings merges two or more analyses into one narrative and,
// when an uploader is configured, publishes an HTML report.
func (s *Synthesizer) SynthesizeFindings(ctx context.Context, analyses []Analysis) (*Synthesis, error) {
	if len(analyses) < 2 {
		return nil, domain.NewDomainError("multiai.SynthesizeFindings", domain.ErrInvalidInput,
			fmt.Sprintf("need at least 2 analyses, got %d", len(analyses)))
	}

	provider, err := s.gateway.Resolve(s.model)
	if err != nil {
		return nil, fmt.Errorf("resolve synthesis model: %w", err)
	}

	resp, err := provider.Chat(ctx, domain.ChatRequest{
		Model:  s.model.Model,
		System: "You merge multiple analyses into one coherent narrative. Reconcile disagreements explicitly and do not invent findings absent from the inputs.",
		Messages: []domain.Message{{
			Role:      domain.RoleUser,
			Content:   buildSynthesisPrompt(analyses),
			Timestamp: time.Now(),
		}},
	})
	if err != nil {
		return nil, fmt.Errorf("synthesis generation: %w", err)
	}

	result := &Synthesis{
		Narrative:  resp.Message.Content,
		Confidence: averageConfidence(analyses),
	}
	for _, a := range analyses {
		result.Sources = append(result.Sources, a.Source)
	}

	if s.uploader != nil {
		filename := fmt.Sprintf("synthesis-%s.html", time.Now().UTC().Format("20060102T150405"))
		url, upErr := s.uploader.UploadHTML(ctx, renderSynthesisReport(result, analyses), filename)
		if upErr != nil {
			s.logger.Warn("synthesis report upload failed", "error", upErr)
		} else {
			result.ReportURL = url
		}
	}
	return result, nil
}

func buildSynthesisPrompt(analyses []Analysis) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Merge the following %d analyses into a single coherent narrative.\n", len(analyses))
	for i, a := range analyses {
		source := a.Source
		if source == "" {
			source = fmt.Sprintf("analysis %d", i+1)
		}
		fmt.Fprintf(&b, "\n## %s (confidence %.2f)\n%s\n", source, a.Confidence, a.Content)
	}
	return b.String()
}

func averageConfidence(analyses []Analysis) float64 {
	var total float64
	for _, a := range analyses {
		total += a.Confidence
	}
	return total / float64(len(analyses))
}

func renderSynthesisReport(s *Synthesis, analyses []Analysis) string {
	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html><head><meta charset=\"utf-8\"><title>Synthesis Report</title></head><body>\n")
	fmt.Fprintf(&b, "<h1>Synthesis Report</h1>\n<p>Confidence: %.2f</p>\n", s.Confidence)
	fmt.Fprintf(&b, "<h2>Narrative</h2>\n<p>%s</p>\n", html.EscapeString(s.Narrative))
	b.WriteString("<h2>Sources</h2>\n<ul>\n")
	for _, a := range analyses {
		fmt.Fprintf(&b, "<li><strong>%s</strong> (%.2f)</li>\n", html.EscapeString(a.Source), a.Confidence)
	}
	b.WriteString("</ul>\n</body></html>\n")
	return b.String()
}
