package multiai

// Recommendations issued by HandlePartialFailures.
const (
	RecommendContinue = "continue"
	RecommendAbort    = "abort"
)

const defaultMinimumSuccessRate = 0.5

// FailurePolicy configures partial-failure assessment. MaxRetries and
// FallbackStrategy are advisory fields echoed back to the caller; the
// assessment itself never retries anything.
type FailurePolicy struct {
	MinimumSuccessRate float64 // 0 falls back to 0.5
	FallbackStrategy   string
	MaxRetries         int
}

// FailureAssessment is the continue/abort recommendation for a fan-out
// with partial failures.
type FailureAssessment struct {
	SuccessRate    float64  `json:"success_rate"`
	Succeeded      int      `json:"succeeded"`
	Failed         int      `json:"failed"`
	FailedModels   []string `json:"failed_models,omitempty"`
	Recommendation string   `json:"recommendation"`
	Fallback       string   `json:"fallback,omitempty"`
	MaxRetries     int      `json:"max_retries,omitempty"`
}

// HandlePartialFailures computes the success ratio of a fan-out and
// recommends continuing or aborting. Retrying the failed models is the
// caller's responsibility.
func HandlePartialFailures(results []Result, policy FailurePolicy) FailureAssessment {
	minRate := policy.MinimumSuccessRate
	if minRate <= 0 {
		minRate = defaultMinimumSuccessRate
	}

	assessment := FailureAssessment{
		Fallback:   policy.FallbackStrategy,
		MaxRetries: policy.MaxRetries,
	}
	for _, r := range results {
		if r.Success {
			assessment.Succeeded++
		} else {
			assessment.Failed++
			assessment.FailedModels = append(assessment.FailedModels, r.Model)
		}
	}

	if total := len(results); total > 0 {
		assessment.SuccessRate = float64(assessment.Succeeded) / float64(total)
	}

	assessment.Recommendation = RecommendAbort
	if assessment.SuccessRate >= minRate {
		assessment.Recommendation = RecommendContinue
	}
	return assessment
}
