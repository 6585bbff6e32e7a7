package llm

// Request shape for the upstream generateContent endpoint.
type providerPart struct {
	Text string `json:"text"`
}

type providerContent struct {
	Role  string         `json:"role,omitempty"`
	Parts []providerPart `json:"parts"`
}

type providerGenerationConfig struct {
	Temperature     float32 `json:"temperature,omitempty"`
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
}

type providerRequest struct {
	Contents         []providerContent         `json:"contents"`
	GenerationConfig *providerGenerationConfig `json:"generationConfig,omitempty"`
}

type providerCandidate struct {
	Content      providerContent `json:"content"`
	FinishReason string          `json:"finishReason,omitempty"`
}

type providerUsage struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
	TotalTokenCount      int `json:"totalTokenCount"`
}

type providerResponse struct {
	Candidates    []providerCandidate `json:"candidates"`
	UsageMetadata *providerUsage      `json:"usageMetadata,omitempty"`
	ModelVersion  string              `json:"modelVersion,omitempty"`
}

type providerErrorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}
