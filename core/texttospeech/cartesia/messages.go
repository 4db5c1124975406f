package cartesia

type generationRequest struct {
	ModelID      string       `json:"model_id"`
	Transcript   string       `json:"transcript"`
	Voice        voice        `json:"voice"`
	Language     string       `json:"language,omitempty"`
	ContextID    string       `json:"context_id,omitempty"`
	Continue     bool         `json:"continue"`
	OutputFormat outputFormat `json:"output_format"`
}

type voice struct {
	Mode string `json:"mode"`
	ID   string `json:"id"`
}

type outputFormat struct {
	Container  string `json:"container"`
	Encoding   string `json:"encoding"`
	SampleRate int    `json:"sample_rate"`
}

type cancelRequest struct {
	ContextID string `json:"context_id"`
	Cancel    bool   `json:"cancel"`
}

type response struct {
	Type       string `json:"type"`
	ContextID  string `json:"context_id"`
	Data       string `json:"data,omitempty"`
	Done       bool   `json:"done"`
	StatusCode int    `json:"status_code,omitempty"`
	Error      string `json:"error,omitempty"`
}
