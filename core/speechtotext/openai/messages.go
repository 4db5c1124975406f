package openai

const (
	typeSessionUpdate     = "transcription_session.update"
	typeAudioAppend       = "input_audio_buffer.append"
	typeAudioCommit       = "input_audio_buffer.commit"
	typeTranscriptDelta   = "conversation.item.input_audio_transcription.delta"
	typeTranscriptDone    = "conversation.item.input_audio_transcription.completed"
	typeSpeechStarted     = "input_audio_buffer.speech_started"
	typeSpeechStopped     = "input_audio_buffer.speech_stopped"
	typeSessionCreated    = "transcription_session.created"
	typeSessionUpdated    = "transcription_session.updated"
	typeError             = "error"
	defaultModel          = "gpt-4o-transcribe"
	defaultLanguage       = "en"
	defaultNoiseReduction = "near_field"
)

type sessionUpdate struct {
	Type    string  `json:"type"`
	Session session `json:"session"`
}

type session struct {
	InputAudioFormat         string                   `json:"input_audio_format"`
	InputAudioTranscription  inputAudioTranscription  `json:"input_audio_transcription"`
	TurnDetection            turnDetection            `json:"turn_detection"`
	InputAudioNoiseReduction inputAudioNoiseReduction `json:"input_audio_noise_reduction"`
	Include                  []string                 `json:"include"`
}

type inputAudioTranscription struct {
	Model    string `json:"model"`
	Prompt   string `json:"prompt"`
	Language string `json:"language"`
}

type turnDetection struct {
	Type              string  `json:"type"`
	Threshold         float64 `json:"threshold"`
	PrefixPaddingMs   int     `json:"prefix_padding_ms"`
	SilenceDurationMs int     `json:"silence_duration_ms"`
}

type inputAudioNoiseReduction struct {
	Type string `json:"type"`
}

type audioAppend struct {
	Type  string `json:"type"`
	Audio string `json:"audio"`
}

type audioCommit struct {
	Type string `json:"type"`
}

type serverEvent struct {
	Type       string `json:"type"`
	Delta      string `json:"delta,omitempty"`
	Transcript string `json:"transcript,omitempty"`
	Error      *struct {
		Type    string `json:"type"`
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}
