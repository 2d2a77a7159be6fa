package orchestrator

// State is the phase of the voice interaction loop.
type State int

const (
	Idle State = iota
	Recording
	Transcribing
	Reasoning
	Speaking
	Transferring
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Recording:
		return "recording"
	case Transcribing:
		return "transcribing"
	case Reasoning:
		return "reasoning"
	case Speaking:
		return "speaking"
	case Transferring:
		return "transferring"
	default:
		return "unknown"
	}
}

// MarshalText renders the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

type trigger int

const (
	trigRecordStart trigger = iota
	trigRecordDiscarded
	trigRecordStop
	trigTextSubmitted
	trigTranscribed
	trigIntentDetected
	trigTranscribeFailed
	trigReplyReady
	trigReasoningFailed
	trigHandoff
	trigIntroReady
	trigPlaybackDone
	trigMicDenied
)

func (t trigger) String() string {
	return [...]string{
		"record_start", "record_discarded", "record_stop", "text_submitted",
		"transcribed", "intent_detected", "transcribe_failed", "reply_ready",
		"reasoning_failed", "handoff", "intro_ready", "playback_done", "mic_denied",
	}[t]
}

// transitions is the complete set of legal moves. Anything absent is
// rejected by fire.
var transitions = map[State]map[trigger]State{
	Idle: {
		trigRecordStart:   Recording,
		trigTextSubmitted: Transcribing,
		trigMicDenied:     Idle,
	},
	Recording: {
		trigRecordDiscarded: Idle,
		trigRecordStop:      Transcribing,
		trigMicDenied:       Idle,
	},
	Transcribing: {
		trigTranscribed:      Reasoning,
		trigIntentDetected:   Transferring,
		trigTranscribeFailed: Idle,
	},
	Reasoning: {
		trigReplyReady:      Speaking,
		trigReasoningFailed: Idle,
	},
	Speaking: {
		trigPlaybackDone: Idle,
		trigHandoff:      Transferring,
		trigRecordStart:  Recording,
	},
	Transferring: {
		trigIntroReady: Speaking,
	},
}
