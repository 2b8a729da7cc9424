package dialogue

// ReplyLength hints how long tutor replies should be for a given mode.
type ReplyLength int

const (
	// LengthConversational allows full-paragraph replies for on-screen text.
	LengthConversational ReplyLength = iota

	// LengthConcise asks for short replies suitable for audio playback.
	LengthConcise
)

// Mode configures how the engine prompts the tutor for one interaction style.
// Each mode is a single config value, not a branching template: the engine
// composes Instruction with either CorrectionRule or CapRule depending on
// whether the session's correction budget is spent.
type Mode struct {
	// Name identifies the mode in logs.
	Name string

	// Instruction is the base persona prompt.
	Instruction string

	// CorrectionRule is appended while corrections are still allowed.
	CorrectionRule string

	// CapRule is appended once the correction cap is reached.
	CapRule string

	// StripMarker removes the inline tag from the stored reply text. Voice
	// replies are spoken, so the tag must never survive; text replies keep
	// their correction block for display.
	StripMarker bool

	// ReplyLength is the length hint baked into Instruction; recorded here so
	// callers can reason about the mode without parsing prompt text.
	ReplyLength ReplyLength
}

// TextMode returns the configuration for on-screen text tutoring. Corrections
// arrive as a structured block that stays visible in the reply.
func TextMode() Mode {
	return Mode{
		Name: "text",
		Instruction: `You are a friendly and encouraging language tutor on Speakwise.
Act naturally and conversationally, just like ChatGPT, but always stay in your role as a supportive tutor.`,
		CorrectionRule: `GRAMMAR CORRECTION RULE:
If the student makes any grammar, vocabulary, or spelling mistakes:
1. Provide a correction block at the very top of your response:
   📝 Correction: [Provide the corrected sentence]
   💡 Explanation: [Briefly explain the mistake]
   ✅ Example: [Another correct example sentence]
2. Then, continue the conversation naturally in a new paragraph.

IMPORTANT: If there are NO mistakes, do NOT include the correction block. Just respond naturally.`,
		CapRule: `Do NOT correct the student's grammar anymore. Focus on the conversation flow only. Ignore mistakes.`,

		StripMarker: false,
		ReplyLength: LengthConversational,
	}
}

// VoiceMode returns the configuration for spoken tutoring. Corrections arrive
// as a leading inline tag that is stripped before the reply is stored or
// synthesised.
func VoiceMode() Mode {
	return Mode{
		Name: "voice",
		Instruction: `You are a friendly language tutor on Speakwise talking via voice.
Keep your responses concise and conversational (suitable for audio).`,
		CorrectionRule: `GRAMMAR CORRECTION RULE:
If the student makes any grammar/vocabulary mistakes:
1. Start your response strictly with the tag "[CORRECTED] ".
2. Then, politely mention the correction and explanation briefly (suitable for spoken conversion).
3. Then continue the conversation.
If NO mistakes, just respond naturally without the tag.`,
		CapRule: `Do NOT correct the student's grammar anymore. Focus on the conversation flow only. Ignore mistakes.`,

		StripMarker: true,
		ReplyLength: LengthConcise,
	}
}
