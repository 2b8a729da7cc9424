package dialogue

import "strings"

// Correction marker conventions emitted by the completion service. The tutor
// signals a correction either with a leading inline tag (voice replies) or a
// structured block headed by an emoji label (text replies). Both literals are
// recognised by plain substring matching and both count toward the same cap.
const (
	// InlineTag is the leading tag form, always stripped before the reply is
	// stored or spoken.
	InlineTag = "[CORRECTED]"

	// BlockLabel heads the structured block form. The block stays in the
	// displayed text; only its decoration is removed before speech.
	BlockLabel = "📝 Correction:"
)

// blockDecorations are the emoji-prefixed labels of the structured block
// form, paired with their plain-text replacements for speech synthesis.
var blockDecorations = [][2]string{
	{"📝 Correction:", "Correction:"},
	{"💡 Explanation:", "Explanation:"},
	{"✅ Example:", "Example:"},
}

// HasMarker reports whether reply carries a correction marker in either
// convention. A reply containing both forms is still a single correction.
func HasMarker(reply string) bool {
	return strings.Contains(reply, InlineTag) || strings.Contains(reply, BlockLabel)
}

// StripInlineTag removes the inline correction tag and surrounding whitespace.
// Stripping is idempotent: applying it twice equals applying it once.
func StripInlineTag(reply string) string {
	return strings.TrimSpace(strings.ReplaceAll(reply, InlineTag, ""))
}

// StripForSpeech removes every correction decoration that would be read aloud
// awkwardly: the inline tag disappears and emoji block labels are replaced
// with their plain words. Idempotent.
func StripForSpeech(reply string) string {
	out := StripInlineTag(reply)
	for _, d := range blockDecorations {
		out = strings.ReplaceAll(out, d[0], d[1])
	}
	return out
}
