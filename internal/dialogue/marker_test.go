package dialogue

import (
	"strings"
	"testing"
)

func TestHasMarker(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		want  bool
	}{
		{"plain reply", "That sounds great! Tell me more.", false},
		{"inline tag", "[CORRECTED] You should say 'she doesn't like it'.", true},
		{"inline tag mid-reply", "Well observed! [CORRECTED] actually applies here.", true},
		{"block form", "📝 Correction: She doesn't like it.\n💡 Explanation: third person singular.\n\nAnyway, what else?", true},
		{"both forms", "[CORRECTED] 📝 Correction: fixed.", true},
		{"empty", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HasMarker(tt.reply); got != tt.want {
				t.Errorf("HasMarker(%q) = %v, want %v", tt.reply, got, tt.want)
			}
		})
	}
}

func TestStripInlineTag(t *testing.T) {
	got := StripInlineTag("[CORRECTED] You should say 'went'.")
	want := "You should say 'went'."
	if got != want {
		t.Errorf("StripInlineTag = %q, want %q", got, want)
	}
}

func TestStripInlineTag_Idempotent(t *testing.T) {
	once := StripInlineTag("[CORRECTED] Nice try! He goes to school.")
	twice := StripInlineTag(once)
	if once != twice {
		t.Errorf("stripping is not idempotent: %q != %q", once, twice)
	}
}

func TestStripInlineTag_NoTag(t *testing.T) {
	in := "Sounds good to me."
	if got := StripInlineTag(in); got != in {
		t.Errorf("StripInlineTag(%q) = %q, want unchanged", in, got)
	}
}

func TestStripForSpeech(t *testing.T) {
	in := "📝 Correction: She doesn't like it.\n💡 Explanation: third person singular needs -s.\n✅ Example: He doesn't smoke.\n\nSo, what happened next?"
	got := StripForSpeech(in)

	for _, emoji := range []string{"📝", "💡", "✅", "[CORRECTED]"} {
		if strings.Contains(got, emoji) {
			t.Errorf("StripForSpeech left %q in %q", emoji, got)
		}
	}
	if !strings.Contains(got, "Correction: She doesn't like it.") {
		t.Errorf("StripForSpeech dropped the correction content: %q", got)
	}
	if got != StripForSpeech(got) {
		t.Error("StripForSpeech is not idempotent")
	}
}
