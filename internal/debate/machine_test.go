package debate

import (
	"strings"
	"testing"

	"github.com/zulandar/rostrum/internal/models"
)

func TestNextSpeaker(t *testing.T) {
	tests := []struct {
		count int
		want  string
	}{
		{0, models.SpeakerA},
		{1, models.SpeakerB},
		{2, models.SpeakerA},
		{3, models.SpeakerB},
		{9, models.SpeakerB},
	}
	for _, tt := range tests {
		if got := NextSpeaker(tt.count); got != tt.want {
			t.Errorf("NextSpeaker(%d) = %q, want %q", tt.count, got, tt.want)
		}
	}
}

func TestValidateTopic(t *testing.T) {
	if err := ValidateTopic("Should AI be regulated?"); err != nil {
		t.Errorf("valid topic rejected: %v", err)
	}
	if err := ValidateTopic("short"); err == nil {
		t.Error("short topic accepted")
	}
	if err := ValidateTopic(strings.Repeat("x", 501)); err == nil {
		t.Error("long topic accepted")
	}
	// Bounds count runes, not bytes.
	if err := ValidateTopic(strings.Repeat("ä", 500)); err != nil {
		t.Errorf("500-rune topic rejected: %v", err)
	}
}

func TestValidateArgument(t *testing.T) {
	if err := ValidateArgument("a perfectly valid argument"); err != nil {
		t.Errorf("valid argument rejected: %v", err)
	}
	if err := ValidateArgument("too short"); err == nil {
		t.Error("9-char argument accepted")
	}
	if err := ValidateArgument(strings.Repeat("x", 2001)); err == nil {
		t.Error("2001-char argument accepted")
	}
	if err := ValidateArgument(strings.Repeat("x", 2000)); err != nil {
		t.Errorf("2000-char argument rejected: %v", err)
	}
}

func TestValidateWinner(t *testing.T) {
	for _, winner := range []string{"A", "B", "TIE"} {
		if err := ValidateWinner(winner); err != nil {
			t.Errorf("ValidateWinner(%q): %v", winner, err)
		}
	}
	for _, winner := range []string{"", "C", "tie", "a"} {
		if err := ValidateWinner(winner); err == nil {
			t.Errorf("ValidateWinner(%q) accepted", winner)
		}
	}
}

func TestSpeakerFor(t *testing.T) {
	session := &models.DebateSession{DebaterAID: "alice", DebaterBID: "bob"}
	if got := speakerFor(session, "alice"); got != models.SpeakerA {
		t.Errorf("speakerFor(alice) = %q, want A", got)
	}
	if got := speakerFor(session, "bob"); got != models.SpeakerB {
		t.Errorf("speakerFor(bob) = %q, want B", got)
	}
	if got := speakerFor(session, "mallory"); got != "" {
		t.Errorf("speakerFor(mallory) = %q, want empty", got)
	}
	if got := speakerFor(&models.DebateSession{}, ""); got != "" {
		t.Errorf("speakerFor empty = %q, want empty", got)
	}
}

func TestInflightGuard(t *testing.T) {
	g := newInflightGuard()
	if !g.tryAcquire("s1") {
		t.Fatal("first acquire should succeed")
	}
	if g.tryAcquire("s1") {
		t.Fatal("second acquire should fail while held")
	}
	if !g.tryAcquire("s2") {
		t.Fatal("unrelated session should acquire")
	}
	g.release("s1")
	if !g.tryAcquire("s1") {
		t.Fatal("acquire after release should succeed")
	}
}
