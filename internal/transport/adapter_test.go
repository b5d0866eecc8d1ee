package transport

import "testing"

func TestSubjectPatterns(t *testing.T) {
	if got := agentPrimarySubject("abc-123"); got != "agentcore.agent.abc-123.primary" {
		t.Fatalf("unexpected primary subject: %s", got)
	}
	if got := agentSecondarySubject("abc-123"); got != "agentcore.agent.abc-123.secondary" {
		t.Fatalf("unexpected secondary subject: %s", got)
	}
	if got := teamSubject("alpha"); got != "agentcore.team.alpha" {
		t.Fatalf("unexpected team subject: %s", got)
	}
}
