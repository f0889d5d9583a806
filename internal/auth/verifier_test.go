package auth

import "testing"

func TestAudienceContainsStringForm(t *testing.T) {
	if !audienceContains("usion-game-service:svc-1", "usion-game-service:svc-1") {
		t.Fatalf("expected exact string audience to match")
	}
	if audienceContains("usion-game-service:svc-1", "usion-game-service:svc-2") {
		t.Fatalf("expected mismatched audience to fail")
	}
}

func TestAudienceContainsArrayForm(t *testing.T) {
	aud := []any{"other-aud", "usion-game-service:svc-1"}
	if !audienceContains(aud, "usion-game-service:svc-1") {
		t.Fatalf("expected array audience containing the expected value to match")
	}
}

func TestContainsPermission(t *testing.T) {
	if !containsPermission([]string{"spectate", "play"}, "play") {
		t.Fatalf("expected permissions list to contain play")
	}
	if containsPermission([]string{"spectate"}, "play") {
		t.Fatalf("expected permissions list without play to fail")
	}
}

func TestIsKeyRotationSignal(t *testing.T) {
	cases := []struct {
		msg  string
		want bool
	}{
		{"unable to find key with kid abc123", true},
		{"unable to find key", true},
		{"token signature is invalid", true},
		{"token is expired", false},
	}
	for _, c := range cases {
		if got := isKeyRotationSignal(&InvalidTokenError{Reason: c.msg}); got != c.want {
			t.Errorf("isKeyRotationSignal(%q) = %v, want %v", c.msg, got, c.want)
		}
	}
}
