package redact_test

import (
	"testing"

	"github.com/shpitdev/profile-enricher/pkg/pipeline/redact"
)

func TestSecrets(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "empty", in: "", want: ""},
		{name: "plain", in: "  status 500 ", want: "status 500"},
		{name: "bearer", in: "auth Bearer abc.def.ghi failed", want: "auth Bearer <redacted> failed"},
		{name: "api key kv", in: "request ?api_key=xyz123 rejected", want: "request ?<redacted_kv> rejected"},
		{name: "gemini key kv", in: "GEMINI_API_KEY: secret", want: "<redacted_kv>"},
		{name: "groq key", in: "invalid key gsk_abcdefgh12345678", want: "invalid key <redacted_key>"},
		{name: "dsn password", in: "dial postgres://app:hunter2@db:5432/portfolio", want: "dial postgres://app:<redacted>@db:5432/portfolio"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := redact.Secrets(tt.in); got != tt.want {
				t.Fatalf("Secrets(%q)=%q want=%q", tt.in, got, tt.want)
			}
		})
	}
}
