package announce

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNewProviderSelection(t *testing.T) {
	cases := []struct {
		name string
		kind string
		url  string
		want string
	}{
		{name: "default", kind: "", want: "announce.LogProvider"},
		{name: "stub", kind: "stub", want: "announce.LogProvider"},
		{name: "noop", kind: "noop", want: "announce.NoopProvider"},
		{name: "fail", kind: "fail", want: "announce.FailProvider"},
		{name: "webhook", kind: "webhook", url: "https://hooks.example.com/announce", want: "announce.WebhookProvider"},
		{name: "webhook without url", kind: "webhook", want: "announce.LogProvider"},
		{name: "bare url", kind: "https://hooks.example.com/announce", want: "announce.WebhookProvider"},
		{name: "unknown", kind: "carrier-pigeon", want: "announce.LogProvider"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			provider := NewProvider(tc.kind, tc.url, "")
			got := typeName(provider)
			if got != tc.want {
				t.Fatalf("NewProvider(%q) = %s, want %s", tc.kind, got, tc.want)
			}
		})
	}
}

func typeName(p Provider) string {
	switch p.(type) {
	case LogProvider:
		return "announce.LogProvider"
	case NoopProvider:
		return "announce.NoopProvider"
	case FailProvider:
		return "announce.FailProvider"
	case WebhookProvider:
		return "announce.WebhookProvider"
	default:
		return "unknown"
	}
}

func TestWebhookProviderPostsMessage(t *testing.T) {
	var gotAuth string
	var gotBody map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode webhook body: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	provider := WebhookProvider{URL: server.URL, Token: "secret"}
	if err := provider.Announce(context.Background(), "Number 5, please proceed to the counter"); err != nil {
		t.Fatalf("announce: %v", err)
	}
	if gotAuth != "Bearer secret" {
		t.Fatalf("unexpected auth header %q", gotAuth)
	}
	if gotBody["message"] != "Number 5, please proceed to the counter" {
		t.Fatalf("unexpected body %+v", gotBody)
	}
}

func TestWebhookProviderRejectsErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	provider := WebhookProvider{URL: server.URL}
	if err := provider.Announce(context.Background(), "hello"); err == nil {
		t.Fatal("expected error for 502 response")
	}
}
