package notify

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func fakeTelegram(t *testing.T, sent *[]map[string]string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/bottest-token/getMe", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"headcut","username":"headcut_bot"}}`))
	})
	mux.HandleFunc("/bottest-token/sendMessage", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("ParseForm: %v", err)
		}
		*sent = append(*sent, map[string]string{
			"chat_id": r.PostForm.Get("chat_id"),
			"text":    r.PostForm.Get("text"),
		})
		w.Write([]byte(`{"ok":true,"result":{"message_id":7,"chat":{"id":99,"type":"private"},"text":"ok"}}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestTelegramNotify(t *testing.T) {
	var sent []map[string]string
	srv := fakeTelegram(t, &sent)

	tg, err := NewTelegramWithEndpoint("test-token", srv.URL+"/bot%s/%s", srv.Client())
	if err != nil {
		t.Fatalf("NewTelegramWithEndpoint: %v", err)
	}

	if err := tg.Notify(context.Background(), 99, RenderReady("https://cdn.example.com/v.mp4", []string{"circle"})); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	// chat id 0 means nobody to tell
	if err := tg.Notify(context.Background(), 0, "ignored"); err != nil {
		t.Fatalf("Notify: %v", err)
	}

	if len(sent) != 1 {
		t.Fatalf("expected 1 message, got %d", len(sent))
	}
	if sent[0]["chat_id"] != "99" || !strings.HasSuffix(sent[0]["text"], "https://cdn.example.com/v.mp4") {
		t.Errorf("sent = %v", sent[0])
	}
}

func TestMessages(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"single template", RenderReady("u", []string{"circle"}), "Your video is ready:\nu"},
		{"several templates", RenderReady("u", []string{"circle", "basic"}), "Your video is ready (circle, basic):\nu"},
		{"failure", RenderFailed(errors.New("render timed out")), "Rendering failed: render timed out"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}
