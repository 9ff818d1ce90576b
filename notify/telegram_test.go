package notify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/embassy-watch/embassy-eye/config"
)

func newTestNotifier(t *testing.T, handler http.HandlerFunc) *Telegram {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	n := NewTelegram(config.TelegramConfig{BotToken: "test-token", ChatID: "42"})
	if n == nil {
		t.Fatal("NewTelegram returned nil with credentials set")
	}
	n.client.SetBaseURL(srv.URL)
	n.client.SetRetryCount(0)
	return n
}

func TestSendMessage(t *testing.T) {
	var gotPath, gotChat, gotText string
	n := newTestNotifier(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		r.ParseForm()
		gotChat = r.FormValue("chat_id")
		gotText = r.FormValue("text")
		w.Write([]byte(`{"ok":true}`))
	})

	if err := n.SendMessage(context.Background(), "slots available"); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if gotPath != "/bottest-token/sendMessage" {
		t.Errorf("path = %q", gotPath)
	}
	if gotChat != "42" || gotText != "slots available" {
		t.Errorf("chat_id = %q, text = %q", gotChat, gotText)
	}
}

func TestSendMessageRejected(t *testing.T) {
	n := newTestNotifier(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"ok":false,"description":"chat not found"}`))
	})

	err := n.SendMessage(context.Background(), "hello")
	if err == nil {
		t.Fatal("expected error for rejected message")
	}
	if !strings.Contains(err.Error(), "chat not found") {
		t.Errorf("error %q should carry the api description", err)
	}
}

func TestSendPhotoMultipart(t *testing.T) {
	var gotFilename string
	var gotSize int
	n := newTestNotifier(t, func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		file, header, err := r.FormFile("photo")
		if err != nil {
			t.Errorf("photo part missing: %v", err)
		} else {
			defer file.Close()
			gotFilename = header.Filename
			buf := make([]byte, 16)
			nRead, _ := file.Read(buf)
			gotSize = nRead
		}
		w.Write([]byte(`{"ok":true}`))
	})

	png := []byte{0x89, 'P', 'N', 'G'}
	if err := n.SendPhoto(context.Background(), "found", png); err != nil {
		t.Fatalf("SendPhoto: %v", err)
	}
	if gotFilename != "screenshot.png" {
		t.Errorf("filename = %q", gotFilename)
	}
	if gotSize != len(png) {
		t.Errorf("photo size = %d, want %d", gotSize, len(png))
	}
}

func TestDisabledNotifierIsNoOp(t *testing.T) {
	n := NewTelegram(config.TelegramConfig{})
	if n.Enabled() {
		t.Error("notifier with empty credentials should be disabled")
	}
	if err := n.SendMessage(context.Background(), "x"); err != nil {
		t.Errorf("disabled SendMessage: %v", err)
	}
	if err := n.SendPhoto(context.Background(), "x", nil); err != nil {
		t.Errorf("disabled SendPhoto: %v", err)
	}
	if err := n.SendDocument(context.Background(), "x", "dump.html", nil); err != nil {
		t.Errorf("disabled SendDocument: %v", err)
	}
}
