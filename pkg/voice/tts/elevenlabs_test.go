package tts

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dostvoice/relay/pkg/voice/audio"
)

func elevenLabsTestServer(t *testing.T, handler func(conn *websocket.Conn, r *http.Request)) (string, func()) {
	t.Helper()
	upgrader := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		handler(conn, r)
	}))
	base := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/text-to-speech/{voice_id}/stream-input"
	return base, srv.Close
}

func readTextMessages(conn *websocket.Conn, n int) []map[string]any {
	out := make([]map[string]any, 0, n)
	for i := 0; i < n; i++ {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return out
		}
		var msg map[string]any
		if json.Unmarshal(data, &msg) == nil {
			out = append(out, msg)
		}
	}
	return out
}

func TestElevenLabsSynthesizeStreamsChunks(t *testing.T) {
	var gotMessages []map[string]any
	var gotPath, gotModel, gotKey string

	base, closeSrv := elevenLabsTestServer(t, func(conn *websocket.Conn, r *http.Request) {
		gotPath = r.URL.Path
		gotModel = r.URL.Query().Get("model_id")
		gotKey = r.Header.Get("xi-api-key")
		gotMessages = readTextMessages(conn, 3)

		for _, chunk := range [][]byte{[]byte("aud"), []byte("io!")} {
			_ = conn.WriteJSON(map[string]any{"audio": base64.StdEncoding.EncodeToString(chunk)})
		}
		_ = conn.WriteJSON(map[string]any{"isFinal": true})

		_ = conn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
		_, _, _ = conn.ReadMessage()
	})
	defer closeSrv()

	p := NewElevenLabs("el-key").WithWSBaseURL(base)
	stream, err := p.Synthesize(context.Background(), "नमस्ते", SynthesizeOptions{Voice: "voice_1"})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	got, err := audio.ReadAll(stream)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(got) != "audio!" {
		t.Fatalf("audio = %q", got)
	}

	if gotKey != "el-key" {
		t.Errorf("xi-api-key = %q", gotKey)
	}
	if !strings.Contains(gotPath, "voice_1") {
		t.Errorf("path = %q, want voice id substituted", gotPath)
	}
	if gotModel != defaultElevenLabsModel {
		t.Errorf("model_id = %q, want %q", gotModel, defaultElevenLabsModel)
	}

	if len(gotMessages) != 3 {
		t.Fatalf("got %d messages, want init+text+eos", len(gotMessages))
	}
	if text, _ := gotMessages[1]["text"].(string); strings.TrimSpace(text) != "नमस्ते" {
		t.Errorf("text message = %v", gotMessages[1])
	}
	if flush, _ := gotMessages[1]["flush"].(bool); !flush {
		t.Errorf("text message missing flush: %v", gotMessages[1])
	}
	if text, _ := gotMessages[2]["text"].(string); text != "" {
		t.Errorf("eos message = %v", gotMessages[2])
	}
}

func TestElevenLabsSynthesizeProviderError(t *testing.T) {
	base, closeSrv := elevenLabsTestServer(t, func(conn *websocket.Conn, r *http.Request) {
		readTextMessages(conn, 3)
		_ = conn.WriteJSON(map[string]any{"error": "quota exceeded for key"})
	})
	defer closeSrv()

	p := NewElevenLabs("el-key").WithWSBaseURL(base)
	stream, err := p.Synthesize(context.Background(), "hi", SynthesizeOptions{Voice: "voice_1"})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	_, err = audio.ReadAll(stream)
	if err == nil || !strings.Contains(err.Error(), "quota") {
		t.Fatalf("err = %v, want provider quota error", err)
	}
}

func TestElevenLabsSynthesizeValidation(t *testing.T) {
	if _, err := NewElevenLabs("").Synthesize(context.Background(), "hi", SynthesizeOptions{Voice: "v"}); err == nil {
		t.Error("want error without api key")
	}
	if _, err := NewElevenLabs("key").Synthesize(context.Background(), "hi", SynthesizeOptions{}); err == nil {
		t.Error("want error without voice id")
	}
}

func TestBuildElevenLabsWSURL(t *testing.T) {
	got, err := buildElevenLabsWSURL("", "voice/1", "model-x")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(got, "voice%2F1") {
		t.Errorf("voice id not escaped: %q", got)
	}
	if !strings.Contains(got, "model_id=model-x") {
		t.Errorf("model query missing: %q", got)
	}
}
