package embedder

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newTestServer(t *testing.T, embedBody, classifyBody string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		var req embedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if _, err := base64.StdEncoding.DecodeString(req.Image); err != nil || req.Image == "" {
			http.Error(w, "bad image", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/embed":
			_, _ = w.Write([]byte(embedBody))
		case "/classify":
			if len(req.Labels) == 0 {
				http.Error(w, "no labels", http.StatusBadRequest)
				return
			}
			_, _ = w.Write([]byte(classifyBody))
		default:
			http.NotFound(w, r)
		}
	}))
}

func TestHTTP_EmbedImage_ResponseShapes(t *testing.T) {
	testCases := []struct {
		name string
		body string
	}{
		{name: "embedding", body: `{"embedding":[0.1,0.2,0.3]}`},
		{name: "image_embeds batch", body: `{"image_embeds":[[0.1,0.2,0.3]]}`},
		{name: "image_embeds flat", body: `{"image_embeds":[0.1,0.2,0.3]}`},
		{name: "pooler_output", body: `{"pooler_output":[[0.1,0.2,0.3]]}`},
		{name: "openai style", body: `{"data":[{"embedding":[0.1,0.2,0.3]}]}`},
		{name: "bare vector", body: `[0.1,0.2,0.3]`},
		{name: "bare batch", body: `[[0.1,0.2,0.3]]`},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			srv := newTestServer(t, tc.body, `{}`)
			defer srv.Close()
			e := NewHTTP(srv.URL, WithDimension(3), WithRateLimit(0))
			v, err := e.EmbedImage(context.Background(), Image{Name: "a.png", Data: []byte("png")})
			if err != nil {
				t.Fatalf("EmbedImage failed: %v", err)
			}
			if len(v) != 3 || v[0] != 0.1 || v[2] != 0.3 {
				t.Fatalf("EmbedImage = %v, want [0.1 0.2 0.3]", v)
			}
		})
	}
}

func TestHTTP_EmbedImage_Errors(t *testing.T) {
	testCases := []struct {
		name string
		body string
	}{
		{name: "no embedding", body: `{"foo":1}`},
		{name: "wrong dimension", body: `{"embedding":[1,2]}`},
		{name: "empty batch", body: `{"image_embeds":[]}`},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			srv := newTestServer(t, tc.body, `{}`)
			defer srv.Close()
			e := NewHTTP(srv.URL, WithDimension(3), WithRateLimit(0))
			if _, err := e.EmbedImage(context.Background(), Image{Name: "a.png", Data: []byte("png")}); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestHTTP_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "cannot identify image file", http.StatusUnprocessableEntity)
	}))
	defer srv.Close()
	e := NewHTTP(srv.URL, WithRateLimit(0))
	_, err := e.EmbedImage(context.Background(), Image{Name: "bad.png", Data: []byte("not an image")})
	if err == nil || !strings.Contains(err.Error(), "422") {
		t.Fatalf("EmbedImage error = %v, want status 422", err)
	}
}

func TestHTTP_Classify(t *testing.T) {
	labels := []string{"Oil Painting", "Sketch", "Photography"}
	testCases := []struct {
		name    string
		body    string
		want    int
		wantErr bool
	}{
		{name: "index", body: `{"index":2}`, want: 2},
		{name: "scores", body: `{"scores":[0.1,0.7,0.2]}`, want: 1},
		{name: "logits", body: `{"logits_per_image":[[20.5,18.0,25.1]]}`, want: 2},
		{name: "index out of range", body: `{"index":7}`, wantErr: true},
		{name: "score count mismatch", body: `{"scores":[0.1]}`, wantErr: true},
		{name: "empty", body: `{}`, wantErr: true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			srv := newTestServer(t, `{}`, tc.body)
			defer srv.Close()
			e := NewHTTP(srv.URL, WithRateLimit(0))
			got, err := e.Classify(context.Background(), Image{Name: "a.png", Data: []byte("png")}, labels)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %d", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("Classify failed: %v", err)
			}
			if got != tc.want {
				t.Fatalf("Classify = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestHTTP_BearerToken(t *testing.T) {
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`{"embedding":[1]}`))
	}))
	defer srv.Close()
	e := NewHTTP(srv.URL+"/", WithToken("secret"), WithDimension(1), WithRateLimit(100), WithModel("clip-test"))
	if _, err := e.EmbedImage(context.Background(), Image{Data: []byte("x")}); err != nil {
		t.Fatalf("EmbedImage failed: %v", err)
	}
	if auth != "Bearer secret" {
		t.Fatalf("Authorization = %q, want Bearer secret", auth)
	}
	if e.Model() != "clip-test" {
		t.Fatalf("Model = %q", e.Model())
	}
}
