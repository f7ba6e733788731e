package storage

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestUpload_OK(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Fatalf("method = %s, want POST", r.Method)
		}
		if r.URL.Path != "/storage/v1/object/receipts/client-1/123.png" {
			t.Fatalf("path = %s", r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "image/png" {
			t.Fatalf("content-type = %q, want image/png", ct)
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Fatalf("read body: %v", err)
		}
		if string(body) != "png-bytes" {
			t.Fatalf("body = %q", string(body))
		}

		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	client := NewClient(ts.URL, "receipts")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	url, err := client.Upload(ctx, "client-1/123.png", "image/png", []byte("png-bytes"))
	if err != nil {
		t.Fatalf("Upload() error: %v", err)
	}

	want := ts.URL + "/storage/v1/object/public/receipts/client-1/123.png"
	if url != want {
		t.Fatalf("url = %q, want %q", url, want)
	}
}

func TestUpload_UnexpectedStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	client := NewClient(ts.URL, "receipts")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if _, err := client.Upload(ctx, "k", "application/pdf", nil); err == nil {
		t.Fatalf("expected error for 500 response")
	}
}

func TestUpload_NotConfigured(t *testing.T) {
	client := NewClient("", "receipts")

	if _, err := client.Upload(context.Background(), "k", "application/pdf", nil); err == nil {
		t.Fatalf("expected error for unconfigured client")
	}
}

func TestPublicURL_AddsScheme(t *testing.T) {
	client := NewClient("storage.local:9000", "receipts")

	got := client.PublicURL("a/b.pdf")
	want := "http://storage.local:9000/storage/v1/object/public/receipts/a/b.pdf"
	if got != want {
		t.Fatalf("PublicURL() = %q, want %q", got, want)
	}
}
