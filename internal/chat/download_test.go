package chat

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDownload_WritesFileWithHeaders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer xoxb" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte("image-bytes"))
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "a.jpg")
	h := http.Header{}
	h.Set("Authorization", "Bearer xoxb")
	if err := Download(context.Background(), srv.Client(), srv.URL, dest, h); err != nil {
		t.Fatalf("Download: %v", err)
	}
	data, _ := os.ReadFile(dest)
	if string(data) != "image-bytes" {
		t.Errorf("content = %q", data)
	}
}

func TestDownload_BadStatusLeavesNoFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "a.jpg")
	if err := Download(context.Background(), srv.Client(), srv.URL, dest, nil); err == nil {
		t.Fatal("expected error for 404")
	}
	if _, err := os.Stat(dest); !os.IsNotExist(err) {
		t.Error("no file should be created on a failed download")
	}
}

func TestDownload_ErrorOmitsURLCredentials(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	fileURL := srv.URL + "/file/bot123456:SECRET-token/photos/file_1.jpg"
	srv.Close()

	err := Download(context.Background(), http.DefaultClient, fileURL, filepath.Join(t.TempDir(), "a.jpg"), nil)
	if err == nil {
		t.Fatal("expected error from a closed server")
	}
	if strings.Contains(err.Error(), "SECRET-token") {
		t.Errorf("error leaks the file URL: %v", err)
	}
	if !strings.Contains(err.Error(), "Get request") {
		t.Errorf("error should keep the operation: %v", err)
	}
}

func TestDownload_BadURLOmitsCredentials(t *testing.T) {
	err := Download(context.Background(), nil, "https://api.example/file/botSECRET/%zz", filepath.Join(t.TempDir(), "a.jpg"), nil)
	if err == nil {
		t.Fatal("expected error for an unparsable URL")
	}
	if strings.Contains(err.Error(), "SECRET") {
		t.Errorf("error leaks the file URL: %v", err)
	}
}
