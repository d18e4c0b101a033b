package resolver

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/mie-tools/mie/internal/apperr"
)

type mapFiles map[string][]byte

func (m mapFiles) ReadFile(path string) ([]byte, error) {
	if data, ok := m[path]; ok {
		return data, nil
	}
	return nil, fs.ErrNotExist
}

type stubFetcher struct {
	responses map[string][]byte
	calls     int
	err       error
}

func (s *stubFetcher) Get(_ context.Context, url string) ([]byte, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	if data, ok := s.responses[url]; ok {
		return data, nil
	}
	return nil, fmt.Errorf("unexpected status %d", 404)
}

func TestResolve_LocalVerbatim(t *testing.T) {
	r := New("", false, 0, nil)
	r.Files = mapFiles{"img.png": []byte("png")}
	src, err := r.Resolve(context.Background(), "img.png")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !src.Local || string(src.Data) != "png" || src.Identifier != "img.png" {
		t.Errorf("src = %+v", src)
	}
}

func TestResolve_PercentDecodedFallback(t *testing.T) {
	r := New("", false, 0, nil)
	r.Files = mapFiles{"my image.png": []byte("x")}
	src, err := r.Resolve(context.Background(), "my%20image.png")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if src.Identifier != "my image.png" {
		t.Errorf("identifier = %q", src.Identifier)
	}
}

func TestResolve_BasePathJoin(t *testing.T) {
	r := New("/vault/notes", false, 0, nil)
	r.Files = mapFiles{filepath.Join("/vault/notes", "res/img.png"): []byte("x")}
	src, err := r.Resolve(context.Background(), "./res/img.png")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !src.Local {
		t.Error("expected local source")
	}
}

func TestResolve_LocalMissing(t *testing.T) {
	r := New("/vault", false, 0, nil)
	r.Files = mapFiles{}
	_, err := r.Resolve(context.Background(), "nope.png")
	if !errors.Is(err, apperr.ErrUnresolvable) {
		t.Errorf("err = %v, want ErrUnresolvable", err)
	}
}

func TestResolve_AlreadyEmbedded(t *testing.T) {
	r := New("", false, 0, nil)
	_, err := r.Resolve(context.Background(), "data:image/png;base64,AAAA")
	if !errors.Is(err, apperr.ErrAlreadyEmbedded) {
		t.Errorf("err = %v, want ErrAlreadyEmbedded", err)
	}
}

func TestResolve_YarleMarkerResolvesFirst(t *testing.T) {
	base := "/export"
	r := New(base, true, 0, nil)
	r.Files = mapFiles{filepath.Join(base, "_resources/note/img.jpeg"): []byte("jpeg")}
	src, err := r.Resolve(context.Background(), "./_resources/note/img.jpeg")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(src.Data) != "jpeg" {
		t.Errorf("data = %q", src.Data)
	}
}

func TestResolve_YarleOffDoesNotShortCircuitRemote(t *testing.T) {
	fetch := &stubFetcher{responses: map[string][]byte{"https://h/.resources/a.png": []byte("r")}}
	r := New("", true, 0, nil)
	r.HTTP = fetch
	src, err := r.Resolve(context.Background(), "https://h/.resources/a.png")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if src.Local {
		t.Error("remote source flagged local")
	}
	if fetch.calls != 1 {
		t.Errorf("fetch calls = %d, want 1", fetch.calls)
	}
}

func TestResolve_RemoteFailureIsUnresolvable(t *testing.T) {
	r := New("", false, 0, nil)
	r.HTTP = &stubFetcher{err: errors.New("connection refused")}
	_, err := r.Resolve(context.Background(), "https://down.example/x.png")
	if !errors.Is(err, apperr.ErrUnresolvable) {
		t.Errorf("err = %v, want ErrUnresolvable", err)
	}
}

func TestResolve_RemoteNon200IsUnresolvable(t *testing.T) {
	r := New("", false, 0, nil)
	r.HTTP = &stubFetcher{responses: map[string][]byte{}}
	_, err := r.Resolve(context.Background(), "https://host/missing.png")
	if !errors.Is(err, apperr.ErrUnresolvable) {
		t.Errorf("err = %v, want ErrUnresolvable", err)
	}
}

func TestReadLocal_TrailingJunkStripped(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "img.png")
	if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	r := New("", false, 0, nil)
	src, err := r.Resolve(context.Background(), p+" \t")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if src.Identifier != p {
		t.Errorf("identifier = %q, want %q", src.Identifier, p)
	}
}
