package sources

import (
	"errors"
	"testing"

	"github.com/anatolykoptev/go_caption/internal/engine"
)

func TestResolveVideoID(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"bare id", "dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"bare id padded", "  dQw4w9WgXcQ\n", "dQw4w9WgXcQ"},
		{"short link", "https://youtu.be/dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"short link with time", "https://youtu.be/dQw4w9WgXcQ?t=42", "dQw4w9WgXcQ"},
		{"watch", "https://www.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"watch trailing params", "https://www.youtube.com/watch?v=dQw4w9WgXcQ&list=PL123&index=2", "dQw4w9WgXcQ"},
		{"watch v not first", "https://m.youtube.com/watch?feature=share&v=AbC_d-EfG12", "AbC_d-EfG12"},
		{"watch no scheme", "youtube.com/watch?v=AbC_d-EfG12#t=1", "AbC_d-EfG12"},
		{"nocookie embed", "https://www.youtube-nocookie.com/embed/AbC_d-EfG12?autoplay=1", "AbC_d-EfG12"},
		{"embed", "https://www.youtube.com/embed/AbC_d-EfG12", "AbC_d-EfG12"},
		{"shorts", "https://youtube.com/shorts/AbC_d-EfG12?feature=share", "AbC_d-EfG12"},
		{"live", "https://www.youtube.com/live/AbC_d-EfG12", "AbC_d-EfG12"},
		{"legacy v path", "http://www.youtube.com/v/AbC_d-EfG12?version=3", "AbC_d-EfG12"},
		{"bare path", "https://www.youtube.com/AbC_d-EfG12", "AbC_d-EfG12"},
		{"case preserved", "https://youtu.be/ABCDEFGHIJK", "ABCDEFGHIJK"},
		{"heuristic single token", "video AbC_d-EfG12 please", "AbC_d-EfG12"},
		{"heuristic unknown host", "https://example.com/clip?id=AbC_d-EfG12", "AbC_d-EfG12"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveVideoID(tt.in)
			if err != nil {
				t.Fatalf("ResolveVideoID(%q) error: %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ResolveVideoID(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestResolveVideoIDFailures(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want error
	}{
		{"empty", "", engine.ErrInvalidInput},
		{"blank", "   ", engine.ErrInvalidInput},
		{"not a url", "not a url", engine.ErrNotFound},
		{"id too long", "https://youtu.be/dQw4w9WgXcQX", engine.ErrNotFound},
		{"id too short", "https://youtu.be/dQw4w9", engine.ErrNotFound},
		{"ambiguous tokens", "AAAAAAAAAAA or BBBBBBBBBBB", engine.ErrNotFound},
		{"playlist embed", "https://www.youtube.com/embed/videoseries?list=PLrAXtmErZgOeiKm4sgNOknGvNjby9efdf", engine.ErrNotFound},
		{"channel live embed", "https://www.youtube.com/embed/live_stream?channel=UCuAXFkgsw1L7xaCfnd5JJOw", engine.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveVideoID(tt.in)
			if !errors.Is(err, tt.want) {
				t.Errorf("ResolveVideoID(%q) = %q, %v; want %v", tt.in, got, err, tt.want)
			}
		})
	}
}

func TestResolveVideoIDDeterministic(t *testing.T) {
	in := "https://www.youtube.com/watch?v=dQw4w9WgXcQ&t=10s"
	first, _ := ResolveVideoID(in)
	for range 5 {
		if got, _ := ResolveVideoID(in); got != first {
			t.Fatalf("non-deterministic: %q then %q", first, got)
		}
	}
}

func TestValidVideoID(t *testing.T) {
	if !ValidVideoID("dQw4w9WgXcQ") {
		t.Error("valid id rejected")
	}
	for _, bad := range []string{"", "dQw4w9WgXc", "dQw4w9WgXcQQ", "dQw4w9WgX?Q"} {
		if ValidVideoID(bad) {
			t.Errorf("ValidVideoID(%q) = true", bad)
		}
	}
}
