//go:build linux

package drm

import (
	"errors"
	"testing"
)

func TestPickActive(t *testing.T) {
	fbs := map[uint32]*Framebuffer{
		10: {ID: 10, Width: 1920, Height: 1080},
		11: {ID: 11, Width: 256, Height: 256},
		12: {ID: 12, Width: 1920, Height: 1080},
	}

	tests := []struct {
		name   string
		planes []Plane
		wantID uint32
	}{
		{
			name:   "largest area wins",
			planes: []Plane{{ID: 1, FBID: 11}, {ID: 2, FBID: 10}},
			wantID: 10,
		},
		{
			name:   "exact tie keeps first enumerated",
			planes: []Plane{{ID: 1, FBID: 12}, {ID: 2, FBID: 10}},
			wantID: 12,
		},
		{
			name:   "unbound planes skipped",
			planes: []Plane{{ID: 1}, {ID: 2, FBID: 11}, {ID: 3}},
			wantID: 11,
		},
		{
			name:   "unreadable framebuffer skipped",
			planes: []Plane{{ID: 1, FBID: 99}, {ID: 2, FBID: 11}},
			wantID: 11,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var released []uint32
			lookup := func(id uint32) (*Framebuffer, error) {
				fb, ok := fbs[id]
				if !ok {
					return nil, errors.New("no such framebuffer")
				}
				return fb, nil
			}
			release := func(fb *Framebuffer) { released = append(released, fb.ID) }

			got, err := pickActive(tt.planes, lookup, release)
			if err != nil {
				t.Fatal(err)
			}
			if got.ID != tt.wantID {
				t.Fatalf("picked FB %d, want %d", got.ID, tt.wantID)
			}
			for _, id := range released {
				if id == tt.wantID {
					t.Fatalf("winner FB %d was released", id)
				}
			}
		})
	}
}

func TestPickActiveReleasesLosers(t *testing.T) {
	fbs := map[uint32]*Framebuffer{
		10: {ID: 10, Width: 100, Height: 100},
		11: {ID: 11, Width: 200, Height: 200},
		12: {ID: 12, Width: 50, Height: 50},
	}
	var released []uint32
	lookup := func(id uint32) (*Framebuffer, error) { return fbs[id], nil }
	release := func(fb *Framebuffer) { released = append(released, fb.ID) }

	got, err := pickActive([]Plane{{ID: 1, FBID: 10}, {ID: 2, FBID: 11}, {ID: 3, FBID: 12}}, lookup, release)
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != 11 {
		t.Fatalf("picked FB %d, want 11", got.ID)
	}
	if len(released) != 2 {
		t.Fatalf("released %v, want the two losing candidates", released)
	}
}

func TestPickActiveNoCandidates(t *testing.T) {
	lookup := func(id uint32) (*Framebuffer, error) { return nil, errors.New("unreachable") }
	release := func(fb *Framebuffer) { t.Fatal("release called with no candidates") }

	for _, planes := range [][]Plane{nil, {{ID: 1}, {ID: 2}}} {
		if _, err := pickActive(planes, lookup, release); !errors.Is(err, ErrNoFramebuffer) {
			t.Fatalf("planes %v: got %v, want ErrNoFramebuffer", planes, err)
		}
	}
}
