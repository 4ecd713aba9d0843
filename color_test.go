package livecode

import (
	"math"
	"testing"
)

func TestRGBA_Pack(t *testing.T) {
	tests := []struct {
		name string
		c    RGBA
		want [4]uint8
	}{
		{"opaque black", Black, [4]uint8{0, 0, 0, 255}},
		{"opaque white", White, [4]uint8{255, 255, 255, 255}},
		{"transparent", Transparent, [4]uint8{0, 0, 0, 0}},
		{"half gray rounds", RGB(0.5, 0.5, 0.5), [4]uint8{128, 128, 128, 255}},
		{"clamps above one", RGBA{R: 2, G: 1.5, B: 1, A: 9}, [4]uint8{255, 255, 255, 255}},
		{"clamps below zero", RGBA{R: -1, G: -0.1, B: 0, A: -5}, [4]uint8{0, 0, 0, 0}},
		{"nan is zero", RGBA{R: math.NaN(), G: 1, B: 0, A: 1}, [4]uint8{0, 255, 0, 255}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.c.Pack(); got != tt.want {
				t.Errorf("Pack() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestUnpack_InvertsPack(t *testing.T) {
	for v := 0; v < 256; v++ {
		p := [4]uint8{uint8(v), uint8(255 - v), uint8(v / 2), 255}
		if got := Unpack(p).Pack(); got != p {
			t.Fatalf("Unpack(%v).Pack() = %v", p, got)
		}
	}
}

func TestHex(t *testing.T) {
	tests := []struct {
		in   string
		want [4]uint8
	}{
		{"#fff", [4]uint8{255, 255, 255, 255}},
		{"f00a", [4]uint8{255, 0, 0, 170}},
		{"#336699", [4]uint8{0x33, 0x66, 0x99, 255}},
		{"33669980", [4]uint8{0x33, 0x66, 0x99, 0x80}},
		{"F80", [4]uint8{0xff, 0x88, 0x00, 255}},
		{"nope!", [4]uint8{0, 0, 0, 255}},
		{"#12345", [4]uint8{0, 0, 0, 255}},
		{"", [4]uint8{0, 0, 0, 255}},
	}
	for _, tt := range tests {
		if got := Hex(tt.in).Pack(); got != tt.want {
			t.Errorf("Hex(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestHSL(t *testing.T) {
	tests := []struct {
		h, s, l float64
		want    RGBA
	}{
		{0, 1, 0.5, Red},
		{120, 1, 0.5, Green},
		{240, 1, 0.5, Blue},
		{-120, 1, 0.5, Blue},
		{0, 0, 1, White},
		{60, 1, 0.5, RGB(1, 1, 0)},
		{300, 1, 0.25, RGB(0.5, 0, 0.5)},
		{720, 1, 0.5, Red},
	}
	for _, tt := range tests {
		if got := HSL(tt.h, tt.s, tt.l).Pack(); got != tt.want.Pack() {
			t.Errorf("HSL(%v, %v, %v) = %v, want %v", tt.h, tt.s, tt.l, got, tt.want.Pack())
		}
	}
}

func TestRGBA_Lerp(t *testing.T) {
	got := Black.Lerp(White, 0.25)
	want := RGB(0.25, 0.25, 0.25)
	if got != want {
		t.Errorf("Lerp = %v, want %v", got, want)
	}
}
