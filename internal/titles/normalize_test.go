package titles

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "Albert_Einstein", want: "Albert Einstein"},
		{in: "  Philosophy  ", want: "Philosophy"},
		{in: "https://en.wikipedia.org/wiki/Albert_Einstein", want: "Albert Einstein"},
		{in: "https://en.m.wikipedia.org/wiki/Mercury_%28planet%29", want: "Mercury (planet)"},
		{in: "https://de.wikipedia.org/w/index.php?title=Hund_(Begriffskl%C3%A4rung)", want: "Hund (Begriffsklärung)"},
		{in: "https://example.com/wiki/Not_Wikipedia", want: "https://example.com/wiki/Not Wikipedia"},
		{in: "", want: ""},
		{in: "   ", want: ""},
	}
	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestIsDisambiguation(t *testing.T) {
	tests := []struct {
		title string
		want  bool
	}{
		{title: "Mercury (disambiguation)", want: true},
		{title: "Mercury (Disambiguation)", want: true},
		{title: "Mercury (planet)", want: false},
		{title: "Disambiguation", want: false},
	}
	for _, tt := range tests {
		if got := IsDisambiguation(tt.title); got != tt.want {
			t.Errorf("IsDisambiguation(%q) = %v, want %v", tt.title, got, tt.want)
		}
	}
}

func TestStripQualifiers(t *testing.T) {
	tests := []struct {
		title     string
		want      string
		qualified bool
	}{
		{title: "Mercury (planet)", want: "Mercury", qualified: true},
		{title: "Queen (band) (album)", want: "Queen", qualified: true},
		{title: "Paris", want: "Paris", qualified: false},
	}
	for _, tt := range tests {
		if got := StripQualifiers(tt.title); got != tt.want {
			t.Errorf("StripQualifiers(%q) = %q, want %q", tt.title, got, tt.want)
		}
		if got := HasQualifier(tt.title); got != tt.qualified {
			t.Errorf("HasQualifier(%q) = %v, want %v", tt.title, got, tt.qualified)
		}
	}
}

func TestEqual(t *testing.T) {
	if !Equal("Dog", "dog") {
		t.Error("Equal should ignore case")
	}
	if Equal("Dog", "Dogs") {
		t.Error("Equal(Dog, Dogs) = true")
	}
}
