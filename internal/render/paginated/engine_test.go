package paginated

import "testing"

func TestTextFromContentStream(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "Tj operator",
			in:   "BT\n/F1 12 Tf\n(Hello World) Tj\nET\n",
			want: "Hello World",
		},
		{
			name: "TJ array operator",
			in:   "[(Hel) -20 (lo) -100 ( World)] TJ\n",
			want: "Hello World",
		},
		{
			name: "quote operator starts new line",
			in:   "(first) Tj\n(second) '\n",
			want: "first\nsecond",
		},
		{
			name: "positioning adds separation",
			in:   "(one) Tj\n1 0 0 1 72 700 Td\n(two) Tj\n",
			want: "one two",
		},
		{
			name: "no text operators",
			in:   "q\n1 0 0 1 0 0 cm\nQ\n",
			want: "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := textFromContentStream([]byte(tt.in)); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDecodePDFString(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{`plain`, "plain"},
		{`a\nb`, "a\nb"},
		{`a\tb`, "a\tb"},
		{`paren \( inside \)`, "paren ( inside )"},
		{`back\\slash`, `back\slash`},
		{`octal\040space`, "octal space"},
	}
	for _, tt := range tests {
		if got := decodePDFString([]byte(tt.in)); got != tt.want {
			t.Errorf("decodePDFString(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNormalizeText(t *testing.T) {
	in := "  several   spaces\t\there \n\nand lines  "
	want := "several spaces here \n\nand lines"
	if got := normalizeText(in); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}
