package automation

import "testing"

func TestProcessCommand(t *testing.T) {
	tests := []struct {
		name  string
		draft string
		want  string
	}{
		{"fix", "@fix hello world", "Hello world."},
		{"fix idempotent", "@fix Hello world.", "Hello world."},
		{"emoji keyword", "@emoji thanks a lot", "thanks a lot 🙏"},
		{"emoji default", "@emoji see you soon", "see you soon 👍"},
		{"short passthrough", "@short one two three", "one two three"},
		{"polite", "@polite send the report", "Please send the report. Thank you."},
		{"polite already polite", "@polite Please wait, thank you.", "Please wait, thank you."},
		{"unknown tag", "@shout hello", "@shout hello"},
		{"no tag", "hello world", "hello world"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ProcessCommand(tt.draft); got != tt.want {
				t.Fatalf("ProcessCommand(%q) = %q, want %q", tt.draft, got, tt.want)
			}
		})
	}
}

func TestShortenTruncatesAtTenWords(t *testing.T) {
	eleven := "w1 w2 w3 w4 w5 w6 w7 w8 w9 w10 w11"
	want := "w1 w2 w3 w4 w5 w6 w7 w8 w9 w10..."
	if got := Shorten(eleven); got != want {
		t.Fatalf("Shorten(11 words) = %q, want %q", got, want)
	}

	ten := "w1 w2 w3 w4 w5 w6 w7 w8 w9 w10"
	if got := Shorten(ten); got != ten {
		t.Fatalf("Shorten(10 words) = %q, want unchanged", got)
	}
}

func TestFixGrammarIdempotent(t *testing.T) {
	once := FixGrammar("hello world")
	if once != "Hello world." {
		t.Fatalf("FixGrammar = %q, want %q", once, "Hello world.")
	}
	if twice := FixGrammar(once); twice != once {
		t.Fatalf("FixGrammar applied twice = %q, want %q", twice, once)
	}
}
