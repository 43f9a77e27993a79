package services

import (
	"strings"
	"testing"
)

func TestCleanText(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "whitespace runs collapsed",
			input: "hello   world\n\n\tagain",
			want:  "hello world again",
		},
		{
			name:  "control characters removed",
			input: "abc\x00\x08def",
			want:  "abcdef",
		},
		{
			name:  "surrounding whitespace trimmed",
			input: "  padded  ",
			want:  "padded",
		},
		{
			name:  "empty input",
			input: "",
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CleanText(tt.input); got != tt.want {
				t.Errorf("CleanText(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestCleanTextTruncates(t *testing.T) {
	long := strings.Repeat("a", MaxSourceTextLen+500)
	got := CleanText(long)
	if len(got) != MaxSourceTextLen {
		t.Errorf("len = %d, want %d", len(got), MaxSourceTextLen)
	}
}

func TestExtractTextMissingFile(t *testing.T) {
	svc := NewExtractService()
	if _, err := svc.ExtractText("/nonexistent/file.pdf"); err == nil {
		t.Error("expected error for missing file")
	}
}
