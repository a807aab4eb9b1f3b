package domain

import "testing"

func TestOrderedName(t *testing.T) {
	cases := []struct {
		name     string
		desired  string
		existing []string
		want     string
	}{
		{"free name untouched", "scores", nil, "scores"},
		{"first suffix", "scores", []string{"scores"}, "scores1"},
		{"skips taken suffixes", "scores", []string{"scores", "scores1", "scores2"}, "scores3"},
		{"fills gaps lowest first", "scores", []string{"scores", "scores2"}, "scores1"},
		{"suffix only when exact match exists", "scores", []string{"scores1"}, "scores"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := OrderedName(tc.desired, tc.existing); got != tc.want {
				t.Fatalf("OrderedName(%q, %v) = %q, want %q", tc.desired, tc.existing, got, tc.want)
			}
		})
	}
}

func TestOrderedNameNumber(t *testing.T) {
	if got := OrderedNameNumber("jump", []string{"jump", "jump1"}); got != 2 {
		t.Fatalf("expected suffix 2, got %d", got)
	}
	if got := OrderedNameNumber("jump", nil); got != 1 {
		t.Fatalf("expected suffix 1, got %d", got)
	}
}

func TestTruncateName(t *testing.T) {
	got, truncated := TruncateName("a_name_over_ten_chars", MaxNameLength)
	if !truncated {
		t.Fatal("expected truncation advisory")
	}
	if got != "a_name_ove" {
		t.Fatalf("unexpected prefix %q", got)
	}
	if len([]rune(got)) != MaxNameLength {
		t.Fatalf("expected %d runes, got %d", MaxNameLength, len([]rune(got)))
	}

	got, truncated = TruncateName("short", MaxNameLength)
	if truncated || got != "short" {
		t.Fatalf("short name should pass through, got %q (truncated=%v)", got, truncated)
	}

	// multibyte names count runes, not bytes
	got, truncated = TruncateName("가나다라마바사아자차카", MaxNameLength)
	if !truncated || len([]rune(got)) != MaxNameLength {
		t.Fatalf("rune truncation failed: %q", got)
	}
}

func TestValidateNameLength(t *testing.T) {
	if err := ValidateNameLength("exactlyten"); err != nil {
		t.Fatalf("ten runes should validate: %v", err)
	}
	err := ValidateNameLength("elevenchars")
	if err == nil {
		t.Fatal("expected NameTooLongError")
	}
	if _, ok := err.(NameTooLongError); !ok {
		t.Fatalf("expected NameTooLongError, got %T", err)
	}
}
