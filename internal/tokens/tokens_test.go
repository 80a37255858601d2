package tokens

import "testing"

func TestEstimator(t *testing.T) {
	count := Estimator(4)
	cases := map[string]int{
		"":           0,
		"a":          1,
		"abcd":       1,
		"abcde":      2,
		"Привет":     3, // 12 bytes
		"0123456789": 3,
	}
	for in, want := range cases {
		if got := count(in); got != want {
			t.Errorf("count(%q) = %d, want %d", in, got, want)
		}
	}
}

func TestEstimatorFallsBackOnInvalidRatio(t *testing.T) {
	if got := Estimator(0)("abcdefgh"); got != 2 {
		t.Errorf("Estimator(0) = %d, want 2", got)
	}
}

func TestEncodingCountsBPETokens(t *testing.T) {
	count, err := Encoding(DefaultEncoding)
	if err != nil {
		t.Fatalf("Encoding: %v", err)
	}
	cases := map[string]int{
		"":            0,
		"hello":       1,
		"hello world": 2,
	}
	for in, want := range cases {
		if got := count(in); got != want {
			t.Errorf("count(%q) = %d, want %d", in, got, want)
		}
	}
}

func TestUnknownEncoding(t *testing.T) {
	if _, err := Encoding("no_such_base"); err == nil {
		t.Error("expected an error for an unknown encoding")
	}
}

func TestDefaultUsesEncoding(t *testing.T) {
	count, err := Encoding(DefaultEncoding)
	if err != nil {
		t.Fatalf("Encoding: %v", err)
	}
	text := `{"id":1,"original":"Hello {{name}}, welcome back!"}`
	if got, want := Default(text), count(text); got != want {
		t.Errorf("Default = %d, want %d", got, want)
	}
}
