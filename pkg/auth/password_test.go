package auth

import "testing"

func TestDigestPasswordKnownVector(t *testing.T) {
	// sha1("toto1234!")
	const want = "89cad29e3ebc1035b29b1478a8e70854f25fa2b2"
	if got := DigestPassword("toto1234!"); got != want {
		t.Fatalf("digest = %s, want %s", got, want)
	}
}

func TestCheckPassword(t *testing.T) {
	digest := DigestPassword("s3cret")
	if !CheckPassword("s3cret", digest) {
		t.Fatalf("expected password check to pass")
	}
	if CheckPassword("wrong", digest) {
		t.Fatalf("expected password check to fail")
	}
	if CheckPassword("", "") {
		t.Fatalf("empty digest must never match")
	}
}
