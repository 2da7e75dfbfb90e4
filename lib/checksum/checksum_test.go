// Copyright 2026 The Graft Authors
// SPDX-License-Identifier: Apache-2.0

package checksum

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestHashFileSHA1(t *testing.T) {
	content := []byte("hello, graft")
	path := filepath.Join(t.TempDir(), "a.txt")
	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	got, err := HashFile(KindSHA1, path)
	if err != nil {
		t.Fatalf("HashFile: %v", err)
	}
	if got.Kind != KindSHA1 {
		t.Errorf("Kind = %q, want sha1", got.Kind)
	}
	if len(got.Digest) != 20 {
		t.Errorf("digest length = %d, want 20", len(got.Digest))
	}

	want, err := HashBytes(KindSHA1, content)
	if err != nil {
		t.Fatalf("HashBytes: %v", err)
	}
	if got.String() != want.String() {
		t.Errorf("HashFile = %s, want %s", got, want)
	}
}

func TestHashFileBLAKE3(t *testing.T) {
	content := []byte("hello, graft")
	path := filepath.Join(t.TempDir(), "a.txt")
	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	got, err := HashFile(KindBLAKE3, path)
	if err != nil {
		t.Fatalf("HashFile: %v", err)
	}
	if got.Kind != KindBLAKE3 {
		t.Errorf("Kind = %q, want blake3", got.Kind)
	}
	if len(got.Digest) != 32 {
		t.Errorf("digest length = %d, want 32", len(got.Digest))
	}
}

func TestHashFileNonexistent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "does-not-exist")
	if _, err := HashFile(KindSHA1, path); err == nil {
		t.Fatal("HashFile should fail for nonexistent file")
	}
}

func TestHashFileEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty")
	if err := os.WriteFile(path, nil, 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	got, err := HashFile(KindSHA1, path)
	if err != nil {
		t.Fatalf("HashFile: %v", err)
	}
	want, _ := HashBytes(KindSHA1, nil)
	if got.String() != want.String() {
		t.Errorf("HashFile(empty) = %s, want %s", got, want)
	}
}

func TestHashFileDeterministic(t *testing.T) {
	content := []byte("determinism check")
	path := filepath.Join(t.TempDir(), "binary")
	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	first, err := HashFile(KindBLAKE3, path)
	if err != nil {
		t.Fatalf("first HashFile: %v", err)
	}

	second, err := HashFile(KindBLAKE3, path)
	if err != nil {
		t.Fatalf("second HashFile: %v", err)
	}

	if first.String() != second.String() {
		t.Errorf("HashFile not deterministic: %s != %s", first, second)
	}
}

func TestHashFileDifferentContent(t *testing.T) {
	directory := t.TempDir()

	path1 := filepath.Join(directory, "file1")
	if err := os.WriteFile(path1, []byte("content A"), 0644); err != nil {
		t.Fatalf("WriteFile file1: %v", err)
	}

	path2 := filepath.Join(directory, "file2")
	if err := os.WriteFile(path2, []byte("content B"), 0644); err != nil {
		t.Fatalf("WriteFile file2: %v", err)
	}

	hash1, err := HashFile(KindSHA1, path1)
	if err != nil {
		t.Fatalf("HashFile(file1): %v", err)
	}

	hash2, err := HashFile(KindSHA1, path2)
	if err != nil {
		t.Fatalf("HashFile(file2): %v", err)
	}

	if hash1.String() == hash2.String() {
		t.Error("different files should produce different hashes")
	}
}

func TestStringRoundtrip(t *testing.T) {
	original, err := HashBytes(KindSHA1, []byte("round trip me"))
	if err != nil {
		t.Fatalf("HashBytes: %v", err)
	}

	text := original.String()
	parsed, err := Parse(text)
	if err != nil {
		t.Fatalf("Parse(%q): %v", text, err)
	}

	if parsed.String() != text {
		t.Errorf("round trip mismatch: got %s, want %s", parsed, text)
	}
}

func TestParseInvalid(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"not hex", "sha1:zzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzz"},
		{"too short", "sha1:abcd"},
		{"no colon", "da39a3ee5e6b4b0d3255bfef95601890afd80709"},
		{"empty", ""},
		{"unknown kind", "md5:d41d8cd98f00b204e9800998ecf8427e"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if _, err := Parse(test.input); err == nil {
				t.Errorf("Parse(%q) should fail", test.input)
			}
		})
	}
}

func TestParseUnsupportedKind(t *testing.T) {
	_, err := Parse("md5:d41d8cd98f00b204e9800998ecf8427e")
	if !errors.Is(err, ErrUnsupportedKind) {
		t.Errorf("Parse unsupported kind: got %v, want ErrUnsupportedKind", err)
	}
}

func TestParseMalformed(t *testing.T) {
	_, err := Parse("sha1:not-hex-at-all!!")
	if !errors.Is(err, ErrMalformed) {
		t.Errorf("Parse bad hex: got %v, want ErrMalformed", err)
	}
}

func TestMarshalTextUnmarshalText(t *testing.T) {
	original, err := HashBytes(KindBLAKE3, []byte("marshal me"))
	if err != nil {
		t.Fatalf("HashBytes: %v", err)
	}

	text, err := original.MarshalText()
	if err != nil {
		t.Fatalf("MarshalText: %v", err)
	}

	var decoded Checksum
	if err := decoded.UnmarshalText(text); err != nil {
		t.Fatalf("UnmarshalText: %v", err)
	}

	if decoded.String() != original.String() {
		t.Errorf("UnmarshalText round trip: got %s, want %s", decoded, original)
	}
}

func TestIsZero(t *testing.T) {
	var zero Checksum
	if !zero.IsZero() {
		t.Error("zero-value Checksum should report IsZero")
	}

	nonzero, _ := HashBytes(KindSHA1, []byte("x"))
	if nonzero.IsZero() {
		t.Error("hashed Checksum should not report IsZero")
	}
}

func TestHashReaderReturnsLength(t *testing.T) {
	content := []byte("twelve bytes")
	sum, n, err := HashReader(KindSHA1, bytes.NewReader(content))
	if err != nil {
		t.Fatalf("HashReader: %v", err)
	}
	if n != int64(len(content)) {
		t.Errorf("n = %d, want %d", n, len(content))
	}
	want, _ := HashBytes(KindSHA1, content)
	if sum.String() != want.String() {
		t.Errorf("HashReader digest = %s, want %s", sum, want)
	}
}
