package memstream

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/e1z0/cryptvaultplayer/internal/cryptor"
)

func writeEncryptedFixture(t *testing.T, plain []byte, password string) string {
	t.Helper()
	key := cryptor.SHA256([]byte(password))
	ct, err := cryptor.Encrypt(plain, key[:])
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	dir := t.TempDir()
	path := filepath.Join(dir, "fixture.bin")
	if err := os.WriteFile(path, ct, 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestOpenAndSize(t *testing.T) {
	plain := bytes.Repeat([]byte("hello-world-"), 1024*64) // ~768 KiB, well under 1 MiB
	path := writeEncryptedFixture(t, plain, "pw")

	s, err := Open(path, []byte("pw"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if !s.Valid() {
		t.Fatalf("expected valid stream")
	}
	if s.Size() != int64(len(plain)) {
		t.Errorf("Size() = %d, want %d", s.Size(), len(plain))
	}
}

func TestOpenWrongPasswordInvalid(t *testing.T) {
	path := writeEncryptedFixture(t, []byte("some plaintext bytes"), "pw")
	s, err := Open(path, []byte("wrong"))
	if err == nil && s.Valid() {
		t.Fatalf("expected invalid stream for wrong password")
	}
}

func TestSeekAndTell(t *testing.T) {
	path := writeEncryptedFixture(t, bytes.Repeat([]byte{1, 2, 3, 4}, 100), "pw")
	s, err := Open(path, []byte("pw"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if !s.SeekAbs(10) {
		t.Fatalf("SeekAbs(10) failed")
	}
	if s.Tell() != 10 {
		t.Errorf("Tell() = %d, want 10", s.Tell())
	}
}

func TestReadPastEndFailsWithoutMutatingState(t *testing.T) {
	plain := bytes.Repeat([]byte{0xAB}, 32)
	path := writeEncryptedFixture(t, plain, "pw")
	s, err := Open(path, []byte("pw"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	s.SeekAbs(20)
	dst := make([]byte, 32)
	if s.Read(dst, 32) {
		t.Fatalf("expected Read past end to fail")
	}
	if s.Tell() != 20 {
		t.Errorf("Tell() after failed read = %d, want unchanged 20", s.Tell())
	}
	if s.GCount() != 0 {
		t.Errorf("GCount() after failed read = %d, want 0", s.GCount())
	}
}

func TestIgnoreClampsToSize(t *testing.T) {
	path := writeEncryptedFixture(t, bytes.Repeat([]byte{0x01}, 16), "pw")
	s, err := Open(path, []byte("pw"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	s.Ignore(1000)
	if s.Tell() != s.Size() {
		t.Errorf("Tell() = %d, want clamped to size %d", s.Tell(), s.Size())
	}
}
