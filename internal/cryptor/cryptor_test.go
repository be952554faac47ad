package cryptor

import (
	"bytes"
	"encoding/hex"
	"testing"
)

func TestSHA256KnownAnswers(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"", "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"},
		{"abc", "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"},
	}
	for _, c := range cases {
		got := SHA256([]byte(c.in))
		if hex.EncodeToString(got[:]) != c.want {
			t.Errorf("SHA256(%q) = %x, want %s", c.in, got, c.want)
		}
	}
}

func TestBase64KnownAnswers(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"f", "Zg=="},
		{"fo", "Zm8="},
		{"foo", "Zm9v"},
	}
	for _, c := range cases {
		if got := Base64Encode([]byte(c.in)); got != c.want {
			t.Errorf("Base64Encode(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestBase64RoundTrip(t *testing.T) {
	inputs := [][]byte{
		nil,
		[]byte("a"),
		[]byte("ab"),
		[]byte("abc"),
		bytes.Repeat([]byte{0xff, 0x00, 0x7e}, 37),
	}
	for _, in := range inputs {
		enc := Base64Encode(in)
		dec, err := Base64Decode(enc)
		if err != nil {
			t.Fatalf("Base64Decode(%q): %v", enc, err)
		}
		if !bytes.Equal(dec, in) && !(len(dec) == 0 && len(in) == 0) {
			t.Errorf("round trip mismatch: in=%x out=%x", in, dec)
		}
	}
}

func TestBase64DecodeRejectsBadBytes(t *testing.T) {
	if _, err := Base64Decode("$g=="); err == nil {
		t.Errorf("expected error for invalid leading byte")
	}
}

func TestCryptoRoundTrip(t *testing.T) {
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i)
	}
	plains := [][]byte{
		nil,
		[]byte("hello"),
		bytes.Repeat([]byte("x"), 16),
		bytes.Repeat([]byte("y"), 33),
	}
	for _, p := range plains {
		ct, err := Encrypt(p, key)
		if err != nil {
			t.Fatalf("Encrypt: %v", err)
		}
		got, err := Decrypt(ct, key)
		if err != nil {
			t.Fatalf("Decrypt: %v", err)
		}
		if !bytes.Equal(got, p) && !(len(got) == 0 && len(p) == 0) {
			t.Errorf("round trip mismatch: in=%x out=%x", p, got)
		}
	}
}

func TestDecryptRejectsBadLength(t *testing.T) {
	key := make([]byte, 32)
	if _, err := Decrypt(make([]byte, 20), key); err == nil {
		t.Errorf("expected error for non-block-aligned ciphertext")
	}
	if _, err := Decrypt(make([]byte, 10), key); err == nil {
		t.Errorf("expected error for ciphertext shorter than IV")
	}
}

func TestDecryptRejectsBadKeyLength(t *testing.T) {
	if _, err := Decrypt(make([]byte, 32), make([]byte, 16)); err != ErrBadKeyLength {
		t.Errorf("got %v, want ErrBadKeyLength", err)
	}
}
