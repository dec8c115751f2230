// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cipher

import (
	"bytes"
	"encoding/base64"
	"errors"
	"strings"
	"testing"
)

// Envelopes produced by OpenSSL 3.0:
//
//	printf '%s' "$PLAINTEXT" | openssl enc -aes-128-cbc -base64 -pass pass:$KEY -pbkdf2
var opensslVectors = []struct {
	name       string
	passphrase string
	plaintext  string
	envelope   string
}{
	{
		name:       "short line",
		passphrase: "s3cret",
		plaintext:  "hello world\n",
		envelope:   "U2FsdGVkX18Zo/pAj53TT3goRMg1pP6WBtI4LhuAy6c=\n",
	},
	{
		name:       "json object",
		passphrase: "s3cret",
		plaintext:  "{\"id\": \"alice\"}\n",
		envelope:   "U2FsdGVkX19Lh53OrcvfLVLt1WHwQiP4VxSVBefAOQNccYLjpl3/AbgF2LN5wkD8\n",
	},
	{
		name:       "wrapped at 64 columns",
		passphrase: "long-passphrase",
		plaintext:  strings.Repeat("The quick brown fox jumps over the lazy dog. ", 3) + "\n",
		envelope: "U2FsdGVkX18B3LEdys6ueG/bSzYNwHVhsGovTuDnNtDU0GWFhvwYlowtyv55mvoP\n" +
			"lwBFz8ZIzQJVaj7iW5tzHPyy9lAdH6RLsGuA+x0Op0d2W9QwfuedDZFXyd+rU0gc\n" +
			"HhxVt+2pSC39h6t3Zj1u404IwAOvf1EO2tNpZWgSG9aa1CIMxMgUnovi3OF8sRQR\n" +
			"4xhM0TUNLHO7GnkCNp8TUg==\n",
	},
	{
		name:       "session key",
		passphrase: "s3cret",
		plaintext:  "session-key-42\n",
		envelope:   "U2FsdGVkX19gZADtdm/ZRDBl3mGwpQRov28WZkX3ArI=\n",
	},
}

func TestDecryptOpenSSLVectors(t *testing.T) {
	for _, vector := range opensslVectors {
		t.Run(vector.name, func(t *testing.T) {
			got, err := Decrypt(vector.envelope, []byte(vector.passphrase))
			if err != nil {
				t.Fatalf("Decrypt: %v", err)
			}
			if string(got) != vector.plaintext {
				t.Errorf("Decrypt = %q, want %q", got, vector.plaintext)
			}
		})
	}
}

func TestEncryptMatchesOpenSSLWithSameSalt(t *testing.T) {
	for _, vector := range opensslVectors {
		t.Run(vector.name, func(t *testing.T) {
			sealed, err := base64.StdEncoding.DecodeString(stripSpace(vector.envelope))
			if err != nil {
				t.Fatalf("decoding vector: %v", err)
			}
			salt := sealed[len(magic) : len(magic)+saltSize]

			got, err := encryptWithSalt([]byte(vector.plaintext), []byte(vector.passphrase), salt)
			if err != nil {
				t.Fatalf("encryptWithSalt: %v", err)
			}
			if got != vector.envelope {
				t.Errorf("envelope mismatch\n got: %q\nwant: %q", got, vector.envelope)
			}
		})
	}
}

func TestDecryptIgnoresWhitespace(t *testing.T) {
	envelope := "  U2FsdGVkX18Zo/pAj53T\r\nT3goRMg1pP6WBtI4\tLhuAy6c=  \n\n"
	got, err := Decrypt(envelope, []byte("s3cret"))
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if string(got) != "hello world\n" {
		t.Errorf("Decrypt = %q, want %q", got, "hello world\n")
	}
}

func TestRoundTrip(t *testing.T) {
	passphrases := [][]byte{[]byte("k"), []byte("s3cret"), []byte("session-key-42\n"), bytes.Repeat([]byte{0xff}, 100)}
	for _, passphrase := range passphrases {
		for size := 0; size <= 70; size++ {
			plaintext := make([]byte, size)
			for index := range plaintext {
				plaintext[index] = byte(index*7 + size)
			}
			envelope, err := Encrypt(plaintext, passphrase)
			if err != nil {
				t.Fatalf("Encrypt(size=%d): %v", size, err)
			}
			got, err := Decrypt(envelope, passphrase)
			if err != nil {
				t.Fatalf("Decrypt(size=%d): %v", size, err)
			}
			if !bytes.Equal(got, plaintext) {
				t.Fatalf("round trip size=%d passphrase=%q: got %x, want %x", size, passphrase, got, plaintext)
			}
		}
	}
}

func TestEncryptUsesFreshSalt(t *testing.T) {
	first, err := Encrypt([]byte("same"), []byte("key"))
	if err != nil {
		t.Fatal(err)
	}
	second, err := Encrypt([]byte("same"), []byte("key"))
	if err != nil {
		t.Fatal(err)
	}
	if first == second {
		t.Error("two encryptions of the same plaintext produced identical envelopes")
	}
}

func TestEnvelopeShape(t *testing.T) {
	envelope, err := Encrypt(bytes.Repeat([]byte("a"), 200), []byte("key"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(envelope, "\n") {
		t.Error("envelope is not newline-terminated")
	}
	if !strings.HasPrefix(envelope, "U2FsdGVkX1") {
		t.Errorf("envelope %q does not start with the encoded Salted__ header", envelope[:12])
	}
	for _, line := range strings.Split(strings.TrimSuffix(envelope, "\n"), "\n") {
		if len(line) > lineWidth {
			t.Errorf("line of %d columns exceeds %d", len(line), lineWidth)
		}
	}
}

func TestDecryptFailures(t *testing.T) {
	notSalted := base64.StdEncoding.EncodeToString([]byte("NotSalted-plus-sixteen-bytes...."))
	truncated := base64.StdEncoding.EncodeToString([]byte("Salted__12345678abc"))

	tests := []struct {
		name       string
		envelope   string
		passphrase string
		diagnostic string
	}{
		{"wrong passphrase", opensslVectors[3].envelope, "wrong", DiagnosticBadDecrypt},
		{"not base64", "%%%not-base64%%%", "s3cret", DiagnosticReadInput},
		{"missing header", notSalted, "s3cret", DiagnosticBadMagic},
		{"too short for header", base64.StdEncoding.EncodeToString([]byte("Salted")), "s3cret", DiagnosticBadMagic},
		{"partial block", truncated, "s3cret", DiagnosticBadDecrypt},
		{"header only", base64.StdEncoding.EncodeToString([]byte("Salted__12345678")), "s3cret", DiagnosticBadDecrypt},
		{"empty passphrase", opensslVectors[0].envelope, "", DiagnosticEmptyPassphrase},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := Decrypt(test.envelope, []byte(test.passphrase))
			var cipherError *Error
			if !errors.As(err, &cipherError) {
				t.Fatalf("Decrypt error = %v, want *cipher.Error", err)
			}
			if cipherError.Op != "decrypt" {
				t.Errorf("Op = %q, want decrypt", cipherError.Op)
			}
			if cipherError.Diagnostic != test.diagnostic {
				t.Errorf("Diagnostic = %q, want %q", cipherError.Diagnostic, test.diagnostic)
			}
		})
	}
}

func TestEncryptEmptyPassphrase(t *testing.T) {
	_, err := Encrypt([]byte("x"), nil)
	var cipherError *Error
	if !errors.As(err, &cipherError) || cipherError.Diagnostic != DiagnosticEmptyPassphrase {
		t.Fatalf("Encrypt with empty passphrase: err = %v", err)
	}
}

func TestUnpadRejectsInconsistentPadding(t *testing.T) {
	block := bytes.Repeat([]byte{'a'}, 16)
	block[15] = 3
	block[14] = 3
	block[13] = 2
	if _, ok := unpad(block); ok {
		t.Error("unpad accepted inconsistent padding bytes")
	}
	block[13] = 3
	got, ok := unpad(block)
	if !ok || len(got) != 13 {
		t.Errorf("unpad = (%d bytes, %v), want (13, true)", len(got), ok)
	}
}
