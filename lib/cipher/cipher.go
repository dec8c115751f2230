// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cipher

import (
	"bytes"
	"crypto/aes"
	gocipher "crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

const (
	magic      = "Salted__"
	saltSize   = 8
	keySize    = 16
	ivSize     = aes.BlockSize
	iterations = 10000
	lineWidth  = 64
)

// Encrypt seals plaintext under passphrase and returns the base64
// envelope, newline-terminated. The plaintext is encrypted exactly as
// given; callers that need OpenSSL's echo-style trailing newline append
// it themselves.
func Encrypt(plaintext, passphrase []byte) (string, error) {
	if len(passphrase) == 0 {
		return "", &Error{Op: "encrypt", Diagnostic: DiagnosticEmptyPassphrase}
	}
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return "", &Error{Op: "encrypt", Diagnostic: DiagnosticRandom, Err: err}
	}
	return encryptWithSalt(plaintext, passphrase, salt)
}

func encryptWithSalt(plaintext, passphrase, salt []byte) (string, error) {
	if len(passphrase) == 0 {
		return "", &Error{Op: "encrypt", Diagnostic: DiagnosticEmptyPassphrase}
	}
	key, iv := deriveKeyIV(passphrase, salt)
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", &Error{Op: "encrypt", Diagnostic: DiagnosticCipherInit, Err: err}
	}

	padded := pad(plaintext)
	sealed := make([]byte, len(magic)+saltSize+len(padded))
	copy(sealed, magic)
	copy(sealed[len(magic):], salt)
	gocipher.NewCBCEncrypter(block, iv).CryptBlocks(sealed[len(magic)+saltSize:], padded)

	return wrap(base64.StdEncoding.EncodeToString(sealed)), nil
}

// Decrypt opens an envelope produced by Encrypt or by OpenSSL.
// Whitespace anywhere in the envelope is ignored.
func Decrypt(envelope string, passphrase []byte) ([]byte, error) {
	if len(passphrase) == 0 {
		return nil, &Error{Op: "decrypt", Diagnostic: DiagnosticEmptyPassphrase}
	}
	sealed, err := base64.StdEncoding.DecodeString(stripSpace(envelope))
	if err != nil {
		return nil, &Error{Op: "decrypt", Diagnostic: DiagnosticReadInput, Err: err}
	}
	if len(sealed) < len(magic)+saltSize || string(sealed[:len(magic)]) != magic {
		return nil, &Error{Op: "decrypt", Diagnostic: DiagnosticBadMagic}
	}

	salt := sealed[len(magic) : len(magic)+saltSize]
	body := sealed[len(magic)+saltSize:]
	if len(body) == 0 || len(body)%aes.BlockSize != 0 {
		return nil, &Error{Op: "decrypt", Diagnostic: DiagnosticBadDecrypt}
	}

	key, iv := deriveKeyIV(passphrase, salt)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, &Error{Op: "decrypt", Diagnostic: DiagnosticCipherInit, Err: err}
	}
	plain := make([]byte, len(body))
	gocipher.NewCBCDecrypter(block, iv).CryptBlocks(plain, body)

	unpadded, ok := unpad(plain)
	if !ok {
		return nil, &Error{Op: "decrypt", Diagnostic: DiagnosticBadDecrypt}
	}
	return unpadded, nil
}

func deriveKeyIV(passphrase, salt []byte) (key, iv []byte) {
	material := pbkdf2.Key(passphrase, salt, iterations, keySize+ivSize, sha256.New)
	return material[:keySize], material[keySize:]
}

func pad(data []byte) []byte {
	padding := aes.BlockSize - len(data)%aes.BlockSize
	return append(bytes.Clone(data), bytes.Repeat([]byte{byte(padding)}, padding)...)
}

// unpad checks every padding byte, as OpenSSL's EVP_DecryptFinal does.
func unpad(data []byte) ([]byte, bool) {
	if len(data) == 0 {
		return nil, false
	}
	padding := int(data[len(data)-1])
	if padding == 0 || padding > aes.BlockSize || padding > len(data) {
		return nil, false
	}
	for _, value := range data[len(data)-padding:] {
		if int(value) != padding {
			return nil, false
		}
	}
	return data[:len(data)-padding], true
}

func wrap(encoded string) string {
	var builder strings.Builder
	builder.Grow(len(encoded) + len(encoded)/lineWidth + 1)
	for len(encoded) > lineWidth {
		builder.WriteString(encoded[:lineWidth])
		builder.WriteByte('\n')
		encoded = encoded[lineWidth:]
	}
	builder.WriteString(encoded)
	builder.WriteByte('\n')
	return builder.String()
}

func stripSpace(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\n', '\r', '\v', '\f':
			return -1
		}
		return r
	}, s)
}
