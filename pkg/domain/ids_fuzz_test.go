//go:build go1.18

package domain

import (
	"testing"
	"unicode/utf8"
)

// FuzzParseAccountID checks that parsing never panics and that accepted
// accounts are canonical and round-trip.
func FuzzParseAccountID(f *testing.F) {
	f.Add("")
	f.Add("0x627306090abab3a6e1400e9345bc60c78a8bef57")
	f.Add("0x0000000000000000000000000000000000000000")
	f.Add("0X627306090ABAB3A6E1400E9345BC60C78A8BEF57")
	f.Add(string([]byte{0x00, 0x01, 0x02}))

	f.Fuzz(func(t *testing.T, input string) {
		account, err := ParseAccountID(input)
		if err != nil {
			return
		}
		again, err := ParseAccountID(account.String())
		if err != nil {
			t.Fatalf("canonical account failed to re-parse: %v", err)
		}
		if again != account {
			t.Fatal("round-trip changed account")
		}
		if !utf8.ValidString(input) {
			t.Fatal("non-UTF8 input was accepted")
		}
	})
}

// FuzzParseHash checks the same invariants for content hashes.
func FuzzParseHash(f *testing.F) {
	f.Add("0xca02b2202ffaacbd499438ef6d594a48f7a7631b60405ec8f30a0d7c096d54d5")
	f.Add("0x")
	f.Add("ca02")

	f.Fuzz(func(t *testing.T, input string) {
		h, err := ParseHash(input)
		if err != nil {
			return
		}
		again, err := ParseHash(h.String())
		if err != nil || again != h {
			t.Fatal("hash failed to round-trip")
		}
	})
}
