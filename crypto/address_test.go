package crypto

import "testing"

func TestAddressRoundTrip(t *testing.T) {
	addr := DeriveAddress(AccountPrefix, "account", []byte("alice"))
	decoded, err := DecodeAddress(addr.String())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded != addr {
		t.Fatalf("expected %s, got %s", addr, decoded)
	}
	if decoded.Prefix() != AccountPrefix {
		t.Fatalf("unexpected prefix %q", decoded.Prefix())
	}
}

func TestDeriveAddressDeterministic(t *testing.T) {
	a := DeriveAddress(AccountPrefix, "account", []byte("bob"))
	b := DeriveAddress(AccountPrefix, "account", []byte("bob"))
	c := DeriveAddress(AccountPrefix, "account", []byte("carol"))
	if a != b {
		t.Fatalf("derivation not deterministic")
	}
	if a == c {
		t.Fatalf("distinct seeds collided")
	}
}

func TestPseudoAccountSeparatesKinds(t *testing.T) {
	var id [32]byte
	id[0] = 7
	broker := PseudoAccount("broker", id)
	vault := PseudoAccount("vault", id)
	if broker == vault {
		t.Fatalf("broker and vault pseudo-accounts must differ")
	}
	if broker.Prefix() != PseudoPrefix {
		t.Fatalf("unexpected prefix %q", broker.Prefix())
	}
}

func TestNewAddressRejectsShortPayload(t *testing.T) {
	if _, err := NewAddress(AccountPrefix, []byte{1, 2, 3}); err == nil {
		t.Fatalf("expected length error")
	}
}

func TestUnmarshalText(t *testing.T) {
	want := DeriveAddress(AccountPrefix, "account", []byte("dave"))
	var got Address
	if err := got.UnmarshalText([]byte(want.String())); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got != want {
		t.Fatalf("expected %s, got %s", want, got)
	}
	if err := got.UnmarshalText(nil); err != nil || !got.IsZero() {
		t.Fatalf("empty text should yield zero address")
	}
}
