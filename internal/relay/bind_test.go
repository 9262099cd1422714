package relay_test

import (
	"errors"
	"testing"

	"github.com/Tyrowin/gorelay/internal/relay"
)

func TestBindReportsAddressInUse(t *testing.T) {
	first, err := relay.Bind("127.0.0.1:0")
	if err != nil {
		t.Fatalf("First bind failed: %v", err)
	}
	defer first.Close()

	second, err := relay.Bind(first.Addr().String())
	if !errors.Is(err, relay.ErrAddressInUse) {
		t.Fatalf("Expected ErrAddressInUse, got %v", err)
	}
	if second != nil {
		t.Error("Second bind returned a listener")
	}
}

func TestBindOtherFailuresAreNotAddressInUse(t *testing.T) {
	_, err := relay.Bind("127.0.0.1:not-a-port")
	if err == nil {
		t.Fatal("Expected error for invalid address")
	}
	if errors.Is(err, relay.ErrAddressInUse) {
		t.Errorf("Invalid address reported as address in use: %v", err)
	}
}
