package mididarwin

import (
	"errors"
	"testing"

	"github.com/leandrodaf/nanoctl/sdk/contracts"
)

type fakeConnection struct{ disconnects int }

func (c *fakeConnection) Disconnect() { c.disconnects++ }

func TestInPort_CloseReleasesEndpoint(t *testing.T) {
	conn := &fakeConnection{}
	disposed := 0
	p := newInPort("nanoctl virtual input")
	p.conn = conn
	p.dispose = func() { disposed++ }

	var got [][]byte
	if _, err := p.Listen(func(msg []byte, _ float64) { got = append(got, msg) }); err != nil {
		t.Fatal(err)
	}
	p.deliver([]byte{0xB0, 0x2A, 0x7F, 0xB0, 0x2A, 0x00})
	if len(got) != 2 {
		t.Fatalf("delivered %d messages, want 2", len(got))
	}

	for i := 0; i < 2; i++ {
		if err := p.Close(); err != nil {
			t.Fatal(err)
		}
	}
	if conn.disconnects != 1 || disposed != 1 {
		t.Fatalf("disconnects=%d disposed=%d, want 1 each", conn.disconnects, disposed)
	}

	p.deliver([]byte{0xB0, 0x2A, 0x7F})
	if len(got) != 2 {
		t.Fatal("delivered after Close")
	}
	if _, err := p.Listen(func([]byte, float64) {}); !errors.Is(err, contracts.ErrPortClosed) {
		t.Fatalf("Listen after Close: %v", err)
	}
}
