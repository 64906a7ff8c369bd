package loopback

import (
	"bytes"
	"errors"
	"testing"

	"github.com/leandrodaf/nanoctl/sdk/contracts"
)

func TestBackend_EchoToMatchingInput(t *testing.T) {
	b := New(WithPorts([]string{"nanoKONTROL2"}, []string{"nanoKONTROL2"}), WithEcho())

	in, err := b.OpenIn(0)
	if err != nil {
		t.Fatal(err)
	}
	out, err := b.OpenOut(0)
	if err != nil {
		t.Fatal(err)
	}

	var got [][]byte
	stop, err := in.Listen(func(data []byte, _ float64) {
		got = append(got, data)
	})
	if err != nil {
		t.Fatal(err)
	}

	if err := out.Send([]byte{0xB0, 0x29, 0x7F}); err != nil {
		t.Fatal(err)
	}
	stop()
	if err := out.Send([]byte{0xB0, 0x29, 0x00}); err != nil {
		t.Fatal(err)
	}

	if len(got) != 1 || !bytes.Equal(got[0], []byte{0xB0, 0x29, 0x7F}) {
		t.Fatalf("echoed %v", got)
	}
	if n := len(b.Outputs()[0].Sent()); n != 2 {
		t.Fatalf("recorded %d sends", n)
	}
}

func TestBackend_Errors(t *testing.T) {
	b := New(WithoutVirtualPorts())

	if _, err := b.OpenIn(0); !errors.Is(err, contracts.ErrIndexOutOfRange) {
		t.Fatalf("OpenIn err=%v", err)
	}
	if _, err := b.OpenVirtualOut("x"); !errors.Is(err, contracts.ErrVirtualPortsUnsupported) {
		t.Fatalf("OpenVirtualOut err=%v", err)
	}

	b = New()
	out, err := b.OpenVirtualOut("virtual")
	if err != nil {
		t.Fatal(err)
	}
	boom := errors.New("boom")
	b.Outputs()[0].FailAfter(1, boom)
	if err := out.Send([]byte{0xB0, 0, 0}); err != nil {
		t.Fatal(err)
	}
	if err := out.Send([]byte{0xB0, 0, 0}); !errors.Is(err, boom) {
		t.Fatalf("second send err=%v", err)
	}

	if err := b.Close(); err != nil {
		t.Fatal(err)
	}
	if err := out.Send([]byte{0xB0, 0, 0}); !errors.Is(err, contracts.ErrPortClosed) {
		t.Fatalf("send after close err=%v", err)
	}
}
