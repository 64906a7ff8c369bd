package sequencer

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/leandrodaf/nanoctl/internal/codec"
	"github.com/leandrodaf/nanoctl/internal/logger"
	"github.com/leandrodaf/nanoctl/internal/midi/loopback"
	"github.com/leandrodaf/nanoctl/sdk/contracts"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newTestSequencer(t *testing.T) (*Sequencer, *loopback.OutPort) {
	t.Helper()
	b := loopback.New()
	port, err := b.OpenVirtualOut("test out")
	if err != nil {
		t.Fatal(err)
	}
	core, _ := observer.New(zapcore.InfoLevel)
	return New(port, logger.NewZapLoggerFromCore(core)), b.Outputs()[0]
}

func testPattern(delay time.Duration) contracts.Pattern {
	p := contracts.DefaultPattern()
	p.Delay = delay
	return p
}

func TestRunPattern_OrderAndSpacing(t *testing.T) {
	s, out := newTestSequencer(t)
	const delay = 3 * time.Millisecond

	if err := s.RunPattern(context.Background(), testPattern(delay)); err != nil {
		t.Fatal(err)
	}

	sent := out.Sent()
	if len(sent) != 12 {
		t.Fatalf("sent %d frames, want 12", len(sent))
	}
	for i, msg := range sent {
		cc := byte(0x29 + i/2)
		value := byte(0x7F)
		if i%2 == 1 {
			value = 0x00
		}
		if want := []byte{0xB0, cc, value}; !bytes.Equal(msg.Data, want) {
			t.Fatalf("frame %d = % X, want % X", i, msg.Data, want)
		}
		if i > 0 {
			if gap := msg.At.Sub(sent[i-1].At); gap < delay {
				t.Fatalf("frame %d sent %v after previous, want >= %v", i, gap, delay)
			}
		}
	}
	if s.Sent() != 12 {
		t.Fatalf("Sent()=%d", s.Sent())
	}
}

func TestRunPattern_ChannelSweep(t *testing.T) {
	s, out := newTestSequencer(t)
	p := testPattern(0)
	p.Low, p.High = 0x40, 0x42
	p.ChannelLow, p.ChannelHigh = 0, 2

	if err := s.RunPattern(context.Background(), p); err != nil {
		t.Fatal(err)
	}
	want := [][]byte{
		{0xB0, 0x40, 0x7F}, {0xB0, 0x40, 0x00}, {0xB0, 0x41, 0x7F}, {0xB0, 0x41, 0x00},
		{0xB1, 0x40, 0x7F}, {0xB1, 0x40, 0x00}, {0xB1, 0x41, 0x7F}, {0xB1, 0x41, 0x00},
	}
	sent := out.Sent()
	if len(sent) != len(want) {
		t.Fatalf("sent %d frames", len(sent))
	}
	for i := range want {
		if !bytes.Equal(sent[i].Data, want[i]) {
			t.Fatalf("frame %d = % X, want % X", i, sent[i].Data, want[i])
		}
		frame, err := codec.NewFrame(want[i][0]&0x0F, want[i][1], want[i][2])
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(sent[i].Data, frame.Bytes()) {
			t.Fatalf("frame %d = % X, codec builds % X", i, sent[i].Data, frame.Bytes())
		}
	}
}

func TestRunPattern_CancelBetweenSends(t *testing.T) {
	for stopAfter := 1; stopAfter <= 12; stopAfter++ {
		s, out := newTestSequencer(t)
		ctx, cancel := context.WithCancel(context.Background())
		n := 0
		out.OnSend(func([]byte) {
			n++
			if n == stopAfter {
				cancel()
			}
		})

		err := s.RunPattern(ctx, testPattern(time.Millisecond))
		cancel()
		if stopAfter < 12 && !errors.Is(err, context.Canceled) {
			t.Fatalf("stopAfter=%d: err=%v", stopAfter, err)
		}
		if got := len(out.Sent()); got != stopAfter {
			t.Fatalf("stopAfter=%d: %d frames sent", stopAfter, got)
		}
		for _, msg := range out.Sent() {
			if len(msg.Data) != 3 {
				t.Fatalf("partial frame % X", msg.Data)
			}
		}
	}
}

func TestRunPattern_CancelWithinOneDelay(t *testing.T) {
	s, out := newTestSequencer(t)
	const delay = time.Second

	sentFirst := make(chan struct{})
	var once sync.Once
	out.OnSend(func([]byte) { once.Do(func() { close(sentFirst) }) })

	task := s.Start(context.Background(), testPattern(delay))
	<-sentFirst
	start := time.Now()
	task.Cancel()

	if err := task.Wait(); !errors.Is(err, context.Canceled) {
		t.Fatalf("err=%v", err)
	}
	if elapsed := time.Since(start); elapsed >= delay {
		t.Fatalf("stopped after %v", elapsed)
	}
	if got := len(out.Sent()); got != 1 {
		t.Fatalf("%d frames sent", got)
	}
}

func TestRunPattern_SendFailure(t *testing.T) {
	s, out := newTestSequencer(t)
	boom := errors.New("device unplugged")
	out.FailAfter(4, boom)

	err := s.RunPattern(context.Background(), testPattern(0))
	if !errors.Is(err, boom) {
		t.Fatalf("err=%v", err)
	}
	var se *contracts.SendError
	if !errors.As(err, &se) {
		t.Fatalf("err=%T", err)
	}
	if se.Frame != (contracts.Frame{Status: 0xB0, Controller: 0x2B, Value: 0x7F}) {
		t.Fatalf("failed frame %s", se.Frame)
	}
	if len(out.Sent()) != 4 {
		t.Fatalf("%d frames sent", len(out.Sent()))
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*contracts.Pattern)
	}{
		{"empty range", func(p *contracts.Pattern) { p.High = p.Low }},
		{"range above table", func(p *contracts.Pattern) { p.High = 0x81 }},
		{"empty channels", func(p *contracts.Pattern) { p.ChannelHigh = p.ChannelLow }},
		{"too many channels", func(p *contracts.Pattern) { p.ChannelHigh = 17 }},
		{"press value", func(p *contracts.Pattern) { p.Press = 0x80 }},
		{"negative delay", func(p *contracts.Pattern) { p.Delay = -time.Millisecond }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := contracts.DefaultPattern()
			tt.modify(&p)
			if err := Validate(p); !errors.Is(err, ErrInvalidPattern) {
				t.Fatalf("err=%v", err)
			}
		})
	}
	if err := Validate(contracts.DefaultPattern()); err != nil {
		t.Fatalf("default pattern: %v", err)
	}
}

func TestSequencer_LEDHelpers(t *testing.T) {
	s, out := newTestSequencer(t)

	if err := s.SetLED(0, 0x2A, true); err != nil {
		t.Fatal(err)
	}
	if err := s.ClearLEDs(testPattern(0)); err != nil {
		t.Fatal(err)
	}
	sent := out.Sent()
	if len(sent) != 7 {
		t.Fatalf("%d frames sent", len(sent))
	}
	if !bytes.Equal(sent[0].Data, []byte{0xB0, 0x2A, 0x7F}) {
		t.Fatalf("SetLED sent % X", sent[0].Data)
	}
	for i, msg := range sent[1:] {
		if want := []byte{0xB0, byte(0x29 + i), 0x00}; !bytes.Equal(msg.Data, want) {
			t.Fatalf("clear %d = % X, want % X", i, msg.Data, want)
		}
	}
}

func TestSequencer_ConcurrentWritersAreSerialized(t *testing.T) {
	s, out := newTestSequencer(t)

	task := s.Start(context.Background(), testPattern(0))
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				_ = s.SetLED(uint8(i), 0x30, j%2 == 0)
			}
		}(i)
	}
	wg.Wait()
	if err := task.Wait(); err != nil {
		t.Fatal(err)
	}

	if got := len(out.Sent()); got != 12+40 {
		t.Fatalf("%d frames sent", got)
	}
	if s.Sent() != 52 {
		t.Fatalf("Sent()=%d", s.Sent())
	}
}
