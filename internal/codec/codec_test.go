package codec

import (
	"errors"
	"testing"

	"github.com/leandrodaf/nanoctl/sdk/contracts"
)

func TestDecode_Scenarios(t *testing.T) {
	tests := []struct {
		name string
		in   []byte
		want contracts.ControllerEvent
		err  error
	}{
		{
			name: "button S press",
			in:   []byte{0xB0, 0x2A, 0x7F},
			want: contracts.ControllerEvent{Kind: contracts.Button, Group: contracts.GroupS, Index: 2, Value: 0x7F, Pressed: true},
		},
		{
			name: "button R release on channel 3",
			in:   []byte{0xB3, 0x47, 0x00},
			want: contracts.ControllerEvent{Kind: contracts.Button, Group: contracts.GroupR, Index: 7, Channel: 3},
		},
		{
			name: "button M press",
			in:   []byte{0xB0, 0x30, 0x7F},
			want: contracts.ControllerEvent{Kind: contracts.Button, Group: contracts.GroupM, Index: 0, Value: 0x7F, Pressed: true},
		},
		{
			name: "knob",
			in:   []byte{0xB0, 0x10, 0x40},
			want: contracts.ControllerEvent{Kind: contracts.Knob, Index: 0, Value: 64},
		},
		{
			name: "slider",
			in:   []byte{0xBF, 0x07, 0x01},
			want: contracts.ControllerEvent{Kind: contracts.Slider, Index: 7, Value: 1, Channel: 15},
		},
		{name: "note on", in: []byte{0x90, 0x10, 0x40}, err: contracts.ErrNotControlChange},
		{name: "gap after sliders", in: []byte{0xB0, 0x08, 0x40}, err: contracts.ErrUnmapped},
		{name: "gap after knobs", in: []byte{0xB0, 0x1F, 0x40}, err: contracts.ErrUnmapped},
		{
			name: "transport button in upper S block",
			in:   []byte{0xB0, 0x2E, 0x00},
			want: contracts.ControllerEvent{Kind: contracts.Button, Group: contracts.GroupS, Index: 6},
		},
		{
			name: "marker button in upper M block",
			in:   []byte{0xB1, 0x3C, 0x7F},
			want: contracts.ControllerEvent{Kind: contracts.Button, Group: contracts.GroupM, Index: 4, Value: 0x7F, Pressed: true, Channel: 1},
		},
		{name: "above table", in: []byte{0xB0, 0x48, 0x00}, err: contracts.ErrControllerOutOfRange},
		{name: "controller high bit", in: []byte{0xB0, 0x80, 0x00}, err: contracts.ErrControllerOutOfRange},
		{name: "value high bit", in: []byte{0xB0, 0x01, 0x80}, err: contracts.ErrDataByteOutOfRange},
		{name: "button half value", in: []byte{0xB0, 0x21, 0x40}, err: contracts.ErrInvalidButtonValue},
		{name: "empty", in: nil, err: contracts.ErrShortFrame},
		{name: "two bytes", in: []byte{0xB0, 0x01}, err: contracts.ErrShortFrame},
		{name: "four bytes", in: []byte{0xB0, 0x01, 0x02, 0x03}, err: contracts.ErrShortFrame},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode(tt.in)
			if tt.err != nil {
				if !errors.Is(err, tt.err) {
					t.Fatalf("Decode(% X) err=%v, want %v", tt.in, err, tt.err)
				}
				var de *contracts.DecodeError
				if !errors.As(err, &de) {
					t.Fatalf("Decode(% X) err=%T, want *contracts.DecodeError", tt.in, err)
				}
				if got != (contracts.ControllerEvent{}) {
					t.Fatalf("Decode(% X) returned event %v alongside error", tt.in, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("Decode(% X): %v", tt.in, err)
			}
			if got != tt.want {
				t.Fatalf("Decode(% X) = %+v, want %+v", tt.in, got, tt.want)
			}
		})
	}
}

func TestDecode_AllControlChangeFrames(t *testing.T) {
	for status := 0xB0; status <= 0xBF; status++ {
		for cc := 0; cc <= 0xFF; cc++ {
			for _, value := range []int{0x00, 0x01, 0x40, 0x7E, 0x7F, 0x80} {
				frame := []byte{byte(status), byte(cc), byte(value)}
				ev, err := Decode(frame)

				index := cc & 0x07
				switch {
				case cc > 0x47:
					if !errors.Is(err, contracts.ErrControllerOutOfRange) {
						t.Fatalf("% X: err=%v", frame, err)
					}
				case value > 0x7F:
					if !errors.Is(err, contracts.ErrDataByteOutOfRange) {
						t.Fatalf("% X: err=%v", frame, err)
					}
				case cc < 0x20 && cc&0x0F > 7:
					if !errors.Is(err, contracts.ErrUnmapped) {
						t.Fatalf("% X: err=%v", frame, err)
					}
				case cc < 0x20:
					if err != nil {
						t.Fatalf("% X: %v", frame, err)
					}
					want := contracts.Slider
					if cc >= 0x10 {
						want = contracts.Knob
					}
					if ev.Kind != want || int(ev.Index) != index || int(ev.Value) != value {
						t.Fatalf("% X: got %+v", frame, ev)
					}
				case value != 0x00 && value != 0x7F:
					if !errors.Is(err, contracts.ErrInvalidButtonValue) {
						t.Fatalf("% X: err=%v", frame, err)
					}
				default:
					if err != nil {
						t.Fatalf("% X: %v", frame, err)
					}
					groups := map[int]contracts.ButtonGroup{2: contracts.GroupS, 3: contracts.GroupM, 4: contracts.GroupR}
					if ev.Kind != contracts.Button || ev.Group != groups[cc>>4] || int(ev.Index) != index || ev.Pressed != (value == 0x7F) {
						t.Fatalf("% X: got %+v", frame, ev)
					}
				}
				if err == nil && int(ev.Channel) != status&0x0F {
					t.Fatalf("% X: channel %d", frame, ev.Channel)
				}
			}
		}
	}
}

func TestDecode_NotControlChange(t *testing.T) {
	for status := 0x00; status <= 0xFF; status++ {
		if status&0xF0 == 0xB0 {
			continue
		}
		if _, err := Decode([]byte{byte(status), 0x10, 0x40}); !errors.Is(err, contracts.ErrNotControlChange) {
			t.Fatalf("status 0x%02X: err=%v", status, err)
		}
	}
}

func TestEncode_RoundTrip(t *testing.T) {
	var checked int
	for status := 0xB0; status <= 0xBF; status++ {
		for cc := 0; cc <= 0x47; cc++ {
			if cc&0x0F > 7 {
				continue
			}
			values := []int{0x00, 0x7F}
			if cc < 0x20 {
				values = values[:0]
				for v := 0; v <= 0x7F; v++ {
					values = append(values, v)
				}
			}
			for _, v := range values {
				frame := contracts.Frame{Status: byte(status), Controller: byte(cc), Value: byte(v)}
				ev, err := Decode(frame.Bytes())
				if err != nil {
					t.Fatalf("decode %s: %v", frame, err)
				}
				got, err := Encode(ev)
				if err != nil {
					t.Fatalf("encode %+v: %v", ev, err)
				}
				if got != frame {
					t.Fatalf("round trip %s -> %+v -> %s", frame, ev, got)
				}
				checked++
			}
		}
	}
	if checked == 0 {
		t.Fatal("no frames checked")
	}
}

func TestEncode_Invalid(t *testing.T) {
	tests := []struct {
		name string
		ev   contracts.ControllerEvent
	}{
		{"index too large", contracts.ControllerEvent{Kind: contracts.Slider, Index: 8}},
		{"value too large", contracts.ControllerEvent{Kind: contracts.Knob, Value: 0x80}},
		{"channel too large", contracts.ControllerEvent{Kind: contracts.Knob, Channel: 16}},
		{"missing kind", contracts.ControllerEvent{}},
		{"button without group", contracts.ControllerEvent{Kind: contracts.Button, Pressed: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Encode(tt.ev); !errors.Is(err, ErrInvalidEvent) {
				t.Fatalf("Encode(%+v) err=%v", tt.ev, err)
			}
		})
	}
}

func TestNewFrame(t *testing.T) {
	f, err := NewFrame(2, 0x29, 0x7F)
	if err != nil {
		t.Fatal(err)
	}
	if f != (contracts.Frame{Status: 0xB2, Controller: 0x29, Value: 0x7F}) {
		t.Fatalf("got %s", f)
	}
	if f.Channel() != 2 {
		t.Fatalf("channel=%d", f.Channel())
	}
	if _, err := NewFrame(0, 0x80, 0); !errors.Is(err, ErrInvalidEvent) {
		t.Fatalf("controller 0x80 err=%v", err)
	}
}
