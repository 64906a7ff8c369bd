package mididarwin

import (
	"reflect"
	"testing"
)

func TestSplitPacket(t *testing.T) {
	tests := []struct {
		name string
		in   []byte
		want [][]byte
	}{
		{name: "empty", in: nil, want: nil},
		{name: "single", in: []byte{0xB0, 0x20, 0x7F}, want: [][]byte{{0xB0, 0x20, 0x7F}}},
		{
			name: "two control changes",
			in:   []byte{0xB0, 0x20, 0x7F, 0xB0, 0x20, 0x00},
			want: [][]byte{{0xB0, 0x20, 0x7F}, {0xB0, 0x20, 0x00}},
		},
		{
			name: "program change then control change",
			in:   []byte{0xC0, 0x05, 0xB1, 0x10, 0x40},
			want: [][]byte{{0xC0, 0x05}, {0xB1, 0x10, 0x40}},
		},
		{
			name: "truncated tail",
			in:   []byte{0xB0, 0x20, 0x7F, 0xB0, 0x20},
			want: [][]byte{{0xB0, 0x20, 0x7F}, {0xB0, 0x20}},
		},
		{
			name: "sysex kept whole",
			in:   []byte{0xF0, 0x42, 0x40, 0xF7},
			want: [][]byte{{0xF0, 0x42, 0x40, 0xF7}},
		},
		{
			name: "running status is not expanded",
			in:   []byte{0x20, 0x7F},
			want: [][]byte{{0x20, 0x7F}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := splitPacket(tt.in)
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("splitPacket(% X) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}
