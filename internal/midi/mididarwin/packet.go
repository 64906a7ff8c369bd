package mididarwin

// splitPacket breaks a CoreMIDI packet into individual messages. A packet may
// carry several channel messages back to back; anything that is not a channel
// voice message ends the walk and is delivered as one trailing message.
func splitPacket(data []byte) [][]byte {
	var msgs [][]byte
	for len(data) > 0 {
		status := data[0]
		if status < 0x80 || status >= 0xF0 {
			return append(msgs, data)
		}
		n := 3
		if kind := status & 0xF0; kind == 0xC0 || kind == 0xD0 {
			n = 2
		}
		if len(data) < n {
			return append(msgs, data)
		}
		msgs = append(msgs, data[:n:n])
		data = data[n:]
	}
	return msgs
}
