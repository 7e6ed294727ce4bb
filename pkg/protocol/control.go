package protocol

// Ping is echoed back unchanged by the server.
type Ping struct {
	Timestamp uint64 // Sender clock, Unix nanoseconds
}

// EncodePing encodes a Ping.
func EncodePing(p *Ping) []byte {
	e := NewEncoderWithCap(8)
	e.WriteUint64(p.Timestamp)
	return e.Bytes()
}

// DecodePing decodes a Ping.
func DecodePing(data []byte) (*Ping, error) {
	d := NewDecoder(data)
	ts, err := d.ReadUint64()
	if err != nil {
		return nil, err
	}
	return &Ping{Timestamp: ts}, d.Finish()
}
