package log

// MaxFrameData caps the number of raw bytes kept in a FrameEvent.
const MaxFrameData = 256

// NewFrameEvent builds a FrameEvent for raw, truncating the copied bytes to
// MaxFrameData.
func NewFrameEvent(raw []byte) *FrameEvent {
	ev := &FrameEvent{Size: len(raw)}
	n := len(raw)
	if n > MaxFrameData {
		n = MaxFrameData
		ev.Truncated = true
	}
	ev.Data = append([]byte(nil), raw[:n]...)
	return ev
}
