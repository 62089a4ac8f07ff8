package interfaces

// FrameHandler consumes inbound real-time traffic.
type FrameHandler interface {
	// HandleFrame processes one raw frame received on h. Failures are logged
	// and never reported back over the channel.
	HandleFrame(h Handle, data []byte)

	// HandleDisconnect is called once after h's transport has closed.
	HandleDisconnect(h Handle)
}
