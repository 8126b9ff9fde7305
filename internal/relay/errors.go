package relay

import "errors"

var (
	ErrSubscriberQueueFull = errors.New("subscriber queue full, envelope dropped")
	ErrShuttingDown        = errors.New("relay is shutting down")
)
