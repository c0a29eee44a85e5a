// Package channel provides generic channel interfaces decoupling host
// command ingestion from the goroutines that process it. The debug build
// swaps every channel to unbuffered so command handling runs lockstep
// with the host calls that produced it.
package channel

// Receiver provides read access to a channel.
type Receiver[T any] interface {
	Receive() <-chan T
	Len() int
}

// Sender provides write access to a channel.
type Sender[T any] interface {
	Send(T)
	// TrySend sends without blocking and reports whether the value was
	// accepted.
	TrySend(T) bool
}

// Channel combines read and write access.
type Channel[T any] interface {
	Receiver[T]
	Sender[T]
	Close()
}
