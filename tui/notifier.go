package tui

import "sync"

// Notifier delivers controller status messages to the model. It implements
// controller.Notifier.
type Notifier struct {
	ch        chan string
	done      chan struct{}
	closeOnce sync.Once
}

// NewNotifier returns a Notifier buffering up to size undelivered messages.
func NewNotifier(size int) *Notifier {
	if size <= 0 {
		size = 16
	}
	return &Notifier{ch: make(chan string, size), done: make(chan struct{})}
}

// Notify queues msg. It blocks while the buffer is full and returns
// immediately once the Notifier is closed.
func (n *Notifier) Notify(msg string) {
	select {
	case n.ch <- msg:
	case <-n.done:
	}
}

// Close releases senders blocked in Notify.
func (n *Notifier) Close() {
	n.closeOnce.Do(func() { close(n.done) })
}

func (n *Notifier) messages() <-chan string { return n.ch }
