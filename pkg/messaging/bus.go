package messaging

import "errors"

// ErrRelayed is returned by a transport that had no local session for an
// identity but handed the event to peer nodes.
var ErrRelayed = errors.New("relayed to peer nodes")

// Handler receives one message
type Handler func(subject string, data []byte)

// Bus is the publish/subscribe surface the hubs relay through.
type Bus interface {
	Publish(subject string, data []byte) error
	Subscribe(subject string, handler Handler) (unsubscribe func(), err error)
}
