package domain

// Observer receives human-readable progress text. Events are delivered in
// order, carry no control signal and are never waited on.
type Observer interface {
	Progress(msg string)
}

// ObserverFunc adapts a plain function to Observer.
type ObserverFunc func(msg string)

func (f ObserverFunc) Progress(msg string) {
	if f != nil {
		f(msg)
	}
}

// Notify is a nil-safe Progress call.
func Notify(o Observer, msg string) {
	if o != nil {
		o.Progress(msg)
	}
}
