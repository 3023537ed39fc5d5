package events

import "log"

// LogObserver writes every event to the standard logger.
type LogObserver struct {
	verbose bool
}

// NewLogObserver creates a log observer. Verbose mode includes payloads.
func NewLogObserver(verbose bool) *LogObserver {
	return &LogObserver{verbose: verbose}
}

// OnEvent logs the event.
func (o *LogObserver) OnEvent(event Event) error {
	if o.verbose {
		log.Printf("[Events] %s %+v", event.Type, event.Payload)
	} else {
		log.Printf("[Events] %s", event.Type)
	}
	return nil
}

// Name returns the observer's name.
func (o *LogObserver) Name() string {
	return "LogObserver"
}

// ShouldHandle accepts every event.
func (o *LogObserver) ShouldHandle(string) bool {
	return true
}

// FuncObserver adapts a function to the Observer interface, optionally
// restricted to a set of event types.
type FuncObserver struct {
	name  string
	types map[string]bool
	fn    func(Event) error
}

// NewFuncObserver creates an observer calling fn for the given event types,
// or for every event when types is empty.
func NewFuncObserver(name string, fn func(Event) error, types ...string) *FuncObserver {
	o := &FuncObserver{name: name, fn: fn}
	if len(types) > 0 {
		o.types = make(map[string]bool, len(types))
		for _, t := range types {
			o.types[t] = true
		}
	}
	return o
}

// OnEvent calls the wrapped function.
func (o *FuncObserver) OnEvent(event Event) error {
	return o.fn(event)
}

// Name returns the observer's name.
func (o *FuncObserver) Name() string {
	return o.name
}

// ShouldHandle reports whether eventType is in the observer's filter.
func (o *FuncObserver) ShouldHandle(eventType string) bool {
	return o.types == nil || o.types[eventType]
}
