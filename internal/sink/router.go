package sink

// Router hands a message to the one sink registered for a given
// instance name. Each instance has exactly one configured MQ (§6), but
// a sink instance may be shared across multiple table-routing instances,
// so the router is keyed by instance name rather than by sink identity.
type Router struct {
	sinks map[string]Sink
}

// NewRouter returns an empty Router; register sinks with Register.
func NewRouter() *Router {
	return &Router{sinks: make(map[string]Sink)}
}

// Register associates instanceName with sink. A second Register call
// for the same name replaces the prior sink.
func (r *Router) Register(instanceName string, sink Sink) {
	r.sinks[instanceName] = sink
}

// Publish enqueues msg to the sink registered for instanceName. It
// returns false if no sink is registered, or if the sink's channel is
// full.
func (r *Router) Publish(instanceName string, msg Message) bool {
	s, ok := r.sinks[instanceName]
	if !ok {
		return false
	}
	return s.Enqueue(msg)
}

// All returns every registered sink, for startup (Run) and shutdown
// (Close) fan-out.
func (r *Router) All() []Sink {
	out := make([]Sink, 0, len(r.sinks))
	for _, s := range r.sinks {
		out = append(out, s)
	}
	return out
}
