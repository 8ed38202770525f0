package registry

// SinkInstance describes one running frame sink.
// Width and Height mirror the Dimensions the sink sends on connect.
type SinkInstance struct {
	Addr    string
	Width   uint32
	Height  uint32
	Weight  int // Weight for load balancing
	Version string
}

// Registry lets sinks advertise themselves under a stream name and sources find them.
type Registry interface {
	Register(stream string, instance SinkInstance, ttl int64) error
	Deregister(stream string, addr string) error
	Discover(stream string) ([]SinkInstance, error)
	Watch(stream string) <-chan []SinkInstance
}
