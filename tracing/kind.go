package tracing

// Kind classifies a span's role in a trace.
type Kind string

const (
	KindInternal Kind = "internal"
	KindServer   Kind = "server"
	KindClient   Kind = "client"
	KindConsumer Kind = "consumer"
	KindEvent    Kind = "event"
)

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindInternal, KindServer, KindClient, KindConsumer, KindEvent:
		return true
	}
	return false
}

func (k Kind) String() string { return string(k) }
