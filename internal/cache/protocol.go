package cache

// Simple JSON protocol for the cache daemon over a Unix domain socket.
// A connection carries a stream of requests, each answered by one response.

const (
	OpGet    = "get"
	OpPut    = "put"
	OpDelete = "delete"
	OpPing   = "ping"
)

type Request struct {
	Op        string `json:"op"`
	Key       string `json:"key,omitempty"`
	Value     []byte `json:"value,omitempty"`
	TTLMillis int64  `json:"ttl_ms,omitempty"`
}

type Response struct {
	OK    bool   `json:"ok"`
	Value []byte `json:"value,omitempty"`
	Error string `json:"error,omitempty"`
}
