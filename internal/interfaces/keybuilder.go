package interfaces

// KeyBuilder canonizes outbound requests into deterministic cache keys
type KeyBuilder interface {
	Build(method, url string, body []byte) string
}
