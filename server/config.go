package server

// Config is the web host configuration.
type Config struct {
	// Address to listen on (e.g., ":8080")
	ListenAddr string

	// MaxSessions caps the number of live sessions; 0 means unlimited.
	MaxSessions int
}
