package httpapi

import "time"

const shutdownTimeout = 5 * time.Second

// Config defines HTTP API settings.
type Config struct {
	Addr     string
	BasePath string
}
