package internal

import (
	"fmt"
	"time"
)

// Config is the server environment. All state is in-memory; there is
// nothing to configure about persistence.
type Config struct {
	Host     string `env:"HOST,default=0.0.0.0"`
	Port     int    `env:"PORT,default=5500"`
	LogLevel string `env:"LOG_LEVEL,default=info"`

	// SendTimeout bounds one line write to a client.
	SendTimeout time.Duration `env:"SEND_TIMEOUT,default=5s"`
	// KillGrace delays the kill token so the preceding notice flushes.
	KillGrace time.Duration `env:"KILL_GRACE,default=2s"`

	RestartInterval   time.Duration `env:"RESTART_INTERVAL,default=200ms"`
	TelemetryInterval time.Duration `env:"TELEMETRY_INTERVAL,default=30s"`

	// DebugPort exposes the roster inspection endpoint; 0 disables it.
	DebugPort int `env:"DEBUG_PORT,default=0"`

	CensorChar string `env:"CENSOR_CHAR,default=*"`
}

// CharacterRune parses a single-character setting such as CENSOR_CHAR.
func CharacterRune(str string) (rune, error) {
	r := []rune(str)
	if len(r) != 1 {
		return 0, fmt.Errorf("expected a single character, got %q", str)
	}
	return r[0], nil
}
