package protocol

// Config is the immutable protocol configuration shared by the
// connection handler and INFO telemetry.
type Config struct {
	MaxMessageBytes        uint32
	IdleTimeoutSecs        uint64
	CloseCommand           string
	TimeoutResponse        string
	InvalidCommandResponse string
}

// DefaultConfig returns the built-in protocol defaults.
func DefaultConfig() Config {
	return Config{
		MaxMessageBytes:        4 * 1024 * 1024,
		IdleTimeoutSecs:        30,
		CloseCommand:           "CLOSE",
		TimeoutResponse:        "error:timeout",
		InvalidCommandResponse: "error:invalid command",
	}
}

// Validate checks protocol configuration invariants, returning an
// InvalidConfig error describing the first violation found.
func (c Config) Validate() error {
	if c.MaxMessageBytes == 0 {
		return New(KindInvalidConfig, "protocol.max_message_bytes must be greater than zero")
	}
	if c.IdleTimeoutSecs == 0 {
		return New(KindInvalidConfig, "protocol.idle_timeout_secs must be greater than zero")
	}
	if c.CloseCommand == "" {
		return New(KindInvalidConfig, "protocol.close_command cannot be empty")
	}
	if c.TimeoutResponse == "" {
		return New(KindInvalidConfig, "protocol.timeout_response cannot be empty")
	}
	if c.InvalidCommandResponse == "" {
		return New(KindInvalidConfig, "protocol.invalid_command_response cannot be empty")
	}
	return nil
}
