// Package dispatch wires the parsed command grammar (internal/protocol)
// to the store (internal/store), producing the wire response strings.
// It also renders the INFO telemetry payload, since that is the one
// response that needs both the store's stats and the protocol
// configuration at once.
package dispatch

import (
	"encoding/json"
	"strconv"

	"github.com/viktor111/keyz/internal/protocol"
	"github.com/viktor111/keyz/internal/store"
)

const (
	respOK         = "ok"
	respNull       = "null"
	respSetInvalid = "error:set command invalid"
)

// Store is the subset of *store.Store the dispatcher depends on,
// declared as an interface so tests can substitute a fake.
type Store interface {
	Insert(key string, value []byte, ttlSeconds uint64) error
	Get(key string) ([]byte, bool, error)
	Delete(key string) (string, bool, error)
	ExpiresIn(key string) (int64, bool, error)
	Stats() store.Stats
}

// Dispatch parses and executes a single command line, returning the
// response string to write back on the wire. Syntax errors (unknown
// command, malformed SET) never reach the caller as an error value;
// they are rendered directly into the appropriate literal response
// string. Only store and serialization failures are returned as
// *protocol.KeyzError.
func Dispatch(line string, st Store, protoCfg protocol.Config) (string, error) {
	cmd, err := protocol.ParseCommand(line)
	if err != nil {
		if protocol.IsSetSyntaxError(err) {
			return respSetInvalid, nil
		}
		return protoCfg.InvalidCommandResponse, nil
	}

	switch cmd.Kind {
	case protocol.CmdSet:
		if err := st.Insert(cmd.Key, []byte(cmd.Value), cmd.TTLSeconds); err != nil {
			return "", err
		}
		return respOK, nil

	case protocol.CmdGet:
		value, ok, err := st.Get(cmd.Key)
		if err != nil {
			return "", err
		}
		if !ok {
			return respNull, nil
		}
		return string(value), nil

	case protocol.CmdDel:
		key, ok, err := st.Delete(cmd.Key)
		if err != nil {
			return "", err
		}
		if !ok {
			return respNull, nil
		}
		return key, nil

	case protocol.CmdExIn:
		secs, ok, err := st.ExpiresIn(cmd.Key)
		if err != nil {
			return "", err
		}
		if !ok {
			return respNull, nil
		}
		return strconv.FormatInt(secs, 10), nil

	case protocol.CmdInfo:
		return renderInfo(st.Stats(), protoCfg)

	default:
		return protoCfg.InvalidCommandResponse, nil
	}
}

// infoPayload mirrors the stable JSON field names the INFO command reports.
type infoPayload struct {
	Store    storeSnapshot    `json:"store"`
	Protocol protocolSnapshot `json:"protocol"`
}

type storeSnapshot struct {
	Keys                 int     `json:"keys"`
	CompressedKeys       int     `json:"compressed_keys"`
	CompressionThreshold int     `json:"compression_threshold"`
	DefaultTTLSecs       *uint64 `json:"default_ttl_secs"`
	CleanupIntervalMS    uint64  `json:"cleanup_interval_ms"`
	UptimeSecs           float64 `json:"uptime_secs"`
}

type protocolSnapshot struct {
	MaxMessageBytes        uint32 `json:"max_message_bytes"`
	IdleTimeoutSecs        uint64 `json:"idle_timeout_secs"`
	CloseCommand           string `json:"close_command"`
	TimeoutResponse        string `json:"timeout_response"`
	InvalidCommandResponse string `json:"invalid_command_response"`
}

func renderInfo(stats store.Stats, protoCfg protocol.Config) (string, error) {
	payload := infoPayload{
		Store: storeSnapshot{
			Keys:                 stats.Keys,
			CompressedKeys:       stats.CompressedKeys,
			CompressionThreshold: stats.CompressionThreshold,
			CleanupIntervalMS:    stats.CleanupIntervalMS,
			UptimeSecs:           stats.UptimeSecs,
		},
		Protocol: protocolSnapshot{
			MaxMessageBytes:        protoCfg.MaxMessageBytes,
			IdleTimeoutSecs:        protoCfg.IdleTimeoutSecs,
			CloseCommand:           protoCfg.CloseCommand,
			TimeoutResponse:        protoCfg.TimeoutResponse,
			InvalidCommandResponse: protoCfg.InvalidCommandResponse,
		},
	}
	if stats.HasDefaultTTL {
		ttl := stats.DefaultTTLSecs
		payload.Store.DefaultTTLSecs = &ttl
	}

	out, err := json.Marshal(payload)
	if err != nil {
		return "", protocol.Wrap(protocol.KindIO, "info serialization failed", err)
	}
	return string(out), nil
}
