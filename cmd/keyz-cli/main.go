// Command keyz-cli is the interactive and scriptable client for a
// keyz server.
package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/chzyer/readline"
	flags "github.com/jessevdk/go-flags"

	"github.com/viktor111/keyz/internal/client"
	"github.com/viktor111/keyz/internal/config"
)

const (
	defaultConnectTimeoutSecs  = 3
	defaultResponseTimeoutSecs = 5
	defaultStatusIntervalSecs  = 2
	healthProbeKey             = "__keyz_cli_health_check"
)

type globalOpts struct {
	ConfigPath      string `long:"config" value-name:"PATH" description:"Path to a configuration file (overrides KEYZ_CONFIG/env/default lookup)"`
	Host            string `long:"host" value-name:"HOST" description:"Override the host declared in the configuration"`
	Port            uint16 `long:"port" value-name:"PORT" description:"Override the port declared in the configuration"`
	ConnectTimeout  uint64 `long:"connect-timeout" value-name:"SECS" default:"3" description:"Connection timeout in seconds"`
	ResponseTimeout uint64 `long:"response-timeout" value-name:"SECS" default:"5" description:"Response timeout in seconds"`
}

var opts globalOpts

func main() {
	parser := flags.NewParser(&opts, flags.Default)
	parser.AddCommand("exec", "Send a single command", "Send a raw or assembled command and print the response.", &execCmd{})
	parser.AddCommand("commands", "List supported commands", "Describe the command grammar the server accepts.", &commandsCmd{})
	parser.AddCommand("config", "Inspect or scaffold configuration", "", &configCmd{})
	parser.AddCommand("status", "Probe server reachability", "", &statusCmd{})
	parser.AddCommand("interactive", "Start an interactive REPL", "", &interactiveCmd{})
	parser.AddCommand("batch", "Run commands from a file or stdin", "", &batchCmd{})
	parser.AddCommand("metrics", "Fetch the INFO payload", "", &metricsCmd{})

	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadClient() (*client.Client, config.Config, error) {
	cfg, _, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, config.Config{}, err
	}

	host := cfg.Server.Host
	if opts.Host != "" {
		host = opts.Host
	}
	port := cfg.Server.Port
	if opts.Port != 0 {
		port = opts.Port
	}
	address := fmt.Sprintf("%s:%d", host, port)

	c := client.New(
		address,
		time.Duration(orDefault(opts.ConnectTimeout, defaultConnectTimeoutSecs))*time.Second,
		time.Duration(orDefault(opts.ResponseTimeout, defaultResponseTimeoutSecs))*time.Second,
		cfg.Protocol.MaxMessageBytes,
	)
	return c, cfg, nil
}

func orDefault(v, fallback uint64) uint64 {
	if v == 0 {
		return fallback
	}
	return v
}

// execCmd sends a single command, assembled from --raw or positional parts.
type execCmd struct {
	Raw   string   `long:"raw" value-name:"STRING" description:"Send the command exactly as provided without additional parsing"`
	Parts []string `positional-args:"yes" positional-arg-name:"PART"`
}

func (e *execCmd) Execute(args []string) error {
	command := e.Raw
	if command == "" {
		parts := append([]string{}, e.Parts...)
		parts = append(parts, args...)
		command = strings.Join(parts, " ")
	}
	if command == "" {
		return fmt.Errorf("provide either --raw or command parts")
	}

	c, cfg, err := loadClient()
	if err != nil {
		return err
	}

	start := time.Now()
	response, err := c.Send(command)
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	fmt.Println(response)
	fmt.Fprintf(os.Stderr, "Executed in %s; max response size %d bytes\n", elapsed, cfg.Protocol.MaxMessageBytes)
	return nil
}

type commandDoc struct {
	name        string
	syntax      string
	description string
	notes       string
}

var commandDocs = []commandDoc{
	{"SET", "SET <key> <value> [EX <seconds>]", "Insert or update a value with optional TTL.", "Values may contain spaces. TTL applies as seconds; omit EX for default TTL if configured."},
	{"GET", "GET <key>", "Fetch the latest value stored for the key.", "Returns the value or the literal string `null` when absent or expired."},
	{"DEL", "DEL <key>", "Delete a key if present.", "Responds with the deleted key or `null` if nothing was removed."},
	{"EXIN", "EXIN <key>", "Inspect remaining TTL for a key.", "Returns seconds remaining or `null` when the key has no expiry or is missing."},
	{"CLOSE", "CLOSE", "Gracefully terminate the connection.", "The command token is configurable via protocol.close_command; the response is always `Closing connection`."},
	{"INFO", "INFO", "Return server metrics and configuration summary as JSON.", "Useful for health dashboards and scripting; fields evolve but remain backward compatible."},
}

// commandsCmd lists the supported command grammar.
type commandsCmd struct {
	Filter  string `long:"filter" description:"Filter by command prefix (e.g. GET)"`
	Verbose bool   `long:"verbose" description:"Show detailed notes for each command"`
}

func (cc *commandsCmd) Execute(args []string) error {
	_, cfg, err := loadClient()
	if err != nil {
		return err
	}

	filter := strings.ToUpper(cc.Filter)
	fmt.Printf("Supported commands (close command: %s)\n", cfg.Protocol.CloseCommand)
	for _, doc := range commandDocs {
		if filter != "" && !strings.HasPrefix(doc.name, filter) {
			continue
		}
		fmt.Printf("  %-6s %s\n", doc.name, doc.description)
		fmt.Printf("     syntax: %s\n", doc.syntax)
		if cc.Verbose {
			fmt.Printf("     notes : %s\n", doc.notes)
		}
	}
	return nil
}

// configCmd groups the config subcommands.
type configCmd struct {
	Show configShowCmd `command:"show" description:"Print the resolved configuration"`
	Init configInitCmd `command:"init" description:"Write a template configuration file"`
}

type configShowCmd struct{}

func (*configShowCmd) Execute(args []string) error {
	cfg, source, err := config.Load(opts.ConfigPath)
	if err != nil {
		return err
	}

	sourceDesc := "built-in defaults"
	if source != "" {
		sourceDesc = fmt.Sprintf("file (%s)", source)
	}

	fmt.Printf("Configuration source : %s\n", sourceDesc)
	fmt.Printf("Server endpoint      : %s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println("--- server")
	fmt.Printf("host = %s\n", cfg.Server.Host)
	fmt.Printf("port = %d\n", cfg.Server.Port)
	fmt.Println("--- protocol")
	fmt.Printf("max_message_bytes        = %d\n", cfg.Protocol.MaxMessageBytes)
	fmt.Printf("idle_timeout_secs        = %d\n", cfg.Protocol.IdleTimeoutSecs)
	fmt.Printf("close_command            = %s\n", cfg.Protocol.CloseCommand)
	fmt.Printf("timeout_response         = %s\n", cfg.Protocol.TimeoutResponse)
	fmt.Printf("invalid_command_response = %s\n", cfg.Protocol.InvalidCommandResponse)
	fmt.Println("--- store")
	fmt.Printf("compression_threshold    = %d\n", cfg.Store.CompressionThreshold)
	fmt.Printf("cleanup_interval_ms      = %d\n", cfg.Store.CleanupIntervalMS)
	if cfg.Store.DefaultTTLSecs != nil {
		fmt.Printf("default_ttl_secs         = %d\n", *cfg.Store.DefaultTTLSecs)
	} else {
		fmt.Println("default_ttl_secs         = (disabled)")
	}
	return nil
}

const defaultConfigTemplate = `[server]
host = "127.0.0.1"
port = 7667

[protocol]
max_message_bytes = 4194304
idle_timeout_secs = 30
close_command = "CLOSE"
timeout_response = "error:timeout"
invalid_command_response = "error:invalid command"

[store]
compression_threshold = 512
cleanup_interval_ms = 250
# default_ttl_secs = 60
`

type configInitCmd struct {
	Output string `long:"output" value-name:"PATH" default:"keyz.toml" description:"Where to write the template"`
	Force  bool   `long:"force" description:"Overwrite existing file if present"`
}

func (ci *configInitCmd) Execute(args []string) error {
	if _, err := os.Stat(ci.Output); err == nil && !ci.Force {
		return fmt.Errorf("%s already exists; pass --force to overwrite", ci.Output)
	}
	if err := os.WriteFile(ci.Output, []byte(defaultConfigTemplate), 0o644); err != nil {
		return err
	}
	fmt.Printf("Wrote template configuration to %s\n", ci.Output)
	return nil
}

// statusCmd probes the server with a harmless GET and reports latency.
type statusCmd struct {
	Watch    bool   `long:"watch" description:"Continuously watch server health"`
	Interval uint64 `long:"interval" value-name:"SECS" default:"2" description:"Polling interval when --watch is enabled"`
}

func (sc *statusCmd) Execute(args []string) error {
	c, _, err := loadClient()
	if err != nil {
		return err
	}

	interval := time.Duration(orDefault(sc.Interval, defaultStatusIntervalSecs)) * time.Second
	for {
		probeStatus(c)
		if !sc.Watch {
			return nil
		}
		time.Sleep(interval)
	}
}

func probeStatus(c *client.Client) {
	start := time.Now()
	response, err := c.Send(fmt.Sprintf("GET %s", healthProbeKey))
	if err != nil {
		fmt.Printf("Server unreachable: %v\n", err)
		return
	}
	fmt.Printf("Server reachable in %.2f ms; response: %s\n", time.Since(start).Seconds()*1000, response)
}

// interactiveCmd runs a readline-backed REPL against the server.
type interactiveCmd struct {
	History string `long:"history" value-name:"PATH" description:"Persist REPL history to this file (default: in-memory only)"`
}

func (ic *interactiveCmd) Execute(args []string) error {
	c, cfg, err := loadClient()
	if err != nil {
		return err
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "keyz> ",
		HistoryFile:     ic.History,
		InterruptPrompt: "^C",
		EOFPrompt:       "bye",
	})
	if err != nil {
		return err
	}
	defer rl.Close()

	fmt.Printf("Connected to %s (max frame %d bytes)\n", c.Address, cfg.Protocol.MaxMessageBytes)
	fmt.Println("Type :help for assistance, :commands for a recap, :quit to exit.")

	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			continue
		}
		if err != nil {
			break
		}

		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}

		switch trimmed {
		case ":quit", ":exit":
			fmt.Println("bye")
			return nil
		case ":help":
			fmt.Println("Commands: :help, :commands, :quit")
			fmt.Println("Any other input is sent verbatim to the server.")
			continue
		case ":commands":
			(&commandsCmd{Verbose: true}).Execute(nil)
			continue
		}

		response, err := c.Send(trimmed)
		if err != nil {
			fmt.Printf("error: %v\n", err)
			continue
		}
		fmt.Println(response)
	}

	fmt.Println("bye")
	return nil
}

// batchCmd replays commands from a file or stdin, one per line.
type batchCmd struct {
	File        string `long:"file" value-name:"PATH" description:"Read commands from file instead of STDIN"`
	StopOnError bool   `long:"stop-on-error" description:"Abort at the first command that returns an error"`
}

func (bc *batchCmd) Execute(args []string) error {
	c, _, err := loadClient()
	if err != nil {
		return err
	}

	var reader *bufio.Scanner
	if bc.File != "" {
		f, err := os.Open(bc.File)
		if err != nil {
			return fmt.Errorf("unable to open batch file %s: %w", bc.File, err)
		}
		defer f.Close()
		reader = bufio.NewScanner(f)
	} else {
		reader = bufio.NewScanner(os.Stdin)
	}

	index := 0
	for reader.Scan() {
		index++
		trimmed := strings.TrimSpace(reader.Text())
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}

		response, err := c.Send(trimmed)
		if err != nil {
			fmt.Printf("[line %d] error: %v\n", index, err)
			if bc.StopOnError {
				return fmt.Errorf("aborting due to --stop-on-error")
			}
			continue
		}
		fmt.Printf("[line %d] %s\n", index, response)
	}
	return reader.Err()
}

// metricsCmd fetches and pretty-prints the INFO payload.
type metricsCmd struct {
	Raw bool `long:"raw" description:"Display raw response without formatting"`
}

func (mc *metricsCmd) Execute(args []string) error {
	c, _, err := loadClient()
	if err != nil {
		return err
	}

	response, err := c.Send("INFO")
	if err != nil {
		return fmt.Errorf("metrics unavailable: %w", err)
	}

	if mc.Raw {
		fmt.Println(response)
		return nil
	}
	fmt.Println("Server metrics:")
	fmt.Println(response)
	return nil
}
