// Package sink delivers translated journal entries to their destination.
package sink

import (
	"fmt"
	"strings"

	"github.com/gezibash/auditfwd/internal/severity"
	"github.com/gezibash/auditfwd/internal/storage"
	"github.com/gezibash/auditfwd/pkg/logging"
)

// Sink forwards one message at a time. Send returns only after the message
// was handed to the transport; a non-nil error means it may not have been.
type Sink interface {
	Send(level severity.Level, message string) error
	Close() error
}

// Sink types.
const (
	TypeSyslog = "syslog"
	TypeLog    = "log"
)

// Config keys, shared by every sink type.
const (
	KeyType     = "type"
	KeyNetwork  = "network"
	KeyAddress  = "address"
	KeyFormat   = "format"
	KeyFacility = "facility"
	KeyTag      = "tag"
	KeyHostname = "hostname"
)

// Config selects and configures a sink.
type Config struct {
	Type     string
	Network  string
	Address  string
	Format   string
	Facility string
	Tag      string
	Hostname string
}

// Defaults returns the sink defaults: syslog over UDP to the local collector
// in the raw format the previous monitor produced.
func Defaults() map[string]string {
	return map[string]string{
		KeyType:     TypeSyslog,
		KeyNetwork:  "udp",
		KeyAddress:  "127.0.0.1:514",
		KeyFormat:   FormatRaw,
		KeyFacility: "user",
		KeyTag:      "auditfwd",
	}
}

// ConfigFromMap builds a Config from flat settings layered over Defaults.
func ConfigFromMap(m map[string]string) (Config, error) {
	m = storage.MergeConfig(Defaults(), m)
	cfg := Config{
		Type:     strings.ToLower(storage.GetString(m, KeyType, TypeSyslog)),
		Network:  strings.ToLower(storage.GetString(m, KeyNetwork, "udp")),
		Address:  strings.TrimSpace(storage.GetString(m, KeyAddress, "")),
		Format:   strings.ToLower(storage.GetString(m, KeyFormat, FormatRaw)),
		Facility: strings.ToLower(storage.GetString(m, KeyFacility, "user")),
		Tag:      storage.GetString(m, KeyTag, "auditfwd"),
		Hostname: storage.GetString(m, KeyHostname, ""),
	}
	return cfg, cfg.Validate()
}

// Validate checks the settings without opening anything.
func (c Config) Validate() error {
	switch c.Type {
	case TypeLog:
		return nil
	case TypeSyslog:
	default:
		return storage.NewConfigErrorWithValue("sink", KeyType, c.Type, "must be syslog or log")
	}
	switch c.Network {
	case "udp", "tcp", "unix", "unixgram":
	default:
		return storage.NewConfigErrorWithValue("syslog", KeyNetwork, c.Network, "must be udp, tcp, unix or unixgram")
	}
	if c.Address == "" {
		return storage.NewConfigError("syslog", KeyAddress, "cannot be empty")
	}
	if _, ok := formatters[c.Format]; !ok {
		return storage.NewConfigErrorWithValue("syslog", KeyFormat, c.Format, "must be raw, rfc3164 or rfc5424")
	}
	if _, ok := facilities[c.Facility]; !ok {
		return storage.NewConfigErrorWithValue("syslog", KeyFacility, c.Facility, "unknown facility")
	}
	return nil
}

// New opens the sink described by cfg. host labels operator log records.
func New(cfg Config, host string, log *logging.Logger) (Sink, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Type {
	case TypeLog:
		return NewLog(log.WithHost(host)), nil
	default:
		return DialSyslog(cfg)
	}
}

// withDefaultPort appends the syslog port to a bare network host.
func withDefaultPort(network, addr string) string {
	if network != "udp" && network != "tcp" {
		return addr
	}
	if strings.HasPrefix(addr, "[") || strings.Count(addr, ":") == 1 {
		return addr
	}
	if strings.Count(addr, ":") > 1 {
		return fmt.Sprintf("[%s]:514", addr)
	}
	return addr + ":514"
}
