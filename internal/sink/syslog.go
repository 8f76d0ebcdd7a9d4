package sink

import (
	"fmt"
	"sync"

	"github.com/RackSec/srslog"

	"github.com/gezibash/auditfwd/internal/severity"
)

// Message formats.
const (
	FormatRaw     = "raw"
	FormatRFC3164 = "rfc3164"
	FormatRFC5424 = "rfc5424"
)

// rawFormatter emits "<PRI>message". The journal already renders the event as
// a complete RFC 5424 record, so nothing else is added.
func rawFormatter(p srslog.Priority, _, _, content string) string {
	return fmt.Sprintf("<%d>%s", p, content)
}

var formatters = map[string]srslog.Formatter{
	FormatRaw:     rawFormatter,
	FormatRFC3164: srslog.RFC3164Formatter,
	FormatRFC5424: srslog.RFC5424Formatter,
}

var facilities = map[string]srslog.Priority{
	"kern":     srslog.LOG_KERN,
	"user":     srslog.LOG_USER,
	"mail":     srslog.LOG_MAIL,
	"daemon":   srslog.LOG_DAEMON,
	"auth":     srslog.LOG_AUTH,
	"syslog":   srslog.LOG_SYSLOG,
	"authpriv": srslog.LOG_AUTHPRIV,
	"local0":   srslog.LOG_LOCAL0,
	"local1":   srslog.LOG_LOCAL1,
	"local2":   srslog.LOG_LOCAL2,
	"local3":   srslog.LOG_LOCAL3,
	"local4":   srslog.LOG_LOCAL4,
	"local5":   srslog.LOG_LOCAL5,
	"local6":   srslog.LOG_LOCAL6,
	"local7":   srslog.LOG_LOCAL7,
}

func syslogSeverity(l severity.Level) srslog.Priority {
	switch l {
	case severity.Critical:
		return srslog.LOG_CRIT
	case severity.Error:
		return srslog.LOG_ERR
	case severity.Warning:
		return srslog.LOG_WARNING
	case severity.Debug:
		return srslog.LOG_DEBUG
	default:
		return srslog.LOG_INFO
	}
}

// Syslog forwards messages to a syslog collector. The connection is made
// lazily: a collector that is down when the sink is built only fails Send,
// and the next Send dials again.
type Syslog struct {
	mu       sync.Mutex
	w        *srslog.Writer
	closed   bool
	network  string
	addr     string
	tag      string
	hostname string
	facility srslog.Priority
	format   srslog.Formatter
}

// DialSyslog validates cfg and tries to connect to the collector. A failed
// connection is not an error here; Send reports it until the collector is up.
func DialSyslog(cfg Config) (*Syslog, error) {
	facility, ok := facilities[cfg.Facility]
	if !ok {
		return nil, fmt.Errorf("syslog: unknown facility %q", cfg.Facility)
	}
	format, ok := formatters[cfg.Format]
	if !ok {
		return nil, fmt.Errorf("syslog: unknown format %q", cfg.Format)
	}

	s := &Syslog{
		network:  cfg.Network,
		addr:     withDefaultPort(cfg.Network, cfg.Address),
		tag:      cfg.Tag,
		hostname: cfg.Hostname,
		facility: facility,
		format:   format,
	}
	_ = s.connect()
	return s, nil
}

// Connected reports whether a collector connection is currently held.
func (s *Syslog) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w != nil
}

// connect dials the collector. Callers hold mu or own s exclusively.
func (s *Syslog) connect() error {
	w, err := srslog.Dial(s.network, s.addr, s.facility|srslog.LOG_INFO, s.tag)
	if err != nil {
		return fmt.Errorf("syslog: dial %s %s: %w", s.network, s.addr, err)
	}
	w.SetFormatter(s.format)
	if s.network == "tcp" {
		w.SetFramer(srslog.RFC5425MessageLengthFramer)
	}
	if s.hostname != "" {
		w.SetHostname(s.hostname)
	}
	s.w = w
	return nil
}

// Send writes one message at the given level, dialing first if no
// connection is held. srslog redials once on a broken connection before
// reporting an error.
func (s *Syslog) Send(level severity.Level, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("syslog: closed")
	}
	if s.w == nil {
		if err := s.connect(); err != nil {
			return err
		}
	}
	if _, err := s.w.WriteWithPriority(s.facility|syslogSeverity(level), []byte(message)); err != nil {
		return fmt.Errorf("syslog: %w", err)
	}
	return nil
}

// Close closes the connection. Later sends fail.
func (s *Syslog) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	if s.w == nil {
		return nil
	}
	err := s.w.Close()
	s.w = nil
	return err
}
