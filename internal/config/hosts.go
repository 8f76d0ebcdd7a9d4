package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/gezibash/auditfwd/internal/fetch"
	"github.com/gezibash/auditfwd/internal/storage"
)

// Host is one monitored journal.
type Host struct {
	Index           int
	Name            string
	Host            string
	User            string
	Password        string
	Driver          string
	Dialect         string
	Library         string
	Journal         string
	ReceiverLibrary string
	EntryTypes      []string
	PollInterval    time.Duration
	BatchSize       int
	QueryTimeout    time.Duration
	SeverityRule    string
}

// Section returns the configuration section the host was read from.
func (h Host) Section() string {
	return fmt.Sprintf("host_%d", h.Index)
}

// Host setting keys.
const (
	KeyName            = "name"
	KeyHost            = "host"
	KeyUser            = "user"
	KeyPassword        = "password"
	KeyDriver          = "driver"
	KeyDialect         = "dialect"
	KeyLibrary         = "library"
	KeyJournal         = "journal"
	KeyReceiverLibrary = "receiver_library"
	KeyEntryTypes      = "entry_types"
	KeyPollInterval    = "poll_interval"
	KeyBatchSize       = "batch_size"
	KeyQueryTimeout    = "query_timeout"
	KeySeverityRule    = "severity_rule"
)

// DefaultsSection holds values every host inherits unless it sets its own.
const DefaultsSection = "defaults"

// DiscoverHosts reads host_1, host_2, ... until the first index without a
// host setting. Incomplete or invalid sections are returned as problems and
// left out of hosts.
func DiscoverHosts(v *viper.Viper) (hosts []Host, problems []error) {
	for i := 1; ; i++ {
		section := fmt.Sprintf("host_%d", i)
		r := hostReader{v: v, section: section}
		if r.own(KeyHost) == "" {
			return hosts, problems
		}
		h, err := r.read(i)
		if err != nil {
			problems = append(problems, err)
			continue
		}
		hosts = append(hosts, h)
	}
}

type hostReader struct {
	v       *viper.Viper
	section string
}

func (r hostReader) own(key string) string {
	return strings.TrimSpace(r.v.GetString(r.section + "." + key))
}

// get returns the host's value, falling back to the defaults section.
func (r hostReader) get(key string) string {
	if s := r.own(key); s != "" {
		return s
	}
	return strings.TrimSpace(r.v.GetString(DefaultsSection + "." + key))
}

func (r hostReader) raw(key string) any {
	if val := r.v.Get(r.section + "." + key); !isEmpty(val) {
		return val
	}
	return r.v.Get(DefaultsSection + "." + key)
}

func (r hostReader) read(index int) (Host, error) {
	h := Host{
		Index:           index,
		Host:            r.own(KeyHost),
		Name:            r.own(KeyName),
		User:            r.get(KeyUser),
		Password:        r.get(KeyPassword),
		Driver:          r.get(KeyDriver),
		Library:         strings.ToUpper(or(r.get(KeyLibrary), HostDefaults.Library)),
		Journal:         strings.ToUpper(or(r.get(KeyJournal), HostDefaults.Journal)),
		ReceiverLibrary: strings.ToUpper(r.get(KeyReceiverLibrary)),
		EntryTypes:      toList(r.raw(KeyEntryTypes)),
		SeverityRule:    r.get(KeySeverityRule),
	}
	if h.Name == "" {
		h.Name = h.Host
	}

	dialect, err := fetch.ParseDialect(or(r.get(KeyDialect), HostDefaults.Dialect))
	if err != nil {
		return Host{}, r.fail(KeyDialect, err)
	}
	h.Dialect = string(dialect)

	settings := map[string]string{
		KeyPollInterval: r.get(KeyPollInterval),
		KeyBatchSize:    r.get(KeyBatchSize),
		KeyQueryTimeout: r.get(KeyQueryTimeout),
	}
	if h.PollInterval, err = storage.GetDuration(settings, KeyPollInterval, HostDefaults.PollInterval); err != nil {
		return Host{}, r.wrap(err)
	}
	if h.QueryTimeout, err = storage.GetDuration(settings, KeyQueryTimeout, HostDefaults.QueryTimeout); err != nil {
		return Host{}, r.wrap(err)
	}
	if h.BatchSize, err = storage.GetPositiveInt(settings, KeyBatchSize, HostDefaults.BatchSize); err != nil {
		return Host{}, r.wrap(err)
	}
	if h.PollInterval <= 0 {
		return Host{}, storage.NewConfigErrorWithValue(r.section, KeyPollInterval, settings[KeyPollInterval], "must be positive")
	}
	if h.QueryTimeout <= 0 {
		return Host{}, storage.NewConfigErrorWithValue(r.section, KeyQueryTimeout, settings[KeyQueryTimeout], "must be positive")
	}

	required := []string{KeyHost}
	if dialect == fetch.DialectDB2i {
		required = append(required, KeyUser, KeyPassword, KeyDriver)
	}
	values := map[string]string{KeyHost: h.Host, KeyUser: h.User, KeyPassword: h.Password, KeyDriver: h.Driver}
	var missing []string
	for _, k := range required {
		if values[k] == "" {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		return Host{}, storage.NewConfigError(r.section, strings.Join(missing, ","), "required setting missing")
	}
	return h, nil
}

func (r hostReader) fail(key string, err error) error {
	return storage.NewConfigErrorWithCause(r.section, key, err.Error(), err)
}

func (r hostReader) wrap(err error) error {
	return storage.WithBackend(err, r.section)
}

// toList accepts a YAML/JSON list or a comma separated string.
func toList(val any) []string {
	var items []string
	switch t := val.(type) {
	case nil:
		return nil
	case string:
		items = storage.GetList(map[string]string{"v": t}, "v")
	case []string:
		items = t
	case []any:
		for _, item := range t {
			items = append(items, fmt.Sprint(item))
		}
	default:
		items = storage.GetList(map[string]string{"v": fmt.Sprint(t)}, "v")
	}

	out := make([]string, 0, len(items))
	for _, item := range items {
		if item = strings.ToUpper(strings.TrimSpace(item)); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func isEmpty(val any) bool {
	switch t := val.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	case []any:
		return len(t) == 0
	case []string:
		return len(t) == 0
	}
	return false
}

func or(s, fallback string) string {
	if s != "" {
		return s
	}
	return fallback
}
