// Package severity maps backend severity codes onto sink levels.
package severity

import (
	"fmt"

	"github.com/gezibash/auditfwd/internal/cel"
	"github.com/gezibash/auditfwd/pkg/audit"
)

// Level is the severity scale understood by sinks.
type Level int

const (
	Debug Level = iota
	Info
	Warning
	Error
	Critical
)

func (l Level) String() string {
	switch l {
	case Debug:
		return "DEBUG"
	case Info:
		return "INFO"
	case Warning:
		return "WARNING"
	case Error:
		return "ERROR"
	case Critical:
		return "CRITICAL"
	default:
		return fmt.Sprintf("Level(%d)", int(l))
	}
}

// Translate maps a numeric backend code (syslog scale, 0 = emergency) to a
// Level. Unknown codes, including audit.SeverityUnknown, map to Info.
func Translate(code int) Level {
	switch code {
	case 0, 1, 2:
		return Critical
	case 3:
		return Error
	case 4:
		return Warning
	case 5, 6:
		return Info
	case 7:
		return Debug
	default:
		return Info
	}
}

// ruleKeys are the variables a rule may reference. They match the keys of
// audit.Entry.Attributes.
var ruleKeys = []string{"type", "severity", "facility", "receiver", "sequence", "message"}

// Rule recomputes an entry's backend severity code from its attributes.
type Rule struct {
	prog *cel.Program
}

// CompileRule compiles expr. An empty expression yields a nil Rule, which
// leaves every entry's code untouched.
func CompileRule(expr string) (*Rule, error) {
	if expr == "" {
		return nil, nil
	}
	prog, err := cel.Compile(expr, ruleKeys)
	if err != nil {
		return nil, fmt.Errorf("severity rule: %w", err)
	}
	return &Rule{prog: prog}, nil
}

// Code returns the backend code for e. Evaluation failures and non-integer
// results fall back to e.Severity.
func (r *Rule) Code(e audit.Entry) int {
	if r == nil {
		return e.Severity
	}
	v, ok := r.prog.Int(e.Attributes())
	if !ok {
		return e.Severity
	}
	return int(v)
}

// String returns the rule's source expression.
func (r *Rule) String() string {
	if r == nil {
		return ""
	}
	return r.prog.String()
}

// Of returns the Level for e, applying r first when it is non-nil.
func (r *Rule) Of(e audit.Entry) Level {
	return Translate(r.Code(e))
}
