package fetch

import (
	"reflect"
	"testing"

	"github.com/gezibash/auditfwd/pkg/cursor"
)

func TestBuildDB2iNoCursor(t *testing.T) {
	query, args, err := Build(Request{
		Dialect: DialectDB2i,
		Library: "QSYS",
		Journal: "QAUDJRN",
		Limit:   100,
	})
	if err != nil {
		t.Fatal(err)
	}
	want := "SELECT SYSLOG_FACILITY, SYSLOG_SEVERITY, SYSLOG_EVENT, JOURNAL_ENTRY_TYPE, RECEIVER_NAME, SEQUENCE_NUMBER" +
		" FROM TABLE (QSYS2.DISPLAY_JOURNAL(?, ?, STARTING_RECEIVER_NAME => ?, GENERATE_SYSLOG => 'RFC5424')) AS X" +
		" WHERE SYSLOG_EVENT IS NOT NULL" +
		" ORDER BY RECEIVER_NAME, SEQUENCE_NUMBER FETCH FIRST 100 ROWS ONLY"
	if query != want {
		t.Errorf("query =\n%s\nwant\n%s", query, want)
	}
	if !reflect.DeepEqual(args, []any{"QSYS", "QAUDJRN", "*CURAVLCHN"}) {
		t.Errorf("args = %v", args)
	}
}

func TestBuildDB2iWithCursorAndTypes(t *testing.T) {
	query, args, err := Build(Request{
		Dialect:         DialectDB2i,
		Library:         "QSYS",
		Journal:         "QAUDJRN",
		ReceiverLibrary: "QGPL",
		EntryTypes:      []string{"PW", "AF"},
		After:           cursor.New("QAUDJRN0042", 1000),
		Limit:           50,
	})
	if err != nil {
		t.Fatal(err)
	}
	want := "SELECT SYSLOG_FACILITY, SYSLOG_SEVERITY, SYSLOG_EVENT, JOURNAL_ENTRY_TYPE, RECEIVER_NAME, SEQUENCE_NUMBER" +
		" FROM TABLE (QSYS2.DISPLAY_JOURNAL(?, ?, STARTING_RECEIVER_LIBRARY => ?, STARTING_RECEIVER_NAME => ?, GENERATE_SYSLOG => 'RFC5424')) AS X" +
		" WHERE SYSLOG_EVENT IS NOT NULL" +
		" AND (RECEIVER_NAME > ? OR (RECEIVER_NAME = ? AND SEQUENCE_NUMBER > ?))" +
		" AND JOURNAL_ENTRY_TYPE IN (?, ?)" +
		" ORDER BY RECEIVER_NAME, SEQUENCE_NUMBER FETCH FIRST 50 ROWS ONLY"
	if query != want {
		t.Errorf("query =\n%s\nwant\n%s", query, want)
	}
	wantArgs := []any{"QSYS", "QAUDJRN", "QGPL", "QAUDJRN0042", "QAUDJRN0042", "QAUDJRN0042", int64(1000), "PW", "AF"}
	if !reflect.DeepEqual(args, wantArgs) {
		t.Errorf("args = %v\nwant %v", args, wantArgs)
	}
}

func TestBuildSQLite(t *testing.T) {
	query, args, err := Build(Request{
		Dialect: DialectSQLite,
		Journal: "QAUDJRN",
		After:   cursor.New("R1", 7),
		Limit:   10,
	})
	if err != nil {
		t.Fatal(err)
	}
	want := `SELECT SYSLOG_FACILITY, SYSLOG_SEVERITY, SYSLOG_EVENT, JOURNAL_ENTRY_TYPE, RECEIVER_NAME, SEQUENCE_NUMBER FROM "QAUDJRN"` +
		" WHERE SYSLOG_EVENT IS NOT NULL" +
		" AND (RECEIVER_NAME > ? OR (RECEIVER_NAME = ? AND SEQUENCE_NUMBER > ?))" +
		" ORDER BY RECEIVER_NAME, SEQUENCE_NUMBER LIMIT 10"
	if query != want {
		t.Errorf("query =\n%s\nwant\n%s", query, want)
	}
	if !reflect.DeepEqual(args, []any{"R1", "R1", int64(7)}) {
		t.Errorf("args = %v", args)
	}
}

func TestBuildLargeSequence(t *testing.T) {
	_, args, err := Build(Request{
		Dialect: DialectDB2i,
		Library: "QSYS",
		Journal: "QAUDJRN",
		After:   cursor.New("R1", 18446744073709551615),
		Limit:   1,
	})
	if err != nil {
		t.Fatal(err)
	}
	if got := args[len(args)-1]; got != "18446744073709551615" {
		t.Errorf("sequence arg = %#v", got)
	}
}

func TestBuildRejects(t *testing.T) {
	tests := map[string]Request{
		"zero limit":     {Dialect: DialectDB2i, Library: "QSYS", Journal: "QAUDJRN"},
		"no journal":     {Dialect: DialectDB2i, Library: "QSYS", Limit: 1},
		"no library":     {Dialect: DialectDB2i, Journal: "QAUDJRN", Limit: 1},
		"bad identifier": {Dialect: DialectSQLite, Journal: `j"; DROP TABLE x; --`, Limit: 1},
		"bad dialect":    {Dialect: "oracle", Library: "QSYS", Journal: "QAUDJRN", Limit: 1},
	}
	for name, req := range tests {
		t.Run(name, func(t *testing.T) {
			if _, _, err := Build(req); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestParseDialect(t *testing.T) {
	for in, want := range map[string]Dialect{"": DialectDB2i, "DB2I": DialectDB2i, "sqlite": DialectSQLite} {
		got, err := ParseDialect(in)
		if err != nil || got != want {
			t.Errorf("ParseDialect(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseDialect("mysql"); err == nil {
		t.Error("expected error for mysql")
	}
}

func TestSourceDSN(t *testing.T) {
	src := Source{Dialect: DialectDB2i, Host: "pub400.com", User: "bob", Password: "pw", Driver: "IBM i Access ODBC Driver"}
	if src.DriverName() != "odbc" {
		t.Errorf("DriverName = %q", src.DriverName())
	}
	want := "DRIVER={IBM i Access ODBC Driver};SYSTEM=pub400.com;UID=bob;PWD=pw;DBQ=,QGPL;"
	if src.DSN() != want {
		t.Errorf("DSN = %q", src.DSN())
	}

	lite := Source{Dialect: DialectSQLite, Host: "/tmp/j.db"}
	if lite.DriverName() != "sqlite" || lite.DSN() != "/tmp/j.db" {
		t.Errorf("sqlite source = %q %q", lite.DriverName(), lite.DSN())
	}
}

func TestSequenceScan(t *testing.T) {
	tests := []struct {
		src  any
		want uint64
	}{
		{int64(42), 42},
		{"42", 42},
		{[]byte("00042"), 42},
		{"1234.000", 1234},
		{" 77 ", 77},
		{float64(9), 9},
		{"18446744073709551615", 18446744073709551615},
	}
	for _, tt := range tests {
		var s sequence
		if err := s.Scan(tt.src); err != nil {
			t.Errorf("Scan(%#v): %v", tt.src, err)
			continue
		}
		if uint64(s) != tt.want {
			t.Errorf("Scan(%#v) = %d, want %d", tt.src, s, tt.want)
		}
	}

	for _, bad := range []any{nil, int64(-1), "12.5", "abc", float64(1.5), true} {
		var s sequence
		if err := s.Scan(bad); err == nil {
			t.Errorf("Scan(%#v) expected error", bad)
		}
	}
}
