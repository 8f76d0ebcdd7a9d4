package cursor

import (
	"errors"
	"testing"
)

func TestCompare(t *testing.T) {
	tests := []struct {
		name string
		a, b Cursor
		want int
	}{
		{"equal", New("R1", 10), New("R1", 10), 0},
		{"same receiver lower sequence", New("R1", 9), New("R1", 10), -1},
		{"same receiver higher sequence", New("R1", 11), New("R1", 10), 1},
		{"later receiver lower sequence", New("R2", 1), New("R1", 12), 1},
		{"earlier receiver higher sequence", New("R1", 900), New("R2", 1), -1},
		{"absent sorts first", Cursor{}, New("R1", 0), -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Compare(tt.b); got != tt.want {
				t.Errorf("Compare(%s, %s) = %d, want %d", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestAdvance(t *testing.T) {
	t.Run("forward within receiver", func(t *testing.T) {
		got, err := New("R1", 10).Advance(New("R1", 12))
		if err != nil {
			t.Fatalf("Advance: %v", err)
		}
		if got != New("R1", 12) {
			t.Errorf("got %s", got)
		}
	})

	t.Run("forward across receiver rollover", func(t *testing.T) {
		got, err := New("R1", 12).Advance(New("R2", 1))
		if err != nil {
			t.Fatalf("Advance: %v", err)
		}
		if got != New("R2", 1) {
			t.Errorf("got %s", got)
		}
	})

	t.Run("from absent", func(t *testing.T) {
		got, err := Cursor{}.Advance(New("R1", 1))
		if err != nil || got != New("R1", 1) {
			t.Errorf("got %s, %v", got, err)
		}
	})

	t.Run("receiver change trusts journal collation", func(t *testing.T) {
		// EBCDIC puts letters before digits, the reverse of byte order.
		cur := New("QAUDJRNA01", 50)
		got, err := cur.Advance(New("QAUDJRN001", 1))
		if err != nil {
			t.Fatalf("Advance: %v", err)
		}
		if got != New("QAUDJRN001", 1) {
			t.Errorf("got %s", got)
		}
	})

	for _, to := range []Cursor{New("R1", 12), New("R1", 3), {}} {
		t.Run("rejects "+to.String(), func(t *testing.T) {
			cur := New("R1", 12)
			got, err := cur.Advance(to)
			if !errors.Is(err, ErrRegression) {
				t.Fatalf("err = %v, want ErrRegression", err)
			}
			if got != cur {
				t.Errorf("cursor changed to %s", got)
			}
		})
	}
}

func TestString(t *testing.T) {
	if got := New("QAUDJRN0042", 7).String(); got != "QAUDJRN0042/7" {
		t.Errorf("String() = %q", got)
	}
	if got := (Cursor{}).String(); got != "<start>" {
		t.Errorf("zero String() = %q", got)
	}
}
