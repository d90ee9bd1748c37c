package tlog

import (
	"bytes"
	"log"
	"testing"
)

// Test that trimNewline() works as expected
func TestTrimNewline(t *testing.T) {
	testTable := []struct {
		in   string
		want string
	}{
		{"...\n", "..."},
		{"\n...\n", "\n..."},
		{"", ""},
		{"\n", ""},
		{"\n\n", "\n"},
		{"   ", "   "},
	}
	for _, v := range testTable {
		have := trimNewline(v.in)
		if v.want != have {
			t.Errorf("want=%q have=%q", v.want, have)
		}
	}
}

func TestToggle(t *testing.T) {
	var buf bytes.Buffer
	l := &toggledLogger{
		Logger:  log.New(&buf, "", 0),
		prefix:  "<",
		postfix: ">",
	}
	l.Printf("hidden %d", 1)
	if buf.Len() != 0 {
		t.Errorf("disabled logger wrote %q", buf.String())
	}
	l.Enabled = true
	l.Printf("shown %d\n", 2)
	if buf.String() != "<shown 2>\n" {
		t.Errorf("unexpected output %q", buf.String())
	}
}

func TestWpanic(t *testing.T) {
	var buf bytes.Buffer
	l := &toggledLogger{
		Enabled: true,
		Wpanic:  true,
		Logger:  log.New(&buf, "", 0),
	}
	defer func() {
		if r := recover(); r == nil {
			t.Error("Wpanic did not panic")
		}
	}()
	l.Println("boom")
}
