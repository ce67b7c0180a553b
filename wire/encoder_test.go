package wire_test

import (
	"testing"

	"github.com/mkoncek/daiyousei/wire"
)

func TestEncoder_OpenThenFrameThenClose(t *testing.T) {
	var buf []byte
	buf = wire.Open(buf)
	e := wire.NewEncoder()
	buf = e.Frame(buf, []byte("some input"))
	buf = e.Close(buf)

	want := "l5:stdin10:some inpute"
	if string(buf) != want {
		t.Fatalf("buf=%q want %q", buf, want)
	}
}

func TestEncoder_EmptyChunkProducesNoFrame(t *testing.T) {
	var buf []byte
	e := wire.NewEncoder()
	buf = e.Frame(buf, nil)
	if len(buf) != 0 {
		t.Fatalf("buf=%q want empty", buf)
	}
}

func TestEncoder_CloseIsIdempotent(t *testing.T) {
	var buf []byte
	e := wire.NewEncoder()
	buf = e.Close(buf)
	buf = e.Close(buf)
	if string(buf) != "e" {
		t.Fatalf("buf=%q want a single 'e'", buf)
	}
	if !e.Closed() {
		t.Fatalf("Closed()=false want true")
	}
}

func TestEncoder_MultipleChunksPreserveOrder(t *testing.T) {
	var buf []byte
	e := wire.NewEncoder()
	buf = e.Frame(buf, []byte("AB"))
	buf = e.Frame(buf, []byte("CDE"))
	buf = e.Close(buf)

	want := "5:stdin2:AB5:stdin3:CDEe"
	if string(buf) != want {
		t.Fatalf("buf=%q want %q", buf, want)
	}
}
