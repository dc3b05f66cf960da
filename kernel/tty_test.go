package kernel

import (
	"bytes"
	"testing"
)

func TestTtyReadBlocksThenDelivers(t *testing.T) {
	k, m := newTestKernel(t, 256, 1)
	caller := k.Running()

	data, blocked, err := k.TtyRead(caller, 0, 16)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !blocked || data != nil {
		t.Fatalf("expected a blocking empty read, got data=%q blocked=%v", data, blocked)
	}
	if caller.Reason != ReasonTtyRead {
		t.Fatalf("reason: got %v, want ReasonTtyRead", caller.Reason)
	}

	m.Feed(0, []byte("hi\n"))
	k.HandleTTYReceive(0)
	if caller.Reason != ReasonNone {
		t.Fatal("HandleTTYReceive should wake the blocked reader")
	}

	data, blocked, err = k.TtyRead(caller, 0, 16)
	if err != nil || blocked {
		t.Fatalf("redispatched read: blocked=%v err=%v", blocked, err)
	}
	if !bytes.Equal(data, []byte("hi\n")) {
		t.Fatalf("data: got %q, want %q", data, "hi\n")
	}
}

func TestTtyReadStopsAtFirstNewline(t *testing.T) {
	k, m := newTestKernel(t, 256, 1)
	caller := k.Running()

	m.Feed(0, []byte("ab\ncd"))
	k.HandleTTYReceive(0)

	data, blocked, err := k.TtyRead(caller, 0, 10)
	if err != nil || blocked {
		t.Fatalf("read: blocked=%v err=%v", blocked, err)
	}
	if !bytes.Equal(data, []byte("ab\n")) {
		t.Fatalf("a read spanning a newline should stop at it: got %q, want %q", data, "ab\n")
	}

	data, blocked, err = k.TtyRead(caller, 0, 10)
	if err != nil || blocked {
		t.Fatalf("second read: blocked=%v err=%v", blocked, err)
	}
	if !bytes.Equal(data, []byte("cd")) {
		t.Fatalf("remaining data: got %q, want %q", data, "cd")
	}
}

func TestTtyWriteChunksAcrossMaxLineLen(t *testing.T) {
	k, m := newTestKernel(t, 256, 1)
	caller := k.Running()
	maxLen := m.MaxLineLen()
	buf := bytes.Repeat([]byte{'a'}, maxLen+5)

	blocked, err := k.TtyWrite(caller, 0, buf)
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if !blocked {
		t.Fatal("a write longer than one chunk must block for the first chunk's completion")
	}
	if len(m.Transmitted(0)) != 1 || len(m.Transmitted(0)[0]) != maxLen {
		t.Fatalf("first chunk: got %v", m.Transmitted(0))
	}

	k.HandleTTYTransmit(0)
	if caller.Reason != ReasonNone {
		t.Fatal("completing the first chunk should wake the writer for redispatch")
	}

	blocked, err = k.TtyWrite(caller, 0, buf)
	if err != nil {
		t.Fatalf("second dispatch: %v", err)
	}
	if !blocked {
		t.Fatal("the final chunk still blocks until its own transmit completes")
	}
	if len(m.Transmitted(0)) != 2 || len(m.Transmitted(0)[1]) != 5 {
		t.Fatalf("second chunk: got %v", m.Transmitted(0))
	}

	k.HandleTTYTransmit(0)
	blocked, err = k.TtyWrite(caller, 0, buf)
	if err != nil {
		t.Fatalf("third dispatch: %v", err)
	}
	if blocked {
		t.Fatal("once every chunk's transmit has completed, TtyWrite should return without blocking")
	}
}

func TestTtyWriteSerializesConcurrentWriters(t *testing.T) {
	k, m := newTestKernel(t, 256, 1)
	first := k.Running()
	secondPID, err := k.Fork(first)
	if err != nil {
		t.Fatalf("fork: %v", err)
	}
	second := k.procs[secondPID]

	if blocked, err := k.TtyWrite(first, 0, []byte("a")); err != nil || !blocked {
		t.Fatalf("first write: blocked=%v err=%v", blocked, err)
	}
	blocked, err := k.TtyWrite(second, 0, []byte("b"))
	if err != nil {
		t.Fatalf("second write: %v", err)
	}
	if !blocked {
		t.Fatal("second writer must queue behind the in-flight transmit")
	}
	if second.Reason != ReasonTtyWrite {
		t.Fatalf("reason: got %v, want ReasonTtyWrite", second.Reason)
	}
	if len(m.Transmitted(0)) != 1 {
		t.Fatalf("only the first writer's chunk should have been transmitted so far: got %v", m.Transmitted(0))
	}
}
