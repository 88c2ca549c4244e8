package util

import (
	"net"
	"testing"
)

func TestConnTag(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		c, _ := l.Accept()
		accepted <- c
	}()

	client, err := net.Dial("tcp", l.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	defer client.Close()
	server := <-accepted
	if server == nil {
		t.Fatal("accept failed")
	}
	defer server.Close()

	tag := ConnTag(client)
	if len(tag) != 8 {
		t.Fatalf("tag %q: want 8 hex chars", tag)
	}
	if tag != ConnTag(client) {
		t.Fatal("tag is not stable")
	}
	// swapped local/remote order hashes differently
	if tag == ConnTag(server) {
		t.Fatalf("client and server ends share tag %s", tag)
	}
}

func TestFormatBytes(t *testing.T) {
	cases := map[float64]string{
		0:           " 0.0   B",
		99:          "99.0   B",
		1536:        " 1.5 KiB",
		3 * 1 << 20: " 3.0 MiB",
	}
	for in, want := range cases {
		if got := FormatBytes(in); got != want {
			t.Errorf("FormatBytes(%v) = %q, want %q", in, got, want)
		}
	}
}
