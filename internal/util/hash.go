package util

import (
	"fmt"
	"hash/fnv"
	"net"
)

// ConnTag derives a short tag from a TCP connection's 4-tuple so log lines
// of the same connection can be matched. It is not reversible.
func ConnTag(conn net.Conn) string {
	h := fnv.New32a()
	h.Write([]byte(conn.LocalAddr().String()))
	h.Write([]byte(conn.RemoteAddr().String()))
	return fmt.Sprintf("%08x", h.Sum32())
}
