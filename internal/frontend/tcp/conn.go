package tcp

import (
	"bufio"
	"io"
	"net"
	"strings"
	"sync"
	"time"
)

// Conn wraps a TCP connection carrying one message per line.
type Conn struct {
	raw     net.Conn
	scanner *bufio.Scanner
	mu      sync.Mutex

	readTimeout  time.Duration
	writeTimeout time.Duration
}

// NewConn wraps raw. Lines longer than maxLine bytes fail the read.
//
// Precondition: raw must be a valid, open network connection; maxLine > 0.
// Postcondition: Returns a Conn ready for reading and writing.
func NewConn(raw net.Conn, maxLine int, readTimeout, writeTimeout time.Duration) *Conn {
	scanner := bufio.NewScanner(raw)
	scanner.Buffer(make([]byte, 0, min(maxLine, 4096)), maxLine)
	return &Conn{
		raw:          raw,
		scanner:      scanner,
		readTimeout:  readTimeout,
		writeTimeout: writeTimeout,
	}
}

// ReadLine returns the next line without its trailing \r\n or \n.
//
// Postcondition: Returns io.EOF once the peer closes cleanly.
func (c *Conn) ReadLine() (string, error) {
	if c.readTimeout > 0 {
		_ = c.raw.SetReadDeadline(time.Now().Add(c.readTimeout))
	}
	if !c.scanner.Scan() {
		if err := c.scanner.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return strings.TrimSuffix(c.scanner.Text(), "\r"), nil
}

// WriteLine sends text followed by \n.
//
// Precondition: text should not contain newline characters.
func (c *Conn) WriteLine(text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.writeTimeout > 0 {
		_ = c.raw.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}
	_, err := io.WriteString(c.raw, text+"\n")
	return err
}

// RemoteAddr returns the peer address.
func (c *Conn) RemoteAddr() string {
	return c.raw.RemoteAddr().String()
}

// Close closes the underlying connection. Safe to call more than once.
func (c *Conn) Close() error {
	return c.raw.Close()
}
