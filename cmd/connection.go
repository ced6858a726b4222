// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 czeck6

package cmd

import (
	"bufio"
	"context"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"go.bug.st/serial"
	"golang.org/x/term"

	"github.com/czeck6/KUNKIN-Load-Controller/pkg/kiprim"
	"github.com/czeck6/KUNKIN-Load-Controller/pkg/kunkin"
)

// Connection is the byte channel handed to the device drivers. Both
// transports provide bounded reads and a way to discard stale input, which
// the half-duplex drain loop depends on.
type Connection interface {
	io.ReadWriteCloser
	SetReadTimeout(t time.Duration) error
	ResetInputBuffer() error
}

// SerialConnection wraps a serial port
type SerialConnection struct {
	port serial.Port
}

func (s *SerialConnection) Read(p []byte) (int, error) {
	return s.port.Read(p)
}

func (s *SerialConnection) Write(p []byte) (int, error) {
	return s.port.Write(p)
}

func (s *SerialConnection) Close() error {
	return s.port.Close()
}

func (s *SerialConnection) SetReadTimeout(t time.Duration) error {
	return s.port.SetReadTimeout(t)
}

func (s *SerialConnection) ResetInputBuffer() error {
	return s.port.ResetInputBuffer()
}

// ErrConnectionClosed is returned when reading from a closed WebSocket connection
var ErrConnectionClosed = fmt.Errorf("websocket connection closed")

// WebSocketConnection wraps a WebSocket serial bridge for byte-level access.
// A read past the configured timeout returns (0, nil), matching the serial
// port semantics the drivers expect.
type WebSocketConnection struct {
	conn        *websocket.Conn
	buf         []byte
	bufOffset   int
	readTimeout time.Duration
	closed      bool // Track if connection has failed/closed
}

func (w *WebSocketConnection) Read(p []byte) (int, error) {
	// Return immediately if connection is known to be closed
	if w.closed {
		return 0, ErrConnectionClosed
	}

	// If we have buffered data, return it first
	if w.bufOffset < len(w.buf) {
		n := copy(p, w.buf[w.bufOffset:])
		w.bufOffset += n
		return n, nil
	}

	if w.readTimeout > 0 {
		w.conn.SetReadDeadline(time.Now().Add(w.readTimeout))
	} else {
		w.conn.SetReadDeadline(time.Time{})
	}

	// Read next message from WebSocket (non-recursive loop to avoid stack overflow)
	for {
		messageType, data, err := w.conn.ReadMessage()
		if err != nil {
			// A deadline expiry is the bounded-read timeout, not a failure
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				return 0, nil
			}
			// Mark connection as closed to prevent further read attempts
			w.closed = true
			return 0, err
		}

		// The bridge carries raw serial bytes as binary messages only
		if messageType != websocket.BinaryMessage {
			continue
		}

		// Buffer the message and return what fits
		w.buf = data
		w.bufOffset = 0
		n := copy(p, w.buf)
		w.bufOffset = n
		return n, nil
	}
}

func (w *WebSocketConnection) Write(p []byte) (int, error) {
	err := w.conn.WriteMessage(websocket.BinaryMessage, p)
	if err != nil {
		return 0, err
	}
	return len(p), nil
}

func (w *WebSocketConnection) Close() error {
	return w.conn.Close()
}

func (w *WebSocketConnection) SetReadTimeout(t time.Duration) error {
	w.readTimeout = t
	return nil
}

// ResetInputBuffer drops any bytes already received but not yet consumed.
// Messages still in flight on the bridge cannot be discarded from here.
func (w *WebSocketConnection) ResetInputBuffer() error {
	w.buf = nil
	w.bufOffset = 0
	return nil
}

// OpenSerialConnection opens a serial port connection
func OpenSerialConnection(portName string, baudRate int) (Connection, error) {
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %v", portName, err)
	}

	return &SerialConnection{port: port}, nil
}

// OpenWebSocketConnection opens a WebSocket connection with HTTP Basic auth
func OpenWebSocketConnection(wsURL, username, password string, skipSSLVerify bool) (Connection, error) {
	// Parse and validate URL
	u, err := url.Parse(wsURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %v", err)
	}

	// Validate scheme
	switch u.Scheme {
	case "ws", "wss":
		// OK
	default:
		return nil, fmt.Errorf("unsupported URL scheme: %s (use ws:// or wss://)", u.Scheme)
	}

	// Create dialer with timeout
	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	// Configure TLS for wss://
	if u.Scheme == "wss" {
		dialer.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: skipSSLVerify,
		}
	}

	// Build HTTP headers with Basic auth
	headers := http.Header{}
	if username != "" && password != "" {
		credentials := base64.StdEncoding.EncodeToString([]byte(username + ":" + password))
		headers.Set("Authorization", "Basic "+credentials)
	}

	// Connect
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	conn, resp, err := dialer.DialContext(ctx, wsURL, headers)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("WebSocket connection failed (HTTP %d): %v", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("WebSocket connection failed: %v", err)
	}

	return &WebSocketConnection{conn: conn}, nil
}

// GetPassword retrieves password from environment or prompts user
func GetPassword() (string, error) {
	// First check environment variable
	if pw := os.Getenv("LOADCTL_PASSWORD"); pw != "" {
		return pw, nil
	}

	// Prompt user for password (hide input)
	fmt.Fprint(os.Stderr, "Password: ")

	// Read password without echo
	passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		// Fallback to regular input if terminal functions fail
		reader := bufio.NewReader(os.Stdin)
		password, err := reader.ReadString('\n')
		if err != nil {
			return "", fmt.Errorf("failed to read password: %v", err)
		}
		fmt.Fprintln(os.Stderr) // newline after password
		return strings.TrimSpace(password), nil
	}

	fmt.Fprintln(os.Stderr) // newline after password
	return string(passwordBytes), nil
}

// OpenLoadConnection opens the load's channel, serial or WebSocket,
// based on flags
func OpenLoadConnection() (Connection, string, error) {
	if wsURL != "" {
		// WebSocket bridge mode
		password := ""
		if wsUsername != "" {
			var err error
			password, err = GetPassword()
			if err != nil {
				return nil, "", err
			}
		}

		conn, err := OpenWebSocketConnection(wsURL, wsUsername, password, wsNoSSLVerify)
		if err != nil {
			return nil, "", err
		}

		return conn, fmt.Sprintf("WebSocket: %s", wsURL), nil
	}

	if loadPort != "" {
		// Serial mode
		conn, err := OpenSerialConnection(loadPort, loadBaud)
		if err != nil {
			return nil, "", err
		}

		return conn, fmt.Sprintf("Serial: %s @ %d baud", loadPort, loadBaud), nil
	}

	return nil, "", fmt.Errorf("either --load-port or --url must be specified")
}

// flagTiming builds the drain timing policy from the root flags.
func flagTiming() kunkin.Timing {
	return kunkin.Timing{
		SettleDelay:  time.Duration(settleMs) * time.Millisecond,
		InterReadGap: time.Duration(gapMs) * time.Millisecond,
		MaxWait:      time.Duration(maxWaitMs) * time.Millisecond,
	}
}

// openLoadDriver opens the load channel and wraps it in a driver session.
func openLoadDriver() (*kunkin.Driver, string, error) {
	conn, connInfo, err := OpenLoadConnection()
	if err != nil {
		return nil, "", err
	}

	driver := kunkin.NewDriver(conn, uint8(loadAddress))
	driver.SetTiming(flagTiming())
	return driver, connInfo, nil
}

// openSupply opens the power supply's serial channel. Returns (nil, nil)
// when no --ps-port was given; the supply is optional everywhere.
func openSupply() (*kiprim.Supply, error) {
	if psPort == "" {
		return nil, nil
	}
	conn, err := OpenSerialConnection(psPort, psBaud)
	if err != nil {
		return nil, err
	}
	return kiprim.NewSupply(conn), nil
}
