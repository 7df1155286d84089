package main

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"
)

// maxMessageSize bounds a single length-prefixed message. Whole article
// texts fit comfortably.
const maxMessageSize = 64 << 20

// SocketClient connects to a running socket server
type SocketClient struct {
	conn net.Conn
}

// NewSocketClient connects to a running socket server
func NewSocketClient(socketPath string) (*SocketClient, error) {
	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to socket server at %s: %w", socketPath, err)
	}

	return &SocketClient{conn: conn}, nil
}

// Close closes the connection to the socket server
func (sc *SocketClient) Close() error {
	if sc.conn != nil {
		return sc.conn.Close()
	}
	return nil
}

// RawResponse is Response with the result left undecoded.
type RawResponse struct {
	Success bool            `json:"success"`
	Result  json.RawMessage `json:"result"`
	Error   string          `json:"error"`
}

// Execute sends one command and returns the server's response envelope
func (sc *SocketClient) Execute(cmd Command) (*RawResponse, error) {
	cmdJSON, err := json.Marshal(cmd)
	if err != nil {
		return nil, err
	}
	if err := writeMessage(sc.conn, cmdJSON); err != nil {
		return nil, fmt.Errorf("send command: %w", err)
	}
	data, err := readMessage(sc.conn)
	if err != nil {
		return nil, fmt.Errorf("receive response: %w", err)
	}

	var resp RawResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return &resp, nil
}

// SocketServer serves a WikiTextCore over a Unix domain socket. Clients share
// one session; commands are applied one at a time.
type SocketServer struct {
	socketPath string
	core       *WikiTextCore
	logger     *slog.Logger
	listener   net.Listener
	mu         sync.Mutex // guards core
	done       chan struct{}
	stopped    chan struct{} // Closed when server has fully shut down
	stopOnce   sync.Once
}

// NewSocketServer creates a new socket server instance
func NewSocketServer(socketPath string, core *WikiTextCore, logger *slog.Logger) *SocketServer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &SocketServer{
		socketPath: socketPath,
		core:       core,
		logger:     logger,
		done:       make(chan struct{}),
		stopped:    make(chan struct{}),
	}
}

// Start begins listening on the Unix domain socket
func (ss *SocketServer) Start() error {
	// Remove existing socket file if it exists
	if err := os.Remove(ss.socketPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", ss.socketPath)
	if err != nil {
		return fmt.Errorf("failed to listen on socket %s: %w", ss.socketPath, err)
	}

	ss.listener = listener
	ss.logger.Info("Socket server listening", "path", ss.socketPath)

	go ss.handleSignals()
	go ss.acceptConnections()

	return nil
}

// acceptConnections accepts incoming connections (multiple clients supported)
func (ss *SocketServer) acceptConnections() {
	for {
		conn, err := ss.listener.Accept()
		if err != nil {
			select {
			case <-ss.done:
				return
			default:
				ss.logger.Error("Error accepting connection", "error", err)
				continue
			}
		}

		go ss.handleClient(conn)
	}
}

// handleClient handles communication with a connected client
func (ss *SocketServer) handleClient(conn net.Conn) {
	defer conn.Close()
	ss.logger.Debug("Client connected")

	for {
		data, err := readMessage(conn)
		if err != nil {
			if errors.Is(err, io.EOF) {
				ss.logger.Debug("Client disconnected")
				return
			}
			select {
			case <-ss.done:
			default:
				ss.logger.Error("Error reading from client", "error", err)
			}
			return
		}

		response := ss.execute(string(data))

		if err := writeMessage(conn, []byte(response)); err != nil {
			ss.logger.Error("Error writing to client", "error", err)
			return
		}
	}
}

// execute runs one command against the shared core
func (ss *SocketServer) execute(cmdJSON string) string {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	return ss.core.ExecuteCommand(cmdJSON)
}

// handleSignals sets up graceful shutdown on signals
func (ss *SocketServer) handleSignals() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case sig := <-sigChan:
		ss.logger.Info("Shutting down", "signal", sig.String())
		ss.Stop()
	case <-ss.done:
	}
}

// Stop gracefully shuts down the socket server. It is safe to call more
// than once.
func (ss *SocketServer) Stop() error {
	var err error
	ss.stopOnce.Do(func() {
		close(ss.done)

		if ss.listener != nil {
			err = ss.listener.Close()
		}

		if rmErr := os.Remove(ss.socketPath); rmErr != nil && !os.IsNotExist(rmErr) {
			ss.logger.Warn("Failed to remove socket file", "path", ss.socketPath, "error", rmErr)
		}

		close(ss.stopped)
	})
	return err
}

// Wait blocks until the server is fully shut down
func (ss *SocketServer) Wait() {
	<-ss.stopped
}

// ============================================================================
// Length-Prefixed Protocol Implementation
// ============================================================================

// readMessage reads a single message (4-byte big-endian length + data)
func readMessage(r io.Reader) ([]byte, error) {
	lengthBuf := make([]byte, 4)
	if _, err := io.ReadFull(r, lengthBuf); err != nil {
		return nil, err
	}

	length := binary.BigEndian.Uint32(lengthBuf)
	if length > maxMessageSize {
		return nil, fmt.Errorf("message of %d bytes exceeds limit of %d", length, maxMessageSize)
	}

	data := make([]byte, length)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, err
	}

	return data, nil
}

// writeMessage writes a single message (4-byte big-endian length + data)
func writeMessage(w io.Writer, data []byte) error {
	buf := make([]byte, 4+len(data))
	binary.BigEndian.PutUint32(buf, uint32(len(data)))
	copy(buf[4:], data)

	_, err := w.Write(buf)
	return err
}
