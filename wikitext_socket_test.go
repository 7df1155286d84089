package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"net"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func startTestServer(t *testing.T) (*SocketServer, string) {
	t.Helper()
	socketPath := filepath.Join(t.TempDir(), "wt.sock")

	server := NewSocketServer(socketPath, newTestCore(), nil)
	if err := server.Start(); err != nil {
		t.Fatalf("Failed to start socket server: %v", err)
	}
	t.Cleanup(func() { server.Stop() })
	return server, socketPath
}

// TestSocketServerStart tests that the socket server starts correctly
func TestSocketServerStart(t *testing.T) {
	_, socketPath := startTestServer(t)

	if _, err := os.Stat(socketPath); err != nil {
		t.Fatalf("Socket file not created: %v", err)
	}
}

// TestSocketServerStop tests that Stop removes the socket and unblocks Wait
func TestSocketServerStop(t *testing.T) {
	server, socketPath := startTestServer(t)

	if err := server.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	server.Wait()

	if _, err := os.Stat(socketPath); !os.IsNotExist(err) {
		t.Errorf("Socket file should be removed, stat error: %v", err)
	}
	// A second Stop is a no-op.
	server.Stop()
}

// TestLengthPrefixedProtocol tests the length-prefixed message protocol
func TestLengthPrefixedProtocol(t *testing.T) {
	_, socketPath := startTestServer(t)

	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		t.Fatalf("Failed to connect to socket: %v", err)
	}
	defer conn.Close()

	if err := writeMessage(conn, []byte(`{"action":"list_operations","params":{}}`)); err != nil {
		t.Fatalf("Failed to send message: %v", err)
	}

	response, err := readMessage(conn)
	if err != nil {
		t.Fatalf("Failed to receive message: %v", err)
	}

	var resp Response
	if err := json.Unmarshal(response, &resp); err != nil {
		t.Fatalf("Response is not valid JSON: %v", err)
	}
	if !resp.Success {
		t.Errorf("Expected successful response, got: %+v", resp)
	}
}

func TestMessageRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	payload := []byte(`{"action":"get_stats"}`)

	if err := writeMessage(&buf, payload); err != nil {
		t.Fatalf("writeMessage failed: %v", err)
	}
	if buf.Len() != 4+len(payload) {
		t.Fatalf("Expected %d bytes, got %d", 4+len(payload), buf.Len())
	}
	if got := buf.Bytes()[:4]; !bytes.Equal(got, []byte{0, 0, 0, byte(len(payload))}) {
		t.Errorf("Expected big-endian length prefix, got %v", got)
	}

	data, err := readMessage(&buf)
	if err != nil {
		t.Fatalf("readMessage failed: %v", err)
	}
	if !bytes.Equal(data, payload) {
		t.Errorf("Expected %q, got %q", payload, data)
	}
}

func TestReadMessageRejectsOversized(t *testing.T) {
	buf := bytes.NewReader([]byte{0xff, 0xff, 0xff, 0xff})
	if _, err := readMessage(buf); err == nil {
		t.Error("Expected error for oversized message")
	}
}

// TestSocketClientCommands drives a session through the WikiTextCommands
// interface over the socket.
func TestSocketClientCommands(t *testing.T) {
	_, socketPath := startTestServer(t)

	client, err := NewSocketClient(socketPath)
	if err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	defer client.Close()

	var commands WikiTextCommands = NewSocketClientCommands(client, nil)

	commands.SetInputText("{{Foo|a|k=v}} {{Nope}}")

	expected := "ParsedTemplate(name is Foo, params are [1st (unnamed): a, k: v]) {{Nope}}"
	if got := commands.GetOutputText(); got != expected {
		t.Errorf("Expected %q, got %q", expected, got)
	}
	if got := commands.GetInputText(); got != "{{Foo|a|k=v}} {{Nope}}" {
		t.Errorf("Unexpected input %q", got)
	}

	templates := commands.GetTemplates()
	if len(templates) != 1 || templates[0].Name != "Foo" || len(templates[0].Params) != 2 {
		t.Fatalf("Unexpected templates: %+v", templates)
	}
	if p := templates[0].Params[1]; p.Key != "k" || p.Value != "v" {
		t.Errorf("Unexpected named parameter %+v", p)
	}

	if stats := commands.GetStats(); stats.Resolved != 1 || stats.FalsePositives != 1 || stats.Unique != 1 {
		t.Errorf("Unexpected stats %+v", stats)
	}
	if stats := commands.GetLastStats(); stats.Resolved != 1 {
		t.Errorf("Unexpected last stats %+v", stats)
	}
	if names := commands.GetKnownNames(); len(names) != 1 || names[0] != "Foo" {
		t.Errorf("Unexpected known names %v", names)
	}

	if known, _ := commands.CheckName("bar"); !known {
		t.Error("Expected bar to be known")
	}

	if err := commands.SetPreprocess([]string{"Bogus"}); err == nil {
		t.Error("Expected error for unknown preprocess operation")
	}
	if err := commands.SetPreprocess([]string{"Trim"}); err != nil {
		t.Errorf("SetPreprocess failed: %v", err)
	}
	if ops := commands.GetPreprocess(); len(ops) != 1 || ops[0] != "Trim" {
		t.Errorf("Unexpected preprocess %v", ops)
	}

	data, err := commands.ExportTemplates()
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	var export TemplateExport
	if err := json.Unmarshal([]byte(data), &export); err != nil {
		t.Fatalf("Export is not valid JSON: %v", err)
	}

	commands.ResetSession()
	if stats := commands.GetStats(); stats.Resolved != 0 || stats.Unique != 0 {
		t.Errorf("Expected zeroed stats after reset, got %+v", stats)
	}
}

func TestSocketClientExecute(t *testing.T) {
	_, socketPath := startTestServer(t)

	client, err := NewSocketClient(socketPath)
	if err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	defer client.Close()

	resp, err := client.Execute(Command{Action: "get_preprocess"})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if !resp.Success || len(resp.Result) == 0 {
		t.Errorf("Expected a result, got %+v", resp)
	}

	resp, err = client.Execute(Command{Action: "frobnicate"})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if resp.Success || resp.Error == "" {
		t.Errorf("Expected an error response, got %+v", resp)
	}
}

// TestConcurrentClients checks that commands from several connections are
// applied one at a time to the shared session.
func TestConcurrentClients(t *testing.T) {
	_, socketPath := startTestServer(t)

	const clients = 8
	const perClient = 10

	var wg sync.WaitGroup
	errs := make(chan error, clients)
	for i := 0; i < clients; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			client, err := NewSocketClient(socketPath)
			if err != nil {
				errs <- err
				return
			}
			defer client.Close()

			for j := 0; j < perClient; j++ {
				resp, err := client.Execute(Command{
					Action: "set_input_text",
					Params: map[string]interface{}{"text": "{{Foo}}"},
				})
				if err != nil {
					errs <- err
					return
				}
				if !resp.Success {
					errs <- errors.New(resp.Error)
					return
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("Client failed: %v", err)
	}

	client, err := NewSocketClient(socketPath)
	if err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	defer client.Close()

	stats := NewSocketClientCommands(client, nil).GetStats()
	if stats.Resolved != clients*perClient {
		t.Errorf("Expected %d resolved, got %d", clients*perClient, stats.Resolved)
	}
}
