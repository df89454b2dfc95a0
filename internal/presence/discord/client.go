package discord

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/genricoloni/nowplayingd/internal/domain"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrNotConnected is returned by StopActivity when there is no session to clear
var ErrNotConnected = errors.New("discord: not connected")

const (
	opHandshake uint32 = 0
	opFrame     uint32 = 1
	opClose     uint32 = 2

	rpcVersion     = 1
	activityType   = 2 // "Listening to"
	ioTimeout      = 5 * time.Second
	maxFrameSize   = 64 * 1024
	socketPrefix   = "discord-ipc-"
	maxSocketIndex = 10
)

// Client is a Discord Rich Presence client speaking the local IPC protocol.
// It connects lazily and reconnects on the next call after any I/O failure.
type Client struct {
	logger   *zap.Logger
	clientID string
	pid      int
	dial     func(ctx context.Context) (net.Conn, error)

	mu   sync.Mutex
	conn net.Conn
}

var _ domain.PresenceClient = (*Client)(nil)

// New creates a client for the given application id
func New(logger *zap.Logger, clientID string) *Client {
	return &Client{
		logger:   logger,
		clientID: clientID,
		pid:      os.Getpid(),
		dial:     dialSocket,
	}
}

type frame struct {
	Cmd   string          `json:"cmd"`
	Args  json.RawMessage `json:"args,omitempty"`
	Nonce string          `json:"nonce,omitempty"`
	Evt   string          `json:"evt,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type activityArgs struct {
	PID      int       `json:"pid"`
	Activity *activity `json:"activity"`
}

type activity struct {
	Type       int         `json:"type"`
	Details    string      `json:"details,omitempty"`
	State      string      `json:"state,omitempty"`
	Assets     *assets     `json:"assets,omitempty"`
	Timestamps *timestamps `json:"timestamps,omitempty"`
}

type assets struct {
	LargeImage string `json:"large_image,omitempty"`
	LargeText  string `json:"large_text,omitempty"`
	SmallImage string `json:"small_image,omitempty"`
	SmallText  string `json:"small_text,omitempty"`
}

type timestamps struct {
	Start int64 `json:"start"`
	End   int64 `json:"end"`
}

type errorData struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// SetActivity replaces the user's activity
func (c *Client) SetActivity(ctx context.Context, payload domain.PresencePayload) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.connectLocked(ctx); err != nil {
		return err
	}
	return c.setActivityLocked(ctx, toActivity(payload))
}

// StopActivity clears the activity on the current session
func (c *Client) StopActivity(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return ErrNotConnected
	}
	return c.setActivityLocked(ctx, nil)
}

// Close ends the session. Discord drops the activity when the socket closes.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(time.Second))
	_ = writeFrame(c.conn, opClose, []byte("{}"))
	err := c.conn.Close()
	c.conn = nil
	return err
}

func (c *Client) connectLocked(ctx context.Context) error {
	if c.conn != nil {
		return nil
	}

	conn, err := c.dial(ctx)
	if err != nil {
		return fmt.Errorf("discord: connect: %w", err)
	}
	setDeadline(ctx, conn)

	handshake, _ := json.Marshal(map[string]any{"v": rpcVersion, "client_id": c.clientID})
	if err := writeFrame(conn, opHandshake, handshake); err != nil {
		conn.Close()
		return fmt.Errorf("discord: handshake: %w", err)
	}
	op, body, err := readFrame(conn)
	if err != nil {
		conn.Close()
		return fmt.Errorf("discord: handshake: %w", err)
	}
	if op == opClose {
		conn.Close()
		return fmt.Errorf("discord: handshake rejected: %s", bytes.TrimSpace(body))
	}

	c.logger.Info("Connected to Discord", zap.String("clientID", c.clientID))
	c.conn = conn
	return nil
}

func (c *Client) setActivityLocked(ctx context.Context, act *activity) error {
	args, err := json.Marshal(activityArgs{PID: c.pid, Activity: act})
	if err != nil {
		return fmt.Errorf("discord: encode activity: %w", err)
	}
	request, err := json.Marshal(frame{Cmd: "SET_ACTIVITY", Args: args, Nonce: uuid.NewString()})
	if err != nil {
		return fmt.Errorf("discord: encode frame: %w", err)
	}

	setDeadline(ctx, c.conn)
	if err := writeFrame(c.conn, opFrame, request); err != nil {
		c.dropLocked()
		return fmt.Errorf("discord: send: %w", err)
	}

	op, body, err := readFrame(c.conn)
	if err != nil {
		c.dropLocked()
		return fmt.Errorf("discord: receive: %w", err)
	}
	if op == opClose {
		c.dropLocked()
		return fmt.Errorf("discord: connection closed by peer: %s", bytes.TrimSpace(body))
	}

	var response frame
	if err := json.Unmarshal(body, &response); err != nil {
		return fmt.Errorf("discord: decode response: %w", err)
	}
	if response.Evt == "ERROR" {
		var data errorData
		_ = json.Unmarshal(response.Data, &data)
		return fmt.Errorf("discord: %s (code %d)", data.Message, data.Code)
	}
	return nil
}

func (c *Client) dropLocked() {
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}

func toActivity(p domain.PresencePayload) *activity {
	act := &activity{
		Type:    activityType,
		Details: p.Details,
		State:   p.State,
		Assets: &assets{
			LargeImage: p.LargeImage,
			LargeText:  p.LargeText,
			SmallImage: p.SmallImage,
			SmallText:  p.SmallText,
		},
	}
	if p.Timestamps != nil {
		act.Timestamps = &timestamps{
			Start: p.Timestamps.Start.Unix(),
			End:   p.Timestamps.End.Unix(),
		}
	}
	return act
}

func setDeadline(ctx context.Context, conn net.Conn) {
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(ioTimeout)
	}
	_ = conn.SetDeadline(deadline)
}

// writeFrame writes a little-endian opcode and length header followed by the JSON body
func writeFrame(w io.Writer, op uint32, body []byte) error {
	buf := make([]byte, 8+len(body))
	binary.LittleEndian.PutUint32(buf[0:4], op)
	binary.LittleEndian.PutUint32(buf[4:8], uint32(len(body)))
	copy(buf[8:], body)
	_, err := w.Write(buf)
	return err
}

func readFrame(r io.Reader) (uint32, []byte, error) {
	var header [8]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return 0, nil, err
	}
	op := binary.LittleEndian.Uint32(header[0:4])
	size := binary.LittleEndian.Uint32(header[4:8])
	if size > maxFrameSize {
		return 0, nil, fmt.Errorf("frame too large: %d bytes", size)
	}
	body := make([]byte, size)
	if _, err := io.ReadFull(r, body); err != nil {
		return 0, nil, err
	}
	return op, body, nil
}

// socketCandidates lists the IPC socket paths in the order Discord clients probe them
func socketCandidates(getenv func(string) string) []string {
	var dirs []string
	seen := map[string]bool{}
	for _, key := range []string{"XDG_RUNTIME_DIR", "TMPDIR", "TMP", "TEMP"} {
		if dir := getenv(key); dir != "" && !seen[dir] {
			dirs = append(dirs, dir)
			seen[dir] = true
		}
	}
	if !seen["/tmp"] {
		dirs = append(dirs, "/tmp")
	}

	var paths []string
	for _, dir := range dirs {
		// Plain install, then Flatpak and Snap sandboxes
		for _, sub := range []string{"", "app/com.discordapp.Discord", "snap.discord"} {
			for i := 0; i < maxSocketIndex; i++ {
				paths = append(paths, filepath.Join(dir, sub, fmt.Sprintf("%s%d", socketPrefix, i)))
			}
		}
	}
	return paths
}

func dialSocket(ctx context.Context) (net.Conn, error) {
	var d net.Dialer
	var lastErr error
	for _, path := range socketCandidates(os.Getenv) {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		conn, err := d.DialContext(ctx, "unix", path)
		if err == nil {
			return conn, nil
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = errors.New("no discord-ipc socket found")
	}
	return nil, lastErr
}
