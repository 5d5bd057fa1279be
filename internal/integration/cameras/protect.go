package cameras

import (
	"bytes"
	"compress/zlib"
	"context"
	"crypto/tls"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// protectCamera is the subset of the UniFi Protect bootstrap camera object
// the widget needs.
type protectCamera struct {
	ID               string           `json:"id"`
	Name             string           `json:"name"`
	State            string           `json:"state"`
	IsRecording      bool             `json:"isRecording"`
	IsMotionDetected bool             `json:"isMotionDetected"`
	LastMotion       int64            `json:"lastMotion"`
	Type             string           `json:"type"`
	FirmwareVersion  string           `json:"firmwareVersion"`
	Channels         []protectChannel `json:"channels"`
}

type protectChannel struct {
	ID        int    `json:"id"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	RTSPAlias string `json:"rtspAlias"`
}

type protectEvent struct {
	ID     string `json:"id"`
	Type   string `json:"type"`
	Start  int64  `json:"start"`
	Camera string `json:"camera"`
	Score  int    `json:"score"`
}

type bootstrapData struct {
	Cameras      []protectCamera `json:"cameras"`
	LastUpdateID string          `json:"lastUpdateId"`
}

// protectClient talks to a UniFi Protect NVR: cookie login, bootstrap REST
// calls, and the binary update feed over WebSocket.
type protectClient struct {
	baseURL   string
	username  string
	password  string
	http      *http.Client
	tlsConfig *tls.Config

	csrfToken    string
	lastUpdateID string
}

func newProtectClient(host string, port int, username, password string, verifySSL bool) (*protectClient, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}

	tlsConfig := &tls.Config{InsecureSkipVerify: !verifySSL}
	return &protectClient{
		baseURL:   fmt.Sprintf("https://%s:%d", host, port),
		username:  username,
		password:  password,
		tlsConfig: tlsConfig,
		http: &http.Client{
			Timeout: 15 * time.Second,
			Jar:     jar,
			Transport: &http.Transport{
				TLSClientConfig: tlsConfig,
			},
		},
	}, nil
}

func (p *protectClient) login(ctx context.Context) error {
	body, err := json.Marshal(map[string]string{
		"username": p.username,
		"password": p.password,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/auth/login", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.http.Do(req)
	if err != nil {
		return fmt.Errorf("connecting to UniFi Protect: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("UniFi Protect login: %s", resp.Status)
	}

	p.csrfToken = resp.Header.Get("X-CSRF-Token")
	return nil
}

func (p *protectClient) bootstrap(ctx context.Context) (*bootstrapData, error) {
	var data bootstrapData
	if err := p.get(ctx, "/proxy/protect/api/bootstrap", &data); err != nil {
		return nil, fmt.Errorf("fetching bootstrap: %w", err)
	}
	p.lastUpdateID = data.LastUpdateID
	return &data, nil
}

// recentMotionEvents fetches historical motion events, newest first.
func (p *protectClient) recentMotionEvents(ctx context.Context, since time.Duration, limit int) ([]protectEvent, error) {
	now := time.Now()
	params := url.Values{}
	params.Set("start", fmt.Sprintf("%d", now.Add(-since).UnixMilli()))
	params.Set("end", fmt.Sprintf("%d", now.UnixMilli()))
	params.Set("types", "motion")

	var events []protectEvent
	if err := p.get(ctx, "/proxy/protect/api/events?"+params.Encode(), &events); err != nil {
		return nil, fmt.Errorf("fetching events: %w", err)
	}

	// The API returns oldest first.
	for i, j := 0, len(events)-1; i < j; i, j = i+1, j-1 {
		events[i], events[j] = events[j], events[i]
	}
	if len(events) > limit {
		events = events[:limit]
	}
	return events, nil
}

// rtspURL builds the stream URL for a camera, preferring the lower-quality
// H.264 channels that small boxes can decode.
func (p *protectClient) rtspURL(cam protectCamera) string {
	host := strings.TrimPrefix(p.baseURL, "https://")
	if i := strings.LastIndex(host, ":"); i > 0 {
		host = host[:i]
	}

	// Channel order of preference: medium, low, then high.
	for _, idx := range []int{1, 2, 0} {
		if idx < len(cam.Channels) && cam.Channels[idx].RTSPAlias != "" {
			return fmt.Sprintf("rtsps://%s:7441/%s", host, cam.Channels[idx].RTSPAlias)
		}
	}
	return ""
}

func (p *protectClient) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+path, nil)
	if err != nil {
		return err
	}
	if p.csrfToken != "" {
		req.Header.Set("X-CSRF-Token", p.csrfToken)
	}

	resp, err := p.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("UniFi Protect %s: %s", path, resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// dialUpdates opens the WebSocket update feed. The lastUpdateId from the
// most recent bootstrap tells the NVR where to resume.
func (p *protectClient) dialUpdates(ctx context.Context) (*websocket.Conn, error) {
	wsURL := "wss://" + strings.TrimPrefix(p.baseURL, "https://") + "/proxy/protect/ws/updates"
	if p.lastUpdateID != "" {
		wsURL += "?lastUpdateId=" + url.QueryEscape(p.lastUpdateID)
	}

	dialer := websocket.Dialer{
		TLSClientConfig:  p.tlsConfig,
		Jar:              p.http.Jar,
		HandshakeTimeout: 15 * time.Second,
	}

	header := http.Header{}
	if p.csrfToken != "" {
		header.Set("X-CSRF-Token", p.csrfToken)
	}

	conn, _, err := dialer.DialContext(ctx, wsURL, header)
	if err != nil {
		return nil, fmt.Errorf("dialing update feed: %w", err)
	}
	return conn, nil
}

// --- update frame decoding ---
//
// Each update message carries two packets, an action frame and a data
// frame. Every packet starts with an 8 byte header:
//
//	byte 0    packet type (1 action, 2 payload)
//	byte 1    payload format (1 JSON, 2 UTF-8 string, 3 buffer)
//	byte 2    deflated flag
//	byte 3    reserved
//	bytes 4-7 payload size, big endian

type updateAction struct {
	Action   string `json:"action"`
	ID       string `json:"id"`
	ModelKey string `json:"modelKey"`
}

const (
	packetHeaderSize  = 8
	payloadFormatJSON = 1
)

// decodeUpdate splits a raw update message into its action frame and data
// frame payload. Non-JSON payloads come back as a nil map.
func decodeUpdate(msg []byte) (updateAction, map[string]json.RawMessage, error) {
	var action updateAction

	actionPayload, rest, err := nextPacket(msg)
	if err != nil {
		return action, nil, fmt.Errorf("action frame: %w", err)
	}
	if err := json.Unmarshal(actionPayload, &action); err != nil {
		return action, nil, fmt.Errorf("action frame: %w", err)
	}

	dataPayload, _, err := nextPacket(rest)
	if err != nil {
		return action, nil, fmt.Errorf("data frame: %w", err)
	}

	var data map[string]json.RawMessage
	if json.Unmarshal(dataPayload, &data) != nil {
		data = nil
	}
	return action, data, nil
}

func nextPacket(msg []byte) (payload, rest []byte, err error) {
	if len(msg) < packetHeaderSize {
		return nil, nil, fmt.Errorf("truncated packet header (%d bytes)", len(msg))
	}

	format := msg[1]
	deflated := msg[2] == 1
	size := binary.BigEndian.Uint32(msg[4:8])

	end := packetHeaderSize + int(size)
	if end > len(msg) {
		return nil, nil, fmt.Errorf("packet payload overruns message (%d > %d)", end, len(msg))
	}
	payload = msg[packetHeaderSize:end]
	rest = msg[end:]

	if deflated {
		r, err := zlib.NewReader(bytes.NewReader(payload))
		if err != nil {
			return nil, nil, fmt.Errorf("inflating payload: %w", err)
		}
		defer r.Close()
		payload, err = io.ReadAll(r)
		if err != nil {
			return nil, nil, fmt.Errorf("inflating payload: %w", err)
		}
	}

	if format != payloadFormatJSON {
		return nil, rest, nil
	}
	return payload, rest, nil
}
