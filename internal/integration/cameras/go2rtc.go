package cameras

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

type streamType string

const (
	streamWebRTC streamType = "webrtc"
	streamMJPEG  streamType = "mjpeg"
	streamHLS    streamType = "hls"
)

// go2rtcClient talks to a go2rtc instance that restreams the cameras'
// RTSP feeds into formats browsers can play. baseURL is how the dashboard
// reaches go2rtc, externalURL is how the viewer's browser does.
type go2rtcClient struct {
	baseURL     string
	externalURL string
	http        *http.Client
}

func newGo2rtcClient(baseURL, externalURL string) *go2rtcClient {
	if externalURL == "" {
		externalURL = "http://localhost:1984"
	}
	return &go2rtcClient{
		baseURL:     strings.TrimRight(baseURL, "/"),
		externalURL: strings.TrimRight(externalURL, "/"),
		http:        &http.Client{Timeout: 10 * time.Second},
	}
}

func (g *go2rtcClient) checkHealth(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/api/streams", nil)
	if err != nil {
		return false
	}
	resp, err := g.http.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	return resp.StatusCode == http.StatusOK
}

// registerStream adds an RTSP source under the given name. Registration
// can fail when the go2rtc config is read-only; streams pre-declared in
// go2rtc.yaml still work, so callers treat failure as non-fatal.
func (g *go2rtcClient) registerStream(ctx context.Context, name, rtspURL string) error {
	body, err := json.Marshal(map[string]any{
		"streams": map[string][]string{name: {rtspURL}},
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, g.baseURL+"/api/config", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("registering stream %q: %s", name, resp.Status)
	}
	return nil
}

// streamURL builds the browser-facing playback URL for a registered
// stream.
func (g *go2rtcClient) streamURL(name string, typ streamType) string {
	src := url.QueryEscape(name)

	switch typ {
	case streamWebRTC:
		ws := strings.Replace(g.externalURL, "https://", "wss://", 1)
		ws = strings.Replace(ws, "http://", "ws://", 1)
		return ws + "/api/ws?src=" + src
	case streamMJPEG:
		return g.externalURL + "/api/stream.mjpeg?src=" + src
	case streamHLS:
		return g.externalURL + "/api/stream.m3u8?src=" + src
	}
	return ""
}
