// Package cameras shows UniFi Protect camera feeds on the dashboard.
// Live video is restreamed through go2rtc; camera status and motion
// events arrive over the NVR's WebSocket update feed, so the widget
// refreshes the moment something moves instead of on a poll timer.
package cameras

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"log"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/homedash/backend/internal/config"
	"github.com/homedash/backend/internal/integration"
)

//go:embed widget.html
var widgetHTML string

var widgetTmpl = template.Must(template.New("cameras").Parse(widgetHTML))

const motionCacheSize = 20

type settings struct {
	Host              string `yaml:"host"`
	Username          string `yaml:"username"`
	Password          string `yaml:"password"`
	VerifySSL         bool   `yaml:"verify_ssl"`
	Go2rtcURL         string `yaml:"go2rtc_url"`
	Go2rtcExternalURL string `yaml:"go2rtc_external_url"`
	DefaultStreamType string `yaml:"default_stream_type"`
	LiveEvents        *bool  `yaml:"live_events"`
}

// CameraView is one camera as shown in the widget.
type CameraView struct {
	ID             string
	Name           string
	Status         string
	Recording      bool
	MotionDetected bool
	LastMotion     string
	Model          string
	Resolution     string
	WebRTCURL      string
	MJPEGURL       string
	HLSURL         string
}

// MotionEvent is one motion detection, newest first in the widget.
type MotionEvent struct {
	CameraID   string
	CameraName string
	Timestamp  time.Time
	Score      int
}

// Snapshot is the camera wall state for one render.
type Snapshot struct {
	Cameras           []CameraView
	MotionEvents      []MotionEvent
	DefaultStreamType string
}

type Source struct {
	protect       *protectClient
	go2rtc        *go2rtcClient
	defaultStream streamType
	liveEvents    bool

	mu           sync.Mutex
	initialized  bool
	cameraNames  map[string]string
	motionEvents []MotionEvent
}

func New(creds *config.Credentials) (integration.Integration, error) {
	cfg := settings{
		Go2rtcURL:         "http://go2rtc:1984",
		DefaultStreamType: "webrtc",
	}
	if err := creds.Decode("cameras", &cfg); err != nil {
		return nil, err
	}
	if cfg.Host == "" || cfg.Username == "" || cfg.Password == "" {
		return nil, errors.New("cameras: host, username, and password are required")
	}

	host, port, err := splitHost(cfg.Host)
	if err != nil {
		return nil, fmt.Errorf("cameras: %w", err)
	}

	protect, err := newProtectClient(host, port, cfg.Username, cfg.Password, cfg.VerifySSL)
	if err != nil {
		return nil, err
	}

	return &Source{
		protect:       protect,
		go2rtc:        newGo2rtcClient(cfg.Go2rtcURL, cfg.Go2rtcExternalURL),
		defaultStream: streamType(cfg.DefaultStreamType),
		liveEvents:    cfg.LiveEvents == nil || *cfg.LiveEvents,
		cameraNames:   map[string]string{},
	}, nil
}

func splitHost(raw string) (host string, port int, err error) {
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return "", 0, fmt.Errorf("invalid host %q: %w", raw, err)
	}

	host = parsed.Hostname()
	if host == "" {
		return "", 0, fmt.Errorf("invalid host %q", raw)
	}

	port = 443
	if parsed.Port() != "" {
		port, err = strconv.Atoi(parsed.Port())
		if err != nil {
			return "", 0, fmt.Errorf("invalid port in %q: %w", raw, err)
		}
	}
	return host, port, nil
}

func (s *Source) Name() string                   { return "cameras" }
func (s *Source) DisplayName() string            { return "Cameras" }
func (s *Source) RefreshInterval() time.Duration { return 30 * time.Second }

// initialize connects to the NVR and registers camera streams with
// go2rtc on first use. Registration failures are not fatal, streams
// declared in go2rtc.yaml keep working.
func (s *Source) initialize(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.initialized {
		return nil
	}

	if err := s.protect.login(ctx); err != nil {
		return err
	}

	boot, err := s.protect.bootstrap(ctx)
	if err != nil {
		return err
	}
	for _, cam := range boot.Cameras {
		s.cameraNames[cam.ID] = cam.Name
	}

	if !s.go2rtc.checkHealth(ctx) {
		log.Printf("go2rtc not responding at %s, camera streams may not play", s.go2rtc.baseURL)
	}

	registered := 0
	for _, cam := range boot.Cameras {
		rtsp := s.protect.rtspURL(cam)
		if rtsp == "" {
			log.Printf("No RTSP URL for camera %s", cam.Name)
			continue
		}
		if err := s.go2rtc.registerStream(ctx, streamName(cam.Name), rtsp); err != nil {
			log.Printf("Could not register stream for %s: %v", cam.Name, err)
			continue
		}
		registered++
	}
	log.Printf("Registered %d/%d camera streams with go2rtc", registered, len(boot.Cameras))

	s.initialized = true
	return nil
}

func (s *Source) Fetch(ctx context.Context) (any, error) {
	if err := s.initialize(ctx); err != nil {
		return nil, err
	}

	boot, err := s.protect.bootstrap(ctx)
	if err != nil {
		return nil, err
	}

	snap := Snapshot{DefaultStreamType: string(s.defaultStream)}
	for _, cam := range boot.Cameras {
		name := streamName(cam.Name)
		view := CameraView{
			ID:             cam.ID,
			Name:           cam.Name,
			Status:         cameraStatus(cam.State),
			Recording:      cam.IsRecording,
			MotionDetected: cam.IsMotionDetected,
			Model:          cam.Type,
			WebRTCURL:      s.go2rtc.streamURL(name, streamWebRTC),
			MJPEGURL:       s.go2rtc.streamURL(name, streamMJPEG),
			HLSURL:         s.go2rtc.streamURL(name, streamHLS),
		}
		if cam.LastMotion > 0 {
			view.LastMotion = time.UnixMilli(cam.LastMotion).Format("15:04:05")
		}
		if len(cam.Channels) > 0 {
			view.Resolution = fmt.Sprintf("%dx%d", cam.Channels[0].Width, cam.Channels[0].Height)
		}
		snap.Cameras = append(snap.Cameras, view)
	}

	s.mu.Lock()
	for _, cam := range boot.Cameras {
		s.cameraNames[cam.ID] = cam.Name
	}
	if len(s.motionEvents) == 0 {
		// First load: pull recent history so the widget is not empty
		// until something moves.
		if events, err := s.protect.recentMotionEvents(ctx, 6*time.Hour, motionCacheSize); err == nil {
			for _, ev := range events {
				s.motionEvents = append(s.motionEvents, MotionEvent{
					CameraID:   ev.Camera,
					CameraName: s.cameraNames[ev.Camera],
					Timestamp:  time.UnixMilli(ev.Start),
					Score:      ev.Score,
				})
			}
		} else {
			log.Printf("Could not fetch motion history: %v", err)
		}
	}
	snap.MotionEvents = append([]MotionEvent(nil), s.motionEvents...)
	s.mu.Unlock()

	return snap, nil
}

func (s *Source) Render(data any) (string, error) {
	snap, ok := data.(Snapshot)
	if !ok {
		return "", fmt.Errorf("cameras: unexpected data type %T", data)
	}

	var b strings.Builder
	if err := widgetTmpl.Execute(&b, snap); err != nil {
		return "", err
	}
	return b.String(), nil
}

// OpenStream subscribes to the NVR's update feed. With live_events
// disabled in the credentials the integration falls back to polling.
func (s *Source) OpenStream(ctx context.Context) (integration.Stream, error) {
	if !s.liveEvents {
		return nil, fmt.Errorf("live events disabled: %w", integration.ErrStreamingUnsupported)
	}

	if err := s.initialize(ctx); err != nil {
		return nil, err
	}

	conn, err := s.protect.dialUpdates(ctx)
	if err != nil {
		return nil, err
	}
	return newEventStream(s, conn), nil
}

func (s *Source) recordMotion(ev MotionEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.motionEvents = append([]MotionEvent{ev}, s.motionEvents...)
	if len(s.motionEvents) > motionCacheSize {
		s.motionEvents = s.motionEvents[:motionCacheSize]
	}
}

func (s *Source) cameraName(id string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cameraNames[id]
}

func streamName(cameraName string) string {
	return strings.ReplaceAll(strings.ToLower(cameraName), " ", "_")
}

func cameraStatus(state string) string {
	if strings.EqualFold(state, "CONNECTED") {
		return "online"
	}
	return "offline"
}

// --- event stream ---

type updateEvent struct {
	motion *MotionEvent
}

// eventStream adapts the NVR's WebSocket update feed. A pump goroutine
// reads and decodes frames; Next blocks on the decoded events.
type eventStream struct {
	src       *Source
	conn      *websocket.Conn
	events    chan updateEvent
	errs      chan error
	first     bool
	closeOnce sync.Once
}

func newEventStream(src *Source, conn *websocket.Conn) *eventStream {
	es := &eventStream{
		src:    src,
		conn:   conn,
		events: make(chan updateEvent, 16),
		errs:   make(chan error, 1),
		first:  true,
	}
	go es.pump()
	return es
}

func (es *eventStream) pump() {
	for {
		_, msg, err := es.conn.ReadMessage()
		if err != nil {
			es.errs <- err
			return
		}

		action, data, err := decodeUpdate(msg)
		if err != nil {
			log.Printf("Skipping malformed camera update: %v", err)
			continue
		}

		switch action.ModelKey {
		case "camera":
			select {
			case es.events <- updateEvent{}:
			default: // viewer is slow; a later update will re-render anyway
			}
		case "event":
			if ev := motionFromUpdate(action, data, es.src.cameraName); ev != nil {
				select {
				case es.events <- updateEvent{motion: ev}:
				default:
				}
			}
		}
	}
}

// motionFromUpdate extracts a motion event from an "add" update on the
// event model. Other event updates (end-of-event, smart detections) are
// ignored.
func motionFromUpdate(action updateAction, data map[string]json.RawMessage, nameOf func(string) string) *MotionEvent {
	if action.Action != "add" || data == nil {
		return nil
	}

	var evType string
	if raw, ok := data["type"]; ok {
		json.Unmarshal(raw, &evType)
	}
	if evType != "motion" {
		return nil
	}

	ev := &MotionEvent{}
	if raw, ok := data["camera"]; ok {
		json.Unmarshal(raw, &ev.CameraID)
	}
	if ev.CameraID == "" {
		return nil
	}
	ev.CameraName = nameOf(ev.CameraID)

	var startMilli int64
	if raw, ok := data["start"]; ok {
		json.Unmarshal(raw, &startMilli)
	}
	ev.Timestamp = time.UnixMilli(startMilli)

	if raw, ok := data["score"]; ok {
		json.Unmarshal(raw, &ev.Score)
	}
	return ev
}

func (es *eventStream) Next(ctx context.Context) (any, error) {
	if es.first {
		es.first = false
		return es.src.Fetch(ctx)
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case err := <-es.errs:
		if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			return nil, io.EOF
		}
		return nil, err
	case ev := <-es.events:
		if ev.motion != nil {
			es.src.recordMotion(*ev.motion)
			log.Printf("Motion on %s at %s", ev.motion.CameraName, ev.motion.Timestamp.Format("15:04:05"))
		}
		return es.src.Fetch(ctx)
	}
}

func (es *eventStream) Close() error {
	var err error
	es.closeOnce.Do(func() {
		err = es.conn.Close()
	})
	return err
}
