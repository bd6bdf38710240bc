package render

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/jpeg"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/tauraamui/dragonlens/pkg/journal/models"
	"github.com/tauraamui/dragonlens/pkg/log"
	"github.com/tauraamui/dragonlens/pkg/pixelbuf"
	"github.com/tauraamui/xerror"
)

const (
	defaultJPEGQuality  = 80
	defaultHistoryLimit = 20
	maxHistoryLimit     = 500
)

// History reads back journalled recognitions.
type History interface {
	Latest(n int) ([]models.Recognition, error)
	FindByFrameID(frameID string) (models.Recognition, error)
}

// MJPEG serves displayed frames over HTTP as a Motion JPEG stream.
type MJPEG struct {
	addr    string
	quality int
	router  *mux.Router
	server  *http.Server

	mu      sync.Mutex
	running bool

	frameMu    sync.RWMutex
	current    []byte
	lastUpdate time.Time
	frameCount uint64

	clientsMu sync.RWMutex
	clients   map[chan []byte]struct{}

	historyMu sync.RWMutex
	history   History
}

func NewMJPEG(addr string, quality int) *MJPEG {
	if quality < 1 || quality > 100 {
		quality = defaultJPEGQuality
	}
	m := &MJPEG{
		addr:    addr,
		quality: quality,
		clients: map[chan []byte]struct{}{},
	}

	r := mux.NewRouter()
	r.HandleFunc("/stream", m.handleStream).Methods(http.MethodGet)
	r.HandleFunc("/snapshot", m.handleSnapshot).Methods(http.MethodGet)
	r.HandleFunc("/health", m.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/recognitions", m.handleRecognitions).Methods(http.MethodGet)
	r.HandleFunc("/recognitions/{frame_id}", m.handleRecognition).Methods(http.MethodGet)
	m.router = r

	return m
}

// SetHistory enables the /recognitions routes.
func (m *MJPEG) SetHistory(h History) {
	m.historyMu.Lock()
	defer m.historyMu.Unlock()
	m.history = h
}

func (m *MJPEG) Handler() http.Handler {
	return m.router
}

// Start binds the listen address and serves in the background.
func (m *MJPEG) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return xerror.New("mjpeg sink already running")
	}

	ln, err := net.Listen("tcp", m.addr)
	if err != nil {
		return xerror.Errorf("unable to listen on %s: %w", m.addr, err)
	}

	m.server = &http.Server{Handler: m.router}
	m.running = true

	go func(srv *http.Server) {
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			log.Error("MJPEG server stopped: %v", err)
		}
	}(m.server)

	log.Info("Serving MJPEG stream on %s", ln.Addr())
	return nil
}

func (m *MJPEG) Show(buf *pixelbuf.Buffer) error {
	img, err := toImage(buf)
	if err != nil {
		return err
	}

	out := bytes.Buffer{}
	if err := jpeg.Encode(&out, img, &jpeg.Options{Quality: m.quality}); err != nil {
		return xerror.Errorf("unable to encode jpeg: %w", err)
	}
	data := out.Bytes()

	m.frameMu.Lock()
	m.current = data
	m.lastUpdate = time.Now()
	m.frameCount++
	m.frameMu.Unlock()

	m.clientsMu.RLock()
	for ch := range m.clients {
		select {
		case ch <- data:
		default:
		}
	}
	m.clientsMu.RUnlock()

	return nil
}

func (m *MJPEG) Poll() {}

func (m *MJPEG) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.clientsMu.Lock()
	for ch := range m.clients {
		close(ch)
	}
	m.clients = map[chan []byte]struct{}{}
	m.clientsMu.Unlock()

	if !m.running {
		return nil
	}
	m.running = false

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	return m.server.Shutdown(ctx)
}

func (m *MJPEG) handleStream(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Connection", "close")

	frames := make(chan []byte, 2)
	m.clientsMu.Lock()
	m.clients[frames] = struct{}{}
	m.clientsMu.Unlock()

	defer func() {
		m.clientsMu.Lock()
		delete(m.clients, frames)
		m.clientsMu.Unlock()
	}()

	for {
		select {
		case <-r.Context().Done():
			return
		case data, ok := <-frames:
			if !ok {
				return
			}
			if _, err := fmt.Fprintf(w, "--frame\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", len(data)); err != nil {
				return
			}
			if _, err := w.Write(data); err != nil {
				return
			}
			if _, err := w.Write([]byte("\r\n")); err != nil {
				return
			}
			if f, ok := w.(http.Flusher); ok {
				f.Flush()
			}
		}
	}
}

func (m *MJPEG) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	m.frameMu.RLock()
	data := m.current
	m.frameMu.RUnlock()

	if data == nil {
		http.Error(w, "no frame available", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "no-cache")
	w.Write(data)
}

func (m *MJPEG) handleHealth(w http.ResponseWriter, r *http.Request) {
	m.frameMu.RLock()
	count, last := m.frameCount, m.lastUpdate
	m.frameMu.RUnlock()

	m.clientsMu.RLock()
	clients := len(m.clients)
	m.clientsMu.RUnlock()

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintf(w, "frames=%d clients=%d last=%s\n", count, clients, last.Format(time.RFC3339))
}

func (m *MJPEG) currentHistory(w http.ResponseWriter) History {
	m.historyMu.RLock()
	defer m.historyMu.RUnlock()
	if m.history == nil {
		http.Error(w, "recognition journal disabled", http.StatusNotFound)
	}
	return m.history
}

func (m *MJPEG) handleRecognitions(w http.ResponseWriter, r *http.Request) {
	history := m.currentHistory(w)
	if history == nil {
		return
	}

	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); len(raw) > 0 {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = n
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	recs, err := history.Latest(limit)
	if err != nil {
		log.Error("Unable to read recognition journal: %v", err)
		http.Error(w, "unable to read recognition journal", http.StatusInternalServerError)
		return
	}
	writeJSON(w, recs)
}

func (m *MJPEG) handleRecognition(w http.ResponseWriter, r *http.Request) {
	history := m.currentHistory(w)
	if history == nil {
		return
	}

	rec, err := history.FindByFrameID(mux.Vars(r)["frame_id"])
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	writeJSON(w, rec)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error("Unable to encode response: %v", err)
	}
}

// toImage copies a 3 channel RGB buffer into an RGBA image.
func toImage(buf *pixelbuf.Buffer) (*image.RGBA, error) {
	if buf == nil || buf.IsClosed() {
		return nil, xerror.New("buffer is closed")
	}
	if buf.Channels() != 3 {
		return nil, xerror.Errorf("expected 3 channel buffer, got %d", buf.Channels())
	}

	w, h := buf.Cols(), buf.Rows()
	src := buf.Bytes()
	if len(src) != w*h*3 {
		return nil, xerror.Errorf("buffer holds %d bytes, expected %d", len(src), w*h*3)
	}

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i, j := 0, 0; i < len(src); i, j = i+3, j+4 {
		img.Pix[j] = src[i]
		img.Pix[j+1] = src[i+1]
		img.Pix[j+2] = src[i+2]
		img.Pix[j+3] = 0xff
	}
	return img, nil
}
