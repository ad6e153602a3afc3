// Package httpcam polls an HTTP endpoint that serves JPEG stills (a
// companion computer or an MJPEG snapshot URL) and caches the most
// recent frame, satisfying drone.FrameSource without blocking callers.
package httpcam

import (
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/eaglewings/perch/pkg/drone"
)

// maxFrameBytes caps a single fetched frame.
const maxFrameBytes = 4 << 20

var _ drone.FrameSource = &Poller{}

// Poller fetches frames in the background at a fixed interval.
type Poller struct {
	url      string
	interval time.Duration
	client   *http.Client

	mu    sync.RWMutex
	frame drone.Frame

	stopOnce sync.Once
	stopCh   chan struct{}
}

func New(url string, interval time.Duration) *Poller {
	return &Poller{
		url:      url,
		interval: interval,
		client:   &http.Client{Timeout: 2 * time.Second},
		stopCh:   make(chan struct{}),
	}
}

// Start launches the polling goroutine.
func (p *Poller) Start() {
	go p.loop()
	logrus.Infof("frame poller started for %s", p.url)
}

// Stop halts polling. Idempotent.
func (p *Poller) Stop() {
	p.stopOnce.Do(func() { close(p.stopCh) })
}

// LatestFrame returns the last fetched frame, if any.
func (p *Poller) LatestFrame() (drone.Frame, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.frame == nil {
		return nil, false
	}
	return p.frame, true
}

func (p *Poller) loop() {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.poll()
		}
	}
}

func (p *Poller) poll() {
	resp, err := p.client.Get(p.url)
	if err != nil {
		logrus.Debugf("frame fetch failed: %v", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		logrus.Debugf("frame fetch returned %d", resp.StatusCode)
		return
	}

	b, err := io.ReadAll(io.LimitReader(resp.Body, maxFrameBytes))
	if err != nil || len(b) == 0 {
		logrus.Debugf("frame read failed: %v", err)
		return
	}

	p.mu.Lock()
	p.frame = b
	p.mu.Unlock()
}
