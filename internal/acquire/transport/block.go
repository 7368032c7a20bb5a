package transport

import (
	"bytes"
	"net/http"
)

// DefaultBlockMarkers are phrases only found on pages served to traffic the
// site has flagged as automated.
var DefaultBlockMarkers = []string{
	"과도한 접근 요청으로 서비스 이용이 제한되었습니다",
	"비정상적인 접근이 감지되었습니다",
	"attention required! | cloudflare",
	"why have i been blocked?",
	"verify you are human",
	"checking your browser before accessing",
	"performance & security by cloudflare",
}

// BlockDetector decides whether a response means the site is actively
// refusing automated traffic.
type BlockDetector struct {
	markers [][]byte
}

func NewBlockDetector(markers []string) BlockDetector {
	if markers == nil {
		markers = DefaultBlockMarkers
	}
	d := BlockDetector{}
	for _, m := range markers {
		if m == "" {
			continue
		}
		d.markers = append(d.markers, bytes.ToLower([]byte(m)))
	}
	return d
}

func (d BlockDetector) Blocked(status int, body []byte) bool {
	if status == http.StatusTooManyRequests || status == http.StatusForbidden {
		return true
	}
	return d.HasMarker(body)
}

func (d BlockDetector) HasMarker(body []byte) bool {
	if len(body) == 0 || len(d.markers) == 0 {
		return false
	}
	lowered := bytes.ToLower(body)
	for _, m := range d.markers {
		if bytes.Contains(lowered, m) {
			return true
		}
	}
	return false
}
