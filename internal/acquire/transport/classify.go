package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"petstay-backend/internal/acquire"
	"petstay-backend/internal/acquire/sources"

	"github.com/tidwall/gjson"
)

// classifyResponse turns a received response into a transport error, or nil
// when the body is usable.
func classifyResponse(detector BlockDetector, format sources.Format, status int, body []byte) error {
	if detector.Blocked(status, body) {
		return acquire.NewTransportError(
			acquire.FailureBlocked,
			status,
			fmt.Errorf("request refused by remote (%s)", http.StatusText(status)),
		)
	}
	if status >= 400 {
		return acquire.NewTransportError(
			acquire.FailureNetwork,
			status,
			fmt.Errorf("unexpected status %s", http.StatusText(status)),
		)
	}
	switch format {
	case sources.FormatJSON:
		if !gjson.ValidBytes(body) {
			return acquire.NewTransportError(
				acquire.FailureParse,
				status,
				fmt.Errorf("response is not valid json (%d bytes)", len(body)),
			)
		}
	case sources.FormatHTML:
		if len(bytes.TrimSpace(body)) == 0 {
			return acquire.NewTransportError(acquire.FailureParse, status, fmt.Errorf("empty document"))
		}
	}
	return nil
}

// classifyError maps an error raised while performing a request.
func classifyError(err error) error {
	var te *acquire.TransportError
	if errors.As(err, &te) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return acquire.NewTransportError(acquire.FailureTimeout, 0, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return acquire.NewTransportError(acquire.FailureTimeout, 0, err)
	}
	return acquire.NewTransportError(acquire.FailureNetwork, 0, err)
}
