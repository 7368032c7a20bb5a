package telemetry

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-resty/resty/v2"
)

// FilesystemOutput keeps one text file per exchange in a directory, handy
// for diffing what a blocked run received against a good one.
type FilesystemOutput struct {
	dir string
}

// NewFilesystemOutput empties dir so a dump only holds the current run.
func NewFilesystemOutput(dir string) (FilesystemOutput, error) {
	if err := os.RemoveAll(dir); err != nil {
		return FilesystemOutput{}, fmt.Errorf("clear dump dir: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return FilesystemOutput{}, fmt.Errorf("create dump dir: %w", err)
	}
	return FilesystemOutput{dir: dir}, nil
}

func (o FilesystemOutput) Write(id string, contents string) {
	path := filepath.Join(o.dir, id+".txt")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		slog.Warn("write http dump", "path", path, "err", err)
	}
}

// dumpName identifies an exchange by sequence, method and host:
// 000042-POST-api.booking.naver.com.
func dumpName(seq uint64, req *resty.Request) string {
	host := "unknown"
	if u, err := url.Parse(req.URL); err == nil && u.Host != "" {
		host = strings.ReplaceAll(u.Host, ":", "_")
	}
	return fmt.Sprintf("%06d-%s-%s", seq, req.Method, host)
}

func requestBody(req *http.Request) string {
	if req.GetBody == nil {
		return "(no body)"
	}
	r, err := req.GetBody()
	if err != nil {
		return "(body unavailable: " + err.Error() + ")"
	}
	defer r.Close()
	b, err := io.ReadAll(r)
	if err != nil {
		return "(body unreadable: " + err.Error() + ")"
	}
	return string(b)
}

func writeHeader(buf *bytes.Buffer, h http.Header) {
	// http.Header.Write sorts keys, which keeps dumps diffable
	h.Write(buf)
}

// formatExchange renders a finished exchange as plain text.
func formatExchange(res *resty.Response) string {
	raw := res.Request.RawRequest
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "> %s %s\n", res.Request.Method, res.Request.URL)
	writeHeader(&buf, raw.Header)
	buf.WriteString("\n")
	buf.WriteString(requestBody(raw))
	fmt.Fprintf(&buf, "\n\n< %s (%s)\n", res.Status(), res.Time())
	writeHeader(&buf, res.Header())
	buf.WriteString("\n")
	buf.Write(res.Body())
	return buf.String()
}
