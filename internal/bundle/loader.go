package bundle

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
)

// ReadDocument retrieves a raw bundle document from whichever source is
// given: an HTTP(S) URL or a local file path. No validation is performed;
// callers hand the bytes to Parse.
func ReadDocument(source string, timeout time.Duration) ([]byte, error) {
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		return fetchDocument(source, timeout)
	}
	data, err := os.ReadFile(source)
	if err != nil {
		return nil, fmt.Errorf("read bundle %s: %w", source, err)
	}
	return data, nil
}

func fetchDocument(url string, timeout time.Duration) ([]byte, error) {
	r := resty.New()
	if timeout > 0 {
		r.SetTimeout(timeout)
	} else {
		r.SetTimeout(5 * time.Second) // default fallback
	}

	resp, err := r.R().Get(url)
	if err != nil {
		return nil, fmt.Errorf("fetch bundle %s: %w", url, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("fetch bundle %s: status %d", url, resp.StatusCode())
	}
	return resp.Body(), nil
}

// Resolve reads and validates a bundle from a file path or URL.
func Resolve(source string, timeout time.Duration) (*Bundle, error) {
	data, err := ReadDocument(source, timeout)
	if err != nil {
		return nil, err
	}
	b, err := Parse(data)
	if err != nil {
		return nil, err
	}
	log.Info().Str("source", source).Int("features", b.N()).Msg("bundle loaded")
	return b, nil
}
