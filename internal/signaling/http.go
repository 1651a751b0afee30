package signaling

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/BioHazard786/peerlink/internal/dns"
	"github.com/BioHazard786/peerlink/internal/peer"
)

// maxErrorBody bounds the error text read from a failed response.
const maxErrorBody = 1024

// HTTPExchanger posts the offer as JSON and reads the answer from the
// response body.
type HTTPExchanger struct {
	client *http.Client
	logger *slog.Logger
}

func NewHTTPExchanger(client *http.Client, logger *slog.Logger) *HTTPExchanger {
	if client == nil {
		client = &http.Client{Transport: &http.Transport{
			Proxy:       http.ProxyFromEnvironment,
			DialContext: dns.DialContext,
		}}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPExchanger{client: client, logger: logger}
}

func (e *HTTPExchanger) Exchange(ctx context.Context, target string, offer peer.Description) (peer.Description, error) {
	body, err := json.Marshal(offer)
	if err != nil {
		return peer.Description{}, newError("encode offer", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return peer.Description{}, newError("build request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	e.logger.Debug("posting offer", "target", target, "candidates", CandidateCount(offer))

	resp, err := e.client.Do(req)
	if err != nil {
		return peer.Description{}, newError("post offer", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return peer.Description{}, &ExchangeError{
			Op:         "post offer",
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("%w %d: %s", ErrUnexpectedStatus, resp.StatusCode, strings.TrimSpace(string(detail))),
		}
	}

	var answer peer.Description
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxDescriptionSize)).Decode(&answer); err != nil {
		return peer.Description{}, newError("decode answer", fmt.Errorf("%w: %w", ErrMalformedDescription, err))
	}
	if err := Validate(answer, peer.SDPTypeAnswer); err != nil {
		return peer.Description{}, newError("validate answer", err)
	}
	return answer, nil
}
