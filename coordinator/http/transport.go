// Package http reaches a round coordinator over HTTP. Round parameters are
// JSON; models and updates travel as CBOR.
package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/absmach/flparticipant/coordinator"
	"github.com/absmach/flparticipant/pkg/fl"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	ParticipantHeader = "X-Participant-ID"
	CTJSON            = "application/json"

	maxBodySize = 64 << 20
)

var errUnexpectedStatus = errors.New("unexpected response code")

var _ coordinator.Transport = (*transport)(nil)

type transport struct {
	baseURL       string
	participantID string
	client        *http.Client
}

func New(address, participantID string, timeout time.Duration) (coordinator.Transport, error) {
	u, err := url.Parse(address)
	if err != nil {
		return nil, fmt.Errorf("invalid coordinator address: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid coordinator address %q: scheme must be http or https", address)
	}

	return &transport{
		baseURL:       strings.TrimSuffix(u.String(), "/"),
		participantID: participantID,
		client: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}, nil
}

func (t *transport) RoundParams(ctx context.Context) (fl.RoundParams, error) {
	code, body, err := t.processRequest(ctx, http.MethodGet, "/params", "", nil)
	if err != nil {
		return fl.RoundParams{}, err
	}
	if code != http.StatusOK {
		return fl.RoundParams{}, statusError(code, body)
	}

	var params fl.RoundParams
	if err := json.Unmarshal(body, &params); err != nil {
		return fl.RoundParams{}, fmt.Errorf("failed to decode round parameters: %w", err)
	}

	return params, nil
}

func (t *transport) GlobalModel(ctx context.Context) (*fl.GlobalModel, error) {
	code, body, err := t.processRequest(ctx, http.MethodGet, "/model", "", nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", fl.ErrGlobalModelUnavailable, err)
	}

	switch code {
	case http.StatusOK:
		model, err := fl.DecodeGlobalModel(body)
		if err != nil {
			return nil, err
		}

		return &model, nil
	case http.StatusNoContent:
		return nil, nil
	case http.StatusNotFound, http.StatusServiceUnavailable:
		return nil, fmt.Errorf("%w: %w", fl.ErrGlobalModelUnavailable, statusError(code, body))
	default:
		return nil, statusError(code, body)
	}
}

func (t *transport) SendUpdate(ctx context.Context, env fl.UpdateEnvelope) error {
	data, err := fl.Encode(env)
	if err != nil {
		return err
	}

	code, body, err := t.processRequest(ctx, http.MethodPost, "/update", fl.ContentType, data)
	if err != nil {
		return err
	}

	switch {
	case code >= http.StatusOK && code < http.StatusMultipleChoices:
		return nil
	case code == http.StatusForbidden, code == http.StatusGone:
		return fmt.Errorf("%w: %w", fl.ErrUninitializedParticipant, statusError(code, body))
	default:
		return statusError(code, body)
	}
}

func (t *transport) processRequest(ctx context.Context, method, path, contentType string, data []byte) (int, []byte, error) {
	var reader io.Reader = http.NoBody
	if data != nil {
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, t.baseURL+path, reader)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set(ParticipantHeader, t.participantID)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return 0, nil, err
	}

	return resp.StatusCode, body, nil
}

func statusError(code int, body []byte) error {
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		return fmt.Errorf("%w: %d", errUnexpectedStatus, code)
	}

	return fmt.Errorf("%w: %d: %s", errUnexpectedStatus, code, msg)
}
