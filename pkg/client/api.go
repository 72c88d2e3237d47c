package client

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/THORISO2Nnoi/GBV-sub000/internal/models"
	"github.com/THORISO2Nnoi/GBV-sub000/pkg/errors"
	"github.com/THORISO2Nnoi/GBV-sub000/pkg/middleware"
	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
)

// API is a thin client for the alert HTTP surface, authenticated by one
// bearer token. Creation and reads are retried with exponential backoff;
// reinforce and status updates are sent once, a retry there would count twice.
type API struct {
	baseURL    string
	token      string
	httpClient *http.Client
	maxElapsed time.Duration
}

type APIOption func(*API)

func WithHTTPClient(hc *http.Client) APIOption {
	return func(a *API) { a.httpClient = hc }
}

// WithRetryFor bounds the total time spent retrying; zero disables retries.
func WithRetryFor(d time.Duration) APIOption {
	return func(a *API) { a.maxElapsed = d }
}

func NewAPI(baseURL, token string, opts ...APIOption) *API {
	a := &API{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		maxElapsed: 15 * time.Second,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

type envelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

// CreateAlert raises a new alert. The returned error is a validation error
// together with a non-nil alert when the reporter has no active contacts.
func (a *API) CreateAlert(ctx context.Context, location, message string) (*models.Alert, error) {
	var out models.Alert
	env, err := a.call(ctx, http.MethodPost, "/api/alerts", map[string]string{"location": location, "message": message}, &out, true, uuid.NewString())
	if err != nil {
		return nil, err
	}
	if len(out.NotifiedContacts) == 0 {
		return &out, errors.Validation("%s", env.Msg)
	}
	return &out, nil
}

func (a *API) Reinforce(ctx context.Context, alertID, location string) (*models.Alert, error) {
	var out models.Alert
	if _, err := a.call(ctx, http.MethodPost, "/api/alerts/"+url.PathEscape(alertID)+"/reinforce", map[string]string{"location": location}, &out, false, ""); err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *API) UpdateStatus(ctx context.Context, alertID string, status models.AlertStatus, note string) (*models.Alert, error) {
	var out models.Alert
	body := map[string]string{"status": string(status), "note": note}
	if _, err := a.call(ctx, http.MethodPatch, "/api/alerts/"+url.PathEscape(alertID)+"/status", body, &out, false, ""); err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *API) Get(ctx context.Context, alertID string) (*models.Alert, error) {
	var out models.Alert
	if _, err := a.call(ctx, http.MethodGet, "/api/alerts/"+url.PathEscape(alertID), nil, &out, true, ""); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListMine returns the caller's own alerts, newest first.
func (a *API) ListMine(ctx context.Context) ([]models.Alert, error) {
	var out []models.Alert
	_, err := a.call(ctx, http.MethodGet, "/api/alerts", nil, &out, true, "")
	return out, err
}

// ListForContact returns open alerts the calling contact was notified of.
func (a *API) ListForContact(ctx context.Context) ([]models.Alert, error) {
	var out []models.Alert
	_, err := a.call(ctx, http.MethodGet, "/api/contact/alerts", nil, &out, true, "")
	return out, err
}

func (a *API) call(ctx context.Context, method, path string, body, out interface{}, retry bool, idemKey string) (*envelope, error) {
	var payload []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, errors.Wrap(err, "encode request")
		}
		payload = b
	}

	var env envelope
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, bytes.NewReader(payload))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+a.token)
		if idemKey != "" {
			req.Header.Set("Idempotency-Key", idemKey)
		}

		resp, err := a.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}

		env = envelope{}
		_ = json.Unmarshal(raw, &env)
		switch {
		case resp.StatusCode >= 500:
			return fmt.Errorf("%s %s: %s", method, path, resp.Status)
		case resp.StatusCode == http.StatusConflict && idemKey != "" &&
			resp.Header.Get(middleware.IdempotencyStatusHeader) == middleware.IdempotencyInProgress:
			// an earlier attempt is still running on the server, poll until its response replays
			return statusError(resp.StatusCode, env.Msg)
		case resp.StatusCode >= 300:
			return backoff.Permanent(statusError(resp.StatusCode, env.Msg))
		}
		return nil
	}

	var err error
	if retry && a.maxElapsed > 0 {
		bo := backoff.NewExponentialBackOff()
		bo.InitialInterval = 200 * time.Millisecond
		bo.MaxElapsedTime = a.maxElapsed
		err = backoff.Retry(op, backoff.WithContext(bo, ctx))
	} else {
		err = op()
	}
	if err != nil {
		var perm *backoff.PermanentError
		if stderrors.As(err, &perm) {
			err = perm.Err
		}
		var kinded *errors.Error
		if !stderrors.As(err, &kinded) {
			err = errors.Wrap(err, "request failed")
		}
		return nil, err
	}

	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return nil, errors.Wrap(err, "decode response")
		}
	}
	return &env, nil
}

func statusError(status int, msg string) error {
	if msg == "" {
		msg = http.StatusText(status)
	}
	switch status {
	case http.StatusBadRequest:
		return errors.Validation("%s", msg)
	case http.StatusUnauthorized, http.StatusForbidden:
		return errors.Forbidden("%s", msg)
	case http.StatusNotFound:
		return errors.NotFound("%s", msg)
	case http.StatusConflict:
		return errors.Conflict("%s", msg)
	default:
		return errors.WithCode(status, msg)
	}
}
