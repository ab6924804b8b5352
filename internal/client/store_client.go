// Package client talks to the session store server.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/alexanderramin/tempo/internal/contract"
	"github.com/alexanderramin/tempo/internal/domain"
)

const (
	DefaultTimeout     = 5 * time.Second
	defaultDialTimeout = 3 * time.Second
)

type Config struct {
	BaseURL string
	Timeout time.Duration
}

// StoreClient implements the session store and task completion path over
// HTTP. Every failure is a *domain.NetworkError or a *domain.ApplicationError.
type StoreClient struct {
	baseURL string
	timeout time.Duration
	http    *http.Client
	offline atomic.Bool
}

func NewStoreClient(cfg Config) *StoreClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &StoreClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		timeout: cfg.Timeout,
		http: &http.Client{
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: defaultDialTimeout,
				}).DialContext,
			},
		},
	}
}

// SetForcedOffline makes every call fail with a network error without
// touching the wire, as if the connection had dropped.
func (c *StoreClient) SetForcedOffline(offline bool) {
	c.offline.Store(offline)
}

func (c *StoreClient) ForcedOffline() bool {
	return c.offline.Load()
}

func ownerPath(ref domain.OwnerRef) string {
	return "/api/owners/" + url.PathEscape(string(ref.Kind)) + "/" + url.PathEscape(ref.ID)
}

func (c *StoreClient) StartSession(ctx context.Context, ref domain.OwnerRef) (*domain.Session, error) {
	var resp contract.SessionDTO
	if err := c.do(ctx, "start", http.MethodPost, ownerPath(ref)+"/start", nil, &resp); err != nil {
		return nil, err
	}
	s := resp.ToDomain()
	return &s, nil
}

func (c *StoreClient) PauseSession(ctx context.Context, ref domain.OwnerRef) (*domain.Session, error) {
	var resp contract.SessionDTO
	if err := c.do(ctx, "pause", http.MethodPost, ownerPath(ref)+"/pause", nil, &resp); err != nil {
		return nil, err
	}
	s := resp.ToDomain()
	return &s, nil
}

func (c *StoreClient) GetOwner(ctx context.Context, ref domain.OwnerRef) (*domain.Owner, error) {
	var resp contract.OwnerDTO
	if err := c.do(ctx, "get owner", http.MethodGet, ownerPath(ref), nil, &resp); err != nil {
		return nil, err
	}
	return c.toOwner("get owner", resp)
}

func (c *StoreClient) ListOwners(ctx context.Context, kind domain.OwnerKind) ([]*domain.Owner, error) {
	var resp contract.OwnerList
	path := "/api/owners?kind=" + url.QueryEscape(string(kind))
	if err := c.do(ctx, "list owners", http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	out := make([]*domain.Owner, 0, len(resp.Owners))
	for _, d := range resp.Owners {
		o, err := c.toOwner("list owners", d)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, nil
}

func (c *StoreClient) CompleteTask(ctx context.Context, taskID string, completedAt time.Time, hoursWorked float64) (*domain.Owner, error) {
	req := contract.CompleteTaskRequest{CompletedAt: completedAt, HoursWorked: hoursWorked}
	var resp contract.OwnerDTO
	path := "/api/tasks/" + url.PathEscape(taskID) + "/complete"
	if err := c.do(ctx, "complete task", http.MethodPost, path, req, &resp); err != nil {
		return nil, err
	}
	return c.toOwner("complete task", resp)
}

// CreateOwner seeds an owner record.
func (c *StoreClient) CreateOwner(ctx context.Context, req contract.CreateOwnerRequest) (*domain.Owner, error) {
	var resp contract.OwnerDTO
	if err := c.do(ctx, "create owner", http.MethodPost, "/api/owners", req, &resp); err != nil {
		return nil, err
	}
	return c.toOwner("create owner", resp)
}

// DeleteOwner removes an owner record and its sessions.
func (c *StoreClient) DeleteOwner(ctx context.Context, ref domain.OwnerRef) error {
	return c.do(ctx, "delete owner", http.MethodDelete, ownerPath(ref), nil, nil)
}

// Ping checks the server's health endpoint.
func (c *StoreClient) Ping(ctx context.Context) error {
	return c.do(ctx, "ping", http.MethodGet, "/healthz", nil, nil)
}

func (c *StoreClient) toOwner(op string, d contract.OwnerDTO) (*domain.Owner, error) {
	o, err := d.ToDomain()
	if err != nil {
		return nil, &domain.ApplicationError{Op: op, Code: domain.CodeInternal, Message: err.Error(), Err: err}
	}
	return o, nil
}

func (c *StoreClient) do(ctx context.Context, op, method, path string, body, out any) error {
	if c.offline.Load() {
		return &domain.NetworkError{Op: op, Err: ErrForcedOffline}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return &domain.ApplicationError{Op: op, Code: domain.CodeInvalidRequest, Message: err.Error(), Err: err}
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return &domain.ApplicationError{Op: op, Code: domain.CodeInvalidRequest, Message: err.Error(), Err: err}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return &domain.NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &domain.NetworkError{Op: op, Err: fmt.Errorf("reading response: %w", err)}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(op, resp.StatusCode, data)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &domain.ApplicationError{Op: op, Code: domain.CodeInternal,
			Message: fmt.Sprintf("decoding response: %v", err), Err: err}
	}
	return nil
}
