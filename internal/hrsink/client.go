package hrsink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"identity-auth/internal/domain"
)

const maxErrorBody = 4 << 10

// EmployeeStatus es el estado del empleado en el sistema de RRHH.
type EmployeeStatus string

const (
	EmployeeActive   EmployeeStatus = "ACTIVE"
	EmployeeInactive EmployeeStatus = "INACTIVE"
)

// EmployeeCreate es el payload de alta de empleado.
type EmployeeCreate struct {
	UserID    int64  `json:"userId"`
	Email     string `json:"email"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
}

// Client define las llamadas hacia el sistema de RRHH.
type Client interface {
	CreateEmployee(ctx context.Context, req EmployeeCreate) error
	UpdateEmail(ctx context.Context, userID int64, email string) error
	UpdateStatus(ctx context.Context, userID int64, status EmployeeStatus) error
}

// StatusError representa una respuesta HTTP de error del sistema de RRHH.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("hr sink %s %s: status=%d body=%q", e.Method, e.Path, e.StatusCode, e.Body)
}

// HTTPClient implementa Client contra la API interna de RRHH.
type HTTPClient struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

// NewHTTPClient construye el cliente con un timeout total por llamada.
func NewHTTPClient(baseURL string, timeout time.Duration, logger *zap.Logger) *HTTPClient {
	if baseURL == "" {
		baseURL = "http://localhost:8081"
	}
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

func (c *HTTPClient) CreateEmployee(ctx context.Context, req EmployeeCreate) error {
	return c.do(ctx, http.MethodPost, "/api/internal/employees", nil, req)
}

func (c *HTTPClient) UpdateEmail(ctx context.Context, userID int64, email string) error {
	path := "/api/internal/employees/" + strconv.FormatInt(userID, 10) + "/email"
	return c.do(ctx, http.MethodPatch, path, url.Values{"email": {email}}, nil)
}

func (c *HTTPClient) UpdateStatus(ctx context.Context, userID int64, status EmployeeStatus) error {
	path := "/api/internal/employees/" + strconv.FormatInt(userID, 10) + "/status"
	return c.do(ctx, http.MethodPatch, path, url.Values{"status": {string(status)}}, nil)
}

func (c *HTTPClient) do(ctx context.Context, method, path string, query url.Values, body any) error {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if id := domain.RequestIDFrom(ctx); id != "" {
		req.Header.Set("X-Request-ID", id)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		c.logger.Warn("hr sink returned error status",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(respBody)),
			zap.String("request_id", domain.RequestIDFrom(ctx)),
		)
		return &StatusError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Body:       string(respBody),
		}
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
	return nil
}
