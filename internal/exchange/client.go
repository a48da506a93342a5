package exchange

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"futures_bot/internal/models"
	"futures_bot/pkg/logger"
	"futures_bot/pkg/tracing"
)

// ErrNoCredentials — приватный запрос без ключей.
var ErrNoCredentials = errors.New("mexc: api credentials are empty")

const maxErrBody = 512

type Config struct {
	BaseURL      string
	APIKey       string
	APISecret    string
	Timeout      time.Duration
	Retries      int           // повторы идемпотентных GET при сетевых ошибках
	Backoff      time.Duration // шаг паузы между повторами
	ContractsTTL time.Duration
}

// MexcClient — REST-клиент фьючерсов MEXC.
type MexcClient struct {
	cfg       Config
	http      *http.Client
	now       func() time.Time
	contracts *ContractCache

	klineRetryDelay time.Duration
}

func NewMexcClient(cfg Config) *MexcClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = 300 * time.Millisecond
	}
	if cfg.ContractsTTL <= 0 {
		cfg.ContractsTTL = time.Minute
	}
	m := &MexcClient{
		cfg:             cfg,
		http:            &http.Client{Timeout: cfg.Timeout},
		now:             time.Now,
		klineRetryDelay: 100 * time.Millisecond,
	}
	m.contracts = NewContractCache(cfg.ContractsTTL, time.Now, m.Contracts)
	return m
}

type request struct {
	method string
	path   string
	query  url.Values
	body   []byte
	signed bool
}

// sign — HMAC-SHA256(apiKey + reqTime + paramString) в hex.
func sign(accessKey, secret, reqTime, paramString string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(accessKey + reqTime + paramString))
	return hex.EncodeToString(h.Sum(nil))
}

// do выполняет запрос и приводит ответ к payload.
// GET повторяется при транзиентных ошибках, POST — никогда:
// повтор ордера после таймаута может открыть вторую позицию.
func (m *MexcClient) do(ctx context.Context, op string, req request) (p payload, err error) {
	span, ctx := tracing.StartSpan(ctx, "mexc."+op)
	defer func() {
		if err != nil {
			tracing.MarkError(span, err)
		}
		span.Finish()
	}()
	span.SetTag("http.method", req.method)

	attempts := 1
	if req.method == http.MethodGet && m.cfg.Retries > 0 {
		attempts += m.cfg.Retries
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			logger.Warn("[HTTP] %s retry %d/%d: %v", op, i, attempts-1, lastErr)
			select {
			case <-ctx.Done():
				return payload{}, ctx.Err()
			case <-time.After(time.Duration(i) * m.cfg.Backoff):
			}
		}

		body, err := m.roundTrip(ctx, op, req)
		if err == nil {
			p, err := normalize(body)
			if err != nil {
				return payload{}, errors.Wrapf(err, "mexc %s", op)
			}
			return p, nil
		}
		lastErr = err
		if !models.IsTransient(err) {
			return payload{}, err
		}
	}
	return payload{}, lastErr
}

func (m *MexcClient) roundTrip(ctx context.Context, op string, r request) ([]byte, error) {
	if r.signed && (m.cfg.APIKey == "" || m.cfg.APISecret == "") {
		return nil, ErrNoCredentials
	}

	u := m.cfg.BaseURL + r.path
	paramString := ""
	if len(r.query) > 0 {
		// Encode сортирует ключи — та же строка идёт в подпись
		paramString = r.query.Encode()
		u += "?" + paramString
	}
	if r.body != nil {
		paramString = string(r.body)
	}

	var rdr io.Reader
	if r.body != nil {
		rdr = bytes.NewReader(r.body)
	}
	req, err := http.NewRequestWithContext(ctx, r.method, u, rdr)
	if err != nil {
		return nil, errors.Wrapf(err, "mexc %s: build request", op)
	}
	if r.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if r.signed {
		reqTime := strconv.FormatInt(m.now().UTC().UnixMilli(), 10)
		req.Header.Set("ApiKey", m.cfg.APIKey)
		req.Header.Set("Request-Time", reqTime)
		req.Header.Set("Signature", sign(m.cfg.APIKey, m.cfg.APISecret, reqTime, paramString))
	}

	resp, err := m.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &models.TransientNetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	rb, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &models.TransientNetworkError{Op: op, Err: err}
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, &models.TransientNetworkError{Op: op, Err: errors.Errorf("http %d", resp.StatusCode)}
	case resp.StatusCode/100 != 2:
		// 4xx обычно несёт конверт с кодом отказа
		if _, err := normalize(rb); err != nil && models.IsRejection(err) {
			return nil, err
		}
		return nil, &models.BrokerRejection{Code: resp.StatusCode, Message: truncate(string(rb), maxErrBody)}
	}
	return rb, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
