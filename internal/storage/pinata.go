// AngelaMos | 2026
// pinata.go

package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/sony/gobreaker/v2"

	"github.com/carterperez-dev/tfg-registry/internal/config"
	"github.com/carterperez-dev/tfg-registry/internal/core"
)

const (
	backendPinata  = "pinata"
	defaultMaxRead = 64 << 20
)

var (
	cidPattern = regexp.MustCompile(`ipfs/(.+)$`)

	errResponseTooLarge = errors.New("pinata response exceeds the size limit")
)

type PinataOptions struct {
	Config     config.PinataConfig
	Timeout    time.Duration
	MaxBytes   int64
	Logger     *slog.Logger
	Recorder   Recorder
	HTTPClient *http.Client
}

// PinataStore pins files on IPFS through the Pinata pinning API and reads
// them back through a Pinata gateway.
type PinataStore struct {
	client    *http.Client
	apiURL    string
	apiKey    string
	secretKey string
	gateway   string
	timeout   time.Duration
	maxBytes  int64
	breaker   *gobreaker.CircuitBreaker[[]byte]
	logger    *slog.Logger
	rec       Recorder
}

func NewPinataStore(opts PinataOptions) *PinataStore {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Recorder == nil {
		opts.Recorder = nopRecorder{}
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{}
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = defaultMaxRead
	}

	failures := opts.Config.BreakerFailures
	if failures == 0 {
		failures = 5
	}

	p := &PinataStore{
		client:    opts.HTTPClient,
		apiURL:    strings.TrimRight(opts.Config.APIURL, "/"),
		apiKey:    opts.Config.APIKey,
		secretKey: opts.Config.SecretKey,
		gateway:   opts.Config.GatewayURL,
		timeout:   opts.Timeout,
		maxBytes:  opts.MaxBytes,
		logger:    opts.Logger,
		rec:       opts.Recorder,
	}

	p.rec.SetBreakerState(backendPinata, 0)
	p.breaker = gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        backendPinata,
		MaxRequests: 1,
		Timeout:     opts.Config.BreakerOpenDelay,
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, errResponseTooLarge)
		},
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			p.logger.Warn("circuit breaker state change",
				"name", name,
				"from", from.String(),
				"to", to.String(),
			)
			p.rec.SetBreakerState(name, breakerGauge(to))
		},
	})

	return p
}

func breakerGauge(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}

func (p *PinataStore) Backend() string {
	return backendPinata
}

// GatewayURL is the public address of a pinned CID.
func (p *PinataStore) GatewayURL(cid string) string {
	gw := strings.TrimRight(p.gateway, "/")
	if !strings.HasPrefix(gw, "http://") && !strings.HasPrefix(gw, "https://") {
		gw = "https://" + gw
	}
	return gw + "/ipfs/" + cid
}

// ExtractCID pulls the content id out of a gateway URL.
func ExtractCID(fileURL string) (string, error) {
	if fileURL == "" {
		return "", core.E(core.CodeFileURLInvalid)
	}
	m := cidPattern.FindStringSubmatch(fileURL)
	if m == nil {
		return "", core.E(core.CodeCIDNotFound)
	}
	return m[1], nil
}

type pinResponse struct {
	IpfsHash  string `json:"IpfsHash"`
	PinSize   int64  `json:"PinSize"`
	Timestamp string `json:"Timestamp"`
}

func (p *PinataStore) Upload(
	ctx context.Context,
	data []byte,
	filename string,
) (_ string, err error) {
	start := time.Now()
	defer func() { p.rec.ObserveStorage(backendPinata, opUpload, start, err) }()

	body, contentType, err := pinForm(data, filename)
	if err != nil {
		return "", core.E(core.CodeUploadFailed).Wrap(err)
	}

	raw, err := p.call(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost,
			p.apiURL+"/pinning/pinFileToIPFS", bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", contentType)
		return req, nil
	})
	if err != nil {
		p.logger.Error("pinata upload failed", "filename", filename, "error", err)
		return "", core.E(core.CodeUploadFailed).Wrap(err)
	}

	var resp pinResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", core.E(core.CodeUploadFailed).Wrap(fmt.Errorf("decode pin response: %w", err))
	}
	if resp.IpfsHash == "" {
		return "", core.E(core.CodeUploadFailed).Wrap(errors.New("pin response without IpfsHash"))
	}

	return p.GatewayURL(resp.IpfsHash), nil
}

func pinForm(data []byte, filename string) ([]byte, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(data); err != nil {
		return nil, "", err
	}

	meta, err := json.Marshal(map[string]string{"name": filename})
	if err != nil {
		return nil, "", err
	}
	if err := mw.WriteField("pinataMetadata", string(meta)); err != nil {
		return nil, "", err
	}
	if err := mw.WriteField("pinataOptions", `{"cidVersion":0}`); err != nil {
		return nil, "", err
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}

	return buf.Bytes(), mw.FormDataContentType(), nil
}

func (p *PinataStore) Fetch(ctx context.Context, fileURL string) (_ []byte, err error) {
	start := time.Now()
	defer func() { p.rec.ObserveStorage(backendPinata, opFetch, start, err) }()

	u, err := url.Parse(fileURL)
	if fileURL == "" || err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, core.E(core.CodeFileURLInvalid)
	}

	data, err := p.call(ctx, func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	})
	if err != nil {
		p.logger.Error("pinata fetch failed", "url", fileURL, "error", err)
		var status *statusError
		if errors.As(err, &status) {
			return nil, core.E(core.CodePinataFetch).Wrap(err)
		}
		return nil, core.E(core.CodeFileFetch).Wrap(err)
	}

	return data, nil
}

func (p *PinataStore) Delete(ctx context.Context, fileURL string) (err error) {
	start := time.Now()
	defer func() { p.rec.ObserveStorage(backendPinata, opDelete, start, err) }()

	cid, err := ExtractCID(fileURL)
	if err != nil {
		return err
	}

	_, err = p.call(ctx, func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodDelete,
			p.apiURL+"/pinning/unpin/"+url.PathEscape(cid), nil)
	})
	if err != nil {
		p.logger.Error("pinata unpin failed", "cid", cid, "error", err)
		return core.E(core.CodePinataAPI).Wrap(err)
	}

	p.logger.Info("pinata file unpinned", "cid", cid)
	return nil
}

type statusError struct {
	status int
	body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("pinata responded %d: %s", e.status, e.body)
}

// call runs one authenticated request through the breaker and returns the
// response body of a 2xx answer.
func (p *PinataStore) call(
	ctx context.Context,
	build func(context.Context) (*http.Request, error),
) ([]byte, error) {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	return p.breaker.Execute(func() ([]byte, error) {
		req, err := build(ctx)
		if err != nil {
			return nil, err
		}
		req.Header.Set("pinata_api_key", p.apiKey)
		req.Header.Set("pinata_secret_api_key", p.secretKey)

		resp, err := p.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(io.LimitReader(resp.Body, p.maxBytes+1))
		if err != nil {
			return nil, fmt.Errorf("read pinata response: %w", err)
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, &statusError{status: resp.StatusCode, body: truncate(string(body), 256)}
		}
		if int64(len(body)) > p.maxBytes {
			return nil, fmt.Errorf("%w of %d bytes", errResponseTooLarge, p.maxBytes)
		}
		return body, nil
	})
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
