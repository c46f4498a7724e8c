package detector

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/Kunal6688/PestDetect/internal/models"

	"github.com/go-resty/resty/v2"
)

const uploadFileName = "image.jpg"

// predictResponse mirrors the inference server's JSON body.
type predictResponse struct {
	Detections []models.Finding `json:"detections"`
	Error      string           `json:"error,omitempty"`
}

// HTTPEngine posts images to a remote inference server as multipart "file".
type HTTPEngine struct {
	client *resty.Client
	path   string
}

// NewHTTPEngine builds a client for endpoint, e.g. http://host:8000/predict.
func NewHTTPEngine(endpoint string, timeout time.Duration, retries int) (*HTTPEngine, error) {
	u, err := url.Parse(endpoint)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid detection endpoint %q", endpoint)
	}
	path := u.Path
	if path == "" {
		path = "/"
	}

	client := resty.New().
		SetBaseURL(u.Scheme + "://" + u.Host).
		SetTimeout(timeout).
		SetRetryCount(retries).
		SetRetryWaitTime(200 * time.Millisecond).
		SetHeader("Accept", "application/json")

	return &HTTPEngine{client: client, path: path}, nil
}

func (e *HTTPEngine) Detect(ctx context.Context, image []byte) (Result, error) {
	if len(image) == 0 {
		return Result{}, fmt.Errorf("%w: empty image", ErrDetectionEngine)
	}

	var body predictResponse
	resp, err := e.client.R().
		SetContext(ctx).
		SetFileReader("file", uploadFileName, bytes.NewReader(image)).
		SetResult(&body).
		SetError(&body).
		Post(e.path)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrDetectionEngine, err)
	}
	if resp.IsError() {
		if body.Error != "" {
			return Result{}, fmt.Errorf("%w: status %d: %s", ErrDetectionEngine, resp.StatusCode(), body.Error)
		}
		return Result{}, fmt.Errorf("%w: status %d", ErrDetectionEngine, resp.StatusCode())
	}
	if body.Error != "" {
		return Result{}, fmt.Errorf("%w: %s", ErrDetectionEngine, body.Error)
	}

	findings, err := validate(body.Detections)
	if err != nil {
		return Result{}, err
	}
	return Result{Findings: findings}, nil
}
