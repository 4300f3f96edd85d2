package liveness

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"biomatch/internal/biometric/models"
	dErrors "biomatch/pkg/domain-errors"
)

// Remote calls a liveness-detection service over HTTP.
type Remote struct {
	endpoint string
	client   *http.Client
	timeout  time.Duration
}

// NewRemote constructs a Remote gate. timeout bounds each call on top of the
// caller's context deadline; zero disables the bound.
func NewRemote(endpoint string, client *http.Client, timeout time.Duration) *Remote {
	if client == nil {
		client = http.DefaultClient
	}
	return &Remote{endpoint: endpoint, client: client, timeout: timeout}
}

type checkRequest struct {
	Sample   string `json:"sample"`
	Modality string `json:"modality"`
}

type checkResponse struct {
	IsLive     bool            `json:"is_live"`
	Confidence float64         `json:"confidence"`
	Checks     map[string]bool `json:"checks"`
	Error      string          `json:"error"`
}

func (r *Remote) Check(ctx context.Context, sample models.RawSample, modality models.Modality) (Verdict, error) {
	if len(sample) == 0 {
		return Verdict{}, dErrors.New(models.CodeInvalidSample, "sample is empty")
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	body, err := json.Marshal(checkRequest{
		Sample:   base64.StdEncoding.EncodeToString(sample),
		Modality: string(modality),
	})
	if err != nil {
		return Verdict{}, dErrors.Wrap(err, dErrors.CodeInternal, "encode liveness request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint+"/liveness", bytes.NewReader(body))
	if err != nil {
		return Verdict{}, dErrors.Wrap(err, dErrors.CodeInternal, "build liveness request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return Verdict{}, dErrors.Wrap(err, models.CodeLivenessTimeout, "liveness check timed out")
		}
		return Verdict{}, dErrors.Wrap(err, dErrors.CodeInternal, "call liveness gate")
	}
	defer resp.Body.Close()

	var decoded checkResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return Verdict{}, dErrors.Wrap(err, dErrors.CodeInternal, "decode liveness response")
	}

	if resp.StatusCode != http.StatusOK {
		if decoded.Error == string(models.CodeInvalidSample) {
			return Verdict{}, dErrors.New(models.CodeInvalidSample, "sample is malformed")
		}
		return Verdict{}, dErrors.New(dErrors.CodeInternal, fmt.Sprintf("liveness gate returned status %d", resp.StatusCode))
	}

	return Verdict{IsLive: decoded.IsLive, Confidence: decoded.Confidence, Checks: decoded.Checks}, nil
}
