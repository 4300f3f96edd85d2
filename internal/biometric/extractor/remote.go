package extractor

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
	"biomatch/internal/biometric/vector"
	dErrors "biomatch/pkg/domain-errors"
)

// Remote calls a feature-extraction model service over HTTP. The wire contract
// mirrors the platform's recognition services: base64 sample in, vector plus
// quality out, machine-readable error codes on failure.
type Remote struct {
	endpoint string
	client   *http.Client
	timeout  time.Duration
}

// NewRemote constructs a Remote extractor. timeout bounds each call on top of
// whatever deadline the caller context carries; zero disables the bound.
func NewRemote(endpoint string, client *http.Client, timeout time.Duration) *Remote {
	if client == nil {
		client = http.DefaultClient
	}
	return &Remote{endpoint: endpoint, client: client, timeout: timeout}
}

type extractRequest struct {
	Sample   string `json:"sample"`
	Modality string `json:"modality"`
}

type extractResponse struct {
	Vector  []float64 `json:"vector"`
	Quality float64   `json:"quality"`
	Error   string    `json:"error"`
	Message string    `json:"message"`
}

func (r *Remote) Extract(ctx context.Context, sample models.RawSample, modality models.Modality) (Features, error) {
	if len(sample) == 0 {
		return Features{}, dErrors.New(models.CodeInvalidSample, "sample is empty")
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	body, err := json.Marshal(extractRequest{
		Sample:   base64.StdEncoding.EncodeToString(sample),
		Modality: string(modality),
	})
	if err != nil {
		return Features{}, dErrors.Wrap(err, dErrors.CodeInternal, "encode extract request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint+"/extract", bytes.NewReader(body))
	if err != nil {
		return Features{}, dErrors.Wrap(err, dErrors.CodeInternal, "build extract request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return Features{}, dErrors.Wrap(err, models.CodeExtractionTimeout, "feature extraction timed out")
		}
		return Features{}, dErrors.Wrap(err, dErrors.CodeInternal, "call feature extractor")
	}
	defer resp.Body.Close()

	var decoded extractResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return Features{}, dErrors.Wrap(err, dErrors.CodeInternal, "decode extractor response")
	}

	if resp.StatusCode != http.StatusOK {
		return Features{}, remoteError(decoded, resp.StatusCode)
	}

	encoded, err := vector.Encode(decoded.Vector)
	if err != nil {
		return Features{}, err
	}
	return Features{Vector: encoded, Quality: decoded.Quality}, nil
}

// remoteError maps the backend's error codes onto the engine's typed kinds.
// Backend internals never cross this boundary; unknown codes collapse into a
// generic internal error.
func remoteError(resp extractResponse, status int) error {
	switch resp.Error {
	case string(models.CodeNoSubjectDetected):
		return dErrors.New(models.CodeNoSubjectDetected, "no subject detected in sample")
	case string(models.CodeLowQuality):
		return dErrors.New(models.CodeLowQuality, "sample quality too low to encode")
	case string(models.CodeInvalidSample):
		return dErrors.New(models.CodeInvalidSample, "sample is malformed")
	default:
		return dErrors.New(dErrors.CodeInternal, fmt.Sprintf("feature extractor returned status %d", status))
	}
}
