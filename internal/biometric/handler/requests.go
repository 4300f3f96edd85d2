package handler

import (
	"encoding/base64"
	"encoding/json"
	"io"

	"biomatch/internal/biometric/models"
	dErrors "biomatch/pkg/domain-errors"
)

// Wire DTOs. Samples travel base64-encoded inside JSON bodies; decoding
// failures are bad requests, not biometric rejections.

type enrollRequest struct {
	SubjectID       string `json:"subject_id"`
	Modality        string `json:"modality"`
	Sample          string `json:"sample"`
	RequireLiveness bool   `json:"require_liveness"`
}

type verifyRequest struct {
	SubjectID       string `json:"subject_id"`
	Modality        string `json:"modality"`
	Sample          string `json:"sample"`
	RequireLiveness bool   `json:"require_liveness"`
}

type identifyRequest struct {
	Modality      string  `json:"modality"`
	Sample        string  `json:"sample"`
	MinConfidence float64 `json:"min_confidence"`
	MaxResults    int     `json:"max_results"`
}

func decodeBody(body io.Reader, v any) error {
	if err := json.NewDecoder(body).Decode(v); err != nil {
		return dErrors.New(dErrors.CodeBadRequest, "invalid request body")
	}
	return nil
}

func decodeSample(encoded string) (models.RawSample, error) {
	if encoded == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "sample is required")
	}
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeBadRequest, "sample must be base64 encoded")
	}
	return models.RawSample(raw), nil
}
