package models

import dErrors "biomatch/pkg/domain-errors"

// Modality is the biometric channel a sample belongs to.
type Modality string

const (
	ModalityFace  Modality = "face"
	ModalityVoice Modality = "voice"
)

// ParseModality validates a raw modality value from the API boundary.
func ParseModality(raw string) (Modality, error) {
	switch Modality(raw) {
	case ModalityFace, ModalityVoice:
		return Modality(raw), nil
	default:
		return "", dErrors.Newf(dErrors.CodeInvalidInput, "unknown modality %q", raw)
	}
}

// RawSample is a decoded, normalized biometric sample as handed over by the
// surrounding system. The engine never interprets its contents; it only passes
// it to the extractor and liveness collaborators.
type RawSample []byte

// DeviceMeta records the provenance of a sample. Both fields are optional.
type DeviceMeta struct {
	DeviceID   string `json:"device_id,omitempty"`
	DeviceType string `json:"device_type,omitempty"`
}
