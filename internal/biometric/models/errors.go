package models

import dErrors "biomatch/pkg/domain-errors"

// Biometric failure kinds, expressed as domain-error codes so callers branch
// on HasCode instead of matching messages. Every kind is terminal; the engine
// never retries on behalf of the caller.
const (
	CodeInvalidSample       dErrors.Code = "invalid_sample"
	CodeNoSubjectDetected   dErrors.Code = "no_subject_detected"
	CodeLowQuality          dErrors.Code = "low_quality"
	CodeLivenessFailed      dErrors.Code = "liveness_failed"
	CodeLivenessTimeout     dErrors.Code = "liveness_timeout"
	CodeExtractionTimeout   dErrors.Code = "extraction_timeout"
	CodeDuplicateEnrollment dErrors.Code = "duplicate_enrollment"
	CodeNoEnrolledTemplate  dErrors.Code = "no_enrolled_template"
	CodePersistenceFailure  dErrors.Code = "persistence_failure"
	CodeAuditWriteFailure   dErrors.Code = "audit_write_failure"
)

// rejectionCodes are the failure kinds recorded as attempt reason codes. Audit
// and persistence failures are excluded: when those fire the attempt itself
// could not be written.
var rejectionCodes = []dErrors.Code{
	CodeInvalidSample,
	CodeNoSubjectDetected,
	CodeLowQuality,
	CodeLivenessFailed,
	CodeLivenessTimeout,
	CodeExtractionTimeout,
	CodeDuplicateEnrollment,
	CodeNoEnrolledTemplate,
}

// ReasonFor extracts the attempt reason code from a workflow error. Errors
// without a recognized biometric code fall back to "internal_error" so the
// audit trail never ends up with an empty reason on a rejection.
func ReasonFor(err error) string {
	for _, code := range rejectionCodes {
		if dErrors.HasCode(err, code) {
			return string(code)
		}
	}
	return "internal_error"
}
