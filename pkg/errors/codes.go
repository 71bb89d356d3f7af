package errors

// ErrorCode is a string representation of a specific error condition.
type ErrorCode string

func (c ErrorCode) String() string {
	return string(c)
}

// Common Error Codes
const (
	ErrCodeInternal           ErrorCode = "COMMON_001"
	ErrCodeBadRequest         ErrorCode = "COMMON_002"
	ErrCodeNotFound           ErrorCode = "COMMON_003"
	ErrCodeConflict           ErrorCode = "COMMON_004"
	ErrCodeTimeout            ErrorCode = "COMMON_005"
	ErrCodeCancelled          ErrorCode = "COMMON_006"
	ErrCodeSerialization      ErrorCode = "COMMON_007"
	ErrCodeNotImplemented     ErrorCode = "COMMON_008"
	ErrCodeServiceUnavailable ErrorCode = "COMMON_009"
)

// Ingestion / parsing error codes
const (
	ErrCodeInputMalformed     ErrorCode = "INGEST_001"
	ErrCodeUnsupportedFormat  ErrorCode = "INGEST_002"
	ErrCodeDocumentExtraction ErrorCode = "INGEST_003"
)

// Validation error codes
const (
	ErrCodeSchemaViolation ErrorCode = "VALID_001"
	ErrCodeRangeViolation  ErrorCode = "VALID_002"
	ErrCodeShapeViolation  ErrorCode = "VALID_003"
	ErrCodeFormulaInvalid  ErrorCode = "VALID_004"
	ErrCodeCASInvalid      ErrorCode = "VALID_005"
)

// Quality error codes
const (
	ErrCodeQualityBelowThreshold ErrorCode = "QUAL_001"
)

// Compatibility error codes
const (
	ErrCodeCompatibilityForbidden ErrorCode = "COMPAT_001"
)

// Storage backend error codes
const (
	ErrCodeBackendUnavailable ErrorCode = "STORE_001"
	ErrCodeNotConnected       ErrorCode = "STORE_002"
	ErrCodeDanglingEdge       ErrorCode = "STORE_003"
	ErrCodeVectorBackend      ErrorCode = "STORE_004"
)

// Ontology error codes
const (
	ErrCodeOntologyParse  ErrorCode = "ONTO_001"
	ErrCodeOntologyFormat ErrorCode = "ONTO_002"
	ErrCodeOntologyEmpty  ErrorCode = "ONTO_003"
)

// Pipeline error codes
const (
	ErrCodePipelineStage      ErrorCode = "PIPE_001"
	ErrCodeIllegalTransition  ErrorCode = "PIPE_002"
)

// Aliases kept short for the most frequent call sites.
const (
	CodeInternal   = ErrCodeInternal
	CodeNotFound   = ErrCodeNotFound
	CodeConflict   = ErrCodeConflict
	CodeTimeout    = ErrCodeTimeout
	CodeCancelled  = ErrCodeCancelled
	CodeUnknown    = ErrorCode("UNKNOWN")
	CodeOK         = ErrorCode("OK")
)
