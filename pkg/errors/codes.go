package errors

import (
	"strings"
)

// ErrorCode is a string representation of a specific error condition.
type ErrorCode string

func (c ErrorCode) String() string {
	return string(c)
}

// Common Error Codes
const (
	ErrCodeInternal           ErrorCode = "COMMON_001"
	ErrCodeBadRequest         ErrorCode = "COMMON_002"
	ErrCodeNotFound           ErrorCode = "COMMON_005"
	ErrCodeConflict           ErrorCode = "COMMON_006"
	ErrCodeServiceUnavailable ErrorCode = "COMMON_008"
	ErrCodeTimeout            ErrorCode = "COMMON_009"
	ErrCodeValidation         ErrorCode = "COMMON_010"
	ErrCodeSerialization      ErrorCode = "COMMON_011"
	ErrCodeCacheError         ErrorCode = "COMMON_013"
	ErrCodeExternalService    ErrorCode = "COMMON_014"
	ErrCodeNotImplemented     ErrorCode = "COMMON_016"
	ErrCodeUnknown            ErrorCode = "COMMON_999"
)

// Aliases used at call sites.
const (
	CodeInternal       = ErrCodeInternal
	CodeInvalidParam   = ErrCodeBadRequest
	CodeNotFound       = ErrCodeNotFound
	CodeConflict       = ErrCodeConflict
	CodeNotImplemented = ErrCodeNotImplemented
	CodeUnknown        = ErrCodeUnknown
	CodeOK             = ErrorCode("OK")
)

// Molecule Module Error Codes
const (
	ErrCodeMoleculeInvalidFormat  ErrorCode = "MOL_001"
	ErrCodeMoleculeEmpty          ErrorCode = "MOL_002"
	ErrCodeMoleculeAtomIndex      ErrorCode = "MOL_003"
	ErrCodeMoleculeBondIndex      ErrorCode = "MOL_004"
	ErrCodeMoleculeUnknownElement ErrorCode = "MOL_005"
	ErrCodeMoleculeNoCoordinates  ErrorCode = "MOL_006"
)

// Force Field Module Error Codes
const (
	ErrCodeForceFieldSetupFailed    ErrorCode = "FF_001"
	ErrCodeForceFieldUnknownType    ErrorCode = "FF_002"
	ErrCodeForceFieldMinimizeFailed ErrorCode = "FF_003"
)

// Torsion Library Module Error Codes
const (
	ErrCodeTorsionLibraryInvalid ErrorCode = "TOR_001"
	ErrCodeTorsionPatternInvalid ErrorCode = "TOR_002"
	ErrCodeTorsionLibraryLoad    ErrorCode = "TOR_003"
)

// Conformer Generation Module Error Codes
const (
	ErrCodeConfGenSettingsInvalid ErrorCode = "CONF_001"
	ErrCodeConfGenTreeInvalid     ErrorCode = "CONF_002"
	ErrCodeConfGenCacheMisuse     ErrorCode = "CONF_003"
	ErrCodeConfGenEmbeddingFailed ErrorCode = "CONF_004"
	ErrCodeConfGenJobInvalid      ErrorCode = "CONF_005"
	ErrCodeConfGenResultNotFound  ErrorCode = "CONF_006"
)

// Infrastructure Error Codes
const (
	ErrCodeStorageError   ErrorCode = "INFRA_001"
	ErrCodeMessagingError ErrorCode = "INFRA_002"
)

// ErrorCodeExitStatus maps ErrorCodes to process exit statuses used by the CLI.
var ErrorCodeExitStatus = map[ErrorCode]int{
	ErrCodeInternal:           1,
	ErrCodeBadRequest:         2,
	ErrCodeValidation:         2,
	ErrCodeNotFound:           3,
	ErrCodeTimeout:            4,
	ErrCodeServiceUnavailable: 5,
	ErrCodeExternalService:    5,
	ErrCodeStorageError:       5,
	ErrCodeMessagingError:     5,
	ErrCodeCacheError:         5,

	ErrCodeMoleculeInvalidFormat:  2,
	ErrCodeMoleculeEmpty:          2,
	ErrCodeMoleculeAtomIndex:      2,
	ErrCodeMoleculeBondIndex:      2,
	ErrCodeMoleculeUnknownElement: 2,
	ErrCodeMoleculeNoCoordinates:  2,

	ErrCodeForceFieldSetupFailed:    6,
	ErrCodeForceFieldUnknownType:    2,
	ErrCodeForceFieldMinimizeFailed: 6,

	ErrCodeTorsionLibraryInvalid: 2,
	ErrCodeTorsionPatternInvalid: 2,
	ErrCodeTorsionLibraryLoad:    3,

	ErrCodeConfGenSettingsInvalid: 2,
	ErrCodeConfGenTreeInvalid:     1,
	ErrCodeConfGenCacheMisuse:     1,
	ErrCodeConfGenEmbeddingFailed: 6,
	ErrCodeConfGenJobInvalid:      2,
	ErrCodeConfGenResultNotFound:  3,
}

// ErrorCodeMessage maps ErrorCodes to default messages.
var ErrorCodeMessage = map[ErrorCode]string{
	ErrCodeInternal:           "internal error",
	ErrCodeBadRequest:         "bad request",
	ErrCodeNotFound:           "resource not found",
	ErrCodeConflict:           "resource conflict",
	ErrCodeServiceUnavailable: "service unavailable",
	ErrCodeTimeout:            "operation timed out",
	ErrCodeValidation:         "validation failed",
	ErrCodeSerialization:      "serialization error",
	ErrCodeCacheError:         "cache error",
	ErrCodeExternalService:    "external service error",
	ErrCodeNotImplemented:     "not implemented",

	ErrCodeMoleculeInvalidFormat:  "invalid molecule format",
	ErrCodeMoleculeEmpty:          "molecule has no atoms",
	ErrCodeMoleculeAtomIndex:      "atom index out of range",
	ErrCodeMoleculeBondIndex:      "bond index out of range",
	ErrCodeMoleculeUnknownElement: "unknown element symbol",
	ErrCodeMoleculeNoCoordinates:  "molecule has no usable coordinates",

	ErrCodeForceFieldSetupFailed:    "force field setup failed",
	ErrCodeForceFieldUnknownType:    "unknown force field type",
	ErrCodeForceFieldMinimizeFailed: "force field minimization failed",

	ErrCodeTorsionLibraryInvalid: "invalid torsion library",
	ErrCodeTorsionPatternInvalid: "invalid torsion pattern",
	ErrCodeTorsionLibraryLoad:    "failed to load torsion library",

	ErrCodeConfGenSettingsInvalid: "invalid conformer generation settings",
	ErrCodeConfGenTreeInvalid:     "invalid fragment tree",
	ErrCodeConfGenCacheMisuse:     "object cache misuse",
	ErrCodeConfGenEmbeddingFailed: "structure embedding failed",
	ErrCodeConfGenJobInvalid:      "invalid generation job",
	ErrCodeConfGenResultNotFound:  "generation result not found",

	ErrCodeStorageError:   "object storage error",
	ErrCodeMessagingError: "messaging error",
}

// ExitStatusForCode returns the CLI exit status for an ErrorCode.
func ExitStatusForCode(code ErrorCode) int {
	if status, ok := ErrorCodeExitStatus[code]; ok {
		return status
	}
	return 1
}

// DefaultMessageForCode returns the default message for an ErrorCode.
func DefaultMessageForCode(code ErrorCode) string {
	if msg, ok := ErrorCodeMessage[code]; ok {
		return msg
	}
	return "unknown error"
}

// IsInputError returns true if the ErrorCode describes a problem with caller input.
func IsInputError(code ErrorCode) bool {
	return ExitStatusForCode(code) == 2
}

// ModuleForCode returns the module prefix of an ErrorCode.
func ModuleForCode(code ErrorCode) string {
	parts := strings.Split(string(code), "_")
	if len(parts) > 1 && parts[0] != "" {
		return parts[0]
	}
	return "UNKNOWN"
}

//Personal.AI order the ending
