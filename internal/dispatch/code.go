package dispatch

import (
	dErrors "zonecore/pkg/domain-errors"
)

// Protocol result codes (RFC 5730 §3). 1xxx is success, 2xxx failure; x5xx
// additionally ends the session.
const (
	CodeOK             = 1000
	CodeOKPending      = 1001
	CodeOKEnding       = 1500
	CodeSyntaxError    = 2001
	CodeUseError       = 2002
	CodeMissingParam   = 2003
	CodeUnimplemented  = 2101
	CodeUnimplOption   = 2102
	CodeAuthError      = 2201
	CodeInvalidAuth    = 2202
	CodeObjectExists   = 2302
	CodeObjectNotFound = 2303
	CodeStatusProhibit = 2304
	CodeAssocProhibit  = 2305
	CodePolicyError    = 2306
	CodeCommandFailed  = 2400
	CodeFailedClosing  = 2500
	CodeSessionLimit   = 2502
)

// Text returns the fixed result message for a code.
func Text(code int) string {
	switch code {
	case CodeOK:
		return "Command completed successfully"
	case CodeOKPending:
		return "Command completed successfully; action pending"
	case CodeOKEnding:
		return "Command completed successfully; ending session"
	case CodeSyntaxError:
		return "Command syntax error"
	case CodeUseError:
		return "Command use error"
	case CodeMissingParam:
		return "Required parameter missing"
	case CodeUnimplemented:
		return "Unimplemented command"
	case CodeUnimplOption:
		return "Unimplemented option"
	case CodeAuthError:
		return "Authorization error"
	case CodeInvalidAuth:
		return "Invalid authorization information"
	case CodeObjectExists:
		return "Object exists"
	case CodeObjectNotFound:
		return "Object does not exist"
	case CodeStatusProhibit:
		return "Object status prohibits operation"
	case CodeAssocProhibit:
		return "Object association prohibits operation"
	case CodePolicyError:
		return "Parameter value policy error"
	case CodeFailedClosing:
		return "Command failed; server closing connection"
	case CodeSessionLimit:
		return "Session limit exceeded; server closing connection"
	default:
		return "Command failed"
	}
}

// ResultCode maps an engine error to the protocol result code.
func ResultCode(err error) int {
	switch dErrors.CodeOf(err) {
	case dErrors.CodeInvalidInput:
		return CodeSyntaxError
	case dErrors.CodeMissingParameter:
		return CodeMissingParam
	case dErrors.CodeNotFound:
		return CodeObjectNotFound
	case dErrors.CodeAlreadyExists:
		return CodeObjectExists
	case dErrors.CodeUnauthorized:
		return CodeAuthError
	case dErrors.CodeInvalidAuthInfo:
		return CodeInvalidAuth
	case dErrors.CodeProhibited:
		return CodeStatusProhibit
	case dErrors.CodeAssociation:
		return CodeAssocProhibit
	case dErrors.CodePolicy:
		return CodePolicyError
	case dErrors.CodeCommandUse:
		return CodeUseError
	case dErrors.CodeUnimplemented:
		return CodeUnimplemented
	case dErrors.CodeRateLimited, dErrors.CodeSessionLimit:
		return CodeSessionLimit
	case dErrors.CodeConcurrent:
		return CodeCommandFailed
	default:
		return CodeCommandFailed
	}
}

// Success reports whether a result code indicates a completed command.
func Success(code int) bool { return code < 2000 }
