// Package apperr defines RustMailer's closed error-code taxonomy and the
// Error type that carries a code, a human message, and an optional wrapped
// cause through the system to the REST and gRPC boundaries.
package apperr

import (
	"net/http"

	"google.golang.org/grpc/codes"
)

// Code is a closed, numeric error kind in the 10000+ range. New members are
// never added without also extending HTTPStatus and GRPCCode.
type Code uint32

const (
	InvalidParameter          Code = 10000
	NetworkError              Code = 10010
	ConnectionTimeout         Code = 10020
	ConnectionPoolTimeout     Code = 10030
	InternalError             Code = 10040
	ResourceNotFound          Code = 10050
	AccountDisabled           Code = 10060
	AutoconfigFetchFailed     Code = 10070
	LicenseAccountLimitReached Code = 10080
	LicenseExpired            Code = 10090
	InvalidLicense            Code = 10100
	ImapCommandFailed         Code = 10110
	ImapAuthenticationFailed  Code = 10120
	ImapUnexpectedResult      Code = 10130
	PermissionDenied          Code = 10140
	HTTPResponseError         Code = 10150
	NatsRequestFailed         Code = 10160
	NatsConnectionFailed      Code = 10170
	NatsCreateStreamFailed    Code = 10180
	VRLScriptSyntaxError      Code = 10190
	AlreadyExists             Code = 10200
	MissingConfiguration      Code = 10210
	Incompatible              Code = 10220
	MailBoxNotCached          Code = 10230
	ExceedsLimitation         Code = 10240
	OAuth2ItemDisabled        Code = 10250
	MissingRefreshToken       Code = 10260
	EmlFileParseError         Code = 10270
	SmtpCommandFailed         Code = 10280
	SmtpConnectionFailed      Code = 10290
	TooManyRequest            Code = 10300
	MissingContentLength      Code = 10310
	PayloadTooLarge           Code = 10320
	RequestTimeout            Code = 10330
	MethodNotAllowed          Code = 10340
)

// HTTPStatus maps a Code to the REST status code it is rendered as.
func (c Code) HTTPStatus() int {
	switch c {
	case InvalidParameter, VRLScriptSyntaxError, MissingConfiguration, Incompatible, ExceedsLimitation, EmlFileParseError:
		return http.StatusBadRequest
	case PermissionDenied:
		return http.StatusUnauthorized
	case AccountDisabled, LicenseAccountLimitReached, LicenseExpired, InvalidLicense, OAuth2ItemDisabled:
		return http.StatusForbidden
	case ResourceNotFound:
		return http.StatusNotFound
	case RequestTimeout:
		return http.StatusRequestTimeout
	case AlreadyExists:
		return http.StatusConflict
	case MissingContentLength:
		return http.StatusLengthRequired
	case PayloadTooLarge:
		return http.StatusRequestEntityTooLarge
	case TooManyRequest:
		return http.StatusTooManyRequests
	case MethodNotAllowed:
		return http.StatusMethodNotAllowed
	case InternalError, AutoconfigFetchFailed, ImapCommandFailed, ImapUnexpectedResult, HTTPResponseError,
		NatsRequestFailed, NatsCreateStreamFailed, MailBoxNotCached, ImapAuthenticationFailed,
		MissingRefreshToken, SmtpCommandFailed, NetworkError, ConnectionTimeout, ConnectionPoolTimeout,
		NatsConnectionFailed, SmtpConnectionFailed:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// GRPCCode maps a Code to the closest-fitting canonical gRPC status code.
func (c Code) GRPCCode() codes.Code {
	switch c {
	case InvalidParameter, VRLScriptSyntaxError, MissingConfiguration, Incompatible, ExceedsLimitation, EmlFileParseError:
		return codes.InvalidArgument
	case PermissionDenied, AccountDisabled, LicenseAccountLimitReached, LicenseExpired, InvalidLicense, OAuth2ItemDisabled:
		return codes.PermissionDenied
	case ResourceNotFound:
		return codes.NotFound
	case RequestTimeout, ConnectionTimeout, ConnectionPoolTimeout:
		return codes.DeadlineExceeded
	case AlreadyExists:
		return codes.AlreadyExists
	case TooManyRequest:
		return codes.ResourceExhausted
	case MethodNotAllowed:
		return codes.Unimplemented
	default:
		return codes.Internal
	}
}
