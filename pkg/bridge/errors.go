/*
Copyright © 2026 Anton Brekhov <anton@abrekhov.ru>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package bridge

import (
	"errors"
	"fmt"
)

// Error codes reported to the scripting side.
const (
	CodeNotFound           = "NotFoundError"
	CodeType               = "TypeError"
	CodeInvalidState       = "InvalidStateError"
	CodeUnknownMethod      = "UnknownMethodError"
	CodePeerConnection     = "PeerConnectionError"
	CodeCreateOffer        = "CreateOfferFailed"
	CodeCreateAnswer       = "CreateAnswerFailed"
	CodeSetLocal           = "SetLocalDescriptionFailed"
	CodeSetRemote          = "SetRemoteDescriptionFailed"
	CodeAddICECandidate    = "AddICECandidateFailed"
	CodeSetConfiguration   = "SetConfigurationFailed"
	CodeRemoveTrack        = "RemoveTrackFailed"
	CodeAddTransceiver     = "AddTransceiverFailed"
	CodeCreateDataChannel  = "CreateDataChannelFailed"
	CodeDataChannelSend    = "DataChannelSendFailed"
	CodeTransceiverStop    = "TransceiverStopFailed"
	CodeGetUserMedia       = "GetUserMediaFailed"
	CodeMetrics            = "MetricsError"
	CodeSetDirectionFailed = "SetDirectionFailed"
)

// ErrNotFound is matched by every NotFoundError.
var ErrNotFound = errors.New("not found")

// Error is a bridge failure with a code the client can switch on.
type Error struct {
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func notFound(kind, tag string) error {
	return &Error{Code: CodeNotFound, Message: fmt.Sprintf("%s %q is not found", kind, tag), Err: ErrNotFound}
}

func typeError(err error) error {
	return &Error{Code: CodeType, Message: "invalid argument", Err: err}
}

func invalidState(format string, args ...interface{}) error {
	return &Error{Code: CodeInvalidState, Message: fmt.Sprintf(format, args...)}
}

func engineError(code string, err error) error {
	return &Error{Code: code, Message: "engine call failed", Err: err}
}

// ErrorCode returns the bridge code of err, or PeerConnectionError for
// errors that did not originate in the bridge.
func ErrorCode(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodePeerConnection
}
