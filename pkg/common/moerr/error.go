// Copyright 2021 - 2022 Matrix Origin
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package moerr

import (
	"context"
	"errors"
	"fmt"
)

const (
	// Ok is not an error.
	Ok uint16 = 0

	// Group 1: internal errors
	ErrStart        uint16 = 20100
	ErrInternal     uint16 = 20101
	ErrNYI          uint16 = 20102
	ErrOOM          uint16 = 20103
	ErrNotSupported uint16 = 20105

	// Group 2: numeric
	ErrOutOfRange uint16 = 20201

	// Group 3: invalid input
	ErrBadConfig    uint16 = 20300
	ErrInvalidInput uint16 = 20301

	// Group 4: unexpected state and io errors
	ErrInvalidState     uint16 = 20400
	ErrUnexpectedEOF    uint16 = 20407
	ErrCapacityExceeded uint16 = 20430
)

type errorItem struct {
	errorMsgOrFormat string
}

var errorMsgRefer = map[uint16]errorItem{
	ErrInternal:         {"internal error: %s"},
	ErrNYI:              {"%s is not yet implemented"},
	ErrOOM:              {"out of memory"},
	ErrNotSupported:     {"%s is not supported"},
	ErrOutOfRange:       {"value out of range for %s: %s"},
	ErrBadConfig:        {"invalid configuration: %s"},
	ErrInvalidInput:     {"invalid input: %s"},
	ErrInvalidState:     {"invalid state %s"},
	ErrUnexpectedEOF:    {"unexpected end of file %s"},
	ErrCapacityExceeded: {"capacity exceeded: %s"},
}

// Error is the error type used across the module. Every error carries a
// stable numeric code so callers can branch on the kind of failure without
// parsing messages.
type Error struct {
	code    uint16
	message string
}

func newError(_ context.Context, code uint16, args ...any) *Error {
	item, has := errorMsgRefer[code]
	if !has {
		panic(fmt.Errorf("not exist error code: %d", code))
	}
	if len(args) == 0 {
		return &Error{code: code, message: item.errorMsgOrFormat}
	}
	return &Error{code: code, message: fmt.Sprintf(item.errorMsgOrFormat, args...)}
}

func (e *Error) Error() string {
	return e.message
}

func (e *Error) ErrorCode() uint16 {
	return e.code
}

func (e *Error) Succeeded() bool {
	return e.code < ErrStart
}

// IsMoErrCode reports whether e is a moerr carrying the given code.
func IsMoErrCode(e error, rc uint16) bool {
	if e == nil {
		return rc == Ok
	}
	var me *Error
	if !errors.As(e, &me) {
		return false
	}
	return me.code == rc
}

func NewInternalError(ctx context.Context, msg string, args ...any) *Error {
	return newError(ctx, ErrInternal, fmt.Sprintf(msg, args...))
}

func NewInternalErrorNoCtx(msg string) *Error {
	return newError(context.Background(), ErrInternal, msg)
}

func NewInternalErrorNoCtxf(format string, args ...any) *Error {
	return newError(context.Background(), ErrInternal, fmt.Sprintf(format, args...))
}

func NewNYI(ctx context.Context, msg string, args ...any) *Error {
	return newError(ctx, ErrNYI, fmt.Sprintf(msg, args...))
}

func NewNYINoCtx(msg string, args ...any) *Error {
	return newError(context.Background(), ErrNYI, fmt.Sprintf(msg, args...))
}

func NewNotSupported(ctx context.Context, msg string, args ...any) *Error {
	return newError(ctx, ErrNotSupported, fmt.Sprintf(msg, args...))
}

func NewNotSupportedNoCtx(msg string, args ...any) *Error {
	return newError(context.Background(), ErrNotSupported, fmt.Sprintf(msg, args...))
}

func NewOOM(ctx context.Context) *Error {
	return newError(ctx, ErrOOM)
}

func NewOOMNoCtx() *Error {
	return newError(context.Background(), ErrOOM)
}

func NewOutOfRange(ctx context.Context, typ string, msg string, args ...any) *Error {
	return newError(ctx, ErrOutOfRange, typ, fmt.Sprintf(msg, args...))
}

func NewOutOfRangeNoCtx(typ string, msg string, args ...any) *Error {
	return newError(context.Background(), ErrOutOfRange, typ, fmt.Sprintf(msg, args...))
}

func NewBadConfig(ctx context.Context, msg string, args ...any) *Error {
	return newError(ctx, ErrBadConfig, fmt.Sprintf(msg, args...))
}

func NewBadConfigNoCtx(msg string, args ...any) *Error {
	return newError(context.Background(), ErrBadConfig, fmt.Sprintf(msg, args...))
}

func NewInvalidInput(ctx context.Context, msg string, args ...any) *Error {
	return newError(ctx, ErrInvalidInput, fmt.Sprintf(msg, args...))
}

func NewInvalidInputNoCtx(msg string, args ...any) *Error {
	return newError(context.Background(), ErrInvalidInput, fmt.Sprintf(msg, args...))
}

func NewInvalidState(ctx context.Context, msg string, args ...any) *Error {
	return newError(ctx, ErrInvalidState, fmt.Sprintf(msg, args...))
}

func NewInvalidStateNoCtx(msg string, args ...any) *Error {
	return newError(context.Background(), ErrInvalidState, fmt.Sprintf(msg, args...))
}

func NewUnexpectedEOF(ctx context.Context, f string) *Error {
	return newError(ctx, ErrUnexpectedEOF, f)
}

func NewUnexpectedEOFNoCtx(f string) *Error {
	return newError(context.Background(), ErrUnexpectedEOF, f)
}

func NewCapacityExceeded(ctx context.Context, msg string, args ...any) *Error {
	return newError(ctx, ErrCapacityExceeded, fmt.Sprintf(msg, args...))
}

func NewCapacityExceededNoCtx(msg string, args ...any) *Error {
	return newError(context.Background(), ErrCapacityExceeded, fmt.Sprintf(msg, args...))
}
