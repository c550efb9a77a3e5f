package admin

import (
	"errors"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

const (
	// Error codes the database may return that we are concerned about
	BadValueCode            = 2
	IllegalOperationCode    = 20
	AlreadyInitializedCode  = 23
	ShardNotFoundCode       = 70
	OperationFailedCode     = 96
	NamespaceNotShardedCode = 118

	AlreadyInitializedName = "AlreadyInitialized"
)

// Error is the error extension that contains the details of a failed administrative command. It keeps the raw
// command response so that operators see exactly what the database answered. Errors that happen before the
// command reaches the server (network, selection timeout) only have 'Message' set.
type Error struct {
	Command  string
	Code     int32
	CodeName string
	Message  string
	Response bson.M
	wrapped  error
}

// New returns either the error itself if it's of type 'admin.Error' or an 'Error' created from a driver error
func New(command string, err error) error {
	if err == nil {
		return nil
	}
	var v *Error
	if errors.As(err, &v) {
		return v
	}
	e := &Error{Command: command, Message: err.Error(), wrapped: err}
	var ce mongo.CommandError
	if errors.As(err, &ce) {
		e.Code = ce.Code
		e.CodeName = ce.Name
		e.Message = ce.Message
		if len(ce.Raw) > 0 {
			resp := bson.M{}
			if uerr := bson.Unmarshal(ce.Raw, &resp); uerr == nil {
				e.Response = resp
			}
		}
	}
	return e
}

// NewErrorWithCode returns the Error initialized with the code passed. This is convenient for testing.
func NewErrorWithCode(command string, code int32, codeName, msg string) *Error {
	return &Error{
		Command:  command,
		Code:     code,
		CodeName: codeName,
		Message:  msg,
		Response: bson.M{"ok": 0.0, "code": code, "codeName": codeName, "errmsg": msg},
	}
}

func (e *Error) Error() string {
	msg := e.Command + ": " + e.Message
	if e.Code != 0 {
		msg += fmt.Sprintf(" (code %d", e.Code)
		if e.CodeName != "" {
			msg += ", " + e.CodeName
		}
		msg += ")"
	}
	if resp := e.reply(); len(resp) > 0 {
		msg += fmt.Sprintf(", response: %v", resp)
	}
	return msg
}

// reply is the command response without the gossiped cluster time, which says nothing about the failure.
func (e *Error) reply() bson.M {
	if len(e.Response) == 0 {
		return nil
	}
	resp := bson.M{}
	for k, v := range e.Response {
		if strings.HasPrefix(k, "$") || k == "operationTime" {
			continue
		}
		resp[k] = v
	}
	return resp
}

func (e *Error) Unwrap() error {
	return e.wrapped
}

// IsAlreadyInitialized returns whether the error signals that the replica set already has a configuration. Re-running
// the initiation against such a set is a no-op for the orchestrator.
func IsAlreadyInitialized(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Code == AlreadyInitializedCode || e.CodeName == AlreadyInitializedName
}

// HasCode returns whether the error is an administrative error with the code given.
func HasCode(err error, code int32) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == code
}
