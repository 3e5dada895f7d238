// Copyright 2023 The acquirecloud Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package errors

import (
	"errors"
	"fmt"
)

var (
	// ErrNotExist the object requested is not found
	ErrNotExist = fmt.Errorf("not found")
	// ErrExist the object with the ID or name already exists
	ErrExist = fmt.Errorf("already exists")
	// ErrInvalid indicates that the parameters or the state of the object is invalid
	ErrInvalid = fmt.Errorf("invalid parameter or state")
	// ErrClosed the operation cannot be done, cause the object is closed
	ErrClosed = fmt.Errorf("already closed")
	// ErrInternal an internal error which cannot be resolved by the caller
	ErrInternal = fmt.Errorf("unexpected internal error")
	// ErrDataLoss indicates about the data is corrupted or lost
	ErrDataLoss = fmt.Errorf("unrecoverable data loss or corruption")
	// ErrExhausted indicates that some of the resources are exhausted and the operation cannot be completed
	ErrExhausted = fmt.Errorf("resource is exhausted")
	// ErrConflict the operation cannot be done due to a conflict with the existing state
	ErrConflict = fmt.Errorf("conflict with the existing state")
	// ErrUnimplemented the operation is known, but not supported
	ErrUnimplemented = fmt.Errorf("not implemented yet")
)

// Is reports whether any error in err's tree matches target. The function is
// re-exported here so that the callers don't have to import both this package
// and the standard errors one.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's tree that matches target. Same as the
// standard errors.As.
func As(err error, target any) bool {
	return errors.As(err, target)
}
