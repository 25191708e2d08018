// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package core

import (
	"fmt"
	"reflect"
)

// ValidateDocument validates a Document before it is written.
//
// Validation rules:
//   - document must not be nil (including typed nil pointers)
//   - DocumentID must not be empty
//
// Field contents are not validated; schema is the caller's concern.
func ValidateDocument(doc Document) error {
	if IsNil(doc) {
		return fmt.Errorf("%w: document is nil", ErrInvalidDocument)
	}

	if doc.DocumentID() == "" {
		return fmt.Errorf("%w: %w", ErrInvalidDocument, ErrEmptyID)
	}

	return nil
}

// IsNil reports whether v is nil or holds a nil pointer, map, slice or interface.
func IsNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}
