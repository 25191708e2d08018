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


//go:generate go run ../cmd/musgen

package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/poiesic/docket/core"
)

// Entry is the envelope a container persists for each item.
type Entry struct {
	Value      string    // Serialized document
	InsertedAt time.Time // When the item was first added
	UpdatedAt  time.Time // When the item was last written
}

// MarshalEntry serializes an Entry to bytes.
func MarshalEntry(entry *Entry) []byte {
	buf := make([]byte, EntryMUS.Size(*entry))
	EntryMUS.Marshal(*entry, buf)
	return buf
}

// UnmarshalEntry deserializes an Entry from bytes.
// Trailing bytes after a complete entry are treated as corruption.
func UnmarshalEntry(data []byte) (*Entry, error) {
	entry, n, err := EntryMUS.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTruncatedData, err)
	}
	if n != len(data) {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrDeserializationFailed, len(data)-n)
	}
	entry.InsertedAt = entry.InsertedAt.UTC()
	entry.UpdatedAt = entry.UpdatedAt.UTC()
	return &entry, nil
}

// MarshalDocument serializes a document to its canonical JSON text.
// Fails with ErrSerializationFailed when encoding errors or yields no output.
func MarshalDocument(doc any) (string, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return "", fmt.Errorf("%w: document produced no output", ErrSerializationFailed)
	}
	return string(data), nil
}

// MarshalDocumentIndent serializes a document as indented JSON for diagnostics.
func MarshalDocumentIndent(doc any) (string, error) {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return string(data), nil
}

// UnmarshalDocument deserializes JSON text into a T.
// A null payload decoding to a nil T is reported as ErrDeserializationFailed.
func UnmarshalDocument[T any](value string) (T, error) {
	var doc T
	if err := json.Unmarshal([]byte(value), &doc); err != nil {
		var zero T
		return zero, fmt.Errorf("%w: %w", ErrDeserializationFailed, err)
	}
	if core.IsNil(doc) {
		var zero T
		return zero, fmt.Errorf("%w: null document", ErrDeserializationFailed)
	}
	return doc, nil
}
