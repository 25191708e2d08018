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
	"encoding/hex"
	"time"

	"github.com/go-crypt/x/blake2b"
	"github.com/google/uuid"
)

// Document is the unit of storage. Anything with a string identity can be stored.
type Document interface {
	DocumentID() string
}

// DocumentBase carries the fields most documents share.
// Embed it in a struct to satisfy Document.
type DocumentBase struct {
	Id         string    `json:"id"`
	CreatedAt  time.Time `json:"createdAt,omitzero"`
	ModifiedAt time.Time `json:"modifiedAt,omitzero"`
}

// DocumentID returns the document identity.
func (d DocumentBase) DocumentID() string {
	return d.Id
}

// IDNamePair is a lightweight reference to a document.
// Name is for display only and plays no part in lookups.
type IDNamePair struct {
	Id   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// NewID returns a new random document ID.
func NewID() string {
	return uuid.NewString()
}

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
// Identical content always produces the same 32 character hex ID.
func IDFromContent(text string) string {
	h, _ := blake2b.New(16, nil) // 16 bytes = 128 bits
	h.Write([]byte(text))
	return hex.EncodeToString(h.Sum(nil))
}
