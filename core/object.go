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

import "github.com/spf13/cast"

// ObjectIDField is the key holding the identity of an Object.
const ObjectIDField = "id"

// Object is a schemaless document: any JSON object with an "id" member.
type Object map[string]any

// DocumentID returns the "id" member rendered as a string.
// Numeric ids are formatted without a fractional part; missing ids are empty.
func (o Object) DocumentID() string {
	v, ok := o[ObjectIDField]
	if !ok || v == nil {
		return ""
	}
	return cast.ToString(v)
}

// Field returns the named member rendered as a string.
func (o Object) Field(name string) string {
	return cast.ToString(o[name])
}
