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
	"time"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/varint"
)

// MUS serializers for the types persisted by storage backends.
// Field order is part of the on-disk format; append new fields at the end.
var (
	IDMUS   = idMUS{}
	BookMUS = bookMUS{}
)

type idMUS struct{}

func (s idMUS) Marshal(v ID, bs []byte) (n int) {
	return varint.Uint64.Marshal(uint64(v), bs)
}

func (s idMUS) Unmarshal(bs []byte) (v ID, n int, err error) {
	tmp, n, err := varint.Uint64.Unmarshal(bs)
	if err != nil {
		return
	}
	v = ID(tmp)
	return
}

func (s idMUS) Size(v ID) (size int) {
	return varint.Uint64.Size(uint64(v))
}

func (s idMUS) Skip(bs []byte) (n int, err error) {
	return varint.Uint64.Skip(bs)
}

// Release dates are stored as Unix seconds in UTC.
type bookMUS struct{}

func (s bookMUS) Marshal(v Book, bs []byte) (n int) {
	n = IDMUS.Marshal(v.Id, bs)
	n += ord.String.Marshal(v.Title, bs[n:])
	n += ord.String.Marshal(v.Author, bs[n:])
	n += varint.Int64.Marshal(v.ReleaseDate.Unix(), bs[n:])
	n += ord.String.Marshal(v.Content, bs[n:])
	return n + IDMUS.Marshal(v.Checksum, bs[n:])
}

func (s bookMUS) Unmarshal(bs []byte) (v Book, n int, err error) {
	v.Id, n, err = IDMUS.Unmarshal(bs)
	if err != nil {
		return
	}
	var n1 int
	v.Title, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Author, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	var unix int64
	unix, n1, err = varint.Int64.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.ReleaseDate = time.Unix(unix, 0).UTC()
	v.Content, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Checksum, n1, err = IDMUS.Unmarshal(bs[n:])
	n += n1
	return
}

func (s bookMUS) Size(v Book) (size int) {
	size = IDMUS.Size(v.Id)
	size += ord.String.Size(v.Title)
	size += ord.String.Size(v.Author)
	size += varint.Int64.Size(v.ReleaseDate.Unix())
	size += ord.String.Size(v.Content)
	return size + IDMUS.Size(v.Checksum)
}

func (s bookMUS) Skip(bs []byte) (n int, err error) {
	n, err = IDMUS.Skip(bs)
	if err != nil {
		return
	}
	var n1 int
	for _, skip := range []func([]byte) (int, error){
		ord.String.Skip,
		ord.String.Skip,
		varint.Int64.Skip,
		ord.String.Skip,
		IDMUS.Skip,
	} {
		n1, err = skip(bs[n:])
		n += n1
		if err != nil {
			return
		}
	}
	return
}
