// Copyright (C) 2019-2026 Algorand, Inc.
// This file is part of go-algorand
//
// go-algorand is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// go-algorand is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with go-algorand.  If not, see <https://www.gnu.org/licenses/>.

package protocol

import (
	"io"

	"github.com/algorand/go-codec/codec"
)

// CodecHandle is the canonical msgpack configuration. Map keys are sorted and unknown
// fields are rejected, so every node derives identical bytes and hashes for equal objects.
var CodecHandle = canonicalHandle()

// Decoder decodes successive objects from a stream.
type Decoder interface {
	Decode(objptr interface{}) error
}

func canonicalHandle() *codec.MsgpackHandle {
	h := new(codec.MsgpackHandle)
	h.Canonical = true
	h.ErrorIfNoField = true
	h.ErrorIfNoArrayExpand = true
	h.RecursiveEmptyCheck = true
	h.PositiveIntUnsigned = true
	h.WriteExt = true
	h.Raw = true
	return h
}

// EncodeReflect returns the canonical msgpack encoding of obj.
func EncodeReflect(obj interface{}) []byte {
	out := make([]byte, 0, 256)
	codec.NewEncoderBytes(&out, CodecHandle).MustEncode(obj)
	return out
}

// DecodeReflect decodes b into the object pointed to by objptr.
func DecodeReflect(b []byte, objptr interface{}) error {
	return codec.NewDecoderBytes(b, CodecHandle).Decode(objptr)
}

// EncodeStream writes the canonical encoding of obj to w.
func EncodeStream(w io.Writer, obj interface{}) error {
	return codec.NewEncoder(w, CodecHandle).Encode(obj)
}

// NewDecoder returns a Decoder reading canonical msgpack from r.
func NewDecoder(r io.Reader) Decoder {
	return codec.NewDecoder(r, CodecHandle)
}
