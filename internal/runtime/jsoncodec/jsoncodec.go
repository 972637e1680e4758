// Package jsoncodec centralises JSON encoding for the runtime so every
// component (envelope codec, error container, view documents) agrees on one
// implementation. It is backed by sonic in its stdlib-compatible mode.
package jsoncodec

import (
	"io"

	"github.com/bytedance/sonic"
)

var cfg = sonic.ConfigStd

func Marshal(v any) ([]byte, error) {
	return cfg.Marshal(v)
}

func Unmarshal(data []byte, v any) error {
	return cfg.Unmarshal(data, v)
}

func Encode(w io.Writer, v any) error {
	return cfg.NewEncoder(w).Encode(v)
}

func Decode(r io.Reader, v any) error {
	return cfg.NewDecoder(r).Decode(v)
}
