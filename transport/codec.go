// Copyright (c) 2026 Andrey Kriulin
// Licensed under the MIT License.
// See the LICENSE file in the project root for full license text.

package transport

import (
	"context"

	"github.com/pkg/errors"
	"github.com/ugorji/go/codec"
)

var msgpack = &codec.MsgpackHandle{}

// Encode serializes v with msgpack.
func Encode(v any) ([]byte, error) {
	var out []byte
	if err := codec.NewEncoderBytes(&out, msgpack).Encode(v); err != nil {
		return nil, errors.Wrap(err, "transport: encode")
	}
	return out, nil
}

// Decode deserializes msgpack data into v.
func Decode(data []byte, v any) error {
	if err := codec.NewDecoderBytes(data, msgpack).Decode(v); err != nil {
		return errors.Wrap(err, "transport: decode")
	}
	return nil
}

// ExchangeRecords sends outgoing[r] to every rank r and returns the records
// received from every other rank. Ranks that sent nothing map to nil.
func ExchangeRecords[T any](ctx context.Context, comm Communicator, outgoing map[Rank][]T) (map[Rank][]T, error) {
	raw := make(map[Rank][]byte, len(outgoing))
	for r, records := range outgoing {
		if len(records) == 0 {
			continue
		}
		b, err := Encode(records)
		if err != nil {
			return nil, err
		}
		raw[r] = b
	}

	in, err := comm.Exchange(ctx, raw)
	if err != nil {
		return nil, err
	}
	out := make(map[Rank][]T, len(in))
	for r, b := range in {
		if len(b) == 0 {
			out[r] = nil
			continue
		}
		var records []T
		if err := Decode(b, &records); err != nil {
			return nil, errors.Wrapf(err, "transport: records from %v", r)
		}
		out[r] = records
	}
	return out, nil
}

// AllGather returns the value of every rank, indexed by rank.
func AllGather[T any](ctx context.Context, comm Communicator, v T) ([]T, error) {
	b, err := Encode(v)
	if err != nil {
		return nil, err
	}
	outgoing := make(map[Rank][]byte, comm.Size())
	for r := range comm.Size() {
		outgoing[Rank(r)] = b
	}
	in, err := comm.Exchange(ctx, outgoing)
	if err != nil {
		return nil, err
	}

	out := make([]T, comm.Size())
	for r := range comm.Size() {
		if Rank(r) == comm.Rank() {
			out[r] = v
			continue
		}
		if err := Decode(in[Rank(r)], &out[r]); err != nil {
			return nil, errors.Wrapf(err, "transport: gather from rank %d", r)
		}
	}
	return out, nil
}

// AllReduceSum returns the sum of v over all ranks.
func AllReduceSum(ctx context.Context, comm Communicator, v int) (int, error) {
	all, err := AllGather(ctx, comm, v)
	if err != nil {
		return 0, err
	}
	sum := 0
	for _, x := range all {
		sum += x
	}
	return sum, nil
}
