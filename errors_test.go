package redstruct

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestCodecError(t *testing.T) {
	cause := errors.New("bad byte")
	err := codecErrf([]byte{0xDE, 0xAD}, cause, "decoding %s", "profile")
	eq(t, err.Error(), "decoding profile: bad byte: (2) dead")
	wants(t, err, cause)

	var ce *CodecError
	if !errors.As(err, &ce) {
		t.Fatalf("** not a CodecError: %v", err)
	}
	deepEqual(t, ce.Data, []byte{0xDE, 0xAD})
}

func TestCodecErrorTruncation(t *testing.T) {
	data := bytes.Repeat([]byte{0xAB}, 200)
	err := codecErrf(data, nil, "decoding blob")
	s := err.Error()
	eq(t, s, "decoding blob: (200) "+strings.Repeat("ab", 64)+"..."+strings.Repeat("ab", 32))
}

func TestBatchError(t *testing.T) {
	cause := errors.New("wrong type")
	err := batchErrf(2, incrByCmd("rs:dict.size.1", 1), cause)
	eq(t, err.Error(), "batch command 2 (INCRBY rs:dict.size.1): wrong type")
	wants(t, err, cause)

	var be *BatchError
	if !errors.As(err, &be) {
		t.Fatalf("** not a BatchError: %v", err)
	}
	eq(t, be.Index, 2)
	eq(t, be.Cmd.Op, OpIncrBy)
}
