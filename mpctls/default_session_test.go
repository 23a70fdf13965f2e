package mpctls

import (
	"bytes"
	"errors"
	"testing"
)

func TestCommitSpansMatchSpanLengths(t *testing.T) {
	plaintext := make([]byte, 30)
	spans := []Span{{Start: 0, End: 10}, {Start: 20, End: 25}}
	commitments, err := CommitSpans(plaintext, spans)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i, sp := range spans {
		if len(commitments[i].Stream) != sp.End-sp.Start {
			t.Fatalf("stream %d length %d does not match span length %d", i, len(commitments[i].Stream), sp.End-sp.Start)
		}
		if len(commitments[i].Key) != 32 {
			t.Fatalf("key %d should be 32 bytes, got %d", i, len(commitments[i].Key))
		}
		if len(commitments[i].Recorded) != sp.End-sp.Start {
			t.Fatalf("recorded %d length does not match span length", i)
		}
	}
}

func TestCommitSpansRejectsOutOfBounds(t *testing.T) {
	_, err := CommitSpans(make([]byte, 5), []Span{{Start: 0, End: 10}})
	if err == nil {
		t.Fatal("expected error for span exceeding plaintext length")
	}
}

func TestCommitmentRoundTrip(t *testing.T) {
	plaintext := []byte("0123456789abcdef")
	spans := []Span{{Start: 0, End: 16}}
	commitments, err := CommitSpans(plaintext, spans)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(commitments) != 1 {
		t.Fatalf("expected one commitment, got %d", len(commitments))
	}
	c := commitments[0]

	if !VerifyOpening(c.Key, c.Stream, c.Commitment) {
		t.Fatal("expected the genuine stream to verify against its own commitment")
	}

	// A verifier never sees Stream directly; it recovers it from the
	// publicly recorded masked view plus the opened plaintext.
	recovered := RecoverStream(c.Recorded, plaintext)
	if !VerifyOpening(c.Key, recovered, c.Commitment) {
		t.Fatal("expected stream recovered from Recorded XOR plaintext to verify")
	}

	tampered := append([]byte{}, plaintext...)
	tampered[0] ^= 0xFF
	badStream := RecoverStream(c.Recorded, tampered)
	if VerifyOpening(c.Key, badStream, c.Commitment) {
		t.Fatal("expected a tampered plaintext to fail verification")
	}
}

func TestReadCappedAcceptsExactCap(t *testing.T) {
	data := bytes.Repeat([]byte{'x'}, 100)
	got, err := readCapped(bytes.NewReader(data), 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 100 {
		t.Fatalf("expected 100 bytes, got %d", len(got))
	}
}

func TestReadCappedRejectsOverCapWithSentinel(t *testing.T) {
	data := bytes.Repeat([]byte{'x'}, 101)
	_, err := readCapped(bytes.NewReader(data), 100)
	if !errors.Is(err, errRecvCapExceeded) {
		t.Fatalf("expected errRecvCapExceeded, got %v", err)
	}
}

func TestApplyOneTimePadIsSelfInverse(t *testing.T) {
	plaintext := []byte("top secret cookie value")
	stream := make([]byte, len(plaintext))
	for i := range stream {
		stream[i] = byte(i * 7)
	}
	redacted := ApplyOneTimePad(plaintext, stream)
	recovered := ApplyOneTimePad(redacted, stream)
	if string(recovered) != string(plaintext) {
		t.Fatalf("expected XOR-with-same-stream to recover plaintext, got %q", recovered)
	}
}
