package orchestration

import (
	"testing"
)

func fragments(requestID string, generation uint64, texts ...string) []speechFragment {
	var out []speechFragment
	for _, text := range texts {
		out = append(out, speechFragment{requestID: requestID, generation: generation, text: text})
	}
	return out
}

func endOf(requestID string, generation uint64) speechFragment {
	return speechFragment{requestID: requestID, generation: generation, end: true}
}

func TestSpeechBatcherWaitsForBootstrapThreshold(t *testing.T) {
	batcher := newSpeechBatcher(3)

	requests, _ := batcher.add(1, fragments("a", 1, "One ", "two "))
	if len(requests) != 0 {
		t.Fatalf("expected no request below threshold, got %+v", requests)
	}

	requests, _ = batcher.add(1, fragments("a", 1, "three "))
	if len(requests) != 1 || requests[0].text != "One two three " || requests[0].final {
		t.Fatalf("expected one bootstrapped request, got %+v", requests)
	}

	requests, _ = batcher.add(1, fragments("a", 1, "four"))
	if len(requests) != 1 || requests[0].text != "four" {
		t.Fatalf("expected every later batch to be forwarded, got %+v", requests)
	}

	requests, _ = batcher.add(1, []speechFragment{endOf("a", 1)})
	if len(requests) != 1 || !requests[0].final || requests[0].text != "" {
		t.Fatalf("expected a final empty request closing the context, got %+v", requests)
	}
}

func TestSpeechBatcherFlushesShortAnswersOnEnd(t *testing.T) {
	batcher := newSpeechBatcher(6)

	requests, _ := batcher.add(1, append(fragments("a", 1, "Sure", "."), endOf("a", 1)))
	if len(requests) != 1 {
		t.Fatalf("expected the short answer to be flushed, got %+v", requests)
	}
	if requests[0].text != "Sure." || !requests[0].final || requests[0].requestID != "a" {
		t.Fatalf("unexpected request %+v", requests[0])
	}
}

func TestSpeechBatcherAppliesThresholdPerResponse(t *testing.T) {
	batcher := newSpeechBatcher(2)

	batcher.add(1, append(fragments("a", 1, "x", "y"), endOf("a", 1)))
	requests, _ := batcher.add(1, fragments("b", 1, "z"))
	if len(requests) != 0 {
		t.Fatalf("expected the second response to bootstrap again, got %+v", requests)
	}
}

func TestSpeechBatcherDiscardsStaleFragments(t *testing.T) {
	batcher := newSpeechBatcher(2)

	batcher.add(1, fragments("a", 1, "stale"))
	requests, discarded := batcher.add(2, append(fragments("a", 1, "more"), fragments("b", 2, "fresh ", "text")...))
	if discarded["a"] != 2 {
		t.Fatalf("expected two stale fragments discarded, got %v", discarded)
	}
	if len(requests) != 1 || requests[0].requestID != "b" || requests[0].text != "fresh text" {
		t.Fatalf("expected only the fresh response, got %+v", requests)
	}
}

func TestSpeechBatcherSkipsResponsesWithoutText(t *testing.T) {
	batcher := newSpeechBatcher(2)

	requests, _ := batcher.add(1, []speechFragment{endOf("a", 1)})
	if len(requests) != 0 {
		t.Fatalf("expected no request for a response without text, got %+v", requests)
	}
}
