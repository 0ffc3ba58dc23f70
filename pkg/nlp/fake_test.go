package nlp

import (
	"context"
	"sync"

	"github.com/soundprediction/lexigraph/pkg/types"
)

// scriptedClient fails its first failUntilCall calls with errorToReturn.
type scriptedClient struct {
	mu            sync.Mutex
	calls         int
	failUntilCall int
	errorToReturn error
	structured    int
}

func (s *scriptedClient) next(structured bool) (*types.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if structured {
		s.structured++
	}
	if s.calls <= s.failUntilCall {
		return nil, s.errorToReturn
	}
	if structured {
		return &types.Response{Content: `{"can_answer": true, "confidence": 0.8}`}, nil
	}
	return &types.Response{Content: "success"}, nil
}

func (s *scriptedClient) Chat(context.Context, []types.Message) (*types.Response, error) {
	return s.next(false)
}

func (s *scriptedClient) ChatWithStructuredOutput(context.Context, []types.Message, any) (*types.Response, error) {
	return s.next(true)
}

func (s *scriptedClient) Close() error { return nil }
