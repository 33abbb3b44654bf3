package llm

import (
	"context"
	"sync"

	"github.com/Harshitk-cp/beliefgraph/internal/domain"
)

type mockResult struct {
	text  string
	media domain.Media
	err   error
}

// MockAdapter is a configurable in-process adapter for tests and offline use.
// Queued results are returned first, in order; after that each operation
// falls back to its canned default.
type MockAdapter struct {
	mu sync.Mutex

	Defaults     map[Operation]string
	DefaultImage domain.Media
	DefaultVideo domain.Media

	queued     map[Operation][]mockResult
	imageQueue []mockResult
	videoQueue []mockResult

	// Call tracking for assertions
	Calls      []Request
	ImageCalls []MediaRequest
	VideoCalls []MediaRequest
}

func NewMockAdapter() *MockAdapter {
	return &MockAdapter{
		Defaults: map[Operation]string{
			OpGraph:          mockGraph,
			OpClarifications: `[{"question":"What time of day is it?","options":["Morning","Dusk","Night"]}]`,
			OpRefine:         "An orange cat sleeping on a sunny windowsill in the morning.",
			OpContent:        "The cat woke as the light crossed the sill, stretched, and went looking for breakfast.",
		},
		DefaultImage: domain.Media{MIMEType: "image/png", Data: []byte("mock-image")},
		DefaultVideo: domain.Media{MIMEType: "video/mp4", URI: "mock://video/1"},
		queued:       make(map[Operation][]mockResult),
	}
}

const mockGraph = `{"entities":[{"name":"cat","presence_in_prompt":true,"description":"A domestic cat.","alternatives":["kitten"],"attributes":[{"name":"color","presence_in_prompt":false,"value":["orange","black","white"]},{"name":"existence","presence_in_prompt":true,"value":["true"]}]},{"name":"windowsill","presence_in_prompt":false,"description":"A sunny windowsill.","attributes":[]}],"relationships":[{"source":"cat","target":"windowsill","label":"sleeps on"}]}`

// Respond queues a response for the next Send of op.
func (m *MockAdapter) Respond(op Operation, text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queued[op] = append(m.queued[op], mockResult{text: text})
}

// Fail queues an error for the next Send of op.
func (m *MockAdapter) Fail(op Operation, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queued[op] = append(m.queued[op], mockResult{err: err})
}

func (m *MockAdapter) FailImage(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.imageQueue = append(m.imageQueue, mockResult{err: err})
}

func (m *MockAdapter) FailVideo(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.videoQueue = append(m.videoQueue, mockResult{err: err})
}

func (m *MockAdapter) Send(ctx context.Context, req Request) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, req)
	if q := m.queued[req.Operation]; len(q) > 0 {
		m.queued[req.Operation] = q[1:]
		return q[0].text, q[0].err
	}
	return m.Defaults[req.Operation], nil
}

func (m *MockAdapter) GenerateImage(ctx context.Context, req MediaRequest) (domain.Media, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ImageCalls = append(m.ImageCalls, req)
	if len(m.imageQueue) > 0 {
		r := m.imageQueue[0]
		m.imageQueue = m.imageQueue[1:]
		if r.err != nil {
			return domain.Media{}, r.err
		}
		return r.media, nil
	}
	return m.DefaultImage, nil
}

func (m *MockAdapter) GenerateVideo(ctx context.Context, req MediaRequest) (domain.Media, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.VideoCalls = append(m.VideoCalls, req)
	if len(m.videoQueue) > 0 {
		r := m.videoQueue[0]
		m.videoQueue = m.videoQueue[1:]
		if r.err != nil {
			return domain.Media{}, r.err
		}
		return r.media, nil
	}
	return m.DefaultVideo, nil
}

// CallCount returns how many Sends were made for op.
func (m *MockAdapter) CallCount(op Operation) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.Calls {
		if c.Operation == op {
			n++
		}
	}
	return n
}

func (m *MockAdapter) ImageCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.ImageCalls)
}
