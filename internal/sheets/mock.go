package sheets

import (
	"context"
	"sync"

	"github.com/Veraticus/artmap/internal/model"
)

// MockWriter is a mock mirror writer for testing.
type MockWriter struct {
	WriteFunc      func(ctx context.Context, mappings []model.Mapping, queue []model.UnmappedComponent) (MirrorResult, error)
	LastMappings   []model.Mapping
	LastQueue      []model.UnmappedComponent
	WriteCallCount int
	mu             sync.Mutex
}

// NewMockWriter creates a new mock writer.
func NewMockWriter() *MockWriter {
	return &MockWriter{}
}

// WriteMirror records the call and delegates to WriteFunc when set.
func (m *MockWriter) WriteMirror(ctx context.Context, mappings []model.Mapping, queue []model.UnmappedComponent) (MirrorResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.WriteCallCount++
	m.LastMappings = mappings
	m.LastQueue = queue

	if m.WriteFunc != nil {
		return m.WriteFunc(ctx, mappings, queue)
	}
	return MirrorResult{
		SpreadsheetID: "mock-spreadsheet",
		Mappings:      len(mappings),
		Unmapped:      len(queue),
	}, nil
}

// AssertWriteCalled verifies that WriteMirror was called expectedCalls times.
func (m *MockWriter) AssertWriteCalled(t interface{ Fatalf(string, ...any) }, expectedCalls int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.WriteCallCount != expectedCalls {
		t.Fatalf("expected WriteMirror to be called %d times, but was called %d times", expectedCalls, m.WriteCallCount)
	}
}

// SetWriteError configures the mock to fail every WriteMirror call.
func (m *MockWriter) SetWriteError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.WriteFunc = func(_ context.Context, _ []model.Mapping, _ []model.UnmappedComponent) (MirrorResult, error) {
		return MirrorResult{}, err
	}
}
