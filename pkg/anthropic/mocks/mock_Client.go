// Package mocks provides test doubles for the anthropic client.
package mocks

import (
	"context"

	anthropic "github.com/sells-group/walkability-cli/pkg/anthropic"
	mock "github.com/stretchr/testify/mock"
)

// MockClient is a mock type for the Client interface.
type MockClient struct {
	mock.Mock
}

// CreateMessage provides a mock function with given fields: ctx, req
func (_m *MockClient) CreateMessage(ctx context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	ret := _m.Called(ctx, req)
	if rf, ok := ret.Get(0).(func(context.Context, anthropic.MessageRequest) (*anthropic.MessageResponse, error)); ok {
		return rf(ctx, req)
	}
	var r0 *anthropic.MessageResponse
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*anthropic.MessageResponse)
	}
	return r0, ret.Error(1)
}

// CreateBatch provides a mock function with given fields: ctx, req
func (_m *MockClient) CreateBatch(ctx context.Context, req anthropic.BatchRequest) (*anthropic.BatchResponse, error) {
	ret := _m.Called(ctx, req)
	var r0 *anthropic.BatchResponse
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*anthropic.BatchResponse)
	}
	return r0, ret.Error(1)
}

// GetBatch provides a mock function with given fields: ctx, batchID
func (_m *MockClient) GetBatch(ctx context.Context, batchID string) (*anthropic.BatchResponse, error) {
	ret := _m.Called(ctx, batchID)
	var r0 *anthropic.BatchResponse
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*anthropic.BatchResponse)
	}
	return r0, ret.Error(1)
}

// GetBatchResults provides a mock function with given fields: ctx, batchID
func (_m *MockClient) GetBatchResults(ctx context.Context, batchID string) (anthropic.BatchResultIterator, error) {
	ret := _m.Called(ctx, batchID)
	var r0 anthropic.BatchResultIterator
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(anthropic.BatchResultIterator)
	}
	return r0, ret.Error(1)
}

// SliceIterator is a BatchResultIterator over fixed items.
type SliceIterator struct {
	Items []anthropic.BatchResultItem
	idx   int
}

// NewSliceIterator returns an iterator yielding items in order.
func NewSliceIterator(items ...anthropic.BatchResultItem) *SliceIterator {
	return &SliceIterator{Items: items, idx: -1}
}

// Next advances to the next item.
func (s *SliceIterator) Next() bool {
	if s.idx+1 < len(s.Items) {
		s.idx++
		return true
	}
	return false
}

// Item returns the current item.
func (s *SliceIterator) Item() anthropic.BatchResultItem { return s.Items[s.idx] }

// Err always returns nil.
func (s *SliceIterator) Err() error { return nil }

// Close is a no-op.
func (s *SliceIterator) Close() error { return nil }

// NewMockClient creates a new instance of MockClient.
func NewMockClient(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockClient {
	mock := &MockClient{}
	mock.Test(t)

	t.Cleanup(func() { mock.AssertExpectations(t) })

	return mock
}
