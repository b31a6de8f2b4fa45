package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"
)

type fakeTableCreator struct{ err error }

func (f fakeTableCreator) CreateTable(context.Context, *aztables.CreateTableOptions) (aztables.CreateTableResponse, error) {
	return aztables.CreateTableResponse{}, f.err
}

type fakeQueueCreator struct{ err error }

func (f fakeQueueCreator) Create(context.Context, *azqueue.CreateOptions) (azqueue.CreateResponse, error) {
	return azqueue.CreateResponse{}, f.err
}

func TestEnsureTable(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantErr bool
	}{
		{name: "created"},
		{name: "exists", err: &azcore.ResponseError{ErrorCode: string(aztables.TableAlreadyExists)}},
		{name: "forbidden", err: &azcore.ResponseError{ErrorCode: "AuthorizationFailure"}, wantErr: true},
		{name: "transport", err: errors.New("dial tcp"), wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ensureTable(context.Background(), fakeTableCreator{err: tt.err})
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestEnsureQueue(t *testing.T) {
	if err := ensureQueue(context.Background(), fakeQueueCreator{err: &azcore.ResponseError{ErrorCode: "QueueAlreadyExists"}}); err != nil {
		t.Fatalf("existing queue should be ignored: %v", err)
	}
	if err := ensureQueue(context.Background(), fakeQueueCreator{err: errors.New("boom")}); err == nil {
		t.Fatalf("expected error")
	}
}
