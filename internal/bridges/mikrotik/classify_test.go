package mikrotik

import (
	"context"
	"errors"
	"fmt"
	"os"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Category
	}{
		{"context deadline", fmt.Errorf("%w: dialing: %w", ErrConnect, context.DeadlineExceeded), CategoryTimeout},
		{"socket deadline", fmt.Errorf("%w: read: %w", ErrRemote, os.ErrDeadlineExceeded), CategoryTimeout},
		{"io timeout text", errors.New("read tcp 10.0.0.1:8728: i/o timeout"), CategoryTimeout},
		{"bad credentials", errors.New("from RouterOS device: invalid user name or password (6)"), CategoryAuthentication},
		{"cannot log in", errors.New("from RouterOS device: cannot log in"), CategoryAuthentication},
		{"errno refused", fmt.Errorf("%w: dialing: %w", ErrConnect, syscall.ECONNREFUSED), CategoryConnectionRefused},
		{"refused text", errors.New("dial tcp 10.0.0.1:8728: connect: connection refused"), CategoryConnectionRefused},
		{"timeout argument is not a timeout", errors.New("from RouterOS device: invalid value for argument timeout"), CategoryUnclassified},
		{"other", errors.New("from RouterOS device: failure: already have such entry"), CategoryUnclassified},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.err)
			assert.Equal(t, tt.want, got.Category)
			assert.NotEmpty(t, got.Message)
		})
	}
}

func TestClassify_UnclassifiedKeepsFullText(t *testing.T) {
	err := errors.New("from RouterOS device: failure: something unexpected happened on the router side")
	assert.Equal(t, err.Error(), Classify(err).Message)
}

func TestClassify_Nil(t *testing.T) {
	assert.Equal(t, Classification{}, Classify(nil))
}
