package packagekit

import (
	"context"
	"sync"

	"github.com/pkg/errors"
)

type contextKey string

func (c contextKey) String() string {
	return "packagekit context " + string(c)
}

// Values the engines report back to the caller, through the context.
const (
	ContextDescriptorDigestKey contextKey = "descriptorDigest"
	ContextEngineVersionKey    contextKey = "engineVersion"
	ContextBuildDirKey         contextKey = "buildDir"
)

var contextKeys = []contextKey{
	ContextDescriptorDigestKey,
	ContextEngineVersionKey,
	ContextBuildDirKey,
}

type contextValue struct {
	mu  sync.Mutex
	val string
}

// InitContext adds settable holders for every packagekit key. Callers
// use it before packaging and read the values afterwards with
// GetFromContext.
func InitContext(ctx context.Context) context.Context {
	for _, key := range contextKeys {
		ctx = context.WithValue(ctx, key, &contextValue{})
	}
	return ctx
}

func GetFromContext(ctx context.Context, key contextKey) (string, error) {
	holder, ok := ctx.Value(key).(*contextValue)
	if !ok {
		return "", errors.Errorf("context has no %s, was InitContext called?", key)
	}
	holder.mu.Lock()
	defer holder.mu.Unlock()
	return holder.val, nil
}

// SetInContext records a value. It is a no-op on a context that was not
// initialized.
func SetInContext(ctx context.Context, key contextKey, val string) {
	holder, ok := ctx.Value(key).(*contextValue)
	if !ok {
		return
	}
	holder.mu.Lock()
	defer holder.mu.Unlock()
	holder.val = val
}
