package memory_test

import (
	"testing"

	"github.com/xraph/distask/store"
	"github.com/xraph/distask/store/memory"
	"github.com/xraph/distask/store/storetest"
)

func TestStore(t *testing.T) {
	storetest.Run(t, func(*testing.T) store.Store { return memory.New() })
}
