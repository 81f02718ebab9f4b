package memory_test

import (
	"testing"

	"github.com/aretw0/s3conform/pkg/adapters/memory"
	"github.com/aretw0/s3conform/pkg/ports"
)

func TestMemoryStore_Contract(t *testing.T) {
	store := memory.NewStore()
	ports.RunReportStoreContract(t, store)
}
