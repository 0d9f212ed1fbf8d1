package memstore

import (
	"testing"

	"github.com/wilhg/kit/pkg/store/storetest"
)

func TestConformance(t *testing.T) {
	storetest.Run(t, New())
}
