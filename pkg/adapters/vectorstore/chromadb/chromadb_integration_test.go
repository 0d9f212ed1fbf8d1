//go:build integration

package chromadb

import (
	"fmt"
	"testing"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/wilhg/kit/pkg/adapters/vectorstore"
)

func TestChromaDBServer(t *testing.T) {
	ctx := t.Context()
	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "chromadb/chroma:0.5.23",
			ExposedPorts: []string{"8000/tcp"},
			WaitingFor:   wait.ForHTTP("/api/v1/heartbeat").WithPort("8000/tcp"),
		},
		Started: true,
	})
	testcontainers.CleanupContainer(t, c)
	if err != nil {
		t.Skipf("chromadb unavailable: %v", err)
	}
	host, err := c.Host(ctx)
	if err != nil {
		t.Fatal(err)
	}
	port, err := c.MappedPort(ctx, "8000/tcp")
	if err != nil {
		t.Fatal(err)
	}

	vs, err := Factory(ctx, map[string]any{"base_url": fmt.Sprintf("http://%s:%s", host, port.Port()), "collection": "kit_itest"})
	if err != nil {
		t.Fatal(err)
	}
	if err := vs.Upsert(ctx, []vectorstore.Item{
		{ID: "a1", Namespace: "s1", Vector: vectorstore.Vector{1, 0}, Metadata: map[string]any{"content": "one"}},
		{ID: "a2", Namespace: "s1", Vector: vectorstore.Vector{0.8, 0.2}, Metadata: map[string]any{"content": "two"}},
		{ID: "b1", Namespace: "s2", Vector: vectorstore.Vector{0, 1}, Metadata: map[string]any{"content": "three"}},
	}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	matches, err := vs.Query(ctx, vectorstore.Vector{1, 0}, 2, vectorstore.Filter{Namespace: "s1"})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(matches) != 2 || matches[0].Item.ID != "a1" {
		t.Fatalf("matches=%+v", matches)
	}
	if err := vs.Delete(ctx, "s1", "a1"); err != nil {
		t.Fatal(err)
	}
	items, err := vs.List(ctx, vectorstore.Filter{Namespace: "s1"})
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 || items[0].ID != "a2" || items[0].Metadata["content"] != "two" {
		t.Fatalf("items=%+v", items)
	}
}
