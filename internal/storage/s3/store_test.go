package s3

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/tabularqa/tabularqa/internal/storage"
)

type fakeAPI struct {
	objects map[string][]byte
	puts    []string
	deletes []string
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{objects: map[string][]byte{}}
}

func (f *fakeAPI) Put(_ context.Context, _, key string, reader io.Reader, _ int64, _ string) (storage.ObjectInfo, error) {
	body, err := io.ReadAll(reader)
	if err != nil {
		return storage.ObjectInfo{}, err
	}
	f.objects[key] = body
	f.puts = append(f.puts, key)
	return storage.ObjectInfo{Key: key, Size: int64(len(body))}, nil
}

func (f *fakeAPI) Get(_ context.Context, _, key string) (io.ReadCloser, error) {
	body, ok := f.objects[key]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(body)), nil
}

func (f *fakeAPI) Stat(_ context.Context, _, key string) (storage.ObjectInfo, error) {
	body, ok := f.objects[key]
	if !ok {
		return storage.ObjectInfo{}, storage.ErrObjectNotFound
	}
	return storage.ObjectInfo{Key: key, Size: int64(len(body))}, nil
}

func (f *fakeAPI) Delete(_ context.Context, _, key string) error {
	delete(f.objects, key)
	f.deletes = append(f.deletes, key)
	return nil
}

func (f *fakeAPI) BucketExists(context.Context, string) (bool, error) { return true, nil }
func (f *fakeAPI) CreateBucket(context.Context, string, string) error { return nil }

func TestStoreAppliesPrefix(t *testing.T) {
	api := newFakeAPI()
	store, err := NewWithAPI("datasets", "billing", api)
	if err != nil {
		t.Fatalf("NewWithAPI() error = %v", err)
	}

	payload := []byte("client_id,client_name\n1,Acme GmbH\n")
	if _, err := store.Put(context.Background(), "sources/demo/clients.csv",
		bytes.NewReader(payload), int64(len(payload)), storage.PutOptions{ContentType: "text/csv"}); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if api.puts[0] != "billing/sources/demo/clients.csv" {
		t.Fatalf("stored key = %q", api.puts[0])
	}

	reader, err := store.Get(context.Background(), "sources/demo/clients.csv")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	body, _ := io.ReadAll(reader)
	_ = reader.Close()
	if !bytes.Equal(body, payload) {
		t.Fatalf("Get() payload = %q", body)
	}
}

func TestStoreRejectsTraversalKeys(t *testing.T) {
	store, err := NewWithAPI("datasets", "", newFakeAPI())
	if err != nil {
		t.Fatalf("NewWithAPI() error = %v", err)
	}
	for _, key := range []string{"", "../escape.csv", "a/../../b"} {
		if _, err := store.Get(context.Background(), key); err == nil {
			t.Fatalf("Get(%q) error = nil, want rejection", key)
		}
	}
}

func TestStoreMapsNotFound(t *testing.T) {
	store, err := NewWithAPI("datasets", "", newFakeAPI())
	if err != nil {
		t.Fatalf("NewWithAPI() error = %v", err)
	}
	if _, err := store.Get(context.Background(), "missing.csv"); !errors.Is(err, storage.ErrObjectNotFound) {
		t.Fatalf("Get() error = %v, want ErrObjectNotFound", err)
	}
	if _, err := store.Stat(context.Background(), "missing.csv"); !errors.Is(err, storage.ErrObjectNotFound) {
		t.Fatalf("Stat() error = %v, want ErrObjectNotFound", err)
	}
}

func TestStoreDeleteIgnoresMissing(t *testing.T) {
	store, err := NewWithAPI("datasets", "", newFakeAPI())
	if err != nil {
		t.Fatalf("NewWithAPI() error = %v", err)
	}
	if err := store.Delete(context.Background(), "missing.csv"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
}
