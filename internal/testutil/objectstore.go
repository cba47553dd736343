package testutil

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/nkiryanov/videotube/internal/apperrors"
	"github.com/nkiryanov/videotube/internal/models"
)

// In-memory object store for tests
// Uploads and deletions could be forced to fail by upload name
type ObjectStore struct {
	mu sync.Mutex

	seq      int
	objects  map[string][]byte
	names    map[string]string // object id -> upload name
	deleted  []string
	uploaded []string

	failUpload map[string]error
	failDelete map[string]error

	afterDelete func(id string)
}

func NewObjectStore() *ObjectStore {
	return &ObjectStore{
		objects:    make(map[string][]byte),
		names:      make(map[string]string),
		failUpload: make(map[string]error),
		failDelete: make(map[string]error),
	}
}

// Make upload of file with the name fail
func (s *ObjectStore) FailUpload(name string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failUpload[name] = err
}

// Make deletion of object uploaded from file with the name fail
func (s *ObjectStore) FailDelete(name string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failDelete[name] = err
}

// Call fn after every successful deletion
func (s *ObjectStore) AfterDelete(fn func(id string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.afterDelete = fn
}

func (s *ObjectStore) Upload(ctx context.Context, u models.Upload) (models.MediaObject, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return models.MediaObject{}, err
	}
	if err, ok := s.failUpload[u.Name]; ok {
		return models.MediaObject{}, err
	}

	var data []byte
	if u.Body != nil {
		b, err := io.ReadAll(u.Body)
		if err != nil {
			return models.MediaObject{}, err
		}
		data = b
	}

	s.seq++
	id := fmt.Sprintf("test/%d-%s", s.seq, u.Name)
	s.objects[id] = data
	s.names[id] = u.Name
	s.uploaded = append(s.uploaded, id)

	return models.MediaObject{ID: id, URL: "https://cdn.test/" + id}, nil
}

func (s *ObjectStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	if err, ok := s.failDelete[s.names[id]]; ok {
		return err
	}
	if _, ok := s.objects[id]; !ok {
		return apperrors.ErrObjectNotFound
	}

	delete(s.objects, id)
	s.deleted = append(s.deleted, id)
	if s.afterDelete != nil {
		s.afterDelete(id)
	}
	return nil
}

// Report whether object is stored
func (s *ObjectStore) Has(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[id]
	return ok
}

// Number of objects currently stored
func (s *ObjectStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}

// Ids of successfully uploaded objects in upload order
func (s *ObjectStore) Uploaded() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.uploaded...)
}

// Ids of deleted objects in deletion order
func (s *ObjectStore) Deleted() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.deleted...)
}
