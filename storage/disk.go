// Package storage persists the InspireHub session on disk.
package storage

import (
	"context"
	"encoding/json"

	"github.com/gravitational/trace"
	"github.com/peterbourgon/diskv/v3"
	log "github.com/sirupsen/logrus"

	"thde.io/inspirehub"
)

const (
	// cacheSizeMaxBytes max memory cache
	cacheSizeMaxBytes = 4096

	// filePerm keeps tokens readable by the owner only.
	filePerm = 0o600
	// pathPerm is the permission of the storage directory.
	pathPerm = 0o700
)

// DiskStore is a CredentialStore writing the credential record into a
// directory, one file per key.
type DiskStore struct {
	// dv is a diskv instance
	dv  *diskv.Diskv
	key string
	log log.FieldLogger
}

var _ inspirehub.CredentialStore = (*DiskStore)(nil)

// NewDiskStore creates a store rooted at dir. A nil logger falls back to
// the logrus standard logger.
func NewDiskStore(dir string, logger log.FieldLogger) (*DiskStore, error) {
	if dir == "" {
		return nil, trace.BadParameter("storage dir is required")
	}

	// Simplest transform function: put all the data files into the base dir.
	flatTransform := func(s string) []string { return []string{} }

	dv := diskv.New(diskv.Options{
		BasePath:     dir,
		Transform:    flatTransform,
		CacheSizeMax: cacheSizeMaxBytes,
		FilePerm:     filePerm,
		PathPerm:     pathPerm,
	})

	if logger == nil {
		logger = log.StandardLogger()
	}

	return &DiskStore{
		dv:  dv,
		key: inspirehub.CredentialKey,
		log: logger.WithField("component", "storage"),
	}, nil
}

// Load reads the credential record. A missing or undecodable record
// yields nil, nil; the session treats both as logged out.
func (s *DiskStore) Load(_ context.Context) (*inspirehub.Credential, error) {
	if !s.dv.Has(s.key) {
		return nil, nil
	}

	b, err := s.dv.Read(s.key)
	if err != nil {
		return nil, trace.Wrap(err)
	}

	if len(b) == 0 {
		return nil, nil
	}

	var cred inspirehub.Credential
	if err := json.Unmarshal(b, &cred); err != nil {
		s.log.WithError(err).WithField("key", s.key).Warn("Stored credential is not valid JSON")
		return nil, nil
	}

	return &cred, nil
}

// Save writes the credential record.
func (s *DiskStore) Save(_ context.Context, cred inspirehub.Credential) error {
	b, err := json.Marshal(cred)
	if err != nil {
		return trace.Wrap(err)
	}

	return trace.Wrap(s.dv.Write(s.key, b))
}

// Delete removes the credential record. Deleting a missing record is not an error.
func (s *DiskStore) Delete(_ context.Context) error {
	if !s.dv.Has(s.key) {
		return nil
	}

	return trace.Wrap(s.dv.Erase(s.key))
}
