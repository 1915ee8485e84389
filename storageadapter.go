package proseql

import "github.com/simonwjackson/proseql/storage"

// StorageAdapter is the persistence-target capability a Database writes
// collection files through (C3). It is an alias of storage.Adapter so
// callers outside this module never need to import the storage subpackage
// directly just to implement a custom adapter.
type StorageAdapter = storage.Adapter

// NewFSAdapter returns the default local-filesystem StorageAdapter.
func NewFSAdapter() StorageAdapter { return storage.NewFSAdapter() }

// NewBadgerAdapter returns a BadgerDB-backed StorageAdapter rooted at dir.
func NewBadgerAdapter(dir string) (StorageAdapter, error) { return storage.NewBadgerAdapter(dir) }

// NewMemAdapter returns a non-persistent, in-process StorageAdapter.
func NewMemAdapter() StorageAdapter { return storage.NewMemAdapter() }
