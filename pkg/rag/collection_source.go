// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package rag

import (
	"context"
	"fmt"
	"time"
)

// CollectionSource is the DataSource for a store that points at an
// already-populated vector collection: discovery yields nothing and the
// store serves search only.
type CollectionSource struct {
	collectionName string
}

// NewCollectionSource creates a collection-only data source.
func NewCollectionSource(collectionName string) *CollectionSource {
	return &CollectionSource{collectionName: collectionName}
}

// Type returns the data source type.
func (cs *CollectionSource) Type() string {
	return "collection"
}

// DiscoverDocuments yields nothing: the collection is pre-populated.
func (cs *CollectionSource) DiscoverDocuments(ctx context.Context) (<-chan Document, <-chan error) {
	docChan := make(chan Document)
	errChan := make(chan error)
	close(docChan)
	close(errChan)
	return docChan, errChan
}

// ReadDocument fails: the originals behind a pre-populated collection
// are not reachable from here.
func (cs *CollectionSource) ReadDocument(ctx context.Context, id string) (*Document, error) {
	return nil, fmt.Errorf("reading documents not supported for collection source")
}

// SupportsIncrementalIndexing reports false; there is nothing to index.
func (cs *CollectionSource) SupportsIncrementalIndexing() bool {
	return false
}

// GetLastModified returns the zero time; modification times live with
// whatever populated the collection.
func (cs *CollectionSource) GetLastModified(ctx context.Context, id string) (time.Time, error) {
	return time.Time{}, nil
}

// Close releases nothing; the source holds no resources.
func (cs *CollectionSource) Close() error {
	return nil
}

// CollectionName returns the collection this source points at.
func (cs *CollectionSource) CollectionName() string {
	return cs.collectionName
}

var _ DataSource = (*CollectionSource)(nil)
