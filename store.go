package main

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrSheetNotFound is returned when no workbook has the requested ID.
var ErrSheetNotFound = errors.New("sheet not found")

// Store holds all workbooks in memory.
type Store struct {
	mu        sync.RWMutex
	workbooks map[string]*Workbook
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{workbooks: make(map[string]*Workbook)}
}

// CreateWorkbook creates an empty sheet of the given size and registers it.
func (s *Store) CreateWorkbook(name string, rows, cols int) (*Workbook, error) {
	sheet, err := NewSheet(rows, cols)
	if err != nil {
		return nil, err
	}
	return s.AddSheet(name, sheet), nil
}

// AddSheet registers an existing sheet under a new ID.
func (s *Store) AddSheet(name string, sheet *Sheet) *Workbook {
	id := generateID()
	if name == "" {
		name = "Sheet " + id[:4]
	}
	wb := newWorkbook(id, name, sheet)

	s.mu.Lock()
	s.workbooks[id] = wb
	s.mu.Unlock()

	return wb
}

// GetWorkbook returns the workbook with the given ID.
func (s *Store) GetWorkbook(id string) (*Workbook, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	wb, ok := s.workbooks[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSheetNotFound, id)
	}
	return wb, nil
}

// ListWorkbooks returns all workbooks, most recent first.
func (s *Store) ListWorkbooks() []*Workbook {
	s.mu.RLock()
	list := make([]*Workbook, 0, len(s.workbooks))
	for _, wb := range s.workbooks {
		list = append(list, wb)
	}
	s.mu.RUnlock()

	sort.Slice(list, func(i, j int) bool {
		return list[i].CreatedAt.After(list[j].CreatedAt)
	})
	return list
}

func generateID() string {
	b := make([]byte, 8)
	rand.Read(b)
	return hex.EncodeToString(b)
}
