package inmemdb

import (
	"sync"

	"github.com/trezcool/cadence/core/project"
)

type (
	DB struct {
		project *projectTable
	}

	projectTable struct {
		sync.RWMutex
		table map[string]*project.Project
	}
)

func Open() (*DB, error) {
	db := &DB{
		project: &projectTable{table: make(map[string]*project.Project)},
	}
	return db, nil
}
