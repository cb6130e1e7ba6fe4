package repository

import (
	"github.com/peakform/biometrics-service/pkg/database"
)

// Repositories holds all repository interfaces
type Repositories struct {
	Token    TokenRepository
	Snapshot SnapshotRepository
}

// NewRepositories creates all repositories
func NewRepositories(db *database.Postgres) *Repositories {
	return &Repositories{
		Token:    NewTokenRepository(db),
		Snapshot: NewSnapshotRepository(db),
	}
}
