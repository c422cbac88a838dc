package db

// Repositories provides access to all database repositories
type Repositories struct {
	Media    *MediaRepository
	Montages *MontageRepository
	Runs     *PlaybackRunRepository
}

// NewRepositories creates a new repository collection
func NewRepositories(db *DB) *Repositories {
	return &Repositories{
		Media:    NewMediaRepository(db),
		Montages: NewMontageRepository(db),
		Runs:     NewPlaybackRunRepository(db),
	}
}
