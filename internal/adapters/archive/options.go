// Package archive persists computed results for history queries.
package archive

// Option applies a configuration option to the SQLiteArchive.
type Option func(*SQLiteArchive)

// WithFileName sets the database file name inside the archive directory.
func WithFileName(name string) Option {
	return func(a *SQLiteArchive) {
		if name != "" {
			a.fileName = name
		}
	}
}

// WithMaxOpenConns sets the connection pool ceiling.
func WithMaxOpenConns(n int) Option {
	return func(a *SQLiteArchive) {
		if n > 0 {
			a.maxOpenConns = n
		}
	}
}
