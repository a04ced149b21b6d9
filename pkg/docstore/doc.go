// Package docstore provides a versioned document collection with memory, SQL and MongoDB backends.
//
// # Overview
//
// Every backend implements Collection[T]. Documents carry a version number;
// Replace is a compare-and-swap on that version so concurrent writers detect
// each other with ErrConflict instead of silently overwriting.
//
// # Backends
//
//	mem := docstore.NewMemoryCollection[*business.Document]()
//
//	db, _ := sql.Open("postgres", url)
//	pg, _ := docstore.NewSQLCollection[*business.Document](db, docstore.Postgres, "businesses")
//	if err := pg.Migrate(ctx); err != nil {
//		return err
//	}
//
//	lite, _ := docstore.NewSQLCollection[*business.Document](db, docstore.SQLite, "businesses")
//
//	mg := docstore.NewMongoCollection[*business.Document](client.Database("synergy").Collection("businesses"), "")
//
// The SQL backend stores the JSON body next to id, scope and version columns.
// The MongoDB backend stores documents natively and filters Replace on
// {_id, version}.
//
// # Related Packages
//
//   - pkg/membership: retries business writes on ErrConflict
package docstore
