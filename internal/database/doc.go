// Package database resolves DATABASE_URL style connection strings into
// connection descriptors and opens them with the matching driver.
//
// Supported schemes:
//   - sqlite: sqlite:///relative.db, sqlite:////absolute.db, sqlite://:memory:
//   - postgresql: postgres, postgresql, pgsql, postgis, timescale (pgx driver)
//   - mysql: mysql, mysql2, mysqlgis (go-sql-driver)
//   - redshift: redshift (lib/pq driver)
package database
