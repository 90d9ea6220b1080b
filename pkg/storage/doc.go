// Package storage holds backend-neutral storage configuration. The concrete
// PostgreSQL gateway lives in the postgres subpackage; callers that only need
// configuration never pull in the driver.
package storage
