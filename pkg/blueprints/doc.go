// Package blueprints issues presigned S3 URLs so clients upload and fetch
// blueprint files directly from object storage instead of proxying bytes
// through the API.
package blueprints
