// Command enrichctl runs enrichment batches and manages the shared cache
// from the command line, against the same stores the server uses.
//
// Usage:
//
//	enrichctl import library.json
//	enrichctl status --user u1
//	enrichctl run --user u1 --kind both
//	enrichctl cache stats
//	enrichctl cache search "abbey road"
//	enrichctl cache prune --days 90
package main
