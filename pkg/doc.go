// Package pkg provides the core libraries for rdfproxy, a converting
// proxy for RDF serializations.
//
// # Overview
//
// rdfproxy fetches RDF documents over HTTP, identifies their
// serialization, converts them to the serialization a client asked
// for, and caches every representation it produces. The pkg directory
// is organized around that flow:
//
//  1. [format] - the serialization catalogue and content detection
//  2. [rdf] - native N-Triples and N-Quads parsing and writing
//  3. [convert] - conversion backends and shortest-path planning
//  4. [fetch] - retrying HTTP download of remote documents
//  5. [cache] - file, Redis, and MongoDB representation stores
//  6. [proxy] - the request pipeline tying the above together
//  7. [server] - the HTTP front end
//
// The typical data flow through rdfproxy:
//
//	HTTP request (?uri=..., Accept: ...)
//	         |
//	     [server]  negotiate the target serialization
//	         |
//	     [proxy]   cache lookup, deduplicated download
//	         |
//	     [fetch]   retrieve the document from its origin
//	         |
//	     [format]  identify what the origin actually sent
//	         |
//	     [convert] plan and run the cheapest conversion chain
//	         |
//	     [cache]   store source and target representations
//
// Supporting packages: [execx] runs external conversion tools with
// timeouts, [config] loads the TOML configuration, [errors] defines
// the coded error type used across the module, and [buildinfo] holds
// version metadata injected at build time.
package pkg
