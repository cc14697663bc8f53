// Package internal contains the core implementation packages for sitepipe.
//
// # Package Organization
//
// The internal packages are organized by functional domain:
//
//   - registry: Task declarations and the sealed task registry
//   - graph: Sequential and parallel composition, validation and plans
//   - executor: Plan execution with barrier joins, input caching and reports
//   - transform: Adapters for styles, scripts, templates and validation
//   - sitedata: Data documents and their right-biased merge
//   - watcher: File system events, debouncing and change to task mapping
//   - server: Preview file server and live reload over WebSocket
//   - site: Task declarations and composition for the classic site layout
//   - publish: Upload of the distribution root to object storage
//   - config, errors, logging, version: Ambient infrastructure
//
// # Inter-Package Communication
//
//   - The registry is built once by site and passed to graph and executor
//   - The watcher scheduler hands induced plans to the executor, one at a time
//   - The executor reports transform failures to the server through Notifier
//   - The scheduler tells the server to reload after every completed run
package internal
