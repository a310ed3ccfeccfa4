// Package app contains the core application logic. It wires the project
// loader, platform resolver, compiler, caches, invalidation engine and
// incremental builder into one App, and exposes the build, plan, graph and
// invalidate use cases, decoupled from any specific entrypoint like a CLI.
package app
