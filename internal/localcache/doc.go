// Package localcache persists small client-side values across restarts.
//
// The cache is a single SQLite key/value table. It remembers the layout
// preferences so the first render after a restart already matches the last
// session, and the sizes of protocol files the server has not reported yet.
//
// Every operation is best effort: open, read and write failures are logged
// and swallowed, and a cache opened with an empty path (or a nil *Cache) is a
// no-op. Callers never branch on cache errors.
package localcache
